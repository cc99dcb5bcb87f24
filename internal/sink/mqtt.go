package sink

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/doismellburning/ism433/internal/record"
)

// MQTT publishes one JSON payload per record to a fixed topic.
type MQTT struct {
	client mqtt.Client
	topic  string
	qos    byte
}

// NewMQTT connects to broker (e.g. "tcp://localhost:1883") and returns a
// sink publishing to topic at the given QoS.
func NewMQTT(broker, clientID, topic string, qos byte) (*MQTT, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetConnectTimeout(5 * time.Second)
	opts.SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return nil, fmt.Errorf("sink: mqtt connect to %s timed out", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("sink: mqtt connect to %s: %w", broker, err)
	}
	return &MQTT{client: client, topic: topic, qos: qos}, nil
}

func (m *MQTT) Emit(r *record.Record) error {
	payload, err := json.Marshal(ToMap(r))
	if err != nil {
		return fmt.Errorf("sink: mqtt marshal: %w", err)
	}
	token := m.client.Publish(m.topic, m.qos, false, payload)
	token.WaitTimeout(2 * time.Second)
	return token.Error() // best-effort: caller logs and swallows
}

func (m *MQTT) Poll() {}

func (m *MQTT) Close() error {
	m.client.Disconnect(250)
	return nil
}
