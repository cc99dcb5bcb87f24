package sink

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/doismellburning/ism433/internal/record"
)

// syslogPriority is facility 20 (local4) * 8 + severity 5 (notice).
const syslogPriority = 20*8 + 5

// syslogMaxDatagram caps one RFC 5424 frame; oversize frames are
// dropped rather than fragmented.
const syslogMaxDatagram = 1024

// Syslog is the UDP syslog sink: one RFC 5424 frame per record, JSON
// body, best-effort delivery.
type Syslog struct {
	conn     net.Conn
	hostname string
	appName  string
	procID   string // typically the pipeline's run session id
}

// NewSyslog dials addr (host:port) over UDP. appName and procID populate
// the RFC 5424 APP-NAME/PROCID fields; procID is usually the pipeline's
// session UUID.
func NewSyslog(addr, appName, procID string) (*Syslog, error) {
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("sink: syslog dial %s: %w", addr, err)
	}
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "-"
	}
	if procID == "" {
		procID = "-"
	}
	return &Syslog{conn: conn, hostname: hostname, appName: appName, procID: procID}, nil
}

func (s *Syslog) Emit(r *record.Record) error {
	body, err := json.Marshal(ToMap(r))
	if err != nil {
		return fmt.Errorf("sink: syslog marshal: %w", err)
	}
	ts := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
	// RFC 5424: PRI VERSION SP TIMESTAMP SP HOSTNAME SP APP-NAME SP
	// PROCID SP MSGID SP STRUCTURED-DATA SP MSG. MSGID and
	// STRUCTURED-DATA carry no information here, so both are the
	// literal "-"; PROCID carries the pipeline session id rather than
	// a dash so frames from concurrent instances stay distinguishable.
	frame := fmt.Sprintf("<%d>1 %s %s %s %s - - %s", syslogPriority, ts, s.hostname, s.appName, s.procID, body)
	if len(frame) > syslogMaxDatagram {
		return nil // oversize packets are dropped
	}
	if _, err := s.conn.Write([]byte(frame)); err != nil {
		return fmt.Errorf("sink: syslog send: %w", err) // caller logs and swallows
	}
	return nil
}

func (s *Syslog) Poll()        {}
func (s *Syslog) Close() error { return s.conn.Close() }
