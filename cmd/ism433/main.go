// Command ism433 is the CLI front end for the receiver core: it loads
// configuration, opens a sample source, builds the protocol registry and
// sink fan-out, and drives the pipeline until interrupted or the
// duration cap elapses.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/doismellburning/ism433/internal/config"
	"github.com/doismellburning/ism433/internal/device"
	"github.com/doismellburning/ism433/internal/pipeline"
	"github.com/doismellburning/ism433/internal/registry"
	"github.com/doismellburning/ism433/internal/rlog"
	"github.com/doismellburning/ism433/internal/sink"
	"github.com/doismellburning/ism433/internal/source"
	"github.com/doismellburning/ism433/internal/stats"
)

func main() {
	if err := run(); err != nil {
		rlog.Pipeline.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run() error {
	fs := pflag.NewFlagSet("ism433", pflag.ExitOnError)
	fv := config.Flags(fs)
	verbose := fs.CountP("verbose", "v", "increase log verbosity, repeatable")
	if err := fs.Parse(os.Args[1:]); err != nil {
		return err
	}

	cfg, err := config.Load(fv.ConfigPath)
	if err != nil {
		return err
	}
	config.BindFlags(cfg, fs, fv)

	setVerbosity(*verbose)

	// Generated up front so it can be handed both to sinks built here
	// (the syslog sink's PROCID) and to the Pipeline constructed below.
	sessionID := uuid.New().String()

	src, err := openSource(cfg)
	if err != nil {
		return fmt.Errorf("opening sample source: %w", err)
	}
	defer src.Close()

	reg, err := buildRegistry(cfg)
	if err != nil {
		return fmt.Errorf("building protocol registry: %w", err)
	}
	reg.Select(cfg.SelectedProtocols)
	reg.ReportUnknown = cfg.ReportUnknown
	reg.RecomputeSamples(cfg.SampleRate)

	sinks, closeSinks, err := buildSinks(cfg, sessionID)
	if err != nil {
		return fmt.Errorf("wiring sinks: %w", err)
	}
	defer closeSinks()

	if cfg.DiscoveryName != "" {
		d := sink.Announce(cfg.DiscoveryName, discoveryPort(cfg))
		defer d.Close()
	}

	promReg := prometheus.NewRegistry()
	statsReg := stats.NewRegistry(promReg)
	if cfg.MetricsAddr != "" {
		go serveMetrics(promReg, cfg.MetricsAddr)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	p := pipeline.New(cfg, sessionID, src, reg, sinks, statsReg)
	rlog.Pipeline.Info("starting", "session", p.SessionID, "devices", len(reg.Descriptors()))

	go func() {
		<-ctx.Done()
		p.Stop()
	}()

	if err := p.Run(ctx, source.DefaultBlockSize); err != nil {
		return fmt.Errorf("pipeline run: %w", err)
	}
	rlog.Pipeline.Info("stopped", "events", p.TotalEvents())
	return nil
}

func setVerbosity(count int) {
	switch {
	case count >= 2:
		rlog.SetLevel(log.DebugLevel)
	case count == 1:
		rlog.SetLevel(log.InfoLevel)
	default:
		rlog.SetLevel(log.WarnLevel)
	}
}

// openSource interprets cfg.Device, a "kind:arg[:arg...]" query string
// (e.g. "file:/tmp/capture.cu8", "serial:/dev/ttyUSB0:9600",
// "pulseook:/tmp/capture.ook", "soundcard"), into a concrete source.Source.
// Concrete SDR device control is deliberately out of this CLI's scope;
// a live SDR enters via an external caller using source.NewSDRSource
// directly.
func openSource(cfg *config.Config) (source.Source, error) {
	parts := strings.Split(cfg.Device, ":")
	kind := parts[0]
	switch kind {
	case "", "file":
		if len(parts) < 2 {
			return nil, fmt.Errorf("device %q: file source needs a path", cfg.Device)
		}
		return source.OpenFile(parts[1], cfg.SampleRate)
	case "pulseook":
		if len(parts) < 2 {
			return nil, fmt.Errorf("device %q: pulseook source needs a path", cfg.Device)
		}
		return source.OpenPulseOOK(parts[1], cfg.SampleRate)
	case "serial":
		if len(parts) < 3 {
			return nil, fmt.Errorf("device %q: serial source needs path:baud", cfg.Device)
		}
		baud, err := strconv.Atoi(parts[2])
		if err != nil {
			return nil, fmt.Errorf("device %q: bad baud rate: %w", cfg.Device, err)
		}
		return source.OpenSerialPulseSource(parts[1], baud, cfg.SampleRate)
	case "soundcard":
		framesPerBuffer := source.DefaultBlockSize / 2
		return source.OpenSoundcard(cfg.SampleRate, framesPerBuffer)
	default:
		return nil, fmt.Errorf("device %q: unrecognized source kind %q", cfg.Device, kind)
	}
}

// buildRegistry registers every flex decoder spec in cfg.FlexDevices.
// The core ships no built-in protocol decoders; operators supply
// descriptors via -X flex specs.
func buildRegistry(cfg *config.Config) (*registry.Registry, error) {
	parsed, err := parseFlexDevices(cfg.FlexDevices)
	if err != nil {
		return nil, err
	}
	return registry.New(parsed, nil), nil
}

func buildSinks(cfg *config.Config, sessionID string) (*sink.Multi, func(), error) {
	deviceless := [][]string{{"time", "model", "id"}}
	m := sink.NewMulti()
	var opened []sink.Sink

	closeAll := func() {
		for _, s := range opened {
			if err := s.Close(); err != nil {
				rlog.Sink.Warn("sink close failed", "err", err)
			}
		}
	}

	if len(cfg.Sinks) == 0 {
		kv := sink.NewKV(os.Stdout)
		m.Add(kv)
		opened = append(opened, kv)
		return m, closeAll, nil
	}

	for _, sc := range cfg.Sinks {
		s, err := openSink(sc, deviceless, sessionID)
		if err != nil {
			closeAll()
			return nil, func() {}, err
		}
		m.Add(s)
		opened = append(opened, s)
	}
	return m, closeAll, nil
}

func openSink(sc config.SinkConfig, deviceFields [][]string, sessionID string) (sink.Sink, error) {
	switch sc.Kind {
	case "kv":
		return sink.NewKV(os.Stdout), nil
	case "csv":
		return sink.NewCSV(os.Stdout, deviceFields), nil
	case "json":
		return sink.NewJSON(os.Stdout), nil
	case "syslog":
		return sink.NewSyslog(sc.SyslogAddr, "ism433", sessionID)
	case "mqtt":
		return sink.NewMQTT(sc.MQTTBroker, "ism433", sc.MQTTTopic, 0)
	case "websocket":
		ws := sink.NewWebSocket()
		go serveWebsocket(ws, sc.WSListenAddr)
		return ws, nil
	case "gpio":
		return sink.NewGPIO(sc.GPIOChip, sc.GPIOLine)
	default:
		return nil, fmt.Errorf("sink: unrecognized kind %q", sc.Kind)
	}
}

// serveMetrics exposes the run's Prometheus registry on addr until the
// listener fails; like the websocket listener, a scrape endpoint failing
// to bind shouldn't abort an otherwise-healthy pipeline run.
func serveMetrics(reg *prometheus.Registry, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, mux); err != nil {
		rlog.Pipeline.Error("metrics listener exited", "addr", addr, "err", err)
	}
}

// serveWebsocket runs the sink's HTTP upgrade endpoint until the listener
// fails, logged rather than propagated since a websocket sink failing to
// bind shouldn't abort an otherwise-healthy pipeline run.
func serveWebsocket(ws *sink.WebSocket, addr string) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", ws.ServeHTTP)
	if err := http.ListenAndServe(addr, mux); err != nil {
		rlog.Sink.Error("websocket sink listener exited", "addr", addr, "err", err)
	}
}

func discoveryPort(cfg *config.Config) int {
	for _, sc := range cfg.Sinks {
		if sc.Kind == "websocket" {
			if _, portStr, ok := strings.Cut(sc.WSListenAddr, ":"); ok {
				if p, err := strconv.Atoi(portStr); err == nil {
					return p
				}
			}
		}
	}
	return 0
}

// parseFlexDevices turns the configured flex spec strings into
// descriptors via registry.ParseFlex.
func parseFlexDevices(specs []string) ([]*device.Descriptor, error) {
	out := make([]*device.Descriptor, 0, len(specs))
	for _, spec := range specs {
		d, err := registry.ParseFlex(spec)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}
