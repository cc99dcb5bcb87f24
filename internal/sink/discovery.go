package sink

import (
	"context"
	"fmt"

	"github.com/brutella/dnssd"

	"github.com/doismellburning/ism433/internal/rlog"
)

// serviceType is the mDNS/DNS-SD service type this module advertises so
// monitoring tools (a KV viewer, a syslog collector) can find a running
// instance without being told its address.
const serviceType = "_ism433._udp"

// Discovery advertises a running instance over mDNS at the port its
// caller passes to Announce. Best-effort: failures are logged, never fatal to
// pipeline startup.
type Discovery struct {
	responder dnssd.Responder
	cancel    context.CancelFunc
}

// Announce advertises name/port and starts responding in the background.
// Returns nil (not an error) if responder setup fails, after logging —
// discovery is a convenience, never a required dependency of a sink.
func Announce(name string, port int) *Discovery {
	cfg := dnssd.Config{Name: name, Type: serviceType, Port: port} //nolint:exhaustruct
	svc, err := dnssd.NewService(cfg)
	if err != nil {
		rlog.Sink.Error("dnssd: create service", "err", err)
		return nil
	}
	rp, err := dnssd.NewResponder()
	if err != nil {
		rlog.Sink.Error("dnssd: create responder", "err", err)
		return nil
	}
	if _, err := rp.Add(svc); err != nil {
		rlog.Sink.Error("dnssd: add service", "err", err)
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Discovery{responder: rp, cancel: cancel}
	go func() {
		if err := rp.Respond(ctx); err != nil && ctx.Err() == nil {
			rlog.Sink.Error("dnssd: responder exited", "err", err)
		}
	}()
	rlog.Sink.Info("dnssd: announcing", "name", name, "type", serviceType, "port", fmt.Sprint(port))
	return d
}

// Close stops the background responder.
func (d *Discovery) Close() {
	if d == nil {
		return
	}
	d.cancel()
}
