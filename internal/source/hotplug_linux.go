//go:build linux

package source

import (
	"context"

	"github.com/jochenvg/go-udev"

	"github.com/doismellburning/ism433/internal/rlog"
)

// HotplugEvent reports one USB attach/detach transition for a monitored
// SDR dongle, driving the source lifecycle's reset/activate/close
// calls instead of requiring the operator to restart the pipeline when
// a dongle is unplugged and replugged.
type HotplugEvent struct {
	Action  string // "add" or "remove"
	DevNode string
}

// WatchUSBHotplug starts a udev netlink monitor filtered to the usb
// subsystem and streams attach/detach events on the returned channel
// until ctx is canceled.
func WatchUSBHotplug(ctx context.Context) (<-chan HotplugEvent, error) {
	u := udev.Udev{}
	mon := u.NewMonitorFromNetlink("udev")
	if err := mon.FilterAddMatchSubsystem("usb"); err != nil {
		return nil, err
	}

	devices, err := mon.DeviceChan(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan HotplugEvent)
	go func() {
		defer close(out)
		for dev := range devices {
			ev := HotplugEvent{Action: dev.Action(), DevNode: dev.Devnode()}
			rlog.Source.Debug("usb hotplug", "action", ev.Action, "devnode", ev.DevNode)
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
