package demod

import (
	"github.com/doismellburning/ism433/internal/bitbuf"
	"github.com/doismellburning/ism433/internal/device"
	"github.com/doismellburning/ism433/internal/pulse"
)

// PIWM implements Pulse-Interval Width Modulation (OOK_PIWM_RAW /
// OOK_PIWM_DC): every level shift is itself a bit — a short interval
// (pulse or gap close to short_width) is a 1, a long interval (close to
// long_width) is a 0. RAW and DC variants are decoded identically by this
// rule, and the descriptor's Invert flag is not consulted.
func PIWM(d *pulse.Data, dev *device.Descriptor, out *bitbuf.BitBuffer) int {
	t := &dev.Timing
	out.Clear()
	out.AddRow()
	events := 0

	emit := func(width int) {
		switch {
		case within(width, t.SShortWidth, t.STolerance):
			out.AddBit(1)
		case within(width, t.SLongWidth, t.STolerance):
			out.AddBit(0)
		}
	}

	for i := 0; i < d.NumPulses; i++ {
		emit(d.Pulse[i])
		gap := d.Gap[i]
		if gap == 0 {
			break
		}
		if t.SResetLimit > 0 && gap > t.SResetLimit {
			if out.NumBits(out.NumRows-1) > 0 {
				events++
			}
			out.AddRow()
			continue
		}
		emit(gap)
	}
	if out.NumBits(out.NumRows-1) > 0 {
		events++
	}
	return events
}
