package demod

import (
	"github.com/doismellburning/ism433/internal/bitbuf"
	"github.com/doismellburning/ism433/internal/device"
	"github.com/doismellburning/ism433/internal/pulse"
)

// DMC implements Differential Manchester Coding: unlike plain Manchester,
// the data bit is carried by whether a level shift happens at all within a
// clock cycle (a transition mid-cycle means 0, none means 1), rather than
// by the direction of the transition. We approximate this by comparing
// each pulse+gap pair (one full clock cycle) against short_width: a cycle
// close to 2*short_width (one transition, at the cycle boundary only)
// yields bit 1; a cycle split into two short_width halves (an extra
// mid-cycle transition) yields bit 0.
func DMC(d *pulse.Data, dev *device.Descriptor, out *bitbuf.BitBuffer) int {
	t := &dev.Timing
	if t.SShortWidth <= 0 {
		return 0
	}
	out.Clear()
	out.AddRow()
	events := 0

	for i := 0; i < d.NumPulses; i++ {
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
		cycle := d.Pulse[i] + gap
		switch {
		case within(cycle, 2*t.SShortWidth, t.STolerance):
			out.AddBit(1)
		case within(d.Pulse[i], t.SShortWidth, t.STolerance) || within(gap, t.SShortWidth, t.STolerance):
			out.AddBit(0)
		}
	}
	if out.NumBits(out.NumRows-1) > 0 {
		events++
	}
	return events
}
