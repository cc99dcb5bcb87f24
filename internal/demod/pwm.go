package demod

import (
	"github.com/doismellburning/ism433/internal/bitbuf"
	"github.com/doismellburning/ism433/internal/device"
	"github.com/doismellburning/ism433/internal/pulse"
)

// PWM implements Pulse Width Modulation (OOK_PWM): short pulse means bit 1
// (or 0 when the device's timing is inverted), long pulse means the other
// value. The gap that follows a pulse carries no data of its own; it only
// ever distinguishes a sync marker, a row break, or a full reset.
func PWM(d *pulse.Data, dev *device.Descriptor, out *bitbuf.BitBuffer) int {
	t := &dev.Timing
	out.Clear()
	out.AddRow()
	events := 0

	shortBit, longBit := 1, 0
	if dev.Invert {
		shortBit, longBit = 0, 1
	}

	for i := 0; i < d.NumPulses; i++ {
		switch {
		case within(d.Pulse[i], t.SShortWidth, t.STolerance):
			out.AddBit(shortBit)
		case within(d.Pulse[i], t.SLongWidth, t.STolerance):
			out.AddBit(longBit)
		default:
			// Pulse width doesn't match either symbol; skip it
			// rather than abort the whole row.
		}

		gap := d.Gap[i]
		if gap == 0 {
			break
		}
		switch {
		case t.SResetLimit > 0 && gap > t.SResetLimit:
			if out.NumBits(out.NumRows-1) > 0 {
				events++
			}
			out.AddRow()
		case t.SGapLimit > 0 && gap > t.SGapLimit:
			if out.NumBits(out.NumRows-1) > 0 {
				events++
			}
			out.AddRow()
		case t.SSyncWidth > 0 && within(gap, t.SSyncWidth, t.STolerance):
			// Sync marker: no row break, no bit.
		}
	}
	if out.NumBits(out.NumRows-1) > 0 {
		events++
	}
	return events
}
