package demod

import (
	"github.com/doismellburning/ism433/internal/bitbuf"
	"github.com/doismellburning/ism433/internal/device"
	"github.com/doismellburning/ism433/internal/pulse"
)

// Manchester implements OOK/FSK Manchester-zerobit decoding: the signal is
// clocked at short_width (one half-bit per tick); a rising edge (gap
// ending, pulse starting) is bit 0, a falling edge (pulse ending, gap
// starting) is bit 1. The very first half-bit is forced to zero to fix
// the starting phase. A gap past reset_limit starts a new row.
func Manchester(d *pulse.Data, dev *device.Descriptor, out *bitbuf.BitBuffer) int {
	t := &dev.Timing
	if t.SShortWidth <= 0 {
		return 0
	}
	out.Clear()
	out.AddRow()
	out.AddBit(0) // forced first half-bit
	events := 0

	for i := 0; i < d.NumPulses; i++ {
		emitHalfBitRun(d.Pulse[i], t.SShortWidth, 1, out)

		gap := d.Gap[i]
		if gap == 0 {
			break
		}
		if t.SResetLimit > 0 && gap > t.SResetLimit {
			if out.NumBits(out.NumRows-1) > 1 {
				events++
			}
			out.AddRow()
			continue
		}
		emitHalfBitRun(gap, t.SShortWidth, 0, out)
	}
	if out.NumBits(out.NumRows-1) > 1 {
		events++
	}
	return events
}

// emitHalfBitRun rounds width to 1 or 2 half-bit units and emits the
// corresponding edge-derived bit that many times: a falling edge (level==1,
// the pulse ending) encodes 1, a rising edge (level==0, the gap ending)
// encodes 0.
func emitHalfBitRun(width, halfBit, level int, out *bitbuf.BitBuffer) {
	units := roundDiv(width, halfBit)
	if units < 1 {
		units = 1
	}
	if units > 2 {
		units = 2
	}
	bit := 0
	if level == 1 {
		bit = 1
	}
	for i := 0; i < units; i++ {
		out.AddBit(bit)
	}
}
