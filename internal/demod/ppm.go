package demod

import (
	"github.com/doismellburning/ism433/internal/bitbuf"
	"github.com/doismellburning/ism433/internal/device"
	"github.com/doismellburning/ism433/internal/pulse"
)

// PPM implements Pulse Position Modulation (OOK_PPM): the pulse width is
// fixed and carries no data; the gap that follows encodes the bit — a gap
// near short_width is 0, a gap near long_width is 1 (classified by nearest
// neighbor rather than a fixed midpoint, matching the analyzer's own
// nearest-bin convention). A gap exceeding gap_limit ends the row; a gap
// exceeding reset_limit additionally resets decoding (both treated as row
// breaks here since state is per-call).
func PPM(d *pulse.Data, dev *device.Descriptor, out *bitbuf.BitBuffer) int {
	t := &dev.Timing
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
		if t.SGapLimit > 0 && gap > t.SGapLimit {
			if out.NumBits(out.NumRows-1) > 0 {
				events++
			}
			out.AddRow()
			continue
		}
		distShort := abs(gap - t.SShortWidth)
		distLong := abs(gap - t.SLongWidth)
		if distShort <= distLong {
			out.AddBit(0)
		} else {
			out.AddBit(1)
		}
	}
	if out.NumBits(out.NumRows-1) > 0 {
		events++
	}
	return events
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
