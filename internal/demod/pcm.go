package demod

import (
	"github.com/doismellburning/ism433/internal/bitbuf"
	"github.com/doismellburning/ism433/internal/device"
	"github.com/doismellburning/ism433/internal/pulse"
)

// PCM implements Pulse Code Modulation with Return-to-Zero encoding
// (OOK_PCM_RZ) and its FSK analog (FSK_PCM): bit width is short_width
// samples, a pulse run contributes that many '1' bits, a gap run that many
// '0' bits. A gap past reset_limit ends the row; a gap matching
// sync_width (when set) also ends the current row if it holds bits, and
// contributes no bits itself.
func PCM(d *pulse.Data, dev *device.Descriptor, out *bitbuf.BitBuffer) int {
	t := &dev.Timing
	if t.SShortWidth <= 0 {
		return 0
	}
	out.Clear()
	out.AddRow()
	events := 0

	for i := 0; i < d.NumPulses; i++ {
		appendRZRun(d.Pulse[i], t.SShortWidth, t.STolerance, 1, out)

		gap := d.Gap[i]
		if gap == 0 {
			break // end of stream
		}
		if t.SSyncWidth > 0 && within(gap, t.SSyncWidth, t.STolerance) {
			if out.NumBits(out.NumRows-1) > 0 {
				events++
				out.AddRow()
			}
			continue
		}
		if t.SResetLimit > 0 && gap > t.SResetLimit {
			if out.NumBits(out.NumRows-1) > 0 {
				events++
			}
			out.AddRow()
			continue
		}
		appendRZRun(gap, t.SShortWidth, t.STolerance, 0, out)
	}
	if out.NumBits(out.NumRows-1) > 0 {
		events++
	}
	return events
}

// appendRZRun rounds a run's width to the nearest multiple of unit samples
// and emits that many copies of bit.
func appendRZRun(width, unit, tolerance, bit int, out *bitbuf.BitBuffer) {
	n := roundDiv(width, unit)
	if n < 1 {
		n = 1
	}
	_ = tolerance // width/unit ratio already absorbs small jitter
	for i := 0; i < n; i++ {
		out.AddBit(bit)
	}
}

func roundDiv(a, b int) int {
	if b <= 0 {
		return 0
	}
	return (a + b/2) / b
}
