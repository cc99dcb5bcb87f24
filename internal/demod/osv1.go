package demod

import (
	"github.com/doismellburning/ism433/internal/bitbuf"
	"github.com/doismellburning/ism433/internal/device"
	"github.com/doismellburning/ism433/internal/pulse"
)

// OSV1 implements the Oregon Scientific v1 PWM variant: it is ordinary PWM
// (short pulse = 1, long pulse = 0) preceded by a preamble of pulses that
// OSV1 devices use for AGC settling. When sync_width is configured, leading
// pulses within tolerance of sync_width are consumed as preamble and
// produce no bits; there is no limit on their count, and decoding proper
// starts at the first pulse outside that tolerance. A gap past
// reset_limit starts a new row and re-arms the preamble.
func OSV1(d *pulse.Data, dev *device.Descriptor, out *bitbuf.BitBuffer) int {
	t := &dev.Timing
	out.Clear()
	out.AddRow()
	events := 0
	inPreamble := t.SSyncWidth > 0

	for i := 0; i < d.NumPulses; i++ {
		if inPreamble {
			if within(d.Pulse[i], t.SSyncWidth, t.STolerance) {
				continue // preamble pulse, no bit
			}
			inPreamble = false
		}
		switch {
		case within(d.Pulse[i], t.SShortWidth, t.STolerance):
			out.AddBit(1)
		case within(d.Pulse[i], t.SLongWidth, t.STolerance):
			out.AddBit(0)
		}

		gap := d.Gap[i]
		if gap == 0 {
			break
		}
		if t.SResetLimit > 0 && gap > t.SResetLimit {
			if out.NumBits(out.NumRows-1) > 0 {
				events++
			}
			out.AddRow()
			inPreamble = t.SSyncWidth > 0
		}
	}
	if out.NumBits(out.NumRows-1) > 0 {
		events++
	}
	return events
}
