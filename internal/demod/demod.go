// Package demod implements the stateless line-code demodulators: pure
// functions mapping a pulse.Data + device.Descriptor to a
// bitbuf.BitBuffer. Each compares observed pulse/gap widths against the
// device's expected widths within a per-device tolerance.
package demod

import (
	"github.com/doismellburning/ism433/internal/bitbuf"
	"github.com/doismellburning/ism433/internal/device"
	"github.com/doismellburning/ism433/internal/pulse"
)

// Func is the shape every line-code demodulator implements: consume a
// pulse package plus device timing, produce a bit matrix and an event
// count (0 = no match).
type Func func(d *pulse.Data, dev *device.Descriptor, out *bitbuf.BitBuffer) int

// within reports whether actual is within tolerance samples of expected.
func within(actual, expected, tolerance int) bool {
	diff := actual - expected
	if diff < 0 {
		diff = -diff
	}
	return diff < tolerance
}

// Dispatch maps a device's modulation to its demodulator function.
func Dispatch(m device.Modulation) Func {
	switch m {
	case device.OokPCMRZ, device.FskPCM:
		return PCM
	case device.OokPPM:
		return PPM
	case device.OokPWM, device.FskPWM:
		return PWM
	case device.OokManchesterZerobit, device.FskManchesterZerobit:
		return Manchester
	case device.OokDMC:
		return DMC
	case device.OokPIWMRaw, device.OokPIWMDC:
		return PIWM
	case device.OokPWMOSV1:
		return OSV1
	default:
		return nil
	}
}
