package demod_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doismellburning/ism433/internal/bitbuf"
	"github.com/doismellburning/ism433/internal/demod"
	"github.com/doismellburning/ism433/internal/device"
	"github.com/doismellburning/ism433/internal/pulse"
)

func TestDispatchFskPwm(t *testing.T) {
	fn := demod.Dispatch(device.FskPWM)
	require.NotNil(t, fn)

	var d pulse.Data
	d.NumPulses = 3
	d.Pulse[0], d.Gap[0] = 100, 300
	d.Pulse[1], d.Gap[1] = 400, 300
	d.Pulse[2], d.Gap[2] = 100, 0

	dev := &device.Descriptor{
		Timing: device.Timing{
			SShortWidth: 100,
			SLongWidth:  400,
			STolerance:  40,
		},
	}

	var bits bitbuf.BitBuffer
	events := fn(&d, dev, &bits)
	require.Equal(t, 1, events)
	assert.Equal(t, []int{1, 0, 1}, []int{bits.Bit(0, 0), bits.Bit(0, 1), bits.Bit(0, 2)})
}

func TestPWMShortLong(t *testing.T) {
	var d pulse.Data
	d.NumPulses = 3
	d.Pulse[0], d.Gap[0] = 100, 300 // short pulse -> 1
	d.Pulse[1], d.Gap[1] = 400, 300 // long pulse -> 0
	d.Pulse[2], d.Gap[2] = 100, 0

	dev := &device.Descriptor{
		Timing: device.Timing{
			SShortWidth: 100,
			SLongWidth:  400,
			STolerance:  40,
		},
	}

	var bits bitbuf.BitBuffer
	events := demod.PWM(&d, dev, &bits)

	require.Equal(t, 1, events)
	require.Equal(t, 3, bits.NumBits(0))
	assert.Equal(t, []int{1, 0, 1}, []int{bits.Bit(0, 0), bits.Bit(0, 1), bits.Bit(0, 2)})
}

func TestPWMInverted(t *testing.T) {
	var d pulse.Data
	d.NumPulses = 2
	d.Pulse[0], d.Gap[0] = 100, 300
	d.Pulse[1], d.Gap[1] = 100, 0

	dev := &device.Descriptor{
		Invert: true,
		Timing: device.Timing{
			SShortWidth: 100,
			SLongWidth:  400,
			STolerance:  40,
		},
	}

	var bits bitbuf.BitBuffer
	demod.PWM(&d, dev, &bits)
	assert.Equal(t, 0, bits.Bit(0, 0))
}

func TestManchesterProducesBits(t *testing.T) {
	var d pulse.Data
	d.NumPulses = 6
	for i := 0; i < 6; i++ {
		d.Pulse[i] = 100
		d.Gap[i] = 100
	}
	d.Gap[5] = 0

	dev := &device.Descriptor{
		Timing: device.Timing{SShortWidth: 100, STolerance: 30},
	}

	var bits bitbuf.BitBuffer
	events := demod.Manchester(&d, dev, &bits)
	require.Equal(t, 1, events)
	assert.Greater(t, bits.NumBits(0), 1)
}

func TestDMCProducesBits(t *testing.T) {
	var d pulse.Data
	d.NumPulses = 4
	d.Pulse[0], d.Gap[0] = 100, 100 // full cycle = 2*short -> bit 1
	d.Pulse[1], d.Gap[1] = 100, 50  // short leg -> bit 0
	d.Pulse[2], d.Gap[2] = 100, 100
	d.Pulse[3], d.Gap[3] = 100, 0

	dev := &device.Descriptor{
		Timing: device.Timing{SShortWidth: 100, STolerance: 30},
	}

	var bits bitbuf.BitBuffer
	events := demod.DMC(&d, dev, &bits)
	require.Equal(t, 1, events)
	assert.Equal(t, 3, bits.NumBits(0))
}

func TestPIWMShortLong(t *testing.T) {
	var d pulse.Data
	d.NumPulses = 2
	d.Pulse[0], d.Gap[0] = 100, 400
	d.Pulse[1], d.Gap[1] = 400, 0

	dev := &device.Descriptor{
		Timing: device.Timing{SShortWidth: 100, SLongWidth: 400, STolerance: 40},
	}

	var bits bitbuf.BitBuffer
	events := demod.PIWM(&d, dev, &bits)
	require.Equal(t, 1, events)
	assert.Equal(t, []int{1, 0, 0}, []int{bits.Bit(0, 0), bits.Bit(0, 1), bits.Bit(0, 2)})
}

func TestOSV1SkipsPreamble(t *testing.T) {
	var d pulse.Data
	d.NumPulses = 5
	// Three preamble pulses at sync_width, then two data pulses.
	d.Pulse[0], d.Gap[0] = 50, 200
	d.Pulse[1], d.Gap[1] = 50, 200
	d.Pulse[2], d.Gap[2] = 50, 200
	d.Pulse[3], d.Gap[3] = 100, 300 // short -> bit 1
	d.Pulse[4], d.Gap[4] = 400, 0   // long -> bit 0

	dev := &device.Descriptor{
		Timing: device.Timing{
			SSyncWidth:  50,
			SShortWidth: 100,
			SLongWidth:  400,
			STolerance:  30,
		},
	}

	var bits bitbuf.BitBuffer
	events := demod.OSV1(&d, dev, &bits)
	require.Equal(t, 1, events)
	require.Equal(t, 2, bits.NumBits(0))
	assert.Equal(t, []int{1, 0}, []int{bits.Bit(0, 0), bits.Bit(0, 1)})
}
