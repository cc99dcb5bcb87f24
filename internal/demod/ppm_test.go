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

// TestPPMBareScenario: 50-sample pulses
// with gaps alternating 100/500 samples at 250 kHz should decode as
// alternating 0/1 bits in a single row.
func TestPPMBareScenario(t *testing.T) {
	var d pulse.Data
	d.NumPulses = 8
	gaps := []int{100, 500, 100, 500, 100, 500, 100, 0}
	for i := 0; i < 8; i++ {
		d.Pulse[i] = 50
		d.Gap[i] = gaps[i]
	}

	dev := &device.Descriptor{
		Modulation: device.OokPPM,
		Timing: device.Timing{
			SShortWidth: 100,
			SLongWidth:  500,
		},
	}

	var bits bitbuf.BitBuffer
	events := demod.PPM(&d, dev, &bits)

	require.Equal(t, 1, events)
	require.Equal(t, 1, bits.NumRows)
	assert.Equal(t, 7, bits.NumBits(0))
	want := []int{0, 1, 0, 1, 0, 1, 0}
	for i, w := range want {
		assert.Equalf(t, w, bits.Bit(0, i), "bit %d", i)
	}
}

func TestPPMRowBreakOnGapLimit(t *testing.T) {
	var d pulse.Data
	d.NumPulses = 4
	d.Pulse[0], d.Gap[0] = 50, 100
	d.Pulse[1], d.Gap[1] = 50, 9000 // exceeds gap_limit: row break
	d.Pulse[2], d.Gap[2] = 50, 500
	d.Pulse[3], d.Gap[3] = 50, 0

	dev := &device.Descriptor{
		Timing: device.Timing{
			SShortWidth: 100,
			SLongWidth:  500,
			SGapLimit:   1000,
		},
	}

	var bits bitbuf.BitBuffer
	events := demod.PPM(&d, dev, &bits)

	require.Equal(t, 2, events)
	require.Equal(t, 2, bits.NumRows)
	assert.Equal(t, 1, bits.NumBits(0))
	assert.Equal(t, 1, bits.NumBits(1))
}
