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

func TestPCMAlternatingBits(t *testing.T) {
	var d pulse.Data
	d.NumPulses = 4
	d.Pulse[0], d.Gap[0] = 100, 100
	d.Pulse[1], d.Gap[1] = 100, 100
	d.Pulse[2], d.Gap[2] = 100, 100
	d.Pulse[3], d.Gap[3] = 100, 0

	dev := &device.Descriptor{
		Modulation: device.OokPCMRZ,
		Timing: device.Timing{
			SShortWidth: 100,
			STolerance:  30,
		},
	}

	var bits bitbuf.BitBuffer
	events := demod.PCM(&d, dev, &bits)

	require.Equal(t, 1, events)
	require.Equal(t, 1, bits.NumRows)
	want := []int{1, 0, 1, 0, 1, 0, 1}
	require.Equal(t, len(want), bits.NumBits(0))
	for i, w := range want {
		assert.Equalf(t, w, bits.Bit(0, i), "bit %d", i)
	}
}

func TestPCMRowBreakOnResetLimit(t *testing.T) {
	var d pulse.Data
	d.NumPulses = 3
	d.Pulse[0], d.Gap[0] = 100, 100
	d.Pulse[1], d.Gap[1] = 100, 5000 // exceeds reset_limit
	d.Pulse[2], d.Gap[2] = 100, 0

	dev := &device.Descriptor{
		Timing: device.Timing{
			SShortWidth: 100,
			STolerance:  30,
			SResetLimit: 1000,
		},
	}

	var bits bitbuf.BitBuffer
	events := demod.PCM(&d, dev, &bits)

	require.Equal(t, 2, events)
	require.Equal(t, 2, bits.NumRows)
}
