package pulse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRate = 250000

// fillAM builds an AM buffer with a low noise floor, then appends the
// given (level, width) runs, then pads with the floor again.
func fillAM(leadIn int, runs [][2]int, tail int) []int16 {
	const floor = 50
	var buf []int16
	for i := 0; i < leadIn; i++ {
		buf = append(buf, floor)
	}
	for _, r := range runs {
		for i := 0; i < r[1]; i++ {
			buf = append(buf, int16(r[0]))
		}
	}
	for i := 0; i < tail; i++ {
		buf = append(buf, floor)
	}
	return buf
}

func TestDetectEmitsBarePPMPackage(t *testing.T) {
	// 8 pulses of 50 samples at full level, gaps alternating 100/500,
	// closed by a terminal gap long enough to trip end-of-package.
	runs := [][2]int{}
	gaps := []int{100, 500, 100, 500, 100, 500, 100}
	for i := 0; i < 8; i++ {
		runs = append(runs, [2]int{5000, 50})
		if i < len(gaps) {
			runs = append(runs, [2]int{50, gaps[i]})
		}
	}
	am := fillAM(1100, runs, 2600)
	fm := make([]int16, len(am))

	var ook, fsk Data
	d := NewDetector()
	result := d.Detect(am, fm, len(am), 0, testRate, 0, &ook, &fsk)

	require.Equal(t, OOK, result)
	require.Equal(t, 8, ook.NumPulses)
	for i := 0; i < 8; i++ {
		assert.Equal(t, 50, ook.Pulse[i], "pulse %d", i)
	}
	for i, want := range gaps {
		assert.Equal(t, want, ook.Gap[i], "gap %d", i)
	}
	assert.GreaterOrEqual(t, ook.OOKHighEstimate, int32(1000))
	assert.LessOrEqual(t, ook.OOKHighEstimate, int32(16384))
}

func TestDetectRejectsSpuriousGlitch(t *testing.T) {
	// A 2-sample excursion above threshold amidst flat noise must never
	// increment num_pulses or emit a package.
	am := fillAM(1500, [][2]int{{5000, 2}}, 1500)
	fm := make([]int16, len(am))

	var ook, fsk Data
	d := NewDetector()
	result := d.Detect(am, fm, len(am), 0, testRate, 0, &ook, &fsk)

	assert.Equal(t, OutOfData, result)
	assert.Equal(t, 0, ook.NumPulses)
	assert.Equal(t, 0, fsk.NumPulses)
}

func TestDetectEmitsFSKPackage(t *testing.T) {
	// An FSK burst looks like one long OOK pulse: AM stays high for the
	// whole package while FM alternates between the two tones.
	const leadIn = 1100
	const runLen = 40
	const cycles = 40

	var am, fm []int16
	for i := 0; i < leadIn; i++ {
		am = append(am, 50)
		fm = append(fm, 0)
	}
	// Initial settling interval on the F1 tone.
	for i := 0; i < 200; i++ {
		am = append(am, 8000)
		fm = append(fm, 6000)
	}
	for c := 0; c < cycles; c++ {
		for i := 0; i < runLen; i++ {
			am = append(am, 8000)
			fm = append(fm, -6000)
		}
		for i := 0; i < runLen; i++ {
			am = append(am, 8000)
			fm = append(fm, 6000)
		}
	}
	// Carrier drops: the outer detector closes the package.
	for i := 0; i < 3000; i++ {
		am = append(am, 50)
		fm = append(fm, 0)
	}

	var ook, fsk Data
	d := NewDetector()
	result := d.Detect(am, fm, len(am), 0, testRate, 0, &ook, &fsk)

	require.Equal(t, FSK, result)
	assert.GreaterOrEqual(t, fsk.NumPulses, MinPulses)
	assert.Greater(t, fsk.FSKF1Est, int32(0))
	assert.Less(t, fsk.FSKF2Est, int32(0))
}

func TestDetectManualLevelLimitOverridesAdaptive(t *testing.T) {
	// With a manual level limit the pulse is accepted or rejected purely
	// against limit +/- limit/8, regardless of the noise floor estimate.
	const limit = 3000

	below := fillAM(1100, [][2]int{{3300, 50}}, 2600) // under limit+limit/8
	fm := make([]int16, len(below))
	var ook, fsk Data
	d := NewDetector()
	result := d.Detect(below, fm, len(below), limit, testRate, 0, &ook, &fsk)
	assert.Equal(t, OutOfData, result)
	assert.Equal(t, 0, ook.NumPulses)

	above := fillAM(1100, [][2]int{{4000, 50}}, 2600)
	fm = make([]int16, len(above))
	d = NewDetector()
	result = d.Detect(above, fm, len(above), limit, testRate, 0, &ook, &fsk)
	assert.Equal(t, OOK, result)
	assert.Equal(t, 1, ook.NumPulses)
}

func TestDetectLowEstimateSettlesToInputMean(t *testing.T) {
	// A continuous no-pulse stream settles the noise floor estimator to
	// the input mean within 1% after 16 * ookEstLowRatio samples.
	const mean = 2000
	n := 16 * ookEstLowRatio
	am := make([]int16, n)
	for i := range am {
		am[i] = mean
	}
	fm := make([]int16, n)

	var ook, fsk Data
	d := NewDetector()
	result := d.Detect(am, fm, n, 0, testRate, 0, &ook, &fsk)

	assert.Equal(t, OutOfData, result)
	assert.InDelta(t, mean, d.lowEstimate, mean/100)
}

func TestDetectStatePersistsAcrossBlocks(t *testing.T) {
	// A package split across two Detect calls must still come out whole:
	// the estimators and the in-progress pulse survive the block boundary.
	runs := [][2]int{{5000, 50}, {50, 100}, {5000, 50}}
	am := fillAM(1100, runs, 2600)
	fm := make([]int16, len(am))

	split := 1100 + 25 // mid-pulse
	var ook, fsk Data
	d := NewDetector()

	result := d.Detect(am[:split], fm[:split], split, 0, testRate, 0, &ook, &fsk)
	require.Equal(t, OutOfData, result)

	result = d.Detect(am[split:], fm[split:], len(am)-split, 0, testRate, int64(split), &ook, &fsk)
	require.Equal(t, OOK, result)
	assert.Equal(t, 2, ook.NumPulses)
	assert.Equal(t, 50, ook.Pulse[0])
	assert.Equal(t, 100, ook.Gap[0])
	assert.Equal(t, 50, ook.Pulse[1])
}
