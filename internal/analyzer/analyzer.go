package analyzer

import (
	"fmt"

	"github.com/doismellburning/ism433/internal/bitbuf"
	"github.com/doismellburning/ism433/internal/demod"
	"github.com/doismellburning/ism433/internal/device"
	"github.com/doismellburning/ism433/internal/pulse"
)

// Report is the result of analyzing one captured package: the three
// histograms, the modulation guess, and the outcome of feeding the guess
// back through its own demodulator.
type Report struct {
	Pulses  Histogram
	Gaps    Histogram
	Periods Histogram
	Guess   Guess

	TrialEvents int
	TrialBits   bitbuf.BitBuffer
}

// Analyze builds the pulse/gap/period histograms for data, classifies the
// modulation, and (when a guess was matched) runs a trial demodulation
// with a forced terminal gap so the package is guaranteed to close.
func Analyze(data *pulse.Data) Report {
	var rep Report
	if data.NumPulses == 0 {
		return rep
	}

	periods := make([]int, data.NumPulses)
	for i := 0; i < data.NumPulses; i++ {
		periods[i] = data.Period(i)
	}

	rep.Pulses.Sum(data.Pulse[:data.NumPulses])
	if data.NumPulses > 1 {
		rep.Gaps.Sum(data.Gap[:data.NumPulses-1])
		rep.Periods.Sum(periods[:data.NumPulses-1])
	}
	rep.Pulses.FuseBins()
	rep.Gaps.FuseBins()
	rep.Periods.FuseBins()

	rep.Guess = Classify(data.NumPulses, &rep.Pulses, &rep.Gaps, &rep.Periods)
	if !rep.Guess.Matched {
		return rep
	}

	fn := demod.Dispatch(rep.Guess.Modulation)
	if fn == nil {
		return rep
	}

	trial := *data
	if trial.NumPulses > 0 {
		trial.Gap[trial.NumPulses-1] = rep.Guess.Timing.SResetLimit + 1
	}
	dev := &device.Descriptor{Name: "analyzer", Modulation: rep.Guess.Modulation, Timing: rep.Guess.Timing}
	rep.TrialEvents = fn(&trial, dev, &rep.TrialBits)

	return rep
}

// FlexString renders the guessed modulation and its sample-domain timings
// as a "flex decoder" spec string, converting sample widths to
// microseconds at the given sample rate.
func (g Guess) FlexString(sampleRate uint32) string {
	if !g.Matched {
		return ""
	}
	toUS := func(samples int) float64 {
		if sampleRate == 0 {
			return 0
		}
		return float64(samples) * 1e6 / float64(sampleRate)
	}
	t := g.Timing

	switch g.Modulation {
	case device.FskPCM:
		return fmt.Sprintf("n=name,m=FSK_PCM,s=%.0f,l=%.0f,r=%.0f",
			toUS(t.SShortWidth), toUS(t.SLongWidth), toUS(t.SResetLimit))
	case device.OokPPM:
		return fmt.Sprintf("n=name,m=OOK_PPM,s=%.0f,l=%.0f,g=%.0f,r=%.0f",
			toUS(t.SShortWidth), toUS(t.SLongWidth), toUS(t.SGapLimit), toUS(t.SResetLimit))
	case device.OokPWM:
		return fmt.Sprintf("n=name,m=OOK_PWM,s=%.0f,l=%.0f,r=%.0f,g=%.0f,t=%.0f,y=%.0f",
			toUS(t.SShortWidth), toUS(t.SLongWidth), toUS(t.SResetLimit),
			toUS(t.SGapLimit), toUS(t.STolerance), toUS(t.SSyncWidth))
	case device.OokManchesterZerobit:
		return fmt.Sprintf("n=name,m=OOK_MC_ZEROBIT,s=%.0f,l=%.0f,r=%.0f",
			toUS(t.SShortWidth), toUS(t.SLongWidth), toUS(t.SResetLimit))
	default:
		return ""
	}
}
