package analyzer

import "github.com/doismellburning/ism433/internal/device"

// Guess is the analyzer's best-effort modulation classification, enough
// to drive a trial demodulation and to render as a flex decoder spec
// string. A zero-value Guess (Matched == false) means "no clue".
type Guess struct {
	Matched    bool
	Label      string
	Modulation device.Modulation
	Timing     device.Timing // sample-domain widths only; S* fields
}

// Classify runs the fixed cascade from the modulation guide table against
// already-summed, fused pulse/gap/period histograms. hp and hg are
// mean-sorted in place before classification; hp also has its zero bin
// dropped and may be re-sorted by count.
func Classify(numPulses int, hp, hg, hperiod *Histogram) Guess {
	hp.SortMean()
	hg.SortMean()
	hp.DropLeadingZeroBin()

	switch {
	case numPulses == 1:
		return Guess{Label: "single pulse / noise"}

	case hp.Count() == 1 && hg.Count() == 1:
		return Guess{Label: "un-modulated preamble"}

	case hp.Count() == 1 && hg.Count() > 1:
		_, g0mean, _, _ := hg.Bin(0)
		_, g1mean, _, g1max := hg.Bin(1)
		_, _, _, gLastMax := hg.Bin(hg.Count() - 1)
		return Guess{
			Matched:    true,
			Label:      "Pulse Position Modulation with fixed pulse width",
			Modulation: device.OokPPM,
			Timing: device.Timing{
				SShortWidth: g0mean,
				SLongWidth:  g1mean,
				SGapLimit:   g1max + 1,
				SResetLimit: gLastMax + 1,
			},
		}

	case hp.Count() == 2 && hg.Count() == 1:
		return pwmFixed(hp, hg, "Pulse Width Modulation with fixed gap")

	case hp.Count() == 2 && hg.Count() == 2 && hperiod.Count() == 1:
		return pwmFixed(hp, hg, "Pulse Width Modulation with fixed period")

	case hp.Count() == 2 && hg.Count() == 2 && hperiod.Count() == 3:
		_, p0mean, _, _ := hp.Bin(0)
		_, p1mean, _, _ := hp.Bin(1)
		_, _, _, gLastMax := hg.Bin(hg.Count() - 1)
		return Guess{
			Matched:    true,
			Label:      "Manchester coding",
			Modulation: device.OokManchesterZerobit,
			Timing: device.Timing{
				SShortWidth: minInt(p0mean, p1mean),
				SResetLimit: gLastMax + 1,
			},
		}

	case hp.Count() == 2 && hg.Count() >= 3:
		_, p0mean, _, _ := hp.Bin(0)
		_, p1mean, _, _ := hp.Bin(1)
		_, _, _, g1max := hg.Bin(1)
		_, _, _, gLastMax := hg.Bin(hg.Count() - 1)
		return Guess{
			Matched:    true,
			Label:      "Pulse Width Modulation with multiple packets",
			Modulation: device.OokPWM,
			Timing: device.Timing{
				SShortWidth: p0mean,
				SLongWidth:  p1mean,
				SGapLimit:   g1max + 1,
				STolerance:  (p1mean - p0mean) * 4 / 10,
				SResetLimit: gLastMax + 1,
			},
		}

	case hp.Count() >= 3 && hg.Count() >= 3 && fskPCMShape(hp, hg):
		_, p0mean, _, _ := hp.Bin(0)
		return Guess{
			Matched:    true,
			Label:      "Pulse Code Modulation (Not Return to Zero)",
			Modulation: device.FskPCM,
			Timing: device.Timing{
				SShortWidth: p0mean,
				SLongWidth:  p0mean,
				SResetLimit: p0mean * 1024,
			},
		}

	case hp.Count() == 3:
		hp.SortCount()
		_, syncMean, _, _ := hp.Bin(0)
		_, p1mean, _, _ := hp.Bin(1)
		_, p2mean, _, _ := hp.Bin(2)
		short, long := p1mean, p2mean
		if short > long {
			short, long = long, short
		}
		_, _, _, gLastMax := hg.Bin(hg.Count() - 1)
		return Guess{
			Matched:    true,
			Label:      "Pulse Width Modulation with sync/delimiter",
			Modulation: device.OokPWM,
			Timing: device.Timing{
				SShortWidth: short,
				SLongWidth:  long,
				SSyncWidth:  syncMean,
				SResetLimit: gLastMax + 1,
			},
		}

	default:
		return Guess{Label: "no clue"}
	}
}

func pwmFixed(hp, hg *Histogram, label string) Guess {
	_, p0mean, _, _ := hp.Bin(0)
	_, p1mean, _, _ := hp.Bin(1)
	_, _, _, gLastMax := hg.Bin(hg.Count() - 1)
	return Guess{
		Matched:    true,
		Label:      label,
		Modulation: device.OokPWM,
		Timing: device.Timing{
			SShortWidth: p0mean,
			SLongWidth:  p1mean,
			STolerance:  (p1mean - p0mean) * 4 / 10,
			SResetLimit: gLastMax + 1,
		},
	}
}

// fskPCMShape reports whether the pulse/gap bins look like NRZ PCM: pulses
// cluster at multiples of the shortest pulse (1x/2x/3x) and gaps track
// the same sequence, each within bin0/8 of the expected multiple.
func fskPCMShape(hp, hg *Histogram) bool {
	_, p0, _, _ := hp.Bin(0)
	_, p1, _, _ := hp.Bin(1)
	_, p2, _, _ := hp.Bin(2)
	_, g0, _, _ := hg.Bin(0)
	_, g1, _, _ := hg.Bin(1)
	_, g2, _, _ := hg.Bin(2)
	slack := p0 / 8
	return absInt(p1-2*p0) <= slack &&
		absInt(p2-3*p0) <= slack &&
		absInt(g0-p0) <= slack &&
		absInt(g1-2*p0) <= slack &&
		absInt(g2-3*p0) <= slack
}
