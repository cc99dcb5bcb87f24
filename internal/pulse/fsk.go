package pulse

// fskState is the FSK inner detector's tagged state, active only during the
// first OOK pulse of a package (an FSK carrier never drops, so it looks
// like one long OOK "pulse" to the outer detector).
type fskState int

const (
	fskInit fskState = iota
	fskF1            // high frequency (pulse)
	fskF2            // low frequency (gap)
	fskError         // absorbing state until outer detector resets
)

// fskDetector is the per-package FSK sub-state machine.
type fskDetector struct {
	state      fskState
	pulseLen   int
	f1Est      int32
	f2Est      int32
}

func (s *fskDetector) reset() {
	*s = fskDetector{}
}

// step demodulates one FM sample, mutating fsk (the destination Data) and
// the detector's own state in place.
func (s *fskDetector) step(fmSample int32, fsk *Data) {
	f1Delta := abs32(fmSample - s.f1Est)
	f2Delta := abs32(fmSample - s.f2Est)
	s.pulseLen++

	switch s.state {
	case fskInit:
		if s.pulseLen < MinPulseSamples {
			s.f1Est = s.f1Est/2 + fmSample/2
		} else if f1Delta > fskDefaultFMDelta/2 {
			if fmSample > s.f1Est {
				// Initial frequency was low (gap).
				s.state = fskF1
				s.f2Est = s.f1Est
				s.f1Est = fmSample
				fsk.Pulse[0] = 0
				fsk.Gap[0] = s.pulseLen
				fsk.NumPulses++
				s.pulseLen = 0
			} else {
				// Initial frequency was high (pulse).
				s.state = fskF2
				s.f2Est = fmSample
				fsk.Pulse[0] = s.pulseLen
				s.pulseLen = 0
			}
		} else {
			s.f1Est += fmSample/fskEstRatio - s.f1Est/fskEstRatio
		}

	case fskF1:
		if f1Delta > f2Delta {
			s.state = fskF2
			if s.pulseLen >= MinPulseSamples {
				fsk.Pulse[fsk.NumPulses] = s.pulseLen
				s.pulseLen = 0
			} else {
				// Spurious: rewind to the previous gap.
				s.pulseLen += fsk.Gap[fsk.NumPulses-1]
				fsk.NumPulses--
				if fsk.NumPulses == 0 && fsk.Pulse[0] == 0 {
					s.f1Est = s.f2Est
					s.state = fskInit
				}
			}
		} else {
			s.f1Est += fmSample/fskEstRatio - s.f1Est/fskEstRatio
		}

	case fskF2:
		if f2Delta > f1Delta {
			s.state = fskF1
			if s.pulseLen >= MinPulseSamples {
				fsk.Gap[fsk.NumPulses] = s.pulseLen
				fsk.NumPulses++
				s.pulseLen = 0
				if fsk.NumPulses >= MaxPulses {
					s.state = fskError
				}
			} else {
				// Spurious: rewind to the previous pulse.
				s.pulseLen += fsk.Pulse[fsk.NumPulses]
				if fsk.NumPulses == 0 {
					s.state = fskInit
				}
			}
		} else {
			s.f2Est += fmSample/fskEstRatio - s.f2Est/fskEstRatio
		}

	case fskError:
		// Stay here until the outer OOK detector resets us.
	}
}

// wrapUp stores the final in-progress pulse or gap at end-of-package.
func (s *fskDetector) wrapUp(fsk *Data) {
	if fsk.NumPulses >= MaxPulses {
		return
	}
	s.pulseLen++
	if s.state == fskF1 {
		fsk.Pulse[fsk.NumPulses] = s.pulseLen
		fsk.Gap[fsk.NumPulses] = 0
	} else {
		fsk.Gap[fsk.NumPulses] = s.pulseLen
	}
	fsk.NumPulses++
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
