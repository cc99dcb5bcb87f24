package pulse

// ookState is the outer envelope detector's tagged state.
type ookState int

const (
	ookIdle ookState = iota
	ookPulse
	ookGapStart
	ookGap
)

// Result tags which destination buffer Detect populated, or reports that
// the caller should stop draining for this block.
type Result int

const (
	OutOfData Result = iota
	OOK
	FSK
)

// Detector is the dual-channel (OOK and FSK) pulse detector. It owns adaptive level/
// frequency estimators that persist across calls to Detect and across
// sample blocks; ownership is exclusively the pipeline's.
type Detector struct {
	state        ookState
	pulseLength  int
	maxPulse     int
	dataCounter  int
	leadInCount  int
	lowEstimate  int32
	highEstimate int32
	fsk          fskDetector
}

// NewDetector returns a freshly zeroed detector.
func NewDetector() *Detector {
	return &Detector{}
}

// Detect processes samples [0:blockLen) of the given AM/FM buffers,
// advancing internal state, and returns as soon as a package completes or
// the block is exhausted. levelLimit, when non-zero, overrides the
// adaptive threshold. sampleOffset is the absolute sample index of the
// first sample in the block.
//
// Callers drain a block by re-invoking Detect until it returns OutOfData;
// one of ook/fsk is populated on every non-OutOfData result.
func (d *Detector) Detect(am, fm []int16, blockLen int, levelLimit int32, sampleRate uint32, sampleOffset int64, ook, fsk *Data) Result {
	samplesPerMS := int(sampleRate) / 1000
	if d.highEstimate < ookMinHighLevel {
		d.highEstimate = ookMinHighLevel
	}

	if d.dataCounter == 0 {
		ook.StartAgo += blockLen
		fsk.StartAgo += blockLen
	}

	for d.dataCounter < blockLen {
		amN := int32(am[d.dataCounter])
		threshold := d.lowEstimate + (d.highEstimate-d.lowEstimate)/2
		if levelLimit != 0 {
			threshold = levelLimit
		}
		hysteresis := threshold / 8

		switch d.state {
		case ookIdle:
			if amN > threshold+hysteresis && d.leadInCount > ookEstLowRatio {
				ook.Clear()
				fsk.Clear()
				ook.Offset = sampleOffset + int64(d.dataCounter)
				fsk.Offset = ook.Offset
				ook.StartAgo = blockLen - d.dataCounter
				fsk.StartAgo = ook.StartAgo
				d.pulseLength = 0
				d.maxPulse = 0
				d.fsk.reset()
				d.state = ookPulse
			} else {
				delta := amN - d.lowEstimate
				d.lowEstimate += delta / ookEstLowRatio
				if delta > 0 {
					d.lowEstimate++
				} else {
					d.lowEstimate--
				}
				d.highEstimate = clamp32(ookHighLowRatio*d.lowEstimate, ookMinHighLevel, ookMaxHighLevel)
				if d.leadInCount <= ookEstLowRatio {
					d.leadInCount++
				}
			}

		case ookPulse:
			d.pulseLength++
			if amN < threshold-hysteresis {
				if d.pulseLength < MinPulseSamples {
					d.state = ookIdle
				} else {
					ook.Pulse[ook.NumPulses] = d.pulseLength
					if d.pulseLength > d.maxPulse {
						d.maxPulse = d.pulseLength
					}
					d.pulseLength = 0
					d.state = ookGapStart
				}
			} else {
				d.highEstimate = clamp32(d.highEstimate+amN/ookEstHighRatio-d.highEstimate/ookEstHighRatio, ookMinHighLevel, ookMaxHighLevel)
				ook.FSKF1Est += int32(fm[d.dataCounter])/ookEstHighRatio - ook.FSKF1Est/ookEstHighRatio
			}
			if ook.NumPulses == 0 {
				d.fsk.step(int32(fm[d.dataCounter]), fsk)
			}

		case ookGapStart:
			d.pulseLength++
			if amN > threshold+hysteresis {
				d.pulseLength += ook.Pulse[ook.NumPulses]
				d.state = ookPulse
			} else if d.pulseLength >= MinPulseSamples {
				d.state = ookGap
				if fsk.NumPulses >= MinPulses {
					d.fsk.wrapUp(fsk)
					fsk.FSKF1Est = d.fsk.f1Est
					fsk.FSKF2Est = d.fsk.f2Est
					fsk.OOKLowEstimate = d.lowEstimate
					fsk.OOKHighEstimate = d.highEstimate
					ook.EndAgo = blockLen - d.dataCounter
					fsk.EndAgo = ook.EndAgo
					d.state = ookIdle
					return FSK
				}
			}
			if ook.NumPulses == 0 {
				d.fsk.step(int32(fm[d.dataCounter]), fsk)
			}

		case ookGap:
			d.pulseLength++
			if amN > threshold+hysteresis {
				ook.Gap[ook.NumPulses] = d.pulseLength
				ook.NumPulses++
				if ook.NumPulses >= MaxPulses {
					d.state = ookIdle
					ook.OOKLowEstimate = d.lowEstimate
					ook.OOKHighEstimate = d.highEstimate
					ook.EndAgo = blockLen - d.dataCounter
					return OOK
				}
				d.pulseLength = 0
				d.state = ookPulse
			}
			if (d.pulseLength > maxGapRatio*d.maxPulse && d.pulseLength > minGapMS*samplesPerMS) ||
				d.pulseLength > maxGapMS*samplesPerMS {
				ook.Gap[ook.NumPulses] = d.pulseLength
				ook.NumPulses++
				d.state = ookIdle
				ook.OOKLowEstimate = d.lowEstimate
				ook.OOKHighEstimate = d.highEstimate
				ook.EndAgo = blockLen - d.dataCounter
				return OOK
			}
		}
		d.dataCounter++
	}

	d.dataCounter = 0
	return OutOfData
}

func clamp32(v, lo, hi int32) int32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
