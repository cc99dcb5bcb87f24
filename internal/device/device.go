// Package device declares the DeviceDescriptor contract: the declarative
// binding between a protocol name, a line code, timing parameters in
// microseconds, and a decode callback.
package device

import (
	"github.com/doismellburning/ism433/internal/bitbuf"
	"github.com/doismellburning/ism433/internal/record"
	"github.com/doismellburning/ism433/internal/stats"
)

// Modulation is an int-backed enum over the line codes this module's
// demodulators implement. Any int value is representable; values outside
// the constants below are not rejected here, and demod.Dispatch returns
// nil for them.
type Modulation int

const (
	OokPCMRZ Modulation = iota
	OokPPM
	OokPWM
	OokManchesterZerobit
	OokPIWMRaw
	OokPIWMDC
	OokDMC
	OokPWMOSV1
	FskPCM
	FskPWM
	FskManchesterZerobit
	Unknown // synthesized for the report_unknown path, never user-selectable
)

// IsFSK reports whether the modulation belongs to the FSK family, used by
// the dispatcher to pick which pulse package (OOK or FSK) a descriptor may
// consume.
func (m Modulation) IsFSK() bool {
	switch m {
	case FskPCM, FskPWM, FskManchesterZerobit:
		return true
	default:
		return false
	}
}

// DisabledState is the tri-state enablement of a descriptor.
type DisabledState int

const (
	Enabled DisabledState = iota
	Disabled
	// ForcedEnabled devices stay active regardless of user de-selection —
	// reserved for pseudo-devices like the unknown-signal emitter.
	// A forced descriptor stays enabled even under an explicit
	// selection set.
	ForcedEnabled
)

// DecodeFunc is the protocol-specific callback invoked with a fully
// demodulated bit matrix. It returns the records produced, the number of
// records (the "event count"), and, when the event count is zero, the
// rejection reason; the reason is ignored when events > 0.
type DecodeFunc func(bits *bitbuf.BitBuffer, dev *Descriptor) ([]*record.Record, int, stats.Reason)

// Timing holds the microsecond timing parameters of a descriptor plus
// their sample-domain equivalents, recomputed whenever the sample rate
// changes (RecomputeSamples).
type Timing struct {
	ShortWidthUS int
	LongWidthUS  int
	GapLimitUS   int
	ResetLimitUS int
	SyncWidthUS  int
	ToleranceUS  int

	SShortWidth int
	SLongWidth  int
	SGapLimit   int
	SResetLimit int
	SSyncWidth  int
	STolerance  int
}

// RecomputeSamples derives the sample-domain fields from the microsecond
// fields and the given sample rate (samples/sec).
func (t *Timing) RecomputeSamples(sampleRate uint32) {
	usToSamples := func(us int) int {
		if us <= 0 {
			return 0
		}
		return int((int64(us) * int64(sampleRate)) / 1_000_000)
	}
	t.SShortWidth = usToSamples(t.ShortWidthUS)
	t.SLongWidth = usToSamples(t.LongWidthUS)
	t.SGapLimit = usToSamples(t.GapLimitUS)
	t.SResetLimit = usToSamples(t.ResetLimitUS)
	t.SSyncWidth = usToSamples(t.SyncWidthUS)
	t.STolerance = usToSamples(t.ToleranceUS)
	if t.STolerance == 0 {
		// Default tolerance is 40% of the width difference.
		diff := t.SLongWidth - t.SShortWidth
		if diff < 0 {
			diff = -diff
		}
		t.STolerance = diff * 4 / 10
	}
}

// Descriptor describes one protocol.
type Descriptor struct {
	Name         string
	ProtocolNum  int
	Disabled     DisabledState
	Modulation   Modulation
	Timing       Timing
	DecodeFn     DecodeFunc
	Fields       []string
	Invert       bool // s_short_width inverted PWM bit sense
}

// Enabled reports whether a descriptor participates in dispatch given the
// current selection set, honoring the ForcedEnabled carve-out.
func (d *Descriptor) Enabled(selected map[int]bool) bool {
	if d.Disabled == ForcedEnabled {
		return true
	}
	if d.Disabled == Disabled {
		return false
	}
	if selected == nil {
		return true
	}
	return selected[d.ProtocolNum]
}
