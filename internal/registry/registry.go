// Package registry implements the protocol registry and dispatcher: a
// fixed table of device descriptors, each assigned a
// stable protocol number, a selection set that can narrow which
// descriptors participate in dispatch, and per-package iteration that
// hands a pulse package to every enabled descriptor whose modulation
// family matches.
package registry

import (
	"fmt"
	"strconv"

	"github.com/doismellburning/ism433/internal/bitbuf"
	"github.com/doismellburning/ism433/internal/demod"
	"github.com/doismellburning/ism433/internal/device"
	"github.com/doismellburning/ism433/internal/pulse"
	"github.com/doismellburning/ism433/internal/record"
	"github.com/doismellburning/ism433/internal/rlog"
	"github.com/doismellburning/ism433/internal/stats"
)

// minUnknownPulses is the pulse-count floor below which an undecoded
// package is too short to be worth reporting as "unknown".
const minUnknownPulses = 10

// Registry holds the enumerated descriptors and the active selection.
type Registry struct {
	descriptors []*device.Descriptor
	selected    map[int]bool // nil means "all enabled"

	ReportUnknown bool
}

// New enumerates the given descriptors, assigning protocol_num = index+1
// to each. Flex devices are prepended ahead of builtins so
// user-specified protocols take priority on ties.
func New(flex []*device.Descriptor, builtins []*device.Descriptor) *Registry {
	all := make([]*device.Descriptor, 0, len(flex)+len(builtins))
	all = append(all, flex...)
	all = append(all, builtins...)
	for i, d := range all {
		d.ProtocolNum = i + 1
	}
	return &Registry{descriptors: all}
}

// Select narrows dispatch to the given protocol numbers. An empty or nil
// set means "no restriction" (all non-Disabled descriptors enabled).
// Descriptors with Disabled == ForcedEnabled are exempt and always run.
func (r *Registry) Select(protocolNums []int) {
	if len(protocolNums) == 0 {
		r.selected = nil
		return
	}
	sel := make(map[int]bool, len(protocolNums))
	for _, n := range protocolNums {
		sel[n] = true
	}
	r.selected = sel
}

// Descriptors returns the full registered list, in registration order.
func (r *Registry) Descriptors() []*device.Descriptor {
	return r.descriptors
}

// RecomputeSamples updates every enabled descriptor's sample-domain
// timing fields for a new sample rate.
func (r *Registry) RecomputeSamples(sampleRate uint32) {
	for _, d := range r.descriptors {
		if d.Enabled(r.selected) {
			d.Timing.RecomputeSamples(sampleRate)
		}
	}
}

// Match is one descriptor's demodulation of a package together with the
// outcome of its DecodeFn, which may have rejected it (Events == 0).
type Match struct {
	Descriptor *device.Descriptor
	Bits       bitbuf.BitBuffer
	Events     int
	Records    []*record.Record
	// Reason classifies why DecodeFn rejected the package when Events
	// == 0; meaningless otherwise.
	Reason stats.Reason
}

// UnknownMatch carries an undecoded package to the extended-callback-only
// sinks, per the unknown-package policy.
type UnknownMatch struct {
	Pulses     *pulse.Data
	Modulation device.Modulation
}

// Dispatch runs every enabled descriptor whose modulation family (OOK vs
// FSK) matches the package against it, returning one Match per
// descriptor that produced at least one event. If nothing matched, the
// package has at least minUnknownPulses pulses, and ReportUnknown is set,
// an UnknownMatch is returned instead.
func (r *Registry) Dispatch(pkg *pulse.Data, isFSK bool) ([]Match, *UnknownMatch) {
	var matches []Match
	totalEvents := 0

	for _, d := range r.descriptors {
		if !d.Enabled(r.selected) {
			continue
		}
		if d.Modulation == device.Unknown {
			continue // pseudo-descriptor, never dispatched directly
		}
		if d.Modulation.IsFSK() != isFSK {
			continue
		}
		fn := demod.Dispatch(d.Modulation)
		if fn == nil {
			continue
		}

		var bits bitbuf.BitBuffer
		events := fn(pkg, d, &bits)
		if events == 0 {
			continue
		}
		totalEvents += events

		var records []*record.Record
		reason := stats.Other
		if d.DecodeFn != nil {
			recs, n, r := d.DecodeFn(&bits, d)
			records = recs
			events = n
			reason = r
		}
		matches = append(matches, Match{Descriptor: d, Bits: bits, Events: events, Records: records, Reason: reason})
	}

	if totalEvents == 0 && pkg.NumPulses >= minUnknownPulses && r.ReportUnknown {
		modulation := device.OokPCMRZ
		if isFSK {
			modulation = device.FskPCM
		}
		rlog.Registry.Debug("unknown package", "pulses", pkg.NumPulses, "fsk", isFSK)
		return matches, &UnknownMatch{Pulses: pkg, Modulation: modulation}
	}

	return matches, nil
}

// ParseFlex builds a device.Descriptor from a flex spec string of the
// form "n=name,m=OOK_PPM,s=100,l=500,g=1000,r=2000,t=40,y=0", the same
// format the analyzer prints, reused as the user-facing input format
// for registering ad hoc protocols. Unknown keys are rejected;
// s/l/g/r/t/y are microsecond timing fields.
func ParseFlex(spec string) (*device.Descriptor, error) {
	fields, err := parseKV(spec)
	if err != nil {
		return nil, err
	}
	for k := range fields {
		switch k {
		case "n", "m", "s", "l", "g", "r", "t", "y":
		default:
			return nil, fmt.Errorf("registry: flex spec unknown key %q", k)
		}
	}

	d := &device.Descriptor{Name: fields["n"]}
	if d.Name == "" {
		return nil, fmt.Errorf("registry: flex spec missing n=name: %q", spec)
	}

	mod, ok := flexModulations[fields["m"]]
	if !ok {
		return nil, fmt.Errorf("registry: flex spec unknown modulation %q", fields["m"])
	}
	d.Modulation = mod

	var parseErr error
	usField := func(key string) int {
		v, ok := fields[key]
		if !ok {
			return 0
		}
		n, err := parseIntField(v)
		if err != nil {
			parseErr = err
		}
		return n
	}
	d.Timing.ShortWidthUS = usField("s")
	d.Timing.LongWidthUS = usField("l")
	d.Timing.GapLimitUS = usField("g")
	d.Timing.ResetLimitUS = usField("r")
	d.Timing.ToleranceUS = usField("t")
	d.Timing.SyncWidthUS = usField("y")
	if parseErr != nil {
		return nil, parseErr
	}

	return d, nil
}

var flexModulations = map[string]device.Modulation{
	"OOK_PCM_RZ":     device.OokPCMRZ,
	"OOK_PPM":        device.OokPPM,
	"OOK_PWM":        device.OokPWM,
	"OOK_MC_ZEROBIT": device.OokManchesterZerobit,
	"OOK_PIWM_RAW":   device.OokPIWMRaw,
	"OOK_PIWM_DC":    device.OokPIWMDC,
	"OOK_DMC":        device.OokDMC,
	"OOK_PWM_OSV1":   device.OokPWMOSV1,
	"FSK_PCM":        device.FskPCM,
	"FSK_PWM":        device.FskPWM,
	"FSK_MC_ZEROBIT": device.FskManchesterZerobit,
}

func parseKV(spec string) (map[string]string, error) {
	fields := map[string]string{}
	start := 0
	for i := 0; i <= len(spec); i++ {
		if i == len(spec) || spec[i] == ',' {
			if i > start {
				kv := spec[start:i]
				eq := -1
				for j := 0; j < len(kv); j++ {
					if kv[j] == '=' {
						eq = j
						break
					}
				}
				if eq < 0 {
					return nil, fmt.Errorf("registry: flex spec malformed field %q", kv)
				}
				fields[kv[:eq]] = kv[eq+1:]
			}
			start = i + 1
		}
	}
	return fields, nil
}

func parseIntField(s string) (int, error) {
	n, err := strconv.ParseUint(s, 10, 31)
	if err != nil {
		return 0, fmt.Errorf("registry: flex spec field %q is not a non-negative integer", s)
	}
	return int(n), nil
}
