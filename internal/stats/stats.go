// Package stats implements per-protocol decode-rejection counters and the
// periodic stats DataRecord the pipeline driver emits: a fixed set of
// named counters per registered protocol, sampled on an interval and
// reset afterward, plus Prometheus export.
package stats

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/doismellburning/ism433/internal/record"
)

// Reason classifies why a decode attempt for an enabled descriptor did
// not produce a record.
type Reason int

const (
	Other Reason = iota
	AbortLength
	AbortEarly
	FailMIC
	FailSanity
	numReasons
)

func (r Reason) fieldName() string {
	switch r {
	case Other:
		return "fail_other"
	case AbortLength:
		return "abort_length"
	case AbortEarly:
		return "abort_early"
	case FailMIC:
		return "fail_mic"
	case FailSanity:
		return "fail_sanity"
	default:
		return "unknown"
	}
}

// Counters tracks decode outcomes for one registered protocol, both as
// plain counts (for the periodic stats record) and mirrored into
// Prometheus (for external scraping).
type Counters struct {
	protocolName string
	counts       [numReasons]int
	events       int

	promFails  *prometheus.CounterVec
	promEvents prometheus.Counter
}

// Registry owns the Prometheus CounterVec every protocol's Counters
// shares, and the set of per-protocol Counters created so far.
type Registry struct {
	fails  *prometheus.CounterVec
	events *prometheus.CounterVec

	perProtocol map[string]*Counters
}

// NewRegistry registers the decode-outcome metrics on reg (pass
// prometheus.DefaultRegisterer for process-global export, or a fresh
// prometheus.NewRegistry() in tests to avoid collisions).
func NewRegistry(reg prometheus.Registerer) *Registry {
	fails := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ism433",
		Name:      "decode_fail_total",
		Help:      "Decode attempts that did not produce a record, by protocol and reason.",
	}, []string{"protocol", "reason"})
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ism433",
		Name:      "decode_events_total",
		Help:      "Successfully decoded records, by protocol.",
	}, []string{"protocol"})
	reg.MustRegister(fails, events)
	return &Registry{fails: fails, events: events, perProtocol: map[string]*Counters{}}
}

// For returns this protocol's Counters, creating it on first use.
func (r *Registry) For(protocolName string) *Counters {
	if c, ok := r.perProtocol[protocolName]; ok {
		return c
	}
	c := &Counters{
		protocolName: protocolName,
		promFails:    r.fails,
		promEvents:   r.events.WithLabelValues(protocolName),
	}
	r.perProtocol[protocolName] = c
	return c
}

// Fail records one decode rejection for reason.
func (c *Counters) Fail(reason Reason) {
	c.counts[reason]++
	c.promFails.WithLabelValues(c.protocolName, reason.fieldName()).Inc()
}

// Event records one successful decode.
func (c *Counters) Event() {
	c.events++
	c.promEvents.Inc()
}

// Report appends this protocol's counters to r as a "stats" entry and
// resets the in-process counts for the next interval. The events count
// is always included; zero-valued failure counters are omitted.
func (c *Counters) Report(r *record.Record) {
	entry := record.New().Append("name", c.protocolName).Append("events", int64(c.events))
	for reason := Reason(0); reason < numReasons; reason++ {
		if c.counts[reason] > 0 {
			entry.Append(reason.fieldName(), int64(c.counts[reason]))
		}
	}
	r.Append("stats", entry.Fields)
	c.events = 0
	c.counts = [numReasons]int{}
}

// ReportAll builds one periodic stats record covering every protocol with
// at least one tracked event or failure so far.
func (r *Registry) ReportAll() *record.Record {
	rec := record.New()
	for _, c := range r.perProtocol {
		c.Report(rec)
	}
	return rec
}
