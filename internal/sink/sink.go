// Package sink implements the record output channels: terminal
// key-value, CSV, JSON, syslog-over-UDP, MQTT,
// websocket, GPIO strobe, and the in-process "Ext" callback, plus mDNS
// discovery advertisement for the network-facing ones.
//
// Every send is best-effort: errors are logged and swallowed, never
// propagated as a pipeline failure.
package sink

import (
	"github.com/doismellburning/ism433/internal/bitbuf"
	"github.com/doismellburning/ism433/internal/pulse"
	"github.com/doismellburning/ism433/internal/record"
)

// Sink is one output channel. Emit delivers a fully annotated record;
// Poll lets a sink service queued I/O (flush buffers, accept pending
// connections) from the pipeline driver's single cooperative thread of
// control without blocking the main loop.
type Sink interface {
	Emit(r *record.Record) error
	Poll()
	Close() error
}

// ExtSink additionally receives the unknown-package side channel (raw
// bitbuffer, pulse data, modulation, sample rate); only sinks declaring
// this interface see undecoded packages.
type ExtSink interface {
	Sink
	EmitUnknown(u UnknownPackage) error
}

// UnknownPackage is the extended side channel: the raw bit matrix (nil
// when nothing demodulated, as with an undecoded package), the full
// pulse train, the modulation tag, and the sample rate, so an ExtSink
// consumer can dump, re-analyze, or forward the package wholesale.
type UnknownPackage struct {
	Modulation string
	Bits       *bitbuf.BitBuffer
	Pulses     *pulse.Data
	SampleRate uint32
}

// Multi fans a single record out to every registered sink.
type Multi struct {
	sinks []Sink
}

// NewMulti wraps the given sinks for fan-out delivery.
func NewMulti(sinks ...Sink) *Multi { return &Multi{sinks: sinks} }

// Add registers another sink.
func (m *Multi) Add(s Sink) { m.sinks = append(m.sinks, s) }

// Emit delivers r to every sink, logging (never aborting on) individual
// failures.
func (m *Multi) Emit(r *record.Record, onErr func(error)) {
	for _, s := range m.sinks {
		if err := s.Emit(r); err != nil && onErr != nil {
			onErr(err)
		}
	}
}

// EmitUnknown delivers u only to sinks implementing ExtSink.
func (m *Multi) EmitUnknown(u UnknownPackage, onErr func(error)) {
	for _, s := range m.sinks {
		ext, ok := s.(ExtSink)
		if !ok {
			continue
		}
		if err := ext.EmitUnknown(u); err != nil && onErr != nil {
			onErr(err)
		}
	}
}

// Poll services every sink once, called at each pipeline block boundary.
func (m *Multi) Poll() {
	for _, s := range m.sinks {
		s.Poll()
	}
}

// Close tears down every sink, collecting (not stopping on) the first
// error so every sink still gets a chance to release its resources.
func (m *Multi) Close() error {
	var first error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
