// Package record implements the decode output record: an ordered
// sequence of named fields produced by a decode callback, then annotated
// with meta fields and unit-converted before being handed to a sink.
// Field order is explicit and preserved for display, which is why this
// is a slice of fields and not a map.
package record

import (
	"strconv"
	"time"

	"github.com/lestrrat-go/strftime"

	"github.com/doismellburning/ism433/internal/units"
)

// Field is one named value in a record. Value holds a string, int,
// int64, float64, []Field (nested record), or []any (array).
type Field struct {
	Key   string
	Value any
}

// Record is DataRecord: an ordered sequence of Fields, preserving
// insertion order so annotation can prepend meta fields and sinks can
// render in decode order.
type Record struct {
	Fields []Field
}

// New returns an empty Record.
func New() *Record { return &Record{} }

// Append adds a field at the end, the decode callback's usual path.
func (r *Record) Append(key string, value any) *Record {
	r.Fields = append(r.Fields, Field{Key: key, Value: value})
	return r
}

// Prepend inserts a field at the start, used for meta annotation.
func (r *Record) Prepend(key string, value any) *Record {
	r.Fields = append([]Field{{Key: key, Value: value}}, r.Fields...)
	return r
}

// Get returns the first field's value matching key.
func (r *Record) Get(key string) (any, bool) {
	for _, f := range r.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// TimeFormat selects how the "time" meta field is rendered.
type TimeFormat int

const (
	TimeNone TimeFormat = iota
	TimeLocal
	TimeUnix
	TimeISO8601
	TimeSamplePosition
)

// Meta carries the annotation inputs: time, tag, protocol/description,
// and the owning package's mod/freq/rssi/snr/noise fields.
type Meta struct {
	Time       time.Time
	TimeFormat TimeFormat
	SampleNum  int64 // used when TimeFormat == TimeSamplePosition

	Tag string

	ProtocolNum int
	Description string
	IncludeMeta bool // whether to prepend protocol/description at all

	Modulation string
	Freq1Hz    float64
	Freq2Hz    float64
	RSSIDb     float64
	SNRDb      float64
	NoiseDb    float64

	UnitMode units.Mode
}

var isoPattern = mustStrftime("%Y-%m-%dT%H:%M:%S%z")

func mustStrftime(pattern string) *strftime.Strftime {
	f, err := strftime.New(pattern)
	if err != nil {
		panic(err) // pattern is a compile-time constant
	}
	return f
}

func (m Meta) formatTime() string {
	switch m.TimeFormat {
	case TimeUnix:
		return strconv.FormatInt(m.Time.Unix(), 10)
	case TimeISO8601:
		return isoPattern.FormatString(m.Time)
	case TimeSamplePosition:
		return strconv.FormatInt(m.SampleNum, 10)
	case TimeLocal:
		return m.Time.Local().Format("2006-01-02 15:04:05")
	default:
		return ""
	}
}

// Annotate prepends time/tag/protocol/description, appends the owning
// package's mod/freq/rssi/snr/noise fields, and rewrites convertible
// field keys per UnitMode. It mutates and returns r for chaining.
func Annotate(r *Record, m Meta) *Record {
	for i, f := range r.Fields {
		key, val := convertField(f, m.UnitMode)
		r.Fields[i] = Field{Key: key, Value: val}
	}

	switch {
	case m.Freq1Hz != 0 && m.Freq2Hz != 0:
		r.Append("freq1", m.Freq1Hz)
		r.Append("freq2", m.Freq2Hz)
	case m.Freq1Hz != 0:
		r.Append("freq", m.Freq1Hz)
	}
	r.Append("rssi", m.RSSIDb)
	r.Append("snr", m.SNRDb)
	r.Append("noise", m.NoiseDb)
	if m.Modulation != "" {
		r.Append("mod", m.Modulation)
	}

	if m.IncludeMeta {
		if m.Description != "" {
			r.Prepend("description", m.Description)
		}
		r.Prepend("protocol", m.ProtocolNum)
	}

	tag := expandTag(m.Tag)
	if tag != "" {
		r.Prepend("tag", tag)
	}

	if ts := m.formatTime(); ts != "" {
		r.Prepend("time", ts)
	}

	return r
}

// expandTag leaves literal tags untouched; the path/basename expansion
// modes are resolved by the caller before Meta.Tag is set, since only the
// pipeline driver knows the current input file.
func expandTag(tag string) string {
	return tag
}

func convertField(f Field, mode units.Mode) (string, any) {
	fv, ok := f.Value.(float64)
	if !ok {
		return f.Key, f.Value
	}
	key, val := units.ConvertKey(f.Key, fv, mode)
	return key, val
}
