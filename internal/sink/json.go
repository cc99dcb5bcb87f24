package sink

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/doismellburning/ism433/internal/record"
)

// JSON emits one RFC-8259 object per line.
type JSON struct {
	w *bufio.Writer
}

func NewJSON(w io.Writer) *JSON { return &JSON{w: bufio.NewWriter(w)} }

// ToMap flattens a Record into a map for serialization. Nested []Field
// values recurse; field order is not kept, and ordering is lost in the
// JSON object itself (objects are unordered per RFC 8259) but every key
// from the decode callback survives.
func ToMap(r *record.Record) map[string]any {
	m := make(map[string]any, len(r.Fields))
	for _, f := range r.Fields {
		m[f.Key] = fieldValue(f.Value)
	}
	return m
}

func fieldValue(v any) any {
	switch x := v.(type) {
	case []record.Field:
		nested := make(map[string]any, len(x))
		for _, f := range x {
			nested[f.Key] = fieldValue(f.Value)
		}
		return nested
	default:
		return x
	}
}

func (j *JSON) Emit(r *record.Record) error {
	data, err := json.Marshal(ToMap(r))
	if err != nil {
		return fmt.Errorf("sink: json marshal: %w", err)
	}
	if _, err := j.w.Write(data); err != nil {
		return fmt.Errorf("sink: json write: %w", err)
	}
	if err := j.w.WriteByte('\n'); err != nil {
		return fmt.Errorf("sink: json write: %w", err)
	}
	return j.w.Flush()
}

func (j *JSON) Poll()        {}
func (j *JSON) Close() error { return j.w.Flush() }
