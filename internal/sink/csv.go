package sink

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/doismellburning/ism433/internal/record"
)

// wellKnownFields precede every device-declared field in the CSV
// header: well-known first, then declaration order, duplicates removed.
var wellKnownFields = []string{"time"}

// CSV is the fixed-schema CSV sink. The schema is fixed by NewCSV and the
// header row is written on the first Emit.
type CSV struct {
	w      *bufio.Writer
	header []string
	index  map[string]int
	wrote  bool
}

// NewCSV wraps w and derives the header from wellKnownFields plus the
// union of device field lists, in declaration order with duplicates
// collapsed.
func NewCSV(w io.Writer, deviceFields [][]string) *CSV {
	header := make([]string, 0, len(wellKnownFields))
	seen := map[string]bool{}
	add := func(key string) {
		if !seen[key] {
			seen[key] = true
			header = append(header, key)
		}
	}
	for _, k := range wellKnownFields {
		add(k)
	}
	for _, fields := range deviceFields {
		for _, k := range fields {
			add(k)
		}
	}
	index := make(map[string]int, len(header))
	for i, k := range header {
		index[k] = i
	}
	return &CSV{w: bufio.NewWriter(w), header: header, index: index}
}

func (c *CSV) Emit(r *record.Record) error {
	if !c.wrote {
		if err := c.writeRow(c.header); err != nil {
			return err
		}
		c.wrote = true
	}
	row := make([]string, len(c.header))
	for _, f := range r.Fields {
		i, ok := c.index[f.Key]
		if !ok {
			continue // field not in the frozen schema: dropped, matching fixed-schema CSV
		}
		row[i] = csvEscape(fmt.Sprintf("%v", f.Value))
	}
	return c.writeRow(row)
}

func (c *CSV) writeRow(fields []string) error {
	if _, err := c.w.WriteString(strings.Join(fields, ",")); err != nil {
		return fmt.Errorf("sink: csv write: %w", err)
	}
	if _, err := c.w.WriteString("\n"); err != nil {
		return fmt.Errorf("sink: csv write: %w", err)
	}
	return c.w.Flush()
}

// csvEscape backslash-escapes the comma separator and any embedded
// backslash/newline, a lighter scheme than RFC 4180 quoting.
func csvEscape(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case ',', '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case '\n':
			b.WriteString("\\n")
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (c *CSV) Poll()        {}
func (c *CSV) Close() error { return c.w.Flush() }
