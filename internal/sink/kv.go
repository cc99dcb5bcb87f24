package sink

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/doismellburning/ism433/internal/record"
)

// keyClass buckets a field key into one of the KV sink's color groups:
// time/tag, identity (model/type/id), mic, modulation/frequency, and
// signal metrics each render in their own color.
type keyClass int

const (
	classDefault keyClass = iota
	classTimeTag
	classModelID
	classMic
	classModFreq
	classRSSI
)

func classify(key string) keyClass {
	switch {
	case key == "time" || key == "tag":
		return classTimeTag
	case key == "model" || key == "type" || key == "id":
		return classModelID
	case key == "mic":
		return classMic
	case key == "mod" || strings.HasPrefix(key, "freq"):
		return classModFreq
	case key == "rssi" || key == "snr" || key == "noise":
		return classRSSI
	default:
		return classDefault
	}
}

var kvStyles = map[keyClass]lipgloss.Style{
	classTimeTag: lipgloss.NewStyle().Foreground(lipgloss.Color("4")),  // blue
	classModelID: lipgloss.NewStyle().Foreground(lipgloss.Color("1")),  // red
	classMic:     lipgloss.NewStyle().Foreground(lipgloss.Color("6")),  // cyan
	classModFreq: lipgloss.NewStyle().Foreground(lipgloss.Color("5")),  // magenta
	classRSSI:    lipgloss.NewStyle().Foreground(lipgloss.Color("3")),  // yellow
}

// KV is the pretty terminal key-value sink.
type KV struct {
	w        *bufio.Writer
	keyWidth int // widest key seen so far, for column alignment
}

// NewKV wraps w (normally os.Stdout) for colorized, width-aware output.
func NewKV(w io.Writer) *KV {
	return &KV{w: bufio.NewWriter(w), keyWidth: 8}
}

func (k *KV) Emit(r *record.Record) error {
	for _, f := range r.Fields {
		if len(f.Key) > k.keyWidth {
			k.keyWidth = len(f.Key)
		}
	}
	for _, f := range r.Fields {
		style, ok := kvStyles[classify(f.Key)]
		label := fmt.Sprintf("%-*s", k.keyWidth, f.Key)
		if ok {
			label = style.Render(label)
		}
		fmt.Fprintf(k.w, "%s: %v\n", label, f.Value)
	}
	fmt.Fprintln(k.w)
	return k.w.Flush()
}

func (k *KV) Poll()        {}
func (k *KV) Close() error { return k.w.Flush() }
