//go:build linux

package sink

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"

	"github.com/doismellburning/ism433/internal/record"
)

// GPIO strobes a single output line on every successful decode (a
// squelch/relay trigger). It has no use for the record contents; any
// emission is a trigger.
type GPIO struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

// NewGPIO requests offset on the named gpiochip (e.g. "gpiochip0") as an
// output line, initially low.
func NewGPIO(chipName string, offset int) (*GPIO, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("sink: gpio open %s: %w", chipName, err)
	}
	line, err := chip.RequestLine(offset, gpiocdev.AsOutput(0))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("sink: gpio request line %d: %w", offset, err)
	}
	return &GPIO{chip: chip, line: line}, nil
}

func (g *GPIO) Emit(r *record.Record) error {
	if err := g.line.SetValue(1); err != nil {
		return fmt.Errorf("sink: gpio set: %w", err)
	}
	return nil
}

// EmitUnknown also strobes the line: an undecoded-but-detected package
// still indicates RF activity worth signalling.
func (g *GPIO) EmitUnknown(UnknownPackage) error {
	return g.line.SetValue(1)
}

func (g *GPIO) Poll() {
	// Self-resets the strobe to low; called once per pipeline block so
	// the pulse width of the trigger tracks roughly one block period.
	g.line.SetValue(0)
}

func (g *GPIO) Close() error {
	g.line.Close()
	return g.chip.Close()
}
