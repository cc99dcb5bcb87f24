//go:build !linux

package sink

import (
	"fmt"

	"github.com/doismellburning/ism433/internal/record"
)

// GPIO is unavailable outside Linux: go-gpiocdev talks to the kernel's
// GPIO character device, which only exists there.
type GPIO struct{}

// NewGPIO always fails on non-Linux builds so cmd/ism433 can wire gpio
// sink config without a build-tag switch of its own.
func NewGPIO(chipName string, offset int) (*GPIO, error) {
	return nil, fmt.Errorf("sink: gpio sink requires linux, built for a different GOOS")
}

func (g *GPIO) Emit(r *record.Record) error        { return nil }
func (g *GPIO) EmitUnknown(u UnknownPackage) error  { return nil }
func (g *GPIO) Poll()                              {}
func (g *GPIO) Close() error                        { return nil }
