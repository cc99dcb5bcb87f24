// Package rlog provides the process-wide structured logger: one named
// charmbracelet/log logger per subsystem.
package rlog

import (
	"os"

	"github.com/charmbracelet/log"
)

// Component loggers, one per core pipeline stage, each tagged with a
// "component" field so multiplexed output stays attributable.
var (
	Baseband = newLogger("baseband")
	Pulse    = newLogger("pulse")
	Demod    = newLogger("demod")
	Registry = newLogger("registry")
	Analyzer = newLogger("analyzer")
	Pipeline = newLogger("pipeline")
	Sink     = newLogger("sink")
	Source   = newLogger("source")
)

func newLogger(component string) *log.Logger {
	l := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.000",
	})
	return l.With("component", component)
}

// SetLevel adjusts verbosity for every component logger at once.
func SetLevel(level log.Level) {
	for _, l := range []*log.Logger{Baseband, Pulse, Demod, Registry, Analyzer, Pipeline, Sink, Source} {
		l.SetLevel(level)
	}
}
