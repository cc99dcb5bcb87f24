package source_test

import (
	"context"
	"testing"

	"github.com/creack/pty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doismellburning/ism433/internal/source"
)

// TestParsePulseOOKLineViaPTY exercises the PULSE_OOK line parser that
// backs SerialPulseSource.NextPackage over an in-process pty pair,
// avoiding any dependency on real serial hardware in CI.
func TestParsePulseOOKLineViaPTY(t *testing.T) {
	ptmx, tty, err := pty.Open()
	require.NoError(t, err)
	defer ptmx.Close()
	defer tty.Close()

	go func() {
		ptmx.Write([]byte("{2}006400c8006400c8\n"))
	}()

	f, err := source.OpenPulseOOK(tty.Name(), 250000)
	require.NoError(t, err)
	defer f.Close()

	pkg, err := f.NextPackage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, pkg.NumPulses)
	assert.Equal(t, 100, pkg.Pulse[0])
	assert.Equal(t, 200, pkg.Gap[0])
}
