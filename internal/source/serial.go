package source

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/pkg/term"
	"golang.org/x/sys/unix"

	"github.com/doismellburning/ism433/internal/pulse"
)

// SerialPulseSource parses a PULSE_OOK text stream arriving over a
// tty-attached pulse-capture front end — a
// microcontroller doing its own envelope detection and reporting
// pulse/gap pairs as text lines — rather than a raw I/Q source.
//
// Rates outside pkg/term's named speeds fall back to a termios ioctl
// via golang.org/x/sys.
type SerialPulseSource struct {
	dev        *term.Term
	scanner    *bufio.Scanner
	sampleRate uint32
}

// namedSpeeds are the rates pkg/term.SetSpeed accepts directly.
var namedSpeeds = map[int]bool{
	1200: true, 2400: true, 4800: true, 9600: true,
	19200: true, 38400: true, 57600: true, 115200: true,
}

// OpenSerialPulseSource opens devicePath (e.g. "/dev/ttyUSB0") at baud
// and treats every line as a PULSE_OOK package.
func OpenSerialPulseSource(devicePath string, baud int, sampleRate uint32) (*SerialPulseSource, error) {
	t, err := term.Open(devicePath, term.RawMode)
	if err != nil {
		return nil, fmt.Errorf("source: open serial port %s: %w", devicePath, err)
	}

	if namedSpeeds[baud] {
		if err := t.SetSpeed(baud); err != nil {
			t.Close()
			return nil, fmt.Errorf("source: set serial speed %d: %w", baud, err)
		}
	} else if baud != 0 {
		if err := setCustomBaud(t, baud); err != nil {
			t.Close()
			return nil, fmt.Errorf("source: set custom serial speed %d: %w", baud, err)
		}
	}

	return &SerialPulseSource{dev: t, scanner: bufio.NewScanner(t), sampleRate: sampleRate}, nil
}

// setCustomBaud falls back to a raw termios ioctl for rates pkg/term
// doesn't expose a named constant for, using golang.org/x/sys/unix's
// TCGETS/TCSETS and the Bxxx speed constants.
func setCustomBaud(t *term.Term, baud int) error {
	fd := int(t.Fd())
	termios, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return err
	}
	speed, ok := customBaudConstant(baud)
	if !ok {
		return fmt.Errorf("source: unsupported baud rate %d", baud)
	}
	termios.Ispeed = speed
	termios.Ospeed = speed
	return unix.IoctlSetTermios(fd, unix.TCSETS, termios)
}

func customBaudConstant(baud int) (uint32, bool) {
	switch baud {
	case 230400:
		return unix.B230400, true
	case 460800:
		return unix.B460800, true
	case 921600:
		return unix.B921600, true
	default:
		return 0, false
	}
}

func (s *SerialPulseSource) Format() Format     { return FormatPulseOOK }
func (s *SerialPulseSource) SampleRate() uint32 { return s.sampleRate }
func (s *SerialPulseSource) Close() error       { return s.dev.Close() }

// Read satisfies the Source interface. pipeline.Run never calls it on a
// PULSE_OOK backend: it type-asserts for PackageSource and drives
// NextPackage instead, the same as pulseOOKSource.
func (s *SerialPulseSource) Read(ctx context.Context, buf []byte) (int, error) {
	return 0, fmt.Errorf("source: SerialPulseSource does not implement raw Read; use NextPackage")
}

// NextPackage reads and parses one PULSE_OOK text line, blocking until a
// full line arrives, ctx is canceled, or the port closes.
func (s *SerialPulseSource) NextPackage(ctx context.Context) (*pulse.Data, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !s.scanner.Scan() {
		if err := s.scanner.Err(); err != nil {
			return nil, fmt.Errorf("source: serial read: %w", err)
		}
		return nil, io.EOF
	}
	return parsePulseOOKLine(s.scanner.Text(), s.sampleRate)
}
