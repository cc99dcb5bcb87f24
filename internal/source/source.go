// Package source implements the sample source contract: a fixed-size
// I/Q block producer exposing Format, SampleRate, Read and Close (there
// are no separate init/start/stop methods), plus the
// input-file format adapters and live hardware backends that feed it.
//
// Concrete SDR drivers stay behind the Source interface; the adapters
// here cover captured files, a generic hz.tools/sdr reader, a sound
// card line-in, and a serial pulse-capture front end.
package source

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/doismellburning/ism433/internal/baseband"
	"github.com/doismellburning/ism433/internal/pulse"
	"hz.tools/sdr"
)

// DefaultBlockSize is the default I/Q block size, 16*32*512 bytes.
const DefaultBlockSize = 16 * 32 * 512

// Format identifies the layout of one source's emitted blocks.
type Format int

const (
	FormatCU8 Format = iota
	FormatCS16
	FormatCF32
	FormatS16AM // bypasses envelope detection: blocks are already AM samples
	FormatS16FM // bypasses FM discrimination: blocks are already FM samples
	FormatPulseOOK
)

// Source is the contract every backend implements: deliver fixed-size
// blocks until the context is canceled or the stream ends.
type Source interface {
	Format() Format
	SampleRate() uint32
	// Read fills buf and returns the number of bytes read. io.EOF ends
	// the stream; any other error aborts it.
	Read(ctx context.Context, buf []byte) (int, error)
	Close() error
}

// PackageSource is satisfied by sources that already hand over detected
// pulse/gap packages instead of raw sample blocks — a PULSE_OOK text
// file or a serial-attached capture front end that does its own
// envelope detection upstream. pipeline.Run type-asserts for this
// instead of calling Read, since there is no raw block for the DSP
// front end to decode here.
type PackageSource interface {
	Source
	// NextPackage returns the next decoded package, or io.EOF when the
	// stream is exhausted.
	NextPackage(ctx context.Context) (*pulse.Data, error)
}

// fileSource reads raw samples from an io.ReadCloser, used for the
// CU8_IQ/CS16_IQ/CF32_IQ/S16_AM/S16_FM file formats.
type fileSource struct {
	r          io.ReadCloser
	format     Format
	sampleRate uint32
	scratch    []byte // CF32 staging, converted to CS16 on read
}

// OpenFile opens path and infers its format from the extension (.cu8,
// .cs16, .cf32, .s16am, .s16fm); sampleRate must be supplied by the
// caller since it isn't encoded in these raw formats. A .ook path is
// handed to OpenPulseOOK.
func OpenFile(path string, sampleRate uint32) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("source: open %s: %w", path, err)
	}
	format, err := formatFromExtension(path)
	if err != nil {
		f.Close()
		return nil, err
	}
	if format == FormatPulseOOK {
		f.Close()
		s, err := OpenPulseOOK(path, sampleRate)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return &fileSource{r: f, format: format, sampleRate: sampleRate}, nil
}

func formatFromExtension(path string) (Format, error) {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".cu8"):
		return FormatCU8, nil
	case strings.HasSuffix(lower, ".cs16"):
		return FormatCS16, nil
	case strings.HasSuffix(lower, ".cf32"):
		return FormatCF32, nil
	case strings.HasSuffix(lower, ".s16am"):
		return FormatS16AM, nil
	case strings.HasSuffix(lower, ".s16fm"):
		return FormatS16FM, nil
	case strings.HasSuffix(lower, ".ook"):
		return FormatPulseOOK, nil
	default:
		return 0, fmt.Errorf("source: unrecognized file extension in %q", path)
	}
}

// Format reports CF32 files as CS16 because Read converts them on the
// fly; the rest of the pipeline never sees a float sample.
func (s *fileSource) Format() Format {
	if s.format == FormatCF32 {
		return FormatCS16
	}
	return s.format
}
func (s *fileSource) SampleRate() uint32 { return s.sampleRate }
func (s *fileSource) Close() error       { return s.r.Close() }

func (s *fileSource) Read(ctx context.Context, buf []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s.format == FormatCF32 {
		return s.readCF32(buf)
	}
	n, err := io.ReadFull(s.r, buf)
	if err == io.ErrUnexpectedEOF {
		// Short final block: hand over what arrived; EOF follows on the
		// next call.
		return n, nil
	}
	return n, err
}

// readCF32 reads float I/Q (normalized to [-1,1]) and converts each value
// to a little-endian int16, halving the byte count.
func (s *fileSource) readCF32(buf []byte) (int, error) {
	want := 2 * len(buf)
	if len(s.scratch) < want {
		s.scratch = make([]byte, want)
	}
	n, err := io.ReadFull(s.r, s.scratch[:want])
	if err != nil && err != io.ErrUnexpectedEOF {
		return 0, err
	}
	vals := n / 4
	for i := 0; i < vals; i++ {
		f := math.Float32frombits(binary.LittleEndian.Uint32(s.scratch[4*i:]))
		if f > 1 {
			f = 1
		} else if f < -1 {
			f = -1
		}
		binary.LittleEndian.PutUint16(buf[2*i:], uint16(int16(f*32767)))
	}
	return vals * 2, nil
}

// pulseOOKSource parses a PULSE_OOK text stream: one PulseData per
// line, emitted as already-detected packages rather than raw samples.
type pulseOOKSource struct {
	f          *os.File
	scanner    *bufio.Scanner
	sampleRate uint32
}

// OpenPulseOOK opens a pre-captured pulse/gap text stream (one package
// per line: "{n}" followed by n hex pulse/gap pairs, with no frequency
// field) instead of raw I/Q.
func OpenPulseOOK(path string, sampleRate uint32) (*pulseOOKSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("source: open %s: %w", path, err)
	}
	return &pulseOOKSource{f: f, scanner: bufio.NewScanner(f), sampleRate: sampleRate}, nil
}

func (s *pulseOOKSource) Format() Format     { return FormatPulseOOK }
func (s *pulseOOKSource) SampleRate() uint32 { return s.sampleRate }
func (s *pulseOOKSource) Close() error       { return s.f.Close() }

// Read satisfies the Source interface, since pipeline.Run requires it
// for every backend, but pulseOOKSource is always driven through
// PackageSource.NextPackage instead: Run type-asserts for PackageSource
// before ever calling Read on a PULSE_OOK backend.
func (s *pulseOOKSource) Read(ctx context.Context, buf []byte) (int, error) {
	return 0, fmt.Errorf("source: pulseOOKSource does not implement raw Read; use NextPackage")
}

// NextPackage parses one PULSE_OOK line ("{n}" followed by n pulse/gap
// hex pairs) into a pulse.Data. It returns io.EOF when the stream is
// exhausted.
func (s *pulseOOKSource) NextPackage(ctx context.Context) (*pulse.Data, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !s.scanner.Scan() {
		if err := s.scanner.Err(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
	return parsePulseOOKLine(s.scanner.Text(), s.sampleRate)
}

// parsePulseOOKLine parses one PULSE_OOK row as written by
// internal/dump's WritePulseOOKPackage: "{len}" followed by len
// pulse/gap pairs, each width a fixed four hex digits with no
// separator between pairs.
func parsePulseOOKLine(line string, sampleRate uint32) (*pulse.Data, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "{") {
		return nil, fmt.Errorf("source: malformed PULSE_OOK line %q: missing {len} header", line)
	}
	closeIdx := strings.IndexByte(line, '}')
	if closeIdx < 0 {
		return nil, fmt.Errorf("source: malformed PULSE_OOK line %q: unterminated {len} header", line)
	}
	n, err := strconv.Atoi(line[1:closeIdx])
	if err != nil {
		return nil, fmt.Errorf("source: malformed PULSE_OOK length %q: %w", line[1:closeIdx], err)
	}

	body := line[closeIdx+1:]
	if len(body) != n*8 {
		return nil, fmt.Errorf("source: PULSE_OOK line declares %d pulses but has %d hex digits", n, len(body))
	}

	var d pulse.Data
	d.SampleRate = sampleRate
	for i := 0; i < n; i++ {
		pulseWidth, err := strconv.ParseUint(body[i*8:i*8+4], 16, 32)
		if err != nil {
			return nil, fmt.Errorf("source: malformed PULSE_OOK pulse width %q: %w", body[i*8:i*8+4], err)
		}
		gapWidth, err := strconv.ParseUint(body[i*8+4:i*8+8], 16, 32)
		if err != nil {
			return nil, fmt.Errorf("source: malformed PULSE_OOK gap width %q: %w", body[i*8+4:i*8+8], err)
		}
		d.Pulse[i] = int(pulseWidth)
		d.Gap[i] = int(gapWidth)
	}
	d.NumPulses = n
	return &d, nil
}

// sdrSource wraps a live hz.tools/sdr.Reader, converting its baseband
// blocks into the CS16-equivalent byte layout the rest of the pipeline
// consumes via baseband.FromSDR.
type sdrSource struct {
	reader     sdr.Reader
	block      []complex64
	sampleRate uint32
}

func (s *sdrSource) Format() Format     { return FormatCS16 }
func (s *sdrSource) SampleRate() uint32 { return s.sampleRate }
func (s *sdrSource) Close() error       { return s.reader.Close() }
func (s *sdrSource) Read(ctx context.Context, buf []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n, err := baseband.FromSDR(s.reader, s.block, buf)
	return n * 4, err // samples to CS16 bytes
}

// NewSDRSource adapts a live radio handle (opened by the caller via
// hz.tools/sdr, since device enumeration/gain/PPM setup is hardware-
// specific and out of this package's scope) into a Source.
func NewSDRSource(reader sdr.Reader, sampleRate uint32, blockSize int) Source {
	return &sdrSource{reader: reader, block: make([]complex64, blockSize/4), sampleRate: sampleRate}
}
