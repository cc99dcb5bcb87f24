// Package dump implements the sample/logic/VCD dump writers: raw
// CU8/CS16 I/Q, bypassed S16/F32 AM/FM/I/Q channels, the
// two-bit-per-sample U8 logic stream, a Value-Change-Dump trace of the
// OOK/FSK logic levels, and the PULSE_OOK text format also used as an
// input format by internal/source. One writer per dump kind, buffered
// and flushed at close.
package dump

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/klauspost/compress/gzip"

	"github.com/doismellburning/ism433/internal/pulse"
)

// Format identifies one on-disk dump representation.
type Format int

const (
	CU8IQ Format = iota
	CS16IQ
	S16AM
	S16FM
	F32AM
	F32FM
	F32I
	F32Q
	U8Logic
	VCDLogic
	PulseOOK
)

// Writer accepts successive sample blocks (for the raw/bypass formats)
// or logic-level transitions (for U8Logic/VCDLogic) and is closed once
// at teardown; a Writer is scoped to one start/destroy cycle of the
// pipeline.
type Writer struct {
	format Format
	w      io.WriteCloser
	buf    *bufio.Writer

	// VCD state
	vcdStarted  bool
	vcdSampleNo int64
	vcdLastOOK  bool
	vcdLastFSK  bool
}

// Open creates (or truncates) path for the given format. When gzip is
// true the file is wrapped in a klauspost/compress/gzip writer, the way
// the sample-grabber's retrospective dumps are compressed at rest.
func Open(path string, format Format, gzipCompress bool) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("dump: create %s: %w", path, err)
	}
	var wc io.WriteCloser = f
	if gzipCompress {
		wc = &gzipFile{gz: gzip.NewWriter(f), f: f}
	}
	dw := &Writer{format: format, w: wc, buf: bufio.NewWriter(wc)}
	if format == VCDLogic {
		dw.writeVCDHeader()
	}
	return dw, nil
}

type gzipFile struct {
	gz *gzip.Writer
	f  *os.File
}

func (g *gzipFile) Write(p []byte) (int, error) { return g.gz.Write(p) }
func (g *gzipFile) Close() error {
	if err := g.gz.Close(); err != nil {
		g.f.Close()
		return err
	}
	return g.f.Close()
}

// Close flushes buffered output and releases the underlying file. A
// short write anywhere in this path is propagated to the caller, who
// terminates the pipeline.
func (w *Writer) Close() error {
	if w.format == VCDLogic && w.vcdStarted {
		fmt.Fprintf(w.buf, "#%d\n", w.vcdSampleNo)
	}
	if err := w.buf.Flush(); err != nil {
		w.w.Close()
		return fmt.Errorf("dump: flush: %w", err)
	}
	return w.w.Close()
}

// WriteCU8 writes a raw CU8 I/Q block verbatim.
func (w *Writer) WriteCU8(block []byte) error { return w.writeRaw(block) }

// WriteCS16 writes a raw CS16 I/Q block verbatim.
func (w *Writer) WriteCS16(block []byte) error { return w.writeRaw(block) }

// WriteS16 writes a bypassed AM or FM int16 channel.
func (w *Writer) WriteS16(samples []int16) error {
	buf := make([]byte, 2*len(samples))
	for i, v := range samples {
		buf[2*i] = byte(v)
		buf[2*i+1] = byte(v >> 8)
	}
	return w.writeRaw(buf)
}

// WriteF32 writes a float32 channel (AM, FM, I, or Q depending on
// Format), normalized by the caller to [-1,1].
func (w *Writer) WriteF32(samples []float32) error {
	buf := make([]byte, 4*len(samples))
	for i, v := range samples {
		bits := f32bits(v)
		buf[4*i] = byte(bits)
		buf[4*i+1] = byte(bits >> 8)
		buf[4*i+2] = byte(bits >> 16)
		buf[4*i+3] = byte(bits >> 24)
	}
	return w.writeRaw(buf)
}

func f32bits(f float32) uint32 {
	return math.Float32bits(f)
}

func (w *Writer) writeRaw(buf []byte) error {
	n, err := w.buf.Write(buf)
	if err != nil {
		return fmt.Errorf("dump: write: %w", err)
	}
	if n != len(buf) {
		return fmt.Errorf("dump: short write: %d of %d bytes", n, len(buf))
	}
	return nil
}

// WriteU8Logic emits one byte per sample: bit 0 set when the OOK
// envelope is above threshold, bit 1 set when the FSK detector has an
// open pulse.
func (w *Writer) WriteU8Logic(ookHigh, fskHigh []bool) error {
	n := len(ookHigh)
	if len(fskHigh) < n {
		n = len(fskHigh)
	}
	buf := make([]byte, n)
	for i := 0; i < n; i++ {
		var b byte
		if ookHigh[i] {
			b |= 1
		}
		if fskHigh[i] {
			b |= 2
		}
		buf[i] = b
	}
	return w.writeRaw(buf)
}

func (w *Writer) writeVCDHeader() {
	fmt.Fprintf(w.buf, "$timescale 1 us $end\n")
	fmt.Fprintf(w.buf, "$scope module ism433 $end\n")
	fmt.Fprintf(w.buf, "$var wire 1 o ook $end\n")
	fmt.Fprintf(w.buf, "$var wire 1 f fsk $end\n")
	fmt.Fprintf(w.buf, "$upscope $end\n")
	fmt.Fprintf(w.buf, "$enddefinitions $end\n")
	fmt.Fprintf(w.buf, "$dumpvars\n0o\n0f\n$end\n")
	w.vcdStarted = true
}

// WriteVCDSample appends one value-change-dump sample, coalescing runs
// of unchanged levels into a single transition record like a real VCD
// trace (only emitting a line when a signal actually flips).
func (w *Writer) WriteVCDSample(ook, fsk bool) {
	if ook != w.vcdLastOOK {
		fmt.Fprintf(w.buf, "#%d\n%do\n", w.vcdSampleNo, boolBit(ook))
		w.vcdLastOOK = ook
	}
	if fsk != w.vcdLastFSK {
		fmt.Fprintf(w.buf, "#%d\n%df\n", w.vcdSampleNo, boolBit(fsk))
		w.vcdLastFSK = fsk
	}
	w.vcdSampleNo++
}

func boolBit(b bool) int {
	if b {
		return 1
	}
	return 0
}

// WritePulseOOKPackage renders one PulseData as the PULSE_OOK text line
// format: "{len}" followed by one row of hex
// nibbles, a fixed four hex digits per pulse width immediately followed
// by four hex digits for its paired gap width, with no separators
// between pairs. internal/source's parsePulseOOKLine is the reader for
// this exact layout.
func (w *Writer) WritePulseOOKPackage(d *pulse.Data) error {
	if _, err := fmt.Fprintf(w.buf, "{%d}", d.NumPulses); err != nil {
		return fmt.Errorf("dump: write: %w", err)
	}
	for i := 0; i < d.NumPulses; i++ {
		if _, err := fmt.Fprintf(w.buf, "%04x%04x", uint16(d.Pulse[i]), uint16(d.Gap[i])); err != nil {
			return fmt.Errorf("dump: write: %w", err)
		}
	}
	if _, err := fmt.Fprintln(w.buf); err != nil {
		return fmt.Errorf("dump: write: %w", err)
	}
	return nil
}
