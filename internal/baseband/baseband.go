// Package baseband implements the per-sample transforms over an I/Q block
// that precede pulse detection: envelope/magnitude extraction into the AM
// buffer, a single-pole IIR low-pass on that envelope, and an FM
// discriminator into the FM buffer.
package baseband

import "hz.tools/sdr"

// Format distinguishes the two wire encodings the pipeline accepts.
type Format int

const (
	CU8  Format = iota // 1 byte per I or Q component, unsigned [0,255] biased at 128
	CS16               // 2 bytes per I or Q component, signed little-endian
)

// lowPassShift is the single-pole IIR coefficient as a fixed-point shift:
// state approaches the input by 1/16 of the remaining delta per sample.
const lowPassShift = 4

// State carries the per-channel persistent state of the envelope low-pass
// filter and the FM discriminator across sample blocks. Exclusively owned
// by the pipeline driver; never mutated concurrently.
type State struct {
	lowPassAcc int32
	prevI      int32
	prevQ      int32
	havePrev   bool
}

// NewState returns a zeroed baseband state for one channel.
func NewState() *State { return &State{} }

// Envelope computes the AM buffer from a raw CU8/CS16 block: a cheap L1
// magnitude approximation |I-128|+|Q-128| for CU8, or the true L2
// magnitude for CS16. The CU8 value is multiplied by 64 into the
// detector's ~[0,16384] working range; the CS16 magnitude is written
// unscaled.
func Envelope(format Format, iq []byte, out []int16) {
	switch format {
	case CU8:
		n := len(iq) / 2
		for i := 0; i < n && i < len(out); i++ {
			di := int32(iq[2*i]) - 128
			dq := int32(iq[2*i+1]) - 128
			if di < 0 {
				di = -di
			}
			if dq < 0 {
				dq = -dq
			}
			// Scale the L1 approximation (max ~256) up into the
			// detector's ~[0,16384] working range.
			out[i] = int16((di + dq) * 64)
		}
	case CS16:
		n := len(iq) / 4
		for i := 0; i < n && i < len(out); i++ {
			re := int32(int16(uint16(iq[4*i]) | uint16(iq[4*i+1])<<8))
			im := int32(int16(uint16(iq[4*i+2]) | uint16(iq[4*i+3])<<8))
			out[i] = int16(isqrt(re*re + im*im))
		}
	}
}

// LowPass applies the persistent single-pole IIR filter to in, writing the
// smoothed AM buffer to out. The accumulator carries across calls so the
// filter is continuous over block boundaries.
func (s *State) LowPass(in []int16, out []int16) {
	acc := s.lowPassAcc
	for i, v := range in {
		acc += (int32(v) - acc) >> lowPassShift
		out[i] = int16(acc)
	}
	s.lowPassAcc = acc
}

// FMDiscriminate computes the FM discriminator buffer: for each consecutive
// I/Q pair, the phase difference approximated by a cross-product/magnitude
// ratio rather than an expensive atan2 call. prevI/prevQ persist between
// blocks.
func (s *State) FMDiscriminate(format Format, iq []byte, out []int16) {
	switch format {
	case CU8:
		n := len(iq) / 2
		for i := 0; i < n && i < len(out); i++ {
			curI := int32(iq[2*i]) - 128
			curQ := int32(iq[2*i+1]) - 128
			out[i] = s.fmStep(curI, curQ)
		}
	case CS16:
		n := len(iq) / 4
		for i := 0; i < n && i < len(out); i++ {
			curI := int32(int16(uint16(iq[4*i]) | uint16(iq[4*i+1])<<8))
			curQ := int32(int16(uint16(iq[4*i+2]) | uint16(iq[4*i+3])<<8))
			out[i] = s.fmStep(curI, curQ)
		}
	}
}

func (s *State) fmStep(curI, curQ int32) int16 {
	if !s.havePrev {
		s.prevI, s.prevQ, s.havePrev = curI, curQ, true
		return 0
	}
	// Cross product (Im{z * conj(zprev)}) approximates phase delta for
	// small angles; divide by magnitude to normalize amplitude out.
	cross := curQ*s.prevI - curI*s.prevQ
	mag := isqrt(curI*curI+curQ*curQ) + isqrt(s.prevI*s.prevI+s.prevQ*s.prevQ) + 1
	s.prevI, s.prevQ = curI, curQ
	delta := (cross * 2048) / mag
	return int16(clamp(delta, -16384, 16384))
}

func clamp(v, lo, hi int32) int32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func isqrt(v int32) int32 {
	if v <= 0 {
		return 0
	}
	x := v
	y := (x + 1) / 2
	for y < x {
		x = y
		y = (x + v/x) / 2
	}
	return x
}

// FromSDR drains one fixed-size block from an hz.tools/sdr.Reader front
// end (a live SDR, as opposed to a captured file) and repacks it as a
// CS16-equivalent byte block, the form Envelope/FMDiscriminate expect.
// Callers never need a concrete SDR driver import, only this adapter over
// the generic hz.tools/sdr stream interface.
func FromSDR(reader sdr.Reader, block []complex64, out []byte) (int, error) {
	buf := sdr.SamplesC64(block)
	n, err := sdr.ReadFull(reader, buf)
	if err != nil {
		return 0, err
	}
	for i := 0; i < n && 4*i+3 < len(out); i++ {
		re := int16(real(block[i]) * 32767)
		im := int16(imag(block[i]) * 32767)
		out[4*i] = byte(re)
		out[4*i+1] = byte(re >> 8)
		out[4*i+2] = byte(im)
		out[4*i+3] = byte(im >> 8)
	}
	return n, nil
}
