package source

import (
	"context"
	"fmt"

	"github.com/gordonklaus/portaudio"
)

// soundcardSource captures an already-demodulated OOK envelope from a
// sound card line-in (e.g. a cheap 433MHz receiver module wired straight
// into a mic input), satisfying the S16_AM "bypass envelope" input
// format without any SDR hardware involved.
type soundcardSource struct {
	stream     *portaudio.Stream
	sampleRate uint32
	buf        []int16
	filled     chan struct{}
	closed     chan struct{}
}

// OpenSoundcard opens the default audio input device at sampleRate
// mono, framesPerBuffer int16 samples per callback.
func OpenSoundcard(sampleRate uint32, framesPerBuffer int) (Source, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("source: portaudio init: %w", err)
	}

	s := &soundcardSource{
		sampleRate: sampleRate,
		buf:        make([]int16, framesPerBuffer),
		filled:     make(chan struct{}, 1),
		closed:     make(chan struct{}),
	}

	stream, err := portaudio.OpenDefaultStream(1, 0, float64(sampleRate), framesPerBuffer, s.callback)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("source: portaudio open stream: %w", err)
	}
	s.stream = stream

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("source: portaudio start: %w", err)
	}
	return s, nil
}

func (s *soundcardSource) callback(in []int16) {
	copy(s.buf, in)
	select {
	case s.filled <- struct{}{}:
	default:
	}
}

func (s *soundcardSource) Format() Format     { return FormatS16AM }
func (s *soundcardSource) SampleRate() uint32 { return s.sampleRate }

func (s *soundcardSource) Read(ctx context.Context, out []byte) (int, error) {
	select {
	case <-s.filled:
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-s.closed:
		return 0, fmt.Errorf("source: soundcard closed")
	}
	n := len(s.buf)
	if 2*n > len(out) {
		n = len(out) / 2
	}
	for i := 0; i < n; i++ {
		out[2*i] = byte(s.buf[i])
		out[2*i+1] = byte(s.buf[i] >> 8)
	}
	return 2 * n, nil
}

func (s *soundcardSource) Close() error {
	close(s.closed)
	if err := s.stream.Stop(); err != nil {
		s.stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("source: portaudio stop: %w", err)
	}
	if err := s.stream.Close(); err != nil {
		portaudio.Terminate()
		return fmt.Errorf("source: portaudio close: %w", err)
	}
	return portaudio.Terminate()
}
