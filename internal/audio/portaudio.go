package audio

import (
	"errors"
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// Status holds backend warnings for a delivery; zero means clean
type Status uint

const (
	StatusInputUnderflow Status = 1 << iota
	StatusInputOverflow
)

func (s Status) String() string {
	if s == 0 {
		return "ok"
	}
	var parts []string
	if s&StatusInputUnderflow != 0 {
		parts = append(parts, "input underflow")
	}
	if s&StatusInputOverflow != 0 {
		parts = append(parts, "input overflow")
	}
	if len(parts) == 0 {
		return "unknown"
	}
	return strings.Join(parts, ", ")
}

// DeliverFunc receives mono float32 blocks. The backend owns block.
type DeliverFunc func(block []float32, status Status)

// Backend opens input streams; deliveries per stream are serialised
type Backend interface {
	Open(sampleRate int, deliver DeliverFunc) (Stream, error)
}

// Stream is an opened input stream
type Stream interface {
	Start() error
	Stop() error
	Close() error
}

// PortAudio reads the default input device
type PortAudio struct {
	// Passed to PortAudio; 0 lets the host pick
	FramesPerBuffer int
}

// NewPortAudio creates a new PortAudio backend
func NewPortAudio(framesPerBuffer int) *PortAudio {
	return &PortAudio{FramesPerBuffer: framesPerBuffer}
}

// Open initialises PortAudio and opens a mono input stream.
// Each stream terminates its own reference on Close.
func (p *PortAudio) Open(sampleRate int, deliver DeliverFunc) (Stream, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, err
	}

	callback := func(in []float32, _ portaudio.StreamCallbackTimeInfo, flags portaudio.StreamCallbackFlags) {
		deliver(in, statusFromFlags(flags))
	}

	stream, err := portaudio.OpenDefaultStream(
		1, // input channels
		0, // output channels
		float64(sampleRate),
		p.FramesPerBuffer,
		callback,
	)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, err
	}
	return &paStream{stream: stream}, nil
}

type paStream struct {
	stream *portaudio.Stream
	once   sync.Once
}

func (s *paStream) Start() error {
	return s.stream.Start()
}

func (s *paStream) Stop() error {
	return s.stream.Stop()
}

func (s *paStream) Close() error {
	var err error
	s.once.Do(func() {
		err = errors.Join(s.stream.Close(), portaudio.Terminate())
	})
	return err
}

func statusFromFlags(flags portaudio.StreamCallbackFlags) Status {
	var s Status
	if flags&portaudio.InputUnderflow != 0 {
		s |= StatusInputUnderflow
	}
	if flags&portaudio.InputOverflow != 0 {
		s |= StatusInputOverflow
	}
	return s
}
