package audio

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/0xlemi/dictation/internal/fault"
)

// SampleRate is the capture rate in Hz (16 kHz mono)
const SampleRate = 16000

// ErrDeviceUnavailable is returned when the input stream cannot be opened
var ErrDeviceUnavailable = errors.New("audio input device unavailable")

// ChunkFunc receives the whole buffer so far each time a chunk fills.
// It runs on the delivery goroutine: no I/O, no blocking, no Start/Stop.
type ChunkFunc func(samples []float32)

// Recorder buffers audio from a Backend, one block per delivery
type Recorder struct {
	backend    Backend
	sampleRate int
	logger     *zap.Logger

	// Serialises Start and Stop; never taken by deliver
	lifecycle sync.Mutex
	stream    Stream

	mu                sync.Mutex
	buffer            [][]float32
	recording         bool
	onChunk           ChunkFunc
	chunkThreshold    int
	samplesSinceChunk int
	warnings          int
	seen              Status
	onFault           func(error)
}

// NewRecorder creates a new recorder (sampleRate <= 0 means SampleRate)
func NewRecorder(backend Backend, sampleRate int, logger *zap.Logger) *Recorder {
	if sampleRate <= 0 {
		sampleRate = SampleRate
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		backend:    backend,
		sampleRate: sampleRate,
		logger:     logger,
	}
}

// SetFaultHandler sets where chunk callback panics are reported
func (r *Recorder) SetFaultHandler(fn func(error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onFault = fn
}

// Start begins a fresh session. chunkSeconds <= 0 disables onChunk.
// A previous stream is released first.
func (r *Recorder) Start(onChunk ChunkFunc, chunkSeconds float64) error {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()

	threshold := 0
	if chunkSeconds > 0 {
		threshold = int(chunkSeconds * float64(r.sampleRate))
	}

	if prev := r.stream; prev != nil {
		r.disarm()
		r.stream = nil
		if err := closeStream(prev); err != nil {
			r.logger.Warn("failed to release previous audio stream", zap.Error(err))
		}
	}

	r.mu.Lock()
	r.buffer = nil
	r.recording = true
	r.onChunk = onChunk
	r.chunkThreshold = threshold
	r.samplesSinceChunk = 0
	r.warnings = 0
	r.seen = 0
	r.mu.Unlock()

	stream, err := r.backend.Open(r.sampleRate, r.deliver)
	if err != nil {
		r.disarm()
		return fmt.Errorf("%w: open stream: %w", ErrDeviceUnavailable, err)
	}
	if err := stream.Start(); err != nil {
		r.disarm()
		_ = stream.Close()
		return fmt.Errorf("%w: start stream: %w", ErrDeviceUnavailable, err)
	}
	r.stream = stream

	r.logger.Debug("audio capture started",
		zap.Int("sample_rate", r.sampleRate),
		zap.Int("chunk_threshold", threshold))
	return nil
}

// Stop ends the session and returns everything captured since Start
// (empty, never nil). Release errors come back with the samples.
func (r *Recorder) Stop() ([]float32, error) {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()

	r.mu.Lock()
	r.recording = false
	r.onChunk = nil
	warnings, seen := r.warnings, r.seen
	r.mu.Unlock()

	var err error
	if r.stream != nil {
		err = closeStream(r.stream)
		r.stream = nil
	}

	r.mu.Lock()
	samples := flatten(r.buffer)
	r.buffer = nil
	r.samplesSinceChunk = 0
	r.mu.Unlock()

	if warnings > 0 {
		r.logger.Warn("audio backend reported warnings during session",
			zap.Int("count", warnings),
			zap.Stringer("status", seen))
	}
	r.logger.Debug("audio capture stopped", zap.Int("samples", len(samples)))
	return samples, err
}

// Peek returns a copy of the buffer so far
func (r *Recorder) Peek() []float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return flatten(r.buffer)
}

// Recording reports whether a session is active
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

func (r *Recorder) SampleRate() int {
	return r.sampleRate
}

// deliver copies block; the backend reuses it
func (r *Recorder) deliver(block []float32, status Status) {
	r.mu.Lock()
	if status != 0 {
		r.warnings++
		r.seen |= status
	}
	if !r.recording {
		r.mu.Unlock()
		return
	}

	stored := make([]float32, len(block))
	copy(stored, block)
	r.buffer = append(r.buffer, stored)

	var (
		fire     ChunkFunc
		snapshot []float32
	)
	if r.onChunk != nil && r.chunkThreshold > 0 {
		r.samplesSinceChunk += len(block)
		if r.samplesSinceChunk >= r.chunkThreshold {
			snapshot = flatten(r.buffer)
			r.samplesSinceChunk = 0
			fire = r.onChunk
		}
	}
	onFault := r.onFault
	r.mu.Unlock()

	if fire == nil {
		return
	}
	if err := fault.Guard("chunk", func() { fire(snapshot) }); err != nil {
		r.logger.Error("chunk callback failed", zap.Error(err))
		if onFault != nil {
			onFault(err)
		}
	}
}

func (r *Recorder) disarm() {
	r.mu.Lock()
	r.recording = false
	r.onChunk = nil
	r.mu.Unlock()
}

func closeStream(s Stream) error {
	return errors.Join(s.Stop(), s.Close())
}

func flatten(blocks [][]float32) []float32 {
	n := 0
	for _, b := range blocks {
		n += len(b)
	}
	out := make([]float32, 0, n)
	for _, b := range blocks {
		out = append(out, b...)
	}
	return out
}

// Duration converts a sample count to time
func Duration(n, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(sampleRate)
}
