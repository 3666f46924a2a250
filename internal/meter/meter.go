// Package meter measures how loud the tail of a recording is and how much of
// its energy sits in the speech band, for the live recording indicator.
package meter

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

// SilenceDB is reported for buffers with no measurable signal.
const SilenceDB = -100.0

// Level is the analysis of one window of audio.
type Level struct {
	RMS         float64
	DB          float64 // 20*log10(RMS), floored at SilenceDB
	Peak        float64 // largest absolute sample
	SpeechRatio float64 // fraction of spectral energy between LowHz and HighHz
}

// Meter analyses the most recent window of a sample buffer.
type Meter struct {
	sampleRate int
	windowSize int
	lowHz      float64 // Bottom of the telephone speech band
	highHz     float64 // Top of the telephone speech band
	voicedDB   float64 // Minimum level to treat the window as voiced
}

// New creates a meter for audio at sampleRate, analysing the last
// windowSize samples of each buffer.
func New(sampleRate, windowSize int) *Meter {
	return &Meter{
		sampleRate: sampleRate,
		windowSize: windowSize,
		lowHz:      300,
		highHz:     3400,
		voicedDB:   -45,
	}
}

// Analyze measures the last window of samples. Shorter buffers are
// analysed whole.
func (m *Meter) Analyze(samples []float32) Level {
	if len(samples) > m.windowSize {
		samples = samples[len(samples)-m.windowSize:]
	}
	if len(samples) == 0 {
		return Level{DB: SilenceDB}
	}

	sumSquares := 0.0
	peak := 0.0
	x := make([]float64, len(samples))
	for i, s := range samples {
		v := float64(s)
		x[i] = v
		sumSquares += v * v
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	rms := math.Sqrt(sumSquares / float64(len(samples)))

	level := Level{RMS: rms, DB: SilenceDB, Peak: peak}
	if rms > 1e-7 {
		level.DB = 20 * math.Log10(rms)
	}
	if len(x) < 2 || rms <= 1e-7 {
		return level
	}

	level.SpeechRatio = m.speechRatio(x)
	return level
}

// Voiced reports whether l is loud enough and speech-like enough to count as
// someone talking.
func (m *Meter) Voiced(l Level) bool {
	return l.DB >= m.voicedDB && l.SpeechRatio >= 0.5
}

func (m *Meter) speechRatio(x []float64) float64 {
	window.Apply(x, window.Hann)
	spectrum := fft.FFTReal(x)

	binHz := float64(m.sampleRate) / float64(len(spectrum))
	var total, band float64
	// Skip DC; only the first half of a real FFT is unique.
	for k := 1; k <= len(spectrum)/2; k++ {
		mag := cmplx.Abs(spectrum[k])
		e := mag * mag
		total += e
		if f := float64(k) * binHz; f >= m.lowHz && f <= m.highHz {
			band += e
		}
	}
	if total == 0 {
		return 0
	}
	return band / total
}
