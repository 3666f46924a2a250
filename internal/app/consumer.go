package app

import (
	"go.uber.org/zap"

	"github.com/0xlemi/dictation/internal/audio"
)

// LogConsumer records each buffer it receives in the log and discards the
// audio. It is the consumer used when nothing downstream is attached.
type LogConsumer struct {
	Logger *zap.Logger
}

func (c LogConsumer) Partial(samples []float32) {
	c.logger().Debug("partial buffer",
		zap.Int("samples", len(samples)),
		zap.Duration("duration", audio.Duration(len(samples), audio.SampleRate)))
}

func (c LogConsumer) Final(s Session) {
	c.logger().Info("session ready",
		zap.Stringer("session", s.ID),
		zap.Int("samples", len(s.Samples)),
		zap.Duration("duration", s.Duration),
		zap.Int("partials", s.Partials),
		zap.Int("dropped", s.Dropped))
}

func (c LogConsumer) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}
