// Package app wires audio capture to the hotkey watcher: holding the
// combination records, releasing it hands the recording downstream.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/0xlemi/dictation/internal/audio"
	"github.com/0xlemi/dictation/internal/fault"
	"github.com/0xlemi/dictation/internal/hotkey"
	"github.com/0xlemi/dictation/internal/meter"
	"github.com/0xlemi/dictation/internal/ui"
)

const meterWindow = 2048

// Session is one finished recording.
type Session struct {
	ID       uuid.UUID
	Samples  []float32
	Duration time.Duration
	Partials int // incremental buffers handed to the consumer
	Dropped  int // incremental buffers dropped because the queue was full
}

// Consumer receives recordings. Both methods run on a single worker
// goroutine, in order: every Partial of a session arrives before its Final.
type Consumer interface {
	// Partial receives everything recorded so far in the current session.
	Partial(samples []float32)
	Final(s Session)
}

// Options configures a Dictation.
type Options struct {
	Hotkey        []hotkey.Code
	ChunkSeconds  float64
	PartialQueue  int
	MeterInterval time.Duration
}

// Dictation owns a Recorder and a Watcher and runs the push-to-talk loop.
type Dictation struct {
	recorder *audio.Recorder
	watcher  *hotkey.Watcher
	consumer Consumer
	meter    *meter.Meter
	logger   *zap.Logger
	opts     Options
	notify   func(msg any)

	keys   chan bool // true on press, false on release
	q      *queue
	faults chan error
	lost   chan error
	quit   chan struct{}

	partials atomic.Int64
	dropped  atomic.Int64

	// Owned by the Run goroutine.
	session  uuid.UUID
	started  time.Time
	reported int64 // drops already logged this session
}

// New creates a Dictation recording from backend and watching the
// keyboards of source.
func New(backend audio.Backend, source hotkey.Source, consumer Consumer, opts Options, logger *zap.Logger) *Dictation {
	if logger == nil {
		logger = zap.NewNop()
	}
	if consumer == nil {
		consumer = LogConsumer{Logger: logger}
	}
	if opts.PartialQueue < 1 {
		opts.PartialQueue = 1
	}
	if opts.MeterInterval <= 0 {
		opts.MeterInterval = 100 * time.Millisecond
	}

	d := &Dictation{
		consumer: consumer,
		meter:    meter.New(audio.SampleRate, meterWindow),
		logger:   logger,
		opts:     opts,
		notify:   func(any) {},
		keys:     make(chan bool, 32),
		q:        newQueue(opts.PartialQueue),
		faults:   make(chan error, 16),
		lost:     make(chan error, 1),
		quit:     make(chan struct{}),
	}

	d.recorder = audio.NewRecorder(backend, audio.SampleRate, logger.Named("audio"))
	d.recorder.SetFaultHandler(d.fault)

	d.watcher = hotkey.NewWatcher(source, opts.Hotkey,
		func() { d.key(true) },
		func() { d.key(false) },
		logger.Named("hotkey"))
	d.watcher.SetFaultHandler(d.fault)
	d.watcher.SetDeviceLostHandler(d.deviceLost)
	return d
}

// SetNotifier registers fn to receive ui messages describing progress.
// fn is called from the run loop, the consumer worker and keyboard readers,
// never from the audio delivery goroutine. It should return quickly.
func (d *Dictation) SetNotifier(fn func(msg any)) {
	if fn == nil {
		fn = func(any) {}
	}
	d.notify = fn
}

// Watcher exposes the underlying hotkey watcher.
func (d *Dictation) Watcher() *hotkey.Watcher {
	return d.watcher
}

// Run watches the keyboards and records while the hotkey is held, until ctx
// is cancelled or every keyboard is gone. A session in progress at shutdown
// is finished and delivered. Run may only be called once.
func (d *Dictation) Run(ctx context.Context) error {
	if err := d.watcher.Start(); err != nil {
		return err
	}
	d.notify(ui.KeyboardsMsg{Count: d.watcher.Watching(), Hotkey: d.watcher.Hotkey().String()})

	var g errgroup.Group
	g.Go(d.work)

	err := d.loop(ctx)

	if d.recorder.Recording() {
		d.finish()
	}
	d.watcher.Stop()
	close(d.quit)
	if werr := g.Wait(); werr != nil {
		err = errors.Join(err, werr)
	}
	return err
}

func (d *Dictation) loop(ctx context.Context) error {
	ticker := time.NewTicker(d.opts.MeterInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-d.lost:
			return err
		case err := <-d.faults:
			d.notify(ui.FaultMsg{Err: err})
		case pressed := <-d.keys:
			if pressed {
				d.begin()
			} else {
				d.finish()
			}
		case <-ticker.C:
			if d.recorder.Recording() {
				d.level()
				d.reportDrops()
			}
		}
	}
}

func (d *Dictation) begin() {
	if d.recorder.Recording() {
		return
	}
	d.partials.Store(0)
	d.dropped.Store(0)
	d.reported = 0
	d.session = uuid.New()
	d.started = time.Now()

	if err := d.recorder.Start(d.enqueue, d.opts.ChunkSeconds); err != nil {
		d.logger.Error("failed to start recording", zap.Stringer("session", d.session), zap.Error(err))
		d.notify(ui.FaultMsg{Err: err})
		return
	}
	d.logger.Info("recording started", zap.Stringer("session", d.session))
	d.notify(ui.StateMsg{Recording: true, Session: d.session.String()})
}

func (d *Dictation) finish() {
	if !d.recorder.Recording() {
		return
	}
	samples, err := d.recorder.Stop()
	d.reportDrops()
	if err != nil {
		d.logger.Warn("audio stream did not close cleanly", zap.Stringer("session", d.session), zap.Error(err))
		d.notify(ui.FaultMsg{Err: err})
	}

	s := &Session{
		ID:       d.session,
		Samples:  samples,
		Duration: audio.Duration(len(samples), d.recorder.SampleRate()),
		Partials: int(d.partials.Load()),
		Dropped:  int(d.dropped.Load()),
	}
	d.logger.Info("recording finished",
		zap.Stringer("session", s.ID),
		zap.Int("samples", len(samples)),
		zap.Duration("duration", s.Duration),
		zap.Duration("held", time.Since(d.started)),
		zap.Int("dropped", s.Dropped))
	d.notify(ui.StateMsg{Recording: false, Session: s.ID.String()})
	d.notify(ui.ResultMsg{Session: s.ID.String(), Samples: len(samples), Duration: s.Duration})
	d.q.pushFinal(s)
}

func (d *Dictation) level() {
	samples := d.recorder.Peek()
	l := d.meter.Analyze(samples)
	d.notify(ui.LevelMsg{
		Level:   l,
		Voiced:  d.meter.Voiced(l),
		Samples: len(samples),
		Dropped: int(d.dropped.Load()),
	})
}

// reportDrops logs buffers dropped since the last report. Dropping happens
// on the audio goroutine, which does not log.
func (d *Dictation) reportDrops() {
	n := d.dropped.Load()
	if n <= d.reported {
		return
	}
	d.logger.Warn("partial queue full, dropped buffers",
		zap.Stringer("session", d.session),
		zap.Int64("dropped", n-d.reported),
		zap.Int64("total", n))
	d.reported = n
}

// enqueue is the recorder's chunk callback. It runs on the audio delivery
// goroutine: no logging, no notifier, no blocking. A full queue drops the
// buffer and counts it.
func (d *Dictation) enqueue(samples []float32) {
	if d.q.offerPartial(samples) {
		d.partials.Add(1)
		return
	}
	d.dropped.Add(1)
}

// work delivers queued buffers to the consumer until quit, then drains
// whatever is left.
func (d *Dictation) work() error {
	for {
		d.drain()
		select {
		case <-d.q.ready:
		case <-d.quit:
			d.drain()
			return nil
		}
	}
}

func (d *Dictation) drain() {
	for {
		j, ok := d.q.pop()
		if !ok {
			return
		}
		d.deliver(j)
	}
}

func (d *Dictation) deliver(j job) {
	var (
		name string
		err  error
	)
	if j.final != nil {
		name = "final"
		err = fault.Guard(name, func() { d.consumer.Final(*j.final) })
	} else {
		name = "partial"
		err = fault.Guard(name, func() { d.consumer.Partial(j.partial) })
		d.notify(ui.ChunkMsg{Samples: len(j.partial), Dropped: int(d.dropped.Load())})
	}
	if err != nil {
		d.logger.Error("consumer failed", zap.String("callback", name), zap.Error(err))
		d.notify(ui.FaultMsg{Err: err})
	}
}

// key runs on a watcher reader goroutine.
func (d *Dictation) key(pressed bool) {
	select {
	case d.keys <- pressed:
	case <-d.quit:
	}
}

// fault may run on the audio delivery goroutine; the run loop forwards it.
func (d *Dictation) fault(err error) {
	select {
	case d.faults <- err:
	default:
	}
}

func (d *Dictation) deviceLost(device string, err error) {
	remaining := d.watcher.Watching()
	d.notify(ui.DeviceLostMsg{Device: device, Remaining: remaining})
	if remaining > 0 {
		return
	}
	select {
	case d.lost <- fmt.Errorf("%w: last keyboard %s lost: %w", hotkey.ErrNoKeyboards, device, err):
	default:
	}
}
