// Package hotkey turns raw key events from every attached keyboard into a
// single edge-triggered "combination held" signal.
//
// Each keyboard gets its own reader goroutine. All readers share one pressed
// set and one active latch, guarded by a single mutex, so press and release
// callbacks strictly alternate no matter how events from different devices
// interleave.
package hotkey

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/0xlemi/dictation/internal/fault"
)

// ErrNoKeyboards is returned by Start when no keyboard could be opened
var ErrNoKeyboards = errors.New("no keyboard input devices available")

// Watcher watches every keyboard for a key combination.
// onPress and onRelease run on a reader goroutine, one at a time and in
// order. They must be quick and must not call Start or Stop.
type Watcher struct {
	source    Source
	logger    *zap.Logger
	onPress   func()
	onRelease func()

	lifecycle sync.Mutex

	mu         sync.Mutex
	target     map[Code]struct{}
	pressed    map[Code]struct{}
	active     bool
	running    bool
	gen        uint64
	readers    int
	group      *errgroup.Group
	isKeyboard KeyboardFunc
	onFault    func(error)
	onLost     func(device string, err error)
	nextTicket uint64

	// turn hands out callback slots in ticket order.
	turnMu  sync.Mutex
	turn    *sync.Cond
	serving uint64
}

// NewWatcher creates a new watcher for codes
func NewWatcher(source Source, codes []Code, onPress, onRelease func(), logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Watcher{
		source:     source,
		logger:     logger,
		onPress:    onPress,
		onRelease:  onRelease,
		target:     codeSet(codes),
		pressed:    make(map[Code]struct{}),
		isKeyboard: HasAlphabet,
	}
	w.turn = sync.NewCond(&w.turnMu)
	return w
}

// SetKeyboardFunc replaces the keyboard heuristic for the next Start
func (w *Watcher) SetKeyboardFunc(fn KeyboardFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if fn == nil {
		fn = HasAlphabet
	}
	w.isKeyboard = fn
}

// SetFaultHandler sets where callback panics are reported
func (w *Watcher) SetFaultHandler(fn func(error)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onFault = fn
}

// SetDeviceLostHandler sets fn to be called when a device read fails
func (w *Watcher) SetDeviceLostHandler(fn func(device string, err error)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onLost = fn
}

// Start scans for keyboards and starts one reader per device.
// Unopenable devices are skipped; with none left it returns ErrNoKeyboards.
func (w *Watcher) Start() error {
	w.lifecycle.Lock()
	defer w.lifecycle.Unlock()

	// Reset before any reader exists, and retire readers from a previous Start.
	w.mu.Lock()
	w.pressed = make(map[Code]struct{})
	w.active = false
	w.running = false
	w.readers = 0
	w.gen++
	gen := w.gen
	isKeyboard := w.isKeyboard
	w.mu.Unlock()

	w.logger.Debug("scanning input devices")
	devs, infos, err := scan(w.source, isKeyboard)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNoKeyboards, err)
	}

	denied := 0
	for _, p := range infos {
		switch {
		case p.PermissionDenied():
			denied++
			w.logger.Debug("input device permission denied", zap.String("path", p.Path))
		case p.Err != nil:
			w.logger.Debug("input device unavailable", zap.String("path", p.Path), zap.Error(p.Err))
		default:
			w.logger.Debug("input device",
				zap.String("path", p.Path),
				zap.String("device", p.Name),
				zap.Bool("keyboard", p.Keyboard))
		}
	}

	if len(devs) == 0 {
		if denied > 0 {
			return fmt.Errorf("%w: %d device(s) refused access; add the user to the input group", ErrNoKeyboards, denied)
		}
		return ErrNoKeyboards
	}

	g := new(errgroup.Group)
	w.mu.Lock()
	w.running = true
	w.readers = len(devs)
	w.group = g
	w.mu.Unlock()

	names := make([]string, 0, len(devs))
	for _, dev := range devs {
		dev := dev
		names = append(names, dev.Name())
		g.Go(func() error { return w.read(dev, gen) })
	}

	w.logger.Info("watching keyboards",
		zap.Strings("devices", names),
		zap.Int("permission_denied", denied),
		zap.Stringer("hotkey", w.Hotkey()))
	return nil
}

// Stop asks the readers to exit; each notices at its next event
func (w *Watcher) Stop() {
	w.lifecycle.Lock()
	defer w.lifecycle.Unlock()

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	w.running = false
	w.readers = 0
	w.gen++
}

// Wait blocks until the readers exit and returns the first device error
func (w *Watcher) Wait() error {
	w.mu.Lock()
	g := w.group
	w.mu.Unlock()
	if g == nil {
		return nil
	}
	return g.Wait()
}

// UpdateHotkey replaces the combination; held keys stay held
func (w *Watcher) UpdateHotkey(codes []Code) {
	w.mu.Lock()
	w.target = codeSet(codes)
	w.mu.Unlock()
	w.logger.Info("hotkey updated", zap.Stringer("hotkey", Combo(codes)))
}

// Hotkey returns the current combination
func (w *Watcher) Hotkey() Combo {
	w.mu.Lock()
	defer w.mu.Unlock()
	return sortedCodes(w.target)
}

// Pressed returns the held codes, sorted
func (w *Watcher) Pressed() []Code {
	w.mu.Lock()
	defer w.mu.Unlock()
	return sortedCodes(w.pressed)
}

// Active reports whether the combination is held
func (w *Watcher) Active() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active
}

func (w *Watcher) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Watching returns how many readers are alive
func (w *Watcher) Watching() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.readers
}

func (w *Watcher) read(dev Device, gen uint64) error {
	defer dev.Close()

	for {
		ev, err := dev.ReadKey()
		if err != nil {
			return w.readerFailed(dev, gen, err)
		}
		if !w.handle(ev, gen) {
			return nil
		}
	}
}

// handle applies ev and fires any callback. False means the reader is stale.
func (w *Watcher) handle(ev KeyEvent, gen uint64) bool {
	w.mu.Lock()
	if w.gen != gen {
		w.mu.Unlock()
		return false
	}

	var (
		name string
		cb   func()
	)
	switch ev.State {
	case KeyDown:
		w.pressed[ev.Code] = struct{}{}
		if !w.active && w.satisfied() {
			w.active = true
			name, cb = "on_press", w.onPress
		}
	case KeyUp:
		delete(w.pressed, ev.Code)
		if _, ok := w.target[ev.Code]; ok && w.active {
			w.active = false
			name, cb = "on_release", w.onRelease
		}
	}
	if name == "" {
		w.mu.Unlock()
		return true
	}
	ticket := w.nextTicket
	w.nextTicket++
	onFault := w.onFault
	w.mu.Unlock()

	w.turnMu.Lock()
	for w.serving != ticket {
		w.turn.Wait()
	}
	w.turnMu.Unlock()

	err := fault.Guard(name, cb)

	w.turnMu.Lock()
	w.serving++
	w.turn.Broadcast()
	w.turnMu.Unlock()

	if err != nil {
		w.logger.Error("hotkey callback failed", zap.String("callback", name), zap.Error(err))
		if onFault != nil {
			onFault(err)
		}
	}
	return true
}

// satisfied: every target key held, target non-empty. Caller holds w.mu.
func (w *Watcher) satisfied() bool {
	if len(w.target) == 0 {
		return false
	}
	for c := range w.target {
		if _, ok := w.pressed[c]; !ok {
			return false
		}
	}
	return true
}

func (w *Watcher) readerFailed(dev Device, gen uint64, err error) error {
	w.mu.Lock()
	if w.gen != gen {
		w.mu.Unlock()
		return nil
	}
	w.readers--
	remaining := w.readers
	onLost := w.onLost
	w.mu.Unlock()

	w.logger.Warn("keyboard reader stopped",
		zap.String("device", dev.Name()),
		zap.String("path", dev.Path()),
		zap.Int("remaining", remaining),
		zap.Error(err))
	if onLost != nil {
		onLost(dev.Name(), err)
	}
	return fmt.Errorf("read %s: %w", dev.Path(), err)
}

// Combo is a key combination, printable as "Control_L+space".
type Combo []Code

func (c Combo) String() string {
	s := ""
	for i, code := range c {
		if i > 0 {
			s += "+"
		}
		s += code.Name()
	}
	return s
}

func codeSet(codes []Code) map[Code]struct{} {
	set := make(map[Code]struct{}, len(codes))
	for _, c := range codes {
		set[c] = struct{}{}
	}
	return set
}

func sortedCodes(set map[Code]struct{}) []Code {
	out := make([]Code, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}
