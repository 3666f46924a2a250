//go:build linux

package hotkey

import (
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	evdev "github.com/holoplot/go-evdev"
)

// DefaultInputDir is where the kernel exposes event devices
const DefaultInputDir = "/dev/input"

// EvdevSource reads keyboards through evdev. Works under Wayland and X11;
// needs read access to the event nodes (input group).
type EvdevSource struct {
	Dir string
}

// NewEvdevSource creates a source for dir (default DefaultInputDir)
func NewEvdevSource(dir string) *EvdevSource {
	if dir == "" {
		dir = DefaultInputDir
	}
	return &EvdevSource{Dir: dir}
}

// Paths lists event nodes by number, event2 before event10
func (s *EvdevSource) Paths() ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(s.Dir, "event*"))
	if err != nil {
		return nil, err
	}
	sort.Slice(paths, func(i, j int) bool {
		return eventNumber(paths[i]) < eventNumber(paths[j])
	})
	return paths, nil
}

func (s *EvdevSource) Open(path string) (Device, error) {
	d, err := evdev.Open(path)
	if err != nil {
		return nil, err
	}
	name, err := d.Name()
	if err != nil {
		name = filepath.Base(path)
	}
	return &evdevDevice{dev: d, name: name}, nil
}

func eventNumber(path string) int {
	n, err := strconv.Atoi(strings.TrimPrefix(filepath.Base(path), "event"))
	if err != nil {
		return -1
	}
	return n
}

type evdevDevice struct {
	dev  *evdev.InputDevice
	name string
}

func (d *evdevDevice) Name() string { return d.name }
func (d *evdevDevice) Path() string { return d.dev.Path() }

func (d *evdevDevice) KeyCodes() []Code {
	events := d.dev.CapableEvents(evdev.EV_KEY)
	codes := make([]Code, 0, len(events))
	for _, c := range events {
		codes = append(codes, Code(c))
	}
	return codes
}

func (d *evdevDevice) ReadKey() (KeyEvent, error) {
	for {
		ev, err := d.dev.ReadOne()
		if err != nil {
			return KeyEvent{}, err
		}
		if ev.Type != evdev.EV_KEY {
			continue
		}
		return KeyEvent{Code: Code(ev.Code), State: KeyState(ev.Value)}, nil
	}
}

func (d *evdevDevice) Close() error {
	return d.dev.Close()
}

// NewSource returns the platform input source
func NewSource(dir string) Source {
	return NewEvdevSource(dir)
}
