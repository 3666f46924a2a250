package hotkey

import (
	"errors"
	"io/fs"
)

// ErrUnsupported is returned where raw input devices are unavailable
var ErrUnsupported = errors.New("raw input devices not supported on this platform")

// KeyState is the value of an EV_KEY event
type KeyState int32

const (
	KeyUp     KeyState = 0
	KeyDown   KeyState = 1
	KeyRepeat KeyState = 2
)

// KeyEvent is one key transition
type KeyEvent struct {
	Code  Code
	State KeyState
}

// Device is an opened input device
type Device interface {
	Name() string
	Path() string
	// KeyCodes lists every key code the device declares it can produce.
	KeyCodes() []Code
	// ReadKey blocks until the next key event
	ReadKey() (KeyEvent, error)
	Close() error
}

// Source enumerates and opens input devices
type Source interface {
	Paths() ([]string, error)
	Open(path string) (Device, error)
}

// KeyboardFunc decides whether a device is a keyboard
type KeyboardFunc func(codes []Code) bool

// HasAlphabet reports whether codes include every letter key
func HasAlphabet(codes []Code) bool {
	have := make(map[Code]struct{}, len(codes))
	for _, c := range codes {
		have[c] = struct{}{}
	}
	for _, c := range Letters {
		if _, ok := have[c]; !ok {
			return false
		}
	}
	return true
}

// DeviceInfo describes one device found during a scan
type DeviceInfo struct {
	Path     string
	Name     string
	Keyboard bool
	Err      error // open failure, nil when the device opened
}

func (p DeviceInfo) PermissionDenied() bool {
	return errors.Is(p.Err, fs.ErrPermission)
}

// scan keeps the devices isKeyboard accepts and closes the rest.
// Open failures are recorded in the infos.
func scan(src Source, isKeyboard KeyboardFunc) ([]Device, []DeviceInfo, error) {
	paths, err := src.Paths()
	if err != nil {
		return nil, nil, err
	}

	var (
		keep  []Device
		infos = make([]DeviceInfo, 0, len(paths))
	)
	for _, path := range paths {
		dev, err := src.Open(path)
		if err != nil {
			infos = append(infos, DeviceInfo{Path: path, Err: err})
			continue
		}
		ok := isKeyboard(dev.KeyCodes())
		infos = append(infos, DeviceInfo{Path: path, Name: dev.Name(), Keyboard: ok})
		if ok {
			keep = append(keep, dev)
		} else {
			_ = dev.Close()
		}
	}
	return keep, infos, nil
}

// ListDevices lists every device with its classification
func ListDevices(src Source, isKeyboard KeyboardFunc) ([]DeviceInfo, error) {
	if isKeyboard == nil {
		isKeyboard = HasAlphabet
	}
	devs, infos, err := scan(src, isKeyboard)
	for _, d := range devs {
		_ = d.Close()
	}
	return infos, err
}
