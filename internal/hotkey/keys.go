package hotkey

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Code is a Linux input key code
type Code uint16

// From linux/input-event-codes.h
const (
	KeyEsc        Code = 1
	Key1          Code = 2
	Key2          Code = 3
	Key3          Code = 4
	Key4          Code = 5
	Key5          Code = 6
	Key6          Code = 7
	Key7          Code = 8
	Key8          Code = 9
	Key9          Code = 10
	Key0          Code = 11
	KeyQ          Code = 16
	KeyW          Code = 17
	KeyE          Code = 18
	KeyR          Code = 19
	KeyT          Code = 20
	KeyY          Code = 21
	KeyU          Code = 22
	KeyI          Code = 23
	KeyO          Code = 24
	KeyP          Code = 25
	KeyLeftCtrl   Code = 29
	KeyA          Code = 30
	KeyS          Code = 31
	KeyD          Code = 32
	KeyF          Code = 33
	KeyG          Code = 34
	KeyH          Code = 35
	KeyJ          Code = 36
	KeyK          Code = 37
	KeyL          Code = 38
	KeyLeftShift  Code = 42
	KeyZ          Code = 44
	KeyX          Code = 45
	KeyC          Code = 46
	KeyV          Code = 47
	KeyB          Code = 48
	KeyN          Code = 49
	KeyM          Code = 50
	KeyRightShift Code = 54
	KeyLeftAlt    Code = 56
	KeySpace      Code = 57
	KeyF1         Code = 59
	KeyF2         Code = 60
	KeyF3         Code = 61
	KeyF4         Code = 62
	KeyF5         Code = 63
	KeyF6         Code = 64
	KeyF7         Code = 65
	KeyF8         Code = 66
	KeyF9         Code = 67
	KeyF10        Code = 68
	KeyF11        Code = 87
	KeyF12        Code = 88
	KeyRightCtrl  Code = 97
	KeyRightAlt   Code = 100
	KeyLeftMeta   Code = 125
	KeyRightMeta  Code = 126
)

// ErrInvalidKey is returned for unknown key names
var ErrInvalidKey = errors.New("unknown key name")

// Letters are the codes for a..z
var Letters = []Code{
	KeyA, KeyB, KeyC, KeyD, KeyE, KeyF, KeyG, KeyH, KeyI, KeyJ, KeyK, KeyL, KeyM,
	KeyN, KeyO, KeyP, KeyQ, KeyR, KeyS, KeyT, KeyU, KeyV, KeyW, KeyX, KeyY, KeyZ,
}

var digits = []Code{Key0, Key1, Key2, Key3, Key4, Key5, Key6, Key7, Key8, Key9}

var functionKeys = []Code{KeyF1, KeyF2, KeyF3, KeyF4, KeyF5, KeyF6, KeyF7, KeyF8, KeyF9, KeyF10, KeyF11, KeyF12}

// keyNames maps X11 keysym-style names to codes.
var keyNames = map[string]Code{
	"Super_L":   KeyLeftMeta,
	"Super_R":   KeyRightMeta,
	"Control_L": KeyLeftCtrl,
	"Control_R": KeyRightCtrl,
	"Alt_L":     KeyLeftAlt,
	"Alt_R":     KeyRightAlt,
	"Shift_L":   KeyLeftShift,
	"Shift_R":   KeyRightShift,
	"space":     KeySpace,
	"Escape":    KeyEsc,
}

func init() {
	for i, c := range functionKeys {
		keyNames[fmt.Sprintf("F%d", i+1)] = c
	}
	for i, c := range Letters {
		keyNames[string(rune('a'+i))] = c
	}
	for i, c := range digits {
		keyNames[string(rune('0'+i))] = c
	}
}

// ParseKeys converts key names to codes, dropping duplicates
func ParseKeys(names []string) ([]Code, error) {
	seen := make(map[Code]struct{}, len(names))
	codes := make([]Code, 0, len(names))
	for _, name := range names {
		code, ok := keyNames[strings.TrimSpace(name)]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidKey, name)
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	return codes, nil
}

// KeyNames returns every known key name, sorted
func KeyNames() []string {
	names := make([]string, 0, len(keyNames))
	for name := range keyNames {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Name returns the key name, or key(N) when there is none
func (c Code) Name() string {
	for name, code := range keyNames {
		if code == c {
			return name
		}
	}
	return fmt.Sprintf("key(%d)", uint16(c))
}
