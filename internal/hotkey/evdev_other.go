//go:build !linux

package hotkey

// DefaultInputDir is unused off Linux.
const DefaultInputDir = ""

type unsupportedSource struct{}

func (unsupportedSource) Paths() ([]string, error)    { return nil, ErrUnsupported }
func (unsupportedSource) Open(string) (Device, error) { return nil, ErrUnsupported }

// NewSource returns a source that reports ErrUnsupported
func NewSource(string) Source {
	return unsupportedSource{}
}
