//go:build !windows

package winmsg

// New returns [ErrUnsupported]: the native bridge only exists on Windows.
// Non-Windows callers (and tests anywhere) use [NewMemory].
func New() (Bridge, error) { return nil, ErrUnsupported }
