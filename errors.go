package wintrap

import (
	"errors"
	"fmt"
)

// ///////////////////////////////////////////////
// Errors
// ///////////////////////////////////////////////

// Operations reported by SetupError.
const (
	opRegisterControlHandler = "register console control handler"
	opCreateMessageWindow    = "create message window"
)

// SetupError reports a failure arming the OS side of a trap: either
// installing the console control handler or creating the hidden message
// window. Err is the underlying OS error; on Windows it is a syscall.Errno
// carrying the native error code. A failed trap leaves no partial
// registration behind.
type SetupError struct {
	Op  string
	Err error
}

func (e *SetupError) Error() string { return fmt.Sprintf("wintrap: %s: %v", e.Op, e.Err) }

func (e *SetupError) Unwrap() error { return e.Err }

var (
	// ErrNotOwner is returned when a trap is opened from a goroutine other
	// than the one that opened the first active trap. Trap registration is
	// confined to a single goroutine for the whole time any trap is active.
	ErrNotOwner = errors.New("wintrap: trap opened outside the owning goroutine")

	// ErrReentrantTrap is returned when a handler tries to open a nested
	// trap. Handlers run on the listener goroutine, which can never satisfy
	// the owner confinement, so this is rejected outright rather than left
	// to misbehave.
	ErrReentrantTrap = errors.New("wintrap: cannot open a trap from inside a signal handler")
)
