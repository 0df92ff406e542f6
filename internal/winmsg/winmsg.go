// Package winmsg supplies the OS-facing primitives behind the wintrap core:
// installing the process console control callback, owning a hidden message
// window on a dedicated thread, pumping and posting its messages, and
// querying window ownership.
//
// Two implementations exist. The Win32 implementation (Windows builds only,
// via [New]) is backed by SetConsoleCtrlHandler and a hidden top-level
// window. [Memory] is an in-process stand-in with identical queueing
// semantics, used in tests and on non-Windows platforms to exercise the trap
// core without touching the OS.
package winmsg

import "errors"

// ///////////////////////////////////////////////
// Messages
// ///////////////////////////////////////////////

// Kind identifies the class of a pumped message.
type Kind int

const (
	// KindConsoleCtrl is a console control event forwarded to the message
	// target by the control callback. Message.Data holds the raw event code.
	KindConsoleCtrl Kind = iota + 1
	// KindClose is a close request delivered to the message target, as sent
	// by taskkill or a window manager.
	KindClose
)

// Message is one unit of work delivered by the pump.
type Message struct {
	Kind Kind
	Data uint32
}

// Console control event codes as defined by the Win32 console API. Mirrored
// here so the trap core can decode forwarded events without importing
// platform packages.
const (
	CtrlCEvent     uint32 = 0
	CtrlBreakEvent uint32 = 1
	CtrlCloseEvent uint32 = 2
)

// ///////////////////////////////////////////////
// Bridge
// ///////////////////////////////////////////////

// Target is a handle to a hidden message destination. A target is owned by
// the OS thread that created it; only that thread may pump or destroy it.
type Target interface {
	// ThreadID returns the OS thread that owns the target.
	ThreadID() uint32
}

// ControlCallback receives a raw console control event code in a constrained
// OS context. It must return quickly and must not run arbitrary user code;
// returning true marks the event as handled, false lets the OS apply its
// default behavior.
type ControlCallback func(event uint32) bool

// Bridge abstracts the platform services the trap core consumes. All methods
// are safe for concurrent use unless noted otherwise.
type Bridge interface {
	// RegisterControlCallback installs fn as the process-wide console
	// control callback. At most one callback is installed at a time.
	RegisterControlCallback(fn ControlCallback) error

	// UnregisterControlCallback removes the callback installed by
	// RegisterControlCallback. After it returns, fn is never invoked again.
	UnregisterControlCallback() error

	// CreateMessageTarget creates the hidden message target. It must be
	// called on the goroutine that will run the pump, with its OS thread
	// locked, because target ownership is per-thread.
	CreateMessageTarget() (Target, error)

	// DestroyMessageTarget releases t. It must be called on the owning
	// thread, after RunPump has returned.
	DestroyMessageTarget(t Target)

	// PostMessage queues a message to t. Callable from any thread,
	// including the constrained control-callback context.
	PostMessage(t Target, kind Kind, data uint32) error

	// RunPump blocks draining t's queue in FIFO order, invoking onMessage
	// for each message, until a quit posted by PostQuit is dequeued. It must
	// run on the thread that created t.
	RunPump(t Target, onMessage func(Message)) error

	// PostQuit queues a quit request behind any messages already posted to
	// t, ending a RunPump in progress once it is reached.
	PostQuit(t Target) error

	// OwnsOtherWindows reports whether the process owns any top-level
	// window besides t's own.
	OwnsOtherWindows(t Target) bool
}

// ErrUnsupported is returned by [New] on platforms without a native message
// bridge. Use [NewMemory] there, or in tests.
var ErrUnsupported = errors.New("winmsg: native message bridge requires windows")
