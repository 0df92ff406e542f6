package wintrap

import (
	"io"
	"log/slog"
	"os"

	"tools.zach/dev/wintrap/internal/winmsg"
)

// ///////////////////////////////////////////////
// Trapper
// ///////////////////////////////////////////////

// A Trapper owns one trap stack: the handler registrations, the listener
// goroutine, and the OS-side hooks behind them. A process normally wants
// exactly one — the package-level [Trap] and [TrapStream] share [Default] —
// but tests construct their own with an injected bridge so lifetime and
// dispatch are observable in isolation.
type Trapper struct {
	stack *trapStack
}

// Option configures a Trapper.
type Option func(*Trapper)

// WithBridge substitutes the OS bridge, primarily to inject
// [winmsg.Memory] in tests. Without it the native bridge is resolved on
// first use, which fails off Windows.
func WithBridge(b winmsg.Bridge) Option {
	return func(t *Trapper) { t.stack.bridge = b }
}

// WithLogger directs the Trapper's debug logging to logger. Logging is
// discarded by default.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Trapper) { t.stack.logger = logger }
}

// New returns a Trapper with no active traps.
func New(opts ...Option) *Trapper {
	t := &Trapper{stack: &trapStack{
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		exit:      os.Exit,
		callbacks: make(map[Signal][]Handler),
	}}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Trap runs body with handler armed for the given signals and returns body's
// result. The trap is active for exactly the duration of body: handlers are
// pushed before body starts and popped after it returns, even if body
// panics. While active, handler overrides the default OS behavior for its
// signals — which for most of them is ending the process — and runs on the
// listener goroutine, concurrently with body.
//
// Traps nest: an inner Trap for an overlapping signal set shadows the outer
// handler for those signals until the inner body returns. A *SetupError is
// returned if the OS side cannot be armed, [ErrNotOwner] or
// [ErrReentrantTrap] if the call violates the single-goroutine discipline;
// in every error case body is never run.
func (t *Trapper) Trap(signals []Signal, handler Handler, body func() error) error {
	if err := t.stack.push(signals, handler); err != nil {
		return err
	}
	defer t.stack.pop(signals)
	return body()
}

// Active reports whether any trap scope is currently open.
func (t *Trapper) Active() bool {
	t.stack.mu.Lock()
	defer t.stack.mu.Unlock()
	return t.stack.active > 0
}

// ///////////////////////////////////////////////
// Package-Level API
// ///////////////////////////////////////////////

// Default is the shared Trapper behind the package-level functions.
var Default = New()

// Trap runs body with handler armed for the given signals on the [Default]
// Trapper. See [Trapper.Trap].
func Trap(signals []Signal, handler Handler, body func() error) error {
	return Default.Trap(signals, handler, body)
}

// TrapStream runs body with the given signals trapped onto a channel on the
// [Default] Trapper. See [Trapper.TrapStream].
func TrapStream(signals []Signal, body func(<-chan Signal) error) error {
	return Default.TrapStream(signals, body)
}
