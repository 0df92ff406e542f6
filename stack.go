package wintrap

import (
	"log/slog"
	"sync"

	"tools.zach/dev/wintrap/internal/winmsg"
)

// ///////////////////////////////////////////////
// Trap Stack
// ///////////////////////////////////////////////

// trapStack is the shared state behind one Trapper: per-signal handler
// stacks, the count of active trap scopes, and the listener that exists
// while that count is positive. A single mutex guards it all; handler
// invocation always happens outside the lock.
type trapStack struct {
	mu sync.Mutex

	bridge winmsg.Bridge
	logger *slog.Logger
	exit   func(code int) // os.Exit, swappable in tests

	// active is the number of nested trap scopes currently alive.
	active int
	// owner is the goroutine holding registration rights; valid iff
	// active > 0.
	owner uint64
	// listener is non-nil iff active > 0.
	listener *listener
	// callbacks holds, per signal, the stack of live handlers. The last
	// element is the innermost.
	callbacks map[Signal][]Handler
}

// push appends handler to the stack of every listed signal, starting the
// listener if this is the first active scope. On failure nothing stays
// registered. The first push claims goroutine ownership; later pushes from
// any other goroutine fail with ErrNotOwner, and pushes from the listener
// goroutine itself (a handler opening a nested trap) with ErrReentrantTrap.
func (ts *trapStack) push(signals []Signal, handler Handler) error {
	gid := goroutineID()

	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.active > 0 {
		if gid == ts.listener.goroutine {
			return ErrReentrantTrap
		}
		if gid != ts.owner {
			return ErrNotOwner
		}
	}

	if ts.active == 0 {
		if ts.bridge == nil {
			b, err := winmsg.New()
			if err != nil {
				return err
			}
			ts.bridge = b
		}
		l, err := startListener(ts)
		if err != nil {
			return err
		}
		ts.listener = l
		ts.owner = gid
		ts.logger.Debug("listener started", "thread", l.target.ThreadID())
	}

	ts.active++
	for _, sig := range signals {
		ts.callbacks[sig] = append(ts.callbacks[sig], handler)
	}
	ts.logger.Debug("trap pushed", "signals", signalNames(signals), "depth", ts.active)
	return nil
}

// pop removes exactly one handler from the top of every listed signal's
// stack, tearing the listener down when the last scope exits. Scopes close
// strictly LIFO on the owning goroutine, so a mismatch here means the
// nesting discipline itself was broken and pop panics rather than limp on.
func (ts *trapStack) pop(signals []Signal) {
	ts.mu.Lock()
	if ts.active == 0 {
		ts.mu.Unlock()
		panic("wintrap: trap scope closed with no active trap")
	}
	if gid := goroutineID(); gid != ts.owner {
		ts.mu.Unlock()
		panic("wintrap: trap scope closed by a non-owning goroutine")
	}
	for _, sig := range signals {
		stack := ts.callbacks[sig]
		if len(stack) == 0 {
			ts.mu.Unlock()
			panic("wintrap: trap scope closed out of order: no handler for " + sig.String())
		}
		if len(stack) == 1 {
			delete(ts.callbacks, sig)
		} else {
			ts.callbacks[sig] = stack[:len(stack)-1]
		}
	}
	ts.active--
	var l *listener
	if ts.active == 0 {
		l = ts.listener
		ts.listener = nil
	}
	depth := ts.active
	ts.mu.Unlock()

	// Teardown happens outside the lock: the listener may be mid-dispatch,
	// and dispatch takes the lock to look handlers up.
	if l != nil {
		l.stop()
		ts.logger.Debug("listener stopped")
	}
	ts.logger.Debug("trap popped", "signals", signalNames(signals), "depth", depth)
}

// innermost returns the most recently pushed live handler for sig, if any.
func (ts *trapStack) innermost(sig Signal) (Handler, bool) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	stack := ts.callbacks[sig]
	if len(stack) == 0 {
		return nil, false
	}
	return stack[len(stack)-1], true
}

// handleControlEvent is the bridge-facing control callback. It runs in the
// constrained OS context, so it only decodes the event, checks registration
// under the lock, and forwards the event to the listener; the handler itself
// runs later on the listener goroutine. Returning false leaves the event to
// the OS default, which normally terminates the process.
func (ts *trapStack) handleControlEvent(event uint32) bool {
	sig, ok := signalFromControlEvent(event)
	if !ok {
		return false
	}
	ts.mu.Lock()
	l := ts.listener
	registered := len(ts.callbacks[sig]) > 0
	ts.mu.Unlock()
	if !registered || l == nil {
		return false
	}
	return ts.bridge.PostMessage(l.target, winmsg.KindConsoleCtrl, event) == nil
}

// dispatch routes one pumped message on the listener goroutine: the
// innermost handler for the decoded signal wins, looked up under the lock
// and invoked outside it. An unhandled close-window message falls through to
// the sole-window exit policy: if this process owns no window besides the
// listener's own, nobody is left to answer the close and the process exits
// cleanly.
func (ts *trapStack) dispatch(l *listener, m winmsg.Message) {
	sig, ok := signalFromMessage(m)
	if !ok {
		return
	}
	if h, ok := ts.innermost(sig); ok {
		ts.logger.Debug("dispatching signal", "signal", sig)
		h(sig)
		return
	}
	if m.Kind == winmsg.KindClose && !ts.bridge.OwnsOtherWindows(l.target) {
		ts.logger.Debug("unhandled close with no other windows, exiting")
		ts.exit(0)
	}
}

// signalNames renders signals for log attributes.
func signalNames(signals []Signal) []string {
	names := make([]string, len(signals))
	for i, s := range signals {
		names[i] = s.String()
	}
	return names
}
