package wintrap

import (
	"runtime"

	"tools.zach/dev/wintrap/internal/winmsg"
)

// ///////////////////////////////////////////////
// Listener
// ///////////////////////////////////////////////

// listener is the single background goroutine that owns the hidden message
// window and pumps its messages while any trap is active. It is locked to
// its OS thread for its whole life: the window can only be pumped and
// destroyed by the thread that created it.
type listener struct {
	stack *trapStack
	// target is the hidden message window. Written by the listener
	// goroutine before it reports ready; read-only afterwards.
	target winmsg.Target
	// goroutine is the listener's goroutine id, used to reject traps opened
	// from inside handlers.
	goroutine uint64
	// done closes when the pump has returned and the window is destroyed.
	done chan struct{}
}

// startListener registers the console control callback and spins up the pump
// goroutine, blocking until it reports its message window or a creation
// failure. Registration is all-or-nothing: if the window cannot be created,
// the control callback is unregistered before returning. Called with the
// stack lock held.
func startListener(ts *trapStack) (*listener, error) {
	if err := ts.bridge.RegisterControlCallback(ts.handleControlEvent); err != nil {
		return nil, &SetupError{Op: opRegisterControlHandler, Err: err}
	}

	l := &listener{stack: ts, done: make(chan struct{})}
	ready := make(chan error, 1)

	go func() {
		defer close(l.done)
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		target, err := ts.bridge.CreateMessageTarget()
		if err != nil {
			ready <- err
			return
		}
		l.target = target
		l.goroutine = goroutineID()
		ready <- nil

		if err := ts.bridge.RunPump(target, func(m winmsg.Message) {
			ts.dispatch(l, m)
		}); err != nil {
			// The pump is gone but traps are still registered; nothing can
			// be delivered until the scope unwinds.
			ts.logger.Warn("message pump failed, signals undeliverable until teardown", "error", err)
		}
		ts.bridge.DestroyMessageTarget(target)
	}()

	if err := <-ready; err != nil {
		ts.bridge.UnregisterControlCallback()
		<-l.done
		return nil, &SetupError{Op: opCreateMessageWindow, Err: err}
	}
	return l, nil
}

// stop tears the listener down synchronously. The control callback is
// unregistered before the quit is posted so no new notification can arrive
// once teardown has begun; messages already queued are still pumped before
// the quit is reached. stop does not return until the goroutine has exited.
func (l *listener) stop() {
	l.stack.bridge.UnregisterControlCallback()
	l.stack.bridge.PostQuit(l.target)
	<-l.done
}
