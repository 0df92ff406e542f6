// Package wintrap installs transient, nestable handlers for abstracted
// Windows interruption signals — Ctrl+C, Ctrl+Break, console close, and
// window close — for the duration of a scoped body of work.
//
// A trap is active only while its body runs. Traps nest freely, but for any
// given signal only the innermost active handler is invoked. Handlers run on
// a dedicated listener goroutine (locked to its own OS thread) that owns a
// hidden message window and pumps its messages; the Win32 console control
// callback never runs handler code directly, it only forwards events to the
// listener.
//
//	err := wintrap.Trap([]wintrap.Signal{wintrap.CtrlC, wintrap.CloseWindow},
//		func(s wintrap.Signal) {
//			// react to s; runs on the listener goroutine
//		},
//		func() error {
//			// do work with the trap active
//			return nil
//		})
//
// All traps must be opened and closed from a single goroutine: the one that
// opened the first active trap. Calls from elsewhere fail with [ErrNotOwner],
// and opening a trap from inside a handler fails with [ErrReentrantTrap].
//
// Note that trapping Ctrl+C does not work under `go run`; run the built
// binary directly.
package wintrap

import "tools.zach/dev/wintrap/internal/winmsg"

// ///////////////////////////////////////////////
// Signals
// ///////////////////////////////////////////////

// Signal is one of the abstracted interruption events a trap can catch.
type Signal int

const (
	// CtrlC is a CTRL_C_EVENT from SetConsoleCtrlHandler, the equivalent of
	// SIGINT on Unix. Usually the user pressing Ctrl+C in the console.
	CtrlC Signal = iota

	// CtrlBreak is a CTRL_BREAK_EVENT, roughly analogous to SIGQUIT. The
	// user pressing Ctrl+Break in the console.
	CtrlBreak

	// CloseConsole is a CTRL_CLOSE_EVENT, roughly analogous to SIGHUP. The
	// user closing the console window.
	CloseConsole

	// CloseWindow is a WM_CLOSE window message, roughly analogous to
	// SIGTERM. Sent to the top-level windows of the process by taskkill and
	// by Process.Kill.
	CloseWindow
)

// String returns the signal's name.
func (s Signal) String() string {
	switch s {
	case CtrlC:
		return "CtrlC"
	case CtrlBreak:
		return "CtrlBreak"
	case CloseConsole:
		return "CloseConsole"
	case CloseWindow:
		return "CloseWindow"
	default:
		return "Signal(unknown)"
	}
}

// signalFromControlEvent decodes a raw console control event code. Only the
// three console-delivered signals have event codes.
func signalFromControlEvent(event uint32) (Signal, bool) {
	switch event {
	case winmsg.CtrlCEvent:
		return CtrlC, true
	case winmsg.CtrlBreakEvent:
		return CtrlBreak, true
	case winmsg.CtrlCloseEvent:
		return CloseConsole, true
	default:
		return 0, false
	}
}

// controlEvent is the inverse of signalFromControlEvent.
func (s Signal) controlEvent() (uint32, bool) {
	switch s {
	case CtrlC:
		return winmsg.CtrlCEvent, true
	case CtrlBreak:
		return winmsg.CtrlBreakEvent, true
	case CloseConsole:
		return winmsg.CtrlCloseEvent, true
	default:
		return 0, false
	}
}

// signalFromMessage decodes a pumped bridge message into a signal.
func signalFromMessage(m winmsg.Message) (Signal, bool) {
	switch m.Kind {
	case winmsg.KindClose:
		return CloseWindow, true
	case winmsg.KindConsoleCtrl:
		return signalFromControlEvent(m.Data)
	default:
		return 0, false
	}
}

// Handler is invoked on the listener goroutine each time one of its trapped
// signals is caught. A handler may be called any number of times while its
// trap is active. When the last trap scope exits, teardown joins the
// listener, so no call outlives it — but a nested scope closes without that
// join, and a delivery already dispatched when it closes can still invoke
// the handler just after its body has returned. Handlers must tolerate one
// such late call.
type Handler func(Signal)
