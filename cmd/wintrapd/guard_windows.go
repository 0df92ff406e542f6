// Windows interruption guard built on the wintrap library.
//
// This file is compiled only on Windows. It traps all four interruption
// signals -- Ctrl+C, Ctrl+Break, console close, and window close -- so the
// daemon gets a chance to run its shutdown sequence even for the close
// events that os/signal does not surface distinctly.

//go:build windows

package main

import (
	"log/slog"

	"tools.zach/dev/wintrap"
)

// ///////////////////////////////////////////////
// Guard
// ///////////////////////////////////////////////

// guardSignals is the full set of interruptions the daemon traps.
var guardSignals = []wintrap.Signal{
	wintrap.CtrlC,
	wintrap.CtrlBreak,
	wintrap.CloseConsole,
	wintrap.CloseWindow,
}

// awaitInterrupt blocks until a trapped interruption or an internal shutdown
// request arrives, and returns the shutdown reason. If signal trapping cannot
// be set up, the guard degrades to waiting on internal requests only.
func awaitInterrupt(shutdown <-chan string) string {
	var reason string
	err := wintrap.TrapStream(guardSignals, func(signals <-chan wintrap.Signal) error {
		select {
		case sig := <-signals:
			reason = sig.String()
		case reason = <-shutdown:
		}
		return nil
	})
	if err != nil {
		slog.Error("signal trapping unavailable, waiting on control shutdown only", "error", err)
		return <-shutdown
	}
	return reason
}
