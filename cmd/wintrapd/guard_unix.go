// Unix/Darwin interruption guard using os/signal.
//
// This file is compiled on all non-Windows platforms (Linux, macOS, *BSD).
// These platforms have no console control events or window messages, so the
// guard listens for SIGINT (Ctrl+C) and SIGTERM, the conventional signal
// sent by process managers (systemd, launchd) and container runtimes to
// request a graceful stop.

//go:build !windows

package main

import (
	"os"
	"os/signal"
	"syscall"
)

// ///////////////////////////////////////////////
// Guard
// ///////////////////////////////////////////////

// awaitInterrupt blocks until an OS signal or an internal shutdown request
// arrives, and returns the shutdown reason. The signal channel is buffered
// to 1 so a signal is not lost if the receiver is briefly busy when it
// arrives.
func awaitInterrupt(shutdown <-chan string) string {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(ch)

	select {
	case sig := <-ch:
		return sig.String()
	case reason := <-shutdown:
		return reason
	}
}
