// PID-file locking for Unix-like systems.
//
// Compiled on all non-Windows platforms (Linux, macOS, *BSD). wintrapd
// allows one instance per data directory, and the instance check rides on
// an advisory flock(2) held on the PID file for the daemon's whole life: a
// crashed instance loses the lock with its descriptor, so the next start
// can tell a stale PID file from a live daemon without parsing anything.

//go:build !windows

package main

import (
	"fmt"
	"os"
	"syscall"
)

// ///////////////////////////////////////////////
// PID File Locking
// ///////////////////////////////////////////////

// acquireLock takes the exclusive advisory lock on the PID file without
// blocking. EWOULDBLOCK here means a live daemon holds it.
func acquireLock(f *os.File) error {
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		return fmt.Errorf("lock %s: %w", f.Name(), err)
	}
	return nil
}

// releaseLock drops the advisory lock. Closing the descriptor would drop it
// anyway; the explicit release keeps the shutdown ordering visible at the
// call site.
func releaseLock(f *os.File) error {
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_UN); err != nil {
		return fmt.Errorf("unlock %s: %w", f.Name(), err)
	}
	return nil
}
