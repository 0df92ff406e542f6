// PID-file locking for Windows.
//
// Compiled only on Windows, where flock(2) does not exist. The instance
// check uses LockFileEx from [golang.org/x/sys/windows] on the PID file
// instead; the lock dies with the process handle, so a crashed instance
// never wedges the next start.

//go:build windows

package main

import (
	"fmt"
	"os"

	"golang.org/x/sys/windows"
)

// ///////////////////////////////////////////////
// PID File Locking
// ///////////////////////////////////////////////

// lockRegionLen is the byte length of the locked region. One byte at offset
// zero is enough: the lock is mutual exclusion, not data protection.
const lockRegionLen = 1

// acquireLock takes an exclusive lock on the PID file's first byte.
// LOCKFILE_FAIL_IMMEDIATELY makes the call non-blocking, so an error here
// means a live daemon holds the lock.
func acquireLock(f *os.File) error {
	ol := new(windows.Overlapped)
	flags := uint32(windows.LOCKFILE_EXCLUSIVE_LOCK | windows.LOCKFILE_FAIL_IMMEDIATELY)
	if err := windows.LockFileEx(windows.Handle(f.Fd()), flags, 0, lockRegionLen, 0, ol); err != nil {
		return fmt.Errorf("lock %s: %w", f.Name(), err)
	}
	return nil
}

// releaseLock unlocks the region. Closing the handle would release it
// anyway; the explicit release keeps the shutdown ordering visible at the
// call site.
func releaseLock(f *os.File) error {
	ol := new(windows.Overlapped)
	if err := windows.UnlockFileEx(windows.Handle(f.Fd()), 0, lockRegionLen, 0, ol); err != nil {
		return fmt.Errorf("unlock %s: %w", f.Name(), err)
	}
	return nil
}
