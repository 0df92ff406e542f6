package wintrap

import (
	"bytes"
	"runtime"
	"strconv"
)

// goroutineID returns the runtime id of the calling goroutine, parsed from
// the first line of its stack trace ("goroutine N [running]:"). The id is
// only ever compared for equality; it is never handed to the OS. Goroutines,
// not OS threads, are what callers schedule on, so they are the unit the
// owner confinement is expressed in.
func goroutineID() uint64 {
	buf := make([]byte, 64)
	n := runtime.Stack(buf, false)
	fields := bytes.Fields(buf[:n])
	if len(fields) < 2 {
		panic("wintrap: malformed goroutine stack header: " + string(buf[:n]))
	}
	id, err := strconv.ParseUint(string(fields[1]), 10, 64)
	if err != nil {
		panic("wintrap: malformed goroutine stack header: " + string(buf[:n]))
	}
	return id
}
