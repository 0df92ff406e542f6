// listen_unix.go binds the control endpoint as a unix domain socket inside
// the daemon data directory.

//go:build !windows

package control

import (
	"fmt"
	"net"
	"os"

	"tools.zach/dev/wintrap/internal/paths"
)

// Listen binds the control endpoint. A stale socket file left by a previous
// run is removed before binding.
func Listen(dataDir paths.DataDir) (net.Listener, error) {
	sock := dataDir.Socket()
	if err := os.Remove(sock); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("remove stale control socket %s: %w", sock, err)
	}
	ln, err := net.Listen("unix", sock)
	if err != nil {
		return nil, fmt.Errorf("listen on control socket %s: %w", sock, err)
	}
	return ln, nil
}

// Dial connects to a running daemon's control endpoint.
func Dial(dataDir paths.DataDir) (net.Conn, error) {
	conn, err := net.Dial("unix", dataDir.Socket())
	if err != nil {
		return nil, fmt.Errorf("dial control socket %s: %w", dataDir.Socket(), err)
	}
	return conn, nil
}
