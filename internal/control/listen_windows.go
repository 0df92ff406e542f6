// listen_windows.go binds the control endpoint as a named pipe
// (\\.\pipe\wintrapd-control) using the go-winio library.

//go:build windows

package control

import (
	"fmt"
	"net"

	"github.com/Microsoft/go-winio"
	"tools.zach/dev/wintrap/internal/paths"
)

// pipePath is the full named pipe path for the control endpoint.
const pipePath = `\\.\pipe\` + paths.ControlEndpoint

// Listen binds the control endpoint. The data directory is unused on
// Windows; named pipes live in the pipe namespace, not the filesystem.
func Listen(dataDir paths.DataDir) (net.Listener, error) {
	ln, err := winio.ListenPipe(pipePath, nil)
	if err != nil {
		return nil, fmt.Errorf("listen on control pipe %s: %w", pipePath, err)
	}
	return ln, nil
}

// Dial connects to a running daemon's control endpoint.
func Dial(dataDir paths.DataDir) (net.Conn, error) {
	conn, err := winio.DialPipe(pipePath, nil)
	if err != nil {
		return nil, fmt.Errorf("dial control pipe %s: %w", pipePath, err)
	}
	return conn, nil
}
