package control

import (
	"bufio"
	"fmt"
	"strings"
	"time"

	"tools.zach/dev/wintrap/internal/paths"
)

// sendTimeout bounds a full client round trip.
const sendTimeout = 5 * time.Second

// Send dials the control endpoint of a running daemon, issues a single
// command, and returns the reply detail. An "err" reply becomes an error.
func Send(dataDir paths.DataDir, cmd string) (string, error) {
	conn, err := Dial(dataDir)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(sendTimeout)); err != nil {
		return "", fmt.Errorf("set control deadline: %w", err)
	}

	if _, err := fmt.Fprintln(conn, cmd); err != nil {
		return "", fmt.Errorf("send control command: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("read control reply: %w", err)
		}
		return "", fmt.Errorf("control connection closed without reply")
	}

	reply := scanner.Text()
	switch {
	case strings.HasPrefix(reply, "ok"):
		return strings.TrimSpace(strings.TrimPrefix(reply, "ok")), nil
	case strings.HasPrefix(reply, "err"):
		return "", fmt.Errorf("daemon refused %q: %s", cmd, strings.TrimSpace(strings.TrimPrefix(reply, "err")))
	default:
		return "", fmt.Errorf("malformed control reply %q", reply)
	}
}
