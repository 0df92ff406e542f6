// Package control implements the wintrapd local control endpoint: a
// line-oriented command protocol over a named pipe on Windows and a unix
// socket elsewhere.
//
// Each connection carries newline-delimited commands. The server answers a
// recognized command with a single "ok" line (optionally followed by detail
// text) and anything else with an "err" line.
package control

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"
)

// ///////////////////////////////////////////////
// Commands
// ///////////////////////////////////////////////

// Commands holds the callbacks a Server dispatches to. Nil callbacks make
// the corresponding command report an error.
type Commands struct {
	// Status returns a human-readable one-line daemon status.
	Status func() string
	// Reload re-reads the daemon configuration.
	Reload func() error
	// Shutdown asks the daemon to exit gracefully. It must not block.
	Shutdown func()
}

// ///////////////////////////////////////////////
// Server
// ///////////////////////////////////////////////

// Server accepts control connections and dispatches line commands.
type Server struct {
	ln     net.Listener
	cmds   Commands
	logger *slog.Logger

	// once ensures [Server.Close] is idempotent.
	once sync.Once
	// done is closed when Close runs, so the accept loop can tell a real
	// error from its own listener being torn down.
	done chan struct{}
	// wg tracks the accept loop and per-connection goroutines.
	wg sync.WaitGroup
}

// NewServer wraps an already-bound listener. The caller normally obtains
// the listener from [Listen].
func NewServer(ln net.Listener, cmds Commands, logger *slog.Logger) *Server {
	return &Server{
		ln:     ln,
		cmds:   cmds,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Serve accepts connections until the server is closed. It always returns
// nil after Close; any other accept failure is returned as an error.
func (s *Server) Serve() error {
	s.wg.Add(1)
	defer s.wg.Done()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			select {
			case <-s.done:
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept control connection: %w", err)
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(conn)
		}()
	}
}

// Close stops accepting connections and waits for in-flight handlers.
func (s *Server) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ln.Close()
		s.wg.Wait()
	})
	return err
}

// Addr returns the listener's address.
func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

// ///////////////////////////////////////////////
// Connection Handling
// ///////////////////////////////////////////////

// connIdleTimeout bounds how long a control connection may sit between
// commands before the server drops it.
const connIdleTimeout = 30 * time.Second

// handle reads newline-delimited commands from conn until EOF or error.
func (s *Server) handle(conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	for {
		if err := conn.SetReadDeadline(time.Now().Add(connIdleTimeout)); err != nil {
			return
		}
		if !scanner.Scan() {
			return
		}

		cmd := strings.TrimSpace(scanner.Text())
		if cmd == "" {
			continue
		}
		s.logger.Debug("control command received", "command", cmd)

		reply := s.dispatch(cmd)
		if _, err := fmt.Fprintln(conn, reply); err != nil {
			s.logger.Debug("control reply failed", "error", err)
			return
		}

		// Shutdown is the last command a connection can usefully issue.
		if cmd == "shutdown" {
			return
		}
	}
}

// dispatch maps a command line to its reply line.
func (s *Server) dispatch(cmd string) string {
	switch cmd {
	case "status":
		if s.cmds.Status == nil {
			return "err status unavailable"
		}
		return "ok " + s.cmds.Status()
	case "reload":
		if s.cmds.Reload == nil {
			return "err reload unavailable"
		}
		if err := s.cmds.Reload(); err != nil {
			return "err " + err.Error()
		}
		return "ok reloaded"
	case "shutdown":
		if s.cmds.Shutdown == nil {
			return "err shutdown unavailable"
		}
		s.cmds.Shutdown()
		return "ok shutting down"
	default:
		return fmt.Sprintf("err unknown command %q", cmd)
	}
}
