// Package main implements wintrapd, a small guard daemon that demonstrates
// graceful shutdown on Windows console and window interruptions. It idles
// until interrupted (Ctrl+C, Ctrl+Break, console close, window close, or a
// control "shutdown" command), then runs its shutdown sequence: webhook
// notification and scratch-file cleanup.
package main

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	"tools.zach/dev/wintrap/internal/cleanup"
	"tools.zach/dev/wintrap/internal/config"
	"tools.zach/dev/wintrap/internal/control"
	"tools.zach/dev/wintrap/internal/logger"
	"tools.zach/dev/wintrap/internal/notify"
	"tools.zach/dev/wintrap/internal/paths"
)

// ///////////////////////////////////////////////
// Version
// ///////////////////////////////////////////////

// version is set at build time via ldflags:
//   - make build: -X main.version=$(VERSION)
//
// When ldflags are not set (bare go build), resolveVersion reads the VCS info
// that Go embeds automatically, so dev builds get a useful version string
// without needing git at runtime.
var version = "dev"

// resolveVersion returns the build version string. If [version] was set via
// ldflags at build time it is returned as-is; otherwise VCS revision and dirty
// state embedded by the Go toolchain are used to construct a "dev+<hash>" tag.
func resolveVersion() string {
	if version != "dev" {
		return version
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return version
	}
	var revision string
	var dirty bool
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if revision == "" {
		return version
	}
	hash := revision[:min(7, len(revision))]
	if dirty {
		return "dev+" + hash + ".dirty"
	}
	return "dev+" + hash
}

// ///////////////////////////////////////////////
// PID Management
// ///////////////////////////////////////////////

// pidToken generates a random 16-character hex token used to prove ownership
// of the PID file, so [removePID] only deletes the file if this instance wrote it.
func pidToken() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// writePID creates or opens the PID file at [DataPaths.PID], acquires an
// advisory file lock, and writes "PID:TOKEN" content. The returned file handle
// must be kept open for the lifetime of the daemon to hold the lock; pass it to
// [removePID] on shutdown.
func writePID(dp DataPaths, token string) (*os.File, error) {
	f, err := os.OpenFile(dp.PID(), os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open PID file: %w", err)
	}
	if err := acquireLock(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("lock PID file: %w", err)
	}
	if err := f.Truncate(0); err != nil {
		_ = releaseLock(f)
		f.Close()
		return nil, fmt.Errorf("truncate PID file: %w", err)
	}
	content := fmt.Sprintf("%d:%s", os.Getpid(), token)
	if _, err := f.WriteString(content); err != nil {
		_ = releaseLock(f)
		f.Close()
		return nil, fmt.Errorf("write PID file: %w", err)
	}
	return f, nil
}

// removePID releases the advisory lock, closes the file handle, and removes the
// PID file only if the stored token matches, preventing accidental removal of a
// file owned by a different daemon instance.
func removePID(dp DataPaths, token string, f *os.File) {
	if f != nil {
		_ = releaseLock(f)
		f.Close()
	}
	data, err := os.ReadFile(dp.PID())
	if err != nil {
		return
	}
	parts := strings.SplitN(string(data), ":", 2)
	if len(parts) == 2 && parts[1] == token {
		os.Remove(dp.PID())
	}
}

// checkStalePID checks whether another daemon instance is running. It attempts
// to acquire the advisory lock on the PID file; if the lock fails, another
// instance holds it. If the lock succeeds, any previous instance is dead and
// the stale file is cleaned up.
func checkStalePID(dp DataPaths) (alive bool, pid int) {
	f, err := os.OpenFile(dp.PID(), os.O_RDWR, 0o600)
	if err != nil {
		return false, 0
	}

	if lockErr := acquireLock(f); lockErr != nil {
		data, _ := os.ReadFile(dp.PID())
		f.Close()
		parts := strings.SplitN(string(data), ":", 2)
		if len(parts) >= 1 {
			if p, convErr := strconv.Atoi(parts[0]); convErr == nil {
				return true, p
			}
		}
		return true, 0
	}

	// Lock acquired -- previous instance is dead. Clean up stale file.
	_ = releaseLock(f)
	f.Close()
	os.Remove(dp.PID())
	return false, 0
}

// ///////////////////////////////////////////////
// Default Data Directory
// ///////////////////////////////////////////////

// defaultDataDir returns the platform default directory for wintrapd data,
// typically ~/.wintrapd. Falls back to ./.wintrapd if the home directory
// cannot be determined.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", paths.DataDirRel)
	}
	return filepath.Join(home, paths.DataDirRel)
}

// ///////////////////////////////////////////////
// Main
// ///////////////////////////////////////////////

func main() {
	dataDir := flag.String("data-dir", defaultDataDir(), "Data directory for config, PID file, and logs")
	showVersion := flag.Bool("version", false, "Print version and exit")
	status := flag.Bool("status", false, "Query a running daemon and exit")
	stop := flag.Bool("stop", false, "Ask a running daemon to shut down and exit")
	reload := flag.Bool("reload", false, "Ask a running daemon to reload its config and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("wintrapd", resolveVersion())
		return
	}

	dp := DataPaths{Root: *dataDir}

	if *status || *stop || *reload {
		cmd := "status"
		switch {
		case *stop:
			cmd = "shutdown"
		case *reload:
			cmd = "reload"
		}
		reply, err := control.Send(dp, cmd)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		if reply != "" {
			fmt.Println(reply)
		}
		return
	}

	if err := os.MkdirAll(dp.Root, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: create data dir: %v\n", err)
		os.Exit(1)
	}

	if alive, pid := checkStalePID(dp); alive {
		fmt.Fprintf(os.Stderr, "daemon already running (pid %d)\n", pid)
		os.Exit(1)
	}

	cfg, err := config.Load(dp.Root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: load config: %v\n", err)
		os.Exit(1)
	}
	if _, statErr := os.Stat(dp.Config()); os.IsNotExist(statErr) {
		if saveErr := cfg.Save(dp.Config()); saveErr != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to write default config: %v\n", saveErr)
		}
	}

	log, logCloser := logger.New(dp.Log(), logger.ParseLevel(cfg.Log.Level), cfg.Log.MaxSizeMB)
	defer logCloser.Close()
	slog.SetDefault(log)

	ver := resolveVersion()
	slog.Info("wintrapd starting", "version", ver, "pid", os.Getpid(), "data_dir", dp.Root)

	token := pidToken()
	pidFile, err := writePID(dp, token)
	if err != nil {
		slog.Error("failed to write PID file", "error", err)
		os.Exit(1)
	}
	defer removePID(dp, token, pidFile)

	run(dp, cfg, ver)
}

// ///////////////////////////////////////////////
// Daemon
// ///////////////////////////////////////////////

// daemon carries the state shared between the guard, the control server, and
// the config reloader.
type daemon struct {
	dp      DataPaths
	version string
	start   time.Time

	// mu guards cfg, which the reloader swaps while the control server and
	// shutdown sequence read it.
	mu  sync.Mutex
	cfg *config.Config

	// shutdown carries the shutdown reason. Buffered so the first requester
	// never blocks; later requests are dropped.
	shutdown chan string
}

// config returns the current configuration.
func (d *daemon) config() *config.Config {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg
}

// requestShutdown records the first shutdown reason and wakes the guard.
func (d *daemon) requestShutdown(reason string) {
	select {
	case d.shutdown <- reason:
	default:
	}
}

// statusLine builds the one-line reply for the control "status" command.
func (d *daemon) statusLine() string {
	return fmt.Sprintf("running version=%s pid=%d uptime=%s",
		d.version, os.Getpid(), time.Since(d.start).Round(time.Second))
}

// reloadConfig re-reads the config file and swaps it in. Log level and
// control settings need a restart; cleanup and notify settings take effect
// immediately.
func (d *daemon) reloadConfig() error {
	cfg, err := config.Load(d.dp.Root)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.cfg = cfg
	d.mu.Unlock()
	slog.Info("config reloaded")
	return nil
}

// run wires up the control server and config watcher, blocks in the guard
// until an interruption arrives, then performs the shutdown sequence.
func run(dp DataPaths, cfg *config.Config, ver string) {
	d := &daemon{
		dp:       dp,
		version:  ver,
		start:    time.Now(),
		cfg:      cfg,
		shutdown: make(chan string, 1),
	}

	if cfg.Control.Enabled {
		ln, err := control.Listen(dp)
		if err != nil {
			slog.Error("failed to bind control endpoint", "error", err)
			os.Exit(1)
		}
		srv := control.NewServer(ln, control.Commands{
			Status: d.statusLine,
			Reload: d.reloadConfig,
			Shutdown: func() {
				d.requestShutdown("control shutdown")
			},
		}, slog.Default())
		go func() {
			if err := srv.Serve(); err != nil {
				slog.Error("control server failed", "error", err)
				d.requestShutdown("control server failure")
			}
		}()
		defer srv.Close()
		slog.Info("control endpoint ready")
	}

	watcher, err := config.NewWatcher(dp.Root)
	if err != nil {
		slog.Warn("config watcher unavailable", "error", err)
	} else {
		defer watcher.Close()
		if watcher.Polling() {
			slog.Info("using polling mode for config watching")
		}
		go func() {
			for range watcher.Events() {
				if err := d.reloadConfig(); err != nil {
					slog.Warn("config reload failed, keeping previous config", "error", err)
				}
			}
		}()
	}

	reason := awaitInterrupt(d.shutdown)
	slog.Info("shutting down", "reason", reason)

	gracefulShutdown(d, reason)
}

// gracefulShutdown runs the shutdown sequence under the configured grace
// period: webhook notification first, then scratch-file cleanup.
func gracefulShutdown(d *daemon, reason string) {
	cfg := d.config()

	if grace := cfg.Control.ShutdownGraceSeconds; grace > 0 {
		timer := time.AfterFunc(time.Duration(grace)*time.Second, func() {
			slog.Error("graceful shutdown timed out", "grace_seconds", grace)
			os.Exit(1)
		})
		defer timer.Stop()
	}

	notifier := notify.New(cfg.Notify.URL, time.Duration(cfg.Notify.TimeoutSeconds)*time.Second)
	if err := notifier.Shutdown(os.Getpid(), reason); err != nil {
		slog.Warn("shutdown notification failed", "error", err)
	}

	if cfg.Cleanup.OnShutdown {
		root := cfg.Cleanup.Root
		if root == "" {
			root = d.dp.Root
		}
		res, err := cleanup.Sweep(root, cfg.Cleanup.Patterns, slog.Default())
		if err != nil {
			slog.Warn("cleanup sweep failed", "error", err)
		} else if res.Removed > 0 || res.Failed > 0 {
			slog.Info("cleanup finished", "removed", res.Removed, "failed", res.Failed)
		}
	}

	slog.Info("wintrapd stopped")
}
