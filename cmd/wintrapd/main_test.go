package main

import (
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"tools.zach/dev/wintrap/internal/config"
)

// ///////////////////////////////////////////////
// resolveVersion Tests
// ///////////////////////////////////////////////

func TestResolveVersionWithLdflags(t *testing.T) {
	// When version is set to something other than "dev", it should be returned as-is.
	original := version
	defer func() { version = original }()

	version = "1.2.3"
	got := resolveVersion()
	if got != "1.2.3" {
		t.Errorf("resolveVersion() = %q, want %q", got, "1.2.3")
	}
}

func TestResolveVersionDev(t *testing.T) {
	// When version is "dev", resolveVersion falls through to debug.ReadBuildInfo.
	// In test binaries, ReadBuildInfo may or may not return VCS info.
	// We just verify it returns a non-empty string.
	original := version
	defer func() { version = original }()

	version = "dev"
	got := resolveVersion()
	if got == "" {
		t.Error("resolveVersion() returned empty string")
	}
	// It should either be "dev" (no VCS info) or "dev+<hash>" or "dev+<hash>.dirty".
	if !strings.HasPrefix(got, "dev") {
		t.Errorf("resolveVersion() = %q, expected to start with 'dev'", got)
	}
}

// ///////////////////////////////////////////////
// PID Management Tests
// ///////////////////////////////////////////////

func TestPidToken_Unique(t *testing.T) {
	a, b := pidToken(), pidToken()
	if a == b {
		t.Errorf("pidToken() returned the same value twice: %q", a)
	}
}

func TestPidToken_Length(t *testing.T) {
	if got := pidToken(); len(got) != 16 {
		t.Errorf("pidToken() length = %d, want 16", len(got))
	}
}

func TestWritePID_CreatesFile(t *testing.T) {
	dp := DataPaths{Root: t.TempDir()}
	token := pidToken()

	f, err := writePID(dp, token)
	if err != nil {
		t.Fatalf("writePID() error = %v", err)
	}
	defer removePID(dp, token, f)

	if _, err := os.Stat(dp.PID()); err != nil {
		t.Errorf("PID file not created: %v", err)
	}
}

func TestWritePID_FileContainsPID(t *testing.T) {
	dp := DataPaths{Root: t.TempDir()}
	token := pidToken()

	f, err := writePID(dp, token)
	if err != nil {
		t.Fatalf("writePID() error = %v", err)
	}
	defer removePID(dp, token, f)

	data, err := os.ReadFile(dp.PID())
	if err != nil {
		t.Fatalf("reading PID file: %v", err)
	}
	want := fmt.Sprintf("%d:%s", os.Getpid(), token)
	if string(data) != want {
		t.Errorf("PID file content = %q, want %q", data, want)
	}
}

func TestWritePID_LockExcludesSecondHolder(t *testing.T) {
	dp := DataPaths{Root: t.TempDir()}
	token := pidToken()

	f, err := writePID(dp, token)
	if err != nil {
		t.Fatalf("writePID() error = %v", err)
	}
	defer removePID(dp, token, f)

	// A second handle on the same PID file must be refused while the first
	// daemon holds the lock. Lock ownership follows the open file, not the
	// process, so a second open in-process exercises the same exclusion.
	other, err := os.OpenFile(dp.PID(), os.O_RDWR, 0o600)
	if err != nil {
		t.Fatalf("opening second handle: %v", err)
	}
	defer other.Close()

	if err := acquireLock(other); err == nil {
		_ = releaseLock(other)
		t.Error("acquireLock succeeded while another handle holds the lock")
	}
}

func TestRemovePID_MatchingToken(t *testing.T) {
	dp := DataPaths{Root: t.TempDir()}
	token := pidToken()

	f, err := writePID(dp, token)
	if err != nil {
		t.Fatalf("writePID() error = %v", err)
	}

	removePID(dp, token, f)
	if _, err := os.Stat(dp.PID()); !os.IsNotExist(err) {
		t.Error("PID file still exists after removePID with matching token")
	}
}

func TestRemovePID_MismatchedToken(t *testing.T) {
	dp := DataPaths{Root: t.TempDir()}
	token := pidToken()

	f, err := writePID(dp, token)
	if err != nil {
		t.Fatalf("writePID() error = %v", err)
	}

	removePID(dp, "deadbeefdeadbeef", f)
	if _, err := os.Stat(dp.PID()); err != nil {
		t.Error("PID file was removed despite mismatched token")
	}
	os.Remove(dp.PID())
}

func TestRemovePID_NilFile(t *testing.T) {
	dp := DataPaths{Root: t.TempDir()}
	// Must not panic with a nil file handle and no PID file on disk.
	removePID(dp, "sometoken", nil)
}

func TestCheckStalePID_NoFile(t *testing.T) {
	dp := DataPaths{Root: t.TempDir()}
	alive, pid := checkStalePID(dp)
	if alive {
		t.Errorf("checkStalePID() alive = true with no PID file, pid %d", pid)
	}
}

func TestCheckStalePID_StalePID(t *testing.T) {
	dp := DataPaths{Root: t.TempDir()}

	// Write a PID file without holding its lock, simulating a dead instance.
	if err := os.WriteFile(dp.PID(), []byte("99999:sometoken"), 0o600); err != nil {
		t.Fatalf("writing stale PID file: %v", err)
	}

	alive, _ := checkStalePID(dp)
	if alive {
		t.Error("checkStalePID() alive = true for unlocked stale file")
	}
	if _, err := os.Stat(dp.PID()); !os.IsNotExist(err) {
		t.Error("stale PID file was not cleaned up")
	}
}

// ///////////////////////////////////////////////
// Daemon Tests
// ///////////////////////////////////////////////

func newTestDaemon(t *testing.T) *daemon {
	t.Helper()
	return &daemon{
		dp:       DataPaths{Root: t.TempDir()},
		version:  "test",
		start:    time.Now(),
		cfg:      config.DefaultConfig(),
		shutdown: make(chan string, 1),
	}
}

func TestRequestShutdown_FirstReasonWins(t *testing.T) {
	d := newTestDaemon(t)

	d.requestShutdown("first")
	d.requestShutdown("second")

	if got := <-d.shutdown; got != "first" {
		t.Errorf("shutdown reason = %q, want %q", got, "first")
	}
	select {
	case extra := <-d.shutdown:
		t.Errorf("unexpected extra shutdown reason %q", extra)
	default:
	}
}

func TestStatusLine(t *testing.T) {
	d := newTestDaemon(t)

	got := d.statusLine()
	if !strings.Contains(got, "running") {
		t.Errorf("statusLine() = %q, want running state", got)
	}
	if !strings.Contains(got, "version=test") {
		t.Errorf("statusLine() = %q, missing version", got)
	}
	if !strings.Contains(got, fmt.Sprintf("pid=%d", os.Getpid())) {
		t.Errorf("statusLine() = %q, missing pid", got)
	}
}

func TestReloadConfig_SwapsConfig(t *testing.T) {
	d := newTestDaemon(t)

	cfg := config.DefaultConfig()
	cfg.Log.Level = "debug"
	if err := cfg.Save(d.dp.Config()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if err := d.reloadConfig(); err != nil {
		t.Fatalf("reloadConfig() error = %v", err)
	}
	if got := d.config().Log.Level; got != "debug" {
		t.Errorf("Log.Level after reload = %q, want debug", got)
	}
}

func TestReloadConfig_InvalidKeepsOld(t *testing.T) {
	d := newTestDaemon(t)

	if err := os.WriteFile(d.dp.Config(), []byte("version = [broken\n"), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	if err := d.reloadConfig(); err == nil {
		t.Fatal("reloadConfig() error = nil for malformed file")
	}
	if got := d.config().Log.Level; got != "info" {
		t.Errorf("Log.Level after failed reload = %q, want info", got)
	}
}

// ///////////////////////////////////////////////
// Default Data Directory Tests
// ///////////////////////////////////////////////

func TestDefaultDataDir(t *testing.T) {
	got := defaultDataDir()
	if got == "" {
		t.Fatal("defaultDataDir() returned empty string")
	}
	if !strings.HasSuffix(got, ".wintrapd") {
		t.Errorf("defaultDataDir() = %q, want .wintrapd suffix", got)
	}
}
