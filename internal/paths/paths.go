// Package paths centralizes the file and directory names used by the
// wintrapd daemon. All data directory file names are defined here as the
// single source of truth.
package paths

import (
	"os"
	"path/filepath"
)

// ///////////////////////////////////////////////
// Constants
// ///////////////////////////////////////////////

// Data directory file names.
const (
	PIDFile    = "wintrapd.pid"
	ConfigFile = "config.toml"
	LogFile    = "wintrapd.log"
)

// DataDirRel is the data directory name relative to the user home directory.
const DataDirRel = ".wintrapd"

// ControlEndpoint is the base name of the local control endpoint: a named
// pipe on Windows, a unix socket file in the data directory elsewhere.
const ControlEndpoint = "wintrapd-control"

// ///////////////////////////////////////////////
// DataDir
// ///////////////////////////////////////////////

// DataDir provides path construction methods rooted at a data directory.
type DataDir struct {
	Root string
}

// Default resolves the per-user data directory, $HOME/.wintrapd.
func Default() (DataDir, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return DataDir{}, err
	}
	return DataDir{Root: filepath.Join(home, DataDirRel)}, nil
}

// PID returns the full path to the PID file.
func (d DataDir) PID() string { return filepath.Join(d.Root, PIDFile) }

// Config returns the full path to the config file.
func (d DataDir) Config() string { return filepath.Join(d.Root, ConfigFile) }

// Log returns the full path to the log file.
func (d DataDir) Log() string { return filepath.Join(d.Root, LogFile) }

// Socket returns the full path to the unix control socket, used on platforms
// without named pipes.
func (d DataDir) Socket() string { return filepath.Join(d.Root, ControlEndpoint+".sock") }
