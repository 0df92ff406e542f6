// Package cleanup removes scratch files from the daemon data directory
// during graceful shutdown. Files are selected with doublestar glob
// patterns resolved against a configured root.
package cleanup

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// ///////////////////////////////////////////////
// Sweep
// ///////////////////////////////////////////////

// Result summarizes a sweep.
type Result struct {
	// Removed is the number of files deleted.
	Removed int
	// Failed is the number of files that matched but could not be deleted.
	Failed int
}

// Sweep deletes every file under root matching any of the patterns.
// Directories are never removed, only regular files. A file that fails to
// delete is logged and counted but does not abort the sweep.
func Sweep(root string, patterns []string, logger *slog.Logger) (Result, error) {
	var res Result
	if len(patterns) == 0 {
		return res, nil
	}

	fsys := os.DirFS(root)
	seen := make(map[string]bool)

	for _, pattern := range patterns {
		matches, err := doublestar.Glob(fsys, pattern)
		if err != nil {
			return res, fmt.Errorf("glob %q: %w", pattern, err)
		}
		for _, m := range matches {
			seen[m] = true
		}
	}

	// Deterministic deletion order keeps logs stable.
	matches := make([]string, 0, len(seen))
	for m := range seen {
		matches = append(matches, m)
	}
	sort.Strings(matches)

	for _, rel := range matches {
		info, err := fs.Stat(fsys, rel)
		if err != nil || info.IsDir() {
			continue
		}
		full := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.Remove(full); err != nil {
			logger.Warn("cleanup failed to remove file", "path", full, "error", err)
			res.Failed++
			continue
		}
		logger.Debug("cleanup removed file", "path", full)
		res.Removed++
	}

	return res, nil
}
