package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// PruneRunDirs removes run directories under baseDir last modified more than
// keep before now. keep <= 0 removes every run directory. Entries that are not
// run directories are left alone. It returns the removed paths.
func PruneRunDirs(baseDir string, keep time.Duration, now time.Time) ([]string, error) {
	entries, err := os.ReadDir(baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", baseDir, err)
	}

	var removed []string
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), RunDirectoryPrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return removed, fmt.Errorf("failed to stat %s: %w", entry.Name(), err)
		}
		if keep > 0 && now.Sub(info.ModTime()) <= keep {
			continue
		}
		path := filepath.Join(baseDir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			return removed, fmt.Errorf("failed to remove %s: %w", path, err)
		}
		removed = append(removed, path)
	}
	return removed, nil
}
