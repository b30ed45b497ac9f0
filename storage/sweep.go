// Package storage manages the intake and output directories on local disk.
package storage

import (
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// EnsureDirs creates the given directories if they do not exist.
func EnsureDirs(dirs ...string) error {
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return err
		}
	}
	return nil
}

// Sweep unconditionally deletes every entry in dir. Used at process start
// and shutdown; deletion failures are logged and skipped. Returns the
// number of entries removed.
func Sweep(dir string, log *zap.Logger) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn("sweep: cannot read directory", zap.String("dir", dir), zap.Error(err))
		}
		return 0
	}

	removed := 0
	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		if err := os.RemoveAll(path); err != nil {
			log.Warn("sweep: cannot remove entry", zap.String("path", path), zap.Error(err))
			continue
		}
		removed++
	}
	return removed
}

// AgeSweep deletes entries in dir whose last-modified time is older than
// maxAge. This is the backstop for batches abandoned without an explicit
// cancel or download. Returns the number of entries removed.
func AgeSweep(dir string, maxAge time.Duration, log *zap.Logger) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn("age sweep: cannot read directory", zap.String("dir", dir), zap.Error(err))
		}
		return 0
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if err := os.RemoveAll(path); err != nil {
			log.Warn("age sweep: cannot remove entry", zap.String("path", path), zap.Error(err))
			continue
		}
		log.Info("age sweep: removed stale entry", zap.String("path", path))
		removed++
	}
	return removed
}
