// Package diskstore implements the filesystem-backed archive store: one file
// per identifier under a configured directory, plus a free-space guard that
// tracks remaining capacity against a reservation so a full disk degrades to
// rejected writes instead of corrupted files.
package diskstore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/hanaru-mirror/beatmapd/internal/domain"
)

// Store is a directory of identifier-named files. Writes go through a
// temp-file-then-rename dance so a crash mid-write never leaves a partial
// file at the final path.
type Store struct {
	dir               string
	requiredFree      int64
	remainingFree     atomic.Int64
	statfsUnsupported bool
}

// Open prepares dir (creating it if absent) and seeds the free-space counter
// from the filesystem, minus requiredFree bytes which are never counted as
// writable. If statfs is unavailable on this platform, the store degrades to
// always-writable and logs that decision once via the returned bool.
func Open(dir string, requiredFree int64) (*Store, bool, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, false, fmt.Errorf("diskstore: create directory %q: %w", dir, err)
	}

	s := &Store{dir: dir, requiredFree: requiredFree}

	var statfs unix.Statfs_t
	degraded := false
	if err := unix.Statfs(dir, &statfs); err != nil {
		degraded = true
		s.statfsUnsupported = true
		s.remainingFree.Store(1) // treat as always-writable
	} else {
		avail := int64(statfs.Bavail) * int64(statfs.Bsize)
		s.remainingFree.Store(avail - requiredFree)
	}

	return s, degraded, nil
}

func (s *Store) path(id domain.Identifier) string {
	return filepath.Join(s.dir, strconv.FormatInt(int64(id), 10))
}

// Read returns the bytes stored for id, or (nil, false) if no file exists.
// An empty (but present) file is returned as a zero-length non-nil slice —
// callers distinguish "no file" from "disk tombstone" via the bool.
func (s *Store) Read(id domain.Identifier) ([]byte, bool, error) {
	f, err := os.Open(s.path(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("diskstore: open %d: %w", id, err)
	}
	defer f.Close()

	b, err := io.ReadAll(f)
	if err != nil {
		return nil, false, fmt.Errorf("diskstore: read %d: %w", id, err)
	}
	if b == nil {
		b = []byte{}
	}
	return b, true, nil
}

// Write atomically-enough persists bytes for id. An empty bytes argument
// creates a zero-byte tombstone. Decrements the free-space counter by the
// written size on success.
func (s *Store) Write(id domain.Identifier, bytes []byte) error {
	tmp, err := os.CreateTemp(s.dir, fmt.Sprintf(".tmp-%d-*", id))
	if err != nil {
		return fmt.Errorf("diskstore: create temp file for %d: %w", id, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(bytes); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("diskstore: write temp file for %d: %w", id, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("diskstore: sync temp file for %d: %w", id, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("diskstore: close temp file for %d: %w", id, err)
	}
	if err := os.Rename(tmpName, s.path(id)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("diskstore: rename into place for %d: %w", id, err)
	}

	if !s.statfsUnsupported {
		s.remainingFree.Add(-int64(len(bytes)))
	}
	return nil
}

// CanWrite reports whether the tracked free-space counter is positive. A
// store degraded to always-writable (statfs unsupported) always reports
// true.
func (s *Store) CanWrite() bool {
	return s.statfsUnsupported || s.remainingFree.Load() > 0
}
