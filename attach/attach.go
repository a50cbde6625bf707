// Copyright (c) 2025 The Hushnetwork developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package attach is the temp store for encrypted attachment bytes.
// Per attachment id there are at most two files, <id>.original and
// <id>.thumbnail; a missing thumbnail is represented by file absence.
package attach

import (
	"os"
	"path/filepath"
	"time"

	"github.com/beevik/ntp"
	"github.com/pkg/errors"

	"github.com/Hushnetwork-social/hush-server-node-sub000/hush"
	"github.com/Hushnetwork-social/hush-server-node-sub000/log"
	"github.com/Hushnetwork-social/hush-server-node-sub000/metrics"
)

var (
	logger = log.WithContext("pkg", "attach")

	metricCleanup = metrics.LazyLoadCounterVec("attach_cleanup_count", []string{"outcome"})
)

const (
	originalSuffix  = ".original"
	thumbnailSuffix = ".thumbnail"

	// orphan cleanup relies on wall-clock mtimes; past this offset the
	// local clock cannot be trusted to age files and the sweep is skipped
	maxCleanupClockOffset = 30 * time.Second

	ntpHost = "pool.ntp.org"
)

// Store keeps attachment bytes on disk between upload and block
// inclusion. Writes are atomic (temp + rename) so Retrieve never
// observes torn bytes.
type Store struct {
	dir string

	// clockOffset is swappable in tests
	clockOffset func() (time.Duration, error)
}

// New creates the store, making the directory if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.Wrap(err, "create attachment dir")
	}
	return &Store{dir: dir, clockOffset: ntpClockOffset}, nil
}

// Dir returns the backing directory.
func (s *Store) Dir() string { return s.dir }

func (s *Store) path(id hush.Bytes16, suffix string) string {
	return filepath.Join(s.dir, id.String()+suffix)
}

// Save writes the encrypted original and, when non-empty, the
// thumbnail. Empty thumbnails are not written.
func (s *Store) Save(id hush.Bytes16, original, thumbnail []byte) error {
	if err := writeAtomic(s.path(id, originalSuffix), original); err != nil {
		return errors.Wrap(err, "save original")
	}
	if len(thumbnail) > 0 {
		if err := writeAtomic(s.path(id, thumbnailSuffix), thumbnail); err != nil {
			return errors.Wrap(err, "save thumbnail")
		}
	}
	return nil
}

// writeAtomic writes to a temp file in the same directory and renames
// it into place.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Retrieve returns the original and thumbnail bytes. A missing
// original yields (nil, nil, nil); a missing thumbnail yields a nil
// thumbnail alongside the original.
func (s *Store) Retrieve(id hush.Bytes16) (original, thumbnail []byte, err error) {
	original, err = os.ReadFile(s.path(id, originalSuffix))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, errors.Wrap(err, "read original")
	}
	thumbnail, err = os.ReadFile(s.path(id, thumbnailSuffix))
	if err != nil {
		if os.IsNotExist(err) {
			return original, nil, nil
		}
		return nil, nil, errors.Wrap(err, "read thumbnail")
	}
	return original, thumbnail, nil
}

// Delete removes both files of an attachment. Deleting an absent id
// succeeds.
func (s *Store) Delete(id hush.Bytes16) error {
	for _, suffix := range []string{originalSuffix, thumbnailSuffix} {
		if err := os.Remove(s.path(id, suffix)); err != nil && !os.IsNotExist(err) {
			return errors.Wrap(err, "delete attachment")
		}
	}
	return nil
}

// CleanupOrphans removes files whose mtime is older than now-olderThan.
// Best effort: candidates are logged before removal, and the whole
// sweep is skipped when the local clock drifts too far from NTP.
func (s *Store) CleanupOrphans(olderThan time.Duration) (removed int, err error) {
	if offset, err := s.clockOffset(); err != nil {
		logger.Debug("clock offset check failed, proceeding with local clock", "err", err)
	} else if offset > maxCleanupClockOffset || offset < -maxCleanupClockOffset {
		logger.Warn("clock offset too large, skipping orphan cleanup", "offset", offset)
		metricCleanup().AddWithLabel(1, map[string]string{"outcome": "skipped_clock_drift"})
		return 0, nil
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, errors.Wrap(err, "scan attachment dir")
	}
	cutoff := time.Now().Add(-olderThan)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		logger.Info("removing orphaned attachment file",
			"file", entry.Name(), "age", time.Since(info.ModTime()))
		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil && !os.IsNotExist(err) {
			logger.Warn("orphan removal failed", "file", entry.Name(), "err", err)
			continue
		}
		removed++
	}
	metricCleanup().AddWithLabel(int64(removed), map[string]string{"outcome": "removed"})
	return removed, nil
}

func ntpClockOffset() (time.Duration, error) {
	resp, err := ntp.Query(ntpHost)
	if err != nil {
		return 0, err
	}
	return resp.ClockOffset, nil
}
