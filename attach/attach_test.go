// Copyright (c) 2025 The Hushnetwork developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package attach

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hushnetwork-social/hush-server-node-sub000/hush"
)

func newStore(t *testing.T) *Store {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	s.clockOffset = func() (time.Duration, error) { return 0, nil }
	return s
}

func TestSaveRetrieveRoundTrip(t *testing.T) {
	s := newStore(t)
	id := hush.NewBytes16()

	require.NoError(t, s.Save(id, []byte("original-bytes"), []byte("thumb-bytes")))

	original, thumbnail, err := s.Retrieve(id)
	require.NoError(t, err)
	assert.Equal(t, []byte("original-bytes"), original)
	assert.Equal(t, []byte("thumb-bytes"), thumbnail)
}

func TestEmptyThumbnailNotWritten(t *testing.T) {
	s := newStore(t)
	id := hush.NewBytes16()

	require.NoError(t, s.Save(id, []byte("original"), nil))

	_, err := os.Stat(filepath.Join(s.Dir(), id.String()+thumbnailSuffix))
	assert.True(t, os.IsNotExist(err))

	original, thumbnail, err := s.Retrieve(id)
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), original)
	assert.Nil(t, thumbnail)
}

func TestRetrieveMissingOriginal(t *testing.T) {
	s := newStore(t)

	original, thumbnail, err := s.Retrieve(hush.NewBytes16())
	require.NoError(t, err)
	assert.Nil(t, original)
	assert.Nil(t, thumbnail)
}

func TestDeleteIsIdempotent(t *testing.T) {
	s := newStore(t)
	id := hush.NewBytes16()

	require.NoError(t, s.Save(id, []byte("x"), []byte("y")))
	require.NoError(t, s.Delete(id))
	require.NoError(t, s.Delete(id))

	original, _, err := s.Retrieve(id)
	require.NoError(t, err)
	assert.Nil(t, original)
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Save(hush.NewBytes16(), []byte("a"), []byte("b")))

	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	for _, entry := range entries {
		assert.False(t, strings.Contains(entry.Name(), ".tmp"), "leftover temp file %s", entry.Name())
	}
}

func TestCleanupOrphans(t *testing.T) {
	s := newStore(t)
	oldID, freshID := hush.NewBytes16(), hush.NewBytes16()

	require.NoError(t, s.Save(oldID, []byte("old"), nil))
	require.NoError(t, s.Save(freshID, []byte("fresh"), nil))

	stale := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(s.Dir(), oldID.String()+originalSuffix), stale, stale))

	removed, err := s.CleanupOrphans(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	original, _, err := s.Retrieve(oldID)
	require.NoError(t, err)
	assert.Nil(t, original)

	original, _, err = s.Retrieve(freshID)
	require.NoError(t, err)
	assert.Equal(t, []byte("fresh"), original)
}

func TestCleanupSkippedOnClockDrift(t *testing.T) {
	s := newStore(t)
	s.clockOffset = func() (time.Duration, error) { return time.Minute, nil }

	id := hush.NewBytes16()
	require.NoError(t, s.Save(id, []byte("old"), nil))
	stale := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(s.Dir(), id.String()+originalSuffix), stale, stale))

	removed, err := s.CleanupOrphans(time.Hour)
	require.NoError(t, err)
	assert.Zero(t, removed)

	original, _, err := s.Retrieve(id)
	require.NoError(t, err)
	assert.Equal(t, []byte("old"), original)
}
