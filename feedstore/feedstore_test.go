// Copyright (c) 2025 The Hushnetwork developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package feedstore

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hushnetwork-social/hush-server-node-sub000/feed"
	"github.com/Hushnetwork-social/hush-server-node-sub000/feedcache"
	"github.com/Hushnetwork-social/hush-server-node-sub000/feeddb"
	"github.com/Hushnetwork-social/hush-server-node-sub000/hush"
)

var errCacheDown = errors.New("cache down")

// brokenCache fails every call; the store must behave as durable-only.
type brokenCache struct{}

func (brokenCache) GetLastBlockIndex(context.Context, hush.Bytes16) (hush.BlockIndex, bool, error) {
	return 0, false, errCacheDown
}
func (brokenCache) SetLastBlockIndex(context.Context, hush.Bytes16, hush.BlockIndex) error {
	return errCacheDown
}
func (brokenCache) GetReadPosition(context.Context, hush.Address, hush.Bytes16) (hush.BlockIndex, bool, error) {
	return 0, false, errCacheDown
}
func (brokenCache) SetReadPosition(context.Context, hush.Address, hush.Bytes16, hush.BlockIndex) error {
	return errCacheDown
}
func (brokenCache) GetMessageWindow(context.Context, hush.Bytes16, hush.BlockIndex, int) ([]*feed.EncryptedMessage, bool, bool, error) {
	return nil, false, false, errCacheDown
}
func (brokenCache) SetMessageWindow(context.Context, hush.Bytes16, []*feed.EncryptedMessage) error {
	return errCacheDown
}
func (brokenCache) AppendMessage(context.Context, *feed.EncryptedMessage) error { return errCacheDown }
func (brokenCache) DropMessageWindow(context.Context, hush.Bytes16) error       { return errCacheDown }
func (brokenCache) GetWrappedKeys(context.Context, hush.Bytes16, hush.Address) ([]*feed.WrappedKey, bool, error) {
	return nil, false, errCacheDown
}
func (brokenCache) SetWrappedKeys(context.Context, hush.Bytes16, hush.Address, []*feed.WrappedKey) error {
	return errCacheDown
}
func (brokenCache) DropWrappedKeys(context.Context, hush.Bytes16, hush.Address) error {
	return errCacheDown
}

func seedFeed(t *testing.T, db *feeddb.FeedDB, lastBlock hush.BlockIndex) hush.Bytes16 {
	ctx := context.Background()
	id := hush.NewBytes16()
	uow, err := db.CreateWritable(ctx)
	require.NoError(t, err)
	defer uow.Rollback()
	require.NoError(t, uow.CreateFeed(ctx, &feed.Feed{
		ID: id, Kind: feed.KindGroup, CreatedAtBlock: 1, LastBlockIndex: lastBlock,
	}))
	require.NoError(t, uow.Commit())
	return id
}

func seedMessages(t *testing.T, db *feeddb.FeedDB, feedID hush.Bytes16, blocks ...hush.BlockIndex) {
	ctx := context.Background()
	uow, err := db.CreateWritable(ctx)
	require.NoError(t, err)
	defer uow.Rollback()
	for _, b := range blocks {
		require.NoError(t, uow.CreateFeedMessage(ctx, &feed.EncryptedMessage{
			ID: hush.NewBytes16(), FeedID: feedID, Ciphertext: []byte("ct"),
			SenderAddress: "A", BlockIndex: b, KeyGeneration: 0,
		}))
	}
	require.NoError(t, uow.Commit())
}

func TestLastBlockIndexOverlayMaxWins(t *testing.T) {
	db, err := feeddb.NewMem()
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	cache := feedcache.New(1)
	s := New(db, cache)
	id := seedFeed(t, db, 100)

	// durable only
	v, err := s.LastBlockIndex(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, hush.BlockIndex(100), v)

	// fresher cached value wins
	s.NoteBlockIndex(ctx, id, 200)
	v, err = s.LastBlockIndex(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, hush.BlockIndex(200), v)

	// stale cached value loses
	id2 := seedFeed(t, db, 300)
	require.NoError(t, cache.SetLastBlockIndex(ctx, id2, 50))
	v, err = s.LastBlockIndex(ctx, id2)
	require.NoError(t, err)
	assert.Equal(t, hush.BlockIndex(300), v)

	all, err := s.LastBlockIndexes(ctx, []hush.Bytes16{id, id2})
	require.NoError(t, err)
	assert.Equal(t, hush.BlockIndex(200), all[id])
	assert.Equal(t, hush.BlockIndex(300), all[id2])
}

func TestBrokenCacheDegradesToDurable(t *testing.T) {
	db, err := feeddb.NewMem()
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	s := New(db, brokenCache{})
	id := seedFeed(t, db, 100)
	seedMessages(t, db, id, 90, 95, 100)

	ctxBg := context.Background()
	uow, err := db.CreateWritable(ctxBg)
	require.NoError(t, err)
	require.NoError(t, uow.UpsertReadPosition(ctxBg, &feed.ReadPosition{
		UserAddress: "A", FeedID: id, LastReadBlockIndex: 500,
	}))
	require.NoError(t, uow.Commit())

	// block index falls back to the durable floor
	v, err := s.LastBlockIndex(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, hush.BlockIndex(100), v)

	// a broken bookmark subsystem reads as "nothing read", for the
	// single read and for the batch the listing path uses
	assert.Equal(t, hush.BlockIndex(0), s.ReadPosition(ctx, "A", id))
	assert.Equal(t, hush.BlockIndex(0), s.ReadPositions(ctx, "A", []hush.Bytes16{id})[id])

	// message pagination is served durably
	page, err := s.PaginatedMessages(ctx, id, 0, 10, true, nil)
	require.NoError(t, err)
	require.Len(t, page.Messages, 3)
	assert.Equal(t, hush.BlockIndex(100), page.Messages[0].BlockIndex)

	// mutation notes swallow cache failures
	s.NoteBlockIndex(ctx, id, 101)
	s.NoteMessageApplied(ctx, page.Messages[0])
	s.NoteReadPosition(ctx, &feed.ReadPosition{UserAddress: "A", FeedID: id, LastReadBlockIndex: 100})
}

func TestReadPositionCachePopulation(t *testing.T) {
	db, err := feeddb.NewMem()
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	cache := feedcache.New(1)
	s := New(db, cache)
	id := seedFeed(t, db, 100)

	uow, err := db.CreateWritable(ctx)
	require.NoError(t, err)
	require.NoError(t, uow.UpsertReadPosition(ctx, &feed.ReadPosition{
		UserAddress: "A", FeedID: id, LastReadBlockIndex: 500,
	}))
	require.NoError(t, uow.Commit())

	assert.Equal(t, hush.BlockIndex(500), s.ReadPosition(ctx, "A", id))

	// second read hits the cache
	v, ok, err := cache.GetReadPosition(ctx, "A", id)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, hush.BlockIndex(500), v)

	// the batch read resolves through the same overlay
	other := seedFeed(t, db, 10)
	all := s.ReadPositions(ctx, "A", []hush.Bytes16{id, other})
	assert.Equal(t, hush.BlockIndex(500), all[id])
	assert.Equal(t, hush.BlockIndex(0), all[other])

	// absent bookmark is zero
	assert.Equal(t, hush.BlockIndex(0), s.ReadPosition(ctx, "B", id))
}

func TestPaginatedMessagesCacheAside(t *testing.T) {
	db, err := feeddb.NewMem()
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	cache := feedcache.New(1)
	s := New(db, cache)
	id := seedFeed(t, db, 110)
	seedMessages(t, db, id, 101, 103, 105, 107, 110)

	// first latest-window read populates the cache
	page, err := s.PaginatedMessages(ctx, id, 0, 10, true, nil)
	require.NoError(t, err)
	require.Len(t, page.Messages, 5)
	assert.Equal(t, hush.BlockIndex(110), page.NewestBlock)
	assert.Equal(t, hush.BlockIndex(101), page.OldestBlock)

	_, _, ok, err := cache.GetMessageWindow(ctx, id, 101, 10)
	require.NoError(t, err)
	assert.True(t, ok)

	// a history request never touches the cached tail
	before := hush.BlockIndex(105)
	page, err = s.PaginatedMessages(ctx, id, 0, 10, false, &before)
	require.NoError(t, err)
	require.Len(t, page.Messages, 2)
	assert.Equal(t, hush.BlockIndex(103), page.Messages[0].BlockIndex)

	// empty feeds are not cached
	empty := seedFeed(t, db, 0)
	page, err = s.PaginatedMessages(ctx, empty, 0, 10, true, nil)
	require.NoError(t, err)
	assert.Empty(t, page.Messages)
	_, _, ok, err = cache.GetMessageWindow(ctx, empty, 0, 10)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWrappedKeyCacheInvalidation(t *testing.T) {
	db, err := feeddb.NewMem()
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	cache := feedcache.New(1)
	s := New(db, cache)

	id := hush.NewBytes16()
	uow, err := db.CreateWritable(ctx)
	require.NoError(t, err)
	require.NoError(t, uow.CreateGroupFeed(ctx, &feed.GroupFeed{
		Feed: feed.Feed{ID: id, Kind: feed.KindGroup, CreatedAtBlock: 1, LastBlockIndex: 1}, Title: "g",
	}))
	gen0 := &feed.KeyGeneration{
		FeedID: id, Version: 0, ValidFromBlock: 1, Trigger: feed.TriggerManual,
		EncryptedKeys: []feed.WrappedKey{{FeedID: id, Version: 0, MemberAddress: "A", Ciphertext: []byte("w0")}},
	}
	require.NoError(t, uow.CreateKeyRotation(ctx, gen0))
	require.NoError(t, uow.Commit())

	keys, err := s.KeyGenerationsForMember(ctx, id, "A")
	require.NoError(t, err)
	require.Len(t, keys, 1)

	// new generation invalidates the member's cached keys
	uow, err = db.CreateWritable(ctx)
	require.NoError(t, err)
	gen1 := &feed.KeyGeneration{
		FeedID: id, Version: 1, ValidFromBlock: 5, Trigger: feed.TriggerJoin,
		EncryptedKeys: []feed.WrappedKey{{FeedID: id, Version: 1, MemberAddress: "A", Ciphertext: []byte("w1")}},
	}
	require.NoError(t, uow.CreateKeyRotation(ctx, gen1))
	require.NoError(t, uow.Commit())
	s.NoteRotation(ctx, gen1)

	keys, err = s.KeyGenerationsForMember(ctx, id, "A")
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.Equal(t, uint32(1), keys[1].Version)
}
