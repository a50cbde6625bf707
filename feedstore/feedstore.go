// Copyright (c) 2025 The Hushnetwork developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package feedstore

import (
	"context"
	"fmt"

	"golang.org/x/sync/singleflight"

	"github.com/Hushnetwork-social/hush-server-node-sub000/feed"
	"github.com/Hushnetwork-social/hush-server-node-sub000/feeddb"
	"github.com/Hushnetwork-social/hush-server-node-sub000/hush"
	"github.com/Hushnetwork-social/hush-server-node-sub000/log"
)

var logger = log.WithContext("pkg", "feedstore")

// Cache is the best-effort overlay the store fronts the durable db
// with. Implementations may fail; the store swallows every cache error
// and falls back to feeddb, which stays the source of truth.
type Cache interface {
	GetLastBlockIndex(ctx context.Context, feedID hush.Bytes16) (hush.BlockIndex, bool, error)
	SetLastBlockIndex(ctx context.Context, feedID hush.Bytes16, index hush.BlockIndex) error

	GetReadPosition(ctx context.Context, addr hush.Address, feedID hush.Bytes16) (hush.BlockIndex, bool, error)
	SetReadPosition(ctx context.Context, addr hush.Address, feedID hush.Bytes16, index hush.BlockIndex) error

	GetMessageWindow(ctx context.Context, feedID hush.Bytes16, sinceBlock hush.BlockIndex, limit int) (msgs []*feed.EncryptedMessage, hasMore bool, ok bool, err error)
	SetMessageWindow(ctx context.Context, feedID hush.Bytes16, msgs []*feed.EncryptedMessage) error
	AppendMessage(ctx context.Context, m *feed.EncryptedMessage) error
	DropMessageWindow(ctx context.Context, feedID hush.Bytes16) error

	GetWrappedKeys(ctx context.Context, feedID hush.Bytes16, addr hush.Address) ([]*feed.WrappedKey, bool, error)
	SetWrappedKeys(ctx context.Context, feedID hush.Bytes16, addr hush.Address, keys []*feed.WrappedKey) error
	DropWrappedKeys(ctx context.Context, feedID hush.Bytes16, addr hush.Address) error
}

// Store fronts the durable feed db with the overlay cache and owns the
// overlay rules: cache-aside population, gap detection delegation and
// the max-wins reconciliation of lastBlockIndex.
type Store struct {
	db    *feeddb.FeedDB
	cache Cache
	sf    singleflight.Group
}

// New creates a store. cache may be nil for a durable-only store.
func New(db *feeddb.FeedDB, cache Cache) *Store {
	return &Store{db: db, cache: cache}
}

// DB exposes the underlying durable store.
func (s *Store) DB() *feeddb.FeedDB { return s.db }

// CreateReadOnly returns a read-only snapshot view.
func (s *Store) CreateReadOnly() *feeddb.Reader { return s.db.CreateReadOnly() }

// CreateWritable opens a writable unit of work.
func (s *Store) CreateWritable(ctx context.Context) (*feeddb.UnitOfWork, error) {
	return s.db.CreateWritable(ctx)
}

// LastBlockIndex returns max(durable, cached) for the feed. The cache
// may carry a fresher value written by in-flight work; the durable
// value is the floor.
func (s *Store) LastBlockIndex(ctx context.Context, feedID hush.Bytes16) (hush.BlockIndex, error) {
	f, err := s.db.CreateReadOnly().GetFeed(ctx, feedID)
	if err != nil {
		return 0, err
	}
	var durable hush.BlockIndex
	if f != nil {
		durable = f.LastBlockIndex
	}
	if s.cache == nil {
		return durable, nil
	}
	cached, ok, err := s.cache.GetLastBlockIndex(ctx, feedID)
	if err != nil {
		logger.Warn("last block index cache read failed", "feed", feedID, "err", err)
		return durable, nil
	}
	if ok && cached > durable {
		return cached, nil
	}
	return durable, nil
}

// LastBlockIndexes overlays the durable indexes of the given feeds
// with any fresher cached values.
func (s *Store) LastBlockIndexes(ctx context.Context, feedIDs []hush.Bytes16) (map[hush.Bytes16]hush.BlockIndex, error) {
	out, err := s.db.CreateReadOnly().GetAllLastBlockIndexes(ctx, feedIDs)
	if err != nil {
		return nil, err
	}
	if s.cache == nil {
		return out, nil
	}
	for _, id := range feedIDs {
		cached, ok, err := s.cache.GetLastBlockIndex(ctx, id)
		if err != nil {
			logger.Warn("last block index cache read failed", "feed", id, "err", err)
			continue
		}
		if ok && cached > out[id] {
			out[id] = cached
		}
	}
	return out, nil
}

// ReadPosition returns the user's bookmark into a feed. On any cache
// or durable failure it returns the zero bookmark; a broken bookmark
// never fails a listing.
func (s *Store) ReadPosition(ctx context.Context, addr hush.Address, feedID hush.Bytes16) hush.BlockIndex {
	if s.cache != nil {
		v, ok, err := s.cache.GetReadPosition(ctx, addr, feedID)
		if err != nil {
			// a broken bookmark subsystem degrades to "nothing read"
			logger.Warn("read position cache read failed", "user", addr, "err", err)
			return 0
		}
		if ok {
			return v
		}
	}
	pos, err := s.db.CreateReadOnly().GetReadPositionsForUser(ctx, addr)
	if err != nil {
		logger.Warn("read position load failed", "user", addr, "err", err)
		return 0
	}
	v := pos[feedID]
	if s.cache != nil && v > 0 {
		if err := s.cache.SetReadPosition(ctx, addr, feedID, v); err != nil {
			logger.Warn("read position cache write failed", "user", addr, "err", err)
		}
	}
	return v
}

// ReadPositions returns the user's bookmarks into the given feeds,
// cache-first per feed with the same degradation as ReadPosition: a
// throwing cache reads that feed's bookmark as zero. Misses share one
// durable load across the batch.
func (s *Store) ReadPositions(ctx context.Context, addr hush.Address, feedIDs []hush.Bytes16) map[hush.Bytes16]hush.BlockIndex {
	out := make(map[hush.Bytes16]hush.BlockIndex, len(feedIDs))
	var durable map[hush.Bytes16]hush.BlockIndex
	load := func() map[hush.Bytes16]hush.BlockIndex {
		if durable == nil {
			pos, err := s.db.CreateReadOnly().GetReadPositionsForUser(ctx, addr)
			if err != nil {
				logger.Warn("read positions load failed", "user", addr, "err", err)
				pos = map[hush.Bytes16]hush.BlockIndex{}
			}
			durable = pos
		}
		return durable
	}
	for _, id := range feedIDs {
		if s.cache == nil {
			out[id] = load()[id]
			continue
		}
		v, ok, err := s.cache.GetReadPosition(ctx, addr, id)
		if err != nil {
			// a broken bookmark subsystem degrades to "nothing read"
			logger.Warn("read position cache read failed", "user", addr, "err", err)
			continue
		}
		if ok {
			out[id] = v
			continue
		}
		if v := load()[id]; v > 0 {
			out[id] = v
			if err := s.cache.SetReadPosition(ctx, addr, id, v); err != nil {
				logger.Warn("read position cache write failed", "user", addr, "err", err)
			}
		}
	}
	return out
}

// PaginatedMessages serves one window of a feed's history. The latest
// window consults the cached tail first; a gap (sinceBlock below the
// cached origin) or any cache failure falls through to the durable
// store, whose non-empty result re-seeds the cache.
func (s *Store) PaginatedMessages(
	ctx context.Context,
	feedID hush.Bytes16,
	sinceBlock hush.BlockIndex,
	limit int,
	fetchLatest bool,
	beforeBlock *hush.BlockIndex,
) (*feeddb.MessagePage, error) {
	if s.cache != nil && fetchLatest && beforeBlock == nil {
		msgs, hasMore, ok, err := s.cache.GetMessageWindow(ctx, feedID, sinceBlock, limit)
		if err != nil {
			logger.Warn("message window cache read failed", "feed", feedID, "err", err)
		} else if ok {
			page := &feeddb.MessagePage{Messages: msgs, HasMore: hasMore}
			if n := len(msgs); n > 0 {
				page.NewestBlock = msgs[0].BlockIndex
				page.OldestBlock = msgs[n-1].BlockIndex
			}
			return page, nil
		}
	}

	key := fmt.Sprintf("msgs/%v/%d/%d/%t/%v", feedID, sinceBlock, limit, fetchLatest, beforeBlock)
	v, err, _ := s.sf.Do(key, func() (any, error) {
		return s.db.CreateReadOnly().GetPaginatedMessages(ctx, feedID, sinceBlock, limit, fetchLatest, beforeBlock)
	})
	if err != nil {
		return nil, err
	}
	page := v.(*feeddb.MessagePage)

	// cache-aside: only non-empty latest windows are cached
	if s.cache != nil && fetchLatest && beforeBlock == nil && len(page.Messages) > 0 {
		if err := s.cache.SetMessageWindow(ctx, feedID, page.Messages); err != nil {
			logger.Warn("message window cache write failed", "feed", feedID, "err", err)
		}
	}
	return page, nil
}

// KeyGenerationsForMember returns only the generations the member
// holds a wrapped key for. Cache-first with durable fallback.
func (s *Store) KeyGenerationsForMember(ctx context.Context, feedID hush.Bytes16, addr hush.Address) ([]*feed.WrappedKey, error) {
	if s.cache != nil {
		keys, ok, err := s.cache.GetWrappedKeys(ctx, feedID, addr)
		if err != nil {
			logger.Warn("wrapped key cache read failed", "feed", feedID, "err", err)
		} else if ok {
			return keys, nil
		}
	}
	keys, err := s.db.CreateReadOnly().GetKeyGenerationsForMember(ctx, feedID, addr)
	if err != nil {
		return nil, err
	}
	if s.cache != nil && len(keys) > 0 {
		if err := s.cache.SetWrappedKeys(ctx, feedID, addr, keys); err != nil {
			logger.Warn("wrapped key cache write failed", "feed", feedID, "err", err)
		}
	}
	return keys, nil
}

// MarkRead durably moves a user's bookmark and refreshes the overlay.
// The durable write only ever moves the bookmark forward.
func (s *Store) MarkRead(ctx context.Context, rp *feed.ReadPosition) error {
	uow, err := s.db.CreateWritable(ctx)
	if err != nil {
		return err
	}
	defer uow.Rollback()
	if err := uow.UpsertReadPosition(ctx, rp); err != nil {
		return err
	}
	if err := uow.Commit(); err != nil {
		return err
	}
	s.NoteReadPosition(ctx, rp)
	return nil
}

// NoteMessageApplied refreshes the overlay after a committed message:
// the tail window grows and the block index advances. Best effort.
func (s *Store) NoteMessageApplied(ctx context.Context, m *feed.EncryptedMessage) {
	if s.cache == nil {
		return
	}
	if err := s.cache.AppendMessage(ctx, m); err != nil {
		logger.Warn("message append to cache failed", "feed", m.FeedID, "err", err)
	}
	s.NoteBlockIndex(ctx, m.FeedID, m.BlockIndex)
}

// NoteBlockIndex pushes a fresher lastBlockIndex into the overlay.
func (s *Store) NoteBlockIndex(ctx context.Context, feedID hush.Bytes16, index hush.BlockIndex) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetLastBlockIndex(ctx, feedID, index); err != nil {
		logger.Warn("block index cache write failed", "feed", feedID, "err", err)
	}
}

// NoteRotation invalidates the wrapped-key entries of everyone covered
// by a fresh key generation; the next read re-seeds them durably.
func (s *Store) NoteRotation(ctx context.Context, kg *feed.KeyGeneration) {
	if s.cache == nil {
		return
	}
	for _, wk := range kg.EncryptedKeys {
		if err := s.cache.DropWrappedKeys(ctx, kg.FeedID, wk.MemberAddress); err != nil {
			logger.Warn("wrapped key cache drop failed", "feed", kg.FeedID, "err", err)
		}
	}
}

// NoteReadPosition refreshes a user's cached bookmark.
func (s *Store) NoteReadPosition(ctx context.Context, rp *feed.ReadPosition) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetReadPosition(ctx, rp.UserAddress, rp.FeedID, rp.LastReadBlockIndex); err != nil {
		logger.Warn("read position cache write failed", "user", rp.UserAddress, "err", err)
	}
}
