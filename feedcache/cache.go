// Copyright (c) 2025 The Hushnetwork developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package feedcache

import (
	"context"
	"sync"

	"github.com/golang/snappy"
	"github.com/qianbin/directcache"

	"github.com/Hushnetwork-social/hush-server-node-sub000/cache"
	"github.com/Hushnetwork-social/hush-server-node-sub000/feed"
	"github.com/Hushnetwork-social/hush-server-node-sub000/hush"
	"github.com/Hushnetwork-social/hush-server-node-sub000/log"
)

var logger = log.WithContext("pkg", "feedcache")

// Cache is the best-effort overlay in front of the durable store. It
// is purely an optimization: every value it holds can be rebuilt from
// feeddb, and a failure here never changes correctness.
//
// Structured per-key values (block indexes, read positions) live in an
// LRU; message tail windows and wrapped-key sets are serialized,
// snappy compressed and kept in a fixed-memory directcache.
type Cache struct {
	lastBlock *cache.LRU
	readPos   *cache.LRU

	windows *directcache.Cache
	keys    *directcache.Cache

	windowLock sync.Mutex // serializes read-modify-write of tail windows

	blockStats  cache.Stats
	windowStats cache.Stats
	keyStats    cache.Stats
}

// New creates a cache. sizeMB bounds the blob caches; the LRUs hold a
// fixed number of entries.
func New(sizeMB int) *Cache {
	sizeBytes := sizeMB * 1024 * 1024
	lastBlock, err := cache.NewLRU(8192)
	if err != nil {
		panic(err)
	}
	readPos, err := cache.NewLRU(8192)
	if err != nil {
		panic(err)
	}
	return &Cache{
		lastBlock: lastBlock,
		readPos:   readPos,
		windows:   directcache.New(sizeBytes * 3 / 4),
		keys:      directcache.New(sizeBytes / 4),
	}
}

// GetLastBlockIndex returns the cached lastBlockIndex of a feed.
func (c *Cache) GetLastBlockIndex(_ context.Context, feedID hush.Bytes16) (hush.BlockIndex, bool, error) {
	if v, ok := c.lastBlock.Get(feedID); ok {
		c.blockStats.Hit()
		return v.(hush.BlockIndex), true, nil
	}
	c.blockStats.Miss()
	return 0, false, nil
}

// SetLastBlockIndex records a feed's lastBlockIndex. Max wins: a stale
// writer never lowers a fresher cached value.
func (c *Cache) SetLastBlockIndex(_ context.Context, feedID hush.Bytes16, index hush.BlockIndex) error {
	if v, ok := c.lastBlock.Get(feedID); ok && v.(hush.BlockIndex) >= index {
		return nil
	}
	c.lastBlock.Add(feedID, index)
	return nil
}

type readPosKey struct {
	addr   hush.Address
	feedID hush.Bytes16
}

// GetReadPosition returns the cached bookmark of (user, feed).
func (c *Cache) GetReadPosition(_ context.Context, addr hush.Address, feedID hush.Bytes16) (hush.BlockIndex, bool, error) {
	if v, ok := c.readPos.Get(readPosKey{addr, feedID}); ok {
		return v.(hush.BlockIndex), true, nil
	}
	return 0, false, nil
}

// SetReadPosition caches a bookmark.
func (c *Cache) SetReadPosition(_ context.Context, addr hush.Address, feedID hush.Bytes16, index hush.BlockIndex) error {
	c.readPos.Add(readPosKey{addr, feedID}, index)
	return nil
}

// GetMessageWindow answers a tail read from the cached window. A
// cached tail with origin O answers sinceBlock S only when S >= O;
// anything else is a gap and reports a miss.
func (c *Cache) GetMessageWindow(_ context.Context, feedID hush.Bytes16, sinceBlock hush.BlockIndex, limit int) ([]*feed.EncryptedMessage, bool, bool, error) {
	var blob []byte
	if !c.windows.AdvGet(feedID.Bytes(), func(val []byte) {
		blob = append([]byte(nil), val...)
	}, false) {
		c.windowStats.Miss()
		return nil, false, false, nil
	}
	w, err := decodeWindow(blob)
	if err != nil {
		// treat a corrupt entry as a miss; durable store is the truth
		logger.Warn("dropping corrupt window entry", "feed", feedID, "err", err)
		c.windows.Del(feedID.Bytes())
		c.windowStats.Miss()
		return nil, false, false, nil
	}
	if sinceBlock < w.Origin {
		c.windowStats.Miss()
		return nil, false, false, nil
	}
	c.windowStats.Hit()

	msgs := make([]*feed.EncryptedMessage, 0, limit)
	hasMore := false
	for _, m := range w.Messages {
		if m.BlockIndex < sinceBlock {
			break
		}
		if len(msgs) == limit {
			hasMore = true
			break
		}
		msgs = append(msgs, m)
	}
	return msgs, hasMore, true, nil
}

// SetMessageWindow replaces the cached tail window. Messages must be
// newest first and contiguous down to their oldest block.
func (c *Cache) SetMessageWindow(_ context.Context, feedID hush.Bytes16, msgs []*feed.EncryptedMessage) error {
	if len(msgs) == 0 {
		// empty results are not cached
		return nil
	}
	c.windowLock.Lock()
	defer c.windowLock.Unlock()

	w := &window{Origin: msgs[len(msgs)-1].BlockIndex, Messages: msgs}
	blob, err := encodeWindow(w)
	if err != nil {
		return err
	}
	_ = c.windows.Set(feedID.Bytes(), blob)
	return nil
}

// AppendMessage extends the cached tail with a newly applied message.
// Without an existing window this is a no-op: the next durable read
// seeds one.
func (c *Cache) AppendMessage(_ context.Context, m *feed.EncryptedMessage) error {
	c.windowLock.Lock()
	defer c.windowLock.Unlock()

	var blob []byte
	if !c.windows.AdvGet(m.FeedID.Bytes(), func(val []byte) {
		blob = append([]byte(nil), val...)
	}, false) {
		return nil
	}
	w, err := decodeWindow(blob)
	if err != nil {
		c.windows.Del(m.FeedID.Bytes())
		return nil
	}
	w.Messages = append([]*feed.EncryptedMessage{m}, w.Messages...)
	if len(w.Messages) > maxWindowMessages {
		w.Messages = w.Messages[:maxWindowMessages]
		w.Origin = w.Messages[len(w.Messages)-1].BlockIndex
	}
	out, err := encodeWindow(w)
	if err != nil {
		return err
	}
	_ = c.windows.Set(m.FeedID.Bytes(), out)
	return nil
}

// DropMessageWindow invalidates a feed's cached tail.
func (c *Cache) DropMessageWindow(_ context.Context, feedID hush.Bytes16) error {
	c.windows.Del(feedID.Bytes())
	return nil
}

func memberKeyKey(feedID hush.Bytes16, addr hush.Address) []byte {
	k := make([]byte, 0, 16+len(addr))
	k = append(k, feedID.Bytes()...)
	return append(k, addr...)
}

// GetWrappedKeys returns the cached wrapped-key set of (feed, member).
func (c *Cache) GetWrappedKeys(_ context.Context, feedID hush.Bytes16, addr hush.Address) ([]*feed.WrappedKey, bool, error) {
	var blob []byte
	if !c.keys.AdvGet(memberKeyKey(feedID, addr), func(val []byte) {
		blob = append([]byte(nil), val...)
	}, false) {
		c.keyStats.Miss()
		return nil, false, nil
	}
	keys, err := decodeWrappedKeys(feedID, addr, blob)
	if err != nil {
		logger.Warn("dropping corrupt key entry", "feed", feedID, "err", err)
		c.keys.Del(memberKeyKey(feedID, addr))
		c.keyStats.Miss()
		return nil, false, nil
	}
	c.keyStats.Hit()
	return keys, true, nil
}

// SetWrappedKeys caches the wrapped-key set of (feed, member).
func (c *Cache) SetWrappedKeys(_ context.Context, feedID hush.Bytes16, addr hush.Address, keys []*feed.WrappedKey) error {
	if len(keys) == 0 {
		return nil
	}
	blob, err := encodeWrappedKeys(keys)
	if err != nil {
		return err
	}
	_ = c.keys.Set(memberKeyKey(feedID, addr), blob)
	return nil
}

// DropWrappedKeys invalidates a member's cached key set, called after
// a rotation touches the member.
func (c *Cache) DropWrappedKeys(_ context.Context, feedID hush.Bytes16, addr hush.Address) error {
	c.keys.Del(memberKeyKey(feedID, addr))
	return nil
}

// LogStats emits hit rates when they moved since the last call.
func (c *Cache) LogStats() {
	if changed, hit, miss := c.windowStats.Stats(); changed {
		logger.Debug("window cache", "hit", hit, "miss", miss)
	}
	if changed, hit, miss := c.keyStats.Stats(); changed {
		logger.Debug("key cache", "hit", hit, "miss", miss)
	}
	if changed, hit, miss := c.blockStats.Stats(); changed {
		logger.Debug("block index cache", "hit", hit, "miss", miss)
	}
}

const maxWindowMessages = 256

// compress/decompress helpers shared by the blob encoders.
func compress(b []byte) []byte {
	return snappy.Encode(nil, b)
}

func decompress(b []byte) ([]byte, error) {
	return snappy.Decode(nil, b)
}
