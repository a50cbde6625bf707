// Copyright (c) 2025 The Hushnetwork developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package feedcache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hushnetwork-social/hush-server-node-sub000/feed"
	"github.com/Hushnetwork-social/hush-server-node-sub000/hush"
)

func msgAt(feedID hush.Bytes16, block hush.BlockIndex) *feed.EncryptedMessage {
	return &feed.EncryptedMessage{
		ID:            hush.NewBytes16(),
		FeedID:        feedID,
		Ciphertext:    []byte("ct"),
		SenderAddress: "A",
		BlockIndex:    block,
		KeyGeneration: 1,
	}
}

func TestLastBlockIndexMaxWins(t *testing.T) {
	c := New(1)
	ctx := context.Background()
	id := hush.NewBytes16()

	_, ok, err := c.GetLastBlockIndex(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.SetLastBlockIndex(ctx, id, 200))
	require.NoError(t, c.SetLastBlockIndex(ctx, id, 100))

	v, ok, err := c.GetLastBlockIndex(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, hush.BlockIndex(200), v)
}

func TestMessageWindowGapDetection(t *testing.T) {
	c := New(1)
	ctx := context.Background()
	id := hush.NewBytes16()

	// tail window covering blocks 105..110, newest first
	var msgs []*feed.EncryptedMessage
	for b := hush.BlockIndex(110); b >= 105; b-- {
		msgs = append(msgs, msgAt(id, b))
	}
	require.NoError(t, c.SetMessageWindow(ctx, id, msgs))

	// since >= origin: hit
	got, hasMore, ok, err := c.GetMessageWindow(ctx, id, 105, 100)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, hasMore)
	assert.Len(t, got, 6)
	assert.Equal(t, hush.BlockIndex(110), got[0].BlockIndex)

	// since below origin: gap, miss
	_, _, ok, err = c.GetMessageWindow(ctx, id, 100, 100)
	require.NoError(t, err)
	assert.False(t, ok)

	// limit trims and reports more
	got, hasMore, ok, err = c.GetMessageWindow(ctx, id, 105, 2)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, hasMore)
	assert.Len(t, got, 2)
}

func TestEmptyWindowNotCached(t *testing.T) {
	c := New(1)
	ctx := context.Background()
	id := hush.NewBytes16()

	require.NoError(t, c.SetMessageWindow(ctx, id, nil))
	_, _, ok, err := c.GetMessageWindow(ctx, id, 0, 10)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAppendMessage(t *testing.T) {
	c := New(1)
	ctx := context.Background()
	id := hush.NewBytes16()

	// without a seeded window append is a no-op
	require.NoError(t, c.AppendMessage(ctx, msgAt(id, 111)))
	_, _, ok, err := c.GetMessageWindow(ctx, id, 111, 10)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.SetMessageWindow(ctx, id, []*feed.EncryptedMessage{msgAt(id, 110)}))
	require.NoError(t, c.AppendMessage(ctx, msgAt(id, 111)))

	got, _, ok, err := c.GetMessageWindow(ctx, id, 110, 10)
	require.NoError(t, err)
	assert.True(t, ok)
	require.Len(t, got, 2)
	assert.Equal(t, hush.BlockIndex(111), got[0].BlockIndex)
}

func TestWrappedKeysRoundTrip(t *testing.T) {
	c := New(1)
	ctx := context.Background()
	id := hush.NewBytes16()

	_, ok, err := c.GetWrappedKeys(ctx, id, "B")
	require.NoError(t, err)
	assert.False(t, ok)

	keys := []*feed.WrappedKey{
		{FeedID: id, Version: 0, MemberAddress: "B", Ciphertext: []byte("ct0")},
		{FeedID: id, Version: 1, MemberAddress: "B", Ciphertext: []byte("ct1")},
	}
	require.NoError(t, c.SetWrappedKeys(ctx, id, "B", keys))

	got, ok, err := c.GetWrappedKeys(ctx, id, "B")
	require.NoError(t, err)
	assert.True(t, ok)
	require.Len(t, got, 2)
	assert.Equal(t, uint32(1), got[1].Version)
	assert.Equal(t, []byte("ct1"), got[1].Ciphertext)
	assert.Equal(t, hush.Address("B"), got[0].MemberAddress)

	require.NoError(t, c.DropWrappedKeys(ctx, id, "B"))
	_, ok, err = c.GetWrappedKeys(ctx, id, "B")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWindowCodecPreservesReply(t *testing.T) {
	id := hush.NewBytes16()
	reply := hush.NewBytes16()
	m := msgAt(id, 7)
	m.ReplyTo = &reply
	m.AuthorCommitment = make([]byte, 32)

	blob, err := encodeWindow(&window{Origin: 7, Messages: []*feed.EncryptedMessage{m}})
	require.NoError(t, err)
	w, err := decodeWindow(blob)
	require.NoError(t, err)
	require.Len(t, w.Messages, 1)
	require.NotNil(t, w.Messages[0].ReplyTo)
	assert.Equal(t, reply, *w.Messages[0].ReplyTo)
	assert.Len(t, w.Messages[0].AuthorCommitment, 32)
}
