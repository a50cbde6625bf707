// Copyright (c) 2025 The Hushnetwork developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package feedcache

import (
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/Hushnetwork-social/hush-server-node-sub000/feed"
	"github.com/Hushnetwork-social/hush-server-node-sub000/hush"
)

// Cached blobs are RLP encoded then snappy compressed.

type cachedMessage struct {
	ID               hush.Bytes16
	FeedID           hush.Bytes16
	Ciphertext       []byte
	Sender           string
	BlockIndex       uint64
	Timestamp        uint64
	KeyGeneration    uint32
	ReplyTo          *hush.Bytes16 `rlp:"nil"`
	AuthorCommitment []byte
}

type window struct {
	Origin   hush.BlockIndex
	Messages []*feed.EncryptedMessage
}

type cachedWindow struct {
	Origin   uint64
	Messages []cachedMessage
}

func encodeWindow(w *window) ([]byte, error) {
	cw := cachedWindow{Origin: uint64(w.Origin)}
	cw.Messages = make([]cachedMessage, 0, len(w.Messages))
	for _, m := range w.Messages {
		cw.Messages = append(cw.Messages, cachedMessage{
			ID:               m.ID,
			FeedID:           m.FeedID,
			Ciphertext:       m.Ciphertext,
			Sender:           string(m.SenderAddress),
			BlockIndex:       uint64(m.BlockIndex),
			Timestamp:        m.Timestamp,
			KeyGeneration:    m.KeyGeneration,
			ReplyTo:          m.ReplyTo,
			AuthorCommitment: m.AuthorCommitment,
		})
	}
	raw, err := rlp.EncodeToBytes(&cw)
	if err != nil {
		return nil, err
	}
	return compress(raw), nil
}

func decodeWindow(blob []byte) (*window, error) {
	raw, err := decompress(blob)
	if err != nil {
		return nil, err
	}
	var cw cachedWindow
	if err := rlp.DecodeBytes(raw, &cw); err != nil {
		return nil, err
	}
	w := &window{Origin: hush.BlockIndex(cw.Origin)}
	w.Messages = make([]*feed.EncryptedMessage, 0, len(cw.Messages))
	for i := range cw.Messages {
		cm := &cw.Messages[i]
		w.Messages = append(w.Messages, &feed.EncryptedMessage{
			ID:               cm.ID,
			FeedID:           cm.FeedID,
			Ciphertext:       cm.Ciphertext,
			SenderAddress:    hush.Address(cm.Sender),
			BlockIndex:       hush.BlockIndex(cm.BlockIndex),
			Timestamp:        cm.Timestamp,
			KeyGeneration:    cm.KeyGeneration,
			ReplyTo:          cm.ReplyTo,
			AuthorCommitment: cm.AuthorCommitment,
		})
	}
	return w, nil
}

type cachedWrappedKey struct {
	Version    uint32
	Ciphertext []byte
}

func encodeWrappedKeys(keys []*feed.WrappedKey) ([]byte, error) {
	cks := make([]cachedWrappedKey, 0, len(keys))
	for _, k := range keys {
		cks = append(cks, cachedWrappedKey{Version: k.Version, Ciphertext: k.Ciphertext})
	}
	raw, err := rlp.EncodeToBytes(cks)
	if err != nil {
		return nil, err
	}
	return compress(raw), nil
}

func decodeWrappedKeys(feedID hush.Bytes16, addr hush.Address, blob []byte) ([]*feed.WrappedKey, error) {
	raw, err := decompress(blob)
	if err != nil {
		return nil, err
	}
	var cks []cachedWrappedKey
	if err := rlp.DecodeBytes(raw, &cks); err != nil {
		return nil, err
	}
	keys := make([]*feed.WrappedKey, 0, len(cks))
	for _, ck := range cks {
		keys = append(keys, &feed.WrappedKey{
			FeedID:        feedID,
			Version:       ck.Version,
			MemberAddress: addr,
			Ciphertext:    ck.Ciphertext,
		})
	}
	return keys, nil
}
