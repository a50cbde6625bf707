// Copyright (c) 2025 The Hushnetwork developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package feed

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/pborman/uuid"

	"github.com/Hushnetwork-social/hush-server-node-sub000/hush"
)

// Transaction is the signed envelope a payload travels in. It becomes
// canonical only when included in a block; BlockIndex is the including
// block's height.
type Transaction struct {
	ID         hush.Bytes16
	BlockIndex hush.BlockIndex
	Signer     hush.Address
	Signature  []byte
	Payload    Payload
}

// NewTransaction assembles an envelope with a fresh random identifier.
func NewTransaction(signer hush.Address, blockIndex hush.BlockIndex, payload Payload) *Transaction {
	var id hush.Bytes16
	copy(id[:], uuid.NewRandom())
	return &Transaction{
		ID:         id,
		BlockIndex: blockIndex,
		Signer:     signer,
		Payload:    payload,
	}
}

// SigningHash is the digest the node countersigns when it validates
// the transaction.
func (t *Transaction) SigningHash() []byte {
	h := sha256.New()
	h.Write(t.ID[:])
	var idx [8]byte
	binary.BigEndian.PutUint64(idx[:], uint64(t.BlockIndex))
	h.Write(idx[:])
	h.Write([]byte(t.Signer))
	if t.Payload != nil {
		h.Write([]byte{byte(t.Payload.Kind())})
		fid := t.Payload.FeedID()
		h.Write(fid[:])
	}
	return h.Sum(nil)
}

// Validated stamps a transaction as having passed content validation.
// Only validated transactions reach transaction handlers. The envelope
// is threaded as an explicit value; nothing here is ambient state.
type Validated struct {
	*Transaction

	// NodeSignature is the validating node's countersignature over
	// SigningHash.
	NodeSignature []byte
}
