// Copyright (c) 2025 The Hushnetwork developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package identity

import (
	"context"
	"encoding/hex"
	"strings"

	"github.com/pkg/errors"

	"github.com/Hushnetwork-social/hush-server-node-sub000/hush"
)

// ErrNotFound is returned when the store holds no record for an address.
var ErrNotFound = errors.New("identity not found")

// IsNotFound tells whether the error means a missing identity record.
func IsNotFound(err error) bool {
	return errors.Cause(err) == ErrNotFound
}

// Store resolves the current public encryption key of an identity.
// Backed by the chain's identity registry; the feeds core only consumes
// the interface.
type Store interface {
	GetEncryptKey(ctx context.Context, addr hush.Address) (hush.EncryptKey, error)
}

// AliasProvider resolves the display alias of an identity. Feed
// listings render chat and personal feed titles from aliases.
type AliasProvider interface {
	Alias(ctx context.Context, addr hush.Address) (string, error)
}

// BlockchainCache exposes the node's view of the canonical chain tip.
type BlockchainCache interface {
	LastBlockIndex() hush.BlockIndex
}

// CredentialsProvider holds the node identity used to countersign
// validated transactions. Signature primitives live outside the core.
type CredentialsProvider interface {
	NodeAddress() hush.Address
	Sign(digest []byte) ([]byte, error)
	Verify(signer hush.Address, digest, signature []byte) error
}

// DecodeEncryptKey turns the wire form of an encryption key into raw
// secp256k1 point bytes. Hex with or without 0x prefix.
func DecodeEncryptKey(key hush.EncryptKey) ([]byte, error) {
	s := strings.TrimSpace(string(key))
	if strings.HasPrefix(strings.ToLower(s), "0x") {
		s = s[2:]
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, errors.WithMessage(err, "decode encrypt key")
	}
	if len(raw) != 33 && len(raw) != 65 {
		return nil, errors.New("invalid encrypt key length")
	}
	return raw, nil
}
