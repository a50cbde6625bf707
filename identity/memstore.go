// Copyright (c) 2025 The Hushnetwork developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package identity

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/Hushnetwork-social/hush-server-node-sub000/hush"
)

// MemStore is an in-memory identity store for solo mode and tests.
type MemStore struct {
	lock    sync.RWMutex
	keys    map[hush.Address]hush.EncryptKey
	aliases map[hush.Address]string
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		keys:    make(map[hush.Address]hush.EncryptKey),
		aliases: make(map[hush.Address]string),
	}
}

// SetAlias records a display alias for an identity.
func (s *MemStore) SetAlias(addr hush.Address, alias string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.aliases[addr] = alias
}

// Alias implements AliasProvider. Identities without a registered
// alias fall back to their address.
func (s *MemStore) Alias(_ context.Context, addr hush.Address) (string, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if alias, ok := s.aliases[addr]; ok {
		return alias, nil
	}
	return string(addr), nil
}

// Add registers or replaces an identity's encryption key.
func (s *MemStore) Add(addr hush.Address, key hush.EncryptKey) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.keys[addr] = key
}

// Remove drops an identity.
func (s *MemStore) Remove(addr hush.Address) {
	s.lock.Lock()
	defer s.lock.Unlock()
	delete(s.keys, addr)
}

// GetEncryptKey implements Store.
func (s *MemStore) GetEncryptKey(_ context.Context, addr hush.Address) (hush.EncryptKey, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	key, ok := s.keys[addr]
	if !ok {
		return "", ErrNotFound
	}
	return key, nil
}

// MemChain is a settable chain-tip view for solo mode and tests.
type MemChain struct {
	index atomic.Uint64
}

// NewMemChain creates a chain view at the given height.
func NewMemChain(index hush.BlockIndex) *MemChain {
	c := &MemChain{}
	c.index.Store(uint64(index))
	return c
}

// LastBlockIndex implements BlockchainCache.
func (c *MemChain) LastBlockIndex() hush.BlockIndex {
	return hush.BlockIndex(c.index.Load())
}

// Advance moves the tip forward to the given height if it is higher.
func (c *MemChain) Advance(index hush.BlockIndex) {
	for {
		cur := c.index.Load()
		if uint64(index) <= cur {
			return
		}
		if c.index.CompareAndSwap(cur, uint64(index)) {
			return
		}
	}
}
