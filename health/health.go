// Copyright (c) 2025 The Hushnetwork developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package health tracks node liveness: whether the chain tip is still
// advancing and when a transaction last committed.
package health

import (
	"sync"
	"time"

	"github.com/Hushnetwork-social/hush-server-node-sub000/hush"
)

// defaultBlockTolerance is how stale the tip may be before the node
// reports unhealthy.
const defaultBlockTolerance = 30 * time.Second

type Status struct {
	Healthy        bool            `json:"healthy"`
	ChainTip       hush.BlockIndex `json:"chainTip"`
	ChainTipSeenAt *time.Time      `json:"chainTipSeenAt,omitempty"`
	LastCommitAt   *time.Time      `json:"lastCommitAt,omitempty"`
	BlockTolerance time.Duration   `json:"blockTolerance"`
}

type Health struct {
	lock           sync.RWMutex
	chainTip       hush.BlockIndex
	chainTipSeenAt time.Time
	lastCommitAt   time.Time
	tolerance      time.Duration
}

// New creates a tracker. tolerance <= 0 uses the default.
func New(tolerance time.Duration) *Health {
	if tolerance <= 0 {
		tolerance = defaultBlockTolerance
	}
	return &Health{tolerance: tolerance}
}

// NewChainTip records an observed tip advance.
func (h *Health) NewChainTip(index hush.BlockIndex) {
	h.lock.Lock()
	defer h.lock.Unlock()
	if index > h.chainTip {
		h.chainTip = index
		h.chainTipSeenAt = time.Now()
	}
}

// NoteCommit records a committed transaction.
func (h *Health) NoteCommit() {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.lastCommitAt = time.Now()
}

// Status reports liveness. The node is healthy while the tip keeps
// moving within the tolerance window.
func (h *Health) Status() *Status {
	h.lock.RLock()
	defer h.lock.RUnlock()

	s := &Status{
		ChainTip:       h.chainTip,
		BlockTolerance: h.tolerance,
	}
	if !h.chainTipSeenAt.IsZero() {
		t := h.chainTipSeenAt
		s.ChainTipSeenAt = &t
		s.Healthy = time.Since(t) <= h.tolerance
	}
	if !h.lastCommitAt.IsZero() {
		t := h.lastCommitAt
		s.LastCommitAt = &t
	}
	return s
}
