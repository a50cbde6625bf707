// Copyright (c) 2025 The Hushnetwork developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package health

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hushnetwork-social/hush-server-node-sub000/hush"
)

func TestStatusUnhealthyBeforeFirstTip(t *testing.T) {
	h := New(0)
	s := h.Status()
	assert.False(t, s.Healthy)
	assert.Nil(t, s.ChainTipSeenAt)
	assert.Equal(t, hush.BlockIndex(0), s.ChainTip)
}

func TestStatusHealthyWhileTipAdvances(t *testing.T) {
	h := New(time.Minute)
	h.NewChainTip(42)
	h.NoteCommit()

	s := h.Status()
	assert.True(t, s.Healthy)
	assert.Equal(t, hush.BlockIndex(42), s.ChainTip)
	require.NotNil(t, s.ChainTipSeenAt)
	require.NotNil(t, s.LastCommitAt)

	// a stale tip does not move the timestamp backwards
	seen := *s.ChainTipSeenAt
	h.NewChainTip(41)
	s = h.Status()
	assert.Equal(t, hush.BlockIndex(42), s.ChainTip)
	assert.Equal(t, seen, *s.ChainTipSeenAt)
}

func TestStatusUnhealthyWhenTipStalls(t *testing.T) {
	h := New(time.Nanosecond)
	h.NewChainTip(1)
	time.Sleep(time.Millisecond)
	assert.False(t, h.Status().Healthy)
}
