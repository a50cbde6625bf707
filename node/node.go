// Copyright (c) 2025 The Hushnetwork developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package node wires the feeds core together and runs its background
// loops: the solo block ticker, attachment orphan cleanup and cache
// stats reporting.
package node

import (
	"context"
	"time"

	"github.com/Hushnetwork-social/hush-server-node-sub000/attach"
	"github.com/Hushnetwork-social/hush-server-node-sub000/co"
	"github.com/Hushnetwork-social/hush-server-node-sub000/feedcache"
	"github.com/Hushnetwork-social/hush-server-node-sub000/feedstore"
	"github.com/Hushnetwork-social/hush-server-node-sub000/health"
	"github.com/Hushnetwork-social/hush-server-node-sub000/identity"
	"github.com/Hushnetwork-social/hush-server-node-sub000/log"
	"github.com/Hushnetwork-social/hush-server-node-sub000/processor"
)

var logger = log.WithContext("pkg", "node")

// Options tune the background loops. Zero values fall back to the
// defaults below.
type Options struct {
	// BlockInterval is the solo-mode tick that advances the chain tip.
	// Zero disables the ticker; the tip then only moves externally.
	BlockInterval time.Duration

	// AttachmentTTL is the age past which staged attachment bytes are
	// considered orphaned.
	AttachmentTTL time.Duration

	// CleanupInterval is how often the orphan sweep runs.
	CleanupInterval time.Duration

	// StatsInterval is how often cache stats are logged.
	StatsInterval time.Duration
}

const (
	defaultAttachmentTTL   = 24 * time.Hour
	defaultCleanupInterval = time.Hour
	defaultStatsInterval   = 10 * time.Minute
)

// Node owns the background goroutines of a running feeds node.
type Node struct {
	store  *feedstore.Store
	proc   *processor.Processor
	blobs  *attach.Store
	cache  *feedcache.Cache
	chain  *identity.MemChain
	health *health.Health
	opts   Options
	goes   co.Goes
}

// New assembles a node. blobs, cache and health may be nil; their
// loops are then skipped.
func New(
	store *feedstore.Store,
	proc *processor.Processor,
	blobs *attach.Store,
	cache *feedcache.Cache,
	chain *identity.MemChain,
	health *health.Health,
	opts Options,
) *Node {
	if opts.AttachmentTTL <= 0 {
		opts.AttachmentTTL = defaultAttachmentTTL
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = defaultCleanupInterval
	}
	if opts.StatsInterval <= 0 {
		opts.StatsInterval = defaultStatsInterval
	}
	return &Node{
		store:  store,
		proc:   proc,
		blobs:  blobs,
		cache:  cache,
		chain:  chain,
		health: health,
		opts:   opts,
	}
}

// Run starts the loops and blocks until ctx is done.
func (n *Node) Run(ctx context.Context) error {
	n.goes.Go(func() { n.houseKeeping(ctx) })
	if n.opts.BlockInterval > 0 {
		n.goes.Go(func() { n.blockTicker(ctx) })
	}
	if n.health != nil {
		n.goes.Go(func() { n.trackCommits(ctx) })
	}
	n.goes.Wait()
	return nil
}

// trackCommits feeds the health tracker from committed pipeline events.
func (n *Node) trackCommits(ctx context.Context) {
	messages := make(chan processor.NewMessageEvent, 64)
	rotations := make(chan processor.KeyRotatedEvent, 64)
	msgSub := n.proc.SubscribeNewMessage(messages)
	rotSub := n.proc.SubscribeKeyRotated(rotations)
	defer msgSub.Unsubscribe()
	defer rotSub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case <-messages:
			n.health.NoteCommit()
		case <-rotations:
			n.health.NoteCommit()
		}
	}
}

// blockTicker advances the solo chain tip once per interval. Submitted
// transactions are stamped with whatever the tip is at submission.
func (n *Node) blockTicker(ctx context.Context) {
	logger.Debug("enter block ticker", "interval", n.opts.BlockInterval)
	defer logger.Debug("leave block ticker")

	ticker := time.NewTicker(n.opts.BlockInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			next := n.chain.LastBlockIndex() + 1
			n.chain.Advance(next)
			if n.health != nil {
				n.health.NewChainTip(next)
			}
			logger.Trace("block tick", "index", next)
		}
	}
}

func (n *Node) houseKeeping(ctx context.Context) {
	logger.Debug("enter house keeping")
	defer logger.Debug("leave house keeping")

	cleanupTicker := time.NewTicker(n.opts.CleanupInterval)
	statsTicker := time.NewTicker(n.opts.StatsInterval)
	defer cleanupTicker.Stop()
	defer statsTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-cleanupTicker.C:
			n.sweepOrphans()
		case <-statsTicker.C:
			if n.cache != nil {
				n.cache.LogStats()
			}
		}
	}
}

func (n *Node) sweepOrphans() {
	if n.blobs == nil {
		return
	}
	removed, err := n.blobs.CleanupOrphans(n.opts.AttachmentTTL)
	if err != nil {
		logger.Warn("attachment cleanup failed", "err", err)
		return
	}
	if removed > 0 {
		logger.Info("attachment cleanup done", "removed", removed)
	}
}
