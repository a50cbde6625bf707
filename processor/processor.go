// Copyright (c) 2025 The Hushnetwork developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package processor is the two-phase transaction pipeline: per payload
// kind a content handler validates and countersigns, then a transaction
// handler applies the effects inside one unit of work. Events publish
// only after commit.
package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common/mclock"

	"github.com/Hushnetwork-social/hush-server-node-sub000/feed"
	"github.com/Hushnetwork-social/hush-server-node-sub000/feeddb"
	"github.com/Hushnetwork-social/hush-server-node-sub000/feedstore"
	"github.com/Hushnetwork-social/hush-server-node-sub000/identity"
	"github.com/Hushnetwork-social/hush-server-node-sub000/log"
	"github.com/Hushnetwork-social/hush-server-node-sub000/metrics"
	"github.com/Hushnetwork-social/hush-server-node-sub000/rotation"
)

var (
	logger = log.WithContext("pkg", "processor")

	metricTxs      = metrics.LazyLoadCounterVec("processor_tx_count", []string{"kind", "outcome"})
	metricDuration = metrics.LazyLoadHistogram("processor_tx_duration_ms", metrics.Bucket10s)
)

// validator decides on a transaction from read-only state. No writes.
type validator func(ctx context.Context, r *feeddb.Reader, tx *feed.Transaction) error

// applier mutates state inside the given unit of work and reports what
// to publish and refresh once the work commits.
type applier func(ctx context.Context, uow *feeddb.UnitOfWork, vtx *feed.Validated) (*applied, error)

// applied is the post-commit contract of an applier: cache refreshes
// and event publications, all deferred until the unit of work is
// durable.
type applied struct {
	advanceFeed bool // advance lastBlockIndex of the payload's feed to the tx block
	message     *feed.EncryptedMessage
	rotation    *feed.KeyGeneration
	created     *FeedCreatedEvent
}

// Processor dispatches transactions to their handlers. Registration is
// complete at construction; an unknown kind is rejected at the edge
// and a missing handler for a known kind is a programming error that
// fails loudly on startup.
type Processor struct {
	store *feedstore.Store
	ids   identity.Store
	creds identity.CredentialsProvider
	rot   *rotation.Engine

	validators map[feed.PayloadKind]validator
	appliers   map[feed.PayloadKind]applier
	events     eventHub
}

// New wires the pipeline and registers handlers for every payload kind.
func New(store *feedstore.Store, ids identity.Store, creds identity.CredentialsProvider, rot *rotation.Engine) *Processor {
	p := &Processor{
		store:      store,
		ids:        ids,
		creds:      creds,
		rot:        rot,
		validators: make(map[feed.PayloadKind]validator),
		appliers:   make(map[feed.PayloadKind]applier),
	}
	p.registerAll()

	for k := feed.KindNewGroupFeed; k <= feed.KindNewGroupFeedMessage; k++ {
		if p.validators[k] == nil || p.appliers[k] == nil {
			panic(fmt.Sprintf("processor: no handler registered for kind %v", k))
		}
	}
	return p
}

func (p *Processor) register(kind feed.PayloadKind, v validator, a applier) {
	if p.validators[kind] != nil || p.appliers[kind] != nil {
		panic(fmt.Sprintf("processor: duplicate handler for kind %v", kind))
	}
	p.validators[kind] = v
	p.appliers[kind] = a
}

// Close drops all event subscriptions.
func (p *Processor) Close() {
	p.events.scope.Close()
}

// Execute runs validate then apply. A rejection is terminal; an
// infrastructure failure during apply is retried once for the same
// block inclusion.
func (p *Processor) Execute(ctx context.Context, tx *feed.Transaction) error {
	vtx, err := p.Validate(ctx, tx)
	if err != nil {
		return err
	}
	if err := p.Apply(ctx, vtx); err != nil {
		if IsReject(err) {
			return err
		}
		logger.Warn("apply failed, retrying once",
			"tx", tx.ID, "kind", tx.Payload.Kind(), "err", err)
		return p.Apply(ctx, vtx)
	}
	return nil
}

// Validate dispatches the content handler for the payload kind. It
// reads only from a read-only snapshot and, on success, stamps the
// transaction with the node's countersignature.
func (p *Processor) Validate(ctx context.Context, tx *feed.Transaction) (*feed.Validated, error) {
	if tx == nil || tx.Payload == nil {
		return nil, Reject(CodeInvalidArgument, "empty transaction")
	}
	kind := tx.Payload.Kind()
	v, ok := p.validators[kind]
	if !ok {
		return nil, Reject(CodeInvalidArgument, "unrecognized payload kind %d", kind)
	}
	if tx.Signer.IsBlank() {
		return nil, Reject(CodeInvalidArgument, "blank signer")
	}

	started := mclock.Now()
	err := v(ctx, p.store.CreateReadOnly(), tx)
	outcome := "valid"
	if err != nil {
		outcome = "rejected"
		if !IsReject(err) {
			outcome = "error"
		}
	}
	metricTxs().AddWithLabel(1, map[string]string{"kind": kind.String(), "outcome": outcome})
	metricDuration().Observe(time.Duration(mclock.Now() - started).Milliseconds())
	if err != nil {
		return nil, err
	}

	sig, err := p.creds.Sign(tx.SigningHash())
	if err != nil {
		return nil, rejectCause(CodeTransient, err, "countersign")
	}
	return &feed.Validated{Transaction: tx, NodeSignature: sig}, nil
}

// Apply dispatches the transaction handler inside a fresh unit of
// work. All effects commit atomically; cache refreshes and event
// publications happen strictly after commit.
func (p *Processor) Apply(ctx context.Context, vtx *feed.Validated) error {
	kind := vtx.Payload.Kind()
	a, ok := p.appliers[kind]
	if !ok {
		return Reject(CodeInvalidArgument, "unrecognized payload kind %d", kind)
	}

	uow, err := p.store.CreateWritable(ctx)
	if err != nil {
		return err
	}
	defer uow.Rollback()

	res, err := a(ctx, uow, vtx)
	if err != nil {
		metricTxs().AddWithLabel(1, map[string]string{"kind": kind.String(), "outcome": "apply_failed"})
		return err
	}
	if res.advanceFeed {
		if err := uow.UpdateFeedBlockIndex(ctx, vtx.Payload.FeedID(), vtx.BlockIndex); err != nil {
			return err
		}
	}
	if err := uow.Commit(); err != nil {
		return err
	}
	metricTxs().AddWithLabel(1, map[string]string{"kind": kind.String(), "outcome": "applied"})

	p.afterCommit(ctx, vtx, res)
	return nil
}

// afterCommit refreshes the overlay and publishes events. Commit
// implies durable, so this runs even when the caller has cancelled.
func (p *Processor) afterCommit(ctx context.Context, vtx *feed.Validated, res *applied) {
	if res.advanceFeed {
		p.store.NoteBlockIndex(ctx, vtx.Payload.FeedID(), vtx.BlockIndex)
	}
	if res.message != nil {
		p.store.NoteMessageApplied(ctx, res.message)
		p.events.newMessageFeed.Send(NewMessageEvent{Message: res.message})
	}
	if res.rotation != nil {
		p.store.NoteRotation(ctx, res.rotation)
		p.events.keyRotatedFeed.Send(KeyRotatedEvent{
			FeedID:  res.rotation.FeedID,
			Version: res.rotation.Version,
			Trigger: res.rotation.Trigger,
		})
	}
	if res.created != nil {
		p.events.feedCreatedFeed.Send(*res.created)
	}
}
