// Copyright (c) 2025 The Hushnetwork developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package rotation

import (
	"context"
	"slices"
	"time"

	"github.com/ethereum/go-ethereum/common/mclock"

	"github.com/Hushnetwork-social/hush-server-node-sub000/cry"
	"github.com/Hushnetwork-social/hush-server-node-sub000/feed"
	"github.com/Hushnetwork-social/hush-server-node-sub000/feeddb"
	"github.com/Hushnetwork-social/hush-server-node-sub000/hush"
	"github.com/Hushnetwork-social/hush-server-node-sub000/identity"
	"github.com/Hushnetwork-social/hush-server-node-sub000/log"
	"github.com/Hushnetwork-social/hush-server-node-sub000/metrics"
)

var (
	logger = log.WithContext("pkg", "rotation")

	metricRotations = metrics.LazyLoadCounterVec("rotation_count", []string{"trigger", "outcome"})
	metricDuration  = metrics.LazyLoadHistogram("rotation_duration_ms", metrics.Bucket10s)
)

// Engine produces new key generations. On every membership change it
// draws a fresh symmetric group key, wraps it for each member of the
// post-change key set under that member's public encryption key, and
// advances the generation by exactly one.
type Engine struct {
	ids identity.Store
}

// New creates a rotation engine over the given identity store.
func New(ids identity.Store) *Engine {
	return &Engine{ids: ids}
}

// TriggerRotation runs inside the caller's unit of work, so it sees
// the post-mutation member set and commits (or rolls back) with it.
// joining is added to the set if absent; leaving is removed. The
// produced payload carries newVersion = prev+1 with no gaps.
func (e *Engine) TriggerRotation(
	ctx context.Context,
	uow *feeddb.UnitOfWork,
	feedID hush.Bytes16,
	now hush.BlockIndex,
	trigger feed.RotationTrigger,
	joining, leaving *hush.Address,
) (*feed.KeyRotationPayload, error) {
	started := mclock.Now()
	payload, err := e.rotate(ctx, uow, feedID, now, trigger, joining, leaving)
	outcome := "ok"
	if err != nil {
		outcome = KindOf(err).String()
	}
	metricRotations().AddWithLabel(1, map[string]string{"trigger": trigger.String(), "outcome": outcome})
	metricDuration().Observe(time.Duration(mclock.Now() - started).Milliseconds())
	return payload, err
}

func (e *Engine) rotate(
	ctx context.Context,
	uow *feeddb.UnitOfWork,
	feedID hush.Bytes16,
	now hush.BlockIndex,
	trigger feed.RotationTrigger,
	joining, leaving *hush.Address,
) (*feed.KeyRotationPayload, error) {
	gf, err := uow.GetGroupFeed(ctx, feedID)
	if err != nil {
		return nil, err
	}
	if gf == nil {
		return nil, newError(ErrGroupNotFound, "", nil)
	}
	prev := gf.CurrentKeyGeneration

	members, err := uow.GetActiveGroupMemberAddresses(ctx, feedID)
	if err != nil {
		return nil, err
	}
	if joining != nil && !slices.Contains(members, *joining) {
		members = append(members, *joining)
	}
	if leaving != nil {
		members = slices.DeleteFunc(members, func(a hush.Address) bool { return a == *leaving })
	}
	if len(members) == 0 {
		return nil, newError(ErrNoActiveMembers, "", nil)
	}
	if len(members) > hush.MaxGroupSize {
		return nil, newError(ErrGroupTooLarge, "", nil)
	}

	// resolve all identities before any key material is produced
	pubKeys := make([][]byte, len(members))
	for i, addr := range members {
		encKey, err := e.ids.GetEncryptKey(ctx, addr)
		if err != nil {
			if identity.IsNotFound(err) {
				return nil, newError(ErrMissingIdentity, addr, err)
			}
			return nil, err
		}
		raw, err := identity.DecodeEncryptKey(encKey)
		if err != nil {
			return nil, newError(ErrInvalidKey, addr, err)
		}
		pubKeys[i] = raw
	}

	groupKey, err := cry.NewGroupKey()
	if err != nil {
		return nil, newError(ErrCryptoFailure, "", err)
	}

	newVersion := prev + 1
	wrapped := make([]feed.WrappedKey, len(members))
	for i, addr := range members {
		ct, err := cry.Encrypt(pubKeys[i], groupKey)
		if err != nil {
			if cry.IsMalformedKey(err) {
				return nil, newError(ErrInvalidKey, addr, err)
			}
			return nil, newError(ErrCryptoFailure, addr, err)
		}
		wrapped[i] = feed.WrappedKey{
			FeedID:        feedID,
			Version:       newVersion,
			MemberAddress: addr,
			Ciphertext:    ct,
		}
	}

	payload := &feed.KeyRotationPayload{
		Feed:            feedID,
		NewVersion:      newVersion,
		PreviousVersion: prev,
		ValidFromBlock:  now,
		Trigger:         trigger,
		EncryptedKeys:   wrapped,
	}

	if err := uow.CreateKeyRotation(ctx, &feed.KeyGeneration{
		FeedID:         feedID,
		Version:        newVersion,
		ValidFromBlock: now,
		Trigger:        trigger,
		EncryptedKeys:  wrapped,
	}); err != nil {
		return nil, err
	}

	logger.Debug("rotated group key",
		"feed", feedID, "version", newVersion, "trigger", trigger, "members", len(members))
	return payload, nil
}
