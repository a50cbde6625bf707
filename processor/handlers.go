// Copyright (c) 2025 The Hushnetwork developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package processor

import (
	"context"

	"github.com/Hushnetwork-social/hush-server-node-sub000/cry"
	"github.com/Hushnetwork-social/hush-server-node-sub000/feed"
	"github.com/Hushnetwork-social/hush-server-node-sub000/feeddb"
	"github.com/Hushnetwork-social/hush-server-node-sub000/hush"
	"github.com/Hushnetwork-social/hush-server-node-sub000/identity"
	"github.com/Hushnetwork-social/hush-server-node-sub000/rotation"
)

// Transaction handlers. Each runs inside the unit of work the pipeline
// opened; when a membership mutation triggers a rotation, the mutation
// is written first so the rotation sees the post-change member set.

func (p *Processor) registerAll() {
	p.register(feed.KindNewGroupFeed, p.validateNewGroupFeed, p.applyNewGroupFeed)
	p.register(feed.KindAddMemberToGroupFeed, p.validateAddMember, p.applyAddMember)
	p.register(feed.KindJoinGroupFeed, p.validateJoin, p.applyJoin)
	p.register(feed.KindLeaveGroupFeed, p.validateLeave, p.applyLeave)
	p.register(feed.KindBanFromGroupFeed, p.validateMemberAction, p.applyMemberAction)
	p.register(feed.KindUnbanFromGroupFeed, p.validateMemberAction, p.applyMemberAction)
	p.register(feed.KindPromoteToAdmin, p.validateMemberAction, p.applyMemberAction)
	p.register(feed.KindBlockMember, p.validateMemberAction, p.applyMemberAction)
	p.register(feed.KindUnblockMember, p.validateMemberAction, p.applyMemberAction)
	p.register(feed.KindUpdateGroupFeedTitle, p.validateUpdateTitle, p.applyUpdateTitle)
	p.register(feed.KindUpdateGroupFeedDescription, p.validateUpdateDescription, p.applyUpdateDescription)
	p.register(feed.KindDeleteGroupFeed, p.validateDeleteGroup, p.applyDeleteGroup)
	p.register(feed.KindGroupFeedKeyRotation, p.validateKeyRotation, p.applyKeyRotation)
	p.register(feed.KindNewGroupFeedMessage, p.validateMessage, p.applyMessage)
}

func (p *Processor) applyNewGroupFeed(ctx context.Context, uow *feeddb.UnitOfWork, vtx *feed.Validated) (*applied, error) {
	pl := vtx.Payload.(*feed.NewGroupFeedPayload)

	// replay of an already-applied creation is a no-op
	existing, err := uow.GetFeed(ctx, pl.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &applied{}, nil
	}

	now := vtx.BlockIndex
	if err := uow.CreateGroupFeed(ctx, &feed.GroupFeed{
		Feed: feed.Feed{
			ID:             pl.ID,
			Kind:           feed.KindGroup,
			CreatedAtBlock: now,
			LastBlockIndex: now,
		},
		Title:       pl.Title,
		Description: pl.Description,
		IsPublic:    pl.IsPublic,
	}); err != nil {
		return nil, err
	}

	members := make([]hush.Address, 0, len(pl.Participants))
	for _, part := range pl.Participants {
		role := feed.RoleMember
		if part.Address == pl.Creator {
			role = feed.RoleAdmin
		}
		if err := uow.AddParticipant(ctx, &feed.Participant{
			FeedID:        pl.ID,
			Address:       part.Address,
			Role:          role,
			JoinedAtBlock: now,
		}); err != nil {
			return nil, err
		}
		members = append(members, part.Address)
	}

	// generation zero is born with the group, wrapped under the keys
	// the creation payload carries
	groupKey, err := cry.NewGroupKey()
	if err != nil {
		return nil, rejectCause(CodeCryptoFailure, err, "key distribution failed")
	}
	wrapped := make([]feed.WrappedKey, 0, len(pl.Participants))
	for _, part := range pl.Participants {
		raw, err := identity.DecodeEncryptKey(part.EncryptKey)
		if err != nil {
			return nil, rejectCause(CodeCryptoFailure, err, "key distribution failed for %s", part.Address)
		}
		ct, err := cry.Encrypt(raw, groupKey)
		if err != nil {
			return nil, rejectCause(CodeCryptoFailure, err, "key distribution failed for %s", part.Address)
		}
		wrapped = append(wrapped, feed.WrappedKey{
			FeedID:        pl.ID,
			Version:       0,
			MemberAddress: part.Address,
			Ciphertext:    ct,
		})
	}
	gen := &feed.KeyGeneration{
		FeedID:         pl.ID,
		Version:        0,
		ValidFromBlock: now,
		Trigger:        feed.TriggerManual,
		EncryptedKeys:  wrapped,
	}
	if err := uow.CreateKeyRotation(ctx, gen); err != nil {
		return nil, err
	}

	logger.Info("group feed created", "feed", pl.ID, "members", len(members))
	return &applied{
		advanceFeed: true,
		rotation:    gen,
		created: &FeedCreatedEvent{
			FeedID:       pl.ID,
			Kind:         feed.KindGroup,
			Participants: members,
		},
	}, nil
}

// upsertMembership inserts a fresh participant row or reactivates a
// previously left one.
func upsertMembership(ctx context.Context, uow *feeddb.UnitOfWork, feedID hush.Bytes16, addr hush.Address, now hush.BlockIndex) error {
	part, err := uow.GetParticipantWithHistory(ctx, feedID, addr)
	if err != nil {
		return err
	}
	switch {
	case part == nil:
		return uow.AddParticipant(ctx, &feed.Participant{
			FeedID:        feedID,
			Address:       addr,
			Role:          feed.RoleMember,
			JoinedAtBlock: now,
		})
	case !part.Active():
		return uow.UpdateParticipantRejoin(ctx, feedID, addr, now)
	default:
		// replay; already active
		return nil
	}
}

func (p *Processor) applyAddMember(ctx context.Context, uow *feeddb.UnitOfWork, vtx *feed.Validated) (*applied, error) {
	pl := vtx.Payload.(*feed.AddMemberPayload)
	return p.applyMembershipGain(ctx, uow, vtx, pl.Feed, pl.Member)
}

func (p *Processor) applyJoin(ctx context.Context, uow *feeddb.UnitOfWork, vtx *feed.Validated) (*applied, error) {
	pl := vtx.Payload.(*feed.JoinPayload)
	return p.applyMembershipGain(ctx, uow, vtx, pl.Feed, pl.Member)
}

// applyMembershipGain adds or reactivates a member and rotates the
// group key to cover them. A rotation failure rolls the whole unit of
// work back, member add included, and the feed's lastBlockIndex stays
// untouched.
func (p *Processor) applyMembershipGain(ctx context.Context, uow *feeddb.UnitOfWork, vtx *feed.Validated, feedID hush.Bytes16, member hush.Address) (*applied, error) {
	now := vtx.BlockIndex
	if err := upsertMembership(ctx, uow, feedID, member, now); err != nil {
		return nil, err
	}
	payload, err := p.rot.TriggerRotation(ctx, uow, feedID, now, feed.TriggerJoin, &member, nil)
	if err != nil {
		return nil, rejectCause(CodeCryptoFailure, err, "key distribution failed")
	}
	return &applied{
		advanceFeed: true,
		rotation: &feed.KeyGeneration{
			FeedID:         feedID,
			Version:        payload.NewVersion,
			ValidFromBlock: payload.ValidFromBlock,
			Trigger:        payload.Trigger,
			EncryptedKeys:  payload.EncryptedKeys,
		},
	}, nil
}

func (p *Processor) applyLeave(ctx context.Context, uow *feeddb.UnitOfWork, vtx *feed.Validated) (*applied, error) {
	pl := vtx.Payload.(*feed.LeavePayload)
	now := vtx.BlockIndex

	if err := uow.MarkParticipantLeft(ctx, pl.Feed, pl.Member, now); err != nil {
		return nil, err
	}

	res := &applied{advanceFeed: true}
	payload, err := p.rot.TriggerRotation(ctx, uow, pl.Feed, now, feed.TriggerLeave, nil, &pl.Member)
	switch {
	case err == nil:
		res.rotation = &feed.KeyGeneration{
			FeedID:         pl.Feed,
			Version:        payload.NewVersion,
			ValidFromBlock: payload.ValidFromBlock,
			Trigger:        payload.Trigger,
			EncryptedKeys:  payload.EncryptedKeys,
		}
	case rotation.KindOf(err) == rotation.ErrNoActiveMembers:
		// the leaver was the last member; there is nobody left to
		// wrap a key for
		logger.Debug("group emptied by leave, skipping rotation", "feed", pl.Feed)
	default:
		return nil, rejectCause(CodeCryptoFailure, err, "key distribution failed")
	}

	admins, err := uow.CountActiveAdmins(ctx, pl.Feed)
	if err != nil {
		return nil, err
	}
	if admins == 0 {
		if err := uow.SoftDeleteGroup(ctx, pl.Feed); err != nil {
			return nil, err
		}
		logger.Info("group soft-deleted, last admin left", "feed", pl.Feed)
	}
	return res, nil
}

// memberActionEffect names the role written and the rotation trigger
// (zero when the action is non-cryptographic).
var memberActionEffect = map[feed.PayloadKind]struct {
	role    feed.Role
	trigger feed.RotationTrigger
}{
	feed.KindBanFromGroupFeed:   {feed.RoleBanned, feed.TriggerBan},
	feed.KindUnbanFromGroupFeed: {feed.RoleMember, feed.TriggerUnban},
	feed.KindPromoteToAdmin:     {feed.RoleAdmin, 0},
	feed.KindBlockMember:        {feed.RoleBlocked, 0},
	feed.KindUnblockMember:      {feed.RoleMember, 0},
}

func (p *Processor) applyMemberAction(ctx context.Context, uow *feeddb.UnitOfWork, vtx *feed.Validated) (*applied, error) {
	pl := vtx.Payload.(*feed.MemberActionPayload)
	effect, ok := memberActionEffect[pl.ActionKind]
	if !ok {
		return nil, Reject(CodeInvalidArgument, "unrecognized member action %d", pl.ActionKind)
	}

	if err := uow.UpdateParticipantType(ctx, pl.Feed, pl.Member, effect.role); err != nil {
		return nil, err
	}

	res := &applied{advanceFeed: true}
	if effect.trigger != 0 {
		payload, err := p.rot.TriggerRotation(ctx, uow, pl.Feed, vtx.BlockIndex, effect.trigger, nil, nil)
		if err != nil {
			return nil, rejectCause(CodeCryptoFailure, err, "key distribution failed")
		}
		res.rotation = &feed.KeyGeneration{
			FeedID:         pl.Feed,
			Version:        payload.NewVersion,
			ValidFromBlock: payload.ValidFromBlock,
			Trigger:        payload.Trigger,
			EncryptedKeys:  payload.EncryptedKeys,
		}
	}
	return res, nil
}

func (p *Processor) applyUpdateTitle(ctx context.Context, uow *feeddb.UnitOfWork, vtx *feed.Validated) (*applied, error) {
	pl := vtx.Payload.(*feed.UpdateTitlePayload)
	if err := uow.UpdateGroupTitle(ctx, pl.Feed, pl.Title); err != nil {
		return nil, err
	}
	return &applied{advanceFeed: true}, nil
}

func (p *Processor) applyUpdateDescription(ctx context.Context, uow *feeddb.UnitOfWork, vtx *feed.Validated) (*applied, error) {
	pl := vtx.Payload.(*feed.UpdateDescriptionPayload)
	if err := uow.UpdateGroupDescription(ctx, pl.Feed, pl.Description); err != nil {
		return nil, err
	}
	return &applied{advanceFeed: true}, nil
}

func (p *Processor) applyDeleteGroup(ctx context.Context, uow *feeddb.UnitOfWork, vtx *feed.Validated) (*applied, error) {
	pl := vtx.Payload.(*feed.DeleteGroupFeedPayload)
	if err := uow.SoftDeleteGroup(ctx, pl.Feed); err != nil {
		return nil, err
	}
	return &applied{advanceFeed: true}, nil
}

func (p *Processor) applyKeyRotation(ctx context.Context, uow *feeddb.UnitOfWork, vtx *feed.Validated) (*applied, error) {
	pl := vtx.Payload.(*feed.KeyRotationPayload)
	gen := &feed.KeyGeneration{
		FeedID:         pl.Feed,
		Version:        pl.NewVersion,
		ValidFromBlock: pl.ValidFromBlock,
		Trigger:        pl.Trigger,
		EncryptedKeys:  pl.EncryptedKeys,
	}
	if err := uow.CreateKeyRotation(ctx, gen); err != nil {
		return nil, err
	}
	return &applied{advanceFeed: true, rotation: gen}, nil
}

func (p *Processor) applyMessage(ctx context.Context, uow *feeddb.UnitOfWork, vtx *feed.Validated) (*applied, error) {
	pl := vtx.Payload.(*feed.MessagePayload)
	msg := &feed.EncryptedMessage{
		ID:               pl.MessageID,
		FeedID:           pl.Feed,
		Ciphertext:       pl.Ciphertext,
		SenderAddress:    pl.Sender,
		BlockIndex:       vtx.BlockIndex,
		Timestamp:        pl.Timestamp,
		KeyGeneration:    pl.KeyGeneration,
		ReplyTo:          pl.ReplyTo,
		AuthorCommitment: pl.AuthorCommitment,
	}
	if err := uow.CreateFeedMessage(ctx, msg); err != nil {
		return nil, err
	}
	return &applied{advanceFeed: true, message: msg}, nil
}
