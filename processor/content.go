// Copyright (c) 2025 The Hushnetwork developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package processor

import (
	"context"
	"strings"

	"github.com/Hushnetwork-social/hush-server-node-sub000/feed"
	"github.com/Hushnetwork-social/hush-server-node-sub000/feeddb"
	"github.com/Hushnetwork-social/hush-server-node-sub000/hush"
)

// Content handlers. Each decides solely from the transaction and a
// read-only snapshot; no writes, deterministic given its inputs.

func validTitle(title string) bool {
	trimmed := strings.TrimSpace(title)
	return trimmed != "" && len(title) <= hush.MaxGroupTitleLen
}

// activeGroup loads a group that exists and is not soft-deleted.
func activeGroup(ctx context.Context, r *feeddb.Reader, feedID hush.Bytes16) (*feed.GroupFeed, error) {
	gf, err := r.GetGroupFeed(ctx, feedID)
	if err != nil {
		return nil, err
	}
	if gf == nil {
		return nil, Reject(CodeNotFound, "group feed not found")
	}
	if gf.IsDeleted {
		return nil, Reject(CodeFailedPrecondition, "group feed is deleted")
	}
	return gf, nil
}

// requireAdmin checks that requester signed the transaction and holds
// the admin role. Every admin-only rule goes through here.
func requireAdmin(ctx context.Context, r *feeddb.Reader, tx *feed.Transaction, feedID hush.Bytes16, requester hush.Address) error {
	if requester.IsBlank() {
		return Reject(CodeInvalidArgument, "blank requester address")
	}
	if tx.Signer != requester {
		return Reject(CodePermissionDenied, "signatory does not match requester")
	}
	isAdmin, err := r.IsAdmin(ctx, feedID, requester)
	if err != nil {
		return err
	}
	if !isAdmin {
		return Reject(CodePermissionDenied, "requester is not an admin")
	}
	return nil
}

func (p *Processor) validateNewGroupFeed(ctx context.Context, r *feeddb.Reader, tx *feed.Transaction) error {
	pl := tx.Payload.(*feed.NewGroupFeedPayload)
	if pl.ID.IsZero() {
		return Reject(CodeInvalidArgument, "blank feed id")
	}
	if !validTitle(pl.Title) {
		return Reject(CodeInvalidArgument, "title must be 1..%d non-whitespace characters", hush.MaxGroupTitleLen)
	}
	if len(pl.Participants) == 0 {
		return Reject(CodeInvalidArgument, "a group needs at least one participant")
	}
	if len(pl.Participants) > hush.MaxGroupSize {
		return Reject(CodeCapacity, "group exceeds %d members", hush.MaxGroupSize)
	}
	if pl.Creator.IsBlank() {
		return Reject(CodeInvalidArgument, "blank creator address")
	}

	seen := make(map[hush.Address]bool, len(pl.Participants))
	creatorPresent := false
	for _, part := range pl.Participants {
		if part.Address.IsBlank() {
			return Reject(CodeInvalidArgument, "blank participant address")
		}
		if part.EncryptKey.IsBlank() {
			return Reject(CodeInvalidArgument, "participant %s has no encrypt key", part.Address)
		}
		if seen[part.Address] {
			return Reject(CodeConflict, "duplicate participant %s", part.Address)
		}
		seen[part.Address] = true
		if part.Address == pl.Creator {
			creatorPresent = true
		}
	}
	if !creatorPresent {
		return Reject(CodeInvalidArgument, "creator must be among the participants")
	}
	return nil
}

func (p *Processor) validateAddMember(ctx context.Context, r *feeddb.Reader, tx *feed.Transaction) error {
	pl := tx.Payload.(*feed.AddMemberPayload)
	if _, err := activeGroup(ctx, r, pl.Feed); err != nil {
		return err
	}
	if err := requireAdmin(ctx, r, tx, pl.Feed, pl.Requester); err != nil {
		return err
	}
	if pl.Member.IsBlank() {
		return Reject(CodeInvalidArgument, "blank member address")
	}

	part, err := r.GetParticipantWithHistory(ctx, pl.Feed, pl.Member)
	if err != nil {
		return err
	}
	if part != nil && part.Active() {
		if part.Role == feed.RoleBanned {
			return Reject(CodeFailedPrecondition, "member is banned")
		}
		return Reject(CodeFailedPrecondition, "already a member")
	}
	// a previously left member may be re-added by an admin with no
	// cooldown; the self-join path enforces it
	return nil
}

func (p *Processor) validateJoin(ctx context.Context, r *feeddb.Reader, tx *feed.Transaction) error {
	pl := tx.Payload.(*feed.JoinPayload)
	gf, err := activeGroup(ctx, r, pl.Feed)
	if err != nil {
		return err
	}
	if !gf.IsPublic {
		return Reject(CodePermissionDenied, "group is not public")
	}
	if tx.Signer != pl.Member {
		return Reject(CodePermissionDenied, "signatory does not match joining member")
	}

	part, err := r.GetParticipantWithHistory(ctx, pl.Feed, pl.Member)
	if err != nil {
		return err
	}
	if part != nil {
		if part.Active() {
			if part.Role == feed.RoleBanned {
				return Reject(CodeFailedPrecondition, "member is banned")
			}
			return Reject(CodeFailedPrecondition, "already a member")
		}
		if part.LastLeaveBlock != nil && tx.BlockIndex-*part.LastLeaveBlock < hush.RejoinCooldownBlocks {
			return Reject(CodeFailedPrecondition, "rejoin cooldown of %d blocks not elapsed", hush.RejoinCooldownBlocks)
		}
	}
	return nil
}

func (p *Processor) validateLeave(ctx context.Context, r *feeddb.Reader, tx *feed.Transaction) error {
	pl := tx.Payload.(*feed.LeavePayload)
	if _, err := activeGroup(ctx, r, pl.Feed); err != nil {
		return err
	}
	if tx.Signer != pl.Member {
		return Reject(CodePermissionDenied, "signatory does not match leaving member")
	}
	part, err := r.GetParticipantWithHistory(ctx, pl.Feed, pl.Member)
	if err != nil {
		return err
	}
	if part == nil || !part.Active() {
		return Reject(CodeFailedPrecondition, "not an active participant")
	}
	if part.Role == feed.RoleBanned {
		return Reject(CodeFailedPrecondition, "member is banned")
	}
	return nil
}

// validateMemberAction covers ban, unban, promote, block and unblock.
// The per-kind target state requirements differ; requester rules are
// shared.
func (p *Processor) validateMemberAction(ctx context.Context, r *feeddb.Reader, tx *feed.Transaction) error {
	pl := tx.Payload.(*feed.MemberActionPayload)
	if _, err := activeGroup(ctx, r, pl.Feed); err != nil {
		return err
	}
	if err := requireAdmin(ctx, r, tx, pl.Feed, pl.Requester); err != nil {
		return err
	}
	if pl.Member.IsBlank() {
		return Reject(CodeInvalidArgument, "blank member address")
	}

	part, err := r.GetParticipantWithHistory(ctx, pl.Feed, pl.Member)
	if err != nil {
		return err
	}

	switch pl.ActionKind {
	case feed.KindBanFromGroupFeed:
		if pl.Member == pl.Requester {
			return Reject(CodeInvalidArgument, "cannot ban yourself")
		}
		if part == nil || !part.Active() {
			return Reject(CodeFailedPrecondition, "target is not an active participant")
		}
		if part.Role == feed.RoleAdmin {
			return Reject(CodeFailedPrecondition, "cannot ban an admin")
		}
		if part.Role == feed.RoleBanned {
			return Reject(CodeFailedPrecondition, "target is already banned")
		}
	case feed.KindUnbanFromGroupFeed:
		if part == nil || !part.Active() || part.Role != feed.RoleBanned {
			return Reject(CodeFailedPrecondition, "target is not banned")
		}
	case feed.KindPromoteToAdmin:
		if part == nil || !part.Active() {
			return Reject(CodeFailedPrecondition, "target is not an active participant")
		}
		if part.Role != feed.RoleMember {
			return Reject(CodeFailedPrecondition, "only members can be promoted")
		}
	case feed.KindBlockMember:
		if part == nil || !part.Active() {
			return Reject(CodeFailedPrecondition, "target is not an active participant")
		}
		if part.Role == feed.RoleAdmin {
			return Reject(CodeFailedPrecondition, "cannot block an admin")
		}
		if part.Role == feed.RoleBlocked {
			return Reject(CodeFailedPrecondition, "target is already blocked")
		}
	case feed.KindUnblockMember:
		if part == nil || !part.Active() || part.Role != feed.RoleBlocked {
			return Reject(CodeFailedPrecondition, "target is not blocked")
		}
	default:
		return Reject(CodeInvalidArgument, "unrecognized member action %d", pl.ActionKind)
	}
	return nil
}

func (p *Processor) validateUpdateTitle(ctx context.Context, r *feeddb.Reader, tx *feed.Transaction) error {
	pl := tx.Payload.(*feed.UpdateTitlePayload)
	if _, err := activeGroup(ctx, r, pl.Feed); err != nil {
		return err
	}
	if err := requireAdmin(ctx, r, tx, pl.Feed, pl.Requester); err != nil {
		return err
	}
	if !validTitle(pl.Title) {
		return Reject(CodeInvalidArgument, "title must be 1..%d non-whitespace characters", hush.MaxGroupTitleLen)
	}
	return nil
}

func (p *Processor) validateUpdateDescription(ctx context.Context, r *feeddb.Reader, tx *feed.Transaction) error {
	pl := tx.Payload.(*feed.UpdateDescriptionPayload)
	if _, err := activeGroup(ctx, r, pl.Feed); err != nil {
		return err
	}
	return requireAdmin(ctx, r, tx, pl.Feed, pl.Requester)
}

func (p *Processor) validateDeleteGroup(ctx context.Context, r *feeddb.Reader, tx *feed.Transaction) error {
	pl := tx.Payload.(*feed.DeleteGroupFeedPayload)
	if _, err := activeGroup(ctx, r, pl.Feed); err != nil {
		return err
	}
	return requireAdmin(ctx, r, tx, pl.Feed, pl.Requester)
}

func (p *Processor) validateKeyRotation(ctx context.Context, r *feeddb.Reader, tx *feed.Transaction) error {
	pl := tx.Payload.(*feed.KeyRotationPayload)
	if pl.Feed.IsZero() {
		return Reject(CodeInvalidArgument, "blank feed id")
	}
	if pl.NewVersion < 1 || pl.NewVersion != pl.PreviousVersion+1 {
		return Reject(CodeInvalidArgument, "version must advance by exactly one")
	}
	if pl.ValidFromBlock == 0 {
		return Reject(CodeInvalidArgument, "validFromBlock must be positive")
	}
	if len(pl.EncryptedKeys) == 0 {
		return Reject(CodeInvalidArgument, "a rotation needs at least one wrapped key")
	}
	seen := make(map[hush.Address]bool, len(pl.EncryptedKeys))
	for _, wk := range pl.EncryptedKeys {
		if wk.MemberAddress.IsBlank() {
			return Reject(CodeInvalidArgument, "blank member address in wrapped keys")
		}
		if len(wk.Ciphertext) == 0 {
			return Reject(CodeInvalidArgument, "empty wrapped key for %s", wk.MemberAddress)
		}
		if seen[wk.MemberAddress] {
			return Reject(CodeConflict, "duplicate wrapped key for %s", wk.MemberAddress)
		}
		seen[wk.MemberAddress] = true
	}
	return nil
}

func (p *Processor) validateMessage(ctx context.Context, r *feeddb.Reader, tx *feed.Transaction) error {
	pl := tx.Payload.(*feed.MessagePayload)
	gf, err := activeGroup(ctx, r, pl.Feed)
	if err != nil {
		return err
	}
	if pl.MessageID.IsZero() {
		return Reject(CodeInvalidArgument, "blank message id")
	}
	if len(pl.Ciphertext) == 0 {
		return Reject(CodeInvalidArgument, "empty ciphertext")
	}
	if pl.Sender.IsBlank() || tx.Signer != pl.Sender {
		return Reject(CodePermissionDenied, "signatory does not match sender")
	}
	if pl.AuthorCommitment != nil && len(pl.AuthorCommitment) != 32 {
		return Reject(CodeInvalidArgument, "authorCommitment must be exactly 32 bytes")
	}

	part, err := r.GetParticipantWithHistory(ctx, pl.Feed, pl.Sender)
	if err != nil {
		return err
	}
	if part == nil || !part.Active() {
		return Reject(CodePermissionDenied, "sender is not an active participant")
	}
	if part.Role == feed.RoleBanned || part.Role == feed.RoleBlocked {
		return Reject(CodePermissionDenied, "sender cannot post to this feed")
	}

	return p.checkGeneration(ctx, r, gf, pl.KeyGeneration, tx.BlockIndex)
}

// checkGeneration enforces the forward validity window: the current
// generation is always acceptable, the previous one only while the
// grace window after the rotation block is still open. Anything else,
// older or not yet existing, is rejected.
func (p *Processor) checkGeneration(ctx context.Context, r *feeddb.Reader, gf *feed.GroupFeed, g uint32, now hush.BlockIndex) error {
	current := gf.CurrentKeyGeneration
	if g == current {
		return nil
	}
	if current > 0 && g == current-1 {
		validFrom, ok, err := r.GetKeyGenerationValidFrom(ctx, gf.ID, current)
		if err != nil {
			return err
		}
		// grace covers the rotation block itself plus the following
		// four, inclusive on both ends
		if ok && now <= validFrom+hush.KeyRotationGraceBlocks-1 {
			return nil
		}
		return Reject(CodeFailedPrecondition, "key generation %d expired", g)
	}
	if g > current {
		return Reject(CodeFailedPrecondition, "key generation %d does not exist yet", g)
	}
	return Reject(CodeFailedPrecondition, "key generation %d is stale", g)
}
