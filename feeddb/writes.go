// Copyright (c) 2025 The Hushnetwork developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package feeddb

import (
	"context"

	"github.com/pkg/errors"

	"github.com/Hushnetwork-social/hush-server-node-sub000/feed"
	"github.com/Hushnetwork-social/hush-server-node-sub000/hush"
)

// CreateFeed inserts the shared envelope of a new feed.
func (u *UnitOfWork) CreateFeed(ctx context.Context, f *feed.Feed) error {
	_, err := u.q.ExecContext(ctx,
		"INSERT INTO feeds(id, kind, createdAtBlock, lastBlockIndex) VALUES (?, ?, ?, ?)",
		f.ID.Bytes(), f.Kind, uint64(f.CreatedAtBlock), uint64(f.LastBlockIndex))
	return err
}

// CreateGroupFeed inserts a group feed (envelope plus group row).
func (u *UnitOfWork) CreateGroupFeed(ctx context.Context, gf *feed.GroupFeed) error {
	if err := u.CreateFeed(ctx, &gf.Feed); err != nil {
		return err
	}
	_, err := u.q.ExecContext(ctx,
		"INSERT INTO groupFeeds(feedId, title, description, isPublic, currentKeyGeneration, isDeleted) VALUES (?, ?, ?, ?, ?, ?)",
		gf.ID.Bytes(), gf.Title, gf.Description, gf.IsPublic, gf.CurrentKeyGeneration, gf.IsDeleted)
	return err
}

// AddParticipant inserts a fresh participation row.
func (u *UnitOfWork) AddParticipant(ctx context.Context, p *feed.Participant) error {
	var leftAt, lastLeave any
	if p.LeftAtBlock != nil {
		leftAt = uint64(*p.LeftAtBlock)
	}
	if p.LastLeaveBlock != nil {
		lastLeave = uint64(*p.LastLeaveBlock)
	}
	_, err := u.q.ExecContext(ctx,
		"INSERT INTO groupFeedParticipants(feedId, address, role, joinedAtBlock, leftAtBlock, lastLeaveBlock) VALUES (?, ?, ?, ?, ?, ?)",
		p.FeedID.Bytes(), string(p.Address), p.Role, uint64(p.JoinedAtBlock), leftAt, lastLeave)
	return err
}

// UpdateParticipantRejoin reactivates a previously left participant:
// the row is reused, never duplicated.
func (u *UnitOfWork) UpdateParticipantRejoin(ctx context.Context, feedID hush.Bytes16, addr hush.Address, joinedAt hush.BlockIndex) error {
	res, err := u.q.ExecContext(ctx,
		"UPDATE groupFeedParticipants SET role = ?, joinedAtBlock = ?, leftAtBlock = NULL WHERE feedId = ? AND address = ?",
		feed.RoleMember, uint64(joinedAt), feedID.Bytes(), string(addr))
	if err != nil {
		return err
	}
	return mustAffectOne(res.RowsAffected())
}

// UpdateParticipantType changes a participant's role.
func (u *UnitOfWork) UpdateParticipantType(ctx context.Context, feedID hush.Bytes16, addr hush.Address, role feed.Role) error {
	res, err := u.q.ExecContext(ctx,
		"UPDATE groupFeedParticipants SET role = ? WHERE feedId = ? AND address = ?",
		role, feedID.Bytes(), string(addr))
	if err != nil {
		return err
	}
	return mustAffectOne(res.RowsAffected())
}

// MarkParticipantLeft records a leave at the given block.
func (u *UnitOfWork) MarkParticipantLeft(ctx context.Context, feedID hush.Bytes16, addr hush.Address, block hush.BlockIndex) error {
	res, err := u.q.ExecContext(ctx,
		"UPDATE groupFeedParticipants SET leftAtBlock = ?, lastLeaveBlock = ? WHERE feedId = ? AND address = ?",
		uint64(block), uint64(block), feedID.Bytes(), string(addr))
	if err != nil {
		return err
	}
	return mustAffectOne(res.RowsAffected())
}

// CreateKeyRotation persists a key generation with its wrapped keys and
// advances currentKeyGeneration, all inside this unit of work.
func (u *UnitOfWork) CreateKeyRotation(ctx context.Context, kg *feed.KeyGeneration) error {
	if _, err := u.q.ExecContext(ctx,
		"INSERT OR IGNORE INTO groupFeedKeyGenerations(feedId, version, validFromBlock, trigger) VALUES (?, ?, ?, ?)",
		kg.FeedID.Bytes(), kg.Version, uint64(kg.ValidFromBlock), kg.Trigger); err != nil {
		return err
	}
	for _, wk := range kg.EncryptedKeys {
		if _, err := u.q.ExecContext(ctx,
			"INSERT OR IGNORE INTO groupFeedEncryptedKeys(feedId, version, memberAddress, ciphertext) VALUES (?, ?, ?, ?)",
			kg.FeedID.Bytes(), kg.Version, string(wk.MemberAddress), wk.Ciphertext); err != nil {
			return err
		}
	}
	return u.UpdateCurrentKeyGeneration(ctx, kg.FeedID, kg.Version)
}

// UpdateCurrentKeyGeneration bumps the group's current generation.
// Monotonic: a lower version never overwrites a higher one.
func (u *UnitOfWork) UpdateCurrentKeyGeneration(ctx context.Context, feedID hush.Bytes16, version uint32) error {
	_, err := u.q.ExecContext(ctx,
		"UPDATE groupFeeds SET currentKeyGeneration = ? WHERE feedId = ? AND currentKeyGeneration <= ?",
		version, feedID.Bytes(), version)
	return err
}

// UpdateFeedBlockIndex advances lastBlockIndex. Monotonic
// non-decreasing; stale writers lose.
func (u *UnitOfWork) UpdateFeedBlockIndex(ctx context.Context, feedID hush.Bytes16, index hush.BlockIndex) error {
	_, err := u.q.ExecContext(ctx,
		"UPDATE feeds SET lastBlockIndex = ? WHERE id = ? AND lastBlockIndex < ?",
		uint64(index), feedID.Bytes(), uint64(index))
	return err
}

// UpdateGroupTitle sets the group title.
func (u *UnitOfWork) UpdateGroupTitle(ctx context.Context, feedID hush.Bytes16, title string) error {
	res, err := u.q.ExecContext(ctx,
		"UPDATE groupFeeds SET title = ? WHERE feedId = ?", title, feedID.Bytes())
	if err != nil {
		return err
	}
	return mustAffectOne(res.RowsAffected())
}

// UpdateGroupDescription sets the group description (may be empty).
func (u *UnitOfWork) UpdateGroupDescription(ctx context.Context, feedID hush.Bytes16, description string) error {
	res, err := u.q.ExecContext(ctx,
		"UPDATE groupFeeds SET description = ? WHERE feedId = ?", description, feedID.Bytes())
	if err != nil {
		return err
	}
	return mustAffectOne(res.RowsAffected())
}

// SoftDeleteGroup marks a group deleted. Rows are never hard-deleted.
func (u *UnitOfWork) SoftDeleteGroup(ctx context.Context, feedID hush.Bytes16) error {
	res, err := u.q.ExecContext(ctx,
		"UPDATE groupFeeds SET isDeleted = 1 WHERE feedId = ?", feedID.Bytes())
	if err != nil {
		return err
	}
	return mustAffectOne(res.RowsAffected())
}

// CreateFeedMessage inserts a message. Replays of the same canonical
// transaction are no-ops by message id.
func (u *UnitOfWork) CreateFeedMessage(ctx context.Context, m *feed.EncryptedMessage) error {
	var replyTo any
	if m.ReplyTo != nil {
		replyTo = m.ReplyTo.Bytes()
	}
	_, err := u.q.ExecContext(ctx,
		"INSERT OR IGNORE INTO feedMessages("+messageColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		m.ID.Bytes(), m.FeedID.Bytes(), m.Ciphertext, string(m.SenderAddress),
		uint64(m.BlockIndex), m.Timestamp, m.KeyGeneration, replyTo, m.AuthorCommitment)
	return err
}

// CreateAttachment inserts an attachment record.
func (u *UnitOfWork) CreateAttachment(ctx context.Context, a *feed.Attachment) error {
	_, err := u.q.ExecContext(ctx,
		`INSERT OR IGNORE INTO attachments(id, feedMessageId, encryptedOriginal, encryptedThumbnail,
			mimeType, fileName, contentHash, originalSize, thumbnailSize, createdAt)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID.Bytes(), a.FeedMessageID.Bytes(), a.EncryptedOriginal, a.EncryptedThumb,
		a.MimeType, a.FileName, a.ContentHash, a.OriginalSize, a.ThumbnailSize, a.CreatedAt)
	return err
}

// UpsertReadPosition records the user's bookmark into a feed.
func (u *UnitOfWork) UpsertReadPosition(ctx context.Context, rp *feed.ReadPosition) error {
	_, err := u.q.ExecContext(ctx,
		"INSERT OR REPLACE INTO feedReadPositions(userAddress, feedId, lastReadBlockIndex) VALUES (?, ?, ?)",
		string(rp.UserAddress), rp.FeedID.Bytes(), uint64(rp.LastReadBlockIndex))
	return err
}

func mustAffectOne(n int64, err error) error {
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.New("no row affected")
	}
	return nil
}
