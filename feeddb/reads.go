// Copyright (c) 2025 The Hushnetwork developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package feeddb

import (
	"context"
	"database/sql"

	"github.com/Hushnetwork-social/hush-server-node-sub000/feed"
	"github.com/Hushnetwork-social/hush-server-node-sub000/hush"
)

// MessagePage is one window of a feed's message history, newest first.
type MessagePage struct {
	Messages    []*feed.EncryptedMessage
	HasMore     bool
	OldestBlock hush.BlockIndex
	NewestBlock hush.BlockIndex
}

// GetFeed loads the shared feed envelope, or nil if absent.
func (r *Reader) GetFeed(ctx context.Context, id hush.Bytes16) (*feed.Feed, error) {
	row := r.q.QueryRowContext(ctx,
		"SELECT id, kind, createdAtBlock, lastBlockIndex FROM feeds WHERE id = ?", id.Bytes())

	var (
		rawID   []byte
		kind    uint8
		created uint64
		last    uint64
	)
	if err := row.Scan(&rawID, &kind, &created, &last); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &feed.Feed{
		ID:             hush.BytesToBytes16(rawID),
		Kind:           feed.Kind(kind),
		CreatedAtBlock: hush.BlockIndex(created),
		LastBlockIndex: hush.BlockIndex(last),
	}, nil
}

// GetGroupFeed loads a group feed with its envelope, or nil if absent.
func (r *Reader) GetGroupFeed(ctx context.Context, id hush.Bytes16) (*feed.GroupFeed, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT f.id, f.kind, f.createdAtBlock, f.lastBlockIndex,
			g.title, g.description, g.isPublic, g.currentKeyGeneration, g.isDeleted
		FROM feeds f JOIN groupFeeds g ON g.feedId = f.id WHERE f.id = ?`, id.Bytes())

	var (
		rawID     []byte
		kind      uint8
		created   uint64
		last      uint64
		title     string
		desc      string
		isPublic  bool
		curGen    uint32
		isDeleted bool
	)
	if err := row.Scan(&rawID, &kind, &created, &last, &title, &desc, &isPublic, &curGen, &isDeleted); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &feed.GroupFeed{
		Feed: feed.Feed{
			ID:             hush.BytesToBytes16(rawID),
			Kind:           feed.Kind(kind),
			CreatedAtBlock: hush.BlockIndex(created),
			LastBlockIndex: hush.BlockIndex(last),
		},
		Title:                title,
		Description:          desc,
		IsPublic:             isPublic,
		CurrentKeyGeneration: curGen,
		IsDeleted:            isDeleted,
	}, nil
}

// GetMaxKeyGeneration returns the highest persisted key generation
// version of a feed; ok is false when no generation exists.
func (r *Reader) GetMaxKeyGeneration(ctx context.Context, feedID hush.Bytes16) (version uint32, ok bool, err error) {
	row := r.q.QueryRowContext(ctx,
		"SELECT MAX(version) FROM groupFeedKeyGenerations WHERE feedId = ?", feedID.Bytes())
	var v sql.NullInt64
	if err := row.Scan(&v); err != nil {
		return 0, false, err
	}
	if !v.Valid {
		return 0, false, nil
	}
	return uint32(v.Int64), true, nil
}

// GetActiveGroupMemberAddresses returns the addresses that belong to
// the feed's key set: present, not left, not banned.
func (r *Reader) GetActiveGroupMemberAddresses(ctx context.Context, feedID hush.Bytes16) ([]hush.Address, error) {
	rows, err := r.q.QueryContext(ctx,
		"SELECT address FROM groupFeedParticipants WHERE feedId = ? AND leftAtBlock IS NULL AND role != ? ORDER BY address",
		feedID.Bytes(), feed.RoleBanned)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var addrs []hush.Address
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, err
		}
		addrs = append(addrs, hush.Address(a))
	}
	return addrs, rows.Err()
}

func scanParticipant(rows interface{ Scan(...any) error }) (*feed.Participant, error) {
	var (
		rawFeed  []byte
		address  string
		role     uint8
		joinedAt uint64
		leftAt   sql.NullInt64
		lastLeft sql.NullInt64
	)
	if err := rows.Scan(&rawFeed, &address, &role, &joinedAt, &leftAt, &lastLeft); err != nil {
		return nil, err
	}
	p := &feed.Participant{
		FeedID:        hush.BytesToBytes16(rawFeed),
		Address:       hush.Address(address),
		Role:          feed.Role(role),
		JoinedAtBlock: hush.BlockIndex(joinedAt),
	}
	if leftAt.Valid {
		b := hush.BlockIndex(leftAt.Int64)
		p.LeftAtBlock = &b
	}
	if lastLeft.Valid {
		b := hush.BlockIndex(lastLeft.Int64)
		p.LastLeaveBlock = &b
	}
	return p, nil
}

const participantColumns = "feedId, address, role, joinedAtBlock, leftAtBlock, lastLeaveBlock"

// GetParticipantWithHistory loads the participation row of an address,
// including left/rejoin history, or nil when the address never joined.
func (r *Reader) GetParticipantWithHistory(ctx context.Context, feedID hush.Bytes16, addr hush.Address) (*feed.Participant, error) {
	row := r.q.QueryRowContext(ctx,
		"SELECT "+participantColumns+" FROM groupFeedParticipants WHERE feedId = ? AND address = ?",
		feedID.Bytes(), string(addr))
	p, err := scanParticipant(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

// GetParticipants returns all participation rows of a feed.
func (r *Reader) GetParticipants(ctx context.Context, feedID hush.Bytes16) ([]*feed.Participant, error) {
	rows, err := r.q.QueryContext(ctx,
		"SELECT "+participantColumns+" FROM groupFeedParticipants WHERE feedId = ? ORDER BY address", feedID.Bytes())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*feed.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// IsAdmin reports whether addr is an active admin of the feed.
func (r *Reader) IsAdmin(ctx context.Context, feedID hush.Bytes16, addr hush.Address) (bool, error) {
	row := r.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM groupFeedParticipants WHERE feedId = ? AND address = ? AND role = ? AND leftAtBlock IS NULL",
		feedID.Bytes(), string(addr), feed.RoleAdmin)
	var n int
	if err := row.Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// CountActiveAdmins counts the feed's active admins.
func (r *Reader) CountActiveAdmins(ctx context.Context, feedID hush.Bytes16) (int, error) {
	row := r.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM groupFeedParticipants WHERE feedId = ? AND role = ? AND leftAtBlock IS NULL",
		feedID.Bytes(), feed.RoleAdmin)
	var n int
	err := row.Scan(&n)
	return n, err
}

// IsUserParticipantOfFeed reports whether addr is an active participant
// (any role but banned counts for read access; banned do not).
func (r *Reader) IsUserParticipantOfFeed(ctx context.Context, feedID hush.Bytes16, addr hush.Address) (bool, error) {
	row := r.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM groupFeedParticipants WHERE feedId = ? AND address = ? AND leftAtBlock IS NULL AND role != ?",
		feedID.Bytes(), string(addr), feed.RoleBanned)
	var n int
	if err := row.Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetFeedsForAddress returns every feed the address actively
// participates in, any kind, joined with the feed envelope.
// Soft-deleted groups are excluded.
func (r *Reader) GetFeedsForAddress(ctx context.Context, addr hush.Address) ([]*feed.Feed, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT f.id, f.kind, f.createdAtBlock, f.lastBlockIndex
		FROM feeds f
		JOIN groupFeedParticipants p ON p.feedId = f.id
		LEFT JOIN groupFeeds g ON g.feedId = f.id
		WHERE p.address = ? AND p.leftAtBlock IS NULL AND p.role != ?
			AND (g.isDeleted IS NULL OR g.isDeleted = 0)
		ORDER BY f.lastBlockIndex DESC`,
		string(addr), feed.RoleBanned)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var feeds []*feed.Feed
	for rows.Next() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		var (
			rawID   []byte
			kind    uint8
			created uint64
			last    uint64
		)
		if err := rows.Scan(&rawID, &kind, &created, &last); err != nil {
			return nil, err
		}
		feeds = append(feeds, &feed.Feed{
			ID:             hush.BytesToBytes16(rawID),
			Kind:           feed.Kind(kind),
			CreatedAtBlock: hush.BlockIndex(created),
			LastBlockIndex: hush.BlockIndex(last),
		})
	}
	return feeds, rows.Err()
}

// GetGroupFeedsForAddress returns the group feeds the address actively
// participates in, excluding soft-deleted groups.
func (r *Reader) GetGroupFeedsForAddress(ctx context.Context, addr hush.Address) ([]*feed.GroupFeed, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT f.id, f.kind, f.createdAtBlock, f.lastBlockIndex,
			g.title, g.description, g.isPublic, g.currentKeyGeneration, g.isDeleted
		FROM feeds f
		JOIN groupFeeds g ON g.feedId = f.id
		JOIN groupFeedParticipants p ON p.feedId = f.id
		WHERE p.address = ? AND p.leftAtBlock IS NULL AND p.role != ? AND g.isDeleted = 0
		ORDER BY f.lastBlockIndex DESC`,
		string(addr), feed.RoleBanned)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var feeds []*feed.GroupFeed
	for rows.Next() {
		var (
			rawID     []byte
			kind      uint8
			created   uint64
			last      uint64
			title     string
			desc      string
			isPublic  bool
			curGen    uint32
			isDeleted bool
		)
		if err := rows.Scan(&rawID, &kind, &created, &last, &title, &desc, &isPublic, &curGen, &isDeleted); err != nil {
			return nil, err
		}
		feeds = append(feeds, &feed.GroupFeed{
			Feed: feed.Feed{
				ID:             hush.BytesToBytes16(rawID),
				Kind:           feed.Kind(kind),
				CreatedAtBlock: hush.BlockIndex(created),
				LastBlockIndex: hush.BlockIndex(last),
			},
			Title:                title,
			Description:          desc,
			IsPublic:             isPublic,
			CurrentKeyGeneration: curGen,
			IsDeleted:            isDeleted,
		})
	}
	return feeds, rows.Err()
}

func scanMessage(rows interface{ Scan(...any) error }) (*feed.EncryptedMessage, error) {
	var (
		rawID      []byte
		rawFeed    []byte
		ciphertext []byte
		sender     string
		blockIndex uint64
		timestamp  uint64
		keyGen     uint32
		replyTo    []byte
		commitment []byte
	)
	if err := rows.Scan(&rawID, &rawFeed, &ciphertext, &sender, &blockIndex, &timestamp, &keyGen, &replyTo, &commitment); err != nil {
		return nil, err
	}
	msg := &feed.EncryptedMessage{
		ID:               hush.BytesToBytes16(rawID),
		FeedID:           hush.BytesToBytes16(rawFeed),
		Ciphertext:       ciphertext,
		SenderAddress:    hush.Address(sender),
		BlockIndex:       hush.BlockIndex(blockIndex),
		Timestamp:        timestamp,
		KeyGeneration:    keyGen,
		AuthorCommitment: commitment,
	}
	if len(replyTo) > 0 {
		id := hush.BytesToBytes16(replyTo)
		msg.ReplyTo = &id
	}
	return msg, nil
}

const messageColumns = "id, feedId, ciphertext, sender, blockIndex, timestamp, keyGeneration, replyTo, authorCommitment"

// GetMessageByID loads one message, or nil if absent.
func (r *Reader) GetMessageByID(ctx context.Context, id hush.Bytes16) (*feed.EncryptedMessage, error) {
	row := r.q.QueryRowContext(ctx,
		"SELECT "+messageColumns+" FROM feedMessages WHERE id = ?", id.Bytes())
	msg, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return msg, err
}

// GetPaginatedMessages returns one window of a feed's history, newest
// first. With fetchLatest the window ends at the feed head; otherwise
// it holds messages strictly before beforeBlock. sinceBlock floors the
// window in both cases. limit must be positive.
func (r *Reader) GetPaginatedMessages(
	ctx context.Context,
	feedID hush.Bytes16,
	sinceBlock hush.BlockIndex,
	limit int,
	fetchLatest bool,
	beforeBlock *hush.BlockIndex,
) (*MessagePage, error) {
	stmt := "SELECT " + messageColumns + " FROM feedMessages WHERE feedId = ? AND blockIndex >= ?"
	args := []any{feedID.Bytes(), uint64(sinceBlock)}
	if !fetchLatest && beforeBlock != nil {
		stmt += " AND blockIndex < ?"
		args = append(args, uint64(*beforeBlock))
	}
	// one extra row decides hasMore
	stmt += " ORDER BY blockIndex DESC, timestamp DESC LIMIT ?"
	args = append(args, limit+1)

	rows, err := r.q.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	page := &MessagePage{}
	for rows.Next() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		page.Messages = append(page.Messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(page.Messages) > limit {
		page.Messages = page.Messages[:limit]
		page.HasMore = true
	}
	if n := len(page.Messages); n > 0 {
		page.NewestBlock = page.Messages[0].BlockIndex
		page.OldestBlock = page.Messages[n-1].BlockIndex
	}
	return page, nil
}

// GetKeyGenerationValidFrom returns the block a given key generation
// became valid at. ok is false when the generation does not exist.
func (r *Reader) GetKeyGenerationValidFrom(ctx context.Context, feedID hush.Bytes16, version uint32) (hush.BlockIndex, bool, error) {
	row := r.q.QueryRowContext(ctx,
		"SELECT validFromBlock FROM groupFeedKeyGenerations WHERE feedId = ? AND version = ?",
		feedID.Bytes(), version)
	var validFrom uint64
	if err := row.Scan(&validFrom); err != nil {
		if err == sql.ErrNoRows {
			return 0, false, nil
		}
		return 0, false, err
	}
	return hush.BlockIndex(validFrom), true, nil
}

// GetAllKeyGenerations returns every key generation of a feed with its
// wrapped keys, ascending by version.
func (r *Reader) GetAllKeyGenerations(ctx context.Context, feedID hush.Bytes16) ([]*feed.KeyGeneration, error) {
	rows, err := r.q.QueryContext(ctx,
		"SELECT version, validFromBlock, trigger FROM groupFeedKeyGenerations WHERE feedId = ? ORDER BY version",
		feedID.Bytes())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var gens []*feed.KeyGeneration
	byVersion := make(map[uint32]*feed.KeyGeneration)
	for rows.Next() {
		var (
			version   uint32
			validFrom uint64
			trigger   uint8
		)
		if err := rows.Scan(&version, &validFrom, &trigger); err != nil {
			return nil, err
		}
		kg := &feed.KeyGeneration{
			FeedID:         feedID,
			Version:        version,
			ValidFromBlock: hush.BlockIndex(validFrom),
			Trigger:        feed.RotationTrigger(trigger),
		}
		gens = append(gens, kg)
		byVersion[version] = kg
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	keyRows, err := r.q.QueryContext(ctx,
		"SELECT version, memberAddress, ciphertext FROM groupFeedEncryptedKeys WHERE feedId = ? ORDER BY version, memberAddress",
		feedID.Bytes())
	if err != nil {
		return nil, err
	}
	defer keyRows.Close()

	for keyRows.Next() {
		var (
			version    uint32
			member     string
			ciphertext []byte
		)
		if err := keyRows.Scan(&version, &member, &ciphertext); err != nil {
			return nil, err
		}
		if kg, ok := byVersion[version]; ok {
			kg.EncryptedKeys = append(kg.EncryptedKeys, feed.WrappedKey{
				FeedID:        feedID,
				Version:       version,
				MemberAddress: hush.Address(member),
				Ciphertext:    ciphertext,
			})
		}
	}
	return gens, keyRows.Err()
}

// GetKeyGenerationsForMember returns only the generations the member
// holds a wrapped key for, ascending by version.
func (r *Reader) GetKeyGenerationsForMember(ctx context.Context, feedID hush.Bytes16, addr hush.Address) ([]*feed.WrappedKey, error) {
	rows, err := r.q.QueryContext(ctx,
		"SELECT version, ciphertext FROM groupFeedEncryptedKeys WHERE feedId = ? AND memberAddress = ? ORDER BY version",
		feedID.Bytes(), string(addr))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []*feed.WrappedKey
	for rows.Next() {
		var (
			version    uint32
			ciphertext []byte
		)
		if err := rows.Scan(&version, &ciphertext); err != nil {
			return nil, err
		}
		keys = append(keys, &feed.WrappedKey{
			FeedID:        feedID,
			Version:       version,
			MemberAddress: addr,
			Ciphertext:    ciphertext,
		})
	}
	return keys, rows.Err()
}

// GetReadPositionsForUser returns the user's bookmarks keyed by feed.
func (r *Reader) GetReadPositionsForUser(ctx context.Context, addr hush.Address) (map[hush.Bytes16]hush.BlockIndex, error) {
	rows, err := r.q.QueryContext(ctx,
		"SELECT feedId, lastReadBlockIndex FROM feedReadPositions WHERE userAddress = ?", string(addr))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[hush.Bytes16]hush.BlockIndex)
	for rows.Next() {
		var (
			rawFeed []byte
			index   uint64
		)
		if err := rows.Scan(&rawFeed, &index); err != nil {
			return nil, err
		}
		out[hush.BytesToBytes16(rawFeed)] = hush.BlockIndex(index)
	}
	return out, rows.Err()
}

// GetAllLastBlockIndexes returns lastBlockIndex for the given feeds.
func (r *Reader) GetAllLastBlockIndexes(ctx context.Context, feedIDs []hush.Bytes16) (map[hush.Bytes16]hush.BlockIndex, error) {
	out := make(map[hush.Bytes16]hush.BlockIndex, len(feedIDs))
	for _, id := range feedIDs {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		row := r.q.QueryRowContext(ctx, "SELECT lastBlockIndex FROM feeds WHERE id = ?", id.Bytes())
		var index uint64
		if err := row.Scan(&index); err != nil {
			if err == sql.ErrNoRows {
				continue
			}
			return nil, err
		}
		out[id] = hush.BlockIndex(index)
	}
	return out, nil
}

// GetAttachmentByID loads one attachment record, or nil if absent.
func (r *Reader) GetAttachmentByID(ctx context.Context, id hush.Bytes16) (*feed.Attachment, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT id, feedMessageId, encryptedOriginal, encryptedThumbnail, mimeType, fileName,
			contentHash, originalSize, thumbnailSize, createdAt
		FROM attachments WHERE id = ?`, id.Bytes())

	var (
		rawID     []byte
		rawMsg    []byte
		original  []byte
		thumbnail []byte
		mimeType  string
		fileName  string
		hash      []byte
		origSize  uint64
		thumbSize uint64
		createdAt uint64
	)
	if err := row.Scan(&rawID, &rawMsg, &original, &thumbnail, &mimeType, &fileName, &hash, &origSize, &thumbSize, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &feed.Attachment{
		ID:                hush.BytesToBytes16(rawID),
		FeedMessageID:     hush.BytesToBytes16(rawMsg),
		EncryptedOriginal: original,
		EncryptedThumb:    thumbnail,
		MimeType:          mimeType,
		FileName:          fileName,
		ContentHash:       hash,
		OriginalSize:      origSize,
		ThumbnailSize:     thumbSize,
		CreatedAt:         createdAt,
	}, nil
}
