// Copyright (c) 2025 The Hushnetwork developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package feed

import (
	"github.com/Hushnetwork-social/hush-server-node-sub000/hush"
)

// Kind tags the three conversation surfaces.
type Kind uint8

const (
	KindPersonal Kind = 1
	KindChat     Kind = 2
	KindGroup    Kind = 3
)

func (k Kind) String() string {
	switch k {
	case KindPersonal:
		return "personal"
	case KindChat:
		return "chat"
	case KindGroup:
		return "group"
	}
	return "unknown"
}

// Role of a group feed participant.
type Role uint8

const (
	RoleAdmin   Role = 1
	RoleMember  Role = 2
	RoleBlocked Role = 3
	RoleBanned  Role = 4
)

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleMember:
		return "member"
	case RoleBlocked:
		return "blocked"
	case RoleBanned:
		return "banned"
	}
	return "unknown"
}

// RotationTrigger is the causal reason for a new key generation.
type RotationTrigger uint8

const (
	TriggerJoin RotationTrigger = iota + 1
	TriggerLeave
	TriggerBan
	TriggerUnban
	TriggerManual
)

func (t RotationTrigger) String() string {
	switch t {
	case TriggerJoin:
		return "join"
	case TriggerLeave:
		return "leave"
	case TriggerBan:
		return "ban"
	case TriggerUnban:
		return "unban"
	case TriggerManual:
		return "manual"
	}
	return "unknown"
}

// Feed is the shared envelope of all conversation surfaces.
// LastBlockIndex is the latest block that touched the feed and governs
// client visible ordering and new-activity detection.
type Feed struct {
	ID             hush.Bytes16
	Kind           Kind
	CreatedAtBlock hush.BlockIndex
	LastBlockIndex hush.BlockIndex
}

// GroupFeed extends Feed with group governance state.
type GroupFeed struct {
	Feed
	Title                string
	Description          string
	IsPublic             bool
	CurrentKeyGeneration uint32
	IsDeleted            bool
}

// Participant is one identity's membership row in a group feed.
// (FeedID, Address) identifies at most one row; rejoin reuses it.
type Participant struct {
	FeedID         hush.Bytes16
	Address        hush.Address
	Role           Role
	JoinedAtBlock  hush.BlockIndex
	LeftAtBlock    *hush.BlockIndex
	LastLeaveBlock *hush.BlockIndex
}

// Active reports whether the participant currently belongs to the feed.
// Banned members have not left, but they are excluded from the key set.
func (p *Participant) Active() bool {
	return p.LeftAtBlock == nil
}

// InKeySet reports whether the participant receives wrapped keys.
func (p *Participant) InKeySet() bool {
	return p.Active() && p.Role != RoleBanned
}

// WrappedKey is the group symmetric key encrypted for one member under
// that member's public encryption key.
type WrappedKey struct {
	FeedID        hush.Bytes16
	Version       uint32
	MemberAddress hush.Address
	Ciphertext    []byte
}

// KeyGeneration is one version of a group's symmetric key, together
// with the per-member wrapped copies valid from ValidFromBlock on.
type KeyGeneration struct {
	FeedID         hush.Bytes16
	Version        uint32
	ValidFromBlock hush.BlockIndex
	Trigger        RotationTrigger
	EncryptedKeys  []WrappedKey
}

// EncryptedMessage is a message row. The ciphertext is opaque to the
// node; only clients holding the matching generation can open it.
type EncryptedMessage struct {
	ID               hush.Bytes16
	FeedID           hush.Bytes16
	Ciphertext       []byte
	SenderAddress    hush.Address
	BlockIndex       hush.BlockIndex
	Timestamp        uint64
	KeyGeneration    uint32
	ReplyTo          *hush.Bytes16
	AuthorCommitment []byte // nil, or exactly 32 bytes
}

// Attachment is the metadata row of an encrypted attachment; the bytes
// themselves live in the attachment store.
type Attachment struct {
	ID                hush.Bytes16
	FeedMessageID     hush.Bytes16
	EncryptedOriginal []byte
	EncryptedThumb    []byte
	MimeType          string
	FileName          string
	ContentHash       []byte
	OriginalSize      uint64
	ThumbnailSize     uint64
	CreatedAt         uint64
}

// ReadPosition is a per-user bookmark into a feed.
type ReadPosition struct {
	UserAddress        hush.Address
	FeedID             hush.Bytes16
	LastReadBlockIndex hush.BlockIndex
}
