// Copyright (c) 2025 The Hushnetwork developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package feed

import (
	"github.com/Hushnetwork-social/hush-server-node-sub000/hush"
)

// PayloadKind is the stable identifier a transaction payload is tagged
// with. Dispatch in the pipeline is strict: exactly one content handler
// and one transaction handler per kind.
type PayloadKind uint8

const (
	KindNewGroupFeed PayloadKind = iota + 1
	KindAddMemberToGroupFeed
	KindJoinGroupFeed
	KindLeaveGroupFeed
	KindBanFromGroupFeed
	KindUnbanFromGroupFeed
	KindPromoteToAdmin
	KindBlockMember
	KindUnblockMember
	KindUpdateGroupFeedTitle
	KindUpdateGroupFeedDescription
	KindDeleteGroupFeed
	KindGroupFeedKeyRotation
	KindNewGroupFeedMessage
)

func (k PayloadKind) String() string {
	switch k {
	case KindNewGroupFeed:
		return "NewGroupFeed"
	case KindAddMemberToGroupFeed:
		return "AddMemberToGroupFeed"
	case KindJoinGroupFeed:
		return "JoinGroupFeed"
	case KindLeaveGroupFeed:
		return "LeaveGroupFeed"
	case KindBanFromGroupFeed:
		return "BanFromGroupFeed"
	case KindUnbanFromGroupFeed:
		return "UnbanFromGroupFeed"
	case KindPromoteToAdmin:
		return "PromoteToAdmin"
	case KindBlockMember:
		return "BlockMember"
	case KindUnblockMember:
		return "UnblockMember"
	case KindUpdateGroupFeedTitle:
		return "UpdateGroupFeedTitle"
	case KindUpdateGroupFeedDescription:
		return "UpdateGroupFeedDescription"
	case KindDeleteGroupFeed:
		return "DeleteGroupFeed"
	case KindGroupFeedKeyRotation:
		return "GroupFeedKeyRotation"
	case KindNewGroupFeedMessage:
		return "NewGroupFeedMessage"
	}
	return "unknown"
}

// Payload is the typed body of a transaction.
type Payload interface {
	Kind() PayloadKind
	FeedID() hush.Bytes16
}

// NewGroupParticipant names one initial member of a new group feed.
type NewGroupParticipant struct {
	Address    hush.Address
	EncryptKey hush.EncryptKey
}

// NewGroupFeedPayload creates a group feed with an initial member set.
type NewGroupFeedPayload struct {
	ID           hush.Bytes16
	Title        string
	Description  string
	IsPublic     bool
	Creator      hush.Address
	Participants []NewGroupParticipant
}

func (p *NewGroupFeedPayload) Kind() PayloadKind    { return KindNewGroupFeed }
func (p *NewGroupFeedPayload) FeedID() hush.Bytes16 { return p.ID }

// AddMemberPayload is an admin adding a member.
type AddMemberPayload struct {
	Feed             hush.Bytes16
	Requester        hush.Address
	Member           hush.Address
	MemberEncryptKey hush.EncryptKey
}

func (p *AddMemberPayload) Kind() PayloadKind    { return KindAddMemberToGroupFeed }
func (p *AddMemberPayload) FeedID() hush.Bytes16 { return p.Feed }

// JoinPayload is a self-join into a public group.
type JoinPayload struct {
	Feed   hush.Bytes16
	Member hush.Address
}

func (p *JoinPayload) Kind() PayloadKind    { return KindJoinGroupFeed }
func (p *JoinPayload) FeedID() hush.Bytes16 { return p.Feed }

// LeavePayload is a self-leave.
type LeavePayload struct {
	Feed   hush.Bytes16
	Member hush.Address
}

func (p *LeavePayload) Kind() PayloadKind    { return KindLeaveGroupFeed }
func (p *LeavePayload) FeedID() hush.Bytes16 { return p.Feed }

// MemberActionPayload covers the admin actions that target one member:
// ban, unban, promote, block, unblock. The concrete kind disambiguates.
type MemberActionPayload struct {
	ActionKind PayloadKind
	Feed       hush.Bytes16
	Requester  hush.Address
	Member     hush.Address
}

func (p *MemberActionPayload) Kind() PayloadKind    { return p.ActionKind }
func (p *MemberActionPayload) FeedID() hush.Bytes16 { return p.Feed }

// UpdateTitlePayload updates the group title.
type UpdateTitlePayload struct {
	Feed      hush.Bytes16
	Requester hush.Address
	Title     string
}

func (p *UpdateTitlePayload) Kind() PayloadKind    { return KindUpdateGroupFeedTitle }
func (p *UpdateTitlePayload) FeedID() hush.Bytes16 { return p.Feed }

// UpdateDescriptionPayload updates the group description. The
// description may be empty.
type UpdateDescriptionPayload struct {
	Feed        hush.Bytes16
	Requester   hush.Address
	Description string
}

func (p *UpdateDescriptionPayload) Kind() PayloadKind    { return KindUpdateGroupFeedDescription }
func (p *UpdateDescriptionPayload) FeedID() hush.Bytes16 { return p.Feed }

// DeleteGroupFeedPayload soft-deletes a group.
type DeleteGroupFeedPayload struct {
	Feed      hush.Bytes16
	Requester hush.Address
}

func (p *DeleteGroupFeedPayload) Kind() PayloadKind    { return KindDeleteGroupFeed }
func (p *DeleteGroupFeedPayload) FeedID() hush.Bytes16 { return p.Feed }

// KeyRotationPayload advances the group key generation. It is produced
// by the rotation engine, never by clients directly.
type KeyRotationPayload struct {
	Feed            hush.Bytes16
	NewVersion      uint32
	PreviousVersion uint32
	ValidFromBlock  hush.BlockIndex
	Trigger         RotationTrigger
	EncryptedKeys   []WrappedKey
}

func (p *KeyRotationPayload) Kind() PayloadKind    { return KindGroupFeedKeyRotation }
func (p *KeyRotationPayload) FeedID() hush.Bytes16 { return p.Feed }

// MessagePayload carries an encrypted group message.
type MessagePayload struct {
	Feed             hush.Bytes16
	MessageID        hush.Bytes16
	Ciphertext       []byte
	Sender           hush.Address
	Timestamp        uint64
	KeyGeneration    uint32
	ReplyTo          *hush.Bytes16
	AuthorCommitment []byte
}

func (p *MessagePayload) Kind() PayloadKind    { return KindNewGroupFeedMessage }
func (p *MessagePayload) FeedID() hush.Bytes16 { return p.Feed }
