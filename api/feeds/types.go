// Copyright (c) 2025 The Hushnetwork developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package feeds

// Request and response shapes of the feeds surface. Field names are
// part of the wire contract.

type GetFeedForAddressRequest struct {
	ProfilePublicKey string `json:"profilePublicKey"`
	BlockIndex       uint64 `json:"blockIndex"`
}

type FeedSummary struct {
	FeedID             string `json:"feedId"`
	FeedType           uint8  `json:"feedType"`
	FeedTitle          string `json:"feedTitle"`
	BlockIndex         uint64 `json:"blockIndex"`
	LastReadBlockIndex uint64 `json:"lastReadBlockIndex"`
}

type GetFeedForAddressResponse struct {
	Feeds []FeedSummary `json:"feeds"`
}

type MessageView struct {
	FeedMessageID    string `json:"feedMessageId"`
	FeedID           string `json:"feedId"`
	MessageContent   []byte `json:"messageContent"`
	IssuerName       string `json:"issuerName"`
	IssuerAddress    string `json:"issuerAddress"`
	Timestamp        uint64 `json:"timestamp"`
	BlockIndex       uint64 `json:"blockIndex"`
	KeyGeneration    uint32 `json:"keyGeneration"`
	ReplyToMessageID string `json:"replyToMessageId,omitempty"`
}

type GetMessageByIDResponse struct {
	Success bool         `json:"success"`
	Message *MessageView `json:"message,omitempty"`
	Error   string       `json:"error,omitempty"`
}

type GetFeedMessagesByIDRequest struct {
	FeedID           string  `json:"feedId"`
	UserAddress      string  `json:"userAddress"`
	BeforeBlockIndex *uint64 `json:"beforeBlockIndex,omitempty"`
	Limit            *int    `json:"limit,omitempty"`
}

type GetFeedMessagesByIDResponse struct {
	Messages         []MessageView `json:"messages"`
	HasMoreMessages  bool          `json:"hasMoreMessages"`
	OldestBlockIndex uint64        `json:"oldestBlockIndex"`
	NewestBlockIndex uint64        `json:"newestBlockIndex"`
}

type GetKeyGenerationsRequest struct {
	FeedID            string `json:"feedId"`
	UserPublicAddress string `json:"userPublicAddress"`
}

type KeyGenerationView struct {
	KeyGeneration uint32 `json:"keyGeneration"`
	EncryptedKey  []byte `json:"encryptedKey"`
}

type GetKeyGenerationsResponse struct {
	KeyGenerations []KeyGenerationView `json:"keyGenerations"`
}

type AddMemberToGroupFeedRequest struct {
	FeedID                    string `json:"feedId"`
	AdminPublicAddress        string `json:"adminPublicAddress"`
	NewMemberPublicAddress    string `json:"newMemberPublicAddress"`
	NewMemberPublicEncryptKey string `json:"newMemberPublicEncryptKey"`
}

type MemberActionRequest struct {
	FeedID              string `json:"feedId"`
	AdminPublicAddress  string `json:"adminPublicAddress"`
	MemberPublicAddress string `json:"memberPublicAddress"`
}

type SelfActionRequest struct {
	FeedID        string `json:"feedId"`
	PublicAddress string `json:"publicAddress"`
}

type UpdateTitleRequest struct {
	FeedID             string `json:"feedId"`
	AdminPublicAddress string `json:"adminPublicAddress"`
	Title              string `json:"title"`
}

type UpdateDescriptionRequest struct {
	FeedID             string `json:"feedId"`
	AdminPublicAddress string `json:"adminPublicAddress"`
	Description        string `json:"description"`
}

type MarkFeedAsReadRequest struct {
	FeedID      string `json:"feedId"`
	UserAddress string `json:"userAddress"`
	BlockIndex  uint64 `json:"blockIndex"`
}

// MutationResponse is the uniform answer of all mutation endpoints.
// Success guarantees durability; failure guarantees no partial effect.
type MutationResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
