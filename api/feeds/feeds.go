// Copyright (c) 2025 The Hushnetwork developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package feeds

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/Hushnetwork-social/hush-server-node-sub000/api/utils"
	"github.com/Hushnetwork-social/hush-server-node-sub000/feed"
	"github.com/Hushnetwork-social/hush-server-node-sub000/feeddb"
	"github.com/Hushnetwork-social/hush-server-node-sub000/feedstore"
	"github.com/Hushnetwork-social/hush-server-node-sub000/hush"
	"github.com/Hushnetwork-social/hush-server-node-sub000/identity"
	"github.com/Hushnetwork-social/hush-server-node-sub000/log"
	"github.com/Hushnetwork-social/hush-server-node-sub000/processor"
)

var logger = log.WithContext("pkg", "feeds-api")

const defaultMessageLimit = 100

// Feeds exposes the conversation surface over HTTP. Reads go through
// the overlayed store; mutations go through the transaction pipeline
// at the current chain tip.
type Feeds struct {
	store   *feedstore.Store
	proc    *processor.Processor
	chain   identity.BlockchainCache
	aliases identity.AliasProvider
	limit   int
}

// New creates the feeds API. maxMessages caps one pagination response;
// zero means the default of 100.
func New(store *feedstore.Store, proc *processor.Processor, chain identity.BlockchainCache, aliases identity.AliasProvider, maxMessages int) *Feeds {
	if maxMessages <= 0 {
		maxMessages = defaultMessageLimit
	}
	return &Feeds{
		store:   store,
		proc:    proc,
		chain:   chain,
		aliases: aliases,
		limit:   maxMessages,
	}
}

func (f *Feeds) handleGetFeedsForAddress(w http.ResponseWriter, r *http.Request) error {
	var req GetFeedForAddressRequest
	if err := utils.ParseJSON(r.Body, &req); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	addr := hush.Address(req.ProfilePublicKey)
	if addr.IsBlank() {
		return utils.BadRequest(errors.New("profilePublicKey: blank"))
	}
	ctx := r.Context()
	reader := f.store.CreateReadOnly()

	all, err := reader.GetFeedsForAddress(ctx, addr)
	if err != nil {
		return err
	}
	groups, err := reader.GetGroupFeedsForAddress(ctx, addr)
	if err != nil {
		return err
	}
	titles := make(map[hush.Bytes16]string, len(groups))
	for _, g := range groups {
		titles[g.ID] = g.Title
	}

	ids := make([]hush.Bytes16, 0, len(all))
	for _, fd := range all {
		ids = append(ids, fd.ID)
	}
	overlay, err := f.store.LastBlockIndexes(ctx, ids)
	if err != nil {
		return err
	}
	readPos := f.store.ReadPositions(ctx, addr, ids)

	out := GetFeedForAddressResponse{Feeds: []FeedSummary{}}
	for _, fd := range all {
		last := fd.LastBlockIndex
		if v, ok := overlay[fd.ID]; ok && v > last {
			last = v
		}
		if last < hush.BlockIndex(req.BlockIndex) {
			continue
		}
		title, err := f.displayTitle(ctx, reader, fd, addr, titles)
		if err != nil {
			return err
		}
		out.Feeds = append(out.Feeds, FeedSummary{
			FeedID:             fd.ID.String(),
			FeedType:           uint8(fd.Kind),
			FeedTitle:          title,
			BlockIndex:         uint64(last),
			LastReadBlockIndex: uint64(readPos[fd.ID]),
		})
	}
	return utils.WriteJSON(w, out)
}

// displayTitle renders the per-viewer title of a feed: the viewer's own
// alias for personal feeds, the counterpart's alias for chats and the
// stored title for groups.
func (f *Feeds) displayTitle(ctx context.Context, reader *feeddb.Reader, fd *feed.Feed, viewer hush.Address, groupTitles map[hush.Bytes16]string) (string, error) {
	switch fd.Kind {
	case feed.KindPersonal:
		alias, err := f.aliases.Alias(ctx, viewer)
		if err != nil {
			return "", err
		}
		return alias + " (YOU)", nil
	case feed.KindChat:
		parts, err := reader.GetParticipants(ctx, fd.ID)
		if err != nil {
			return "", err
		}
		for _, p := range parts {
			if p.Address != viewer && p.Active() {
				return f.aliases.Alias(ctx, p.Address)
			}
		}
		// a chat with no live counterpart renders as the viewer alone
		return f.aliases.Alias(ctx, viewer)
	case feed.KindGroup:
		return groupTitles[fd.ID], nil
	default:
		logger.Warn("feed with unrecognized kind", "feed", fd.ID, "kind", fd.Kind)
		return "", nil
	}
}

func (f *Feeds) handleGetMessageByID(w http.ResponseWriter, r *http.Request) error {
	feedIDStr := mux.Vars(r)["feedId"]
	msgIDStr := mux.Vars(r)["messageId"]

	notFound := func() error {
		w.WriteHeader(http.StatusNotFound)
		return utils.WriteJSON(w, GetMessageByIDResponse{Success: false, Error: "message not found"})
	}

	feedID, err := hush.ParseBytes16(feedIDStr)
	if err != nil {
		return notFound()
	}
	msgID, err := hush.ParseBytes16(msgIDStr)
	if err != nil {
		return notFound()
	}
	m, err := f.store.CreateReadOnly().GetMessageByID(r.Context(), msgID)
	if err != nil {
		return err
	}
	// a message reached through the wrong feed does not exist
	if m == nil || m.FeedID != feedID {
		return notFound()
	}
	view, err := f.messageView(r.Context(), m)
	if err != nil {
		return err
	}
	return utils.WriteJSON(w, GetMessageByIDResponse{Success: true, Message: view})
}

func (f *Feeds) messageView(ctx context.Context, m *feed.EncryptedMessage) (*MessageView, error) {
	alias, err := f.aliases.Alias(ctx, m.SenderAddress)
	if err != nil {
		return nil, err
	}
	v := &MessageView{
		FeedMessageID:  m.ID.String(),
		FeedID:         m.FeedID.String(),
		MessageContent: m.Ciphertext,
		IssuerName:     alias,
		IssuerAddress:  string(m.SenderAddress),
		Timestamp:      m.Timestamp,
		BlockIndex:     uint64(m.BlockIndex),
		KeyGeneration:  m.KeyGeneration,
	}
	if m.ReplyTo != nil {
		v.ReplyToMessageID = m.ReplyTo.String()
	}
	return v, nil
}

func (f *Feeds) handleGetFeedMessagesByID(w http.ResponseWriter, r *http.Request) error {
	var req GetFeedMessagesByIDRequest
	if err := utils.ParseJSON(r.Body, &req); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	feedID, err := hush.ParseBytes16(req.FeedID)
	if err != nil {
		return utils.BadRequest(errors.WithMessage(err, "feedId"))
	}
	addr := hush.Address(req.UserAddress)
	if addr.IsBlank() {
		return utils.BadRequest(errors.New("userAddress: blank"))
	}
	ctx := r.Context()

	// non-participants get an empty page, not an error, and no
	// message rows are touched on their behalf
	member, err := f.store.CreateReadOnly().IsUserParticipantOfFeed(ctx, feedID, addr)
	if err != nil {
		return err
	}
	if !member {
		return utils.WriteJSON(w, GetFeedMessagesByIDResponse{Messages: []MessageView{}})
	}

	limit := f.limit
	if req.Limit != nil && *req.Limit > 0 && *req.Limit < limit {
		limit = *req.Limit
	}
	var before *hush.BlockIndex
	fetchLatest := true
	if req.BeforeBlockIndex != nil {
		b := hush.BlockIndex(*req.BeforeBlockIndex)
		before = &b
		fetchLatest = false
	}
	page, err := f.store.PaginatedMessages(ctx, feedID, 0, limit, fetchLatest, before)
	if err != nil {
		return err
	}

	out := GetFeedMessagesByIDResponse{
		Messages:         make([]MessageView, 0, len(page.Messages)),
		HasMoreMessages:  page.HasMore,
		OldestBlockIndex: uint64(page.OldestBlock),
		NewestBlockIndex: uint64(page.NewestBlock),
	}
	for _, m := range page.Messages {
		view, err := f.messageView(ctx, m)
		if err != nil {
			return err
		}
		out.Messages = append(out.Messages, *view)
	}
	return utils.WriteJSON(w, out)
}

func (f *Feeds) handleGetKeyGenerations(w http.ResponseWriter, r *http.Request) error {
	var req GetKeyGenerationsRequest
	if err := utils.ParseJSON(r.Body, &req); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	feedID, err := hush.ParseBytes16(req.FeedID)
	if err != nil {
		return utils.BadRequest(errors.WithMessage(err, "feedId"))
	}
	addr := hush.Address(req.UserPublicAddress)
	if addr.IsBlank() {
		return utils.BadRequest(errors.New("userPublicAddress: blank"))
	}
	keys, err := f.store.KeyGenerationsForMember(r.Context(), feedID, addr)
	if err != nil {
		return err
	}
	out := GetKeyGenerationsResponse{KeyGenerations: make([]KeyGenerationView, 0, len(keys))}
	for _, k := range keys {
		out.KeyGenerations = append(out.KeyGenerations, KeyGenerationView{
			KeyGeneration: k.Version,
			EncryptedKey:  k.Ciphertext,
		})
	}
	return utils.WriteJSON(w, out)
}

// execute submits a mutation at the current chain tip and folds the
// outcome into the uniform success/message shape. Rejections are the
// client's to read; transient failures stay opaque.
func (f *Feeds) execute(w http.ResponseWriter, r *http.Request, signer hush.Address, payload feed.Payload) error {
	tx := feed.NewTransaction(signer, f.chain.LastBlockIndex(), payload)
	if err := f.proc.Execute(r.Context(), tx); err != nil {
		if processor.IsReject(err) {
			return utils.WriteJSON(w, MutationResponse{Success: false, Message: err.Error()})
		}
		return err
	}
	return utils.WriteJSON(w, MutationResponse{Success: true, Message: "ok"})
}

func (f *Feeds) handleAddMember(w http.ResponseWriter, r *http.Request) error {
	var req AddMemberToGroupFeedRequest
	if err := utils.ParseJSON(r.Body, &req); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	feedID, err := hush.ParseBytes16(req.FeedID)
	if err != nil {
		return utils.BadRequest(errors.WithMessage(err, "feedId"))
	}
	admin := hush.Address(req.AdminPublicAddress)
	return f.execute(w, r, admin, &feed.AddMemberPayload{
		Feed:             feedID,
		Requester:        admin,
		Member:           hush.Address(req.NewMemberPublicAddress),
		MemberEncryptKey: hush.EncryptKey(req.NewMemberPublicEncryptKey),
	})
}

// memberAction builds the shared handler of the five single-target
// admin actions.
func (f *Feeds) memberAction(kind feed.PayloadKind) utils.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		var req MemberActionRequest
		if err := utils.ParseJSON(r.Body, &req); err != nil {
			return utils.BadRequest(errors.WithMessage(err, "body"))
		}
		feedID, err := hush.ParseBytes16(req.FeedID)
		if err != nil {
			return utils.BadRequest(errors.WithMessage(err, "feedId"))
		}
		admin := hush.Address(req.AdminPublicAddress)
		return f.execute(w, r, admin, &feed.MemberActionPayload{
			ActionKind: kind,
			Feed:       feedID,
			Requester:  admin,
			Member:     hush.Address(req.MemberPublicAddress),
		})
	}
}

func (f *Feeds) handleJoin(w http.ResponseWriter, r *http.Request) error {
	var req SelfActionRequest
	if err := utils.ParseJSON(r.Body, &req); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	feedID, err := hush.ParseBytes16(req.FeedID)
	if err != nil {
		return utils.BadRequest(errors.WithMessage(err, "feedId"))
	}
	member := hush.Address(req.PublicAddress)
	return f.execute(w, r, member, &feed.JoinPayload{Feed: feedID, Member: member})
}

func (f *Feeds) handleLeave(w http.ResponseWriter, r *http.Request) error {
	var req SelfActionRequest
	if err := utils.ParseJSON(r.Body, &req); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	feedID, err := hush.ParseBytes16(req.FeedID)
	if err != nil {
		return utils.BadRequest(errors.WithMessage(err, "feedId"))
	}
	member := hush.Address(req.PublicAddress)
	return f.execute(w, r, member, &feed.LeavePayload{Feed: feedID, Member: member})
}

func (f *Feeds) handleUpdateTitle(w http.ResponseWriter, r *http.Request) error {
	var req UpdateTitleRequest
	if err := utils.ParseJSON(r.Body, &req); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	feedID, err := hush.ParseBytes16(req.FeedID)
	if err != nil {
		return utils.BadRequest(errors.WithMessage(err, "feedId"))
	}
	admin := hush.Address(req.AdminPublicAddress)
	return f.execute(w, r, admin, &feed.UpdateTitlePayload{
		Feed:      feedID,
		Requester: admin,
		Title:     req.Title,
	})
}

func (f *Feeds) handleUpdateDescription(w http.ResponseWriter, r *http.Request) error {
	var req UpdateDescriptionRequest
	if err := utils.ParseJSON(r.Body, &req); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	feedID, err := hush.ParseBytes16(req.FeedID)
	if err != nil {
		return utils.BadRequest(errors.WithMessage(err, "feedId"))
	}
	admin := hush.Address(req.AdminPublicAddress)
	return f.execute(w, r, admin, &feed.UpdateDescriptionPayload{
		Feed:        feedID,
		Requester:   admin,
		Description: req.Description,
	})
}

func (f *Feeds) handleDeleteGroup(w http.ResponseWriter, r *http.Request) error {
	var req MemberActionRequest
	if err := utils.ParseJSON(r.Body, &req); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	feedID, err := hush.ParseBytes16(req.FeedID)
	if err != nil {
		return utils.BadRequest(errors.WithMessage(err, "feedId"))
	}
	admin := hush.Address(req.AdminPublicAddress)
	return f.execute(w, r, admin, &feed.DeleteGroupFeedPayload{
		Feed:      feedID,
		Requester: admin,
	})
}

func (f *Feeds) handleMarkFeedAsRead(w http.ResponseWriter, r *http.Request) error {
	var req MarkFeedAsReadRequest
	if err := utils.ParseJSON(r.Body, &req); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	feedID, err := hush.ParseBytes16(req.FeedID)
	if err != nil {
		return utils.BadRequest(errors.WithMessage(err, "feedId"))
	}
	addr := hush.Address(req.UserAddress)
	if addr.IsBlank() {
		return utils.BadRequest(errors.New("userAddress: blank"))
	}
	rp := &feed.ReadPosition{
		UserAddress:        addr,
		FeedID:             feedID,
		LastReadBlockIndex: hush.BlockIndex(req.BlockIndex),
	}
	if err := f.store.MarkRead(r.Context(), rp); err != nil {
		return err
	}
	return utils.WriteJSON(w, MutationResponse{Success: true, Message: "ok"})
}

// Mount attaches the feeds endpoints to the router under pathPrefix.
func (f *Feeds) Mount(router *mux.Router, pathPrefix string) {
	sub := router.PathPrefix(pathPrefix).Subrouter()
	sub.Path("/for-address").
		Methods(http.MethodPost).
		Name("POST /feeds/for-address").
		HandlerFunc(utils.WrapHandlerFunc(f.handleGetFeedsForAddress))
	sub.Path("/{feedId}/messages/{messageId}").
		Methods(http.MethodGet).
		Name("GET /feeds/{feedId}/messages/{messageId}").
		HandlerFunc(utils.WrapHandlerFunc(f.handleGetMessageByID))
	sub.Path("/messages").
		Methods(http.MethodPost).
		Name("POST /feeds/messages").
		HandlerFunc(utils.WrapHandlerFunc(f.handleGetFeedMessagesByID))
	sub.Path("/key-generations").
		Methods(http.MethodPost).
		Name("POST /feeds/key-generations").
		HandlerFunc(utils.WrapHandlerFunc(f.handleGetKeyGenerations))
	sub.Path("/members/add").
		Methods(http.MethodPost).
		Name("POST /feeds/members/add").
		HandlerFunc(utils.WrapHandlerFunc(f.handleAddMember))
	sub.Path("/members/ban").
		Methods(http.MethodPost).
		Name("POST /feeds/members/ban").
		HandlerFunc(utils.WrapHandlerFunc(f.memberAction(feed.KindBanFromGroupFeed)))
	sub.Path("/members/unban").
		Methods(http.MethodPost).
		Name("POST /feeds/members/unban").
		HandlerFunc(utils.WrapHandlerFunc(f.memberAction(feed.KindUnbanFromGroupFeed)))
	sub.Path("/members/promote").
		Methods(http.MethodPost).
		Name("POST /feeds/members/promote").
		HandlerFunc(utils.WrapHandlerFunc(f.memberAction(feed.KindPromoteToAdmin)))
	sub.Path("/members/block").
		Methods(http.MethodPost).
		Name("POST /feeds/members/block").
		HandlerFunc(utils.WrapHandlerFunc(f.memberAction(feed.KindBlockMember)))
	sub.Path("/members/unblock").
		Methods(http.MethodPost).
		Name("POST /feeds/members/unblock").
		HandlerFunc(utils.WrapHandlerFunc(f.memberAction(feed.KindUnblockMember)))
	sub.Path("/join").
		Methods(http.MethodPost).
		Name("POST /feeds/join").
		HandlerFunc(utils.WrapHandlerFunc(f.handleJoin))
	sub.Path("/leave").
		Methods(http.MethodPost).
		Name("POST /feeds/leave").
		HandlerFunc(utils.WrapHandlerFunc(f.handleLeave))
	sub.Path("/title").
		Methods(http.MethodPost).
		Name("POST /feeds/title").
		HandlerFunc(utils.WrapHandlerFunc(f.handleUpdateTitle))
	sub.Path("/description").
		Methods(http.MethodPost).
		Name("POST /feeds/description").
		HandlerFunc(utils.WrapHandlerFunc(f.handleUpdateDescription))
	sub.Path("/delete").
		Methods(http.MethodPost).
		Name("POST /feeds/delete").
		HandlerFunc(utils.WrapHandlerFunc(f.handleDeleteGroup))
	sub.Path("/mark-read").
		Methods(http.MethodPost).
		Name("POST /feeds/mark-read").
		HandlerFunc(utils.WrapHandlerFunc(f.handleMarkFeedAsRead))
}
