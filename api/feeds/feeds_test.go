// Copyright (c) 2025 The Hushnetwork developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package feeds

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hushnetwork-social/hush-server-node-sub000/feed"
	"github.com/Hushnetwork-social/hush-server-node-sub000/feedcache"
	"github.com/Hushnetwork-social/hush-server-node-sub000/feeddb"
	"github.com/Hushnetwork-social/hush-server-node-sub000/feedstore"
	"github.com/Hushnetwork-social/hush-server-node-sub000/hush"
	"github.com/Hushnetwork-social/hush-server-node-sub000/identity"
	"github.com/Hushnetwork-social/hush-server-node-sub000/processor"
	"github.com/Hushnetwork-social/hush-server-node-sub000/rotation"
)

type testEnv struct {
	db    *feeddb.FeedDB
	store *feedstore.Store
	ids   *identity.MemStore
	chain *identity.MemChain
	proc  *processor.Processor
	ts    *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	db, err := feeddb.NewMem()
	require.NoError(t, err)
	t.Cleanup(db.Close)

	creds, err := identity.NewKeyCredentials()
	require.NoError(t, err)

	ids := identity.NewMemStore()
	store := feedstore.New(db, feedcache.New(1))
	proc := processor.New(store, ids, creds, rotation.New(ids))
	t.Cleanup(proc.Close)

	chain := identity.NewMemChain(10)
	router := mux.NewRouter()
	New(store, proc, chain, ids, 0).Mount(router, "/feeds")
	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)

	return &testEnv{db: db, store: store, ids: ids, chain: chain, proc: proc, ts: ts}
}

func (e *testEnv) register(t *testing.T, addr hush.Address, alias string) {
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	e.ids.Add(addr, hush.EncryptKey(hex.EncodeToString(priv.PubKey().SerializeCompressed())))
	e.ids.SetAlias(addr, alias)
}

func (e *testEnv) createGroup(t *testing.T, title string, members ...hush.Address) hush.Bytes16 {
	id := hush.NewBytes16()
	parts := make([]feed.NewGroupParticipant, 0, len(members))
	for _, m := range members {
		key, err := e.ids.GetEncryptKey(context.Background(), m)
		require.NoError(t, err)
		parts = append(parts, feed.NewGroupParticipant{Address: m, EncryptKey: key})
	}
	tx := feed.NewTransaction(members[0], e.chain.LastBlockIndex(), &feed.NewGroupFeedPayload{
		ID:           id,
		Title:        title,
		Creator:      members[0],
		Participants: parts,
	})
	require.NoError(t, e.proc.Execute(context.Background(), tx))
	return id
}

func (e *testEnv) sendMessage(t *testing.T, feedID hush.Bytes16, sender hush.Address, block hush.BlockIndex, body string) hush.Bytes16 {
	e.chain.Advance(block)
	msgID := hush.NewBytes16()
	tx := feed.NewTransaction(sender, block, &feed.MessagePayload{
		Feed:          feedID,
		MessageID:     msgID,
		Ciphertext:    []byte(body),
		Sender:        sender,
		Timestamp:     uint64(block) * 10,
		KeyGeneration: 0,
	})
	require.NoError(t, e.proc.Execute(context.Background(), tx))
	return msgID
}

func (e *testEnv) post(t *testing.T, path string, body, out interface{}) *http.Response {
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	res, err := http.Post(e.ts.URL+path, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer res.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(res.Body).Decode(out))
	}
	return res
}

func TestListFeedsForAddress(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "A", "alice")
	e.register(t, "B", "bob")
	id := e.createGroup(t, "Tech Friends", "A", "B")

	var res GetFeedForAddressResponse
	e.post(t, "/feeds/for-address", GetFeedForAddressRequest{ProfilePublicKey: "A"}, &res)
	require.Len(t, res.Feeds, 1)
	assert.Equal(t, id.String(), res.Feeds[0].FeedID)
	assert.Equal(t, uint8(feed.KindGroup), res.Feeds[0].FeedType)
	assert.Equal(t, "Tech Friends", res.Feeds[0].FeedTitle)
	assert.Equal(t, uint64(10), res.Feeds[0].BlockIndex)
	assert.Equal(t, uint64(0), res.Feeds[0].LastReadBlockIndex)

	// mark-read moves the bookmark reported on the next listing
	var mres MutationResponse
	e.post(t, "/feeds/mark-read", MarkFeedAsReadRequest{
		FeedID: id.String(), UserAddress: "A", BlockIndex: 10,
	}, &mres)
	assert.True(t, mres.Success)

	e.post(t, "/feeds/for-address", GetFeedForAddressRequest{ProfilePublicKey: "A"}, &res)
	require.Len(t, res.Feeds, 1)
	assert.Equal(t, uint64(10), res.Feeds[0].LastReadBlockIndex)

	// a stranger sees nothing
	e.post(t, "/feeds/for-address", GetFeedForAddressRequest{ProfilePublicKey: "Z"}, &res)
	assert.Empty(t, res.Feeds)

	// feeds quiet since the given block are filtered out
	e.post(t, "/feeds/for-address", GetFeedForAddressRequest{ProfilePublicKey: "A", BlockIndex: 11}, &res)
	assert.Empty(t, res.Feeds)
}

func TestChatAndPersonalTitles(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "A", "alice")
	e.register(t, "B", "bob")
	ctx := context.Background()

	personal := hush.NewBytes16()
	chat := hush.NewBytes16()
	uow, err := e.db.CreateWritable(ctx)
	require.NoError(t, err)
	defer uow.Rollback()
	require.NoError(t, uow.CreateFeed(ctx, &feed.Feed{ID: personal, Kind: feed.KindPersonal, CreatedAtBlock: 1, LastBlockIndex: 1}))
	require.NoError(t, uow.AddParticipant(ctx, &feed.Participant{FeedID: personal, Address: "A", Role: feed.RoleAdmin, JoinedAtBlock: 1}))
	require.NoError(t, uow.CreateFeed(ctx, &feed.Feed{ID: chat, Kind: feed.KindChat, CreatedAtBlock: 2, LastBlockIndex: 2}))
	require.NoError(t, uow.AddParticipant(ctx, &feed.Participant{FeedID: chat, Address: "A", Role: feed.RoleMember, JoinedAtBlock: 2}))
	require.NoError(t, uow.AddParticipant(ctx, &feed.Participant{FeedID: chat, Address: "B", Role: feed.RoleMember, JoinedAtBlock: 2}))
	require.NoError(t, uow.Commit())

	var res GetFeedForAddressResponse
	e.post(t, "/feeds/for-address", GetFeedForAddressRequest{ProfilePublicKey: "A"}, &res)
	require.Len(t, res.Feeds, 2)
	byID := make(map[string]FeedSummary)
	for _, f := range res.Feeds {
		byID[f.FeedID] = f
	}
	assert.Equal(t, "alice (YOU)", byID[personal.String()].FeedTitle)
	assert.Equal(t, "bob", byID[chat.String()].FeedTitle)

	// the other side of the chat sees the counterpart's alias
	e.post(t, "/feeds/for-address", GetFeedForAddressRequest{ProfilePublicKey: "B"}, &res)
	require.Len(t, res.Feeds, 1)
	assert.Equal(t, "alice", res.Feeds[0].FeedTitle)
}

func TestGetMessageByIDNotFoundRules(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "A", "alice")
	id := e.createGroup(t, "g", "A")
	msgID := e.sendMessage(t, id, "A", 11, "hello")

	get := func(feedID, messageID string) (*http.Response, GetMessageByIDResponse) {
		res, err := http.Get(fmt.Sprintf("%s/feeds/%s/messages/%s", e.ts.URL, feedID, messageID))
		require.NoError(t, err)
		defer res.Body.Close()
		var out GetMessageByIDResponse
		require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
		return res, out
	}

	// the happy path
	res, out := get(id.String(), msgID.String())
	assert.Equal(t, http.StatusOK, res.StatusCode)
	require.True(t, out.Success)
	require.NotNil(t, out.Message)
	assert.Equal(t, []byte("hello"), out.Message.MessageContent)
	assert.Equal(t, "alice", out.Message.IssuerName)
	assert.Equal(t, uint64(11), out.Message.BlockIndex)

	// malformed ids
	res, out = get(id.String(), "not-an-id")
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.False(t, out.Success)

	// unknown message
	res, _ = get(id.String(), hush.NewBytes16().String())
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	// existing message reached through the wrong feed
	other := e.createGroup(t, "other", "A")
	res, _ = get(other.String(), msgID.String())
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestFeedMessagesPagination(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "A", "alice")
	e.register(t, "B", "bob")
	id := e.createGroup(t, "g", "A", "B")
	for i := hush.BlockIndex(11); i <= 15; i++ {
		e.sendMessage(t, id, "A", i, fmt.Sprintf("m%d", i))
	}

	limit := 3
	var res GetFeedMessagesByIDResponse
	e.post(t, "/feeds/messages", GetFeedMessagesByIDRequest{
		FeedID: id.String(), UserAddress: "B", Limit: &limit,
	}, &res)
	require.Len(t, res.Messages, 3)
	assert.True(t, res.HasMoreMessages)
	// newest first
	assert.Equal(t, uint64(15), res.Messages[0].BlockIndex)
	assert.Equal(t, uint64(13), res.Messages[2].BlockIndex)
	assert.Equal(t, uint64(15), res.NewestBlockIndex)
	assert.Equal(t, uint64(13), res.OldestBlockIndex)

	// older history below the first window
	before := res.OldestBlockIndex
	e.post(t, "/feeds/messages", GetFeedMessagesByIDRequest{
		FeedID: id.String(), UserAddress: "B", BeforeBlockIndex: &before, Limit: &limit,
	}, &res)
	require.Len(t, res.Messages, 2)
	assert.Equal(t, uint64(12), res.Messages[0].BlockIndex)
	assert.Equal(t, uint64(11), res.Messages[1].BlockIndex)
	assert.False(t, res.HasMoreMessages)

	// non-participants read an empty page
	e.post(t, "/feeds/messages", GetFeedMessagesByIDRequest{
		FeedID: id.String(), UserAddress: "Z",
	}, &res)
	assert.Empty(t, res.Messages)
	assert.False(t, res.HasMoreMessages)
}

func TestKeyGenerationsEndpoint(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "A", "alice")
	e.register(t, "B", "bob")
	id := e.createGroup(t, "g", "A", "B")

	var res GetKeyGenerationsResponse
	e.post(t, "/feeds/key-generations", GetKeyGenerationsRequest{
		FeedID: id.String(), UserPublicAddress: "B",
	}, &res)
	require.Len(t, res.KeyGenerations, 1)
	assert.Equal(t, uint32(0), res.KeyGenerations[0].KeyGeneration)
	assert.NotEmpty(t, res.KeyGenerations[0].EncryptedKey)

	// an outsider holds no wrapped keys
	e.post(t, "/feeds/key-generations", GetKeyGenerationsRequest{
		FeedID: id.String(), UserPublicAddress: "Z",
	}, &res)
	assert.Empty(t, res.KeyGenerations)
}

func TestAddMemberEndpoint(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "A", "alice")
	e.register(t, "B", "bob")
	e.register(t, "C", "carol")
	id := e.createGroup(t, "g", "A", "B")
	e.chain.Advance(20)

	key, err := e.ids.GetEncryptKey(context.Background(), "C")
	require.NoError(t, err)

	// only admins can add
	var res MutationResponse
	e.post(t, "/feeds/members/add", AddMemberToGroupFeedRequest{
		FeedID: id.String(), AdminPublicAddress: "B",
		NewMemberPublicAddress: "C", NewMemberPublicEncryptKey: string(key),
	}, &res)
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Message)

	e.post(t, "/feeds/members/add", AddMemberToGroupFeedRequest{
		FeedID: id.String(), AdminPublicAddress: "A",
		NewMemberPublicAddress: "C", NewMemberPublicEncryptKey: string(key),
	}, &res)
	require.True(t, res.Success)

	part, err := e.db.CreateReadOnly().GetParticipantWithHistory(context.Background(), id, "C")
	require.NoError(t, err)
	require.NotNil(t, part)
	assert.True(t, part.Active())
}

func TestMemberActionAndLeaveEndpoints(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "A", "alice")
	e.register(t, "B", "bob")
	e.register(t, "C", "carol")
	id := e.createGroup(t, "g", "A", "B", "C")
	e.chain.Advance(20)

	var res MutationResponse
	e.post(t, "/feeds/members/ban", MemberActionRequest{
		FeedID: id.String(), AdminPublicAddress: "A", MemberPublicAddress: "B",
	}, &res)
	require.True(t, res.Success)

	part, err := e.db.CreateReadOnly().GetParticipantWithHistory(context.Background(), id, "B")
	require.NoError(t, err)
	assert.Equal(t, feed.RoleBanned, part.Role)

	e.post(t, "/feeds/leave", SelfActionRequest{FeedID: id.String(), PublicAddress: "C"}, &res)
	require.True(t, res.Success)
	part, err = e.db.CreateReadOnly().GetParticipantWithHistory(context.Background(), id, "C")
	require.NoError(t, err)
	assert.False(t, part.Active())
}

func TestUpdateTitleEndpoint(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "A", "alice")
	id := e.createGroup(t, "old", "A")
	e.chain.Advance(20)

	var res MutationResponse
	e.post(t, "/feeds/title", UpdateTitleRequest{
		FeedID: id.String(), AdminPublicAddress: "A", Title: "new title",
	}, &res)
	require.True(t, res.Success)

	gf, err := e.db.CreateReadOnly().GetGroupFeed(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "new title", gf.Title)
}
