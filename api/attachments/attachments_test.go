// Copyright (c) 2025 The Hushnetwork developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package attachments

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hushnetwork-social/hush-server-node-sub000/attach"
	"github.com/Hushnetwork-social/hush-server-node-sub000/feed"
	"github.com/Hushnetwork-social/hush-server-node-sub000/feeddb"
	"github.com/Hushnetwork-social/hush-server-node-sub000/feedstore"
	"github.com/Hushnetwork-social/hush-server-node-sub000/hush"
)

type testEnv struct {
	db    *feeddb.FeedDB
	blobs *attach.Store
	ts    *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	db, err := feeddb.NewMem()
	require.NoError(t, err)
	t.Cleanup(db.Close)

	blobs, err := attach.New(t.TempDir())
	require.NoError(t, err)

	router := mux.NewRouter()
	New(feedstore.New(db, nil), blobs).Mount(router, "/attachments")
	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)
	return &testEnv{db: db, blobs: blobs, ts: ts}
}

// seedAttachment creates a feed with one participant, one message and
// one attached blob row.
func (e *testEnv) seedAttachment(t *testing.T, member hush.Address, original, thumb []byte) (attID, feedID hush.Bytes16) {
	ctx := context.Background()
	feedID = hush.NewBytes16()
	msgID := hush.NewBytes16()
	attID = hush.NewBytes16()

	uow, err := e.db.CreateWritable(ctx)
	require.NoError(t, err)
	defer uow.Rollback()
	require.NoError(t, uow.CreateFeed(ctx, &feed.Feed{ID: feedID, Kind: feed.KindGroup, CreatedAtBlock: 1, LastBlockIndex: 1}))
	require.NoError(t, uow.AddParticipant(ctx, &feed.Participant{FeedID: feedID, Address: member, Role: feed.RoleAdmin, JoinedAtBlock: 1}))
	require.NoError(t, uow.CreateFeedMessage(ctx, &feed.EncryptedMessage{
		ID: msgID, FeedID: feedID, Ciphertext: []byte("ct"), SenderAddress: member, BlockIndex: 1,
	}))
	require.NoError(t, uow.CreateAttachment(ctx, &feed.Attachment{
		ID: attID, FeedMessageID: msgID,
		EncryptedOriginal: original, EncryptedThumb: thumb,
		MimeType: "image/png", FileName: "pic.png",
		OriginalSize: uint64(len(original)), ThumbnailSize: uint64(len(thumb)),
	}))
	require.NoError(t, uow.Commit())
	return attID, feedID
}

func (e *testEnv) download(t *testing.T, req DownloadRequest) (*http.Response, []Chunk) {
	raw, err := json.Marshal(req)
	require.NoError(t, err)
	res, err := http.Post(e.ts.URL+"/attachments/download", "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return res, nil
	}
	var chunks []Chunk
	dec := json.NewDecoder(res.Body)
	for dec.More() {
		var c Chunk
		require.NoError(t, dec.Decode(&c))
		chunks = append(chunks, c)
	}
	return res, chunks
}

func TestDownloadStreamsChunks(t *testing.T) {
	e := newTestEnv(t)
	original := make([]byte, 3*ChunkSize/2) // 1.5 chunks
	_, err := rand.Read(original)
	require.NoError(t, err)
	id, feedID := e.seedAttachment(t, "A", original, []byte("thumb"))

	res, chunks := e.download(t, DownloadRequest{AttachmentID: id.String(), FeedID: feedID.String(), RequesterUserAddress: "A"})
	assert.Equal(t, http.StatusOK, res.StatusCode)
	require.Len(t, chunks, 2)

	// totals ride only on the first chunk
	assert.Equal(t, 0, chunks[0].ChunkIndex)
	assert.Equal(t, 2, chunks[0].TotalChunks)
	assert.Equal(t, uint64(len(original)), chunks[0].TotalSize)
	assert.Equal(t, 1, chunks[1].ChunkIndex)
	assert.Equal(t, 0, chunks[1].TotalChunks)
	assert.Equal(t, uint64(0), chunks[1].TotalSize)

	// concatenation restores the source bytes
	assert.Equal(t, original, append(append([]byte{}, chunks[0].Data...), chunks[1].Data...))
	assert.Len(t, chunks[0].Data, ChunkSize)
}

func TestDownloadThumbnailOnly(t *testing.T) {
	e := newTestEnv(t)
	id, feedID := e.seedAttachment(t, "A", []byte("original"), []byte("small"))

	_, chunks := e.download(t, DownloadRequest{AttachmentID: id.String(), FeedID: feedID.String(), RequesterUserAddress: "A", ThumbnailOnly: true})
	require.Len(t, chunks, 1)
	assert.Equal(t, []byte("small"), chunks[0].Data)
	assert.Equal(t, 1, chunks[0].TotalChunks)

	// no thumbnail stored
	bare, bareFeed := e.seedAttachment(t, "A", []byte("original"), nil)
	res, _ := e.download(t, DownloadRequest{AttachmentID: bare.String(), FeedID: bareFeed.String(), RequesterUserAddress: "A", ThumbnailOnly: true})
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestDownloadAuthz(t *testing.T) {
	e := newTestEnv(t)
	id, feedID := e.seedAttachment(t, "A", []byte("original"), nil)

	res, _ := e.download(t, DownloadRequest{AttachmentID: id.String(), FeedID: feedID.String(), RequesterUserAddress: "Z"})
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	res, _ = e.download(t, DownloadRequest{AttachmentID: hush.NewBytes16().String(), FeedID: feedID.String(), RequesterUserAddress: "A"})
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	res, _ = e.download(t, DownloadRequest{AttachmentID: "garbage", FeedID: feedID.String(), RequesterUserAddress: "A"})
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	// an attachment reached through the wrong feed does not exist
	_, otherFeed := e.seedAttachment(t, "A", []byte("other"), nil)
	res, _ = e.download(t, DownloadRequest{AttachmentID: id.String(), FeedID: otherFeed.String(), RequesterUserAddress: "A"})
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	res, _ = e.download(t, DownloadRequest{AttachmentID: id.String(), FeedID: "garbage", RequesterUserAddress: "A"})
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestUploadStagesBlobs(t *testing.T) {
	e := newTestEnv(t)

	raw, err := json.Marshal(UploadRequest{Data: []byte("payload"), Thumbnail: []byte("thumb")})
	require.NoError(t, err)
	res, err := http.Post(e.ts.URL+"/attachments/upload", "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var out UploadResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	require.True(t, out.Success)

	id, err := hush.ParseBytes16(out.AttachmentID)
	require.NoError(t, err)
	original, thumb, err := e.blobs.Retrieve(id)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), original)
	assert.Equal(t, []byte("thumb"), thumb)
}
