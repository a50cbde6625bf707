// Copyright (c) 2025 The Hushnetwork developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package attachments

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/Hushnetwork-social/hush-server-node-sub000/api/utils"
	"github.com/Hushnetwork-social/hush-server-node-sub000/attach"
	"github.com/Hushnetwork-social/hush-server-node-sub000/feedstore"
	"github.com/Hushnetwork-social/hush-server-node-sub000/hush"
)

// ChunkSize is the payload size of one download chunk.
const ChunkSize = 64 * 1024

// Attachments serves encrypted attachment bytes. Uploads stage bytes
// in the temp blob store until block inclusion moves them into the
// durable row; downloads stream the durable row in fixed chunks.
type Attachments struct {
	store *feedstore.Store
	blobs *attach.Store
}

func New(store *feedstore.Store, blobs *attach.Store) *Attachments {
	return &Attachments{store: store, blobs: blobs}
}

type UploadRequest struct {
	AttachmentID string `json:"attachmentId"`
	Data         []byte `json:"data"`
	Thumbnail    []byte `json:"thumbnail,omitempty"`
}

type UploadResponse struct {
	Success      bool   `json:"success"`
	AttachmentID string `json:"attachmentId,omitempty"`
	Message      string `json:"message,omitempty"`
}

type DownloadRequest struct {
	AttachmentID         string `json:"attachmentId"`
	FeedID               string `json:"feedId"`
	RequesterUserAddress string `json:"requesterUserAddress"`
	ThumbnailOnly        bool   `json:"thumbnailOnly,omitempty"`
}

// Chunk is one piece of a streamed download. Only the first chunk
// carries the totals; later chunks leave them zero.
type Chunk struct {
	ChunkIndex  int    `json:"chunkIndex"`
	TotalChunks int    `json:"totalChunks"`
	TotalSize   uint64 `json:"totalSize"`
	Data        []byte `json:"data"`
}

func (a *Attachments) handleUpload(w http.ResponseWriter, r *http.Request) error {
	var req UploadRequest
	if err := utils.ParseJSON(r.Body, &req); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	if len(req.Data) == 0 {
		return utils.BadRequest(errors.New("data: empty"))
	}
	var id hush.Bytes16
	if req.AttachmentID != "" {
		parsed, err := hush.ParseBytes16(req.AttachmentID)
		if err != nil {
			return utils.BadRequest(errors.WithMessage(err, "attachmentId"))
		}
		id = parsed
	} else {
		id = hush.NewBytes16()
	}
	if err := a.blobs.Save(id, req.Data, req.Thumbnail); err != nil {
		return err
	}
	return utils.WriteJSON(w, UploadResponse{Success: true, AttachmentID: id.String()})
}

func (a *Attachments) handleDownload(w http.ResponseWriter, r *http.Request) error {
	var req DownloadRequest
	if err := utils.ParseJSON(r.Body, &req); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	id, err := hush.ParseBytes16(req.AttachmentID)
	if err != nil {
		return utils.NotFound(errors.New("attachment not found"))
	}
	feedID, err := hush.ParseBytes16(req.FeedID)
	if err != nil {
		return utils.NotFound(errors.New("attachment not found"))
	}
	addr := hush.Address(req.RequesterUserAddress)
	if addr.IsBlank() {
		return utils.BadRequest(errors.New("requesterUserAddress: blank"))
	}
	ctx := r.Context()
	reader := a.store.CreateReadOnly()

	att, err := reader.GetAttachmentByID(ctx, id)
	if err != nil {
		return err
	}
	if att == nil {
		return utils.NotFound(errors.New("attachment not found"))
	}
	msg, err := reader.GetMessageByID(ctx, att.FeedMessageID)
	if err != nil {
		return err
	}
	// an attachment reached through the wrong feed does not exist
	if msg == nil || msg.FeedID != feedID {
		return utils.NotFound(errors.New("attachment not found"))
	}
	member, err := reader.IsUserParticipantOfFeed(ctx, feedID, addr)
	if err != nil {
		return err
	}
	if !member {
		return utils.Forbidden(errors.New("not a participant"))
	}

	data := att.EncryptedOriginal
	if req.ThumbnailOnly {
		data = att.EncryptedThumb
		if len(data) == 0 {
			return utils.NotFound(errors.New("no thumbnail"))
		}
	}
	return streamChunks(w, data)
}

// streamChunks writes the bytes as newline-delimited JSON chunks of at
// most ChunkSize payload bytes each.
func streamChunks(w http.ResponseWriter, data []byte) error {
	total := (len(data) + ChunkSize - 1) / ChunkSize
	if total == 0 {
		total = 1
	}
	w.Header().Set("Content-Type", "application/x-ndjson")
	enc := json.NewEncoder(w)
	flusher, _ := w.(http.Flusher)

	for i := 0; i < total; i++ {
		start := i * ChunkSize
		end := start + ChunkSize
		if end > len(data) {
			end = len(data)
		}
		chunk := Chunk{ChunkIndex: i, Data: data[start:end]}
		if i == 0 {
			chunk.TotalChunks = total
			chunk.TotalSize = uint64(len(data))
		}
		if err := enc.Encode(&chunk); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
	return nil
}

// Mount attaches the attachment endpoints to the router under
// pathPrefix.
func (a *Attachments) Mount(router *mux.Router, pathPrefix string) {
	sub := router.PathPrefix(pathPrefix).Subrouter()
	sub.Path("/upload").
		Methods(http.MethodPost).
		Name("POST /attachments/upload").
		HandlerFunc(utils.WrapHandlerFunc(a.handleUpload))
	sub.Path("/download").
		Methods(http.MethodPost).
		Name("POST /attachments/download").
		HandlerFunc(utils.WrapHandlerFunc(a.handleDownload))
}
