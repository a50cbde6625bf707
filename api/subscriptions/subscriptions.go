// Copyright (c) 2025 The Hushnetwork developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package subscriptions streams committed feed activity over
// websockets. Events originate from the transaction pipeline and are
// only published after durable commit, so a subscriber never observes
// state that can roll back.
package subscriptions

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/Hushnetwork-social/hush-server-node-sub000/api/utils"
	"github.com/Hushnetwork-social/hush-server-node-sub000/feedstore"
	"github.com/Hushnetwork-social/hush-server-node-sub000/hush"
	"github.com/Hushnetwork-social/hush-server-node-sub000/log"
	"github.com/Hushnetwork-social/hush-server-node-sub000/processor"
)

var logger = log.WithContext("pkg", "subscriptions")

const (
	txQueueLen   = 256
	pingInterval = 30 * time.Second
	writeTimeout = 10 * time.Second
)

type Subscriptions struct {
	store    *feedstore.Store
	proc     *processor.Processor
	upgrader websocket.Upgrader
	done     chan struct{}
}

func New(store *feedstore.Store, proc *processor.Processor, allowedOrigins []string) *Subscriptions {
	return &Subscriptions{
		store: store,
		proc:  proc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				for _, allowed := range allowedOrigins {
					if allowed == "*" || allowed == origin {
						return true
					}
				}
				return false
			},
		},
		done: make(chan struct{}),
	}
}

// MessageEvent is the wire form of one committed message.
type MessageEvent struct {
	FeedID        string `json:"feedId"`
	FeedMessageID string `json:"feedMessageId"`
	SenderAddress string `json:"senderAddress"`
	BlockIndex    uint64 `json:"blockIndex"`
	Timestamp     uint64 `json:"timestamp"`
	KeyGeneration uint32 `json:"keyGeneration"`
}

// FeedEvent is the wire form of one feed creation.
type FeedEvent struct {
	FeedID   string `json:"feedId"`
	FeedType uint8  `json:"feedType"`
}

// handleSubscribeMessages streams committed messages of one feed to a
// participant. Non-participants are refused before the upgrade.
func (s *Subscriptions) handleSubscribeMessages(w http.ResponseWriter, r *http.Request) error {
	feedID, err := hush.ParseBytes16(r.URL.Query().Get("feedId"))
	if err != nil {
		return utils.BadRequest(errors.WithMessage(err, "feedId"))
	}
	addr := hush.Address(r.URL.Query().Get("userAddress"))
	if addr.IsBlank() {
		return utils.BadRequest(errors.New("userAddress: blank"))
	}
	member, err := s.store.CreateReadOnly().IsUserParticipantOfFeed(r.Context(), feedID, addr)
	if err != nil {
		return err
	}
	if !member {
		return utils.Forbidden(errors.New("not a participant"))
	}

	events := make(chan processor.NewMessageEvent, txQueueLen)
	sub := s.proc.SubscribeNewMessage(events)
	defer sub.Unsubscribe()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	closed := watchClose(conn)
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-s.done:
			return nil
		case <-closed:
			return nil
		case <-r.Context().Done():
			return nil
		case err := <-sub.Err():
			return err
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return nil
			}
		case ev := <-events:
			m := ev.Message
			if m.FeedID != feedID {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(&MessageEvent{
				FeedID:        m.FeedID.String(),
				FeedMessageID: m.ID.String(),
				SenderAddress: string(m.SenderAddress),
				BlockIndex:    uint64(m.BlockIndex),
				Timestamp:     m.Timestamp,
				KeyGeneration: m.KeyGeneration,
			}); err != nil {
				logger.Debug("message push failed", "feed", feedID, "err", err)
				return nil
			}
		}
	}
}

// handleSubscribeFeeds streams feed creations an address takes part in.
func (s *Subscriptions) handleSubscribeFeeds(w http.ResponseWriter, r *http.Request) error {
	addr := hush.Address(r.URL.Query().Get("userAddress"))
	if addr.IsBlank() {
		return utils.BadRequest(errors.New("userAddress: blank"))
	}

	events := make(chan processor.FeedCreatedEvent, txQueueLen)
	sub := s.proc.SubscribeFeedCreated(events)
	defer sub.Unsubscribe()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	closed := watchClose(conn)
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-s.done:
			return nil
		case <-closed:
			return nil
		case <-r.Context().Done():
			return nil
		case err := <-sub.Err():
			return err
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return nil
			}
		case ev := <-events:
			if !participates(ev, addr) {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(&FeedEvent{
				FeedID:   ev.FeedID.String(),
				FeedType: uint8(ev.Kind),
			}); err != nil {
				logger.Debug("feed push failed", "user", addr, "err", err)
				return nil
			}
		}
	}
}

func participates(ev processor.FeedCreatedEvent, addr hush.Address) bool {
	for _, p := range ev.Participants {
		if p == addr {
			return true
		}
	}
	return false
}

// watchClose drains the read side so peer close frames are noticed.
func watchClose(conn *websocket.Conn) <-chan struct{} {
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return closed
}

// Close releases all active subscriptions.
func (s *Subscriptions) Close() {
	close(s.done)
}

// Mount attaches the subscription endpoints to the router under
// pathPrefix.
func (s *Subscriptions) Mount(router *mux.Router, pathPrefix string) {
	sub := router.PathPrefix(pathPrefix).Subrouter()
	sub.Path("/messages").
		Methods(http.MethodGet).
		Name("GET /subscriptions/messages").
		HandlerFunc(utils.WrapHandlerFunc(s.handleSubscribeMessages))
	sub.Path("/feeds").
		Methods(http.MethodGet).
		Name("GET /subscriptions/feeds").
		HandlerFunc(utils.WrapHandlerFunc(s.handleSubscribeFeeds))
}
