// Copyright (c) 2025 The Hushnetwork developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package processor

import (
	"github.com/ethereum/go-ethereum/event"

	"github.com/Hushnetwork-social/hush-server-node-sub000/feed"
	"github.com/Hushnetwork-social/hush-server-node-sub000/hush"
)

// FeedCreatedEvent is published after a feed creation commits.
type FeedCreatedEvent struct {
	FeedID       hush.Bytes16
	Kind         feed.Kind
	Participants []hush.Address
}

// NewMessageEvent is published after a message commits.
type NewMessageEvent struct {
	Message *feed.EncryptedMessage
}

// KeyRotatedEvent is published after a key generation commits.
type KeyRotatedEvent struct {
	FeedID  hush.Bytes16
	Version uint32
	Trigger feed.RotationTrigger
}

type eventHub struct {
	feedCreatedFeed event.Feed
	newMessageFeed  event.Feed
	keyRotatedFeed  event.Feed
	scope           event.SubscriptionScope
}

// SubscribeFeedCreated registers a feed-creation listener.
func (p *Processor) SubscribeFeedCreated(ch chan FeedCreatedEvent) event.Subscription {
	return p.events.scope.Track(p.events.feedCreatedFeed.Subscribe(ch))
}

// SubscribeNewMessage registers a new-message listener.
func (p *Processor) SubscribeNewMessage(ch chan NewMessageEvent) event.Subscription {
	return p.events.scope.Track(p.events.newMessageFeed.Subscribe(ch))
}

// SubscribeKeyRotated registers a key-rotation listener.
func (p *Processor) SubscribeKeyRotated(ch chan KeyRotatedEvent) event.Subscription {
	return p.events.scope.Track(p.events.keyRotatedFeed.Subscribe(ch))
}
