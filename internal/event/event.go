// Package event maps domain events to pub/sub channels and publishes them.
//
// An Event carries its payload and, separately, the Audience it is addressed to.
// Channels is a pure function from the audience to channel names, so the routing
// policy can be tested without a transport. Delivery is at-least-once and
// best-effort: there is no ordering across channels and no replay of missed events.
package event

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
)

// Wire event names. Clients are built against these strings.
const (
	MessageSent    = "message.sent"
	MessageUpdated = "message.updated"
	MessageDeleted = "message.deleted"
	MessageRead    = "message.read"
	UnreadUpdated  = "unread.updated"

	CallInitiated = "call.initiated"
	CallAccepted  = "call.accepted"
	CallRejected  = "call.rejected"
	CallEnded     = "call.ended"
	CallMissed    = "call.missed"

	Typing     = "typing"
	StopTyping = "stop-typing"

	UserPresence = "user.presence"

	DeliveryAssigned             = "delivery.assigned"
	DeliveryStatusUpdated        = "delivery.status.updated"
	DeliveryAgentLocationUpdated = "DeliveryAgentLocationUpdated"
)

// Channel name prefixes
const (
	chatPrefix     = "chat."
	presencePrefix = "user.presence."
	userPrefix     = "user."
	deliveryPrefix = "delivery.location."

	// FleetChannel is the shared admin view of every moving delivery
	FleetChannel = "admin.deliveries"
)

func ChatChannel(conversationID uuid.UUID) string {
	return chatPrefix + conversationID.String()
}

func UserChannel(userID uuid.UUID) string {
	return userPrefix + userID.String()
}

func PresenceChannel(userID uuid.UUID) string {
	return presencePrefix + userID.String()
}

func DeliveryChannel(deliveryID uuid.UUID) string {
	return deliveryPrefix + deliveryID.String()
}

// ChannelKind classifies a channel name for subscription checks
type ChannelKind int

const (
	ChannelUnknown ChannelKind = iota
	ChannelChat
	ChannelUser
	ChannelPresence
	ChannelDelivery
	ChannelFleet
)

// ParseChannel splits a channel name into its kind and id.
// Presence must be matched before user since both share the "user." prefix.
func ParseChannel(name string) (ChannelKind, uuid.UUID) {
	if name == FleetChannel {
		return ChannelFleet, uuid.Nil
	}
	prefixes := []struct {
		prefix string
		kind   ChannelKind
	}{
		{chatPrefix, ChannelChat},
		{presencePrefix, ChannelPresence},
		{userPrefix, ChannelUser},
		{deliveryPrefix, ChannelDelivery},
	}
	for _, p := range prefixes {
		if !strings.HasPrefix(name, p.prefix) {
			continue
		}
		id, err := uuid.Parse(strings.TrimPrefix(name, p.prefix))
		if err != nil {
			return ChannelUnknown, uuid.Nil
		}
		return p.kind, id
	}
	return ChannelUnknown, uuid.Nil
}

// Audience names the subscribers of an event. Lists are materialized by the
// caller (e.g. a user's conversations) rather than resolved at dispatch time.
type Audience struct {
	Conversations []uuid.UUID // chat.{id}
	Users         []uuid.UUID // user.{id}
	PresenceOf    []uuid.UUID // user.presence.{id}
	Deliveries    []uuid.UUID // delivery.location.{id}
	Fleet         bool        // admin.deliveries
}

// Event is a domain event ready for dispatch
type Event struct {
	Name     string
	Payload  interface{}
	Audience Audience
}

// Channels returns the distinct channels an event is published to, in a stable order
func Channels(e Event) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(ch string) {
		if seen[ch] {
			return
		}
		seen[ch] = true
		out = append(out, ch)
	}

	for _, id := range e.Audience.Deliveries {
		add(DeliveryChannel(id))
	}
	for _, id := range e.Audience.PresenceOf {
		add(PresenceChannel(id))
	}
	for _, id := range e.Audience.Conversations {
		add(ChatChannel(id))
	}
	for _, id := range e.Audience.Users {
		add(UserChannel(id))
	}
	if e.Audience.Fleet {
		add(FleetChannel)
	}
	return out
}

// Envelope is the wire frame delivered to subscribers
type Envelope struct {
	Channel string          `json:"channel"`
	Event   string          `json:"event"`
	Data    json.RawMessage `json:"data"`
}
