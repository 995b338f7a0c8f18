package service

import (
	"github.com/quocanhngo/delivertalk/internal/apperror"
	"github.com/quocanhngo/delivertalk/internal/event"
	"github.com/quocanhngo/delivertalk/internal/model"
)

// SubscriptionPolicy decides which realtime channels a user may join
type SubscriptionPolicy struct {
	convs      *ConversationService
	deliveries *DeliveryService
}

func NewSubscriptionPolicy(convs *ConversationService, deliveries *DeliveryService) *SubscriptionPolicy {
	return &SubscriptionPolicy{convs: convs, deliveries: deliveries}
}

// Authorize returns nil when v may subscribe to channel.
// Presence channels are open to any authenticated user.
func (p *SubscriptionPolicy) Authorize(channel string, v Viewer) error {
	kind, id := event.ParseChannel(channel)
	switch kind {
	case event.ChannelChat:
		ok, err := p.convs.IsParticipant(id, v.UserID)
		if err != nil {
			return err
		}
		if !ok {
			return apperror.Authorization("you are not a participant of this conversation")
		}
	case event.ChannelUser:
		if id != v.UserID {
			return apperror.Authorization("private channel belongs to another user")
		}
	case event.ChannelPresence:
	case event.ChannelDelivery:
		ok, err := p.deliveries.CanView(id, v)
		if err != nil {
			return err
		}
		if !ok {
			return apperror.Authorization("you cannot follow this delivery")
		}
	case event.ChannelFleet:
		if v.Role != model.RoleAdmin {
			return apperror.Authorization("admin only")
		}
	default:
		return apperror.Validation("unknown channel")
	}
	return nil
}
