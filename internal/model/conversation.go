package model

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ConversationType records who opened the conversation and in which role
type ConversationType string

const (
	ConversationCustomerToCustomer ConversationType = "customer_to_customer"
	ConversationCustomerToDelivery ConversationType = "customer_to_delivery"
	ConversationDeliveryToCustomer ConversationType = "delivery_to_customer"
)

// Conversation is a two-party chat thread, optionally tied to a delivery
type Conversation struct {
	ID              uuid.UUID        `json:"id" gorm:"type:uuid;primaryKey"`
	Title           string           `json:"title" gorm:"size:150"`
	Type            ConversationType `json:"type" gorm:"type:varchar(30);not null;default:'customer_to_customer'"`
	DeliveryID      *uuid.UUID       `json:"delivery_id,omitempty" gorm:"type:uuid;index"`
	ParticipantsKey string           `json:"-" gorm:"size:100;uniqueIndex;not null"`
	LastMessageAt   *time.Time       `json:"last_message_at,omitempty" gorm:"index"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`

	// Relations
	Participants []ConversationParticipant `json:"participants,omitempty" gorm:"foreignKey:ConversationID"`
	LastMessage  *Message                  `json:"last_message,omitempty" gorm:"-"` // populated manually
}

func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// ParticipantIDs returns the user ids attached to the conversation
func (c *Conversation) ParticipantIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(c.Participants))
	for _, p := range c.Participants {
		ids = append(ids, p.UserID)
	}
	return ids
}

// HasParticipant reports whether userID is attached to the conversation
func (c *Conversation) HasParticipant(userID uuid.UUID) bool {
	for _, p := range c.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// OtherParticipant returns the first participant that is not userID
func (c *Conversation) OtherParticipant(userID uuid.UUID) (uuid.UUID, bool) {
	for _, p := range c.Participants {
		if p.UserID != userID {
			return p.UserID, true
		}
	}
	return uuid.Nil, false
}

// ParticipantsKey builds the canonical dedup key: ids sorted ascending, comma joined
func ParticipantsKey(ids ...uuid.UUID) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, id.String())
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

// ConversationParticipant is the membership pivot carrying the read cursor
type ConversationParticipant struct {
	ID             uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	ConversationID uuid.UUID  `json:"conversation_id" gorm:"type:uuid;uniqueIndex:idx_conv_user;not null"`
	UserID         uuid.UUID  `json:"user_id" gorm:"type:uuid;uniqueIndex:idx_conv_user;index;not null"`
	LastReadAt     *time.Time `json:"last_read_at,omitempty"`
	JoinedAt       time.Time  `json:"joined_at"`

	// Relations
	User User `json:"user" gorm:"foreignKey:UserID"`
}

func (p *ConversationParticipant) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
