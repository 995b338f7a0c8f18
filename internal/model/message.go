package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MessageType defines the type of message content
type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeImage MessageType = "image"
	MessageTypeVideo MessageType = "video"
	MessageTypeVoice MessageType = "voice"
	MessageTypeCall  MessageType = "call"
)

// Message represents a chat message. Only Body is mutable after creation.
type Message struct {
	ID             uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	ConversationID uuid.UUID      `json:"conversation_id" gorm:"type:uuid;index;not null"`
	UserID         uuid.UUID      `json:"user_id" gorm:"type:uuid;index;not null"`
	Body           *string        `json:"body" gorm:"type:text"`
	Type           MessageType    `json:"type" gorm:"type:varchar(20);not null;default:'text'"`
	Attachment     *string        `json:"attachment" gorm:"size:500"` // object key in blob storage
	Duration       *float64       `json:"duration"`                   // seconds, voice and call
	CallType       *CallType      `json:"call_type" gorm:"type:varchar(10)"`
	CallStatus     *CallStatus    `json:"call_status" gorm:"type:varchar(20)"`
	CallID         *string        `json:"call_id" gorm:"size:100;index"`
	CallReason     *string        `json:"call_reason" gorm:"size:255"`
	ReadAt         *time.Time     `json:"read_at"`
	CreatedAt      time.Time      `json:"created_at" gorm:"index"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	User User `json:"-" gorm:"foreignKey:UserID"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
