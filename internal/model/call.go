package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CallType is the media kind of a call
type CallType string

const (
	CallTypeAudio CallType = "audio"
	CallTypeVideo CallType = "video"
)

// CallStatus is a call lifecycle state
type CallStatus string

const (
	CallStatusInitiated CallStatus = "initiated"
	CallStatusAccepted  CallStatus = "accepted"
	CallStatusRejected  CallStatus = "rejected"
	CallStatusEnded     CallStatus = "ended"
	CallStatusMissed    CallStatus = "missed"
)

// IsTerminal reports whether no further transition may leave this state
func (s CallStatus) IsTerminal() bool {
	return s == CallStatusRejected || s == CallStatusEnded || s == CallStatusMissed
}

// CallHistory is one call attempt, correlated by the client generated CallID
type CallHistory struct {
	ID             uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	CallID         string     `json:"call_id" gorm:"size:100;not null;uniqueIndex:idx_call_conv"`
	ConversationID uuid.UUID  `json:"conversation_id" gorm:"type:uuid;not null;uniqueIndex:idx_call_conv"`
	CallerID       uuid.UUID  `json:"caller_id" gorm:"type:uuid;not null"`
	ReceiverID     uuid.UUID  `json:"receiver_id" gorm:"type:uuid;not null"`
	Type           CallType   `json:"type" gorm:"type:varchar(10);not null"`
	Status         CallStatus `json:"status" gorm:"type:varchar(20);not null;index"`
	Duration       float64    `json:"duration"`
	StartedAt      time.Time  `json:"started_at"`
	EndedAt        *time.Time `json:"ended_at"`
	EndedBy        *uuid.UUID `json:"ended_by" gorm:"type:uuid"`
	Reason         *string    `json:"reason" gorm:"size:255"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (c *CallHistory) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
