package model

import (
	"time"

	"github.com/google/uuid"
)

// ========== Conversation DTOs ==========

type DirectConversationRequest struct {
	ReceiverID uuid.UUID `json:"receiver_id" binding:"required"`
}

type DirectConversationResponse struct {
	Conversation ConversationResponse `json:"conversation"`
	IsNew        bool                 `json:"is_new"`
}

type ConversationResponse struct {
	Conversation
	UnreadCount int64 `json:"unread_count"`
}

type TypingRequest struct {
	Typing bool `json:"typing"`
}

// ========== Message DTOs ==========

// SendMessageRequest is the JSON form of a send; attachments arrive as multipart "file"
type SendMessageRequest struct {
	Body     *string     `json:"body" form:"body"`
	Type     MessageType `json:"type" form:"type"`
	Duration *float64    `json:"duration" form:"duration"`
}

type UpdateMessageRequest struct {
	Body string `json:"body" binding:"required"`
}

type MessageListRequest struct {
	Before string `form:"before"` // cursor for pagination (message ID)
	Limit  int    `form:"limit,default=50"`
}

// MessagePayload is the denormalized message shape sent to clients
type MessagePayload struct {
	ID             uuid.UUID   `json:"id"`
	ConversationID uuid.UUID   `json:"conversation_id"`
	UserID         uuid.UUID   `json:"user_id"`
	Body           *string     `json:"body"`
	Type           MessageType `json:"type"`
	Attachment     *string     `json:"attachment"`
	AttachmentURL  *string     `json:"attachment_url"`
	Duration       *float64    `json:"duration"`
	CallType       *CallType   `json:"call_type"`
	CallStatus     *CallStatus `json:"call_status"`
	CallID         *string     `json:"call_id"`
	CallReason     *string     `json:"call_reason"`
	ReadAt         *time.Time  `json:"read_at"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
	User           UserSummary `json:"user"`
}

// NewMessagePayload joins a message with its sender and resolved attachment URL
func NewMessagePayload(msg *Message, attachmentURL string) MessagePayload {
	p := MessagePayload{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		UserID:         msg.UserID,
		Body:           msg.Body,
		Type:           msg.Type,
		Attachment:     msg.Attachment,
		Duration:       msg.Duration,
		CallType:       msg.CallType,
		CallStatus:     msg.CallStatus,
		CallID:         msg.CallID,
		CallReason:     msg.CallReason,
		ReadAt:         msg.ReadAt,
		CreatedAt:      msg.CreatedAt,
		UpdatedAt:      msg.UpdatedAt,
		User:           msg.User.Summary(),
	}
	if attachmentURL != "" {
		p.AttachmentURL = &attachmentURL
	}
	return p
}

// ========== Call DTOs ==========

type InitiateCallRequest struct {
	CallID string   `json:"call_id" binding:"required,max=100"`
	Type   CallType `json:"type" binding:"required,oneof=audio video"`
}

type RejectCallRequest struct {
	Reason *string `json:"reason" binding:"omitempty,max=255"`
}

type EndCallRequest struct {
	Duration float64 `json:"duration" binding:"gte=0"`
	Reason   *string `json:"reason" binding:"omitempty,max=255"`
}

// CallResponse pairs a call record with the chat message a terminal transition produced
type CallResponse struct {
	Call    *CallHistory    `json:"call"`
	Message *MessagePayload `json:"message,omitempty"`
}

// ========== Delivery DTOs ==========

type LocationRequest struct {
	Lat *float64 `json:"lat" binding:"required"`
	Lng *float64 `json:"lng" binding:"required"`
}

type DeliveryStatusRequest struct {
	Status DeliveryStatus `json:"status" binding:"required"`
	Notes  string         `json:"notes"`
}

// DeliveryPayload is the delivery snapshot embedded in location events
type DeliveryPayload struct {
	ID                   uuid.UUID      `json:"id"`
	OrderID              uuid.UUID      `json:"order_id"`
	DeliveryAgentID      *uuid.UUID     `json:"delivery_agent_id"`
	Status               DeliveryStatus `json:"status"`
	AgentLat             *float64       `json:"agent_lat"`
	AgentLng             *float64       `json:"agent_lng"`
	EstimatedArrivalTime *time.Time     `json:"estimated_arrival_time"`
	ConversationID       *uuid.UUID     `json:"conversation_id"`
}

// Payload converts a Delivery to its wire snapshot
func (d *Delivery) Payload() DeliveryPayload {
	return DeliveryPayload{
		ID:                   d.ID,
		OrderID:              d.OrderID,
		DeliveryAgentID:      d.DeliveryAgentID,
		Status:               d.Status,
		AgentLat:             d.AgentLat,
		AgentLng:             d.AgentLng,
		EstimatedArrivalTime: d.EstimatedArrivalTime,
		ConversationID:       d.ConversationID,
	}
}

// BulkLocationResponse reports a cold-start location fan-out
type BulkLocationResponse struct {
	Updated []uuid.UUID       `json:"updated"`
	Failed  map[string]string `json:"failed,omitempty"`
}

// ========== Presence / Device DTOs ==========

type PresenceResponse struct {
	UserID   uuid.UUID  `json:"user_id"`
	IsOnline bool       `json:"is_online"`
	LastSeen *time.Time `json:"last_seen"`
}

type RegisterDeviceRequest struct {
	FCMToken   string `json:"fcm_token" binding:"required"`
	DeviceType string `json:"device_type" binding:"required"`
}

// ========== Event payloads ==========

type MessageSentPayload struct {
	Message MessagePayload `json:"message"`
}

type MessageDeletedPayload struct {
	MessageID      uuid.UUID `json:"message_id"`
	ConversationID uuid.UUID `json:"conversation_id"`
}

type MessageReadPayload struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	UserID         uuid.UUID `json:"user_id"`
	ReadAt         time.Time `json:"read_at"`
}

type UnreadUpdatedPayload struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	UserID         uuid.UUID `json:"user_id"`
	UnreadCount    int64     `json:"unread_count"`
}

type TypingPayload struct {
	ConversationID uuid.UUID   `json:"conversation_id"`
	User           UserSummary `json:"user"`
}

type CallEventPayload struct {
	Call    *CallHistory    `json:"call"`
	Caller  *UserSummary    `json:"caller,omitempty"`
	Message *MessagePayload `json:"message,omitempty"`
}

type LocationPayload struct {
	DeliveryID uuid.UUID       `json:"delivery_id"`
	Delivery   DeliveryPayload `json:"delivery"`
	Lat        float64         `json:"lat"`
	Lng        float64         `json:"lng"`
}

type DeliveryAssignedPayload struct {
	Delivery     DeliveryPayload `json:"delivery"`
	Conversation *Conversation   `json:"conversation"`
}

type DeliveryStatusPayload struct {
	Delivery DeliveryPayload  `json:"delivery"`
	Tracking DeliveryTracking `json:"tracking"`
}

// ========== Common ==========

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}
