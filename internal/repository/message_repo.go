package repository

import (
	"time"

	"github.com/google/uuid"
	"github.com/quocanhngo/delivertalk/internal/model"
	"gorm.io/gorm"
)

// MessageRepository handles database operations for Message
type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// WithTx returns a copy bound to tx
func (r *MessageRepository) WithTx(tx *gorm.DB) *MessageRepository {
	return &MessageRepository{db: tx}
}

// Create inserts a new message
func (r *MessageRepository) Create(msg *model.Message) error {
	return r.db.Create(msg).Error
}

// FindByID finds a message by ID
func (r *MessageRepository) FindByID(id uuid.UUID) (*model.Message, error) {
	var msg model.Message
	err := r.db.
		Preload("User").
		Where("id = ?", id).
		First(&msg).Error
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// FindCallMessage returns the message a terminal call transition produced
func (r *MessageRepository) FindCallMessage(conversationID uuid.UUID, callID string) (*model.Message, error) {
	var msg model.Message
	err := r.db.
		Preload("User").
		Where("conversation_id = ? AND call_id = ? AND type = ?", conversationID, callID, model.MessageTypeCall).
		Order("created_at DESC").
		First(&msg).Error
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// GetConversationMessages returns paginated messages for a conversation (cursor-based)
func (r *MessageRepository) GetConversationMessages(conversationID uuid.UUID, before *uuid.UUID, limit int) ([]model.Message, error) {
	messages := []model.Message{}
	query := r.db.
		Preload("User").
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC").
		Limit(limit)

	// Cursor-based pagination: get messages before a specific message
	if before != nil {
		var beforeMsg model.Message
		if err := r.db.Select("created_at").Where("id = ?", before).First(&beforeMsg).Error; err != nil {
			return nil, err
		}
		query = query.Where("created_at < ?", beforeMsg.CreatedAt)
	}

	err := query.Find(&messages).Error
	return messages, err
}

// GetLastMessage returns the most recent message in a conversation
func (r *MessageRepository) GetLastMessage(conversationID uuid.UUID) (*model.Message, error) {
	var msg model.Message
	err := r.db.
		Preload("User").
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC").
		First(&msg).Error
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// CountUnread counts messages from others, not yet read, newer than the user's cursor
func (r *MessageRepository) CountUnread(conversationID, userID uuid.UUID) (int64, error) {
	var count int64

	cursor := r.db.Table("conversation_participants").
		Select("COALESCE(last_read_at, '0001-01-01')").
		Where("conversation_id = ? AND user_id = ?", conversationID, userID)

	err := r.db.Model(&model.Message{}).
		Where("conversation_id = ? AND user_id <> ?", conversationID, userID).
		Where("read_at IS NULL").
		Where("created_at > (?)", cursor).
		Count(&count).Error
	return count, err
}

// MarkReadFor stamps read_at on every unread message readerID received in a conversation
func (r *MessageRepository) MarkReadFor(conversationID, readerID uuid.UUID, at time.Time) error {
	return r.db.Model(&model.Message{}).
		Where("conversation_id = ? AND user_id <> ? AND read_at IS NULL", conversationID, readerID).
		Update("read_at", at).Error
}

// UpdateBody replaces a message body
func (r *MessageRepository) UpdateBody(id uuid.UUID, body string, at time.Time) error {
	return r.db.Model(&model.Message{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"body": body, "updated_at": at}).Error
}

// Delete soft-deletes a message
func (r *MessageRepository) Delete(id uuid.UUID) error {
	return r.db.Where("id = ?", id).Delete(&model.Message{}).Error
}

// CountByConversation counts live messages in a conversation
func (r *MessageRepository) CountByConversation(conversationID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.Model(&model.Message{}).
		Where("conversation_id = ?", conversationID).
		Count(&count).Error
	return count, err
}
