package repository

import (
	"time"

	"github.com/google/uuid"
	"github.com/quocanhngo/delivertalk/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ConversationRepository handles database operations for Conversation
type ConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// WithTx returns a copy bound to tx
func (r *ConversationRepository) WithTx(tx *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: tx}
}

// CreateIfAbsent inserts conv unless its participants key already exists.
// Participants are only written when the conversation row itself was inserted.
// Must run inside a transaction.
func (r *ConversationRepository) CreateIfAbsent(conv *model.Conversation) (bool, error) {
	participants := conv.Participants
	conv.Participants = nil

	res := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "participants_key"}},
		DoNothing: true,
	}).Create(conv)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	for i := range participants {
		participants[i].ConversationID = conv.ID
	}
	if err := r.db.Create(&participants).Error; err != nil {
		return false, err
	}
	conv.Participants = participants
	return true, nil
}

// FindByID finds a conversation by ID with participants
func (r *ConversationRepository) FindByID(id uuid.UUID) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.
		Preload("Participants.User").
		Where("id = ?", id).
		First(&conv).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// FindByKey finds the conversation of a participant set
func (r *ConversationRepository) FindByKey(key string) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.
		Preload("Participants.User").
		Where("participants_key = ?", key).
		First(&conv).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// GetUserConversations returns all conversations for a user, most recent message first
func (r *ConversationRepository) GetUserConversations(userID uuid.UUID) ([]model.Conversation, error) {
	var conversations []model.Conversation
	memberOf := r.db.Model(&model.ConversationParticipant{}).
		Select("conversation_id").
		Where("user_id = ?", userID)

	err := r.db.
		Where("id IN (?)", memberOf).
		Preload("Participants.User").
		Order("COALESCE(last_message_at, created_at) DESC").
		Find(&conversations).Error
	return conversations, err
}

// GetConversationIDsForUser returns the ids of every conversation userID belongs to
func (r *ConversationRepository) GetConversationIDsForUser(userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.Model(&model.ConversationParticipant{}).
		Where("user_id = ?", userID).
		Pluck("conversation_id", &ids).Error
	return ids, err
}

// IsParticipant checks if a user is attached to a conversation
func (r *ConversationRepository) IsParticipant(conversationID, userID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.Model(&model.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Count(&count).Error
	return count > 0, err
}

// GetParticipantIDs returns all participant user IDs for a conversation
func (r *ConversationRepository) GetParticipantIDs(conversationID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.Model(&model.ConversationParticipant{}).
		Where("conversation_id = ?", conversationID).
		Pluck("user_id", &ids).Error
	return ids, err
}

// TouchLastMessage bumps last_message_at (to sort by latest activity)
func (r *ConversationRepository) TouchLastMessage(conversationID uuid.UUID, at time.Time) error {
	return r.db.Model(&model.Conversation{}).
		Where("id = ?", conversationID).
		Update("last_message_at", at).Error
}

// UpdateLastRead moves a participant's read cursor
func (r *ConversationRepository) UpdateLastRead(conversationID, userID uuid.UUID, at time.Time) error {
	return r.db.Model(&model.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Update("last_read_at", at).Error
}

// SetDeliveryIfEmpty links a delivery to a conversation that has none yet
func (r *ConversationRepository) SetDeliveryIfEmpty(conversationID, deliveryID uuid.UUID) error {
	return r.db.Model(&model.Conversation{}).
		Where("id = ? AND delivery_id IS NULL", conversationID).
		Update("delivery_id", deliveryID).Error
}
