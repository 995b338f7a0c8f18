package repository

import (
	"time"

	"github.com/google/uuid"
	"github.com/quocanhngo/delivertalk/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CallRepository handles database operations for CallHistory
type CallRepository struct {
	db *gorm.DB
}

func NewCallRepository(db *gorm.DB) *CallRepository {
	return &CallRepository{db: db}
}

// WithTx returns a copy bound to tx
func (r *CallRepository) WithTx(tx *gorm.DB) *CallRepository {
	return &CallRepository{db: tx}
}

// CreateIfAbsent inserts a call unless (call_id, conversation_id) already exists
func (r *CallRepository) CreateIfAbsent(call *model.CallHistory) (bool, error) {
	res := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "call_id"}, {Name: "conversation_id"}},
		DoNothing: true,
	}).Create(call)
	return res.RowsAffected > 0, res.Error
}

// Find looks a call up by its client id within a conversation
func (r *CallRepository) Find(conversationID uuid.UUID, callID string) (*model.CallHistory, error) {
	var call model.CallHistory
	err := r.db.
		Where("conversation_id = ? AND call_id = ?", conversationID, callID).
		First(&call).Error
	if err != nil {
		return nil, err
	}
	return &call, nil
}

// Transition applies updates only while the call is still in one of from.
// It reports false when another request moved the call first.
func (r *CallRepository) Transition(id uuid.UUID, from []model.CallStatus, updates map[string]interface{}) (bool, error) {
	res := r.db.Model(&model.CallHistory{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	return res.RowsAffected > 0, res.Error
}

// ListByConversation returns the call log of a conversation, newest first
func (r *CallRepository) ListByConversation(conversationID uuid.UUID, limit int) ([]model.CallHistory, error) {
	calls := []model.CallHistory{}
	err := r.db.
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC").
		Limit(limit).
		Find(&calls).Error
	return calls, err
}

// FindRingingSince returns calls still initiated that started before cutoff
func (r *CallRepository) FindRingingSince(cutoff time.Time) ([]model.CallHistory, error) {
	var calls []model.CallHistory
	err := r.db.
		Where("status = ? AND started_at < ?", model.CallStatusInitiated, cutoff).
		Find(&calls).Error
	return calls, err
}
