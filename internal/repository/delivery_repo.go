package repository

import (
	"time"

	"github.com/google/uuid"
	"github.com/quocanhngo/delivertalk/internal/model"
	"gorm.io/gorm"
)

// DeliveryRepository handles the delivery fields the core owns plus the tracking log
type DeliveryRepository struct {
	db *gorm.DB
}

func NewDeliveryRepository(db *gorm.DB) *DeliveryRepository {
	return &DeliveryRepository{db: db}
}

// WithTx returns a copy bound to tx
func (r *DeliveryRepository) WithTx(tx *gorm.DB) *DeliveryRepository {
	return &DeliveryRepository{db: tx}
}

// FindByID finds a delivery with its order
func (r *DeliveryRepository) FindByID(id uuid.UUID) (*model.Delivery, error) {
	var d model.Delivery
	err := r.db.
		Preload("Order").
		Where("id = ?", id).
		First(&d).Error
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// FindActiveByAgent returns the agent's deliveries that are on the road
func (r *DeliveryRepository) FindActiveByAgent(agentID uuid.UUID) ([]model.Delivery, error) {
	var deliveries []model.Delivery
	err := r.db.
		Preload("Order").
		Where("delivery_agent_id = ? AND status IN ?", agentID, model.ActiveDeliveryStatuses).
		Order("created_at ASC").
		Find(&deliveries).Error
	return deliveries, err
}

// UpdateAgentLocation writes the last known agent position (last write wins)
func (r *DeliveryRepository) UpdateAgentLocation(id uuid.UUID, lat, lng float64, at time.Time) error {
	return r.db.Model(&model.Delivery{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"agent_lat":  lat,
			"agent_lng":  lng,
			"updated_at": at,
		}).Error
}

// UpdateStatus sets the delivery status
func (r *DeliveryRepository) UpdateStatus(id uuid.UUID, status model.DeliveryStatus) error {
	return r.db.Model(&model.Delivery{}).
		Where("id = ?", id).
		Update("status", status).Error
}

// SetConversation links the delivery to its chat
func (r *DeliveryRepository) SetConversation(id, conversationID uuid.UUID) error {
	return r.db.Model(&model.Delivery{}).
		Where("id = ?", id).
		Update("conversation_id", conversationID).Error
}

// AppendTracking adds an audit row; tracking rows are never updated
func (r *DeliveryRepository) AppendTracking(t *model.DeliveryTracking) error {
	return r.db.Create(t).Error
}

// GetTracking returns the tracking log oldest first
func (r *DeliveryRepository) GetTracking(deliveryID uuid.UUID) ([]model.DeliveryTracking, error) {
	rows := []model.DeliveryTracking{}
	err := r.db.
		Where("delivery_id = ?", deliveryID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}
