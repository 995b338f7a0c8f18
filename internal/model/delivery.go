package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DeliveryStatus values are owned by the order-fulfillment side
type DeliveryStatus string

const (
	DeliveryStatusPending        DeliveryStatus = "pending"
	DeliveryStatusAssigned       DeliveryStatus = "assigned"
	DeliveryStatusPickedUp       DeliveryStatus = "picked_up"
	DeliveryStatusOutForDelivery DeliveryStatus = "out_for_delivery"
	DeliveryStatusInTransit      DeliveryStatus = "in_transit"
	DeliveryStatusDelivered      DeliveryStatus = "delivered"
	DeliveryStatusCancelled      DeliveryStatus = "cancelled"
)

// ActiveDeliveryStatuses are the states in which an agent is on the road
var ActiveDeliveryStatuses = []DeliveryStatus{
	DeliveryStatusAssigned,
	DeliveryStatusPickedUp,
	DeliveryStatusOutForDelivery,
	DeliveryStatusInTransit,
}

// Order is the slice of the order entity the core reads
type Order struct {
	ID              uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	UserID          uuid.UUID `json:"user_id" gorm:"type:uuid;index;not null"`
	ShippingAddress string    `json:"shipping_address" gorm:"type:text"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// Delivery is owned by order fulfillment; the core writes location and conversation link
type Delivery struct {
	ID                   uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	OrderID              uuid.UUID      `json:"order_id" gorm:"type:uuid;index;not null"`
	DeliveryAgentID      *uuid.UUID     `json:"delivery_agent_id" gorm:"type:uuid;index"`
	Status               DeliveryStatus `json:"status" gorm:"type:varchar(30);not null;default:'pending';index"`
	AgentLat             *float64       `json:"agent_lat"`
	AgentLng             *float64       `json:"agent_lng"`
	EstimatedArrivalTime *time.Time     `json:"estimated_arrival_time"`
	CustomerAcceptedAt   *time.Time     `json:"customer_accepted_at"`
	ConversationID       *uuid.UUID     `json:"conversation_id" gorm:"type:uuid"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`

	// Relations
	Order Order `json:"-" gorm:"foreignKey:OrderID"`
}

func (d *Delivery) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// IsActive reports whether the delivery is currently on the road
func (d *Delivery) IsActive() bool {
	for _, s := range ActiveDeliveryStatuses {
		if d.Status == s {
			return true
		}
	}
	return false
}

// DeliveryTracking is an append-only audit row; never updated or deleted
type DeliveryTracking struct {
	ID         uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	DeliveryID uuid.UUID      `json:"delivery_id" gorm:"type:uuid;index;not null"`
	Status     DeliveryStatus `json:"status" gorm:"type:varchar(30);not null"`
	Notes      string         `json:"notes" gorm:"type:text"`
	Lat        *float64       `json:"lat"`
	Lng        *float64       `json:"lng"`
	CreatedAt  time.Time      `json:"created_at" gorm:"index"`
}

func (t *DeliveryTracking) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
