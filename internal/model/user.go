package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role is the identity collaborator's role for a user
type Role string

const (
	RoleCustomer Role = "customer"
	RoleDelivery Role = "delivery"
	RoleAdmin    Role = "admin"
)

// OnlineStatus is the persisted presence flag
type OnlineStatus string

const (
	StatusOnline  OnlineStatus = "online"
	StatusOffline OnlineStatus = "offline"
)

// User is the subset of the platform user the coordination core reads and writes
type User struct {
	ID             uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	Name           string         `json:"name" gorm:"size:100;not null"`
	Email          string         `json:"email" gorm:"uniqueIndex;size:255"`
	Avatar         string         `json:"avatar" gorm:"size:500;default:''"`
	Role           Role           `json:"role" gorm:"type:varchar(20);not null;default:'customer'"`
	OnlineStatus   OnlineStatus   `json:"online_status" gorm:"type:varchar(20);not null;default:'offline'"`
	LastSeenAt     *time.Time     `json:"last_seen_at"`
	LastLat        *float64       `json:"last_lat,omitempty"`
	LastLng        *float64       `json:"last_lng,omitempty"`
	LastLocationAt *time.Time     `json:"last_location_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `json:"-" gorm:"index"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// UserSummary is the sender/participant identity embedded in event payloads
type UserSummary struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Avatar string    `json:"avatar"`
}

// Summary converts User to the identity shape clients render
func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:     u.ID,
		Name:   u.Name,
		Avatar: u.Avatar,
	}
}
