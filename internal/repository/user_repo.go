package repository

import (
	"time"

	"github.com/google/uuid"
	"github.com/quocanhngo/delivertalk/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserRepository handles database operations for User
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// WithTx returns a copy bound to tx
func (r *UserRepository) WithTx(tx *gorm.DB) *UserRepository {
	return &UserRepository{db: tx}
}

// Create inserts a new user
func (r *UserRepository) Create(user *model.User) error {
	return r.db.Create(user).Error
}

// FindByID finds a user by UUID
func (r *UserRepository) FindByID(id uuid.UUID) (*model.User, error) {
	var user model.User
	err := r.db.Where("id = ?", id).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// MarkOnline records activity. It reports true when the user was offline, or
// flagged online with activity older than staleBefore, and is now online.
func (r *UserRepository) MarkOnline(id uuid.UUID, at, staleBefore time.Time) (bool, error) {
	res := r.db.Model(&model.User{}).
		Where("id = ?", id).
		Where("online_status <> ? OR last_seen_at IS NULL OR last_seen_at < ?", model.StatusOnline, staleBefore).
		Updates(map[string]interface{}{
			"online_status": model.StatusOnline,
			"last_seen_at":  at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}
	return false, r.db.Model(&model.User{}).
		Where("id = ?", id).
		Update("last_seen_at", at).Error
}

// MarkOffline flips an online user to offline, optionally stamping last_seen_at.
// It reports true only when the status flipped.
func (r *UserRepository) MarkOffline(id uuid.UUID, lastSeen *time.Time) (bool, error) {
	updates := map[string]interface{}{
		"online_status": model.StatusOffline,
	}
	if lastSeen != nil {
		updates["last_seen_at"] = *lastSeen
	}
	res := r.db.Model(&model.User{}).
		Where("id = ? AND online_status = ?", id, model.StatusOnline).
		Updates(updates)
	return res.RowsAffected > 0, res.Error
}

// FindStaleOnline returns users still flagged online whose last activity is older than cutoff
func (r *UserRepository) FindStaleOnline(cutoff time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.Model(&model.User{}).
		Where("online_status = ?", model.StatusOnline).
		Where("last_seen_at IS NULL OR last_seen_at < ?", cutoff).
		Pluck("id", &ids).Error
	return ids, err
}

// UpdateLocation records the user's last known position
func (r *UserRepository) UpdateLocation(id uuid.UUID, lat, lng float64, at time.Time) error {
	return r.db.Model(&model.User{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_lat":         lat,
			"last_lng":         lng,
			"last_location_at": at,
		}).Error
}

// AddDevice adds or updates a device token
func (r *UserRepository) AddDevice(userID uuid.UUID, token string, deviceType string) error {
	device := model.UserDevice{
		UserID:       userID,
		FCMToken:     token,
		DeviceType:   deviceType,
		LastActiveAt: time.Now(),
	}
	// Upsert: on conflict do update
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "fcm_token"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"last_active_at": time.Now(),
			"device_type":    deviceType,
		}),
	}).Create(&device).Error
}

// GetUserDevices gets all devices for a user
func (r *UserRepository) GetUserDevices(userID uuid.UUID) ([]model.UserDevice, error) {
	var devices []model.UserDevice
	err := r.db.Where("user_id = ?", userID).Find(&devices).Error
	return devices, err
}

// RemoveDevice drops a push token FCM no longer accepts
func (r *UserRepository) RemoveDevice(userID uuid.UUID, token string) error {
	return r.db.Where("user_id = ? AND fcm_token = ?", userID, token).Delete(&model.UserDevice{}).Error
}
