// Package testutil sets up in-memory databases and fixtures for package tests.
package testutil

import (
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/quocanhngo/delivertalk/internal/model"
	"github.com/quocanhngo/delivertalk/pkg/logger"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// SetupTestDB opens a private in-memory SQLite database with every model migrated.
// A single connection serializes transactions the way row locks would in Postgres.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	logger.InitWithWriter("test", "disabled", io.Discard)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(model.All()...))
	return db
}

// Clock is a manual clock. Every reading advances it by Step so rows written
// in sequence get distinct, ordered timestamps.
type Clock struct {
	mu   sync.Mutex
	now  time.Time
	Step time.Duration
}

func NewClock() *Clock {
	return &Clock{
		now:  time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC),
		Step: time.Millisecond,
	}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now
	c.now = c.now.Add(c.Step)
	return now
}

// Peek returns the current reading without advancing
func (c *Clock) Peek() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// CreateUser inserts a user with the given role
func CreateUser(t *testing.T, db *gorm.DB, name string, role model.Role) *model.User {
	t.Helper()
	u := &model.User{
		Name:         name,
		Email:        fmt.Sprintf("%s-%s@delivertalk.test", name, uuid.NewString()[:8]),
		Role:         role,
		OnlineStatus: model.StatusOffline,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

// CreateDelivery inserts an order for customer and a delivery assigned to agent
func CreateDelivery(t *testing.T, db *gorm.DB, customerID uuid.UUID, agentID *uuid.UUID, status model.DeliveryStatus) *model.Delivery {
	t.Helper()
	order := &model.Order{UserID: customerID, ShippingAddress: "12 Nguyen Hue, District 1"}
	require.NoError(t, db.Create(order).Error)

	d := &model.Delivery{
		OrderID:         order.ID,
		DeliveryAgentID: agentID,
		Status:          status,
	}
	require.NoError(t, db.Create(d).Error)
	d.Order = *order
	return d
}
