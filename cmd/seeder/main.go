package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/quocanhngo/delivertalk/internal/config"
	"github.com/quocanhngo/delivertalk/internal/model"
	"github.com/quocanhngo/delivertalk/pkg/auth"
	"github.com/quocanhngo/delivertalk/pkg/logger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type seedUser struct {
	name  string
	email string
	role  model.Role
}

var seedUsers = []seedUser{
	{"Lan Nguyen", "lan@delivertalk.local", model.RoleCustomer},
	{"Hoa Tran", "hoa@delivertalk.local", model.RoleCustomer},
	{"Minh Le", "minh@delivertalk.local", model.RoleDelivery},
	{"Ops Admin", "admin@delivertalk.local", model.RoleAdmin},
}

func main() {
	cfg := config.Load()
	logger.Init(cfg.App.Env, cfg.App.LogLevel)

	// Force DB logging off to avoid noise
	db, err := gorm.Open(postgres.Open(cfg.DB.DSN()), &gorm.Config{
		Logger:  gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	jwtManager := auth.NewJWTManager(cfg.JWT.Secret, 30*24*time.Hour)

	users := make(map[model.Role]*model.User)
	for _, su := range seedUsers {
		user, err := upsertUser(db, su)
		if err != nil {
			logger.Error().Err(err).Str("email", su.email).Msg("failed to seed user")
			continue
		}
		if _, ok := users[su.role]; !ok {
			users[su.role] = user
		}

		token, err := jwtManager.GenerateToken(user.ID, user.Name, string(user.Role))
		if err != nil {
			logger.Error().Err(err).Msg("failed to sign token")
			continue
		}
		fmt.Printf("%-8s %-24s %s\n  token: %s\n", user.Role, user.Email, user.ID, token)
	}

	customer, agent := users[model.RoleCustomer], users[model.RoleDelivery]
	if customer == nil || agent == nil {
		logger.Fatal().Msg("customer and agent are required to seed a delivery")
	}
	delivery, err := seedDelivery(db, customer, agent)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to seed delivery")
	}
	fmt.Printf("delivery %s (order %s) assigned to %s\n", delivery.ID, delivery.OrderID, agent.Name)

	logger.Info().Msg("seeding completed")
}

func upsertUser(db *gorm.DB, su seedUser) (*model.User, error) {
	var user model.User
	err := db.Where("email = ?", su.email).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	user = model.User{
		Name:         su.name,
		Email:        su.email,
		Role:         su.role,
		OnlineStatus: model.StatusOffline,
		Avatar:       fmt.Sprintf("https://api.dicebear.com/7.x/avataaars/svg?seed=%s", su.email),
	}
	if err := db.Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// seedDelivery creates one in-transit delivery for customer unless one already exists
func seedDelivery(db *gorm.DB, customer, agent *model.User) (*model.Delivery, error) {
	var existing model.Delivery
	err := db.Joins("JOIN orders ON orders.id = deliveries.order_id").
		Where("orders.user_id = ? AND deliveries.delivery_agent_id = ?", customer.ID, agent.ID).
		First(&existing).Error
	if err == nil {
		return &existing, nil
	}

	var delivery model.Delivery
	err = db.Transaction(func(tx *gorm.DB) error {
		order := model.Order{UserID: customer.ID, ShippingAddress: "12 Nguyen Hue, District 1, Ho Chi Minh City"}
		if err := tx.Create(&order).Error; err != nil {
			return err
		}
		eta := time.Now().UTC().Add(25 * time.Minute)
		delivery = model.Delivery{
			OrderID:              order.ID,
			DeliveryAgentID:      &agent.ID,
			Status:               model.DeliveryStatusInTransit,
			EstimatedArrivalTime: &eta,
		}
		if err := tx.Create(&delivery).Error; err != nil {
			return err
		}
		return tx.Create(&model.DeliveryTracking{
			DeliveryID: delivery.ID,
			Status:     model.DeliveryStatusInTransit,
			Notes:      "seeded",
		}).Error
	})
	return &delivery, err
}
