package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/quocanhngo/delivertalk/internal/config"
	"github.com/quocanhngo/delivertalk/internal/event"
	"github.com/quocanhngo/delivertalk/internal/handler"
	"github.com/quocanhngo/delivertalk/internal/middleware"
	"github.com/quocanhngo/delivertalk/internal/model"
	"github.com/quocanhngo/delivertalk/internal/repository"
	"github.com/quocanhngo/delivertalk/internal/service"
	"github.com/quocanhngo/delivertalk/internal/ws"
	"github.com/quocanhngo/delivertalk/migrations"
	"github.com/quocanhngo/delivertalk/pkg/auth"
	"github.com/quocanhngo/delivertalk/pkg/logger"
	"github.com/quocanhngo/delivertalk/pkg/notification"
	"github.com/quocanhngo/delivertalk/pkg/storage"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// @title           DeliverTalk API
// @version         1.0
// @description     Real-time chat, call signaling and live delivery tracking with Go, Gin, WebSocket, Redis Pub/Sub.

// @contact.name   API Support
// @contact.email  support@delivertalk.local

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      api.localhost
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	rollback := flag.Int("rollback", 0, "revert this many migrations and exit")
	flag.Parse()

	// ==================== Load Config ====================
	cfg := config.Load()
	logger.Init(cfg.App.Env, cfg.App.LogLevel)
	logger.Info().Str("env", cfg.App.Env).Msg("starting DeliverTalk API server")

	if *rollback > 0 {
		if err := migrations.Rollback(cfg.DB.URL(), *rollback); err != nil {
			logger.Fatal().Err(err).Msg("rollback failed")
		}
		return
	}

	// ==================== Database (PostgreSQL) ====================
	gormLogger := gormlogger.Default.LogMode(gormlogger.Info)
	if cfg.App.Env == "production" {
		gormLogger = gormlogger.Default.LogMode(gormlogger.Warn)
	}

	db, err := gorm.Open(postgres.Open(cfg.DB.DSN()), &gorm.Config{
		Logger:  gormLogger,
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	logger.Info().Msg("connected to PostgreSQL")

	// ==================== Run Migrations ====================
	if err := migrations.Run(cfg.DB.URL()); err != nil {
		logger.Warn().Err(err).Msg("migration failed, falling back to GORM AutoMigrate")
		if err := db.AutoMigrate(model.All()...); err != nil {
			logger.Fatal().Err(err).Msg("failed to migrate database")
		}
	}

	// ==================== Redis ====================
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       0,
	})

	ctx := context.Background()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	logger.Info().Str("addr", cfg.Redis.Addr()).Msg("connected to Redis")

	// ==================== Event Dispatch ====================
	var transport event.Transport = event.NewRedisTransport(rdb)
	if cfg.Kafka.Enabled() {
		kafka := event.NewKafkaTransport(cfg.Kafka.Brokers, cfg.Kafka.EventsTopic)
		defer kafka.Close()
		transport = event.Fanout{transport, kafka}
		logger.Info().Str("topic", cfg.Kafka.EventsTopic).Msg("mirroring events to Kafka")
	}
	events := event.NewDispatcher(transport, event.BreakerConfig{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		OpenTimeout:      cfg.Breaker.OpenTimeout,
		PublishTimeout:   cfg.Breaker.PublishTimeout,
	})

	// ==================== MinIO Storage ====================
	var store storage.Storage
	minioStorage, err := storage.NewMinIO(context.Background(), storage.Config{
		Endpoint:  cfg.MinIO.Endpoint,
		PublicURL: cfg.MinIO.PublicURL,
		AccessKey: cfg.MinIO.AccessKey,
		SecretKey: cfg.MinIO.SecretKey,
		Bucket:    cfg.MinIO.Bucket,
		UseSSL:    cfg.MinIO.UseSSL,
	})
	if err != nil {
		if cfg.App.Env == "production" {
			logger.Fatal().Err(err).Msg("MinIO not available")
		}
		logger.Warn().Err(err).Msg("MinIO not available, attachments kept in memory")
		store = storage.NewMemoryStorage("http://localhost:" + cfg.App.Port + "/media")
	} else {
		store = minioStorage
		logger.Info().Str("bucket", cfg.MinIO.Bucket).Msg("connected to MinIO")
	}

	// ==================== Initialize Layers ====================
	jwtManager := auth.NewJWTManager(cfg.JWT.Secret, cfg.JWT.Expiry)

	// Repositories
	userRepo := repository.NewUserRepository(db)
	convRepo := repository.NewConversationRepository(db)
	msgRepo := repository.NewMessageRepository(db)
	callRepo := repository.NewCallRepository(db)
	deliveryRepo := repository.NewDeliveryRepository(db)

	// Push notifications (optional)
	var notifier service.CallNotifier
	if fcm, _ := notification.NewNotificationService(cfg.Firebase.CredentialsFile, userRepo); fcm != nil {
		notifier = fcm
	}

	// Services
	presence := service.NewPresenceTracker(userRepo, convRepo, events, cfg.Presence.OnlineWindow)
	convService := service.NewConversationService(db, convRepo, msgRepo, userRepo, events)
	msgService := service.NewMessageService(db, convRepo, msgRepo, store, events)
	callService := service.NewCallService(db, convRepo, msgRepo, callRepo, store, events, notifier, cfg.Call.RingTimeout)
	deliveryService := service.NewDeliveryService(db, deliveryRepo, userRepo, convRepo, convService, events)
	policy := service.NewSubscriptionPolicy(convService, deliveryService)

	// WebSocket Hub (with Redis Pub/Sub for horizontal scaling)
	hub := ws.NewHub(rdb, func(userID uuid.UUID, online bool) {
		if online {
			presence.Touch(context.Background(), userID)
			return
		}
		presence.SetOffline(context.Background(), userID)
	})

	// Background loops
	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()
	go hub.Run(bgCtx)
	go presence.Run(bgCtx, cfg.Presence.SweepInterval)
	go callService.Run(bgCtx, cfg.Call.SweepInterval)

	// Handlers
	chatHandler := handler.NewChatHandler(convService, msgService)
	callHandler := handler.NewCallHandler(callService)
	deliveryHandler := handler.NewDeliveryHandler(deliveryService)
	presenceHandler := handler.NewPresenceHandler(presence, userRepo)
	wsHandler := handler.NewWSHandler(hub, policy, convService, presence, jwtManager, cfg.CORS.Origins)

	// ==================== Gin Router ====================
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger())

	// Serve swagger.json at /docs/swagger.json to avoid conflict with /swagger/* wildcard
	router.StaticFile("/docs/swagger.json", "./docs/swagger.json")
	url := ginSwagger.URL("/docs/swagger.json")
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, url))

	// Global middleware
	router.Use(middleware.CORSMiddleware(cfg.CORS))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "delivertalk-api",
			"time":    time.Now().Format(time.RFC3339),
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ==================== API Routes ====================
	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(jwtManager, rdb), middleware.PresenceTouch(presence))
	{
		// Conversations
		api.GET("/conversations", chatHandler.GetConversations)
		api.POST("/conversations/direct", chatHandler.GetOrCreateDirect)
		api.GET("/conversations/:id", chatHandler.GetConversation)
		api.POST("/conversations/:id/read", chatHandler.MarkAsRead)
		api.POST("/conversations/:id/typing", chatHandler.Typing)

		// Messages
		api.GET("/conversations/:id/messages", chatHandler.GetMessages)
		api.POST("/conversations/:id/messages", chatHandler.SendMessage)
		api.PATCH("/messages/:id", chatHandler.UpdateMessage)
		api.DELETE("/messages/:id", chatHandler.DeleteMessage)

		// Calls
		api.GET("/conversations/:id/calls", callHandler.History)
		api.POST("/conversations/:id/calls", callHandler.Initiate)
		api.POST("/conversations/:id/calls/:call_id/accept", callHandler.Accept)
		api.POST("/conversations/:id/calls/:call_id/reject", callHandler.Reject)
		api.POST("/conversations/:id/calls/:call_id/end", callHandler.End)

		// Deliveries
		api.POST("/deliveries/locations/initialize", middleware.RequireRole(model.RoleDelivery), deliveryHandler.InitializeLocations)
		api.POST("/deliveries/:id/location", deliveryHandler.UpdateLocation)
		api.POST("/deliveries/:id/conversation", deliveryHandler.StartConversation)
		api.POST("/deliveries/:id/status", middleware.RequireRole(model.RoleAdmin), deliveryHandler.UpdateStatus)
		api.GET("/deliveries/:id/tracking", deliveryHandler.Tracking)

		// Presence & devices
		api.POST("/presence/ping", presenceHandler.Ping)
		api.GET("/users/:id/presence", presenceHandler.GetPresence)
		api.POST("/devices", presenceHandler.RegisterDevice)
	}

	// WebSocket endpoint (auth via query parameter)
	router.GET("/ws", wsHandler.HandleWebSocket)

	// ==================== Start Server ====================
	srv := &http.Server{
		Addr:    ":" + cfg.App.Port,
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	logger.Info().
		Str("addr", "http://0.0.0.0:"+cfg.App.Port).
		Str("docs", "/swagger/index.html").
		Str("ws", "/ws?token=<jwt>").
		Msg("DeliverTalk API running")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down server")

	// Give ongoing requests 5 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	bgCancel()
	logger.Info().Msg("server exited gracefully")
}
