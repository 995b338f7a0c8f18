package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/quocanhngo/delivertalk/pkg/logger"
)

// Config holds all configuration for the application
type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	JWT      JWTConfig
	MinIO    MinIOConfig
	CORS     CORSConfig
	Presence PresenceConfig
	Call     CallConfig
	Kafka    KafkaConfig
	Firebase FirebaseConfig
	Breaker  BreakerConfig
}

type AppConfig struct {
	Env      string
	Port     string
	LogLevel string
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// DSN returns the PostgreSQL connection string
func (d DBConfig) DSN() string {
	return "host=" + d.Host +
		" user=" + d.User +
		" password=" + d.Password +
		" dbname=" + d.Name +
		" port=" + d.Port +
		" sslmode=" + d.SSLMode +
		" TimeZone=UTC"
}

// URL returns the PostgreSQL connection URL (for golang-migrate)
func (d DBConfig) URL() string {
	return "postgres://" + d.User + ":" + d.Password +
		"@" + d.Host + ":" + d.Port +
		"/" + d.Name + "?sslmode=" + d.SSLMode
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
}

// Addr returns the Redis address
func (r RedisConfig) Addr() string {
	return r.Host + ":" + r.Port
}

type JWTConfig struct {
	Secret string
	Expiry time.Duration
}

type MinIOConfig struct {
	Endpoint  string
	PublicURL string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// CORSConfig lists browser origins allowed to call the API. "*" opens it to all.
type CORSConfig struct {
	Origins []string
	MaxAge  time.Duration
}

// PresenceConfig controls the online window and the stale-user sweep
type PresenceConfig struct {
	OnlineWindow  time.Duration
	SweepInterval time.Duration
}

// CallConfig controls how long a call may ring before it is marked missed
type CallConfig struct {
	RingTimeout   time.Duration
	SweepInterval time.Duration
}

// KafkaConfig enables the event mirror when Brokers is set
type KafkaConfig struct {
	Brokers     string
	EventsTopic string
}

func (k KafkaConfig) Enabled() bool {
	return k.Brokers != ""
}

type FirebaseConfig struct {
	CredentialsFile string
}

// BreakerConfig tunes the circuit breaker in front of the event transport
type BreakerConfig struct {
	FailureThreshold uint32
	OpenTimeout      time.Duration
	PublishTimeout   time.Duration
}

// Load reads configuration from .env file and environment variables
func Load() *Config {
	// Load .env file (ignore error if not exists - e.g. in Docker)
	if err := godotenv.Load(); err != nil {
		logger.Warn().Msg("No .env file found, reading from environment variables")
	}

	return &Config{
		App: AppConfig{
			Env:      getEnv("APP_ENV", "development"),
			Port:     getEnv("APP_PORT", "8080"),
			LogLevel: getEnv("LOG_LEVEL", "info"),
		},
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "delivertalk"),
			Password: getEnv("DB_PASSWORD", "delivertalk"),
			Name:     getEnv("DB_NAME", "delivertalk"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", "default-secret"),
			Expiry: getDuration("JWT_EXPIRY", 24*time.Hour),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
			PublicURL: getEnv("MINIO_PUBLIC_URL", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", "minioadmin"),
			SecretKey: getEnv("MINIO_SECRET_KEY", "minioadmin"),
			Bucket:    getEnv("MINIO_BUCKET", "delivertalk-media"),
			UseSSL:    getEnv("MINIO_USE_SSL", "false") == "true",
		},
		CORS: CORSConfig{
			Origins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000"), ","),
			MaxAge:  getDuration("CORS_MAX_AGE", 12*time.Hour),
		},
		Presence: PresenceConfig{
			OnlineWindow:  getDuration("ONLINE_WINDOW", 5*time.Minute),
			SweepInterval: getDuration("PRESENCE_SWEEP_INTERVAL", time.Minute),
		},
		Call: CallConfig{
			RingTimeout:   getDuration("CALL_RING_TIMEOUT", 60*time.Second),
			SweepInterval: getDuration("CALL_SWEEP_INTERVAL", 15*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:     getEnv("KAFKA_BROKERS", ""),
			EventsTopic: getEnv("KAFKA_EVENTS_TOPIC", "delivertalk.events"),
		},
		Firebase: FirebaseConfig{
			CredentialsFile: getEnv("FIREBASE_CREDENTIALS_FILE", ""),
		},
		Breaker: BreakerConfig{
			FailureThreshold: uint32(getInt("BROADCAST_BREAKER_FAILURES", 5)),
			OpenTimeout:      getDuration("BROADCAST_BREAKER_OPEN", 10*time.Second),
			PublishTimeout:   getDuration("BROADCAST_PUBLISH_TIMEOUT", 2*time.Second),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func getInt(key string, fallback int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
