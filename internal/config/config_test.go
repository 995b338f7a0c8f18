package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ONLINE_WINDOW", "")
	t.Setenv("KAFKA_BROKERS", "")

	cfg := Load()

	assert.Equal(t, 5*time.Minute, cfg.Presence.OnlineWindow)
	assert.Equal(t, 60*time.Second, cfg.Call.RingTimeout)
	assert.False(t, cfg.Kafka.Enabled())
	assert.Equal(t, uint32(5), cfg.Breaker.FailureThreshold)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ONLINE_WINDOW", "90s")
	t.Setenv("CALL_RING_TIMEOUT", "not-a-duration")
	t.Setenv("KAFKA_BROKERS", "kafka:9092")
	t.Setenv("CORS_ORIGINS", "http://a.test,http://b.test")

	cfg := Load()

	assert.Equal(t, 90*time.Second, cfg.Presence.OnlineWindow)
	assert.Equal(t, 60*time.Second, cfg.Call.RingTimeout)
	assert.True(t, cfg.Kafka.Enabled())
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORS.Origins)
}

func TestDBConfig_URL(t *testing.T) {
	d := DBConfig{Host: "db", Port: "5432", User: "u", Password: "p", Name: "n", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@db:5432/n?sslmode=disable", d.URL())
}
