package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadEnvDefaults(t *testing.T) {
	cfg := LoadEnv()

	assert.Equal(t, "wareflow-inventory", cfg.App.ServiceName)
	assert.Equal(t, "localhost", cfg.Postgres.Host)
	assert.Equal(t, "wareflow_inventory", cfg.Postgres.DBName)
	assert.Equal(t, 10, cfg.Postgres.MaxOpenConns)
	assert.False(t, cfg.Redis.Enabled)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "inventory.events", cfg.Kafka.Topic)
	assert.Equal(t, "soft", cfg.Capacity.Enforcement)
	assert.Equal(t, 30*time.Minute, cfg.Reservation.DefaultTTL)
	assert.Equal(t, time.Minute, cfg.Sweeper.Interval)
	assert.Equal(t, 100, cfg.Sweeper.BatchSize)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("POSTGRES_HOST", "db.internal")
	t.Setenv("POSTGRES_MAX_OPEN_CONNS", "25")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("CAPACITY_ENFORCEMENT", "hard")
	t.Setenv("RESERVATION_DEFAULT_TTL", "45m")
	t.Setenv("SWEEPER_INTERVAL", "15s")

	cfg := LoadEnv()

	assert.Equal(t, "db.internal", cfg.Postgres.Host)
	assert.Equal(t, 25, cfg.Postgres.MaxOpenConns)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "hard", cfg.Capacity.Enforcement)
	assert.Equal(t, 45*time.Minute, cfg.Reservation.DefaultTTL)
	assert.Equal(t, 15*time.Second, cfg.Sweeper.Interval)
}

func TestLoadEnvIgnoresMalformedValues(t *testing.T) {
	t.Setenv("POSTGRES_MAX_OPEN_CONNS", "lots")
	t.Setenv("REDIS_ENABLED", "yep")
	t.Setenv("SWEEPER_INTERVAL", "soon")

	cfg := LoadEnv()

	assert.Equal(t, 10, cfg.Postgres.MaxOpenConns, "unparseable numbers fall back")
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, time.Minute, cfg.Sweeper.Interval)
}
