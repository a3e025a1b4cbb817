package main

import (
	"testing"
	"time"

	"github.com/fjod/go_cart/cartstore/internal/storage"
	"github.com/fjod/go_cart/cartstore/internal/store"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("REDIS_CART_TTL", "")
	t.Setenv("MAX_SESSIONS", "")

	cfg := loadConfig()

	assert.Equal(t, store.DefaultMaxSessions, cfg.MaxSessions)

	assert.Equal(t, "redis", cfg.StorageBackend)
	assert.Equal(t, storage.RetentionPeriod, cfg.RedisCartTTL)
	assert.Empty(t, cfg.KafkaBrokers)
}

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "mongo")
	t.Setenv("CATALOG_TIMEOUT", "250ms")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("MAX_SESSIONS", "500")

	cfg := loadConfig()

	assert.Equal(t, 500, cfg.MaxSessions)

	assert.Equal(t, "mongo", cfg.StorageBackend)
	assert.Equal(t, 250*time.Millisecond, cfg.CatalogTimeout)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
}

func TestGetDuration_InvalidFallsBack(t *testing.T) {
	t.Setenv("CATALOG_TIMEOUT", "soon")

	assert.Equal(t, time.Second, getDuration("CATALOG_TIMEOUT", time.Second))
}

func TestGetInt_InvalidFallsBack(t *testing.T) {
	t.Setenv("MAX_SESSIONS", "lots")

	assert.Equal(t, 42, getInt("MAX_SESSIONS", 42))
}
