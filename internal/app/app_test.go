package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharetube/jukebox/internal/engine"
)

func validConfig() *AppConfig {
	return &AppConfig{
		Host:                 "0.0.0.0",
		Port:                 8080,
		LogLevel:             "INFO",
		RedisPort:            6379,
		RedisHost:            "localhost",
		StoreBackend:         StoreRedis,
		RoomTTL:              24 * time.Hour,
		LockBackend:          LockMemory,
		ProviderURL:          "http://catalogue:8081",
		ProviderTimeout:      5 * time.Second,
		ProviderAttempts:     3,
		ProviderBackoff:      200 * time.Millisecond,
		ProviderMaxBackoff:   2 * time.Second,
		QueueTickInterval:    250 * time.Millisecond,
		RotationTickInterval: 500 * time.Millisecond,
		IdleSweepInterval:    30 * time.Second,
		IdleTimeout:          5 * time.Minute,
		PrepareOffset:        30 * time.Second,
		SoftOffset:           10 * time.Second,
		HardTolerance:        250 * time.Millisecond,
		LockCooldown:         2 * time.Second,
		LockTTL:              30 * time.Second,
		LockWait:             3 * time.Second,
		AdvanceTimeout:       10 * time.Second,
		VoteSkipRatio:        0.5,
		CoopVoteRatio:        2.0 / 3.0,
		AutoplayMax:          5,
		DriftIgnore:          200 * time.Millisecond,
		DriftHard:            800 * time.Millisecond,
		DriftJitter:          time.Second,
		CacheSize:            1024,
		CacheTTL:             2 * time.Second,
		ConflictRetries:      3,
		WriteTimeout:         5 * time.Second,
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	tests := []struct {
		name   string
		modify func(*AppConfig)
	}{
		{"bad port", func(c *AppConfig) { c.Port = 0 }},
		{"unknown log level", func(c *AppConfig) { c.LogLevel = "TRACE" }},
		{"unknown store", func(c *AppConfig) { c.StoreBackend = "sqlite" }},
		{"mongo without uri", func(c *AppConfig) { c.StoreBackend = StoreMongo }},
		{"unknown lock", func(c *AppConfig) { c.LockBackend = "etcd" }},
		{"provider url", func(c *AppConfig) { c.ProviderURL = "not a url" }},
		{"vote ratio above one", func(c *AppConfig) { c.VoteSkipRatio = 1.5 }},
		{"hard drift below ignore", func(c *AppConfig) { c.DriftHard = 100 * time.Millisecond }},
		{"max backoff below initial", func(c *AppConfig) { c.ProviderMaxBackoff = 100 * time.Millisecond }},
		{"cool-down within rotation tick", func(c *AppConfig) { c.LockCooldown = 400 * time.Millisecond }},
		{"soft beyond prepare", func(c *AppConfig) { c.SoftOffset = time.Minute }},
		{"hard beyond soft", func(c *AppConfig) { c.HardTolerance = 20 * time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateReportsEngineConfigErrors(t *testing.T) {
	cfg := validConfig()
	cfg.LockCooldown = 300 * time.Millisecond

	assert.ErrorIs(t, cfg.Validate(), engine.ErrInvalidConfig)
}

func TestValidateMongo(t *testing.T) {
	cfg := validConfig()
	cfg.StoreBackend = StoreMongo
	cfg.MongoURI = "mongodb://localhost:27017"
	cfg.MongoDatabase = "jukebox"

	assert.NoError(t, cfg.Validate())
}

func TestEngineConfigUsesOwnInterval(t *testing.T) {
	cfg := validConfig()

	assert.Equal(t, 250*time.Millisecond, cfg.engineConfig(cfg.QueueTickInterval).Interval)
	assert.Equal(t, 500*time.Millisecond, cfg.engineConfig(cfg.RotationTickInterval).Interval)
	assert.Equal(t, cfg.LockCooldown, cfg.engineConfig(cfg.QueueTickInterval).LockCooldown)
}

func TestNewLogger(t *testing.T) {
	_, err := newLogger("debug")
	require.NoError(t, err)

	_, err = newLogger("loud")
	assert.Error(t, err)
}
