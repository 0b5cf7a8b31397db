package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, StoreMemory, cfg.StoreDriver)
	assert.Equal(t, 168*time.Hour, cfg.JWTTTL)
	assert.Equal(t, 256, cfg.WS.SendQueue)
	assert.Equal(t, 25*time.Second, cfg.WS.PingInterval)
	assert.Empty(t, cfg.RedisAddr)
	assert.Equal(t, cfg, Global)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("STORE_DRIVER", StorePostgres)
	t.Setenv("WS_PING_INTERVAL", "5s")
	t.Setenv("REDIS_ADDR", "127.0.0.1:6379")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, StorePostgres, cfg.StoreDriver)
	assert.Equal(t, 5*time.Second, cfg.WS.PingInterval)
	assert.Equal(t, "127.0.0.1:6379", cfg.RedisAddr)
}
