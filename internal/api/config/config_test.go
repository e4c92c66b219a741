package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	assert.Equal(t, ":8081", cfg.HTTP.Addr)
	assert.True(t, cfg.DBEnabled)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "ridewatch", cfg.Database.Database)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)

	assert.Equal(t, 60, cfg.Devices.CacheTTLSeconds)
	assert.Equal(t, "ridewatch:tasks", cfg.Tasks.QueueKey)
	assert.Equal(t, "/tasks/check", cfg.Tasks.CheckURL)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	os.Clearenv()
	os.Setenv("HTTP_ADDR", ":9191")
	os.Setenv("DB_ENABLED", "false")
	os.Setenv("REDIS_ADDR", "redis:6380")
	os.Setenv("TASK_QUEUE_KEY", "staging:tasks")
	os.Setenv("DEVICE_CACHE_TTL_SECONDS", "15")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9191", cfg.HTTP.Addr)
	assert.False(t, cfg.DBEnabled)
	assert.Equal(t, "redis:6380", cfg.Redis.Addr)
	assert.Equal(t, "staging:tasks", cfg.Tasks.QueueKey)
	assert.Equal(t, 15, cfg.Devices.CacheTTLSeconds)

	os.Clearenv()
}
