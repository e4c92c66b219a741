package config

import (
	"os"
	"strconv"

	commoncfg "github.com/chsnow/ride-watch/common/config"
)

// Config 管理接口服务配置
// 与巡检服务共享数据库、Redis 与任务队列键，各自独立部署
type Config struct {
	HTTP struct {
		Addr string
	}
	DBEnabled bool
	Database  commoncfg.DatabaseConfig
	Redis     commoncfg.RedisConfig

	// 设备目录缓存
	Devices struct {
		CacheTTLSeconds int
	}

	// 延迟任务队列（触发巡检用，消费方是巡检服务）
	Tasks struct {
		QueueKey string
		CheckURL string
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8081")

	cfg.DBEnabled = getEnv("DB_ENABLED", "true") == "true"
	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "ridewatch")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.Devices.CacheTTLSeconds = getEnvInt("DEVICE_CACHE_TTL_SECONDS", 60)

	cfg.Tasks.QueueKey = getEnv("TASK_QUEUE_KEY", "ridewatch:tasks")
	cfg.Tasks.CheckURL = getEnv("TASK_CHECK_URL", "/tasks/check")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
