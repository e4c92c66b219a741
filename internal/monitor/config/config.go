package config

import (
	"os"
	"strconv"
	"strings"

	commoncfg "github.com/chsnow/ride-watch/common/config"
)

// Config 巡检服务配置
type Config struct {
	HTTP struct {
		Addr string
	}
	DBEnabled bool
	Database  commoncfg.DatabaseConfig
	Redis     commoncfg.RedisConfig

	// 实时数据源
	Feed struct {
		BaseURL         string
		TimeoutSeconds  int
		ParkIDs         []string // 受监控的园区 ID 列表
		RideNameFilters []string // 景点名称过滤子串，空表示监控全部
	}

	// 巡检调度策略
	Check struct {
		NormalIntervalSeconds int
		AlertIntervalSeconds  int
		AlertModeEnabled      bool
		QuietHoursEnabled     bool
		QuietStartHour        int // 0-23
		QuietEndHour          int // 0-23
		Timezone              string
	}

	// 设备目录缓存
	Devices struct {
		CacheTTLSeconds int
	}

	// 推送渠道（FCM legacy HTTP）
	Push struct {
		Enabled        bool
		BaseURL        string
		ServerKey      string
		TimeoutSeconds int
	}

	// 短信渠道（Twilio 风格，可选的第二渠道）
	SMS struct {
		Enabled        bool
		BaseURL        string
		AccountSID     string
		AuthToken      string
		From           string
		Recipients     []string
		TimeoutSeconds int
	}

	// MQTT 事件桥（可选）
	MQTT struct {
		Enabled     bool
		Broker      string
		ClientID    string
		Username    string
		Password    string
		QoS         int
		TopicPrefix string
	}

	// 延迟任务队列
	Tasks struct {
		QueueKey              string
		CheckURL              string // 自调度任务的回调路径
		PollIntervalSeconds   int    // 到期任务轮询间隔
		BackupIntervalSeconds int    // 兜底触发间隔（队列排空时重新点火）
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

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

	cfg.Feed.BaseURL = getEnv("FEED_BASE_URL", "https://api.themeparks.wiki/v1")
	cfg.Feed.TimeoutSeconds = getEnvInt("FEED_TIMEOUT_SECONDS", 15)
	cfg.Feed.ParkIDs = splitCSV(getEnv("FEED_PARK_IDS", ""))
	cfg.Feed.RideNameFilters = splitCSV(getEnv("RIDE_NAME_FILTERS", ""))

	cfg.Check.NormalIntervalSeconds = getEnvInt("CHECK_NORMAL_INTERVAL_SECONDS", 300)
	cfg.Check.AlertIntervalSeconds = getEnvInt("CHECK_ALERT_INTERVAL_SECONDS", 60)
	cfg.Check.AlertModeEnabled = getEnv("CHECK_ALERT_MODE_ENABLED", "true") == "true"
	cfg.Check.QuietHoursEnabled = getEnv("QUIET_HOURS_ENABLED", "false") == "true"
	cfg.Check.QuietStartHour = getEnvInt("QUIET_START_HOUR", 1)
	cfg.Check.QuietEndHour = getEnvInt("QUIET_END_HOUR", 7)
	cfg.Check.Timezone = getEnv("CHECK_TIMEZONE", "America/New_York")

	cfg.Devices.CacheTTLSeconds = getEnvInt("DEVICE_CACHE_TTL_SECONDS", 60)

	cfg.Push.Enabled = getEnv("PUSH_ENABLED", "true") == "true"
	cfg.Push.BaseURL = getEnv("PUSH_BASE_URL", "https://fcm.googleapis.com")
	cfg.Push.ServerKey = getEnv("PUSH_SERVER_KEY", "")
	cfg.Push.TimeoutSeconds = getEnvInt("PUSH_TIMEOUT_SECONDS", 10)

	cfg.SMS.Enabled = getEnv("SMS_ENABLED", "false") == "true"
	cfg.SMS.BaseURL = getEnv("SMS_BASE_URL", "https://api.twilio.com")
	cfg.SMS.AccountSID = getEnv("SMS_ACCOUNT_SID", "")
	cfg.SMS.AuthToken = getEnv("SMS_AUTH_TOKEN", "")
	cfg.SMS.From = getEnv("SMS_FROM", "")
	cfg.SMS.Recipients = splitCSV(getEnv("SMS_RECIPIENTS", ""))
	cfg.SMS.TimeoutSeconds = getEnvInt("SMS_TIMEOUT_SECONDS", 10)

	cfg.MQTT.Enabled = getEnv("MQTT_ENABLED", "false") == "true"
	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "ridewatch-monitor")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.QoS = getEnvInt("MQTT_QOS", 1)
	cfg.MQTT.TopicPrefix = getEnv("MQTT_TOPIC_PREFIX", "ridewatch/status")

	cfg.Tasks.QueueKey = getEnv("TASK_QUEUE_KEY", "ridewatch:tasks")
	cfg.Tasks.CheckURL = getEnv("TASK_CHECK_URL", "/tasks/check")
	cfg.Tasks.PollIntervalSeconds = getEnvInt("TASK_POLL_INTERVAL_SECONDS", 1)
	cfg.Tasks.BackupIntervalSeconds = getEnvInt("TASK_BACKUP_INTERVAL_SECONDS", 600)

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

// splitCSV 拆分逗号分隔列表，去除空白项
func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			items = append(items, part)
		}
	}
	return items
}
