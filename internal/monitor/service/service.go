package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	commoncfg "github.com/chsnow/ride-watch/common/config"
	"github.com/chsnow/ride-watch/common/database"
	commonmqtt "github.com/chsnow/ride-watch/common/mqtt"
	commonredis "github.com/chsnow/ride-watch/common/redis"
	"github.com/chsnow/ride-watch/common/taskqueue"
	"github.com/chsnow/ride-watch/internal/devices"
	"github.com/chsnow/ride-watch/internal/differ"
	"github.com/chsnow/ride-watch/internal/feed"
	"github.com/chsnow/ride-watch/internal/models"
	"github.com/chsnow/ride-watch/internal/monitor/config"
	"github.com/chsnow/ride-watch/internal/monitor/consumer"
	"github.com/chsnow/ride-watch/internal/notify"
	"github.com/chsnow/ride-watch/internal/repository"
	"github.com/chsnow/ride-watch/internal/scheduler"
	"github.com/chsnow/ride-watch/internal/statuscache"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// MonitorService 巡检服务（整合各层）
// 一个周期 = 拉取 → 变化检测 → 通知分发 → 调度下一次；
// 周期本身不做并发保护，重入由上游（队列消费者单线程 + 手动触发幂等调度）兜住
type MonitorService struct {
	config      *config.Config
	db          *sql.DB // DBEnabled=false 时为 nil
	redisClient *redis.Client
	mqttClient  *commonmqtt.Client
	logger      *zap.Logger

	// 各层组件
	statusRepo   repository.StatusRepo
	devicesRepo  repository.DevicesRepo
	cache        *statuscache.Cache
	directory    *devices.Directory
	feedClient   *feed.Client
	differ       *differ.Differ
	scheduler    *scheduler.Scheduler
	dispatcher   *notify.Dispatcher
	queue        *taskqueue.Queue
	taskConsumer *consumer.TaskConsumer

	mu   sync.RWMutex
	last *models.CycleStatus

	now func() time.Time
}

// NewMonitorService 创建巡检服务
func NewMonitorService(cfg *config.Config, logger *zap.Logger) (*MonitorService, error) {
	// 1. 连接数据库（可选）
	var db *sql.DB
	var statusRepo repository.StatusRepo
	var devicesRepo repository.DevicesRepo
	if cfg.DBEnabled {
		var err error
		db, err = database.NewPostgresDB(&cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect database: %w", err)
		}
		statusRepo = repository.NewPostgresStatusRepo(db, logger)
		devicesRepo = repository.NewPostgresDevicesRepo(db, logger)
	} else {
		logger.Warn("Database disabled, using in-memory repositories")
		statusRepo = repository.NewMemoryStatusRepo()
		devicesRepo = repository.NewMemoryDevicesRepo()
	}

	// 2. 连接 Redis（任务队列依赖，必须可用）
	redisClient := commonredis.NewRedisClient(&cfg.Redis)
	if err := commonredis.Ping(context.Background(), redisClient); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	// 3. 连接 MQTT（可选事件桥）
	var mqttClient *commonmqtt.Client
	var bridge notify.EventPublisher
	if cfg.MQTT.Enabled {
		client, err := commonmqtt.NewClient(&commoncfg.MQTTConfig{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
			QoS:      byte(cfg.MQTT.QoS),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect mqtt broker: %w", err)
		}
		mqttClient = client
		bridge = notify.NewBridge(mqttClient, cfg.MQTT.TopicPrefix, byte(cfg.MQTT.QoS), logger)
	}

	// 4. 状态缓存与设备目录
	cache := statuscache.New(statusRepo, logger)
	directory := devices.NewDirectory(devicesRepo,
		time.Duration(cfg.Devices.CacheTTLSeconds)*time.Second, logger)

	// 5. 实时数据源与变化检测
	feedClient := feed.NewClient(cfg.Feed.BaseURL,
		time.Duration(cfg.Feed.TimeoutSeconds)*time.Second, logger)
	diff := differ.New(feedClient, cache, statusRepo, cfg.Feed.RideNameFilters, logger)

	// 6. 调度器
	sched, err := scheduler.New(scheduler.Config{
		NormalIntervalSeconds: cfg.Check.NormalIntervalSeconds,
		AlertIntervalSeconds:  cfg.Check.AlertIntervalSeconds,
		AlertModeEnabled:      cfg.Check.AlertModeEnabled,
		QuietHoursEnabled:     cfg.Check.QuietHoursEnabled,
		QuietStartHour:        cfg.Check.QuietStartHour,
		QuietEndHour:          cfg.Check.QuietEndHour,
		Timezone:              cfg.Check.Timezone,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	// 7. 通知渠道
	var push notify.PushSender
	if cfg.Push.Enabled {
		push = notify.NewPushClient(cfg.Push.BaseURL, cfg.Push.ServerKey,
			time.Duration(cfg.Push.TimeoutSeconds)*time.Second, logger)
	}
	var sms notify.SMSSender
	if cfg.SMS.Enabled {
		sms = notify.NewSMSClient(cfg.SMS.BaseURL, cfg.SMS.AccountSID,
			cfg.SMS.AuthToken, cfg.SMS.From,
			time.Duration(cfg.SMS.TimeoutSeconds)*time.Second, logger)
	}
	dispatcher := notify.NewDispatcher(directory, push, sms, cfg.SMS.Recipients, bridge, logger)

	// 8. 延迟任务队列与消费者
	queue := taskqueue.NewQueue(redisClient, cfg.Tasks.QueueKey, logger)
	taskConsumer := consumer.NewTaskConsumer(queue, cfg.Tasks.CheckURL,
		time.Duration(cfg.Tasks.PollIntervalSeconds)*time.Second,
		time.Duration(cfg.Tasks.BackupIntervalSeconds)*time.Second, logger)

	return &MonitorService{
		config:       cfg,
		db:           db,
		redisClient:  redisClient,
		mqttClient:   mqttClient,
		logger:       logger,
		statusRepo:   statusRepo,
		devicesRepo:  devicesRepo,
		cache:        cache,
		directory:    directory,
		feedClient:   feedClient,
		differ:       diff,
		scheduler:    sched,
		dispatcher:   dispatcher,
		queue:        queue,
		taskConsumer: taskConsumer,
		now:          time.Now,
	}, nil
}

// Start 启动服务（阻塞直到 ctx 取消）
// 先预热状态缓存再进入消费循环，首轮巡检即可检测变化
func (s *MonitorService) Start(ctx context.Context) error {
	s.logger.Info("Starting monitor service",
		zap.Strings("park_ids", s.config.Feed.ParkIDs),
		zap.Int("normal_interval_seconds", s.config.Check.NormalIntervalSeconds),
		zap.Int("alert_interval_seconds", s.config.Check.AlertIntervalSeconds),
		zap.Bool("quiet_hours_enabled", s.config.Check.QuietHoursEnabled))

	s.cache.Warm(ctx)

	return s.taskConsumer.Start(ctx, s)
}

// Stop 停止服务并释放连接
func (s *MonitorService) Stop() error {
	s.logger.Info("Stopping monitor service")

	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}

	if err := s.redisClient.Close(); err != nil {
		s.logger.Error("Failed to close redis", zap.Error(err))
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database", zap.Error(err))
		}
	}

	return nil
}

// RunCycle 执行一轮完整巡检
// 变化检测失败（所有园区都拉取失败）时跳过通知但仍然重新调度，
// 调度链在任何周期结果下都保持存活
func (s *MonitorService) RunCycle(ctx context.Context) (models.CycleStatus, error) {
	status := models.CycleStatus{RanAt: s.now()}

	result, events, err := s.differ.Run(ctx, s.config.Feed.ParkIDs)
	status.Result = result
	if err != nil {
		status.Error = err.Error()
		s.logger.Error("Check cycle failed", zap.Error(err))
	} else if len(events) > 0 {
		status.Dispatch = s.dispatcher.Dispatch(ctx, events)
	}

	status.Decision = s.scheduler.Decide(s.now(), result.NonOperatingCount)
	s.scheduleNext(ctx, status.Decision)

	s.setLast(status)

	s.logger.Info("Check cycle complete",
		zap.Int("checked", result.Checked),
		zap.Int("changes", result.ChangesDetected),
		zap.Int("non_operating", result.NonOperatingCount),
		zap.Int("notifications", status.Dispatch.Notifications),
		zap.Int("next_delay_seconds", status.Decision.DelaySeconds),
		zap.String("reason", status.Decision.Reason))

	return status, err
}

// scheduleNext 按调度决策入队下一次巡检任务
// 排他入队保证同一回调入口最多一个待触发任务；入队失败只记录
// 日志，由消费者的兜底定时器重新点火
func (s *MonitorService) scheduleNext(ctx context.Context, decision models.ScheduleDecision) {
	task := taskqueue.Task{
		URL:    s.config.Tasks.CheckURL,
		FireAt: s.now().Add(time.Duration(decision.DelaySeconds) * time.Second).Unix(),
	}
	if err := s.queue.EnqueueExclusive(ctx, task); err != nil {
		s.logger.Error("Failed to schedule next check",
			zap.Int("delay_seconds", decision.DelaySeconds),
			zap.Error(err))
		return
	}
	s.logger.Debug("Next check scheduled",
		zap.Int("delay_seconds", decision.DelaySeconds),
		zap.String("reason", decision.Reason))
}

func (s *MonitorService) setLast(status models.CycleStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = &status
}

// LastStatus 返回最近一次周期的运行信息，尚未执行过周期时 ok=false
func (s *MonitorService) LastStatus() (models.CycleStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return models.CycleStatus{}, false
	}
	return *s.last, true
}

// StatusSnapshot 返回状态缓存的全量快照
func (s *MonitorService) StatusSnapshot() []models.RideStatusRecord {
	return s.cache.Snapshot()
}

// QueuePending 返回队列中待触发的任务数
func (s *MonitorService) QueuePending(ctx context.Context) (int64, error) {
	return s.queue.Pending(ctx)
}

// DB 返回数据库连接（未启用持久化时为 nil），供诊断路由使用
func (s *MonitorService) DB() *sql.DB {
	return s.db
}

// RedisClient 返回 Redis 连接，供诊断路由使用
func (s *MonitorService) RedisClient() *redis.Client {
	return s.redisClient
}
