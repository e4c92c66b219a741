package consumer

import (
	"context"
	"time"

	"github.com/chsnow/ride-watch/common/taskqueue"
	"github.com/chsnow/ride-watch/internal/models"

	"go.uber.org/zap"
)

// CycleRunner 巡检周期执行接口
type CycleRunner interface {
	// RunCycle 执行一轮完整巡检，返回周期运行信息
	RunCycle(ctx context.Context) (models.CycleStatus, error)
}

// TaskConsumer 延迟任务消费者
// 轮询延迟队列中到期的巡检任务驱动周期执行；另带一个粗粒度兜底
// 定时器，在队列意外排空（自调度入队失败）时重新点火，避免调度链
// 永久中断
type TaskConsumer struct {
	queue          *taskqueue.Queue
	checkURL       string
	pollInterval   time.Duration
	backupInterval time.Duration
	logger         *zap.Logger
}

// NewTaskConsumer 创建任务消费者
func NewTaskConsumer(queue *taskqueue.Queue, checkURL string, pollInterval, backupInterval time.Duration, logger *zap.Logger) *TaskConsumer {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	if backupInterval <= 0 {
		backupInterval = 10 * time.Minute
	}
	return &TaskConsumer{
		queue:          queue,
		checkURL:       checkURL,
		pollInterval:   pollInterval,
		backupInterval: backupInterval,
		logger:         logger,
	}
}

// Start 启动消费循环（阻塞直到 ctx 取消）
// 启动时立即执行一次巡检为调度链点火；周期内部的自调度使用
// 排他入队，残留的旧任务会在点火后被替换掉
func (c *TaskConsumer) Start(ctx context.Context, runner CycleRunner) error {
	c.logger.Info("Task consumer started",
		zap.String("check_url", c.checkURL),
		zap.Duration("poll_interval", c.pollInterval),
		zap.Duration("backup_interval", c.backupInterval))

	c.runCycle(ctx, runner)

	pollTicker := time.NewTicker(c.pollInterval)
	defer pollTicker.Stop()
	backupTicker := time.NewTicker(c.backupInterval)
	defer backupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Task consumer stopped")
			return nil
		case <-pollTicker.C:
			c.consumeDue(ctx, runner)
		case <-backupTicker.C:
			c.ensureChainAlive(ctx, runner)
		}
	}
}

// consumeDue 弹出到期任务并执行
// 同一轮弹出的多个巡检任务只执行一次周期：周期自身会重新调度，
// 积压的重复任务没有追赶价值
func (c *TaskConsumer) consumeDue(ctx context.Context, runner CycleRunner) {
	tasks, err := c.queue.PopDue(ctx, time.Now())
	if err != nil {
		c.logger.Warn("Failed to poll due tasks", zap.Error(err))
		return
	}

	checkDue := false
	for _, task := range tasks {
		if task.URL == c.checkURL {
			checkDue = true
			c.logger.Debug("Due check task picked up", zap.String("task_id", task.ID))
			continue
		}
		c.logger.Warn("Dropping task with unknown URL",
			zap.String("task_id", task.ID),
			zap.String("url", task.URL))
	}

	if checkDue {
		c.runCycle(ctx, runner)
	}
}

// ensureChainAlive 兜底检查：队列排空说明某次自调度入队失败，重新点火
func (c *TaskConsumer) ensureChainAlive(ctx context.Context, runner CycleRunner) {
	pending, err := c.queue.Pending(ctx)
	if err != nil {
		c.logger.Warn("Failed to inspect task queue", zap.Error(err))
		return
	}
	if pending > 0 {
		return
	}

	c.logger.Warn("Task chain empty, re-priming check cycle")
	c.runCycle(ctx, runner)
}

func (c *TaskConsumer) runCycle(ctx context.Context, runner CycleRunner) {
	if _, err := runner.RunCycle(ctx); err != nil {
		c.logger.Error("Check cycle returned error", zap.Error(err))
	}
}
