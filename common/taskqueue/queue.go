package taskqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Task 延迟任务
// URL 标识回调入口（如 "/tasks/check"），Payload 为任意 JSON，
// FireAt 为触发时间（Unix 秒）
type Task struct {
	ID      string          `json:"id"`
	URL     string          `json:"url"`
	Payload json.RawMessage `json:"payload,omitempty"`
	FireAt  int64           `json:"fire_at"`
}

// Queue Redis 延迟任务队列
// 底层使用 sorted set：member 为任务 JSON，score 为触发时间，
// 消费方轮询弹出已到期的任务
type Queue struct {
	client *redis.Client
	key    string
	logger *zap.Logger
}

// NewQueue 创建延迟任务队列
func NewQueue(client *redis.Client, key string, logger *zap.Logger) *Queue {
	return &Queue{
		client: client,
		key:    key,
		logger: logger,
	}
}

// Enqueue 任务入队
// ID 为空时自动生成，FireAt 为 0 时立即到期
func (q *Queue) Enqueue(ctx context.Context, task Task) error {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.FireAt == 0 {
		task.FireAt = time.Now().Unix()
	}

	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	if err := q.client.ZAdd(ctx, q.key, &redis.Z{
		Score:  float64(task.FireAt),
		Member: string(data),
	}).Err(); err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	q.logger.Debug("Task enqueued",
		zap.String("task_id", task.ID),
		zap.String("url", task.URL),
		zap.Int64("fire_at", task.FireAt))

	return nil
}

// EnqueueExclusive 任务入队，并移除队列中相同 URL 的既有任务
// 自调度链使用：保证每个回调入口最多只有一个待触发任务，
// 进程重启或重复入队都不会让调度链分叉
func (q *Queue) EnqueueExclusive(ctx context.Context, task Task) error {
	members, err := q.client.ZRange(ctx, q.key, 0, -1).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("failed to scan task queue: %w", err)
	}

	for _, member := range members {
		var existing Task
		if err := json.Unmarshal([]byte(member), &existing); err != nil {
			continue
		}
		if existing.URL != task.URL {
			continue
		}
		if err := q.client.ZRem(ctx, q.key, member).Err(); err != nil {
			q.logger.Warn("Failed to remove superseded task",
				zap.String("task_id", existing.ID),
				zap.Error(err))
		}
	}

	return q.Enqueue(ctx, task)
}

// PopDue 弹出所有已到期的任务
// 每个任务先从队列移除再返回，移除失败的任务跳过（下轮重试）
func (q *Queue) PopDue(ctx context.Context, now time.Time) ([]Task, error) {
	members, err := q.client.ZRangeByScore(ctx, q.key, &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", now.Unix()),
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read due tasks: %w", err)
	}

	var tasks []Task
	for _, member := range members {
		removed, err := q.client.ZRem(ctx, q.key, member).Result()
		if err != nil {
			q.logger.Warn("Failed to remove due task, will retry next round", zap.Error(err))
			continue
		}
		if removed == 0 {
			// 已被其它消费者取走
			continue
		}

		var task Task
		if err := json.Unmarshal([]byte(member), &task); err != nil {
			q.logger.Warn("Dropping malformed task payload", zap.Error(err))
			continue
		}
		tasks = append(tasks, task)
	}

	return tasks, nil
}

// Pending 返回队列中待触发的任务数
func (q *Queue) Pending(ctx context.Context) (int64, error) {
	return q.client.ZCard(ctx, q.key).Result()
}
