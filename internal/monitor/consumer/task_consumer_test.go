package consumer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/chsnow/ride-watch/common/taskqueue"
	"github.com/chsnow/ride-watch/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testCheckURL = "/tasks/check"

// countingRunner 统计周期执行次数的假运行器
type countingRunner struct {
	mu    sync.Mutex
	count int
}

func (r *countingRunner) RunCycle(ctx context.Context) (models.CycleStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count++
	return models.CycleStatus{}, nil
}

func (r *countingRunner) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

func setupConsumerQueue(t *testing.T) *taskqueue.Queue {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	return taskqueue.NewQueue(client, "test:tasks", zap.NewNop())
}

// ============================================================================
// 启动与周期触发测试
// ============================================================================

func TestTaskConsumer_PrimesCycleOnStart(t *testing.T) {
	queue := setupConsumerQueue(t)
	runner := &countingRunner{}
	c := NewTaskConsumer(queue, testCheckURL, time.Hour, time.Hour, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Start(ctx, runner)

	require.Eventually(t, func() bool {
		return runner.Count() == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestTaskConsumer_DueTaskTriggersCycle(t *testing.T) {
	queue := setupConsumerQueue(t)
	require.NoError(t, queue.Enqueue(context.Background(), taskqueue.Task{URL: testCheckURL}))

	runner := &countingRunner{}
	c := NewTaskConsumer(queue, testCheckURL, 10*time.Millisecond, time.Hour, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Start(ctx, runner)

	// 启动点火一次 + 到期任务一次
	require.Eventually(t, func() bool {
		return runner.Count() == 2
	}, 2*time.Second, 5*time.Millisecond)

	pending, err := queue.Pending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), pending)
}

func TestTaskConsumer_CoalescesMultipleDueTasks(t *testing.T) {
	queue := setupConsumerQueue(t)
	for i := 0; i < 3; i++ {
		require.NoError(t, queue.Enqueue(context.Background(), taskqueue.Task{URL: testCheckURL}))
	}

	runner := &countingRunner{}
	c := NewTaskConsumer(queue, testCheckURL, 10*time.Millisecond, time.Hour, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Start(ctx, runner)

	// 同一轮弹出的三个任务合并为一次周期：点火一次 + 合并一次
	require.Eventually(t, func() bool {
		pending, err := queue.Pending(context.Background())
		return err == nil && pending == 0
	}, 2*time.Second, 5*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 2, runner.Count())
}

func TestTaskConsumer_DropsUnknownURLTask(t *testing.T) {
	queue := setupConsumerQueue(t)
	require.NoError(t, queue.Enqueue(context.Background(), taskqueue.Task{URL: "/tasks/unknown"}))

	runner := &countingRunner{}
	c := NewTaskConsumer(queue, testCheckURL, 10*time.Millisecond, time.Hour, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Start(ctx, runner)

	require.Eventually(t, func() bool {
		pending, err := queue.Pending(context.Background())
		return err == nil && pending == 0
	}, 2*time.Second, 5*time.Millisecond)

	// 未知任务被丢弃，不触发额外周期
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, runner.Count())
}

// ============================================================================
// 兜底定时器与停止测试
// ============================================================================

func TestTaskConsumer_BackupRePrimesEmptyQueue(t *testing.T) {
	queue := setupConsumerQueue(t)
	runner := &countingRunner{}
	c := NewTaskConsumer(queue, testCheckURL, time.Hour, 20*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Start(ctx, runner)

	// 队列始终为空，兜底定时器应重复点火
	require.Eventually(t, func() bool {
		return runner.Count() >= 3
	}, 2*time.Second, 5*time.Millisecond)
}

func TestTaskConsumer_BackupSkipsWhenTaskPending(t *testing.T) {
	queue := setupConsumerQueue(t)
	// 远期任务占位，调度链视为存活
	require.NoError(t, queue.Enqueue(context.Background(), taskqueue.Task{
		URL:    testCheckURL,
		FireAt: time.Now().Add(time.Hour).Unix(),
	}))

	runner := &countingRunner{}
	c := NewTaskConsumer(queue, testCheckURL, time.Hour, 20*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Start(ctx, runner)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, runner.Count())
}

func TestTaskConsumer_StopsOnContextCancel(t *testing.T) {
	queue := setupConsumerQueue(t)
	runner := &countingRunner{}
	c := NewTaskConsumer(queue, testCheckURL, time.Hour, time.Hour, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- c.Start(ctx, runner)
	}()

	require.Eventually(t, func() bool {
		return runner.Count() == 1
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop after context cancel")
	}
}

func TestNewTaskConsumer_DefaultsIntervals(t *testing.T) {
	queue := setupConsumerQueue(t)
	c := NewTaskConsumer(queue, testCheckURL, 0, 0, zap.NewNop())

	assert.Equal(t, time.Second, c.pollInterval)
	assert.Equal(t, 10*time.Minute, c.backupInterval)
}
