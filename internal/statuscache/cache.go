package statuscache

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/chsnow/ride-watch/internal/models"
	"github.com/chsnow/ride-watch/internal/repository"

	"go.uber.org/zap"
)

// Cache 景点状态内存缓存
// 进程生命周期内变化检测的依据。首次巡检前从持久层预热一次；
// 预热失败时仍标记为已初始化（fail-open），用一轮冗余落库换可用性
type Cache struct {
	mu      sync.RWMutex
	records map[string]models.RideStatusRecord
	warmed  bool

	repo   repository.StatusRepo
	logger *zap.Logger
}

// New 创建状态缓存
func New(repo repository.StatusRepo, logger *zap.Logger) *Cache {
	return &Cache{
		records: map[string]models.RideStatusRecord{},
		repo:    repo,
		logger:  logger,
	}
}

// Warm 从持久层全量预热，进程生命周期内只执行一次
// 预热失败只记录日志，缓存照常可用，后续写入会逐步回填
func (c *Cache) Warm(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.warmed {
		return
	}

	records, err := c.repo.ListAll(ctx)
	if err != nil {
		c.logger.Warn("Status cache warm failed, continuing with empty cache", zap.Error(err))
	} else {
		for _, record := range records {
			c.records[record.RideID] = record
		}
		c.logger.Info("Status cache warmed", zap.Int("records", len(records)))
	}

	c.warmed = true
}

// Get 读取缓存记录，未命中返回 nil
// 预热完成后无任何 I/O
func (c *Cache) Get(rideID string) *models.RideStatusRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()

	record, ok := c.records[rideID]
	if !ok {
		return nil
	}
	return &record
}

// Put 无条件更新缓存条目
// changed=true 当且仅当之前无记录或状态发生变化；只有此时调用方才落库
func (c *Cache) Put(rideID, status, name string) (models.RideStatusRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev, exists := c.records[rideID]
	changed := !exists || prev.Status != status

	record := models.RideStatusRecord{
		RideID:    rideID,
		RideName:  name,
		Status:    status,
		UpdatedAt: time.Now(),
	}
	c.records[rideID] = record

	return record, changed
}

// Snapshot 返回当前缓存的全量拷贝，按 ride_id 排序
func (c *Cache) Snapshot() []models.RideStatusRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()

	records := make([]models.RideStatusRecord, 0, len(c.records))
	for _, record := range c.records {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].RideID < records[j].RideID
	})
	return records
}

// Len 返回缓存条目数
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}
