package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/chsnow/ride-watch/internal/models"
)

// MemoryStatusRepo 内存版景点状态仓库
// DB 未就绪时的开发联测用，按 ride_id 存储，无持久化
type MemoryStatusRepo struct {
	mu      sync.RWMutex
	records map[string]models.RideStatusRecord
}

// NewMemoryStatusRepo 创建内存状态仓库
func NewMemoryStatusRepo() *MemoryStatusRepo {
	return &MemoryStatusRepo{
		records: map[string]models.RideStatusRecord{},
	}
}

// ListAll 全量读取，按 ride_id 排序保证遍历稳定
func (r *MemoryStatusRepo) ListAll(_ context.Context) ([]models.RideStatusRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := make([]models.RideStatusRecord, 0, len(r.records))
	for _, record := range r.records {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].RideID < records[j].RideID
	})
	return records, nil
}

// Get 按 ride_id 读取，不存在时返回 (nil, nil)
func (r *MemoryStatusRepo) Get(_ context.Context, rideID string) (*models.RideStatusRecord, error) {
	if rideID == "" {
		return nil, fmt.Errorf("ride_id is required")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[rideID]
	if !ok {
		return nil, nil
	}
	return &record, nil
}

// Upsert 按 ride_id 写入或更新
func (r *MemoryStatusRepo) Upsert(_ context.Context, record *models.RideStatusRecord) error {
	if record == nil {
		return fmt.Errorf("record is required")
	}
	if record.RideID == "" {
		return fmt.Errorf("ride_id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.records[record.RideID] = *record
	return nil
}
