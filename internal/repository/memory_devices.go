package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/chsnow/ride-watch/internal/models"
)

// MemoryDevicesRepo 内存版设备仓库
// DB 未就绪时的开发联测用，语义与 PostgresDevicesRepo 保持一致
type MemoryDevicesRepo struct {
	mu      sync.RWMutex
	targets map[string]models.DeviceTarget
}

// NewMemoryDevicesRepo 创建内存设备仓库
func NewMemoryDevicesRepo() *MemoryDevicesRepo {
	return &MemoryDevicesRepo{
		targets: map[string]models.DeviceTarget{},
	}
}

func (r *MemoryDevicesRepo) snapshot(includeInactive bool) []models.DeviceTarget {
	targets := make([]models.DeviceTarget, 0, len(r.targets))
	for _, target := range r.targets {
		if !includeInactive && !target.Active {
			continue
		}
		targets = append(targets, target)
	}
	sort.Slice(targets, func(i, j int) bool {
		if targets[i].RegisteredAt.Equal(targets[j].RegisteredAt) {
			return targets[i].Token < targets[j].Token
		}
		return targets[i].RegisteredAt.Before(targets[j].RegisteredAt)
	})
	return targets
}

// ListActive 读取所有 active=true 的设备
func (r *MemoryDevicesRepo) ListActive(_ context.Context) ([]models.DeviceTarget, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot(false), nil
}

// List 分页读取设备列表
func (r *MemoryDevicesRepo) List(_ context.Context, includeInactive bool, page, size int) ([]models.DeviceTarget, int, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	all := r.snapshot(includeInactive)
	total := len(all)

	start := (page - 1) * size
	if start >= total {
		return []models.DeviceTarget{}, total, nil
	}
	end := start + size
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

// Get 按 token 读取，不存在时返回 (nil, nil)
func (r *MemoryDevicesRepo) Get(_ context.Context, token string) (*models.DeviceTarget, error) {
	if token == "" {
		return nil, fmt.Errorf("token is required")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	target, ok := r.targets[token]
	if !ok {
		return nil, nil
	}
	return &target, nil
}

// Register 按 token upsert，合并语义同 Postgres 实现
func (r *MemoryDevicesRepo) Register(_ context.Context, target models.DeviceTarget) error {
	if target.Token == "" {
		return fmt.Errorf("token is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	existing, ok := r.targets[target.Token]
	if !ok {
		existing = models.DeviceTarget{
			Token:        target.Token,
			RegisteredAt: now,
		}
	}

	// 缺省字段不覆盖已有值
	if target.Platform != "" {
		existing.Platform = target.Platform
	}
	existing.Active = true
	existing.Invalid = false
	existing.DisabledReason = ""
	existing.LastUpdated = now

	r.targets[target.Token] = existing
	return nil
}

// Unregister 软删除：active=false
func (r *MemoryDevicesRepo) Unregister(_ context.Context, token string) error {
	return r.deactivate(token, models.DisabledReasonUnregistered, false)
}

// MarkInvalid 软删除：active=false 且 invalid=true
func (r *MemoryDevicesRepo) MarkInvalid(_ context.Context, token, reason string) error {
	if reason == "" {
		reason = models.DisabledReasonInvalidToken
	}
	return r.deactivate(token, reason, true)
}

func (r *MemoryDevicesRepo) deactivate(token, reason string, invalid bool) error {
	if token == "" {
		return fmt.Errorf("token is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	target, ok := r.targets[token]
	if !ok {
		return fmt.Errorf("device target not found: token=%s", token)
	}

	target.Active = false
	if invalid {
		target.Invalid = true
	}
	target.DisabledReason = reason
	target.LastUpdated = time.Now()

	r.targets[token] = target
	return nil
}
