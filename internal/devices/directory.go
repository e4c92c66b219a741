package devices

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chsnow/ride-watch/internal/models"
	"github.com/chsnow/ride-watch/internal/repository"

	"go.uber.org/zap"
)

// DefaultCacheTTL 目标列表缓存的默认有效期
const DefaultCacheTTL = 60 * time.Second

// Directory 推送目标设备目录
// 读路径走 TTL 缓存，避免每次分发都全量查库；
// 任何变更操作（注册/注销/标记失效）之后强制失效缓存
type Directory struct {
	repo   repository.DevicesRepo
	logger *zap.Logger

	mu        sync.Mutex
	cached    []models.DeviceTarget
	fetchedAt time.Time
	ttl       time.Duration

	now func() time.Time
}

// NewDirectory 创建设备目录
// ttl<=0 时使用 DefaultCacheTTL
func NewDirectory(repo repository.DevicesRepo, ttl time.Duration, logger *zap.Logger) *Directory {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Directory{
		repo:   repo,
		logger: logger,
		ttl:    ttl,
		now:    time.Now,
	}
}

// ActiveTargets 返回所有活跃设备
// 缓存非空且未过期时直接返回缓存，否则从持久层全量重读并重置计时
func (d *Directory) ActiveTargets(ctx context.Context) ([]models.DeviceTarget, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if len(d.cached) > 0 && now.Sub(d.fetchedAt) < d.ttl {
		return append([]models.DeviceTarget(nil), d.cached...), nil
	}

	targets, err := d.repo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load active device targets: %w", err)
	}

	d.cached = targets
	d.fetchedAt = now
	d.logger.Debug("Device target cache refreshed", zap.Int("targets", len(targets)))

	return append([]models.DeviceTarget(nil), targets...), nil
}

// Invalidate 强制下一次 ActiveTargets 重新读取持久层
func (d *Directory) Invalidate() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cached = nil
	d.fetchedAt = time.Time{}
}

// Register 注册设备（按 token upsert，合并语义）并失效缓存
func (d *Directory) Register(ctx context.Context, target models.DeviceTarget) error {
	if err := d.repo.Register(ctx, target); err != nil {
		return err
	}
	d.Invalidate()
	d.logger.Info("Device registered",
		zap.String("token", target.Token),
		zap.String("platform", target.Platform))
	return nil
}

// Unregister 注销设备（软删除）并失效缓存
func (d *Directory) Unregister(ctx context.Context, token string) error {
	if err := d.repo.Unregister(ctx, token); err != nil {
		return err
	}
	d.Invalidate()
	d.logger.Info("Device unregistered", zap.String("token", token))
	return nil
}

// MarkInvalid 按推送渠道报告的永久失效信号停用设备并失效缓存
func (d *Directory) MarkInvalid(ctx context.Context, token, reason string) error {
	if err := d.repo.MarkInvalid(ctx, token, reason); err != nil {
		return err
	}
	d.Invalidate()
	d.logger.Info("Device marked invalid",
		zap.String("token", token),
		zap.String("reason", reason))
	return nil
}

// List 分页读取设备列表（直接透传持久层，不走缓存）
func (d *Directory) List(ctx context.Context, includeInactive bool, page, size int) ([]models.DeviceTarget, int, error) {
	return d.repo.List(ctx, includeInactive, page, size)
}

// Get 按 token 读取单个设备，不存在时返回 (nil, nil)
func (d *Directory) Get(ctx context.Context, token string) (*models.DeviceTarget, error) {
	return d.repo.Get(ctx, token)
}
