package repository

import (
	"context"

	"github.com/chsnow/ride-watch/internal/models"
)

// StatusRepo 景点状态持久化接口
// 巡检核心只依赖批量读取（缓存预热）和单点 upsert（状态变化落库）
type StatusRepo interface {
	// ListAll 全量读取所有状态记录
	ListAll(ctx context.Context) ([]models.RideStatusRecord, error)
	// Get 按 ride_id 读取单条记录，不存在时返回 (nil, nil)
	Get(ctx context.Context, rideID string) (*models.RideStatusRecord, error)
	// Upsert 按 ride_id 写入或更新记录
	Upsert(ctx context.Context, record *models.RideStatusRecord) error
}

// DevicesRepo 推送目标设备持久化接口
type DevicesRepo interface {
	// ListActive 读取所有 active=true 的设备
	ListActive(ctx context.Context) ([]models.DeviceTarget, error)
	// List 分页读取设备列表，返回 (记录, 总数, error)
	List(ctx context.Context, includeInactive bool, page, size int) ([]models.DeviceTarget, int, error)
	// Get 按 token 读取单个设备，不存在时返回 (nil, nil)
	Get(ctx context.Context, token string) (*models.DeviceTarget, error)
	// Register 按 token upsert，合并语义：请求中缺省的字段不覆盖已有值
	Register(ctx context.Context, target models.DeviceTarget) error
	// Unregister 软删除：active=false，原因为用户注销
	Unregister(ctx context.Context, token string) error
	// MarkInvalid 软删除：active=false 且 invalid=true，原因由推送渠道提供
	MarkInvalid(ctx context.Context, token, reason string) error
}
