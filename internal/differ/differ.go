package differ

import (
	"context"
	"fmt"
	"strings"

	"github.com/chsnow/ride-watch/internal/models"
	"github.com/chsnow/ride-watch/internal/repository"
	"github.com/chsnow/ride-watch/internal/statuscache"

	"go.uber.org/zap"
)

// Fetcher 实时数据源接口
type Fetcher interface {
	FetchGroup(ctx context.Context, groupID string) (*models.LiveGroup, error)
}

// Differ 状态变化检测引擎
// 逐园区拉取观测，对照状态缓存找出状态迁移；缓存无条件写透，
// 持久层只在状态实际变化时写入
type Differ struct {
	fetcher     Fetcher
	cache       *statuscache.Cache
	repo        repository.StatusRepo
	nameFilters []string
	logger      *zap.Logger
}

// New 创建变化检测引擎
// nameFilters 为名称过滤子串（不区分大小写），空列表表示监控全部景点
func New(fetcher Fetcher, cache *statuscache.Cache, repo repository.StatusRepo, nameFilters []string, logger *zap.Logger) *Differ {
	lowered := make([]string, 0, len(nameFilters))
	for _, filter := range nameFilters {
		filter = strings.TrimSpace(filter)
		if filter != "" {
			lowered = append(lowered, strings.ToLower(filter))
		}
	}

	return &Differ{
		fetcher:     fetcher,
		cache:       cache,
		repo:        repo,
		nameFilters: lowered,
		logger:      logger,
	}
}

// Run 执行一轮变化检测
// 园区顺序处理，单个园区拉取失败记录日志后跳过；只有全部园区
// 都失败时才返回周期级错误。事件顺序与观测顺序一致
func (d *Differ) Run(ctx context.Context, groupIDs []string) (models.CycleResult, []models.StatusChangeEvent, error) {
	var result models.CycleResult
	var events []models.StatusChangeEvent
	failedGroups := 0

	for _, groupID := range groupIDs {
		group, err := d.fetcher.FetchGroup(ctx, groupID)
		if err != nil {
			failedGroups++
			d.logger.Warn("Group fetch failed, skipping",
				zap.String("group_id", groupID),
				zap.Error(err))
			continue
		}

		for _, entity := range group.LiveData {
			if entity.EntityType != models.EntityTypeAttraction {
				continue
			}
			if !d.nameMatches(entity.Name) {
				continue
			}

			status := entity.Status
			if status == "" {
				status = models.StatusUnknown
			}

			result.Checked++
			if models.IsNonOperating(status) {
				result.NonOperatingCount++
			}

			prev := d.cache.Get(entity.ID)
			if prev != nil && prev.Status != status {
				events = append(events, models.StatusChangeEvent{
					RideID:    entity.ID,
					RideName:  entity.Name,
					OldStatus: prev.Status,
					NewStatus: status,
				})
				result.ChangesDetected++
				d.logger.Info("Ride status changed",
					zap.String("ride_id", entity.ID),
					zap.String("ride_name", entity.Name),
					zap.String("old_status", prev.Status),
					zap.String("new_status", status))
			}

			record, changed := d.cache.Put(entity.ID, status, entity.Name)
			if changed {
				if err := d.repo.Upsert(ctx, &record); err != nil {
					// 落库失败不终止周期，缓存已是最新值
					d.logger.Error("Failed to persist ride status",
						zap.String("ride_id", entity.ID),
						zap.Error(err))
				}
			}
		}
	}

	if len(groupIDs) > 0 && failedGroups == len(groupIDs) {
		return result, events, fmt.Errorf("all %d group fetches failed", failedGroups)
	}

	return result, events, nil
}

// nameMatches 名称过滤：不区分大小写的子串匹配，过滤列表为空时全部通过
func (d *Differ) nameMatches(name string) bool {
	if len(d.nameFilters) == 0 {
		return true
	}
	lowered := strings.ToLower(name)
	for _, filter := range d.nameFilters {
		if strings.Contains(lowered, filter) {
			return true
		}
	}
	return false
}
