package scheduler

import (
	"fmt"
	"time"

	"github.com/chsnow/ride-watch/internal/models"

	"go.uber.org/zap"
)

const (
	// DefaultNormalIntervalSeconds 常规巡检间隔
	DefaultNormalIntervalSeconds = 300
	// DefaultAlertIntervalSeconds 告警模式巡检间隔
	DefaultAlertIntervalSeconds = 60

	// quietWakeBufferSeconds 静默窗口结束后的固定安全缓冲
	quietWakeBufferSeconds = 60
	// minDelaySeconds 延迟下限
	minDelaySeconds = 60
)

// Config 调度策略配置
// 静默窗口与告警模式相互独立，部署变体可任意启用其中一项或两项
type Config struct {
	NormalIntervalSeconds int
	AlertIntervalSeconds  int

	QuietHoursEnabled bool
	QuietStartHour    int // 0-23
	QuietEndHour      int // 0-23

	AlertModeEnabled bool

	Timezone string // IANA 时区名，如 "America/New_York"
}

// Scheduler 巡检间隔调度器
// 纯函数决策：输入当前墙钟时间与上一周期的非运行数量，输出下一次
// 巡检的延迟；不保留任何历史决策状态
type Scheduler struct {
	cfg    Config
	loc    *time.Location
	logger *zap.Logger
}

// New 创建调度器，解析配置时区
func New(cfg Config, logger *zap.Logger) (*Scheduler, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}

	if cfg.NormalIntervalSeconds <= 0 {
		cfg.NormalIntervalSeconds = DefaultNormalIntervalSeconds
	}
	if cfg.AlertIntervalSeconds <= 0 {
		cfg.AlertIntervalSeconds = DefaultAlertIntervalSeconds
	}

	return &Scheduler{
		cfg:    cfg,
		loc:    loc,
		logger: logger,
	}, nil
}

// Decide 计算下一次巡检的调度决策
// 优先级：静默窗口 > 告警模式 > 常规间隔；静默窗口激活时
// 无条件压制告警加速
func (s *Scheduler) Decide(now time.Time, downCount int) models.ScheduleDecision {
	local := now.In(s.loc)

	if s.cfg.QuietHoursEnabled && inQuietWindow(local.Hour(), s.cfg.QuietStartHour, s.cfg.QuietEndHour) {
		delay := secondsUntilHour(local, s.cfg.QuietEndHour) + quietWakeBufferSeconds
		if delay < minDelaySeconds {
			delay = minDelaySeconds
		}
		return models.ScheduleDecision{
			DelaySeconds: delay,
			Reason: fmt.Sprintf("quiet hours: sleeping %s until %02d:00",
				formatSleep(delay), s.cfg.QuietEndHour),
			Suppressed: true,
		}
	}

	if s.cfg.AlertModeEnabled && downCount > 0 {
		return models.ScheduleDecision{
			DelaySeconds: s.cfg.AlertIntervalSeconds,
			Reason:       fmt.Sprintf("alert mode: %d rides not operating", downCount),
		}
	}

	return models.ScheduleDecision{
		DelaySeconds: s.cfg.NormalIntervalSeconds,
		Reason:       "normal interval",
	}
}

// inQuietWindow 判断小时是否落在静默窗口内
// start < end 为同日窗口 [start, end)；否则窗口跨午夜
func inQuietWindow(hour, start, end int) bool {
	if start < end {
		return hour >= start && hour < end
	}
	return hour >= start || hour < end
}

// secondsUntilHour 计算到下一个目标整点的剩余秒数（墙钟算术）
// 当日目标整点已过时滚动到次日
func secondsUntilHour(now time.Time, hour int) int {
	target := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !target.After(now) {
		target = target.AddDate(0, 0, 1)
	}
	return int(target.Sub(now).Seconds())
}

// formatSleep 将秒数格式化为可读时长，如 "6h31m" / "45m"
func formatSleep(seconds int) string {
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	if hours > 0 {
		return fmt.Sprintf("%dh%02dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}
