package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestScheduler(t *testing.T, cfg Config) *Scheduler {
	if cfg.Timezone == "" {
		cfg.Timezone = "UTC"
	}
	s, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	return s
}

// ============================================
// 静默窗口测试
// ============================================

func TestDecide_QuietWrapWindow_MidnightSuppressed(t *testing.T) {
	s := newTestScheduler(t, Config{
		NormalIntervalSeconds: 300,
		AlertIntervalSeconds:  60,
		QuietHoursEnabled:     true,
		QuietStartHour:        23,
		QuietEndHour:          7,
	})

	// 00:30，跨午夜窗口 23-7 内
	now := time.Date(2026, 1, 15, 0, 30, 0, 0, time.UTC)
	decision := s.Decide(now, 0)

	assert.True(t, decision.Suppressed)
	// 到 07:00 共 6h30m，加 60 秒缓冲
	assert.Equal(t, 6*3600+30*60+60, decision.DelaySeconds)
	assert.Contains(t, decision.Reason, "6h31m")
	assert.Contains(t, decision.Reason, "07:00")
}

func TestDecide_QuietWrapWindow_RollsToNextDay(t *testing.T) {
	s := newTestScheduler(t, Config{
		QuietHoursEnabled: true,
		QuietStartHour:    23,
		QuietEndHour:      7,
	})

	// 23:30，当日 07:00 已过，唤醒点滚动到次日
	now := time.Date(2026, 1, 15, 23, 30, 0, 0, time.UTC)
	decision := s.Decide(now, 0)

	assert.True(t, decision.Suppressed)
	assert.Equal(t, 7*3600+30*60+60, decision.DelaySeconds)
}

func TestDecide_QuietSameDayWindow_Boundaries(t *testing.T) {
	s := newTestScheduler(t, Config{
		NormalIntervalSeconds: 300,
		QuietHoursEnabled:     true,
		QuietStartHour:        1,
		QuietEndHour:          7,
	})

	// 窗口起点（含）
	decision := s.Decide(time.Date(2026, 1, 15, 1, 0, 0, 0, time.UTC), 0)
	assert.True(t, decision.Suppressed)

	// 窗口最后一小时（含）
	decision = s.Decide(time.Date(2026, 1, 15, 6, 15, 0, 0, time.UTC), 0)
	assert.True(t, decision.Suppressed)
	assert.Equal(t, 45*60+60, decision.DelaySeconds)

	// 窗口终点（不含）
	decision = s.Decide(time.Date(2026, 1, 15, 7, 0, 0, 0, time.UTC), 0)
	assert.False(t, decision.Suppressed)
	assert.Equal(t, 300, decision.DelaySeconds)

	// 同日窗口不覆盖午夜前后
	decision = s.Decide(time.Date(2026, 1, 15, 0, 30, 0, 0, time.UTC), 0)
	assert.False(t, decision.Suppressed)
}

func TestDecide_QuietWindow_BufferApplied(t *testing.T) {
	s := newTestScheduler(t, Config{
		QuietHoursEnabled: true,
		QuietStartHour:    1,
		QuietEndHour:      7,
	})

	// 距窗口结束仅 30 秒，仍需附加 60 秒缓冲
	now := time.Date(2026, 1, 15, 6, 59, 30, 0, time.UTC)
	decision := s.Decide(now, 0)

	assert.True(t, decision.Suppressed)
	assert.Equal(t, 90, decision.DelaySeconds)
}

func TestDecide_QuietWindow_UsesConfiguredTimezone(t *testing.T) {
	s := newTestScheduler(t, Config{
		NormalIntervalSeconds: 300,
		QuietHoursEnabled:     true,
		QuietStartHour:        1,
		QuietEndHour:          7,
		Timezone:              "America/New_York",
	})

	// 11:59 UTC = 06:59 EST，仍在窗口内
	decision := s.Decide(time.Date(2026, 1, 15, 11, 59, 0, 0, time.UTC), 0)
	assert.True(t, decision.Suppressed)
	assert.Equal(t, 120, decision.DelaySeconds)

	// 12:00 UTC = 07:00 EST，窗口已结束
	decision = s.Decide(time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC), 0)
	assert.False(t, decision.Suppressed)
}

func TestDecide_QuietWindowOverridesAlertMode(t *testing.T) {
	s := newTestScheduler(t, Config{
		AlertIntervalSeconds: 60,
		QuietHoursEnabled:    true,
		QuietStartHour:       23,
		QuietEndHour:         7,
		AlertModeEnabled:     true,
	})

	// 窗口内即使有停运景点也保持压制
	now := time.Date(2026, 1, 15, 2, 0, 0, 0, time.UTC)
	decision := s.Decide(now, 3)

	assert.True(t, decision.Suppressed)
	assert.NotEqual(t, 60, decision.DelaySeconds)
}

func TestDecide_QuietHoursDisabled(t *testing.T) {
	s := newTestScheduler(t, Config{
		NormalIntervalSeconds: 300,
		QuietHoursEnabled:     false,
		QuietStartHour:        1,
		QuietEndHour:          7,
	})

	decision := s.Decide(time.Date(2026, 1, 15, 3, 0, 0, 0, time.UTC), 0)

	assert.False(t, decision.Suppressed)
	assert.Equal(t, 300, decision.DelaySeconds)
}

// ============================================
// 告警模式测试
// ============================================

func TestDecide_AlertModeSelection(t *testing.T) {
	s := newTestScheduler(t, Config{
		NormalIntervalSeconds: 300,
		AlertIntervalSeconds:  60,
		AlertModeEnabled:      true,
	})
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

	decision := s.Decide(now, 2)
	assert.Equal(t, 60, decision.DelaySeconds)
	assert.False(t, decision.Suppressed)
	assert.Contains(t, decision.Reason, "2 rides")

	decision = s.Decide(now, 0)
	assert.Equal(t, 300, decision.DelaySeconds)
	assert.Equal(t, "normal interval", decision.Reason)
}

func TestDecide_AlertModeDisabled(t *testing.T) {
	s := newTestScheduler(t, Config{
		NormalIntervalSeconds: 300,
		AlertIntervalSeconds:  60,
		AlertModeEnabled:      false,
	})

	decision := s.Decide(time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC), 5)

	assert.Equal(t, 300, decision.DelaySeconds)
}

// ============================================
// 构造与时间工具测试
// ============================================

func TestNew_InvalidTimezone(t *testing.T) {
	_, err := New(Config{Timezone: "Not/AZone"}, zap.NewNop())
	assert.Error(t, err)
}

func TestNew_DefaultIntervals(t *testing.T) {
	s := newTestScheduler(t, Config{})

	decision := s.Decide(time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC), 0)
	assert.Equal(t, DefaultNormalIntervalSeconds, decision.DelaySeconds)
}

func TestSecondsUntilHour(t *testing.T) {
	now := time.Date(2026, 1, 15, 0, 30, 0, 0, time.UTC)
	assert.Equal(t, 6*3600+30*60, secondsUntilHour(now, 7))

	// 目标整点已过，滚动到次日
	now = time.Date(2026, 1, 15, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, 23*3600, secondsUntilHour(now, 7))
}

func TestFormatSleep(t *testing.T) {
	assert.Equal(t, "6h31m", formatSleep(6*3600+31*60))
	assert.Equal(t, "45m", formatSleep(45*60))
	assert.Equal(t, "1h00m", formatSleep(3600))
}
