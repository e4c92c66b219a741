package models

import (
	"time"
)

// 景点运行状态（上游为开放字符串集合，这里只枚举已知值）
const (
	StatusOperating     = "OPERATING"
	StatusDown          = "DOWN"
	StatusClosed        = "CLOSED"
	StatusRefurbishment = "REFURBISHMENT"
	StatusUnknown       = "UNKNOWN"
)

// nonOperatingStatuses 非运行状态集合（用于告警模式判定）
var nonOperatingStatuses = map[string]bool{
	StatusDown:          true,
	StatusRefurbishment: true,
	StatusClosed:        true,
}

// IsNonOperating 判断状态是否属于非运行集合
// 上游未见过的状态值一律视为运行中，避免误触发告警模式
func IsNonOperating(status string) bool {
	return nonOperatingStatuses[status]
}

// RideStatusRecord 景点状态记录（对应 ride_status 表）
// 首次观测时创建，状态变化时原地更新，永不删除
type RideStatusRecord struct {
	RideID    string    `json:"ride_id" db:"ride_id"`
	RideName  string    `json:"ride_name" db:"ride_name"`
	Status    string    `json:"status" db:"status"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// StatusChangeEvent 状态变化事件
// 单个巡检周期内产生并立即被通知分发消费，不落库
type StatusChangeEvent struct {
	RideID    string `json:"ride_id"`
	RideName  string `json:"ride_name"`
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
}

// 推送平台
const (
	PlatformIOS     = "ios"
	PlatformAndroid = "android"
	PlatformWeb     = "web"
)

// 设备停用原因
const (
	DisabledReasonUnregistered = "unregistered"  // 用户主动注销
	DisabledReasonInvalidToken = "invalid_token" // 推送渠道报告 token 永久失效
)

// DeviceTarget 推送目标设备（对应 device_targets 表）
// 注册按 token upsert；注销或 token 失效时仅置 active=false，不物理删除
type DeviceTarget struct {
	Token          string    `json:"token" db:"token"`
	Platform       string    `json:"platform" db:"platform"` // ios, android, web
	Active         bool      `json:"active" db:"active"`
	Invalid        bool      `json:"invalid" db:"invalid"`
	DisabledReason string    `json:"disabled_reason,omitempty" db:"disabled_reason"`
	RegisteredAt   time.Time `json:"registered_at" db:"registered_at"`
	LastUpdated    time.Time `json:"last_updated" db:"last_updated"`
}

// ScheduleDecision 下一次巡检的调度决策（纯函数输出，不持久化）
type ScheduleDecision struct {
	DelaySeconds int    `json:"delay_seconds"`
	Reason       string `json:"reason"`
	Suppressed   bool   `json:"suppressed"`
}

// CycleResult 单次巡检周期的聚合计数
type CycleResult struct {
	Checked           int `json:"checked"`
	ChangesDetected   int `json:"changes_detected"`
	NonOperatingCount int `json:"non_operating_count"`
}

// ChannelStats 单个通知渠道的发送计数
type ChannelStats struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// DispatchResult 单次通知分发的分渠道计数
type DispatchResult struct {
	Notifications int          `json:"notifications"`
	Push          ChannelStats `json:"push"`
	SMS           ChannelStats `json:"sms"`
	MQTT          ChannelStats `json:"mqtt"`
}

// CycleStatus 最近一次巡检周期的运行信息（状态接口用）
type CycleStatus struct {
	Result   CycleResult      `json:"result"`
	Dispatch DispatchResult   `json:"dispatch"`
	Decision ScheduleDecision `json:"decision"`
	RanAt    time.Time        `json:"ran_at"`
	Error    string           `json:"error,omitempty"`
}

// EntityTypeAttraction 受监控的实体分类标签
const EntityTypeAttraction = "ATTRACTION"

// LiveEntity 实时数据源返回的单个实体观测
type LiveEntity struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	EntityType string `json:"entityType"` // ATTRACTION, SHOW, RESTAURANT, ...
	Status     string `json:"status"`
}

// LiveGroup 单个园区的实时数据响应
type LiveGroup struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	LiveData []LiveEntity `json:"liveData"`
}
