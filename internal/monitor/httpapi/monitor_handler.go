package httpapi

import (
	"context"
	"net/http"

	"github.com/chsnow/ride-watch/internal/models"

	"go.uber.org/zap"
)

// CycleService 巡检服务接口（由 service.MonitorService 实现）
type CycleService interface {
	RunCycle(ctx context.Context) (models.CycleStatus, error)
	LastStatus() (models.CycleStatus, bool)
	StatusSnapshot() []models.RideStatusRecord
	QueuePending(ctx context.Context) (int64, error)
}

// MonitorHandler 巡检服务 HTTP 处理器
type MonitorHandler struct {
	svc    CycleService
	logger *zap.Logger
}

func NewMonitorHandler(svc CycleService, logger *zap.Logger) *MonitorHandler {
	return &MonitorHandler{svc: svc, logger: logger}
}

// StatusResponse 运行状态响应
type StatusResponse struct {
	LastCycle    *models.CycleStatus       `json:"last_cycle,omitempty"`
	Rides        []models.RideStatusRecord `json:"rides"`
	PendingTasks int64                     `json:"pending_tasks"`
}

// RunCheck 立即执行一轮巡检并返回周期结果
// 周期自带重新调度，手动触发不会让调度链分叉
func (h *MonitorHandler) RunCheck(w http.ResponseWriter, r *http.Request) {
	status, err := h.svc.RunCycle(r.Context())
	if err != nil {
		h.logger.Warn("Manual check cycle failed", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(status))
}

// Status 返回最近周期信息、缓存内的景点状态快照和待触发任务数
func (h *MonitorHandler) Status(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Rides: h.svc.StatusSnapshot(),
	}
	if last, ok := h.svc.LastStatus(); ok {
		resp.LastCycle = &last
	}

	pending, err := h.svc.QueuePending(r.Context())
	if err != nil {
		h.logger.Warn("Failed to read pending task count", zap.Error(err))
	} else {
		resp.PendingTasks = pending
	}

	writeJSON(w, http.StatusOK, Ok(resp))
}
