package httpapi

import (
	"fmt"
	"net/http"

	"github.com/chsnow/ride-watch/common/taskqueue"

	"go.uber.org/zap"
)

// ChecksHandler 巡检触发处理器
// 通过共享任务队列向巡检服务下发立即执行的巡检任务
type ChecksHandler struct {
	queue    *taskqueue.Queue
	checkURL string
	logger   *zap.Logger
}

func NewChecksHandler(queue *taskqueue.Queue, checkURL string, logger *zap.Logger) *ChecksHandler {
	return &ChecksHandler{queue: queue, checkURL: checkURL, logger: logger}
}

// TriggerResponse 巡检触发响应
type TriggerResponse struct {
	Queued       bool  `json:"queued"`
	PendingTasks int64 `json:"pending_tasks"`
}

// Trigger 立即触发一轮巡检
// 排他入队：把已排定的下一轮任务提前到现在，巡检服务执行后
// 会按自身调度策略接续调度链
func (h *ChecksHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.queue.EnqueueExclusive(ctx, taskqueue.Task{URL: h.checkURL}); err != nil {
		h.logger.Error("Failed to enqueue check task", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("failed to enqueue check task: %v", err)))
		return
	}

	pending, err := h.queue.Pending(ctx)
	if err != nil {
		pending = 0
	}

	h.logger.Info("Check cycle triggered via API")
	writeJSON(w, http.StatusOK, Ok(TriggerResponse{
		Queued:       true,
		PendingTasks: pending,
	}))
}
