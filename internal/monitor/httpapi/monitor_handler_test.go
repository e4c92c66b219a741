package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chsnow/ride-watch/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeCycleService 可编程的巡检服务替身
type fakeCycleService struct {
	status     models.CycleStatus
	err        error
	last       *models.CycleStatus
	rides      []models.RideStatusRecord
	pending    int64
	pendingErr error
	runCalls   int
}

func (f *fakeCycleService) RunCycle(ctx context.Context) (models.CycleStatus, error) {
	f.runCalls++
	return f.status, f.err
}

func (f *fakeCycleService) LastStatus() (models.CycleStatus, bool) {
	if f.last == nil {
		return models.CycleStatus{}, false
	}
	return *f.last, true
}

func (f *fakeCycleService) StatusSnapshot() []models.RideStatusRecord {
	return f.rides
}

func (f *fakeCycleService) QueuePending(ctx context.Context) (int64, error) {
	return f.pending, f.pendingErr
}

func setupMonitorRouter(svc CycleService) *Router {
	logger := zap.NewNop()
	router := NewRouter(logger)
	router.RegisterMonitorRoutes(NewMonitorHandler(svc, logger))
	return router
}

// ============================================================================
// 手动巡检触发测试
// ============================================================================

func TestRunCheck_ReturnsCycleStatus(t *testing.T) {
	svc := &fakeCycleService{
		status: models.CycleStatus{
			Result:   models.CycleResult{Checked: 12, ChangesDetected: 2, NonOperatingCount: 1},
			Decision: models.ScheduleDecision{DelaySeconds: 60, Reason: "alert"},
			RanAt:    time.Now(),
		},
	}
	router := setupMonitorRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/check", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp Result[models.CycleStatus]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, ResultSuccess, resp.Code)
	assert.Equal(t, 12, resp.Result.Result.Checked)
	assert.Equal(t, 2, resp.Result.Result.ChangesDetected)
	assert.Equal(t, 60, resp.Result.Decision.DelaySeconds)
	assert.Equal(t, 1, svc.runCalls)
}

func TestRunCheck_CycleFailure(t *testing.T) {
	svc := &fakeCycleService{err: errors.New("all groups unreachable")}
	router := setupMonitorRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/check", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	// 业务失败走统一信封：HTTP 200 + code -1
	require.Equal(t, http.StatusOK, w.Code)
	var resp Result[any]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, ResultError, resp.Code)
	assert.Equal(t, "all groups unreachable", resp.Message)
}

func TestRunCheck_TaskCallbackRoute(t *testing.T) {
	svc := &fakeCycleService{}
	router := setupMonitorRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/tasks/check", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, svc.runCalls)
}

// ============================================================================
// 运行状态查询测试
// ============================================================================

func TestStatus_ReturnsSnapshotAndLastCycle(t *testing.T) {
	last := models.CycleStatus{
		Result: models.CycleResult{Checked: 8},
		RanAt:  time.Date(2025, 7, 4, 12, 0, 0, 0, time.UTC),
	}
	svc := &fakeCycleService{
		last: &last,
		rides: []models.RideStatusRecord{
			{RideID: "ride-1", RideName: "Space Mountain", Status: models.StatusOperating},
			{RideID: "ride-2", RideName: "Big Thunder", Status: models.StatusDown},
		},
		pending: 1,
	}
	router := setupMonitorRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp Result[StatusResponse]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, ResultSuccess, resp.Code)
	require.NotNil(t, resp.Result.LastCycle)
	assert.Equal(t, 8, resp.Result.LastCycle.Result.Checked)
	require.Len(t, resp.Result.Rides, 2)
	assert.Equal(t, models.StatusDown, resp.Result.Rides[1].Status)
	assert.Equal(t, int64(1), resp.Result.PendingTasks)
}

func TestStatus_BeforeFirstCycle(t *testing.T) {
	svc := &fakeCycleService{}
	router := setupMonitorRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp Result[StatusResponse]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Nil(t, resp.Result.LastCycle)
	assert.Empty(t, resp.Result.Rides)
}

func TestStatus_PendingCountFailureIsNonFatal(t *testing.T) {
	svc := &fakeCycleService{pendingErr: errors.New("redis down")}
	router := setupMonitorRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp Result[StatusResponse]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, ResultSuccess, resp.Code)
	assert.Equal(t, int64(0), resp.Result.PendingTasks)
}

// ============================================================================
// 路由方法约束测试
// ============================================================================

func TestMonitorRoutes_MethodNotAllowed(t *testing.T) {
	svc := &fakeCycleService{}
	router := setupMonitorRouter(svc)

	cases := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/check"},
		{http.MethodPost, "/api/v1/status"},
		{http.MethodGet, "/tasks/check"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code, "%s %s", tc.method, tc.path)
	}
	assert.Equal(t, 0, svc.runCalls)
}
