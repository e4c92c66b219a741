package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/chsnow/ride-watch/internal/devices"
	"github.com/chsnow/ride-watch/internal/models"
	"github.com/chsnow/ride-watch/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupDevicesRouter(t *testing.T) *Router {
	logger := zap.NewNop()
	repo := repository.NewMemoryDevicesRepo()
	directory := devices.NewDirectory(repo, time.Minute, logger)

	router := NewRouter(logger)
	router.RegisterDeviceRoutes(NewDevicesHandler(directory, logger))
	return router
}

func postJSON(router *Router, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func get(router *Router, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// ============================================================================
// 注册 / 注销测试
// ============================================================================

func TestRegisterDevice_Success(t *testing.T) {
	router := setupDevicesRouter(t)

	w := postJSON(router, "/api/v1/devices/register", `{"token":"token-1","platform":"ios"}`)

	require.Equal(t, http.StatusOK, w.Code)
	var resp Result[models.DeviceTarget]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, ResultSuccess, resp.Code)
	assert.Equal(t, "token-1", resp.Result.Token)
	assert.Equal(t, models.PlatformIOS, resp.Result.Platform)
	assert.True(t, resp.Result.Active)
}

func TestRegisterDevice_MissingToken(t *testing.T) {
	router := setupDevicesRouter(t)

	w := postJSON(router, "/api/v1/devices/register", `{"platform":"ios"}`)

	var resp Result[any]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, ResultError, resp.Code)
	assert.Equal(t, "token is required", resp.Message)
}

func TestRegisterDevice_InvalidPlatform(t *testing.T) {
	router := setupDevicesRouter(t)

	w := postJSON(router, "/api/v1/devices/register", `{"token":"token-1","platform":"windows"}`)

	var resp Result[any]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, ResultError, resp.Code)
	assert.Contains(t, resp.Message, "platform must be one of")
}

func TestRegisterDevice_MalformedBody(t *testing.T) {
	router := setupDevicesRouter(t)

	w := postJSON(router, "/api/v1/devices/register", `{not json`)

	var resp Result[any]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, ResultError, resp.Code)
}

func TestUnregisterDevice_SoftDeletes(t *testing.T) {
	router := setupDevicesRouter(t)

	postJSON(router, "/api/v1/devices/register", `{"token":"token-1","platform":"android"}`)
	w := postJSON(router, "/api/v1/devices/unregister", `{"token":"token-1"}`)

	var resp Result[string]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, ResultSuccess, resp.Code)

	// 活跃列表为空，含停用列表保留记录和停用原因
	var active Result[DeviceListResponse]
	require.NoError(t, json.Unmarshal(get(router, "/api/v1/devices").Body.Bytes(), &active))
	assert.Empty(t, active.Result.Items)

	var all Result[DeviceListResponse]
	require.NoError(t, json.Unmarshal(get(router, "/api/v1/devices?include_inactive=true").Body.Bytes(), &all))
	require.Len(t, all.Result.Items, 1)
	assert.False(t, all.Result.Items[0].Active)
	assert.Equal(t, models.DisabledReasonUnregistered, all.Result.Items[0].DisabledReason)
}

func TestUnregisterDevice_UnknownToken(t *testing.T) {
	router := setupDevicesRouter(t)

	w := postJSON(router, "/api/v1/devices/unregister", `{"token":"ghost"}`)

	var resp Result[any]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, ResultError, resp.Code)
	assert.Contains(t, resp.Message, "not found")
}

func TestRegisterDevice_ReactivatesUnregistered(t *testing.T) {
	router := setupDevicesRouter(t)

	postJSON(router, "/api/v1/devices/register", `{"token":"token-1","platform":"web"}`)
	postJSON(router, "/api/v1/devices/unregister", `{"token":"token-1"}`)
	w := postJSON(router, "/api/v1/devices/register", `{"token":"token-1","platform":"web"}`)

	var resp Result[models.DeviceTarget]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, ResultSuccess, resp.Code)
	assert.True(t, resp.Result.Active)
	assert.Empty(t, resp.Result.DisabledReason)
}

// ============================================================================
// 列表 / 导出测试
// ============================================================================

func TestListDevices_Pagination(t *testing.T) {
	router := setupDevicesRouter(t)

	postJSON(router, "/api/v1/devices/register", `{"token":"token-a","platform":"ios"}`)
	postJSON(router, "/api/v1/devices/register", `{"token":"token-b","platform":"android"}`)
	postJSON(router, "/api/v1/devices/register", `{"token":"token-c","platform":"web"}`)

	var page1 Result[DeviceListResponse]
	require.NoError(t, json.Unmarshal(get(router, "/api/v1/devices?page=1&size=2").Body.Bytes(), &page1))
	assert.Equal(t, 3, page1.Result.Total)
	assert.Len(t, page1.Result.Items, 2)
	assert.Equal(t, 1, page1.Result.Page)
	assert.Equal(t, 2, page1.Result.Size)

	var page2 Result[DeviceListResponse]
	require.NoError(t, json.Unmarshal(get(router, "/api/v1/devices?page=2&size=2").Body.Bytes(), &page2))
	assert.Len(t, page2.Result.Items, 1)
}

func TestExportDevices_ReturnsWorkbook(t *testing.T) {
	router := setupDevicesRouter(t)

	postJSON(router, "/api/v1/devices/register", `{"token":"token-a","platform":"ios"}`)
	postJSON(router, "/api/v1/devices/register", `{"token":"token-b","platform":"android"}`)
	postJSON(router, "/api/v1/devices/unregister", `{"token":"token-b"}`)

	w := get(router, "/api/v1/devices/export")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "device-targets-export.xlsx")
	// xlsx 是 zip 容器
	body := w.Body.Bytes()
	require.Greater(t, len(body), 4)
	assert.Equal(t, []byte{'P', 'K'}, body[:2])
}

func TestDeviceRoutes_MethodNotAllowed(t *testing.T) {
	router := setupDevicesRouter(t)

	cases := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/devices/register"},
		{http.MethodGet, "/api/v1/devices/unregister"},
		{http.MethodPost, "/api/v1/devices"},
		{http.MethodPost, "/api/v1/devices/export"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code, "%s %s", tc.method, tc.path)
	}
}
