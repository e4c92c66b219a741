package httpapi

import (
	"fmt"
	"net/http"

	"github.com/chsnow/ride-watch/internal/devices"
	"github.com/chsnow/ride-watch/internal/models"

	"go.uber.org/zap"
)

// exportPageSize 导出时的单页上限（导出全部，必要时调整）
const exportPageSize = 10000

// validPlatforms 注册接受的推送平台
var validPlatforms = map[string]bool{
	models.PlatformIOS:     true,
	models.PlatformAndroid: true,
	models.PlatformWeb:     true,
}

// DevicesHandler 推送目标设备管理处理器
// 所有变更走设备目录，保证巡检侧的目标缓存被正确失效
type DevicesHandler struct {
	directory *devices.Directory
	logger    *zap.Logger
}

func NewDevicesHandler(directory *devices.Directory, logger *zap.Logger) *DevicesHandler {
	return &DevicesHandler{directory: directory, logger: logger}
}

// RegisterDeviceRequest 设备注册请求
type RegisterDeviceRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

// UnregisterDeviceRequest 设备注销请求
type UnregisterDeviceRequest struct {
	Token string `json:"token"`
}

// DeviceListResponse 设备列表响应
type DeviceListResponse struct {
	Items []models.DeviceTarget `json:"items"`
	Page  int                   `json:"page"`
	Size  int                   `json:"size"`
	Total int                   `json:"total"`
}

// Register 注册推送目标（按 token upsert，重复注册会重新激活）
func (h *DevicesHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterDeviceRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid request body"))
		return
	}
	if req.Token == "" {
		writeJSON(w, http.StatusOK, Fail("token is required"))
		return
	}
	if !validPlatforms[req.Platform] {
		writeJSON(w, http.StatusOK, Fail("platform must be one of ios, android, web"))
		return
	}

	ctx := r.Context()
	if err := h.directory.Register(ctx, models.DeviceTarget{
		Token:    req.Token,
		Platform: req.Platform,
	}); err != nil {
		h.logger.Error("Device registration failed",
			zap.String("token", req.Token),
			zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("failed to register device: %v", err)))
		return
	}

	target, err := h.directory.Get(ctx, req.Token)
	if err != nil || target == nil {
		// 读回失败不影响注册本身
		writeJSON(w, http.StatusOK, Ok(models.DeviceTarget{Token: req.Token, Platform: req.Platform, Active: true}))
		return
	}
	writeJSON(w, http.StatusOK, Ok(*target))
}

// Unregister 注销推送目标（软删除，保留注册历史）
func (h *DevicesHandler) Unregister(w http.ResponseWriter, r *http.Request) {
	var req UnregisterDeviceRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid request body"))
		return
	}
	if req.Token == "" {
		writeJSON(w, http.StatusOK, Fail("token is required"))
		return
	}

	if err := h.directory.Unregister(r.Context(), req.Token); err != nil {
		writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("failed to unregister device: %v", err)))
		return
	}
	writeJSON(w, http.StatusOK, Ok(req.Token))
}

// List 分页列出设备，include_inactive=true 时含已停用设备
func (h *DevicesHandler) List(w http.ResponseWriter, r *http.Request) {
	page := parseInt(r.URL.Query().Get("page"), 1)
	size := parseInt(r.URL.Query().Get("size"), 20)
	includeInactive := r.URL.Query().Get("include_inactive") == "true"

	items, total, err := h.directory.List(r.Context(), includeInactive, page, size)
	if err != nil {
		h.logger.Error("Device list failed", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("failed to list devices: %v", err)))
		return
	}

	writeJSON(w, http.StatusOK, Ok(DeviceListResponse{
		Items: items,
		Page:  page,
		Size:  size,
		Total: total,
	}))
}

// Export 导出全部设备（含已停用）为 Excel 文件
func (h *DevicesHandler) Export(w http.ResponseWriter, r *http.Request) {
	targets, _, err := h.directory.List(r.Context(), true, 1, exportPageSize)
	if err != nil {
		h.logger.Error("Device export query failed", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("failed to query devices: %v", err)))
		return
	}

	excelData, err := GenerateDeviceTargetsExport(targets)
	if err != nil {
		h.logger.Error("GenerateDeviceTargetsExport failed", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("failed to generate export: %v", err)))
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename=device-targets-export.xlsx")
	w.WriteHeader(http.StatusOK)
	w.Write(excelData)
}
