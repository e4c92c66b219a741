package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// ErrTokenInvalid 推送渠道判定目标 token 永久失效（NotRegistered / InvalidRegistration）
// 调用方据此区分"停用设备"与"普通发送失败"
var ErrTokenInvalid = errors.New("push token permanently invalid")

// Notification 单条出站通知
// Data 携带事件元数据，随推送负载下发给客户端
type Notification struct {
	ID    string            `json:"id"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// fcmRequest FCM legacy HTTP 协议请求体
type fcmRequest struct {
	To           string            `json:"to"`
	Priority     string            `json:"priority,omitempty"`
	Notification fcmNotification   `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Sound string `json:"sound,omitempty"`
}

// fcmResponse FCM legacy HTTP 协议响应体
// 单 token 发送时 results 只有一个元素
type fcmResponse struct {
	Success int         `json:"success"`
	Failure int         `json:"failure"`
	Results []fcmResult `json:"results"`
}

type fcmResult struct {
	MessageID string `json:"message_id"`
	Error     string `json:"error"`
}

// PushClient FCM legacy HTTP 推送客户端
type PushClient struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewPushClient 创建推送客户端
func NewPushClient(baseURL, serverKey string, timeout time.Duration, logger *zap.Logger) *PushClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Authorization", "key="+serverKey)

	return &PushClient{
		httpClient: client,
		logger:     logger,
	}
}

// Send 向单个设备 token 发送推送
// 供应商报告 token 永久失效时返回包装 ErrTokenInvalid 的错误，
// 其余失败（网络、非 2xx、临时性拒绝）视为普通发送失败
func (c *PushClient) Send(ctx context.Context, token string, n Notification) error {
	if token == "" {
		return fmt.Errorf("token is required")
	}

	var result fcmResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(fcmRequest{
			To:       token,
			Priority: "high",
			Notification: fcmNotification{
				Title: n.Title,
				Body:  n.Body,
				Sound: "default",
			},
			Data: n.Data,
		}).
		SetResult(&result).
		Post("/fcm/send")

	if err != nil {
		return fmt.Errorf("push send failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("push endpoint returned status %d", resp.StatusCode())
	}

	if result.Failure > 0 && len(result.Results) > 0 {
		providerError := result.Results[0].Error
		switch providerError {
		case "NotRegistered", "InvalidRegistration":
			return fmt.Errorf("%s: %w", providerError, ErrTokenInvalid)
		default:
			return fmt.Errorf("push rejected by provider: %s", providerError)
		}
	}

	c.logger.Debug("Push delivered",
		zap.String("notification_id", n.ID),
		zap.String("title", n.Title))

	return nil
}
