package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// SMSClient Twilio 风格短信客户端
// 表单提交 To/From/Body，无失效类型区分：失败就是失败，不重试
type SMSClient struct {
	httpClient   *resty.Client
	messagesPath string
	from         string
	logger       *zap.Logger
}

// NewSMSClient 创建短信客户端
func NewSMSClient(baseURL, accountSID, authToken, from string, timeout time.Duration, logger *zap.Logger) *SMSClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetBasicAuth(accountSID, authToken)

	return &SMSClient{
		httpClient:   client,
		messagesPath: fmt.Sprintf("/2010-04-01/Accounts/%s/Messages.json", accountSID),
		from:         from,
		logger:       logger,
	}
}

// Send 向单个号码发送短信
func (c *SMSClient) Send(ctx context.Context, recipient, body string) error {
	if recipient == "" {
		return fmt.Errorf("recipient is required")
	}

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"To":   recipient,
			"From": c.from,
			"Body": body,
		}).
		Post(c.messagesPath)

	if err != nil {
		return fmt.Errorf("sms send failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("sms endpoint returned status %d", resp.StatusCode())
	}

	c.logger.Debug("SMS delivered", zap.String("recipient", recipient))

	return nil
}
