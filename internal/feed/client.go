package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/chsnow/ride-watch/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Client 景区实时数据源客户端
// 上游按园区返回实体观测列表；超时与重试策略收敛在这一层，
// 巡检核心只看到"分组级成功或失败"
type Client struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewClient 创建实时数据源客户端
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Accept", "application/json")

	return &Client{
		httpClient: client,
		logger:     logger,
	}
}

// FetchGroup 拉取单个园区的实时状态
// 非 2xx 或响应解析失败都作为可恢复的分组级错误返回，由调用方决定跳过
func (c *Client) FetchGroup(ctx context.Context, groupID string) (*models.LiveGroup, error) {
	if groupID == "" {
		return nil, fmt.Errorf("group id is required")
	}

	var group models.LiveGroup
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(&group).
		Get(fmt.Sprintf("/entity/%s/live", groupID))

	if err != nil {
		return nil, fmt.Errorf("failed to fetch live data for group %s: %w", groupID, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("live data request for group %s returned status %d", groupID, resp.StatusCode())
	}

	c.logger.Debug("Live data fetched",
		zap.String("group_id", groupID),
		zap.Int("entities", len(group.LiveData)))

	return &group, nil
}
