package notify

import (
	"encoding/json"
	"fmt"

	"github.com/chsnow/ride-watch/common/mqtt"
	"github.com/chsnow/ride-watch/internal/models"

	"go.uber.org/zap"
)

// DefaultBridgeTopicPrefix MQTT 事件桥默认主题前缀
const DefaultBridgeTopicPrefix = "ridewatch/status"

// Bridge MQTT 事件桥
// 将每个状态变化事件以 JSON 发布到 {prefix}/{ride_id}，
// 供订阅同一 broker 的下游系统消费；发布失败不影响巡检周期
type Bridge struct {
	client      *mqtt.Client
	topicPrefix string
	qos         byte
	logger      *zap.Logger
}

// NewBridge 创建事件桥
func NewBridge(client *mqtt.Client, topicPrefix string, qos byte, logger *zap.Logger) *Bridge {
	if topicPrefix == "" {
		topicPrefix = DefaultBridgeTopicPrefix
	}
	return &Bridge{
		client:      client,
		topicPrefix: topicPrefix,
		qos:         qos,
		logger:      logger,
	}
}

// PublishEvent 发布单个状态变化事件
func (b *Bridge) PublishEvent(event models.StatusChangeEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal status change event: %w", err)
	}

	topic := fmt.Sprintf("%s/%s", b.topicPrefix, event.RideID)
	if err := b.client.Publish(topic, b.qos, false, payload); err != nil {
		return err
	}

	b.logger.Debug("Status event published",
		zap.String("topic", topic),
		zap.String("new_status", event.NewStatus))

	return nil
}
