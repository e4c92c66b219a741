package notify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/chsnow/ride-watch/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// summaryThreshold 达到该事件数时合并为单条摘要通知
const summaryThreshold = 4

// statusTitles 新状态到通知标题的映射，未知状态用通用标题
var statusTitles = map[string]string{
	models.StatusOperating:     "Ride Back Up",
	models.StatusDown:          "Ride Down",
	models.StatusClosed:        "Ride Closed",
	models.StatusRefurbishment: "Ride Under Refurbishment",
}

// TitleForStatus 根据新状态得到通知标题
func TitleForStatus(status string) string {
	if title, ok := statusTitles[status]; ok {
		return title
	}
	return "Ride Status Changed"
}

// TargetDirectory 推送目标来源
// ActiveTargets 走 TTL 缓存；MarkInvalid 写透持久层并失效缓存
type TargetDirectory interface {
	ActiveTargets(ctx context.Context) ([]models.DeviceTarget, error)
	MarkInvalid(ctx context.Context, token, reason string) error
}

// PushSender 推送渠道发送接口
type PushSender interface {
	Send(ctx context.Context, token string, n Notification) error
}

// SMSSender 短信渠道发送接口
type SMSSender interface {
	Send(ctx context.Context, recipient, body string) error
}

// EventPublisher 事件桥发布接口
type EventPublisher interface {
	PublishEvent(event models.StatusChangeEvent) error
}

// Dispatcher 通知分发器
// 把一个周期内的状态变化事件转成出站通知并逐渠道扇出；
// 单个目标的失败只计数不扩散，任何渠道都不会让周期失败。
// push / sms / bridge 均可为 nil，表示该渠道未启用
type Dispatcher struct {
	directory     TargetDirectory
	push          PushSender
	sms           SMSSender
	smsRecipients []string
	bridge        EventPublisher
	logger        *zap.Logger
}

// NewDispatcher 创建通知分发器
func NewDispatcher(
	directory TargetDirectory,
	push PushSender,
	sms SMSSender,
	smsRecipients []string,
	bridge EventPublisher,
	logger *zap.Logger,
) *Dispatcher {
	return &Dispatcher{
		directory:     directory,
		push:          push,
		sms:           sms,
		smsRecipients: smsRecipients,
		bridge:        bridge,
		logger:        logger,
	}
}

// Dispatch 分发一个周期的状态变化事件
// 1~3 个事件逐条通知，4 个及以上合并为单条摘要；
// 事件桥按事件粒度发布，与通知合并策略无关
func (d *Dispatcher) Dispatch(ctx context.Context, events []models.StatusChangeEvent) models.DispatchResult {
	var result models.DispatchResult
	if len(events) == 0 {
		return result
	}

	if d.bridge != nil {
		for _, event := range events {
			if err := d.bridge.PublishEvent(event); err != nil {
				result.MQTT.Failed++
				d.logger.Warn("Failed to publish status event",
					zap.String("ride_id", event.RideID),
					zap.Error(err))
			} else {
				result.MQTT.Sent++
			}
		}
	}

	notifications := buildNotifications(events)
	result.Notifications = len(notifications)

	for _, n := range notifications {
		if d.push != nil && d.directory != nil {
			sent, failed := d.dispatchPush(ctx, n)
			result.Push.Sent += sent
			result.Push.Failed += failed
		}
		if d.sms != nil && len(d.smsRecipients) > 0 {
			sent, failed := d.dispatchSMS(ctx, n)
			result.SMS.Sent += sent
			result.SMS.Failed += failed
		}
	}

	d.logger.Info("Notifications dispatched",
		zap.Int("events", len(events)),
		zap.Int("notifications", result.Notifications),
		zap.Int("push_sent", result.Push.Sent),
		zap.Int("push_failed", result.Push.Failed),
		zap.Int("sms_sent", result.SMS.Sent),
		zap.Int("sms_failed", result.SMS.Failed))

	return result
}

// buildNotifications 按合并策略把事件转成出站通知
func buildNotifications(events []models.StatusChangeEvent) []Notification {
	if len(events) < summaryThreshold {
		notifications := make([]Notification, 0, len(events))
		for _, event := range events {
			notifications = append(notifications, Notification{
				ID:    uuid.NewString(),
				Title: TitleForStatus(event.NewStatus),
				Body:  fmt.Sprintf("%s changed from %s to %s", event.RideName, event.OldStatus, event.NewStatus),
				Data: map[string]string{
					"ride_id":    event.RideID,
					"ride_name":  event.RideName,
					"old_status": event.OldStatus,
					"new_status": event.NewStatus,
				},
			})
		}
		return notifications
	}

	lines := make([]string, 0, len(events))
	for _, event := range events {
		lines = append(lines, fmt.Sprintf("%s: %s -> %s", event.RideName, event.OldStatus, event.NewStatus))
	}
	return []Notification{{
		ID:    uuid.NewString(),
		Title: fmt.Sprintf("%d Ride Status Changes", len(events)),
		Body:  strings.Join(lines, "\n"),
		Data: map[string]string{
			"change_count": strconv.Itoa(len(events)),
		},
	}}
}

// dispatchPush 向所有活跃设备并发推送单条通知
// 每个目标的发送结果相互独立；渠道报告 token 永久失效时当场停用
// 该设备（写透 + 缓存失效），停用失败只记录日志
func (d *Dispatcher) dispatchPush(ctx context.Context, n Notification) (int, int) {
	targets, err := d.directory.ActiveTargets(ctx)
	if err != nil {
		d.logger.Error("Failed to resolve push targets", zap.Error(err))
		return 0, 0
	}
	if len(targets) == 0 {
		d.logger.Debug("No active push targets", zap.String("notification_id", n.ID))
		return 0, 0
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	sent, failed := 0, 0

	for _, target := range targets {
		wg.Add(1)
		go func(target models.DeviceTarget) {
			defer wg.Done()

			err := d.push.Send(ctx, target.Token, n)
			if err == nil {
				mu.Lock()
				sent++
				mu.Unlock()
				return
			}

			mu.Lock()
			failed++
			mu.Unlock()

			if errors.Is(err, ErrTokenInvalid) {
				d.logger.Info("Push target permanently invalid, deactivating",
					zap.String("token", target.Token),
					zap.Error(err))
				if markErr := d.directory.MarkInvalid(ctx, target.Token, err.Error()); markErr != nil {
					d.logger.Error("Failed to deactivate invalid push target",
						zap.String("token", target.Token),
						zap.Error(markErr))
				}
				return
			}

			d.logger.Warn("Push send failed",
				zap.String("token", target.Token),
				zap.Error(err))
		}(target)
	}
	wg.Wait()

	return sent, failed
}

// dispatchSMS 向所有配置的号码并发发送单条通知，失败不重试
func (d *Dispatcher) dispatchSMS(ctx context.Context, n Notification) (int, int) {
	body := n.Title + "\n" + n.Body

	var wg sync.WaitGroup
	var mu sync.Mutex
	sent, failed := 0, 0

	for _, recipient := range d.smsRecipients {
		wg.Add(1)
		go func(recipient string) {
			defer wg.Done()

			if err := d.sms.Send(ctx, recipient, body); err != nil {
				mu.Lock()
				failed++
				mu.Unlock()
				d.logger.Warn("SMS send failed",
					zap.String("recipient", recipient),
					zap.Error(err))
				return
			}

			mu.Lock()
			sent++
			mu.Unlock()
		}(recipient)
	}
	wg.Wait()

	return sent, failed
}
