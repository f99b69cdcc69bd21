// Package messaging 告警事件发布适配器
package messaging

import (
	"context"
	"fmt"

	"github.com/wyfcoding/paymentrisk/internal/riskscoring/domain"
	"github.com/wyfcoding/paymentrisk/pkg/logger"
	"github.com/wyfcoding/paymentrisk/pkg/mq"
)

// DefaultAlertTopic 可疑交易主题
const DefaultAlertTopic = "suspicious_transactions"

// KafkaAlertPublisher 将告警事件写入 Kafka，以告警 ID 作为消息键
type KafkaAlertPublisher struct {
	sender mq.Sender
	topic  string
	closer func() error
}

// NewKafkaAlertPublisher 创建发布器；closer 可为 nil
func NewKafkaAlertPublisher(sender mq.Sender, topic string, closer func() error) *KafkaAlertPublisher {
	if topic == "" {
		topic = DefaultAlertTopic
	}
	return &KafkaAlertPublisher{sender: sender, topic: topic, closer: closer}
}

func (p *KafkaAlertPublisher) Publish(ctx context.Context, event domain.AlertEvent) error {
	if err := p.sender.SendMessage(ctx, p.topic, event.AlertID, event); err != nil {
		return fmt.Errorf("publish alert %s: %w", event.AlertID, err)
	}
	return nil
}

func (p *KafkaAlertPublisher) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer()
}

// LogAlertPublisher 未启用 Kafka 时只记录日志
type LogAlertPublisher struct{}

// NewLogAlertPublisher 创建日志发布器
func NewLogAlertPublisher() *LogAlertPublisher {
	return &LogAlertPublisher{}
}

func (LogAlertPublisher) Publish(ctx context.Context, event domain.AlertEvent) error {
	logger.Info(ctx, "alert event",
		"alert_id", event.AlertID,
		"risk_score", event.RiskScore,
		"risk_level", event.RiskLevel,
		"amount", event.Amount.String(),
		"vendor", event.Vendor,
	)
	return nil
}

func (LogAlertPublisher) Close() error { return nil }
