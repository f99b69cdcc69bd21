// Package notification 高危告警通知渠道
package notification

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/wyfcoding/paymentrisk/pkg/logger"
	"github.com/wyfcoding/paymentrisk/pkg/mq"
)

// Sender 单一渠道的消息发送器
type Sender interface {
	Send(ctx context.Context, target, subject, content string) error
}

// Command 发送到 Kafka 的通知指令，由下游消费者投递
type Command struct {
	Target  string `json:"target"`
	Subject string `json:"subject"`
	Content string `json:"content"`
}

// KafkaSender 将通知指令写入 Kafka
type KafkaSender struct {
	producer mq.Sender
	topic    string
}

// NewKafkaSender 创建 Kafka 发送器
func NewKafkaSender(producer mq.Sender, topic string) *KafkaSender {
	return &KafkaSender{producer: producer, topic: topic}
}

// Send 以接收者作为消息键，保证同一接收者有序
func (s *KafkaSender) Send(ctx context.Context, target, subject, content string) error {
	return s.producer.SendMessage(ctx, s.topic, target, Command{
		Target:  target,
		Subject: subject,
		Content: content,
	})
}

// WebhookSender 以 JSON 推送到 webhook 地址
type WebhookSender struct {
	client *resty.Client
}

// NewWebhookSender 创建 webhook 发送器
func NewWebhookSender(timeout time.Duration) *WebhookSender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookSender{client: resty.New().SetTimeout(timeout)}
}

func (s *WebhookSender) Send(ctx context.Context, target, subject, content string) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"text": fmt.Sprintf("*%s*\n%s", subject, content)}).
		Post(target)
	if err != nil {
		return fmt.Errorf("webhook post failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode())
	}
	logger.Debug(ctx, "webhook delivered", "url", target, "status", resp.StatusCode())
	return nil
}

// SMTPConfig 邮件服务器
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPSender 通过 net/smtp 发送纯文本邮件
type SMTPSender struct {
	cfg SMTPConfig
	// 便于测试替换
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPSender 创建邮件发送器
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg, sendMail: smtp.SendMail}
}

func (s *SMTPSender) Send(ctx context.Context, target, subject, content string) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	if err := s.sendMail(addr, auth, s.cfg.From, []string{target}, buildMessage(s.cfg.From, target, subject, content)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", target, err)
	}
	logger.Info(ctx, "email sent", "target", target, "subject", subject)
	return nil
}

func buildMessage(from, to, subject, content string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(content, "\n", "\r\n"))
	b.WriteString("\r\n")
	return []byte(b.String())
}

// LogSender 仅写日志，用于本地开发
type LogSender struct{}

func (LogSender) Send(ctx context.Context, target, subject, content string) error {
	logger.Warn(ctx, "critical alert notification",
		"sender", "log",
		"target", target,
		"subject", subject,
		"content_length", len(content),
	)
	return nil
}
