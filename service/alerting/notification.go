/*
 * @module service/alerting/notification
 * @description 通知渠道接口和实现，为告警分发器提供日志、Webhook、聊天、邮件、短信等多种发送能力
 * @architecture 分层架构 - 业务服务层
 * @documentReference dev_docs/monitoring_design.md
 * @stateFlow 渠道配置 -> 告警发送 -> 错误隔离
 * @rules 单个渠道发送失败不影响其他渠道，邮件和短信渠道仅记录日志不做真实投递
 * @dependencies github.com/spf13/cast, net/http
 * @refs service/alerting/alert_dispatcher.go
 */

package alerting

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cast"

	"sentinel-service/service/models"
)

// NotificationSender 通知发送器接口
type NotificationSender interface {
	Send(alert *models.Alert) error
	GetChannelType() string
	Configure(config map[string]interface{}) error
}

// NewChannel 根据类型创建通知渠道
func NewChannel(channelType string, settings map[string]interface{}) (NotificationSender, error) {
	var channel NotificationSender
	switch channelType {
	case "log":
		channel = &LogNotificationChannel{}
	case "webhook":
		channel = &WebhookNotificationChannel{Method: http.MethodPost, Timeout: 10 * time.Second}
	case "chat":
		channel = &ChatNotificationChannel{Timeout: 10 * time.Second}
	case "email":
		channel = &EmailNotificationChannel{}
	case "sms":
		channel = &SMSNotificationChannel{}
	case "kafka":
		channel = &KafkaNotificationChannel{}
	default:
		return nil, fmt.Errorf("未知的通知渠道类型: %s", channelType)
	}

	if err := channel.Configure(settings); err != nil {
		return nil, fmt.Errorf("配置通知渠道 %s 失败: %w", channelType, err)
	}
	return channel, nil
}

// LogNotificationChannel 结构化日志通知渠道，始终可用
type LogNotificationChannel struct{}

// Send 以结构化日志形式输出告警
func (l *LogNotificationChannel) Send(alert *models.Alert) error {
	slog.Warn("告警触发",
		"alert_id", alert.ID,
		"title", alert.Title,
		"message", alert.Message,
		"severity", alert.Severity,
		"source", alert.Source,
		"tags", alert.Tags)
	return nil
}

// GetChannelType 获取渠道类型
func (l *LogNotificationChannel) GetChannelType() string {
	return "log"
}

// Configure 日志渠道无需配置
func (l *LogNotificationChannel) Configure(config map[string]interface{}) error {
	return nil
}

// WebhookNotificationChannel Webhook通知渠道，将告警以JSON形式POST到外部地址
type WebhookNotificationChannel struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers"`
	Timeout time.Duration     `json:"timeout"`
}

// Send 发送Webhook通知
func (w *WebhookNotificationChannel) Send(alert *models.Alert) error {
	if w.URL == "" {
		return fmt.Errorf("Webhook通知渠道未配置URL")
	}

	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("序列化告警数据失败: %w", err)
	}

	req, err := http.NewRequest(w.Method, w.URL, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("创建HTTP请求失败: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.Headers {
		req.Header.Set(k, v)
	}

	client := &http.Client{Timeout: w.Timeout}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("发送Webhook通知失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("Webhook通知响应错误: %d", resp.StatusCode)
	}
	return nil
}

// GetChannelType 获取渠道类型
func (w *WebhookNotificationChannel) GetChannelType() string {
	return "webhook"
}

// Configure 配置Webhook渠道
func (w *WebhookNotificationChannel) Configure(config map[string]interface{}) error {
	if v, ok := config["url"]; ok {
		w.URL = cast.ToString(v)
	}
	if v, ok := config["method"]; ok {
		w.Method = cast.ToString(v)
	}
	if v, ok := config["headers"]; ok {
		w.Headers = cast.ToStringMapString(v)
	}
	if v, ok := config["timeout_seconds"]; ok {
		w.Timeout = time.Duration(cast.ToInt(v)) * time.Second
	}
	if w.Method == "" {
		w.Method = http.MethodPost
	}
	return nil
}

// chatPayload 聊天机器人消息体
type chatPayload struct {
	Text     string            `json:"text"`
	Severity string            `json:"severity"`
	Source   string            `json:"source"`
	Tags     map[string]string `json:"tags,omitempty"`
}

// ChatNotificationChannel 聊天Webhook通知渠道，将告警映射为机器人消息格式
type ChatNotificationChannel struct {
	WebhookURL string        `json:"webhook_url"`
	Timeout    time.Duration `json:"timeout"`
}

// Send 发送聊天通知
func (c *ChatNotificationChannel) Send(alert *models.Alert) error {
	if c.WebhookURL == "" {
		return fmt.Errorf("聊天通知渠道未配置webhook地址")
	}

	payload, err := json.Marshal(chatPayload{
		Text:     fmt.Sprintf("[%s] %s: %s", alert.Severity, alert.Title, alert.Message),
		Severity: string(alert.Severity),
		Source:   alert.Source,
		Tags:     alert.Tags,
	})
	if err != nil {
		return fmt.Errorf("序列化聊天消息失败: %w", err)
	}

	client := &http.Client{Timeout: c.Timeout}
	resp, err := client.Post(c.WebhookURL, "application/json", bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("发送聊天通知失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("聊天通知响应错误: %d", resp.StatusCode)
	}
	return nil
}

// GetChannelType 获取渠道类型
func (c *ChatNotificationChannel) GetChannelType() string {
	return "chat"
}

// Configure 配置聊天渠道
func (c *ChatNotificationChannel) Configure(config map[string]interface{}) error {
	if v, ok := config["webhook_url"]; ok {
		c.WebhookURL = cast.ToString(v)
	}
	if v, ok := config["timeout_seconds"]; ok {
		c.Timeout = time.Duration(cast.ToInt(v)) * time.Second
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	return nil
}

// EmailNotificationChannel 邮件通知渠道，仅记录日志不做真实投递
type EmailNotificationChannel struct {
	ToAddresses []string `json:"to_addresses"`
}

// Send 记录邮件通知日志
func (e *EmailNotificationChannel) Send(alert *models.Alert) error {
	slog.Info("将发送告警邮件",
		"to", e.ToAddresses,
		"subject", fmt.Sprintf("[%s] %s", alert.Severity, alert.Title),
		"alert_id", alert.ID)
	return nil
}

// GetChannelType 获取渠道类型
func (e *EmailNotificationChannel) GetChannelType() string {
	return "email"
}

// Configure 配置邮件渠道
func (e *EmailNotificationChannel) Configure(config map[string]interface{}) error {
	if v, ok := config["to_addresses"]; ok {
		e.ToAddresses = cast.ToStringSlice(v)
	}
	return nil
}

// SMSNotificationChannel 短信通知渠道，仅记录日志不做真实投递
type SMSNotificationChannel struct {
	PhoneNumbers []string `json:"phone_numbers"`
}

// Send 记录短信通知日志
func (s *SMSNotificationChannel) Send(alert *models.Alert) error {
	slog.Info("将发送告警短信",
		"to", s.PhoneNumbers,
		"message", fmt.Sprintf("[%s] %s", alert.Severity, alert.Message),
		"alert_id", alert.ID)
	return nil
}

// GetChannelType 获取渠道类型
func (s *SMSNotificationChannel) GetChannelType() string {
	return "sms"
}

// Configure 配置短信渠道
func (s *SMSNotificationChannel) Configure(config map[string]interface{}) error {
	if v, ok := config["phone_numbers"]; ok {
		s.PhoneNumbers = cast.ToStringSlice(v)
	}
	return nil
}
