/*
 * @module service/alerting/kafka_channel
 * @description Kafka告警通知渠道，将告警以JSON消息形式发布到消息总线供下游系统消费
 * @architecture 适配器模式 - 封装第三方Kafka客户端
 * @documentReference dev_docs/monitoring_design.md
 * @stateFlow 渠道配置 -> 消息发布 -> 错误隔离
 * @rules 发布失败由分发器隔离处理，不做重试，告警投递为最多一次
 * @dependencies github.com/segmentio/kafka-go
 * @refs service/alerting/notification.go
 */

package alerting

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/spf13/cast"

	"sentinel-service/service/models"
)

// KafkaNotificationChannel Kafka通知渠道
type KafkaNotificationChannel struct {
	Brokers []string      `json:"brokers"`
	Topic   string        `json:"topic"`
	Timeout time.Duration `json:"timeout"`

	writer *kafka.Writer
}

// Send 发布告警消息到Kafka
func (k *KafkaNotificationChannel) Send(alert *models.Alert) error {
	if k.writer == nil {
		return fmt.Errorf("Kafka通知渠道未配置")
	}

	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("序列化告警消息失败: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), k.Timeout)
	defer cancel()

	err = k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(alert.ID),
		Value: payload,
		Time:  alert.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("发布告警消息失败: %w", err)
	}
	return nil
}

// GetChannelType 获取渠道类型
func (k *KafkaNotificationChannel) GetChannelType() string {
	return "kafka"
}

// Configure 配置Kafka渠道并初始化生产者
func (k *KafkaNotificationChannel) Configure(config map[string]interface{}) error {
	if v, ok := config["brokers"]; ok {
		k.Brokers = cast.ToStringSlice(v)
	}
	if v, ok := config["topic"]; ok {
		k.Topic = cast.ToString(v)
	}
	if v, ok := config["timeout_seconds"]; ok {
		k.Timeout = time.Duration(cast.ToInt(v)) * time.Second
	}
	if k.Timeout <= 0 {
		k.Timeout = 10 * time.Second
	}

	if len(k.Brokers) == 0 || k.Topic == "" {
		return fmt.Errorf("Kafka渠道必须配置brokers和topic")
	}

	k.writer = &kafka.Writer{
		Addr:         kafka.TCP(k.Brokers...),
		Topic:        k.Topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
	}
	return nil
}

// Close 关闭Kafka生产者
func (k *KafkaNotificationChannel) Close() error {
	if k.writer != nil {
		return k.writer.Close()
	}
	return nil
}
