/*
 * @module service/alerting/notification_test
 * @description 通知渠道单元测试
 * @architecture 测试层
 * @documentReference dev_docs/monitoring_design.md
 */

package alerting

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinel-service/service/models"
)

// testAlert 构造测试告警
func testAlert() *models.Alert {
	return &models.Alert{
		ID:        "alert-1",
		Title:     "磁盘空间不足",
		Message:   "使用率92%",
		Severity:  models.SeverityWarning,
		Timestamp: time.Now(),
		Source:    "metrics:disk",
		Tags:      map[string]string{"category": "disk"},
	}
}

// TestNewChannel 测试渠道工厂
func TestNewChannel(t *testing.T) {
	for _, channelType := range []string{"log", "webhook", "chat", "email", "sms"} {
		channel, err := NewChannel(channelType, nil)
		require.NoError(t, err, "类型 %s 应创建成功", channelType)
		assert.Equal(t, channelType, channel.GetChannelType())
	}

	_, err := NewChannel("pigeon", nil)
	assert.Error(t, err, "未知渠道类型应报错")
}

// TestWebhookChannel_Send 测试Webhook渠道发送告警JSON
func TestWebhookChannel_Send(t *testing.T) {
	var received *models.Alert
	var gotHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Token")
		body, _ := io.ReadAll(r.Body)
		var alert models.Alert
		_ = json.Unmarshal(body, &alert)
		received = &alert
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	channel, err := NewChannel("webhook", map[string]interface{}{
		"url":             server.URL,
		"headers":         map[string]string{"X-Token": "secret"},
		"timeout_seconds": 5,
	})
	require.NoError(t, err)

	require.NoError(t, channel.Send(testAlert()))
	require.NotNil(t, received, "服务端应收到告警")
	assert.Equal(t, "alert-1", received.ID)
	assert.Equal(t, "磁盘空间不足", received.Title)
	assert.Equal(t, "secret", gotHeader, "自定义头部应被携带")
}

// TestWebhookChannel_ErrorStatus 测试响应错误码判定为失败
func TestWebhookChannel_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	channel, err := NewChannel("webhook", map[string]interface{}{"url": server.URL})
	require.NoError(t, err)
	assert.Error(t, channel.Send(testAlert()), "4xx/5xx响应应判定为发送失败")

	unconfigured := &WebhookNotificationChannel{Method: http.MethodPost, Timeout: time.Second}
	assert.Error(t, unconfigured.Send(testAlert()), "未配置URL应报错")
}

// TestChatChannel_Send 测试聊天渠道的消息格式映射
func TestChatChannel_Send(t *testing.T) {
	var payload chatPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &payload)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	channel, err := NewChannel("chat", map[string]interface{}{"webhook_url": server.URL})
	require.NoError(t, err)

	require.NoError(t, channel.Send(testAlert()))
	assert.Equal(t, "[warning] 磁盘空间不足: 使用率92%", payload.Text, "消息文本应包含级别、标题和内容")
	assert.Equal(t, "warning", payload.Severity)
	assert.Equal(t, "metrics:disk", payload.Source)
	assert.Equal(t, "disk", payload.Tags["category"])
}

// TestLogAndStubChannels 测试日志与占位渠道始终发送成功
func TestLogAndStubChannels(t *testing.T) {
	for _, channelType := range []string{"log", "email", "sms"} {
		channel, err := NewChannel(channelType, map[string]interface{}{
			"to_addresses":  []string{"ops@example.com"},
			"phone_numbers": []string{"13800000000"},
		})
		require.NoError(t, err)
		assert.NoError(t, channel.Send(testAlert()), "渠道 %s 不应失败", channelType)
	}
}

// TestKafkaChannel_ConfigureValidation 测试Kafka渠道配置校验
func TestKafkaChannel_ConfigureValidation(t *testing.T) {
	_, err := NewChannel("kafka", map[string]interface{}{"topic": "alerts"})
	assert.Error(t, err, "缺少brokers应报错")

	_, err = NewChannel("kafka", map[string]interface{}{"brokers": []string{"localhost:9092"}})
	assert.Error(t, err, "缺少topic应报错")

	channel, err := NewChannel("kafka", map[string]interface{}{
		"brokers": []string{"localhost:9092"},
		"topic":   "alerts",
	})
	require.NoError(t, err, "完整配置应创建成功")
	assert.Equal(t, "kafka", channel.GetChannelType())

	closer, ok := channel.(io.Closer)
	require.True(t, ok, "Kafka渠道应支持关闭")
	assert.NoError(t, closer.Close())
}
