/*
 * @module service/alerting/alert_dispatcher_test
 * @description 告警分发器单元测试
 * @architecture 测试层
 * @documentReference dev_docs/monitoring_design.md
 */

package alerting

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinel-service/service/config"
	"sentinel-service/service/models"
)

// recordingSender 记录所有发送告警的测试渠道
type recordingSender struct {
	mutex sync.Mutex
	sent  []*models.Alert
	fail  bool
}

func (r *recordingSender) Send(alert *models.Alert) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.fail {
		return fmt.Errorf("模拟渠道故障")
	}
	r.sent = append(r.sent, alert)
	return nil
}

func (r *recordingSender) GetChannelType() string {
	return "recording"
}

func (r *recordingSender) Configure(config map[string]interface{}) error {
	return nil
}

func (r *recordingSender) sentCount() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.sent)
}

// newTestDispatcher 创建注入记录渠道的测试分发器
func newTestDispatcher(t *testing.T, minSeverity models.AlertSeverity) (*AlertDispatcher, *recordingSender) {
	dispatcher, err := NewAlertDispatcher(config.AlertingConfig{
		MinSeverity:         minSeverity,
		RuleIntervalSeconds: 60,
		HistoryLimit:        100,
	})
	require.NoError(t, err, "告警分发器初始化失败")

	recorder := &recordingSender{}
	dispatcher.mutex.Lock()
	dispatcher.channels = []NotificationSender{recorder}
	dispatcher.mutex.Unlock()

	return dispatcher, recorder
}

// TestAlert_Validation 测试告警载荷校验
func TestAlert_Validation(t *testing.T) {
	dispatcher, _ := newTestDispatcher(t, models.SeverityInfo)

	cases := []struct {
		name  string
		input models.AlertInput
		field string
	}{
		{"标题为空", models.AlertInput{Message: "m", Severity: models.SeverityInfo}, "title"},
		{"内容为空", models.AlertInput{Title: "t", Severity: models.SeverityInfo}, "message"},
		{"级别非法", models.AlertInput{Title: "t", Message: "m", Severity: "fatal"}, "severity"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := dispatcher.Alert(tc.input)
			require.Error(t, err)

			var validationErr *ValidationError
			require.ErrorAs(t, err, &validationErr, "应返回校验错误")
			assert.Equal(t, tc.field, validationErr.Field)
		})
	}

	assert.Empty(t, dispatcher.GetAlertHistory(), "校验失败的告警不应进入历史")
}

// TestAlert_SeverityFilter 测试级别过滤：低于阈值的告警记入历史但不分发
func TestAlert_SeverityFilter(t *testing.T) {
	dispatcher, recorder := newTestDispatcher(t, models.SeverityError)

	for _, severity := range []models.AlertSeverity{
		models.SeverityInfo,
		models.SeverityWarning,
		models.SeverityError,
		models.SeverityCritical,
	} {
		_, err := dispatcher.Alert(models.AlertInput{
			Title:    "测试告警",
			Message:  "级别过滤测试",
			Severity: severity,
		})
		require.NoError(t, err)
	}

	assert.Equal(t, 2, recorder.sentCount(), "只有error及以上级别应分发到渠道")
	assert.Len(t, dispatcher.GetAlertHistory(), 4, "所有合法告警都应进入历史")
}

// TestAlert_HistoryBounded 测试历史记录FIFO上限
func TestAlert_HistoryBounded(t *testing.T) {
	dispatcher, _ := newTestDispatcher(t, models.SeverityCritical)

	for i := 0; i < 150; i++ {
		_, err := dispatcher.Alert(models.AlertInput{
			Title:    fmt.Sprintf("告警-%d", i),
			Message:  "历史上限测试",
			Severity: models.SeverityInfo,
		})
		require.NoError(t, err)
	}

	history := dispatcher.GetAlertHistory()
	require.Len(t, history, 100, "历史记录应保留最近100条")
	assert.Equal(t, "告警-50", history[0].Title, "最早的50条应被淘汰")
	assert.Equal(t, "告警-149", history[99].Title, "最新告警应在末尾")
}

// TestAlert_ChannelFailureIsolated 测试单渠道失败不影响其他渠道
func TestAlert_ChannelFailureIsolated(t *testing.T) {
	dispatcher, _ := newTestDispatcher(t, models.SeverityInfo)

	failing := &recordingSender{fail: true}
	healthy := &recordingSender{}
	dispatcher.mutex.Lock()
	dispatcher.channels = []NotificationSender{failing, healthy}
	dispatcher.mutex.Unlock()

	alert, err := dispatcher.Alert(models.AlertInput{
		Title:    "隔离测试",
		Message:  "渠道故障隔离",
		Severity: models.SeverityWarning,
	})
	require.NoError(t, err, "渠道失败不应使告警调用失败")
	assert.NotEmpty(t, alert.ID)
	assert.Equal(t, 1, healthy.sentCount(), "健康渠道应正常收到告警")
}

// TestAcknowledgeAlert 测试告警确认
func TestAcknowledgeAlert(t *testing.T) {
	dispatcher, _ := newTestDispatcher(t, models.SeverityInfo)

	alert, err := dispatcher.Alert(models.AlertInput{
		Title:    "待确认告警",
		Message:  "确认流程测试",
		Severity: models.SeverityWarning,
	})
	require.NoError(t, err)

	assert.True(t, dispatcher.AcknowledgeAlert(alert.ID, "admin"), "存在的告警应确认成功")
	assert.False(t, dispatcher.AcknowledgeAlert("not-exist", "admin"), "不存在的告警应确认失败")

	history := dispatcher.GetAlertHistory()
	require.Len(t, history, 1)
	assert.True(t, history[0].Acknowledged)
	assert.Equal(t, "admin", history[0].AcknowledgedBy)
	assert.NotNil(t, history[0].AcknowledgedAt)
}

// TestEvaluateRules 测试规则评估：命中触发模板告警，异常规则被隔离
func TestEvaluateRules(t *testing.T) {
	dispatcher, recorder := newTestDispatcher(t, models.SeverityInfo)

	dispatcher.AddRule("low_disk", func() bool { return true }, models.AlertInput{
		Title:    "磁盘空间不足",
		Message:  "磁盘使用率超过阈值",
		Severity: models.SeverityWarning,
		Source:   "metrics:disk",
	})
	dispatcher.AddRule("never", func() bool { return false }, models.AlertInput{
		Title:    "不应触发",
		Message:  "谓词恒为false",
		Severity: models.SeverityInfo,
	})
	dispatcher.AddRule("broken", func() bool { panic("规则异常") }, models.AlertInput{
		Title:    "异常规则",
		Message:  "不应触发",
		Severity: models.SeverityInfo,
	})

	dispatcher.EvaluateRules()

	history := dispatcher.GetAlertHistory()
	require.Len(t, history, 1, "只有命中的规则应产生告警")
	assert.Equal(t, "磁盘空间不足", history[0].Title)
	assert.Equal(t, "metrics:disk", history[0].Source)
	assert.Equal(t, 1, recorder.sentCount())
}

// TestRemoveRule 测试规则移除
func TestRemoveRule(t *testing.T) {
	dispatcher, _ := newTestDispatcher(t, models.SeverityInfo)

	dispatcher.AddRule("temp", func() bool { return true }, models.AlertInput{
		Title:    "临时规则",
		Message:  "移除测试",
		Severity: models.SeverityInfo,
	})

	assert.True(t, dispatcher.RemoveRule("temp"), "存在的规则应移除成功")
	assert.False(t, dispatcher.RemoveRule("temp"), "重复移除应返回false")

	dispatcher.EvaluateRules()
	assert.Empty(t, dispatcher.GetAlertHistory(), "已移除规则不应再触发")
}

// TestShutdown_Idempotent 测试关闭的幂等性
func TestShutdown_Idempotent(t *testing.T) {
	dispatcher, _ := newTestDispatcher(t, models.SeverityInfo)

	dispatcher.Start()
	dispatcher.Shutdown()
	dispatcher.Shutdown()

	// 关闭后仍可重新启动
	dispatcher.Start()
	dispatcher.Shutdown()
}

// TestConfigure_HotReload 测试配置热更新
func TestConfigure_HotReload(t *testing.T) {
	dispatcher, _ := newTestDispatcher(t, models.SeverityInfo)

	err := dispatcher.Configure(config.AlertingConfig{
		MinSeverity:         models.SeverityCritical,
		Channels:            []config.ChannelConfig{{Type: "log"}},
		RuleIntervalSeconds: 30,
		HistoryLimit:        10,
	})
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		_, err := dispatcher.Alert(models.AlertInput{
			Title:    fmt.Sprintf("热更新-%d", i),
			Message:  "历史上限收缩测试",
			Severity: models.SeverityInfo,
		})
		require.NoError(t, err)
	}
	assert.Len(t, dispatcher.GetAlertHistory(), 10, "热更新后历史上限应生效")

	err = dispatcher.Configure(config.AlertingConfig{MinSeverity: "fatal"})
	assert.Error(t, err, "非法级别应被拒绝")
}
