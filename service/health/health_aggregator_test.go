/*
 * @module service/health/health_aggregator_test
 * @description 健康聚合器单元测试
 * @architecture 测试层
 * @documentReference dev_docs/monitoring_design.md
 */

package health

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinel-service/service/config"
	"sentinel-service/service/models"
)

// recordingAlerter 记录收到告警的测试接收方
type recordingAlerter struct {
	mutex  sync.Mutex
	alerts []models.AlertInput
}

func (r *recordingAlerter) Alert(input models.AlertInput) (*models.Alert, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.alerts = append(r.alerts, input)
	return &models.Alert{Title: input.Title, Severity: input.Severity}, nil
}

func (r *recordingAlerter) received() []models.AlertInput {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	alerts := make([]models.AlertInput, len(r.alerts))
	copy(alerts, r.alerts)
	return alerts
}

// recordingSink 记录镜像指标的测试接收方
type recordingSink struct {
	mutex  sync.Mutex
	values map[string]float64
}

func (r *recordingSink) SetCustomMetric(name string, value float64) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.values == nil {
		r.values = make(map[string]float64)
	}
	r.values[name] = value
}

func (r *recordingSink) get(name string) (float64, bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	value, ok := r.values[name]
	return value, ok
}

// staticCheck 返回固定状态的检查函数
func staticCheck(status models.HealthState) CheckFunc {
	return func(ctx context.Context) models.ComponentHealth {
		return models.ComponentHealth{Status: status}
	}
}

// newTestAggregator 创建测试用健康聚合器
func newTestAggregator(alerter Alerter, sink MetricsSink) *HealthAggregator {
	return NewHealthAggregator(config.HealthConfig{
		IntervalSeconds: 60,
		Version:         "test",
		HistoryLimit:    100,
	}, alerter, sink)
}

// TestCheckHealth_Aggregation 测试最差状态聚合
func TestCheckHealth_Aggregation(t *testing.T) {
	cases := []struct {
		name     string
		statuses []models.HealthState
		expected models.HealthState
	}{
		{"全部健康", []models.HealthState{models.HealthStatusHealthy, models.HealthStatusHealthy}, models.HealthStatusHealthy},
		{"一项降级", []models.HealthState{models.HealthStatusHealthy, models.HealthStatusDegraded}, models.HealthStatusDegraded},
		{"一项不健康", []models.HealthState{models.HealthStatusDegraded, models.HealthStatusUnhealthy}, models.HealthStatusUnhealthy},
		{"unknown不拉低整体", []models.HealthState{models.HealthStatusHealthy, models.HealthStatusUnknown}, models.HealthStatusHealthy},
		{"仅unknown为健康", []models.HealthState{models.HealthStatusUnknown}, models.HealthStatusHealthy},
		{"无检查项为健康", nil, models.HealthStatusHealthy},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			aggregator := newTestAggregator(nil, nil)
			for i, status := range tc.statuses {
				aggregator.RegisterComponent(string(rune('a'+i)), staticCheck(status))
			}

			appHealth := aggregator.CheckHealth(context.Background())
			assert.Equal(t, tc.expected, appHealth.Status, "整体状态应为最差的非unknown状态")
			assert.Len(t, appHealth.Components, len(tc.statuses))
		})
	}
}

// TestCheckHealth_PanicIsolated 测试检查异常记为unknown且不中断本轮
func TestCheckHealth_PanicIsolated(t *testing.T) {
	aggregator := newTestAggregator(nil, nil)
	aggregator.RegisterComponent("broken", func(ctx context.Context) models.ComponentHealth {
		panic("检查崩溃")
	})
	aggregator.RegisterComponent("ok", staticCheck(models.HealthStatusHealthy))

	appHealth := aggregator.CheckHealth(context.Background())
	require.Len(t, appHealth.Components, 2, "异常检查不应中断其他检查")
	assert.Equal(t, models.HealthStatusHealthy, appHealth.Status, "unknown不应拉低整体状态")

	byName := make(map[string]models.ComponentHealth)
	for _, component := range appHealth.Components {
		byName[component.Name] = component
	}
	assert.Equal(t, models.HealthStatusUnknown, byName["broken"].Status, "异常检查应记为unknown")
	assert.Contains(t, byName["broken"].Message, "健康检查异常")
}

// TestCheckHealth_TransitionAlerts 测试状态迁移告警只在变化时触发
func TestCheckHealth_TransitionAlerts(t *testing.T) {
	alerter := &recordingAlerter{}
	aggregator := newTestAggregator(alerter, nil)

	status := models.HealthStatusHealthy
	var mutex sync.Mutex
	aggregator.RegisterComponent("app", func(ctx context.Context) models.ComponentHealth {
		mutex.Lock()
		defer mutex.Unlock()
		return models.ComponentHealth{Status: status}
	})

	setStatus := func(s models.HealthState) {
		mutex.Lock()
		status = s
		mutex.Unlock()
	}

	// 首轮建立基线，不告警
	aggregator.CheckHealth(context.Background())
	assert.Empty(t, alerter.received(), "首轮检查不应产生迁移告警")

	// healthy -> degraded 触发warning
	setStatus(models.HealthStatusDegraded)
	aggregator.CheckHealth(context.Background())
	alerts := alerter.received()
	require.Len(t, alerts, 1)
	assert.Equal(t, models.SeverityWarning, alerts[0].Severity, "降级应产生warning告警")
	assert.Equal(t, "health", alerts[0].Source)
	assert.Equal(t, "healthy", alerts[0].Tags["from"])
	assert.Equal(t, "degraded", alerts[0].Tags["to"])

	// 状态不变不重复告警
	aggregator.CheckHealth(context.Background())
	assert.Len(t, alerter.received(), 1, "状态未变化不应重复告警")

	// degraded -> unhealthy 触发critical
	setStatus(models.HealthStatusUnhealthy)
	aggregator.CheckHealth(context.Background())
	alerts = alerter.received()
	require.Len(t, alerts, 2)
	assert.Equal(t, models.SeverityCritical, alerts[1].Severity, "不健康应产生critical告警")

	// unhealthy -> healthy 恢复为info
	setStatus(models.HealthStatusHealthy)
	aggregator.CheckHealth(context.Background())
	alerts = alerter.received()
	require.Len(t, alerts, 3)
	assert.Equal(t, models.SeverityInfo, alerts[2].Severity, "恢复应产生info告警")
}

// TestCheckHealth_MirrorToMetrics 测试健康状态镜像为数值指标
func TestCheckHealth_MirrorToMetrics(t *testing.T) {
	sink := &recordingSink{}
	aggregator := newTestAggregator(nil, sink)
	aggregator.RegisterComponent("db", staticCheck(models.HealthStatusDegraded))
	aggregator.RegisterComponent("cpu", staticCheck(models.HealthStatusHealthy))

	aggregator.CheckHealth(context.Background())

	overall, ok := sink.get("health_overall")
	require.True(t, ok, "整体状态应被镜像")
	assert.Equal(t, 1.0, overall, "degraded应映射为1")

	db, ok := sink.get("health_component_db")
	require.True(t, ok)
	assert.Equal(t, 1.0, db)

	cpu, ok := sink.get("health_component_cpu")
	require.True(t, ok)
	assert.Equal(t, 0.0, cpu, "healthy应映射为0")
}

// TestHistory_Bounded 测试健康历史上限
func TestHistory_Bounded(t *testing.T) {
	aggregator := NewHealthAggregator(config.HealthConfig{
		IntervalSeconds: 60,
		HistoryLimit:    10,
	}, nil, nil)
	aggregator.RegisterComponent("app", staticCheck(models.HealthStatusHealthy))

	for i := 0; i < 25; i++ {
		aggregator.CheckHealth(context.Background())
	}

	history := aggregator.GetHistory()
	assert.Len(t, history, 10, "历史应保留最近10条")
	assert.Equal(t, models.HealthStatusHealthy, aggregator.LastStatus())
}

// TestUnregisterComponent 测试组件注销
func TestUnregisterComponent(t *testing.T) {
	aggregator := newTestAggregator(nil, nil)
	aggregator.RegisterComponent("temp", staticCheck(models.HealthStatusUnhealthy))

	assert.True(t, aggregator.UnregisterComponent("temp"), "存在的组件应注销成功")
	assert.False(t, aggregator.UnregisterComponent("temp"), "重复注销应返回false")

	appHealth := aggregator.CheckHealth(context.Background())
	assert.Empty(t, appHealth.Components, "注销后不应再执行该检查")
	assert.Equal(t, models.HealthStatusHealthy, appHealth.Status)
}

// TestStartStopHealthChecks 测试健康检查循环启停的幂等性
func TestStartStopHealthChecks(t *testing.T) {
	aggregator := newTestAggregator(nil, nil)
	aggregator.RegisterComponent("app", staticCheck(models.HealthStatusHealthy))

	aggregator.StartHealthChecks(0)
	aggregator.StartHealthChecks(0)

	assert.NotEmpty(t, aggregator.GetHistory(), "启动时应立即执行一轮检查")

	aggregator.StopHealthChecks()
	aggregator.StopHealthChecks()
	aggregator.Shutdown()
}
