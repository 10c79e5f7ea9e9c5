/*
 * @module service/health/health_aggregator
 * @description 健康聚合器，运行命名健康检查函数，聚合最差状态，检测状态迁移并触发告警，状态镜像到指标注册中心
 * @architecture 分层架构 - 业务服务层
 * @documentReference dev_docs/monitoring_design.md
 * @stateFlow 定时触发 -> 逐项检查 -> 最差聚合 -> 迁移检测 -> 告警分发 -> 指标镜像
 * @rules 检查函数异常时该组件记为unknown不中断本轮，unknown不单独拉低整体状态，状态未变化不重复告警
 * @dependencies sentinel-service/service/models, sentinel-service/service/config
 * @refs service/alerting/alert_dispatcher.go, service/metrics/metrics_registry.go
 */

package health

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"sentinel-service/service/config"
	"sentinel-service/service/models"
)

// CheckFunc 组件健康检查函数
type CheckFunc func(ctx context.Context) models.ComponentHealth

// Alerter 告警接收方
type Alerter interface {
	Alert(input models.AlertInput) (*models.Alert, error)
}

// MetricsSink 健康状态镜像的指标接收方
type MetricsSink interface {
	SetCustomMetric(name string, value float64)
}

// HealthAggregator 健康聚合器
type HealthAggregator struct {
	mutex        sync.RWMutex
	alerter      Alerter
	metrics      MetricsSink
	checks       map[string]CheckFunc
	history      []*models.AppHealth
	historyLimit int
	lastStatus   models.HealthState
	version      string
	startTime    time.Time

	stopChan chan struct{}
	started  bool
	wg       sync.WaitGroup
}

// NewHealthAggregator 创建健康聚合器实例
func NewHealthAggregator(cfg config.HealthConfig, alerter Alerter, metrics MetricsSink) *HealthAggregator {
	historyLimit := cfg.HistoryLimit
	if historyLimit <= 0 {
		historyLimit = config.DefaultHealthHistoryLimit
	}
	return &HealthAggregator{
		alerter:      alerter,
		metrics:      metrics,
		checks:       make(map[string]CheckFunc),
		historyLimit: historyLimit,
		version:      cfg.Version,
		startTime:    time.Now(),
	}
}

// RegisterComponent 注册组件健康检查，同名覆盖
func (h *HealthAggregator) RegisterComponent(name string, check CheckFunc) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.checks[name] = check
}

// UnregisterComponent 注销组件健康检查，返回组件是否存在
func (h *HealthAggregator) UnregisterComponent(name string) bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if _, exists := h.checks[name]; !exists {
		return false
	}
	delete(h.checks, name)
	return true
}

// StartHealthChecks 启动定时健康检查，启动时立即执行一轮
func (h *HealthAggregator) StartHealthChecks(interval time.Duration) {
	h.mutex.Lock()
	if h.started {
		h.mutex.Unlock()
		return
	}
	if interval <= 0 {
		interval = config.DefaultHealthCheckInterval
	}
	h.started = true
	h.stopChan = make(chan struct{})
	stop := h.stopChan
	h.mutex.Unlock()

	h.CheckHealth(context.Background())

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				h.CheckHealth(context.Background())
			}
		}
	}()
}

// StopHealthChecks 停止定时健康检查，可重复调用
func (h *HealthAggregator) StopHealthChecks() {
	h.mutex.Lock()
	if !h.started {
		h.mutex.Unlock()
		return
	}
	h.started = false
	close(h.stopChan)
	h.mutex.Unlock()
	h.wg.Wait()
}

// Shutdown 关闭健康聚合器，可重复调用
func (h *HealthAggregator) Shutdown() {
	h.StopHealthChecks()
}

// CheckHealth 执行一轮完整健康检查并聚合整体状态
func (h *HealthAggregator) CheckHealth(ctx context.Context) *models.AppHealth {
	h.mutex.RLock()
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	checks := make(map[string]CheckFunc, len(h.checks))
	for name, check := range h.checks {
		checks[name] = check
	}
	h.mutex.RUnlock()

	components := make([]models.ComponentHealth, 0, len(names))
	for _, name := range names {
		components = append(components, h.runCheck(ctx, name, checks[name]))
	}

	appHealth := &models.AppHealth{
		Status:     aggregateStatus(components),
		Components: components,
		CheckedAt:  time.Now(),
		Version:    h.version,
		Uptime:     time.Since(h.startTime).Seconds(),
	}

	h.mutex.Lock()
	h.history = append(h.history, appHealth)
	if len(h.history) > h.historyLimit {
		h.history = h.history[len(h.history)-h.historyLimit:]
	}
	previous := h.lastStatus
	h.lastStatus = appHealth.Status
	h.mutex.Unlock()

	if previous != "" && previous != appHealth.Status {
		h.notifyTransition(previous, appHealth)
	}
	h.mirrorToMetrics(appHealth)

	return appHealth
}

// runCheck 执行单个检查函数并捕获异常，异常组件记为unknown
func (h *HealthAggregator) runCheck(ctx context.Context, name string, check CheckFunc) (result models.ComponentHealth) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("健康检查异常", "component", name, "panic", r)
			result = models.ComponentHealth{
				Name:      name,
				Status:    models.HealthStatusUnknown,
				Message:   fmt.Sprintf("健康检查异常: %v", r),
				CheckedAt: time.Now(),
			}
		}
	}()

	result = check(ctx)
	result.Name = name
	if result.CheckedAt.IsZero() {
		result.CheckedAt = time.Now()
	}
	return result
}

// aggregateStatus 聚合整体状态：取最严重的非unknown状态，无有效状态时为healthy
func aggregateStatus(components []models.ComponentHealth) models.HealthState {
	worst := models.HealthStatusHealthy
	for _, component := range components {
		if component.Status.Rank() < 0 {
			continue
		}
		if component.Status.WorseThan(worst) {
			worst = component.Status
		}
	}
	return worst
}

// notifyTransition 状态迁移告警：降级为warning，不健康为critical，恢复为info
func (h *HealthAggregator) notifyTransition(previous models.HealthState, appHealth *models.AppHealth) {
	slog.Info("应用健康状态变化", "from", previous, "to", appHealth.Status)
	if h.alerter == nil {
		return
	}

	var severity models.AlertSeverity
	switch appHealth.Status {
	case models.HealthStatusDegraded:
		severity = models.SeverityWarning
	case models.HealthStatusUnhealthy:
		severity = models.SeverityCritical
	default:
		severity = models.SeverityInfo
	}

	_, err := h.alerter.Alert(models.AlertInput{
		Title:    "应用健康状态变化",
		Message:  fmt.Sprintf("整体健康状态从 %s 变为 %s", previous, appHealth.Status),
		Severity: severity,
		Source:   "health",
		Tags: map[string]string{
			"from": string(previous),
			"to":   string(appHealth.Status),
		},
	})
	if err != nil {
		slog.Error("健康状态迁移告警失败", "error", err)
	}
}

// mirrorToMetrics 将整体和各组件状态镜像为自定义数值指标
func (h *HealthAggregator) mirrorToMetrics(appHealth *models.AppHealth) {
	if h.metrics == nil {
		return
	}
	h.metrics.SetCustomMetric("health_overall", statusValue(appHealth.Status))
	for _, component := range appHealth.Components {
		h.metrics.SetCustomMetric("health_component_"+component.Name, statusValue(component.Status))
	}
}

// statusValue 状态的数值表示：healthy=0 degraded=1 unhealthy=2 unknown=-1
func statusValue(status models.HealthState) float64 {
	return float64(status.Rank())
}

// GetHistory 获取健康检查历史的防御性副本
func (h *HealthAggregator) GetHistory() []models.AppHealth {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	history := make([]models.AppHealth, 0, len(h.history))
	for _, appHealth := range h.history {
		history = append(history, *appHealth)
	}
	return history
}

// LastStatus 获取最近一次聚合的整体状态
func (h *HealthAggregator) LastStatus() models.HealthState {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.lastStatus
}
