/*
 * @module service/alerting/alert_dispatcher
 * @description 告警分发器，负责告警级别过滤、多渠道分发、有界历史记录、确认处理和规则注册评估
 * @architecture 分层架构 - 业务服务层
 * @documentReference dev_docs/monitoring_design.md
 * @stateFlow 告警接收 -> 级别过滤 -> 渠道分发 -> 历史记录；规则注册 -> 定时评估 -> 告警触发
 * @rules 历史记录FIFO上限100条，单渠道失败不影响其他渠道，规则评估异常不中断其他规则
 * @dependencies github.com/google/uuid, sentinel-service/service/config
 * @refs service/alerting/notification.go, service/metrics/, service/health/
 */

package alerting

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"sentinel-service/service/config"
	"sentinel-service/service/models"
)

// RulePredicate 告警规则谓词，返回true时触发规则模板告警
type RulePredicate func() bool

// ValidationError 告警载荷校验错误
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("告警载荷校验失败: 字段 %s %s", e.Field, e.Reason)
}

// alertRule 已注册的告警规则
type alertRule struct {
	name      string
	predicate RulePredicate
	template  models.AlertInput
}

// AlertDispatcher 告警分发器
type AlertDispatcher struct {
	mutex        sync.RWMutex
	channels     []NotificationSender
	minSeverity  models.AlertSeverity
	history      []*models.Alert
	historyLimit int
	rules        map[string]*alertRule
	ruleInterval time.Duration

	// 脚本规则的运行时参数来源
	paramsProvider func() map[string]interface{}

	stopChan chan struct{}
	started  bool
	wg       sync.WaitGroup
}

// NewAlertDispatcher 创建告警分发器实例
func NewAlertDispatcher(cfg config.AlertingConfig) (*AlertDispatcher, error) {
	d := &AlertDispatcher{
		rules: make(map[string]*alertRule),
	}
	if err := d.Configure(cfg); err != nil {
		return nil, err
	}
	return d, nil
}

// Configure 应用告警配置，支持运行时热更新
func (d *AlertDispatcher) Configure(cfg config.AlertingConfig) error {
	minSeverity := cfg.MinSeverity
	if !minSeverity.IsValid() {
		return fmt.Errorf("无效的最低告警级别: %s", minSeverity)
	}

	channels := make([]NotificationSender, 0, len(cfg.Channels))
	for _, channelCfg := range cfg.Channels {
		channel, err := NewChannel(channelCfg.Type, channelCfg.Settings)
		if err != nil {
			return err
		}
		channels = append(channels, channel)
	}

	historyLimit := cfg.HistoryLimit
	if historyLimit <= 0 {
		historyLimit = config.DefaultAlertHistoryLimit
	}
	ruleInterval := cfg.RuleInterval()
	if ruleInterval <= 0 {
		ruleInterval = config.DefaultRuleCheckInterval
	}

	d.mutex.Lock()
	defer d.mutex.Unlock()

	old := d.channels
	d.channels = channels
	d.minSeverity = minSeverity
	d.historyLimit = historyLimit
	d.ruleInterval = ruleInterval
	if len(d.history) > historyLimit {
		d.history = d.history[len(d.history)-historyLimit:]
	}

	closeChannels(old)
	return nil
}

// closeChannels 关闭持有连接的旧渠道
func closeChannels(channels []NotificationSender) {
	for _, channel := range channels {
		if closer, ok := channel.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				slog.Warn("关闭通知渠道失败", "channel", channel.GetChannelType(), "error", err)
			}
		}
	}
}

// Alert 接收告警：生成ID和时间戳，记入有界历史，按级别过滤后分发到各渠道
func (d *AlertDispatcher) Alert(input models.AlertInput) (*models.Alert, error) {
	if input.Title == "" {
		return nil, &ValidationError{Field: "title", Reason: "不能为空"}
	}
	if input.Message == "" {
		return nil, &ValidationError{Field: "message", Reason: "不能为空"}
	}
	if !input.Severity.IsValid() {
		return nil, &ValidationError{Field: "severity", Reason: fmt.Sprintf("无效级别 %q", input.Severity)}
	}

	alert := &models.Alert{
		ID:        uuid.NewString(),
		Title:     input.Title,
		Message:   input.Message,
		Severity:  input.Severity,
		Timestamp: time.Now(),
		Source:    input.Source,
		Tags:      input.Tags,
		Data:      input.Data,
	}

	d.mutex.Lock()
	d.history = append(d.history, alert)
	if len(d.history) > d.historyLimit {
		d.history = d.history[len(d.history)-d.historyLimit:]
	}
	channels := make([]NotificationSender, len(d.channels))
	copy(channels, d.channels)
	minSeverity := d.minSeverity
	d.mutex.Unlock()

	if !alert.Severity.AtLeast(minSeverity) {
		return alert, nil
	}

	// 渠道间相互隔离：单个渠道失败只记录日志，不影响其余渠道
	for _, channel := range channels {
		if err := channel.Send(alert); err != nil {
			slog.Error("通知渠道发送失败",
				"channel", channel.GetChannelType(),
				"alert_id", alert.ID,
				"error", err)
		}
	}
	return alert, nil
}

// AddRule 注册告警规则，同名规则覆盖
func (d *AlertDispatcher) AddRule(name string, predicate RulePredicate, template models.AlertInput) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.rules[name] = &alertRule{name: name, predicate: predicate, template: template}
}

// RemoveRule 移除告警规则，返回规则是否存在
func (d *AlertDispatcher) RemoveRule(name string) bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if _, exists := d.rules[name]; !exists {
		return false
	}
	delete(d.rules, name)
	return true
}

// SetRuleParams 设置脚本规则的运行时参数来源
func (d *AlertDispatcher) SetRuleParams(provider func() map[string]interface{}) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.paramsProvider = provider
}

// EvaluateRules 评估所有已注册规则，谓词异常被隔离记录，命中规则触发模板告警
func (d *AlertDispatcher) EvaluateRules() {
	d.mutex.RLock()
	rules := make([]*alertRule, 0, len(d.rules))
	for _, rule := range d.rules {
		rules = append(rules, rule)
	}
	d.mutex.RUnlock()

	for _, rule := range rules {
		if d.evaluateRule(rule) {
			if _, err := d.Alert(rule.template); err != nil {
				slog.Error("规则告警触发失败", "rule", rule.name, "error", err)
			}
		}
	}
}

// evaluateRule 执行单条规则谓词并捕获异常
func (d *AlertDispatcher) evaluateRule(rule *alertRule) (triggered bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("告警规则评估异常", "rule", rule.name, "panic", r)
			triggered = false
		}
	}()
	return rule.predicate()
}

// Start 启动规则评估循环
func (d *AlertDispatcher) Start() {
	d.mutex.Lock()
	if d.started {
		d.mutex.Unlock()
		return
	}
	d.started = true
	d.stopChan = make(chan struct{})
	stop := d.stopChan
	interval := d.ruleInterval
	d.mutex.Unlock()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				d.EvaluateRules()
			}
		}
	}()
}

// Shutdown 停止规则评估循环并关闭渠道，可重复调用
func (d *AlertDispatcher) Shutdown() {
	d.mutex.Lock()
	if !d.started {
		d.mutex.Unlock()
		return
	}
	d.started = false
	close(d.stopChan)
	channels := d.channels
	d.channels = nil
	d.mutex.Unlock()

	d.wg.Wait()
	closeChannels(channels)
}

// AcknowledgeAlert 确认告警，返回告警是否存在
func (d *AlertDispatcher) AcknowledgeAlert(alertID, acknowledgedBy string) bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	for _, alert := range d.history {
		if alert.ID == alertID {
			now := time.Now()
			alert.Acknowledged = true
			alert.AcknowledgedBy = acknowledgedBy
			alert.AcknowledgedAt = &now
			return true
		}
	}
	return false
}

// GetAlertHistory 获取告警历史的防御性副本，按到达顺序排列
func (d *AlertDispatcher) GetAlertHistory() []models.Alert {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	history := make([]models.Alert, 0, len(d.history))
	for _, alert := range d.history {
		history = append(history, *alert)
	}
	return history
}

// ruleParams 获取脚本规则参数，未设置来源时返回空映射
func (d *AlertDispatcher) ruleParams() map[string]interface{} {
	d.mutex.RLock()
	provider := d.paramsProvider
	d.mutex.RUnlock()

	if provider == nil {
		return map[string]interface{}{}
	}
	return provider()
}
