/*
 * @module service/security/intrusion_detector
 * @description 入侵检测服务：安全事件记录、请求注入分析、主体可疑度评分、可疑IP告警和安全报告生成
 * @architecture 分层架构 - 业务服务层
 * @documentReference dev_docs/security_design.md
 * @stateFlow 事件记录 -> 持久化 -> 可疑IP计数 -> 达阈值触发告警；报告按需聚合生成
 * @rules 评分规则：失败登录>3次+30分，限流违规>2次+25分，其他事件>1次+40分，总分>50为可疑
 * @dependencies gorm.io/gorm, sentinel-service/service/config
 * @refs service/alerting/alert_dispatcher.go, api/controllers/security_controller.go
 */

package security

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"sentinel-service/service/config"
	"sentinel-service/service/models"
)

// 可疑度评分参数
const (
	suspicionWindow         = time.Hour
	failedLoginThreshold    = 3
	failedLoginScore        = 30
	rateLimitThreshold      = 2
	rateLimitScore          = 25
	otherEventThreshold     = 1
	otherEventScore         = 40
	suspicionScoreThreshold = 50

	// suspiciousIPCapacity 可疑IP表的硬上限，防止恶意来源撑爆内存
	suspiciousIPCapacity = 10000
)

// Alerter 告警接收方
type Alerter interface {
	Alert(input models.AlertInput) (*models.Alert, error)
}

// IntrusionDetector 入侵检测服务
type IntrusionDetector struct {
	store   *EventStore
	alerter Alerter

	ipThreshold int
	ipTTL       time.Duration

	mutex         sync.Mutex
	suspiciousIPs map[string]*models.SuspiciousIPRecord
}

// NewIntrusionDetector 创建入侵检测服务实例
func NewIntrusionDetector(cfg config.SecurityConfig, store *EventStore, alerter Alerter) *IntrusionDetector {
	threshold := cfg.IPAlertThreshold
	if threshold <= 0 {
		threshold = config.DefaultSuspiciousIPLimit
	}
	ttl := cfg.SuspiciousIPTTL()
	if ttl <= 0 {
		ttl = config.DefaultSuspiciousIPTTL
	}
	return &IntrusionDetector{
		store:         store,
		alerter:       alerter,
		ipThreshold:   threshold,
		ipTTL:         ttl,
		suspiciousIPs: make(map[string]*models.SuspiciousIPRecord),
	}
}

// LogSecurityEvent 记录安全事件：先持久化，成功后更新可疑IP计数
func (d *IntrusionDetector) LogSecurityEvent(ctx context.Context, eventType string, actorID string, details models.JSONB, riskLevel models.RiskLevel) (*models.SecurityEvent, error) {
	if eventType == "" {
		return nil, fmt.Errorf("安全事件类型不能为空")
	}
	if details == nil {
		details = models.JSONB{}
	}

	event := &models.SecurityEvent{
		EventType: eventType,
		ActorID:   actorID,
		Details:   details,
		RiskLevel: riskLevel,
	}
	if err := d.store.SaveEvent(ctx, event); err != nil {
		return nil, err
	}

	slog.Info("记录安全事件",
		"event_type", eventType,
		"actor_id", actorID,
		"risk_level", riskLevel)

	if ip, ok := details["ip"].(string); ok && ip != "" {
		d.trackSuspiciousIP(ip, eventType)
	}
	return event, nil
}

// AnalyzeRequest 对请求内容做注入特征分析，命中特征的请求同时记录注入事件
func (d *IntrusionDetector) AnalyzeRequest(ctx context.Context, surface models.RequestSurface) models.ThreatAnalysis {
	analysis := matchSignatures(buildAnalysisSurface(surface))
	if !analysis.Detected {
		return analysis
	}

	details := models.JSONB{
		"threat_type": analysis.ThreatType,
		"matches":     analysis.Matches,
		"path":        surface.Path,
	}
	if surface.IP != "" {
		details["ip"] = surface.IP
	}
	if _, err := d.LogSecurityEvent(ctx, models.EventTypeInjectionAttempt, surface.ActorID, details, analysis.RiskLevel); err != nil {
		slog.Error("注入事件记录失败", "error", err)
	}
	return analysis
}

// DetectSuspiciousActivity 评估主体最近一小时的可疑度
func (d *IntrusionDetector) DetectSuspiciousActivity(ctx context.Context, actorID string) (*models.SuspicionResult, error) {
	if actorID == "" {
		return nil, fmt.Errorf("主体标识不能为空")
	}
	since := time.Now().Add(-suspicionWindow)

	failedLogins, err := d.store.CountActorEvents(ctx, actorID, models.EventTypeFailedLogin, since)
	if err != nil {
		return nil, err
	}
	rateLimitHits, err := d.store.CountActorEvents(ctx, actorID, models.EventTypeRateLimitViolation, since)
	if err != nil {
		return nil, err
	}
	otherEvents, err := d.store.CountActorOtherEvents(ctx, actorID,
		[]string{models.EventTypeFailedLogin, models.EventTypeRateLimitViolation}, since)
	if err != nil {
		return nil, err
	}

	score := 0
	if failedLogins > failedLoginThreshold {
		score += failedLoginScore
	}
	if rateLimitHits > rateLimitThreshold {
		score += rateLimitScore
	}
	if otherEvents > otherEventThreshold {
		score += otherEventScore
	}

	result := &models.SuspicionResult{
		ActorID:       actorID,
		Score:         score,
		IsSuspicious:  score > suspicionScoreThreshold,
		FailedLogins:  failedLogins,
		RateLimitHits: rateLimitHits,
		OtherEvents:   otherEvents,
	}
	if result.IsSuspicious {
		slog.Warn("检测到可疑主体", "actor_id", actorID, "score", score)
	}
	return result, nil
}

// trackSuspiciousIP 更新来源IP的事件计数，计数达到阈值时触发告警
func (d *IntrusionDetector) trackSuspiciousIP(ip, eventType string) {
	d.mutex.Lock()
	record, exists := d.suspiciousIPs[ip]
	if !exists {
		if len(d.suspiciousIPs) >= suspiciousIPCapacity {
			d.mutex.Unlock()
			slog.Warn("可疑IP表已满，跳过新IP记录", "ip", ip)
			return
		}
		record = &models.SuspiciousIPRecord{}
		d.suspiciousIPs[ip] = record
	}
	record.Count++
	record.LastSeen = time.Now()
	count := record.Count
	d.mutex.Unlock()

	if count == d.ipThreshold {
		d.notifySuspiciousIP(ip, eventType, count)
	}
}

// notifySuspiciousIP 可疑IP达阈值告警
func (d *IntrusionDetector) notifySuspiciousIP(ip, eventType string, count int) {
	if d.alerter == nil {
		return
	}
	_, err := d.alerter.Alert(models.AlertInput{
		Title:    "检测到可疑IP",
		Message:  fmt.Sprintf("IP %s 已触发 %d 次安全事件，最近事件类型: %s", ip, count, eventType),
		Severity: models.SeverityCritical,
		Source:   "security",
		Tags: map[string]string{
			"type": "SUSPICIOUS_IP",
			"ip":   ip,
		},
	})
	if err != nil {
		slog.Error("可疑IP告警失败", "ip", ip, "error", err)
	}
}

// EvictStaleIPs 清理超过保留时长未活跃的可疑IP记录，返回清理条数
func (d *IntrusionDetector) EvictStaleIPs() int {
	cutoff := time.Now().Add(-d.ipTTL)

	d.mutex.Lock()
	defer d.mutex.Unlock()

	evicted := 0
	for ip, record := range d.suspiciousIPs {
		if record.LastSeen.Before(cutoff) {
			delete(d.suspiciousIPs, ip)
			evicted++
		}
	}
	if evicted > 0 {
		slog.Info("清理过期可疑IP记录", "evicted", evicted)
	}
	return evicted
}

// SuspiciousIPCount 当前可疑IP表大小
func (d *IntrusionDetector) SuspiciousIPCount() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return len(d.suspiciousIPs)
}

// GenerateSecurityReport 生成指定时间范围的安全报告
func (d *IntrusionDetector) GenerateSecurityReport(ctx context.Context, timeframeHours int) (*models.SecurityReport, error) {
	if timeframeHours <= 0 {
		timeframeHours = 24
	}
	since := time.Now().Add(-time.Duration(timeframeHours) * time.Hour)

	counts, err := d.store.GroupCountsSince(ctx, since)
	if err != nil {
		return nil, err
	}
	topRisk, err := d.store.TopRiskEventsSince(ctx, since)
	if err != nil {
		return nil, err
	}
	actors, err := d.store.DistinctActorsSince(ctx, since)
	if err != nil {
		return nil, err
	}

	return &models.SecurityReport{
		TimeframeHours: timeframeHours,
		GeneratedAt:    time.Now(),
		EventCounts:    counts,
		TopRiskEvents:  topRisk,
		DistinctActors: actors,
	}, nil
}
