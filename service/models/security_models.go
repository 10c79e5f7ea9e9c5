/*
 * @module service/models/security_models
 * @description 安全事件数据模型，定义安全事件、风险级别、威胁分析结果和安全报告结构
 * @architecture 分层架构 - 数据模型层
 * @documentReference dev_docs/security_design.md
 * @stateFlow 事件记录 -> 持久化存储 -> 报告聚合
 * @rules 安全事件通过持久化存储写入，仅保留查询所需的最小字段集
 * @dependencies gorm.io/gorm, time
 * @refs service/security/
 */

package models

import "time"

// RiskLevel 风险级别
type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "low"
	RiskLevelMedium   RiskLevel = "medium"
	RiskLevelHigh     RiskLevel = "high"
	RiskLevelCritical RiskLevel = "critical"
)

// 安全事件类型
const (
	EventTypeFailedLogin        = "failed_login"
	EventTypeInjectionAttempt   = "injection_attempt"
	EventTypeRateLimitViolation = "rate_limit_violation"
	EventTypeSuspiciousActivity = "suspicious_activity"
)

// 威胁类型
const (
	ThreatTypeCommandInjection = "COMMAND_INJECTION"
	ThreatTypeSQLInjection     = "SQL_INJECTION"
	ThreatTypeXSS              = "XSS"
	ThreatTypePathTraversal    = "PATH_TRAVERSAL"
)

// SecurityEvent 安全事件，持久化到数据库
type SecurityEvent struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	EventType string    `json:"event_type" gorm:"type:varchar(64);not null;index"`
	ActorID   string    `json:"actor_id,omitempty" gorm:"type:varchar(128);index"`
	Details   JSONB     `json:"details" gorm:"type:jsonb"`
	RiskLevel RiskLevel `json:"risk_level" gorm:"type:varchar(16);not null;index"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

// TableName 指定表名
func (SecurityEvent) TableName() string {
	return "security_events"
}

// RequestSurface 请求分析面，由请求管线拼装后交给入侵检测
type RequestSurface struct {
	Path    string            `json:"path"`
	Query   string            `json:"query"`
	Body    string            `json:"body"`
	Headers map[string]string `json:"headers"`
	IP      string            `json:"ip"`
	ActorID string            `json:"actor_id"`
}

// ThreatAnalysis 威胁分析结果
type ThreatAnalysis struct {
	Detected   bool      `json:"detected"`
	ThreatType string    `json:"threat_type,omitempty"`
	RiskLevel  RiskLevel `json:"risk_level,omitempty"`
	Matches    []string  `json:"matches,omitempty"`
}

// SuspiciousIPRecord 进程内维护的可疑IP计数记录
type SuspiciousIPRecord struct {
	Count    int       `json:"count"`
	LastSeen time.Time `json:"last_seen"`
}

// SuspicionResult 行为可疑度评估结果
type SuspicionResult struct {
	ActorID       string `json:"actor_id"`
	Score         int    `json:"score"`
	IsSuspicious  bool   `json:"is_suspicious"`
	FailedLogins  int64  `json:"failed_logins"`
	RateLimitHits int64  `json:"rate_limit_hits"`
	OtherEvents   int64  `json:"other_events"`
}

// EventGroupCount 按类型和风险级别分组的事件计数
type EventGroupCount struct {
	EventType string    `json:"event_type"`
	RiskLevel RiskLevel `json:"risk_level"`
	Count     int64     `json:"count"`
}

// SecurityReport 安全报告
type SecurityReport struct {
	TimeframeHours int               `json:"timeframe_hours"`
	GeneratedAt    time.Time         `json:"generated_at"`
	EventCounts    []EventGroupCount `json:"event_counts"`
	TopRiskEvents  []SecurityEvent   `json:"top_risk_events"`
	DistinctActors int64             `json:"distinct_actors"`
}
