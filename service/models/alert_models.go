/*
 * @module service/models/alert_models
 * @description 告警数据模型，定义告警、告警级别和告警输入结构
 * @architecture 分层架构 - 数据模型层
 * @documentReference dev_docs/monitoring_design.md
 * @stateFlow 告警创建 -> 渠道分发 -> 确认处理
 * @rules 告警级别全序可比较，告警一经创建除确认字段外不可变更
 * @dependencies time
 * @refs service/alerting/
 */

package models

import "time"

// AlertSeverity 告警级别
type AlertSeverity string

const (
	SeverityInfo     AlertSeverity = "info"
	SeverityWarning  AlertSeverity = "warning"
	SeverityError    AlertSeverity = "error"
	SeverityCritical AlertSeverity = "critical"
)

// severityRanks 级别排序表，数值越大越严重
var severityRanks = map[AlertSeverity]int{
	SeverityInfo:     0,
	SeverityWarning:  1,
	SeverityError:    2,
	SeverityCritical: 3,
}

// Rank 返回级别的序号，未知级别按最低级别处理
func (s AlertSeverity) Rank() int {
	if rank, ok := severityRanks[s]; ok {
		return rank
	}
	return 0
}

// IsValid 检查级别是否合法
func (s AlertSeverity) IsValid() bool {
	_, ok := severityRanks[s]
	return ok
}

// AtLeast 判断级别是否达到指定的最低级别
func (s AlertSeverity) AtLeast(min AlertSeverity) bool {
	return s.Rank() >= min.Rank()
}

// Alert 告警实例
type Alert struct {
	ID        string                 `json:"id"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Severity  AlertSeverity          `json:"severity"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Tags      map[string]string      `json:"tags,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`

	// 确认信息
	Acknowledged   bool       `json:"acknowledged"`
	AcknowledgedBy string     `json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
}

// AlertInput 告警输入，ID和时间戳由分发器生成
type AlertInput struct {
	Title    string                 `json:"title"`
	Message  string                 `json:"message"`
	Severity AlertSeverity          `json:"severity"`
	Source   string                 `json:"source"`
	Tags     map[string]string      `json:"tags,omitempty"`
	Data     map[string]interface{} `json:"data,omitempty"`
}
