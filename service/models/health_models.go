/*
 * @module service/models/health_models
 * @description 健康检查数据模型，定义组件健康状态和应用整体健康结构
 * @architecture 分层架构 - 数据模型层
 * @documentReference dev_docs/monitoring_design.md
 * @stateFlow 组件检查 -> 状态聚合 -> 历史记录
 * @rules 整体状态等于最严重的非unknown组件状态，全unknown聚合为healthy
 * @dependencies time
 * @refs service/health/
 */

package models

import "time"

// HealthState 健康状态
type HealthState string

const (
	HealthStatusHealthy   HealthState = "healthy"
	HealthStatusDegraded  HealthState = "degraded"
	HealthStatusUnhealthy HealthState = "unhealthy"
	HealthStatusUnknown   HealthState = "unknown"
)

// healthRanks 状态严重程度排序，unknown不参与聚合比较
var healthRanks = map[HealthState]int{
	HealthStatusHealthy:   0,
	HealthStatusDegraded:  1,
	HealthStatusUnhealthy: 2,
}

// Rank 返回状态严重程度序号，unknown返回-1
func (s HealthState) Rank() int {
	if rank, ok := healthRanks[s]; ok {
		return rank
	}
	return -1
}

// WorseThan 判断状态是否比另一状态更严重
func (s HealthState) WorseThan(other HealthState) bool {
	return s.Rank() > other.Rank()
}

// ComponentHealth 单个组件的健康检查结果
type ComponentHealth struct {
	Name      string                 `json:"name"`
	Status    HealthState            `json:"status"`
	Message   string                 `json:"message,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	CheckedAt time.Time              `json:"checked_at"`
}

// AppHealth 应用整体健康状态
type AppHealth struct {
	Status     HealthState       `json:"status"`
	Components []ComponentHealth `json:"components"`
	CheckedAt  time.Time         `json:"checked_at"`
	Version    string            `json:"version"`
	Uptime     float64           `json:"uptime_seconds"`
}
