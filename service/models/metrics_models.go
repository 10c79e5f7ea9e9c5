/*
 * @module service/models/metrics_models
 * @description 系统指标数据模型，定义CPU、内存、磁盘、进程、网络和数据库指标快照结构
 * @architecture 分层架构 - 数据模型层
 * @documentReference dev_docs/monitoring_design.md
 * @stateFlow 指标采集 -> 快照生成 -> 阈值评估
 * @rules 快照一经生成不可变更，仅保留当前和上一次快照
 * @dependencies time
 * @refs service/metrics/
 */

package models

import "time"

// CPUMetrics CPU指标
type CPUMetrics struct {
	UsagePercent float64    `json:"usage_percent"` // CPU使用率
	LoadAvg      [3]float64 `json:"load_avg"`      // 1/5/15分钟负载
	CoreCount    int        `json:"core_count"`    // 核心数
}

// MemoryMetrics 内存指标
type MemoryMetrics struct {
	Total        uint64  `json:"total"`
	Free         uint64  `json:"free"`
	Used         uint64  `json:"used"`
	UsagePercent float64 `json:"usage_percent"`
}

// DiskMetrics 磁盘指标
type DiskMetrics struct {
	Total        uint64  `json:"total"`
	Free         uint64  `json:"free"`
	Used         uint64  `json:"used"`
	UsagePercent float64 `json:"usage_percent"`
}

// ProcessMetrics 进程指标
type ProcessMetrics struct {
	UptimeSeconds  float64 `json:"uptime_seconds"`  // 进程运行时长
	MemoryRSS      uint64  `json:"memory_rss"`      // 常驻内存
	CPUPercent     float64 `json:"cpu_percent"`     // 进程CPU占用
	GoroutineCount int     `json:"goroutine_count"` // 协程数量
	ActiveRequests int64   `json:"active_requests"` // 处理中请求数
}

// NetworkMetrics 网络指标
type NetworkMetrics struct {
	Connections        int     `json:"connections"`           // 连接数
	BytesReceived      uint64  `json:"bytes_received"`        // 累计接收字节
	BytesSent          uint64  `json:"bytes_sent"`            // 累计发送字节
	BytesRecvPerSecond float64 `json:"bytes_recv_per_second"` // 接收速率，基于上一快照增量
	BytesSentPerSecond float64 `json:"bytes_sent_per_second"` // 发送速率，基于上一快照增量
	RequestsPerSecond  float64 `json:"requests_per_second"`   // 请求速率
}

// DatabaseMetrics 数据库指标
type DatabaseMetrics struct {
	Connections int     `json:"connections"`   // 打开的连接数
	QueryTimeMs float64 `json:"query_time_ms"` // 探测查询耗时
	QueryCount  int64   `json:"query_count"`   // 累计查询数
}

// MetricsSnapshot 指标快照
type MetricsSnapshot struct {
	Timestamp time.Time          `json:"timestamp"`
	CPU       CPUMetrics         `json:"cpu"`
	Memory    MemoryMetrics      `json:"memory"`
	Disk      DiskMetrics        `json:"disk"`
	Process   ProcessMetrics     `json:"process"`
	Network   NetworkMetrics     `json:"network"`
	Database  DatabaseMetrics    `json:"database"`
	Custom    map[string]float64 `json:"custom,omitempty"`
}

// ThresholdPair 告警阈值对
type ThresholdPair struct {
	Warning  float64 `json:"warning" yaml:"warning"`
	Critical float64 `json:"critical" yaml:"critical"`
}

// MetricThresholds 指标阈值配置
type MetricThresholds struct {
	CPU       ThresholdPair `json:"cpu" yaml:"cpu"`
	Memory    ThresholdPair `json:"memory" yaml:"memory"`
	Disk      ThresholdPair `json:"disk" yaml:"disk"`
	QueryTime ThresholdPair `json:"query_time" yaml:"query_time"`
}

// ThresholdOverrides 阈值运行时覆盖，nil字段表示不修改
type ThresholdOverrides struct {
	CPU       *ThresholdPair `json:"cpu,omitempty"`
	Memory    *ThresholdPair `json:"memory,omitempty"`
	Disk      *ThresholdPair `json:"disk,omitempty"`
	QueryTime *ThresholdPair `json:"query_time,omitempty"`
}
