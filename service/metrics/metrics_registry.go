/*
 * @module service/metrics/metrics_registry
 * @description 指标注册中心，周期性采集CPU、内存、磁盘、进程、网络和数据库指标，合并自定义指标并评估告警阈值
 * @architecture 分层架构 - 业务服务层
 * @documentReference dev_docs/monitoring_design.md
 * @stateFlow 定时触发 -> 指标采集 -> 快照存储 -> 阈值评估 -> 告警分发
 * @rules 采集不可重入（进行中的采集直接跳过），单项采集失败该项归零不中断整个快照，每类指标每轮最多一条告警且critical优先
 * @dependencies github.com/shirou/gopsutil/v4, github.com/prometheus/client_golang, gorm.io/gorm
 * @refs service/alerting/alert_dispatcher.go, service/health/health_aggregator.go
 */

package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
	gopsnet "github.com/shirou/gopsutil/v4/net"
	"github.com/shirou/gopsutil/v4/process"
	"gorm.io/gorm"

	"sentinel-service/service/config"
	"sentinel-service/service/models"
)

// cpuProbeInterval CPU采样探测时长，短暂阻塞换取精度
const cpuProbeInterval = 100 * time.Millisecond

// Alerter 告警接收方
type Alerter interface {
	Alert(input models.AlertInput) (*models.Alert, error)
}

// MetricsRegistry 指标注册中心
type MetricsRegistry struct {
	mutex      sync.RWMutex
	alerter    Alerter
	db         *gorm.DB
	thresholds models.MetricThresholds
	diskPath   string
	interval   time.Duration

	current  *models.MetricsSnapshot
	previous *models.MetricsSnapshot
	custom   map[string]float64

	proc      *process.Process
	startTime time.Time

	// 请求管线上报的累计计数
	requestCount     atomic.Int64
	activeRequests   atomic.Int64
	queryCount       atomic.Int64
	lastRequestTotal atomic.Int64

	// 采集重入保护
	collecting atomic.Bool

	stopChan chan struct{}
	started  bool
	wg       sync.WaitGroup

	// Prometheus镜像
	promCPUUsage    prometheus.Gauge
	promMemoryUsage prometheus.Gauge
	promDiskUsage   prometheus.Gauge
	promRequestRate prometheus.Gauge
}

// NewMetricsRegistry 创建指标注册中心实例
func NewMetricsRegistry(cfg config.MetricsConfig, db *gorm.DB, alerter Alerter) *MetricsRegistry {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		slog.Warn("获取当前进程句柄失败", "error", err)
		proc = nil
	}

	diskPath := cfg.DiskPath
	if diskPath == "" {
		diskPath = "/"
	}
	interval := cfg.Interval()
	if interval <= 0 {
		interval = config.DefaultMetricsInterval
	}

	return &MetricsRegistry{
		alerter:    alerter,
		db:         db,
		thresholds: cfg.Thresholds,
		diskPath:   diskPath,
		interval:   interval,
		custom:     make(map[string]float64),
		proc:       proc,
		startTime:  time.Now(),

		promCPUUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sentinel_cpu_usage_percent",
			Help: "采样的CPU使用率",
		}),
		promMemoryUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sentinel_memory_usage_percent",
			Help: "采样的内存使用率",
		}),
		promDiskUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sentinel_disk_usage_percent",
			Help: "采样的磁盘使用率",
		}),
		promRequestRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sentinel_requests_per_second",
			Help: "计算得到的请求速率",
		}),
	}
}

// PrometheusCollectors 返回需要注册到Prometheus的采集器
func (r *MetricsRegistry) PrometheusCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		r.promCPUUsage,
		r.promMemoryUsage,
		r.promDiskUsage,
		r.promRequestRate,
	}
}

// StartCollection 启动定时采集，启动时立即采集一次；interval<=0时使用配置的间隔
func (r *MetricsRegistry) StartCollection(interval time.Duration) {
	r.mutex.Lock()
	if r.started {
		r.mutex.Unlock()
		return
	}
	if interval <= 0 {
		interval = r.interval
	}
	r.started = true
	r.stopChan = make(chan struct{})
	stop := r.stopChan
	r.mutex.Unlock()

	r.CollectMetrics()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				r.CollectMetrics()
			}
		}
	}()
}

// StopCollection 停止定时采集，可重复调用
func (r *MetricsRegistry) StopCollection() {
	r.mutex.Lock()
	if !r.started {
		r.mutex.Unlock()
		return
	}
	r.started = false
	close(r.stopChan)
	r.mutex.Unlock()
	r.wg.Wait()
}

// Shutdown 关闭指标注册中心
func (r *MetricsRegistry) Shutdown() {
	r.StopCollection()
}

// CollectMetrics 采集一次完整快照。进行中的采集未结束时本次直接跳过
func (r *MetricsRegistry) CollectMetrics() {
	if !r.collecting.CompareAndSwap(false, true) {
		slog.Debug("上一次指标采集尚未结束，跳过本轮")
		return
	}
	defer r.collecting.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	snapshot := &models.MetricsSnapshot{
		Timestamp: time.Now(),
		CPU:       r.sampleCPU(ctx),
		Memory:    r.sampleMemory(ctx),
		Disk:      r.sampleDisk(ctx),
		Process:   r.sampleProcess(ctx),
		Network:   r.sampleNetwork(ctx),
		Database:  r.sampleDatabase(ctx),
	}

	r.mutex.Lock()
	if len(r.custom) > 0 {
		snapshot.Custom = make(map[string]float64, len(r.custom))
		for name, value := range r.custom {
			snapshot.Custom[name] = value
		}
	}
	// 速率字段在发布前算完，快照一经发布不再写入
	previous := r.current
	r.applyRates(snapshot, previous)
	r.previous = previous
	r.current = snapshot
	r.mutex.Unlock()

	r.promCPUUsage.Set(snapshot.CPU.UsagePercent)
	r.promMemoryUsage.Set(snapshot.Memory.UsagePercent)
	r.promDiskUsage.Set(snapshot.Disk.UsagePercent)
	r.promRequestRate.Set(snapshot.Network.RequestsPerSecond)

	r.CheckThresholds(snapshot)
}

// sampleCPU 采集CPU指标，失败项归零
func (r *MetricsRegistry) sampleCPU(ctx context.Context) models.CPUMetrics {
	metrics := models.CPUMetrics{CoreCount: runtime.NumCPU()}

	// 固定时长的阻塞探测，按核心数归一化并封顶100
	percents, err := cpu.PercentWithContext(ctx, cpuProbeInterval, false)
	if err != nil || len(percents) == 0 {
		slog.Debug("CPU使用率采集失败", "error", err)
	} else {
		metrics.UsagePercent = clampPercent(percents[0])
	}

	loadStats, err := load.AvgWithContext(ctx)
	if err != nil {
		slog.Debug("负载采集失败", "error", err)
	} else {
		metrics.LoadAvg = [3]float64{loadStats.Load1, loadStats.Load5, loadStats.Load15}
	}
	return metrics
}

// sampleMemory 采集内存指标，失败项归零
func (r *MetricsRegistry) sampleMemory(ctx context.Context) models.MemoryMetrics {
	memoryStats, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil || memoryStats == nil {
		slog.Debug("内存采集失败", "error", err)
		return models.MemoryMetrics{}
	}
	return models.MemoryMetrics{
		Total:        memoryStats.Total,
		Free:         memoryStats.Available,
		Used:         memoryStats.Used,
		UsagePercent: clampPercent(memoryStats.UsedPercent),
	}
}

// sampleDisk 采集磁盘指标，失败项归零
func (r *MetricsRegistry) sampleDisk(ctx context.Context) models.DiskMetrics {
	diskStats, err := disk.UsageWithContext(ctx, r.diskPath)
	if err != nil || diskStats == nil {
		slog.Debug("磁盘采集失败", "path", r.diskPath, "error", err)
		return models.DiskMetrics{}
	}
	return models.DiskMetrics{
		Total:        diskStats.Total,
		Free:         diskStats.Free,
		Used:         diskStats.Used,
		UsagePercent: clampPercent(diskStats.UsedPercent),
	}
}

// sampleProcess 采集当前进程指标，失败项归零
func (r *MetricsRegistry) sampleProcess(ctx context.Context) models.ProcessMetrics {
	metrics := models.ProcessMetrics{
		UptimeSeconds:  time.Since(r.startTime).Seconds(),
		GoroutineCount: runtime.NumGoroutine(),
		ActiveRequests: r.activeRequests.Load(),
	}

	if r.proc == nil {
		return metrics
	}
	if memInfo, err := r.proc.MemoryInfoWithContext(ctx); err != nil {
		slog.Debug("进程内存采集失败", "error", err)
	} else if memInfo != nil {
		metrics.MemoryRSS = memInfo.RSS
	}
	if cpuPercent, err := r.proc.CPUPercentWithContext(ctx); err != nil {
		slog.Debug("进程CPU采集失败", "error", err)
	} else {
		metrics.CPUPercent = clampPercent(cpuPercent / float64(runtime.NumCPU()))
	}
	return metrics
}

// sampleNetwork 采集网络指标，失败项归零
func (r *MetricsRegistry) sampleNetwork(ctx context.Context) models.NetworkMetrics {
	metrics := models.NetworkMetrics{}

	counters, err := gopsnet.IOCountersWithContext(ctx, false)
	if err != nil || len(counters) == 0 {
		slog.Debug("网络流量采集失败", "error", err)
	} else {
		metrics.BytesReceived = counters[0].BytesRecv
		metrics.BytesSent = counters[0].BytesSent
	}

	connections, err := gopsnet.ConnectionsWithContext(ctx, "tcp")
	if err != nil {
		slog.Debug("网络连接采集失败", "error", err)
	} else {
		metrics.Connections = len(connections)
	}
	return metrics
}

// sampleDatabase 采集数据库指标：连接数来自连接池，查询耗时通过探测查询测量
func (r *MetricsRegistry) sampleDatabase(ctx context.Context) models.DatabaseMetrics {
	metrics := models.DatabaseMetrics{QueryCount: r.queryCount.Load()}
	if r.db == nil {
		return metrics
	}

	sqlDB, err := r.db.DB()
	if err != nil {
		slog.Debug("获取数据库连接池失败", "error", err)
		return metrics
	}
	metrics.Connections = sqlDB.Stats().OpenConnections

	start := time.Now()
	if err := sqlDB.PingContext(ctx); err != nil {
		slog.Debug("数据库探测失败", "error", err)
		return metrics
	}
	metrics.QueryTimeMs = float64(time.Since(start).Microseconds()) / 1000
	return metrics
}

// applyRates 基于上一快照的增量和实际耗时计算速率字段
func (r *MetricsRegistry) applyRates(snapshot, previous *models.MetricsSnapshot) {
	requestTotal := r.requestCount.Load()
	if previous == nil {
		r.lastRequestTotal.Store(requestTotal)
		return
	}

	elapsed := snapshot.Timestamp.Sub(previous.Timestamp).Seconds()
	if elapsed <= 0 {
		return
	}

	lastRequests := r.lastRequestTotal.Swap(requestTotal)
	if requestTotal >= lastRequests {
		snapshot.Network.RequestsPerSecond = float64(requestTotal-lastRequests) / elapsed
	}

	// 系统计数器回绕（网卡重置或重启）时该轮速率保持为0
	if snapshot.Network.BytesReceived >= previous.Network.BytesReceived {
		snapshot.Network.BytesRecvPerSecond = float64(snapshot.Network.BytesReceived-previous.Network.BytesReceived) / elapsed
	}
	if snapshot.Network.BytesSent >= previous.Network.BytesSent {
		snapshot.Network.BytesSentPerSecond = float64(snapshot.Network.BytesSent-previous.Network.BytesSent) / elapsed
	}
}

// GetMetrics 获取最新快照的副本
func (r *MetricsRegistry) GetMetrics() *models.MetricsSnapshot {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	if r.current == nil {
		return nil
	}
	snapshot := *r.current
	if r.current.Custom != nil {
		snapshot.Custom = make(map[string]float64, len(r.current.Custom))
		for name, value := range r.current.Custom {
			snapshot.Custom[name] = value
		}
	}
	return &snapshot
}

// SetCustomMetric 注入自定义指标，合并进后续的每个新快照
func (r *MetricsRegistry) SetCustomMetric(name string, value float64) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.custom[name] = value
}

// RemoveCustomMetric 移除自定义指标
func (r *MetricsRegistry) RemoveCustomMetric(name string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	delete(r.custom, name)
}

// RecordRequest 请求管线上报一次请求
func (r *MetricsRegistry) RecordRequest() {
	r.requestCount.Add(1)
}

// RequestStarted 请求开始处理
func (r *MetricsRegistry) RequestStarted() {
	r.activeRequests.Add(1)
}

// RequestFinished 请求处理结束
func (r *MetricsRegistry) RequestFinished() {
	r.activeRequests.Add(-1)
}

// RecordQuery 上报一次数据库查询
func (r *MetricsRegistry) RecordQuery() {
	r.queryCount.Add(1)
}

// ConfigureThresholds 合并运行时阈值覆盖
func (r *MetricsRegistry) ConfigureThresholds(overrides models.ThresholdOverrides) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if overrides.CPU != nil {
		r.thresholds.CPU = *overrides.CPU
	}
	if overrides.Memory != nil {
		r.thresholds.Memory = *overrides.Memory
	}
	if overrides.Disk != nil {
		r.thresholds.Disk = *overrides.Disk
	}
	if overrides.QueryTime != nil {
		r.thresholds.QueryTime = *overrides.QueryTime
	}
}

// GetThresholds 获取当前阈值配置
func (r *MetricsRegistry) GetThresholds() models.MetricThresholds {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.thresholds
}

// thresholdCategory 阈值评估类别
type thresholdCategory struct {
	name  string
	value float64
	pair  models.ThresholdPair
	unit  string
}

// CheckThresholds 评估快照的各类阈值：critical优先，命中后抑制同类warning，每类每轮最多一条告警
func (r *MetricsRegistry) CheckThresholds(snapshot *models.MetricsSnapshot) {
	if snapshot == nil || r.alerter == nil {
		return
	}

	r.mutex.RLock()
	thresholds := r.thresholds
	r.mutex.RUnlock()

	categories := []thresholdCategory{
		{name: "cpu", value: snapshot.CPU.UsagePercent, pair: thresholds.CPU, unit: "%"},
		{name: "memory", value: snapshot.Memory.UsagePercent, pair: thresholds.Memory, unit: "%"},
		{name: "disk", value: snapshot.Disk.UsagePercent, pair: thresholds.Disk, unit: "%"},
		{name: "query_time", value: snapshot.Database.QueryTimeMs, pair: thresholds.QueryTime, unit: "ms"},
	}

	for _, category := range categories {
		var severity models.AlertSeverity
		var threshold float64
		switch {
		case category.value >= category.pair.Critical:
			severity = models.SeverityCritical
			threshold = category.pair.Critical
		case category.value >= category.pair.Warning:
			severity = models.SeverityWarning
			threshold = category.pair.Warning
		default:
			continue
		}

		_, err := r.alerter.Alert(models.AlertInput{
			Title:    fmt.Sprintf("%s 指标超过阈值", category.name),
			Message:  fmt.Sprintf("%s 当前值 %.2f%s 超过 %s 阈值 %.2f%s", category.name, category.value, category.unit, severity, threshold, category.unit),
			Severity: severity,
			Source:   "metrics:" + category.name,
			Tags:     map[string]string{"category": category.name},
			Data: map[string]interface{}{
				"value":     category.value,
				"threshold": threshold,
			},
		})
		if err != nil {
			slog.Error("阈值告警触发失败", "category", category.name, "error", err)
		}
	}
}

// RuleParams 将最新快照展开为脚本规则参数
func (r *MetricsRegistry) RuleParams() map[string]interface{} {
	snapshot := r.GetMetrics()
	if snapshot == nil {
		return map[string]interface{}{}
	}

	params := map[string]interface{}{
		"cpu.usage_percent":        snapshot.CPU.UsagePercent,
		"cpu.load_1":               snapshot.CPU.LoadAvg[0],
		"cpu.core_count":           snapshot.CPU.CoreCount,
		"memory.usage_percent":     snapshot.Memory.UsagePercent,
		"disk.usage_percent":       snapshot.Disk.UsagePercent,
		"process.uptime_seconds":   snapshot.Process.UptimeSeconds,
		"process.goroutines":       snapshot.Process.GoroutineCount,
		"network.requests_per_s":   snapshot.Network.RequestsPerSecond,
		"network.bytes_recv_per_s": snapshot.Network.BytesRecvPerSecond,
		"network.bytes_sent_per_s": snapshot.Network.BytesSentPerSecond,
		"database.query_time_ms":   snapshot.Database.QueryTimeMs,
		"database.connections":     snapshot.Database.Connections,
	}
	for name, value := range snapshot.Custom {
		params["custom."+name] = value
	}
	return params
}

// clampPercent 百分比裁剪到0-100
func clampPercent(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 100 {
		return 100
	}
	return value
}
