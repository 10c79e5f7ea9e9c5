/*
 * @module service/health/default_checks
 * @description 默认健康检查集合：数据库往返探测、CPU负载、内存占用和限流器占位检查
 * @architecture 分层架构 - 业务服务层
 * @documentReference dev_docs/monitoring_design.md
 * @stateFlow 探测执行 -> 阈值判定 -> 组件状态返回
 * @rules 数据库响应超1000ms或等待连接超10为degraded，连接失败为unhealthy；负载按核心数归一化
 * @dependencies gorm.io/gorm, sentinel-service/service/metrics
 * @refs service/health/health_aggregator.go
 */

package health

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"sentinel-service/service/metrics"
	"sentinel-service/service/models"
)

// DatabaseCheck 数据库健康检查：测量探测查询往返耗时和连接池等待情况
func DatabaseCheck(db *gorm.DB) CheckFunc {
	return func(ctx context.Context) models.ComponentHealth {
		component := models.ComponentHealth{
			Status:    models.HealthStatusHealthy,
			CheckedAt: time.Now(),
		}
		if db == nil {
			component.Status = models.HealthStatusUnknown
			component.Message = "数据库未配置"
			return component
		}

		sqlDB, err := db.DB()
		if err != nil {
			component.Status = models.HealthStatusUnhealthy
			component.Message = fmt.Sprintf("获取数据库连接池失败: %v", err)
			return component
		}

		probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		start := time.Now()
		if err := sqlDB.PingContext(probeCtx); err != nil {
			component.Status = models.HealthStatusUnhealthy
			component.Message = fmt.Sprintf("数据库连接失败: %v", err)
			return component
		}
		responseTime := time.Since(start)

		stats := sqlDB.Stats()
		component.Details = map[string]interface{}{
			"response_time_ms": float64(responseTime.Microseconds()) / 1000,
			"open_connections": stats.OpenConnections,
			"wait_count":       stats.WaitCount,
		}

		if responseTime > time.Second || stats.WaitCount > 10 {
			component.Status = models.HealthStatusDegraded
			component.Message = fmt.Sprintf("数据库响应缓慢: %v", responseTime)
		}
		return component
	}
}

// CPUCheck CPU健康检查：1分钟负载按核心数归一化，超0.7为degraded，超0.9为unhealthy
func CPUCheck(registry *metrics.MetricsRegistry) CheckFunc {
	return func(ctx context.Context) models.ComponentHealth {
		component := models.ComponentHealth{
			Status:    models.HealthStatusHealthy,
			CheckedAt: time.Now(),
		}

		snapshot := registry.GetMetrics()
		if snapshot == nil || snapshot.CPU.CoreCount == 0 {
			component.Status = models.HealthStatusUnknown
			component.Message = "暂无CPU指标"
			return component
		}

		normalized := snapshot.CPU.LoadAvg[0] / float64(snapshot.CPU.CoreCount)
		component.Details = map[string]interface{}{
			"load_1":          snapshot.CPU.LoadAvg[0],
			"core_count":      snapshot.CPU.CoreCount,
			"normalized_load": normalized,
		}

		switch {
		case normalized > 0.9:
			component.Status = models.HealthStatusUnhealthy
			component.Message = fmt.Sprintf("CPU负载过高: %.2f", normalized)
		case normalized > 0.7:
			component.Status = models.HealthStatusDegraded
			component.Message = fmt.Sprintf("CPU负载偏高: %.2f", normalized)
		}
		return component
	}
}

// MemoryCheck 内存健康检查：使用率超80%为degraded，超90%为unhealthy
func MemoryCheck(registry *metrics.MetricsRegistry) CheckFunc {
	return func(ctx context.Context) models.ComponentHealth {
		component := models.ComponentHealth{
			Status:    models.HealthStatusHealthy,
			CheckedAt: time.Now(),
		}

		snapshot := registry.GetMetrics()
		if snapshot == nil || snapshot.Memory.Total == 0 {
			component.Status = models.HealthStatusUnknown
			component.Message = "暂无内存指标"
			return component
		}

		usage := snapshot.Memory.UsagePercent
		component.Details = map[string]interface{}{
			"usage_percent": usage,
			"used":          snapshot.Memory.Used,
			"total":         snapshot.Memory.Total,
		}

		switch {
		case usage > 90:
			component.Status = models.HealthStatusUnhealthy
			component.Message = fmt.Sprintf("内存使用率过高: %.1f%%", usage)
		case usage > 80:
			component.Status = models.HealthStatusDegraded
			component.Message = fmt.Sprintf("内存使用率偏高: %.1f%%", usage)
		}
		return component
	}
}

// RateLimiterCheck 限流器占位检查，始终健康，作为后续真实检查的扩展点
func RateLimiterCheck() CheckFunc {
	return func(ctx context.Context) models.ComponentHealth {
		return models.ComponentHealth{
			Status:    models.HealthStatusHealthy,
			Message:   "限流器正常",
			CheckedAt: time.Now(),
		}
	}
}
