/*
 * @module service/health/default_checks_test
 * @description 默认健康检查单元测试
 * @architecture 测试层
 * @documentReference dev_docs/monitoring_design.md
 */

package health

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinel-service/service/config"
	"sentinel-service/service/metrics"
	"sentinel-service/service/models"
	"sentinel-service/testutil"
)

// TestDatabaseCheck 测试数据库健康检查
func TestDatabaseCheck(t *testing.T) {
	tdb := testutil.NewTestDB()
	t.Cleanup(tdb.Close)

	check := DatabaseCheck(tdb.DB)
	component := check(context.Background())
	assert.Equal(t, models.HealthStatusHealthy, component.Status, "内存数据库应健康")
	require.NotNil(t, component.Details)
	assert.Contains(t, component.Details, "response_time_ms")
	assert.Contains(t, component.Details, "open_connections")

	// 未配置数据库记为unknown
	component = DatabaseCheck(nil)(context.Background())
	assert.Equal(t, models.HealthStatusUnknown, component.Status)
}

// TestCPUCheck_NoSnapshot 测试无指标快照时记为unknown
func TestCPUCheck_NoSnapshot(t *testing.T) {
	registry := metrics.NewMetricsRegistry(config.MetricsConfig{IntervalSeconds: 30}, nil, nil)

	component := CPUCheck(registry)(context.Background())
	assert.Equal(t, models.HealthStatusUnknown, component.Status, "无快照时应为unknown")

	component = MemoryCheck(registry)(context.Background())
	assert.Equal(t, models.HealthStatusUnknown, component.Status)
}

// TestCPUAndMemoryCheck_WithSnapshot 测试有快照时基于采样值判定
func TestCPUAndMemoryCheck_WithSnapshot(t *testing.T) {
	registry := metrics.NewMetricsRegistry(config.MetricsConfig{IntervalSeconds: 30, DiskPath: "/"}, nil, nil)
	registry.CollectMetrics()

	component := CPUCheck(registry)(context.Background())
	assert.NotEqual(t, models.HealthStatusUnknown, component.Status, "有快照时不应为unknown")
	require.NotNil(t, component.Details)
	assert.Contains(t, component.Details, "normalized_load")

	component = MemoryCheck(registry)(context.Background())
	assert.NotEqual(t, models.HealthStatusUnknown, component.Status)
	assert.Contains(t, component.Details, "usage_percent")
}

// TestRateLimiterCheck 测试限流器占位检查恒为健康
func TestRateLimiterCheck(t *testing.T) {
	component := RateLimiterCheck()(context.Background())
	assert.Equal(t, models.HealthStatusHealthy, component.Status)
}
