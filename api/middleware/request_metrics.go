/*
 * @module api/middleware/request_metrics
 * @description 请求指标中间件，维护在途请求数和累计请求计数
 * @architecture 中间件模式 - HTTP请求拦截
 * @documentReference dev_docs/monitoring_design.md
 * @stateFlow 请求进入 -> 在途计数+1 -> 处理 -> 在途计数-1并累计总数
 * @rules 计数失败不影响请求处理
 * @dependencies net/http, sentinel-service/service/metrics
 * @refs service/metrics/metrics_registry.go
 */

package middleware

import (
	"net/http"

	"sentinel-service/service/metrics"
)

// RequestMetrics 请求指标中间件
func RequestMetrics(registry *metrics.MetricsRegistry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			registry.RequestStarted()
			defer func() {
				registry.RequestFinished()
				registry.RecordRequest()
			}()
			next.ServeHTTP(w, r)
		})
	}
}
