/*
 * @module api/routes
 * @description API路由配置模块，负责初始化和配置所有HTTP路由
 * @architecture RESTful API架构
 * @documentReference dev_docs/monitoring_design.md
 * @stateFlow 无状态HTTP请求处理
 * @rules 遵循RESTful API设计规范，统一错误处理和响应格式
 * @dependencies github.com/go-chi/chi/v5, github.com/go-chi/cors, github.com/go-chi/render
 * @refs api/controllers/, api/middleware/
 */

package api

import (
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sentinel-service/api/controllers"
	"sentinel-service/api/middleware"
	"sentinel-service/service/alerting"
	"sentinel-service/service/health"
	"sentinel-service/service/metrics"
	"sentinel-service/service/rate_limiter"
	"sentinel-service/service/security"
)

// Services 路由依赖的业务服务集合
type Services struct {
	Dispatcher *alerting.AlertDispatcher
	Registry   *metrics.MetricsRegistry
	Aggregator *health.HealthAggregator
	Limiter    *rate_limiter.RateLimiter
	Detector   *security.IntrusionDetector
}

// InitRoute 初始化所有API路由
func InitRoute(r *chi.Mux, services *Services) {
	// 基础中间件
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(render.SetContentType(render.ContentTypeJSON))

	// CORS配置
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// 请求指标统计
	r.Use(middleware.RequestMetrics(services.Registry))

	// 健康检查
	healthController := controllers.NewHealthController(services.Aggregator)
	r.Get("/health", healthController.Health)
	r.Get("/ready", healthController.Ready)

	// Prometheus指标导出
	r.Handle("/metrics", promhttp.Handler())

	// 监控告警管理
	r.Route("/monitoring", func(r chi.Router) {
		monitoringController := controllers.NewMonitoringController(services.Registry, services.Dispatcher)

		r.Get("/metrics", monitoringController.GetMetrics)
		r.Get("/alerts", monitoringController.GetAlerts)
		r.Post("/alerts/{id}/acknowledge", monitoringController.AcknowledgeAlert)
		r.Get("/thresholds", monitoringController.GetThresholds)
		r.Put("/thresholds", monitoringController.UpdateThresholds)
	})

	// 安全管理，业务路由启用限流和注入检测防护
	r.Route("/security", func(r chi.Router) {
		r.Use(middleware.RateLimit(services.Limiter, services.Detector))
		r.Use(middleware.ThreatAnalysis(services.Detector))

		securityController := controllers.NewSecurityController(services.Detector)

		r.Get("/report", securityController.GetSecurityReport)
		r.Get("/actors/{actor_id}/suspicion", securityController.GetActorSuspicion)
		r.Post("/events", securityController.ReportSecurityEvent)
	})
}
