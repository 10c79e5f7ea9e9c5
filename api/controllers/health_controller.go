/*
 * @module api/controllers/health_controller
 * @description 健康检查控制器，提供整体健康状态和就绪探针
 * @architecture MVC架构 - 控制器层
 * @documentReference dev_docs/monitoring_design.md
 * @stateFlow HTTP请求处理流程
 * @rules 健康状态到HTTP状态码的映射只取决于聚合状态：healthy/degraded为200，unhealthy为503
 * @dependencies net/http, github.com/go-chi/render
 * @refs service/health/health_aggregator.go
 */

package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/render"

	"sentinel-service/service/health"
	"sentinel-service/service/models"
)

// HealthController 健康检查控制器
type HealthController struct {
	aggregator *health.HealthAggregator
}

// NewHealthController 创建健康检查控制器实例
func NewHealthController(aggregator *health.HealthAggregator) *HealthController {
	return &HealthController{aggregator: aggregator}
}

// ReadyResponse 就绪检查响应结构
type ReadyResponse struct {
	Status    string    `json:"status" example:"ready"`
	Timestamp time.Time `json:"timestamp" example:"2024-01-01T00:00:00Z"`
	Service   string    `json:"service" example:"sentinel-service"`
}

// healthStatusCode 聚合状态到HTTP状态码的映射
func healthStatusCode(status models.HealthState) int {
	if status == models.HealthStatusUnhealthy {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

// Health 健康检查
// @Summary 健康检查
// @Description 执行一轮完整健康检查并返回整体状态
// @Tags 系统
// @Produce json
// @Success 200 {object} models.AppHealth
// @Failure 503 {object} models.AppHealth
// @Router /health [get]
func (c *HealthController) Health(w http.ResponseWriter, r *http.Request) {
	appHealth := c.aggregator.CheckHealth(r.Context())

	render.Status(r, healthStatusCode(appHealth.Status))
	render.JSON(w, r, appHealth)
}

// Ready 就绪检查
// @Summary 就绪检查
// @Description 检查服务是否就绪
// @Tags 系统
// @Produce json
// @Success 200 {object} ReadyResponse
// @Router /ready [get]
func (c *HealthController) Ready(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, ReadyResponse{
		Status:    "ready",
		Timestamp: time.Now(),
		Service:   "sentinel-service",
	})
}
