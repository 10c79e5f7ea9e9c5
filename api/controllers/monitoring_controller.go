/*
 * @module api/controllers/monitoring_controller
 * @description 监控告警控制器，提供指标快照查询、告警历史、告警确认和阈值运行期调整
 * @architecture MVC架构 - 控制器层
 * @documentReference dev_docs/monitoring_design.md
 * @stateFlow 请求接收 -> 业务逻辑处理 -> 响应返回
 * @rules 阈值调整只合并显式提供的字段，未提供的阈值保持不变
 * @dependencies net/http, github.com/go-chi/chi/v5, github.com/go-chi/render
 * @refs service/metrics/metrics_registry.go, service/alerting/alert_dispatcher.go
 */

package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"sentinel-service/service/alerting"
	"sentinel-service/service/metrics"
	"sentinel-service/service/models"
)

// MonitoringController 监控告警控制器
type MonitoringController struct {
	registry   *metrics.MetricsRegistry
	dispatcher *alerting.AlertDispatcher
}

// NewMonitoringController 创建监控控制器实例
func NewMonitoringController(registry *metrics.MetricsRegistry, dispatcher *alerting.AlertDispatcher) *MonitoringController {
	return &MonitoringController{
		registry:   registry,
		dispatcher: dispatcher,
	}
}

// AcknowledgeRequest 告警确认请求结构
type AcknowledgeRequest struct {
	AcknowledgedBy string `json:"acknowledged_by"`
}

// GetMetrics 获取最新指标快照
// @Summary 获取系统指标
// @Description 获取最近一次采集的系统指标快照
// @Tags 系统监控
// @Produce json
// @Success 200 {object} APIResponse{data=models.MetricsSnapshot}
// @Failure 404 {object} APIResponse
// @Router /monitoring/metrics [get]
func (c *MonitoringController) GetMetrics(w http.ResponseWriter, r *http.Request) {
	snapshot := c.registry.GetMetrics()
	if snapshot == nil {
		writeError(w, r, http.StatusNotFound, "暂无指标快照")
		return
	}
	writeSuccess(w, r, "获取系统指标成功", snapshot)
}

// GetAlerts 获取告警历史
// @Summary 获取告警历史
// @Description 获取最近的告警历史记录
// @Tags 告警管理
// @Produce json
// @Success 200 {object} APIResponse{data=[]models.Alert}
// @Router /monitoring/alerts [get]
func (c *MonitoringController) GetAlerts(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, r, "获取告警历史成功", c.dispatcher.GetAlertHistory())
}

// AcknowledgeAlert 确认告警
// @Summary 确认告警
// @Description 按ID确认一条历史告警
// @Tags 告警管理
// @Accept json
// @Produce json
// @Param id path string true "告警ID"
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Router /monitoring/alerts/{id}/acknowledge [post]
func (c *MonitoringController) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	alertID := chi.URLParam(r, "id")

	var req AcknowledgeRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "请求体解析失败")
		return
	}
	if req.AcknowledgedBy == "" {
		writeError(w, r, http.StatusBadRequest, "确认人不能为空")
		return
	}

	if !c.dispatcher.AcknowledgeAlert(alertID, req.AcknowledgedBy) {
		writeError(w, r, http.StatusNotFound, "告警不存在")
		return
	}
	writeSuccess(w, r, "告警确认成功", nil)
}

// GetThresholds 获取当前告警阈值
// @Summary 获取告警阈值
// @Description 获取当前生效的指标告警阈值
// @Tags 系统监控
// @Produce json
// @Success 200 {object} APIResponse{data=models.MetricThresholds}
// @Router /monitoring/thresholds [get]
func (c *MonitoringController) GetThresholds(w http.ResponseWriter, r *http.Request) {
	thresholds := c.registry.GetThresholds()
	writeSuccess(w, r, "获取告警阈值成功", thresholds)
}

// UpdateThresholds 运行期调整告警阈值
// @Summary 调整告警阈值
// @Description 合并更新指标告警阈值，未提供的项保持不变
// @Tags 系统监控
// @Accept json
// @Produce json
// @Success 200 {object} APIResponse{data=models.MetricThresholds}
// @Failure 400 {object} APIResponse
// @Router /monitoring/thresholds [put]
func (c *MonitoringController) UpdateThresholds(w http.ResponseWriter, r *http.Request) {
	var overrides models.ThresholdOverrides
	if err := render.DecodeJSON(r.Body, &overrides); err != nil {
		writeError(w, r, http.StatusBadRequest, "请求体解析失败")
		return
	}

	c.registry.ConfigureThresholds(overrides)
	writeSuccess(w, r, "告警阈值更新成功", c.registry.GetThresholds())
}
