/*
 * @module api/controllers/security_controller
 * @description 安全控制器，提供安全报告生成、主体可疑度查询和安全事件上报
 * @architecture MVC架构 - 控制器层
 * @documentReference dev_docs/security_design.md
 * @stateFlow 请求接收 -> 入侵检测服务 -> 响应返回
 * @rules 报告时间范围参数非法时回退为24小时
 * @dependencies net/http, strconv, github.com/go-chi/chi/v5, github.com/go-chi/render
 * @refs service/security/intrusion_detector.go
 */

package controllers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"sentinel-service/service/models"
	"sentinel-service/service/security"
)

// SecurityController 安全控制器
type SecurityController struct {
	detector *security.IntrusionDetector
}

// NewSecurityController 创建安全控制器实例
func NewSecurityController(detector *security.IntrusionDetector) *SecurityController {
	return &SecurityController{detector: detector}
}

// SecurityEventRequest 安全事件上报请求结构
type SecurityEventRequest struct {
	EventType string       `json:"event_type"`
	ActorID   string       `json:"actor_id"`
	Details   models.JSONB `json:"details"`
	RiskLevel string       `json:"risk_level"`
}

// GetSecurityReport 生成安全报告
// @Summary 生成安全报告
// @Description 按时间范围聚合安全事件，返回分组计数、高风险事件和主体数
// @Tags 安全管理
// @Produce json
// @Param hours query int false "时间范围（小时），默认24"
// @Success 200 {object} APIResponse{data=models.SecurityReport}
// @Failure 500 {object} APIResponse
// @Router /security/report [get]
func (c *SecurityController) GetSecurityReport(w http.ResponseWriter, r *http.Request) {
	hours := 24
	if raw := r.URL.Query().Get("hours"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			hours = parsed
		}
	}

	report, err := c.detector.GenerateSecurityReport(r.Context(), hours)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "生成安全报告失败")
		return
	}
	writeSuccess(w, r, "生成安全报告成功", report)
}

// GetActorSuspicion 查询主体可疑度
// @Summary 查询主体可疑度
// @Description 评估主体最近一小时的可疑行为评分
// @Tags 安全管理
// @Produce json
// @Param actor_id path string true "主体标识"
// @Success 200 {object} APIResponse{data=models.SuspicionResult}
// @Failure 500 {object} APIResponse
// @Router /security/actors/{actor_id}/suspicion [get]
func (c *SecurityController) GetActorSuspicion(w http.ResponseWriter, r *http.Request) {
	actorID := chi.URLParam(r, "actor_id")

	result, err := c.detector.DetectSuspiciousActivity(r.Context(), actorID)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "可疑度评估失败")
		return
	}
	writeSuccess(w, r, "可疑度评估成功", result)
}

// ReportSecurityEvent 上报安全事件
// @Summary 上报安全事件
// @Description 记录一条外部上报的安全事件
// @Tags 安全管理
// @Accept json
// @Produce json
// @Success 200 {object} APIResponse{data=models.SecurityEvent}
// @Failure 400 {object} APIResponse
// @Failure 500 {object} APIResponse
// @Router /security/events [post]
func (c *SecurityController) ReportSecurityEvent(w http.ResponseWriter, r *http.Request) {
	var req SecurityEventRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "请求体解析失败")
		return
	}
	if req.EventType == "" {
		writeError(w, r, http.StatusBadRequest, "事件类型不能为空")
		return
	}

	riskLevel := models.RiskLevel(req.RiskLevel)
	if riskLevel == "" {
		riskLevel = models.RiskLevelLow
	}

	event, err := c.detector.LogSecurityEvent(r.Context(), req.EventType, req.ActorID, req.Details, riskLevel)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "安全事件记录失败")
		return
	}
	writeSuccess(w, r, "安全事件记录成功", event)
}
