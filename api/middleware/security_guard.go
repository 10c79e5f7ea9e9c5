/*
 * @module api/middleware/security_guard
 * @description 安全防护中间件，按来源IP限流并对请求内容做注入特征分析
 * @architecture 中间件模式 - HTTP请求拦截
 * @documentReference dev_docs/security_design.md
 * @stateFlow 来源IP限流 -> 请求体采样 -> 注入分析 -> 放行或拒绝
 * @rules 限流存储不可用时失败关闭拒绝请求，超限请求记录rate_limit_violation事件，命中注入特征返回400
 * @dependencies net/http, sentinel-service/service/rate_limiter, sentinel-service/service/security
 * @refs service/rate_limiter/redis_rate_limiter.go, service/security/intrusion_detector.go
 */

package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/render"

	"sentinel-service/service/models"
	"sentinel-service/service/rate_limiter"
	"sentinel-service/service/security"
)

// maxBodySample 注入分析时读取请求体的上限字节数
const maxBodySample = 64 * 1024

// guardResponse 防护中间件的拒绝响应结构
type guardResponse struct {
	Status int    `json:"status"`
	Msg    string `json:"msg"`
}

// clientIP 提取客户端IP，优先使用反向代理头
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Real-IP"); forwarded != "" {
		return forwarded
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimit 来源IP限流中间件，存储不可用时失败关闭
func RateLimit(limiter *rate_limiter.RateLimiter, detector *security.IntrusionDetector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)

			count, err := limiter.Increment(r.Context(), ip)
			if err != nil {
				slog.Error("限流检查失败，拒绝请求", "ip", ip, "error", err)
				render.Status(r, http.StatusServiceUnavailable)
				render.JSON(w, r, guardResponse{Status: http.StatusServiceUnavailable, Msg: "服务暂时不可用"})
				return
			}

			if count > int64(limiter.Limit()) {
				if _, err := detector.LogSecurityEvent(r.Context(), models.EventTypeRateLimitViolation, ip,
					models.JSONB{"ip": ip, "path": r.URL.Path, "count": count}, models.RiskLevelMedium); err != nil {
					slog.Error("限流违规事件记录失败", "ip", ip, "error", err)
				}
				render.Status(r, http.StatusTooManyRequests)
				render.JSON(w, r, guardResponse{Status: http.StatusTooManyRequests, Msg: "请求过于频繁"})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ThreatAnalysis 注入特征分析中间件，命中特征的请求直接拒绝
func ThreatAnalysis(detector *security.IntrusionDetector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			surface := models.RequestSurface{
				Path:  r.URL.Path,
				Query: r.URL.RawQuery,
				IP:    clientIP(r),
			}

			headers := make(map[string]string, len(r.Header))
			for name, values := range r.Header {
				if len(values) > 0 {
					headers[name] = values[0]
				}
			}
			surface.Headers = headers

			if r.Body != nil && r.Body != http.NoBody {
				sample, err := io.ReadAll(io.LimitReader(r.Body, maxBodySample))
				if err == nil {
					surface.Body = string(sample)
					// 把已读内容拼回请求体，后续处理器不受影响
					r.Body = struct {
						io.Reader
						io.Closer
					}{io.MultiReader(bytes.NewReader(sample), r.Body), r.Body}
				}
			}

			analysis := detector.AnalyzeRequest(r.Context(), surface)
			if analysis.Detected {
				slog.Warn("拦截注入请求",
					"ip", surface.IP,
					"threat_type", analysis.ThreatType,
					"path", surface.Path)
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, guardResponse{Status: http.StatusBadRequest, Msg: "请求包含非法内容"})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
