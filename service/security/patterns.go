/*
 * @module service/security/patterns
 * @description 注入攻击特征库，四类特征族按固定优先级排列，命中即停
 * @architecture 工具层 - 请求内容的签名匹配
 * @documentReference dev_docs/security_design.md
 * @stateFlow 拼装分析面 -> 按优先级逐族匹配 -> 首个命中族决定威胁类型和风险级别
 * @rules 命令注入(critical) > SQL注入(high) = XSS(high) > 路径穿越(medium)，同一请求只归为一类威胁
 * @dependencies regexp
 * @refs service/security/intrusion_detector.go
 */

package security

import (
	"regexp"
	"strings"

	"sentinel-service/service/models"
)

// signatureFamily 一族同类威胁的特征集合
type signatureFamily struct {
	threatType string
	riskLevel  models.RiskLevel
	patterns   []*regexp.Regexp
}

// signatureFamilies 特征族按优先级排列，扫描时首个命中的族胜出
var signatureFamilies = []signatureFamily{
	{
		threatType: models.ThreatTypeCommandInjection,
		riskLevel:  models.RiskLevelCritical,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)[;&|]\s*(?:cat|ls|rm|wget|curl|nc|bash|sh|ping|whoami|id)\b`),
			regexp.MustCompile("`[^`]+`"),
			regexp.MustCompile(`\$\([^)]+\)`),
			regexp.MustCompile(`(?i)\b(?:eval|exec|system|popen|passthru)\s*\(`),
			regexp.MustCompile(`(?i)\|\|\s*\w+|&&\s*\w+`),
		},
	},
	{
		threatType: models.ThreatTypeSQLInjection,
		riskLevel:  models.RiskLevelHigh,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)('|%27)\s*(?:or|and)\b`),
			regexp.MustCompile(`(?i)\bor\s+1\s*=\s*1\b`),
			regexp.MustCompile(`(?i)\bunion\s+(?:all\s+)?select\b`),
			regexp.MustCompile(`(?i)\b(?:select|insert|update|delete|drop|truncate)\b[\s\S]*\b(?:from|into|table|where)\b`),
			regexp.MustCompile(`(?i)(?:--|#|/\*)\s*$|;\s*--`),
		},
	},
	{
		threatType: models.ThreatTypeXSS,
		riskLevel:  models.RiskLevelHigh,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)<script[^>]*>`),
			regexp.MustCompile(`(?i)javascript\s*:`),
			regexp.MustCompile(`(?i)\bon(?:error|load|click|focus|mouseover)\s*=`),
			regexp.MustCompile(`(?i)<iframe[^>]*>|<img[^>]+onerror`),
			regexp.MustCompile(`(?i)document\.(?:cookie|location)|window\.location`),
		},
	},
	{
		threatType: models.ThreatTypePathTraversal,
		riskLevel:  models.RiskLevelMedium,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`\.\./|\.\.\\`),
			regexp.MustCompile(`(?i)%2e%2e(?:%2f|%5c|/)`),
			regexp.MustCompile(`(?i)/etc/(?:passwd|shadow|hosts)`),
			regexp.MustCompile(`(?i)\b(?:c:\\windows|file://)`),
		},
	},
}

// buildAnalysisSurface 拼装请求的可分析文本：路径、查询串、请求体和头部值
func buildAnalysisSurface(surface models.RequestSurface) string {
	var builder strings.Builder
	builder.WriteString(surface.Path)
	builder.WriteString("\n")
	builder.WriteString(surface.Query)
	builder.WriteString("\n")
	builder.WriteString(surface.Body)
	for _, value := range surface.Headers {
		builder.WriteString("\n")
		builder.WriteString(value)
	}
	return builder.String()
}

// matchSignatures 按优先级扫描特征族，返回首个命中族的分析结果
func matchSignatures(content string) models.ThreatAnalysis {
	for _, family := range signatureFamilies {
		var matches []string
		for _, pattern := range family.patterns {
			if found := pattern.FindString(content); found != "" {
				matches = append(matches, found)
			}
		}
		if len(matches) > 0 {
			return models.ThreatAnalysis{
				Detected:   true,
				ThreatType: family.threatType,
				RiskLevel:  family.riskLevel,
				Matches:    matches,
			}
		}
	}
	return models.ThreatAnalysis{Detected: false}
}
