/*
 * @module service/security/patterns_test
 * @description 注入攻击特征匹配单元测试
 * @architecture 测试层
 * @documentReference dev_docs/security_design.md
 */

package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinel-service/service/models"
)

// TestMatchSignatures_ThreatTypes 测试各威胁类型的特征识别
func TestMatchSignatures_ThreatTypes(t *testing.T) {
	cases := []struct {
		name       string
		content    string
		threatType string
		riskLevel  models.RiskLevel
	}{
		{"SQL注入-引号OR", `username=' OR 1=1 --`, models.ThreatTypeSQLInjection, models.RiskLevelHigh},
		{"SQL注入-UNION", `id=1 UNION SELECT password FROM users`, models.ThreatTypeSQLInjection, models.RiskLevelHigh},
		{"命令注入-管道", `file=report.pdf; cat /etc/hosts`, models.ThreatTypeCommandInjection, models.RiskLevelCritical},
		{"命令注入-子命令", `name=$(whoami)`, models.ThreatTypeCommandInjection, models.RiskLevelCritical},
		{"XSS-script标签", `comment=<script>alert(1)</script>`, models.ThreatTypeXSS, models.RiskLevelHigh},
		{"XSS-事件属性", `avatar=<img src=x onerror=alert(1)>`, models.ThreatTypeXSS, models.RiskLevelHigh},
		{"路径穿越-相对路径", `path=../../etc/passwd`, models.ThreatTypePathTraversal, models.RiskLevelMedium},
		{"路径穿越-URL编码", `file=%2e%2e%2fconfig.yaml`, models.ThreatTypePathTraversal, models.RiskLevelMedium},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			analysis := matchSignatures(tc.content)
			require.True(t, analysis.Detected, "应识别出威胁")
			assert.Equal(t, tc.threatType, analysis.ThreatType)
			assert.Equal(t, tc.riskLevel, analysis.RiskLevel)
			assert.NotEmpty(t, analysis.Matches, "应返回命中的特征片段")
		})
	}
}

// TestMatchSignatures_Priority 测试多族同时命中时高优先级族胜出
func TestMatchSignatures_Priority(t *testing.T) {
	// 同时包含命令注入和XSS特征，应归为命令注入
	content := `comment=<script>alert(1)</script>&cmd=; rm -rf /tmp`
	analysis := matchSignatures(content)
	require.True(t, analysis.Detected)
	assert.Equal(t, models.ThreatTypeCommandInjection, analysis.ThreatType, "命令注入优先级应高于XSS")
	assert.Equal(t, models.RiskLevelCritical, analysis.RiskLevel)

	// 同时包含SQL注入和路径穿越特征，应归为SQL注入
	content = `query=' OR 1=1 --&file=../../secret`
	analysis = matchSignatures(content)
	require.True(t, analysis.Detected)
	assert.Equal(t, models.ThreatTypeSQLInjection, analysis.ThreatType, "SQL注入优先级应高于路径穿越")
}

// TestMatchSignatures_Clean 测试正常内容不误报
func TestMatchSignatures_Clean(t *testing.T) {
	cases := []string{
		`name=张三&store=门店001`,
		`/api/stores/123/orders?page=2&size=20`,
		`{"title":"每日销售报表","amount":1234.56}`,
	}

	for _, content := range cases {
		analysis := matchSignatures(content)
		assert.False(t, analysis.Detected, "正常内容不应被识别为威胁: %s", content)
		assert.Empty(t, analysis.ThreatType)
	}
}

// TestBuildAnalysisSurface 测试分析面拼装覆盖路径、查询、请求体和头部
func TestBuildAnalysisSurface(t *testing.T) {
	surface := models.RequestSurface{
		Path:  "/api/orders",
		Query: "id=1",
		Body:  `{"note":"ok"}`,
		Headers: map[string]string{
			"User-Agent": "<script>alert(1)</script>",
		},
	}

	content := buildAnalysisSurface(surface)
	assert.Contains(t, content, "/api/orders")
	assert.Contains(t, content, "id=1")
	assert.Contains(t, content, `{"note":"ok"}`)
	assert.Contains(t, content, "<script>", "头部值应纳入分析面")

	analysis := matchSignatures(content)
	require.True(t, analysis.Detected, "藏在头部的攻击特征应被识别")
	assert.Equal(t, models.ThreatTypeXSS, analysis.ThreatType)
}
