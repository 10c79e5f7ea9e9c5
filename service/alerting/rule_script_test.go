/*
 * @module service/alerting/rule_script_test
 * @description 脚本告警规则单元测试
 * @architecture 测试层
 * @documentReference dev_docs/monitoring_design.md
 */

package alerting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinel-service/service/models"
)

const diskUsageScript = `
package main

func Run(params map[string]interface{}) (bool, error) {
	usage, ok := params["disk.usage_percent"].(float64)
	if !ok {
		return false, nil
	}
	return usage > 90, nil
}
`

// TestAddScriptRule 测试脚本规则：编译、参数注入和触发
func TestAddScriptRule(t *testing.T) {
	dispatcher, recorder := newTestDispatcher(t, models.SeverityInfo)

	err := dispatcher.AddScriptRule("disk_script", diskUsageScript, models.AlertInput{
		Title:    "脚本规则触发",
		Message:  "磁盘使用率超过90%",
		Severity: models.SeverityError,
		Source:   "metrics:disk",
	})
	require.NoError(t, err, "合法脚本应编译成功")

	// 参数未超阈值时不触发
	dispatcher.SetRuleParams(func() map[string]interface{} {
		return map[string]interface{}{"disk.usage_percent": 50.0}
	})
	dispatcher.EvaluateRules()
	assert.Empty(t, dispatcher.GetAlertHistory(), "未超阈值不应触发告警")

	// 超阈值时触发
	dispatcher.SetRuleParams(func() map[string]interface{} {
		return map[string]interface{}{"disk.usage_percent": 95.5}
	})
	dispatcher.EvaluateRules()

	history := dispatcher.GetAlertHistory()
	require.Len(t, history, 1, "超阈值应触发脚本规则告警")
	assert.Equal(t, "脚本规则触发", history[0].Title)
	assert.Equal(t, 1, recorder.sentCount())
}

// TestAddScriptRule_CompileError 测试非法脚本在注册时报错
func TestAddScriptRule_CompileError(t *testing.T) {
	dispatcher, _ := newTestDispatcher(t, models.SeverityInfo)

	cases := []struct {
		name   string
		script string
	}{
		{"语法错误", `package main func Run(`},
		{"缺少Run入口", `package main; func Other() {}`},
		{"签名不匹配", `package main; func Run() bool { return true }`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := dispatcher.AddScriptRule("bad", tc.script, models.AlertInput{
				Title:    "不应注册",
				Message:  "编译失败",
				Severity: models.SeverityInfo,
			})
			assert.Error(t, err, "非法脚本应在注册时报错")
		})
	}

	dispatcher.EvaluateRules()
	assert.Empty(t, dispatcher.GetAlertHistory(), "编译失败的规则不应注册")
}

// TestAddScriptRule_NoParamsProvider 测试未设置参数来源时脚本收到空映射
func TestAddScriptRule_NoParamsProvider(t *testing.T) {
	dispatcher, _ := newTestDispatcher(t, models.SeverityInfo)

	err := dispatcher.AddScriptRule("no_params", diskUsageScript, models.AlertInput{
		Title:    "不应触发",
		Message:  "无参数来源",
		Severity: models.SeverityInfo,
	})
	require.NoError(t, err)

	dispatcher.EvaluateRules()
	assert.Empty(t, dispatcher.GetAlertHistory(), "空参数下脚本不应触发")
}
