/*
 * @module service/alerting/rule_script
 * @description 脚本告警规则，通过yaegi解释器编译用户脚本为规则谓词，脚本基于最新指标参数求值
 * @architecture 解释器模式 - 运行时编译脚本规则
 * @documentReference dev_docs/monitoring_design.md
 * @stateFlow 脚本注册 -> 编译校验 -> 定时求值 -> 告警触发
 * @rules 脚本必须定义 Run(params map[string]interface{}) (bool, error) 入口，编译失败在注册时报错
 * @dependencies github.com/traefik/yaegi
 * @refs service/alerting/alert_dispatcher.go
 */

package alerting

import (
	"fmt"
	"log/slog"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"sentinel-service/service/models"
)

// scriptRuleFunc 编译后的脚本规则入口
type scriptRuleFunc func(params map[string]interface{}) (bool, error)

// AddScriptRule 注册脚本规则：编译脚本并包装为规则谓词，同名规则覆盖
// 脚本必须定义 Run(params map[string]interface{}) (bool, error)，
// params 为最新指标快照展开后的键值对（如 "disk.usage_percent"）
func (d *AlertDispatcher) AddScriptRule(name, script string, template models.AlertInput) error {
	fn, err := compileRuleScript(script)
	if err != nil {
		return fmt.Errorf("编译脚本规则 %s 失败: %w", name, err)
	}

	d.AddRule(name, func() bool {
		triggered, err := fn(d.ruleParams())
		if err != nil {
			slog.Error("脚本规则执行失败", "rule", name, "error", err)
			return false
		}
		return triggered
	}, template)
	return nil
}

// compileRuleScript 编译脚本为可执行函数
func compileRuleScript(script string) (scriptRuleFunc, error) {
	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("加载标准库失败: %w", err)
	}

	if _, err := i.Eval(script); err != nil {
		return nil, fmt.Errorf("脚本求值失败: %w", err)
	}

	v, err := i.Eval("main.Run")
	if err != nil {
		return nil, fmt.Errorf("脚本缺少 Run 入口函数: %w", err)
	}

	fn, ok := v.Interface().(func(map[string]interface{}) (bool, error))
	if !ok {
		return nil, fmt.Errorf("Run 函数签名必须为 func(map[string]interface{}) (bool, error)")
	}
	return fn, nil
}
