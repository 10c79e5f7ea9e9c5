/*
 * @module service/config/config
 * @description 服务配置，启动时一次性加载并校验，支持YAML文件和环境变量覆盖
 * @architecture 分层架构 - 配置层
 * @documentReference dev_docs/monitoring_design.md
 * @stateFlow 默认值 -> YAML文件合并 -> 环境变量覆盖 -> 校验 -> 注入组件
 * @rules 配置仅在启动时解析一次，组件在构造时接收配置，运行期不读环境变量
 * @dependencies gopkg.in/yaml.v3
 * @refs main.go
 */

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"sentinel-service/service/models"
)

// 各配置项默认值
const (
	DefaultRateLimitWindow      = 60 * time.Second
	DefaultRateLimitMaxRequests = 60
	DefaultRuleCheckInterval    = 60 * time.Second
	DefaultMetricsInterval      = 30 * time.Second
	DefaultHealthCheckInterval  = 60 * time.Second
	DefaultAlertHistoryLimit    = 100
	DefaultHealthHistoryLimit   = 100
	DefaultSuspiciousIPLimit    = 3
	DefaultEventRetentionDays   = 30
	DefaultSuspiciousIPTTL      = time.Hour
)

// RedisConfig Redis连接配置
type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Addr 返回Redis连接地址
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig 数据库连接配置
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	WindowSeconds int    `yaml:"window_seconds"`
	MaxRequests   int    `yaml:"max_requests"`
	KeyPrefix     string `yaml:"key_prefix"`
}

// Window 返回限流时间窗口
func (c RateLimitConfig) Window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

// ChannelConfig 告警渠道配置
type ChannelConfig struct {
	Type     string                 `yaml:"type"` // log, webhook, chat, email, sms, kafka
	Settings map[string]interface{} `yaml:"settings"`
}

// AlertingConfig 告警配置
type AlertingConfig struct {
	MinSeverity         models.AlertSeverity `yaml:"min_severity"`
	Channels            []ChannelConfig      `yaml:"channels"`
	RuleIntervalSeconds int                  `yaml:"rule_interval_seconds"`
	HistoryLimit        int                  `yaml:"history_limit"`
}

// RuleInterval 返回规则评估间隔
func (c AlertingConfig) RuleInterval() time.Duration {
	return time.Duration(c.RuleIntervalSeconds) * time.Second
}

// MetricsConfig 指标采集配置
type MetricsConfig struct {
	IntervalSeconds int                     `yaml:"interval_seconds"`
	DiskPath        string                  `yaml:"disk_path"`
	Thresholds      models.MetricThresholds `yaml:"thresholds"`
}

// Interval 返回采集间隔
func (c MetricsConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// HealthConfig 健康检查配置
type HealthConfig struct {
	IntervalSeconds int    `yaml:"interval_seconds"`
	Version         string `yaml:"version"`
	HistoryLimit    int    `yaml:"history_limit"`
}

// Interval 返回健康检查间隔
func (c HealthConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// SecurityConfig 安全检测配置
type SecurityConfig struct {
	IPAlertThreshold      int `yaml:"ip_alert_threshold"`
	EventRetentionDays    int `yaml:"event_retention_days"`
	SuspiciousIPTTLMinute int `yaml:"suspicious_ip_ttl_minutes"`
}

// SuspiciousIPTTL 返回可疑IP记录的保留时长
func (c SecurityConfig) SuspiciousIPTTL() time.Duration {
	return time.Duration(c.SuspiciousIPTTLMinute) * time.Minute
}

// Config 服务总配置
type Config struct {
	Redis     RedisConfig     `yaml:"redis"`
	Database  DatabaseConfig  `yaml:"database"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Alerting  AlertingConfig  `yaml:"alerting"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Health    HealthConfig    `yaml:"health"`
	Security  SecurityConfig  `yaml:"security"`
}

// Default 返回带默认值的配置
func Default() *Config {
	return &Config{
		Redis: RedisConfig{
			Host: "localhost",
			Port: 6379,
		},
		Database: DatabaseConfig{
			DSN: "host=localhost user=postgres dbname=sentinel port=5432 sslmode=disable",
		},
		RateLimit: RateLimitConfig{
			WindowSeconds: int(DefaultRateLimitWindow.Seconds()),
			MaxRequests:   DefaultRateLimitMaxRequests,
			KeyPrefix:     "rate_limit",
		},
		Alerting: AlertingConfig{
			MinSeverity:         models.SeverityWarning,
			Channels:            []ChannelConfig{{Type: "log"}},
			RuleIntervalSeconds: int(DefaultRuleCheckInterval.Seconds()),
			HistoryLimit:        DefaultAlertHistoryLimit,
		},
		Metrics: MetricsConfig{
			IntervalSeconds: int(DefaultMetricsInterval.Seconds()),
			DiskPath:        "/",
			Thresholds: models.MetricThresholds{
				CPU:       models.ThresholdPair{Warning: 80, Critical: 90},
				Memory:    models.ThresholdPair{Warning: 80, Critical: 90},
				Disk:      models.ThresholdPair{Warning: 80, Critical: 90},
				QueryTime: models.ThresholdPair{Warning: 1000, Critical: 3000},
			},
		},
		Health: HealthConfig{
			IntervalSeconds: int(DefaultHealthCheckInterval.Seconds()),
			Version:         "1.0.0",
			HistoryLimit:    DefaultHealthHistoryLimit,
		},
		Security: SecurityConfig{
			IPAlertThreshold:      DefaultSuspiciousIPLimit,
			EventRetentionDays:    DefaultEventRetentionDays,
			SuspiciousIPTTLMinute: int(DefaultSuspiciousIPTTL.Minutes()),
		},
	}
}

// Load 加载配置：默认值、可选YAML文件、环境变量覆盖，最后统一校验
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("SENTINEL_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("解析配置文件失败: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides 应用环境变量覆盖，仅处理部署相关的连接项
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
	}
	if v := os.Getenv("REDIS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Redis.Port = port
		}
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.Redis.DB = db
		}
	}
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		c.Database.DSN = v
	}
}

// Validate 校验配置合法性
func (c *Config) Validate() error {
	if c.RateLimit.WindowSeconds <= 0 {
		return fmt.Errorf("限流时间窗口必须大于0")
	}
	if c.RateLimit.MaxRequests <= 0 {
		return fmt.Errorf("限流最大请求数必须大于0")
	}
	if !c.Alerting.MinSeverity.IsValid() {
		return fmt.Errorf("无效的最低告警级别: %s", c.Alerting.MinSeverity)
	}
	if c.Alerting.RuleIntervalSeconds < 1 {
		return fmt.Errorf("规则评估间隔不能小于1秒")
	}
	if c.Metrics.IntervalSeconds < 1 {
		return fmt.Errorf("指标采集间隔不能小于1秒")
	}
	if c.Health.IntervalSeconds < 1 {
		return fmt.Errorf("健康检查间隔不能小于1秒")
	}
	if c.Security.IPAlertThreshold < 1 {
		return fmt.Errorf("可疑IP告警阈值不能小于1")
	}
	for _, pair := range []models.ThresholdPair{
		c.Metrics.Thresholds.CPU,
		c.Metrics.Thresholds.Memory,
		c.Metrics.Thresholds.Disk,
		c.Metrics.Thresholds.QueryTime,
	} {
		if pair.Warning > pair.Critical {
			return fmt.Errorf("告警阈值warning不能大于critical: %v > %v", pair.Warning, pair.Critical)
		}
	}
	return nil
}
