/*
 * @module main
 * @description 服务入口，负责加载配置、建立依赖连接、组装各业务服务并启动HTTP服务
 * @architecture 分层架构 - 组合根
 * @documentReference dev_docs/monitoring_design.md
 * @stateFlow 配置加载 -> 依赖连接 -> 服务组装 -> 后台循环启动 -> HTTP服务 -> 优雅关闭
 * @rules 所有组件在启动时显式构造并注入依赖，关闭时按启动逆序停止
 * @dependencies github.com/dapr/go-sdk, github.com/go-chi/chi/v5, github.com/go-redis/redis/v8
 * @refs api/routes.go, service/config/config.go
 */

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	daprd "github.com/dapr/go-sdk/service/http"
	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"

	"sentinel-service/api"
	"sentinel-service/logger"
	"sentinel-service/service/alerting"
	"sentinel-service/service/cleanup"
	"sentinel-service/service/config"
	"sentinel-service/service/database"
	"sentinel-service/service/health"
	"sentinel-service/service/metrics"
	"sentinel-service/service/rate_limiter"
	"sentinel-service/service/security"
)

var (
	PORT         = 80
	BASE_CONTEXT = ""
)

func init() {
	if val := os.Getenv("LISTEN_PORT"); val != "" {
		PORT, _ = strconv.Atoi(val)
	}

	if val := os.Getenv("BASE_CONTEXT"); val != "" {
		BASE_CONTEXT = val
	}
}

// @title 哨兵监控服务 API
// @version 1.0
// @description 连锁门店管理平台的可观测与自适应防御服务，提供告警分发、指标采集、健康聚合、分布式限流和入侵检测能力
// @BasePath /
func main() {
	logger.InitLogger()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("配置加载失败", "error", err)
		os.Exit(1)
	}

	// 数据库连接与迁移
	db, err := database.Open(cfg.Database)
	if err != nil {
		slog.Error("数据库初始化失败", "error", err)
		os.Exit(1)
	}
	if err := database.AutoMigrate(db); err != nil {
		slog.Error("数据库迁移失败", "error", err)
		os.Exit(1)
	}

	// Redis连接
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		slog.Warn("Redis连接检查失败，限流将按失败关闭处理", "error", err)
	}
	cancel()

	// 告警分发器
	dispatcher, err := alerting.NewAlertDispatcher(cfg.Alerting)
	if err != nil {
		slog.Error("告警分发器初始化失败", "error", err)
		os.Exit(1)
	}

	// 指标注册中心
	registry := metrics.NewMetricsRegistry(cfg.Metrics, db, dispatcher)
	prometheus.MustRegister(registry.PrometheusCollectors()...)
	dispatcher.SetRuleParams(registry.RuleParams)

	// 限流器
	limiter, err := rate_limiter.NewRateLimiter(cfg.RateLimit, redisClient)
	if err != nil {
		slog.Error("限流器初始化失败", "error", err)
		os.Exit(1)
	}

	// 入侵检测
	eventStore := security.NewEventStore(db)
	detector := security.NewIntrusionDetector(cfg.Security, eventStore, dispatcher)

	// 健康聚合器与默认检查
	aggregator := health.NewHealthAggregator(cfg.Health, dispatcher, registry)
	aggregator.RegisterComponent("db", health.DatabaseCheck(db))
	aggregator.RegisterComponent("cpu", health.CPUCheck(registry))
	aggregator.RegisterComponent("memory", health.MemoryCheck(registry))
	aggregator.RegisterComponent("ratelimiter", health.RateLimiterCheck())

	// 安全数据清理
	cleanupService := cleanup.NewSecurityCleanupService(cfg.Security, eventStore, detector)
	if err := cleanupService.StartScheduledCleanup(); err != nil {
		slog.Error("安全清理调度器启动失败", "error", err)
		os.Exit(1)
	}

	// 后台循环
	registry.StartCollection(cfg.Metrics.Interval())
	aggregator.StartHealthChecks(cfg.Health.Interval())
	dispatcher.Start()

	services := &api.Services{
		Dispatcher: dispatcher,
		Registry:   registry,
		Aggregator: aggregator,
		Limiter:    limiter,
		Detector:   detector,
	}

	mux := chi.NewRouter()

	// 如果有BASE_CONTEXT，则在该路径下挂载所有路由
	if BASE_CONTEXT != "" {
		mux.Route(BASE_CONTEXT, func(r chi.Router) {
			subMux := r.(*chi.Mux)
			api.InitRoute(subMux, services)
		})
	} else {
		api.InitRoute(mux, services)
	}

	s := daprd.NewServiceWithMux(":"+strconv.Itoa(PORT), mux)

	// 优雅关闭：按启动逆序停止各组件
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		slog.Info("收到退出信号，开始优雅关闭", "signal", fmt.Sprintf("%v", sig))

		dispatcher.Shutdown()
		aggregator.Shutdown()
		registry.Shutdown()
		cleanupService.StopScheduledCleanup()
		if err := redisClient.Close(); err != nil {
			slog.Error("关闭Redis连接失败", "error", err)
		}

		if err := s.GracefulStop(); err != nil {
			slog.Error("HTTP服务关闭失败", "error", err)
		}
	}()

	slog.Info("哨兵监控服务启动", "port", PORT)
	if err := s.Start(); err != nil && err != http.ErrServerClosed {
		slog.Error("HTTP服务异常退出", "error", err)
		os.Exit(1)
	}
}
