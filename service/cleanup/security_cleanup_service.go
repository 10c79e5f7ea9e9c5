/*
 * @module service/cleanup/security_cleanup_service
 * @description 安全数据清理服务，定期清理过期安全事件和失活的可疑IP记录
 * @architecture 分层架构 - 业务服务层
 * @documentReference dev_docs/security_design.md
 * @stateFlow 定时触发 -> 执行清理 -> 记录结果
 * @rules 清理任务失败只记录日志不中断调度，确保清理不影响检测主链路
 * @dependencies sentinel-service/service/security, github.com/robfig/cron/v3
 * @refs service/security/event_store.go
 */

package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"sentinel-service/service/config"
	"sentinel-service/service/security"
)

// SecurityCleanupService 安全数据清理服务
type SecurityCleanupService struct {
	store         *security.EventStore
	detector      *security.IntrusionDetector
	retentionDays int
	cron          *cron.Cron
	ctx           context.Context
	cancel        context.CancelFunc
	started       bool
}

// NewSecurityCleanupService 创建安全数据清理服务实例
func NewSecurityCleanupService(cfg config.SecurityConfig, store *security.EventStore, detector *security.IntrusionDetector) *SecurityCleanupService {
	ctx, cancel := context.WithCancel(context.Background())

	retentionDays := cfg.EventRetentionDays
	if retentionDays <= 0 {
		retentionDays = config.DefaultEventRetentionDays
	}

	return &SecurityCleanupService{
		store:         store,
		detector:      detector,
		retentionDays: retentionDays,
		cron:          cron.New(cron.WithSeconds()),
		ctx:           ctx,
		cancel:        cancel,
		started:       false,
	}
}

// CleanupExpiredEvents 清理超过保留期的安全事件
func (s *SecurityCleanupService) CleanupExpiredEvents(ctx context.Context) (int64, error) {
	cutoffDate := time.Now().AddDate(0, 0, -s.retentionDays)

	slog.Debug("清理过期安全事件", "cutoff_date", cutoffDate.Format("2006-01-02 15:04:05"), "retention_days", s.retentionDays)

	deleted, err := s.store.DeleteEventsBefore(ctx, cutoffDate)
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// runCleanup 执行一轮完整清理并记录结果
func (s *SecurityCleanupService) runCleanup() {
	slog.Info("开始清理安全数据")
	startTime := time.Now()

	deleted, err := s.CleanupExpiredEvents(s.ctx)
	if err != nil {
		slog.Error("清理过期安全事件失败", "error", err)
	} else {
		slog.Info("清理过期安全事件完成", "deleted_count", deleted, "retention_days", s.retentionDays)
	}

	slog.Info("安全数据清理完成", "duration_ms", time.Since(startTime).Milliseconds())
}

// StartScheduledCleanup 启动定时清理任务
func (s *SecurityCleanupService) StartScheduledCleanup() error {
	if s.started {
		return fmt.Errorf("安全清理调度器已经启动")
	}

	slog.Info("启动安全清理调度器")

	// 每天凌晨2点清理过期安全事件
	// Cron表达式：秒 分 时 日 月 周
	_, err := s.cron.AddFunc("0 0 2 * * *", func() {
		s.runCleanup()
	})
	if err != nil {
		return fmt.Errorf("添加定时任务失败: %w", err)
	}

	// 每小时整点清理失活的可疑IP记录
	_, err = s.cron.AddFunc("0 0 * * * *", func() {
		s.detector.EvictStaleIPs()
	})
	if err != nil {
		return fmt.Errorf("添加定时任务失败: %w", err)
	}

	s.cron.Start()
	s.started = true

	slog.Info("安全清理调度器启动成功", "retention_days", s.retentionDays)
	return nil
}

// StopScheduledCleanup 停止定时清理任务
func (s *SecurityCleanupService) StopScheduledCleanup() {
	if !s.started {
		return
	}

	slog.Info("停止安全清理调度器")

	s.cancel()

	if s.cron != nil {
		s.cron.Stop()
	}

	s.started = false

	slog.Info("安全清理调度器已停止")
}
