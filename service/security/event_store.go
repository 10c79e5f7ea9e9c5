/*
 * @module service/security/event_store
 * @description 安全事件持久化存储，提供事件写入、窗口计数和报告聚合查询
 * @architecture 分层架构 - 数据访问层
 * @documentReference dev_docs/security_design.md
 * @stateFlow 事件写入 -> 按时间窗口计数 -> 分组聚合生成报告
 * @rules 事件写入失败向上传播错误，报告查询按类型+风险级别分组，高风险事件最多返回50条
 * @dependencies gorm.io/gorm, github.com/google/uuid
 * @refs service/security/intrusion_detector.go
 */

package security

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"sentinel-service/service/models"
)

// topRiskEventLimit 报告中高风险事件的最大条数
const topRiskEventLimit = 50

// EventStore 安全事件存储
type EventStore struct {
	db *gorm.DB
}

// NewEventStore 创建安全事件存储实例
func NewEventStore(db *gorm.DB) *EventStore {
	return &EventStore{db: db}
}

// SaveEvent 持久化一条安全事件，自动生成ID和时间戳
func (s *EventStore) SaveEvent(ctx context.Context, event *models.SecurityEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	if err := s.db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("保存安全事件失败: %w", err)
	}
	return nil
}

// CountActorEvents 统计指定主体在时间窗口内某类事件的数量
func (s *EventStore) CountActorEvents(ctx context.Context, actorID, eventType string, since time.Time) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.SecurityEvent{}).
		Where("actor_id = ? AND event_type = ? AND created_at >= ?", actorID, eventType, since).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("统计安全事件失败: %w", err)
	}
	return count, nil
}

// CountActorOtherEvents 统计主体在时间窗口内除指定类型外的事件数量
func (s *EventStore) CountActorOtherEvents(ctx context.Context, actorID string, excludeTypes []string, since time.Time) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.SecurityEvent{}).
		Where("actor_id = ? AND event_type NOT IN ? AND created_at >= ?", actorID, excludeTypes, since).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("统计安全事件失败: %w", err)
	}
	return count, nil
}

// GroupCountsSince 按事件类型和风险级别分组统计时间窗口内的事件数
func (s *EventStore) GroupCountsSince(ctx context.Context, since time.Time) ([]models.EventGroupCount, error) {
	var counts []models.EventGroupCount
	err := s.db.WithContext(ctx).
		Model(&models.SecurityEvent{}).
		Select("event_type, risk_level, count(*) as count").
		Where("created_at >= ?", since).
		Group("event_type, risk_level").
		Order("count desc").
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("聚合安全事件失败: %w", err)
	}
	return counts, nil
}

// TopRiskEventsSince 查询时间窗口内的高风险事件，最新优先，最多50条
func (s *EventStore) TopRiskEventsSince(ctx context.Context, since time.Time) ([]models.SecurityEvent, error) {
	var events []models.SecurityEvent
	err := s.db.WithContext(ctx).
		Where("created_at >= ? AND risk_level IN ?", since,
			[]models.RiskLevel{models.RiskLevelHigh, models.RiskLevelCritical}).
		Order("created_at desc").
		Limit(topRiskEventLimit).
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("查询高风险事件失败: %w", err)
	}
	return events, nil
}

// DistinctActorsSince 统计时间窗口内出现过的不同主体数量
func (s *EventStore) DistinctActorsSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.SecurityEvent{}).
		Where("created_at >= ? AND actor_id <> ''", since).
		Distinct("actor_id").
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("统计安全事件主体失败: %w", err)
	}
	return count, nil
}

// DeleteEventsBefore 删除指定时间之前的事件，返回删除条数
func (s *EventStore) DeleteEventsBefore(ctx context.Context, before time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("created_at < ?", before).
		Delete(&models.SecurityEvent{})
	if result.Error != nil {
		return 0, fmt.Errorf("清理过期安全事件失败: %w", result.Error)
	}
	return result.RowsAffected, nil
}
