/*
 * @module service/database/database
 * @description 数据库连接与迁移模块，负责建立PostgreSQL连接池并保持表结构与模型一致
 * @architecture 数据访问层 - 连接管理
 * @documentReference dev_docs/security_design.md
 * @stateFlow 应用启动时建立连接 -> 执行迁移 -> 注入各服务
 * @rules 连接参数来自配置层，运行期不读环境变量
 * @dependencies gorm.io/gorm, gorm.io/driver/postgres
 * @refs service/config/config.go, service/models/security_models.go
 */

package database

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"sentinel-service/service/config"
	"sentinel-service/service/models"
)

// Open 建立数据库连接并配置连接池
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("数据库连接失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取数据库连接池失败: %w", err)
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

// AutoMigrate 自动迁移数据库表结构
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.SecurityEvent{},
	); err != nil {
		return fmt.Errorf("数据库迁移失败: %w", err)
	}
	return nil
}
