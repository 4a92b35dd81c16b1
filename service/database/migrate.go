/*
 * @module service/database/migrate
 * @description 数据库迁移模块，负责创建和更新服务自身的表结构
 * @architecture 数据访问层 - 迁移管理
 * @documentReference DESIGN.md
 * @stateFlow 应用启动时执行数据库迁移
 * @rules 只迁移服务自身的记录表；目标维表由 TableWriter 按批次重建
 * @dependencies retail-datahub/service/models, gorm.io/gorm
 * @refs service/models/etl_run.go, service/init.go
 */

package database

import (
	"log/slog"

	"retail-datahub/service/models"

	"gorm.io/gorm"
)

// AutoMigrate 自动迁移数据库表结构
func AutoMigrate(db *gorm.DB) error {
	slog.Info("开始数据库迁移...")

	// ETL 运行记录
	if err := db.AutoMigrate(&models.ETLRun{}); err != nil {
		return err
	}

	slog.Info("数据库迁移完成")
	return nil
}
