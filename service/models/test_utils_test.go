/*
 * @module service/models/test_utils_test
 * @description 模型测试辅助工具
 * @architecture 测试基础设施 - 模型层独立的内存数据库，避免循环导入
 * @documentReference DESIGN.md
 * @stateFlow 测试环境初始化 -> 测试数据创建 -> 测试执行 -> 清理资源
 * @rules 仅迁移模型层自身的表
 * @dependencies gorm, sqlite
 */

package models

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ModelTestDB 模型测试数据库配置
type ModelTestDB struct {
	DB *gorm.DB
}

// NewModelTestDB 创建模型测试数据库
func NewModelTestDB() *ModelTestDB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		panic(fmt.Sprintf("failed to connect test database: %v", err))
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(&ETLRun{}); err != nil {
		panic(fmt.Sprintf("failed to migrate test database: %v", err))
	}

	return &ModelTestDB{DB: db}
}

// Close 关闭数据库连接
func (tdb *ModelTestDB) Close() {
	sqlDB, err := tdb.DB.DB()
	if err != nil {
		fmt.Printf("Error getting underlying DB: %v\n", err)
		return
	}
	sqlDB.Close()
}
