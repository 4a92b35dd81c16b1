/*
 * @module testutil/test_helper
 * @description 测试工具和辅助函数
 * @architecture 测试基础设施 - 提供测试通用工具和数据工厂
 * @documentReference DESIGN.md
 * @stateFlow 测试环境初始化 -> 测试数据创建 -> 测试执行 -> 清理资源
 * @rules 提供可重用的测试工具，确保测试环境的一致性
 * @dependencies gorm, sqlite, testify, time
 * @refs service/models
 */

package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"retail-datahub/service/cleansing"
	"retail-datahub/service/models"

	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestDB 测试数据库配置
type TestDB struct {
	DB *gorm.DB
}

// NewTestDB 创建内存测试数据库，并迁移运行记录表
func NewTestDB() *TestDB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		panic(fmt.Sprintf("failed to connect test database: %v", err))
	}

	// 内存库按连接隔离，限制为单连接保证所有查询看到同一个库
	sqlDB, err := db.DB()
	if err != nil {
		panic(fmt.Sprintf("failed to get test sql db: %v", err))
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&models.ETLRun{}); err != nil {
		panic(fmt.Sprintf("failed to migrate test database: %v", err))
	}

	return &TestDB{DB: db}
}

// CleanDB 清理数据库
func (tdb *TestDB) CleanDB() {
	tdb.DB.Exec("DELETE FROM etl_runs")
}

// Close 关闭数据库连接
func (tdb *TestDB) Close() {
	if db, err := tdb.DB.DB(); err == nil {
		db.Close()
	}
}

// TestDataFactory 测试数据工厂
type TestDataFactory struct {
	DB *gorm.DB
}

// NewTestDataFactory 创建测试数据工厂
func NewTestDataFactory(db *gorm.DB) *TestDataFactory {
	return &TestDataFactory{DB: db}
}

// ETLRunOption 运行记录选项函数类型
type ETLRunOption func(*models.ETLRun)

// CreateETLRun 创建测试运行记录
func (f *TestDataFactory) CreateETLRun(opts ...ETLRunOption) *models.ETLRun {
	startedAt := time.Now().Add(-time.Minute)
	finishedAt := time.Now()
	run := &models.ETLRun{
		Trigger:   models.ETLTriggerManual,
		Status:    models.ETLStatusSuccess,
		Kinds:     models.JSONBStringArray{"dates"},
		StartedAt: startedAt,
		Jobs: models.ETLJobResults{
			{Kind: "dates", Source: "s3://bucket/date_details.json", Destination: "dim_date_times", Status: models.ETLStatusSuccess, RowsIn: 2, RowsOut: 1, RowsWritten: 1},
		},
		RowsIn:      2,
		RowsWritten: 1,
		FinishedAt:  &finishedAt,
		DurationMs:  finishedAt.Sub(startedAt).Milliseconds(),
	}

	// 应用选项
	for _, opt := range opts {
		opt(run)
	}

	if err := f.DB.Create(run).Error; err != nil {
		panic(fmt.Sprintf("failed to create test etl run: %v", err))
	}

	return run
}

// RawBatch 按列契约构造原始批次，未指定的列为缺失值
func RawBatch(kind cleansing.DatasetKind, rows ...cleansing.Row) *cleansing.RecordBatch {
	columns := cleansing.RawSchema(kind)
	built := make([]cleansing.Row, 0, len(rows))
	for _, values := range rows {
		row := make(cleansing.Row, len(columns))
		for _, col := range columns {
			row[col] = nil
		}
		for col, value := range values {
			row[col] = value
		}
		built = append(built, row)
	}
	return cleansing.NewRecordBatch(columns, built...)
}

// HTTPTestHelper HTTP测试辅助工具
type HTTPTestHelper struct{}

// NewHTTPTestHelper 创建HTTP测试辅助工具
func NewHTTPTestHelper() *HTTPTestHelper {
	return &HTTPTestHelper{}
}

// CreateJSONRequest 创建JSON请求
func (h *HTTPTestHelper) CreateJSONRequest(method, url string, body interface{}) (*http.Request, error) {
	var reqBody io.Reader

	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return nil, err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

// AssertJSONResponse 断言JSON响应
func (h *HTTPTestHelper) AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedBody interface{}) {
	assert.Equal(t, expectedStatus, w.Code)

	if expectedBody != nil {
		var actualBody interface{}
		err := json.Unmarshal(w.Body.Bytes(), &actualBody)
		assert.NoError(t, err)

		expectedJSON, _ := json.Marshal(expectedBody)
		actualJSON, _ := json.Marshal(actualBody)

		assert.JSONEq(t, string(expectedJSON), string(actualJSON))
	}
}
