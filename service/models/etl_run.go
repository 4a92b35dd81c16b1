/*
 * @module service/models/etl_run
 * @description ETL 运行记录模型，保存一次运行中每个数据集作业的清洗与写入结果
 * @architecture 数据模型层 - 实体模型
 * @documentReference DESIGN.md
 * @stateFlow 创建(running) -> 作业逐个完成 -> success/failed；锁被占用时为 skipped
 * @rules 任一作业失败则运行失败，但保留其余作业的结果
 * @dependencies gorm.io/gorm, github.com/google/uuid
 * @refs service/etl/etl_service.go
 */

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 运行状态
const (
	ETLStatusRunning = "running"
	ETLStatusSuccess = "success"
	ETLStatusFailed  = "failed"
	ETLStatusSkipped = "skipped"
)

// 触发方式
const (
	ETLTriggerManual   = "manual"
	ETLTriggerSchedule = "schedule"
)

// ETLRun ETL 运行记录
type ETLRun struct {
	ID           string           `json:"id" gorm:"primaryKey;type:varchar(36)" example:"550e8400-e29b-41d4-a716-446655440000"`
	Trigger      string           `json:"trigger" gorm:"not null;size:20" example:"manual"`       // manual, schedule
	Status       string           `json:"status" gorm:"not null;size:20;index" example:"success"` // running, success, failed, skipped
	Kinds        JSONBStringArray `json:"kinds" gorm:"type:jsonb"`                                // 本次运行包含的数据集类型
	Jobs         ETLJobResults    `json:"jobs" gorm:"type:jsonb"`                                 // 每个作业的结果
	RowsIn       int64            `json:"rows_in" gorm:"default:0"`
	RowsWritten  int64            `json:"rows_written" gorm:"default:0"`
	ErrorMessage string           `json:"error_message,omitempty" gorm:"type:text"`
	StartedAt    time.Time        `json:"started_at"`
	FinishedAt   *time.Time       `json:"finished_at,omitempty"`
	DurationMs   int64            `json:"duration_ms" gorm:"default:0"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// ETLJobResult 单个数据集作业结果
type ETLJobResult struct {
	Kind             string         `json:"kind"`
	Source           string         `json:"source"`
	Destination      string         `json:"destination"`
	Status           string         `json:"status"`
	RowsIn           int            `json:"rows_in"`
	RowsOut          int            `json:"rows_out"`
	RowsWritten      int64          `json:"rows_written"`
	DroppedRows      map[string]int `json:"dropped_rows,omitempty"`
	UnparseableCells map[string]int `json:"unparseable_cells,omitempty"`
	InvalidatedCells map[string]int `json:"invalidated_cells,omitempty"`
	DurationMs       int64          `json:"duration_ms"`
	Error            string         `json:"error,omitempty"`
}

// TableName 表名
func (ETLRun) TableName() string {
	return "etl_runs"
}

// BeforeCreate GORM钩子，创建前生成UUID
func (r *ETLRun) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.Status == "" {
		r.Status = ETLStatusRunning
	}
	return nil
}

// IsFinished 运行是否已结束
func (r *ETLRun) IsFinished() bool {
	return r.Status != ETLStatusRunning
}

// Finish 根据作业结果结束运行
func (r *ETLRun) Finish(now time.Time) {
	r.Status = ETLStatusSuccess
	r.RowsIn = 0
	r.RowsWritten = 0
	for _, job := range r.Jobs {
		r.RowsIn += int64(job.RowsIn)
		r.RowsWritten += job.RowsWritten
		if job.Status == ETLStatusFailed {
			r.Status = ETLStatusFailed
		}
	}
	if r.ErrorMessage != "" {
		r.Status = ETLStatusFailed
	}
	r.FinishedAt = &now
	r.DurationMs = now.Sub(r.StartedAt).Milliseconds()
}
