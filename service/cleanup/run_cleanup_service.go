/*
 * @module service/cleanup/run_cleanup_service
 * @description 运行记录清理服务，负责定期清理过期的 ETL 运行记录
 * @architecture 分层架构 - 业务服务层
 * @documentReference DESIGN.md
 * @stateFlow 定时触发 -> 计算截止时间 -> 删除过期记录 -> 记录结果
 * @rules 保留天数不大于0时不清理；仍在运行的记录不删除
 * @dependencies gorm.io/gorm, github.com/robfig/cron/v3
 * @refs service/models/etl_run.go, service/init.go
 */

package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"retail-datahub/service/models"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// DefaultCleanupCron 每天凌晨2点执行清理，Cron表达式：秒 分 时 日 月 周
const DefaultCleanupCron = "0 0 2 * * *"

// RunCleanupService 运行记录清理服务
type RunCleanupService struct {
	db            *gorm.DB
	retentionDays int
	cron          *cron.Cron
	ctx           context.Context
	cancel        context.CancelFunc
	started       bool
}

// NewRunCleanupService 创建运行记录清理服务实例
func NewRunCleanupService(db *gorm.DB, retentionDays int) *RunCleanupService {
	ctx, cancel := context.WithCancel(context.Background())

	return &RunCleanupService{
		db:            db,
		retentionDays: retentionDays,
		cron:          cron.New(cron.WithSeconds()),
		ctx:           ctx,
		cancel:        cancel,
	}
}

// CleanupExpiredRuns 删除开始时间早于 now-retentionDays 的已结束运行记录
func (s *RunCleanupService) CleanupExpiredRuns(ctx context.Context, now time.Time) (int64, error) {
	if s.retentionDays <= 0 {
		return 0, nil
	}

	cutoff := now.AddDate(0, 0, -s.retentionDays)
	slog.Debug("清理 ETL 运行记录", "cutoff", cutoff.Format("2006-01-02 15:04:05"), "retention_days", s.retentionDays)

	result := s.db.WithContext(ctx).
		Where("started_at < ? AND status <> ?", cutoff, models.ETLStatusRunning).
		Delete(&models.ETLRun{})
	if result.Error != nil {
		return 0, fmt.Errorf("删除 ETL 运行记录失败: %w", result.Error)
	}

	return result.RowsAffected, nil
}

// StartScheduledCleanup 启动定时清理任务
func (s *RunCleanupService) StartScheduledCleanup(spec string) error {
	if s.started {
		return fmt.Errorf("运行记录清理调度器已经启动")
	}
	if s.retentionDays <= 0 {
		slog.Info("未配置运行记录保留天数，跳过定时清理")
		return nil
	}

	_, err := s.cron.AddFunc(spec, func() {
		deleted, err := s.CleanupExpiredRuns(s.ctx, time.Now())
		if err != nil {
			slog.Error("定时清理 ETL 运行记录失败", "error", err)
			return
		}
		slog.Info("定时清理 ETL 运行记录完成", "deleted_count", deleted, "retention_days", s.retentionDays)
	})
	if err != nil {
		return fmt.Errorf("添加定时任务失败: %w", err)
	}

	s.cron.Start()
	s.started = true

	slog.Info("运行记录清理调度器启动成功", "cron", spec, "retention_days", s.retentionDays)
	return nil
}

// StopScheduledCleanup 停止定时清理任务
func (s *RunCleanupService) StopScheduledCleanup() {
	if !s.started {
		return
	}

	s.cancel()
	<-s.cron.Stop().Done()
	s.started = false

	slog.Info("运行记录清理调度器已停止")
}
