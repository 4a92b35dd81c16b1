/**
 * @module SchedulerService
 * @description ETL 调度器服务，按 Cron 表达式定时触发 ETL 运行
 * @architecture 基于 robfig/cron 的调度器模式
 * @documentReference DESIGN.md
 * @stateFlow Start -> 注册 Cron 任务 -> 到期触发 Run(schedule) -> Stop 取消运行中的任务
 * @rules Cron 表达式支持秒字段；上一次运行未结束时跳过本次触发
 * @dependencies github.com/robfig/cron/v3
 * @refs ../etl/etl_service.go
 */

package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"retail-datahub/service/cleansing"
	"retail-datahub/service/models"
)

// ETLRunner ETL 运行接口，由 *etl.ETLService 实现
type ETLRunner interface {
	Run(ctx context.Context, trigger string, kinds []cleansing.DatasetKind) (*models.ETLRun, error)
}

// SchedulerService 调度器服务
type SchedulerService struct {
	runner  ETLRunner
	spec    string
	cron    *cron.Cron
	entryID cron.EntryID
	running sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewSchedulerService 创建调度器服务，spec 为空时 Start 不注册任何任务
func NewSchedulerService(runner ETLRunner, spec string) *SchedulerService {
	ctx, cancel := context.WithCancel(context.Background())

	return &SchedulerService{
		runner: runner,
		spec:   spec,
		cron:   cron.New(cron.WithSeconds()),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start 启动调度器
func (s *SchedulerService) Start() error {
	if s.spec == "" {
		slog.Info("未配置 ETL_CRON，定时运行未启用")
		return nil
	}

	entryID, err := s.cron.AddFunc(s.spec, s.trigger)
	if err != nil {
		return fmt.Errorf("添加Cron任务失败: %w", err)
	}
	s.entryID = entryID
	s.cron.Start()

	slog.Info("ETL 调度器启动完成", "cron", s.spec, "next", s.cron.Entry(entryID).Next)
	return nil
}

// Stop 停止调度器并取消运行中的任务
func (s *SchedulerService) Stop() {
	slog.Info("停止 ETL 调度器")

	s.cancel()
	<-s.cron.Stop().Done()

	slog.Info("ETL 调度器已停止")
}

// trigger 执行一次定时运行
func (s *SchedulerService) trigger() {
	if !s.running.TryLock() {
		slog.Warn("上一次定时运行尚未结束，跳过本次触发")
		return
	}
	defer s.running.Unlock()

	run, err := s.runner.Run(s.ctx, models.ETLTriggerSchedule, nil)
	if err != nil {
		slog.Error("定时 ETL 运行失败", "error", err)
		return
	}
	slog.Info("定时 ETL 运行结束", "run_id", run.ID, "status", run.Status)
}
