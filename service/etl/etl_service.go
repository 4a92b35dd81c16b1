/*
 * @module service/etl/etl_service
 * @description ETL 编排服务：加锁、并发执行各数据集作业、记录运行结果并发布报告
 * @architecture 服务层 - 编排 抽取 -> 清洗 -> 写入，运行记录持久化到 etl_runs
 * @documentReference DESIGN.md
 * @stateFlow 获取运行锁 -> 创建运行记录(running) -> 并发执行作业 -> 汇总结果(success/failed) -> 发布报告
 * @rules 单个作业失败不影响其他作业，但整个运行标记为失败；锁被占用时记录 skipped 运行
 * @dependencies gorm.io/gorm, golang.org/x/sync/errgroup, github.com/prometheus/client_golang
 * @refs job.go, service/distributed_lock/redis_lock.go, client/connectors
 */

package etl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"retail-datahub/service/cleansing"
	"retail-datahub/service/distributed_lock"
	"retail-datahub/service/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	runLockKey         = "retail_etl"
	defaultConcurrency = 3
	defaultListLimit   = 20
	maxListLimit       = 100
)

var (
	// ErrJobNotConfigured 请求的数据集类型没有对应作业
	ErrJobNotConfigured = errors.New("数据集作业未配置")
	// ErrRunNotFound 运行记录不存在
	ErrRunNotFound = errors.New("运行记录不存在")
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "retail_datahub",
		Subsystem: "etl",
		Name:      "runs_total",
		Help:      "ETL 运行次数",
	}, []string{"trigger", "status"})

	jobDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "retail_datahub",
		Subsystem: "etl",
		Name:      "job_duration_seconds",
		Help:      "单个数据集作业耗时",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"kind", "status"})

	rowsWrittenTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "retail_datahub",
		Subsystem: "etl",
		Name:      "rows_written_total",
		Help:      "写入目标表的行数",
	}, []string{"kind"})
)

// BatchCleaner 批次清洗接口，由 *cleansing.Cleaner 实现
type BatchCleaner interface {
	CleanWithReport(kind cleansing.DatasetKind, batch *cleansing.RecordBatch, opts cleansing.CleanOptions) (*cleansing.RecordBatch, *cleansing.CleansingReport, error)
}

// TableSink 目标表写入接口，由 *database.TableWriter 实现
type TableSink interface {
	ReplaceTable(ctx context.Context, table string, batch *cleansing.RecordBatch) (int64, error)
}

// RunLocker 运行锁接口，由 *distributed_lock.LockExecutor 实现
type RunLocker interface {
	ExecuteWithLockAndRefresh(ctx context.Context, key string, ttl, refreshInterval time.Duration, fn func() error) error
}

// ReportPublisher 运行报告发布接口
type ReportPublisher interface {
	Name() string
	Publish(ctx context.Context, run *models.ETLRun) error
	Close() error
}

// Option ETL 服务选项
type Option func(*ETLService)

// WithLocker 启用分布式运行锁
func WithLocker(locker RunLocker, ttl time.Duration) Option {
	return func(s *ETLService) {
		s.locker = locker
		s.lockTTL = ttl
	}
}

// WithPublishers 设置运行报告发布器
func WithPublishers(publishers ...ReportPublisher) Option {
	return func(s *ETLService) {
		s.publishers = append(s.publishers, publishers...)
	}
}

// WithConcurrency 设置作业并发数
func WithConcurrency(n int) Option {
	return func(s *ETLService) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// ETLService ETL 编排服务
type ETLService struct {
	db          *gorm.DB
	cleaner     BatchCleaner
	sink        TableSink
	jobs        []Job
	locker      RunLocker
	lockTTL     time.Duration
	publishers  []ReportPublisher
	concurrency int
	logger      *slog.Logger
}

// NewETLService 创建 ETL 编排服务
func NewETLService(db *gorm.DB, cleaner BatchCleaner, sink TableSink, jobs []Job, opts ...Option) *ETLService {
	s := &ETLService{
		db:          db,
		cleaner:     cleaner,
		sink:        sink,
		jobs:        jobs,
		lockTTL:     30 * time.Minute,
		concurrency: defaultConcurrency,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Kinds 已配置作业的数据集类型
func (s *ETLService) Kinds() []cleansing.DatasetKind {
	kinds := make([]cleansing.DatasetKind, 0, len(s.jobs))
	for _, job := range s.jobs {
		kinds = append(kinds, job.Kind)
	}
	return kinds
}

// Run 执行一次 ETL 运行；kinds 为空时执行全部作业
// 作业失败体现在返回的运行记录中，只有无法开始或无法记录运行时才返回错误
func (s *ETLService) Run(ctx context.Context, trigger string, kinds []cleansing.DatasetKind) (*models.ETLRun, error) {
	jobs, err := SelectJobs(s.jobs, kinds)
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, fmt.Errorf("%w: 没有可执行的作业", ErrJobNotConfigured)
	}

	if s.locker == nil {
		return s.execute(ctx, trigger, jobs)
	}

	var run *models.ETLRun
	// 运行可能超过锁的有效期，按 TTL/3 续期
	err = s.locker.ExecuteWithLockAndRefresh(ctx, runLockKey, s.lockTTL, s.lockTTL/3, func() error {
		var execErr error
		run, execErr = s.execute(ctx, trigger, jobs)
		return execErr
	})
	if errors.Is(err, distributed_lock.ErrLockHeld) {
		s.logger.Info("ETL 运行已在其他实例进行，本次跳过", "trigger", trigger)
		return s.recordSkipped(ctx, trigger, jobs)
	}
	return run, err
}

func (s *ETLService) execute(ctx context.Context, trigger string, jobs []Job) (*models.ETLRun, error) {
	run := &models.ETLRun{
		Trigger:   trigger,
		Status:    models.ETLStatusRunning,
		Kinds:     jobKinds(jobs),
		StartedAt: time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, fmt.Errorf("创建运行记录失败: %w", err)
	}
	s.logger.Info("ETL 运行开始", "run_id", run.ID, "trigger", trigger, "kinds", run.Kinds)

	results := make(models.ETLJobResults, len(jobs))
	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)
	for i, job := range jobs {
		g.Go(func() error {
			results[i] = s.runJob(ctx, job)
			return nil
		})
	}
	_ = g.Wait()

	run.Jobs = results
	var failed []string
	for _, result := range results {
		if result.Status == models.ETLStatusFailed {
			failed = append(failed, result.Kind)
		}
	}
	if len(failed) > 0 {
		run.ErrorMessage = "作业失败: " + strings.Join(failed, ", ")
	}
	run.Finish(time.Now())

	// 运行上下文取消后仍需落库
	saveCtx := context.WithoutCancel(ctx)
	if err := s.db.WithContext(saveCtx).Save(run).Error; err != nil {
		return run, fmt.Errorf("保存运行记录失败: %w", err)
	}
	runsTotal.WithLabelValues(trigger, run.Status).Inc()

	s.logger.Info("ETL 运行结束",
		"run_id", run.ID,
		"status", run.Status,
		"rows_in", run.RowsIn,
		"rows_written", run.RowsWritten,
		"duration_ms", run.DurationMs)

	s.publish(saveCtx, run)
	return run, nil
}

func (s *ETLService) runJob(ctx context.Context, job Job) models.ETLJobResult {
	startTime := time.Now()
	result := models.ETLJobResult{
		Kind:        string(job.Kind),
		Source:      job.Source.Describe(),
		Destination: job.Destination,
		Status:      models.ETLStatusSuccess,
	}
	fail := func(stage string, err error) models.ETLJobResult {
		result.Status = models.ETLStatusFailed
		result.Error = fmt.Sprintf("%s: %v", stage, err)
		result.DurationMs = time.Since(startTime).Milliseconds()
		jobDurationSeconds.WithLabelValues(result.Kind, result.Status).Observe(time.Since(startTime).Seconds())
		s.logger.Error("ETL 作业失败", "kind", job.Kind, "stage", stage, "error", err)
		return result
	}

	batch, err := job.Source.Extract(ctx)
	if err != nil {
		return fail("抽取", err)
	}
	result.RowsIn = batch.Len()

	cleaned, report, err := s.cleaner.CleanWithReport(job.Kind, batch, job.Options)
	if err != nil {
		return fail("清洗", err)
	}
	result.RowsOut = cleaned.Len()
	result.DroppedRows = report.DroppedRows
	result.UnparseableCells = report.UnparseableCells
	result.InvalidatedCells = report.InvalidatedCells

	written, err := s.sink.ReplaceTable(ctx, job.Destination, cleaned)
	if err != nil {
		return fail("写入", err)
	}
	result.RowsWritten = written
	result.DurationMs = time.Since(startTime).Milliseconds()

	rowsWrittenTotal.WithLabelValues(result.Kind).Add(float64(written))
	jobDurationSeconds.WithLabelValues(result.Kind, result.Status).Observe(time.Since(startTime).Seconds())
	s.logger.Info("ETL 作业完成",
		"kind", job.Kind,
		"destination", job.Destination,
		"rows_in", result.RowsIn,
		"rows_out", result.RowsOut,
		"rows_written", written)
	return result
}

func (s *ETLService) recordSkipped(ctx context.Context, trigger string, jobs []Job) (*models.ETLRun, error) {
	now := time.Now()
	run := &models.ETLRun{
		Trigger:      trigger,
		Status:       models.ETLStatusSkipped,
		Kinds:        jobKinds(jobs),
		ErrorMessage: distributed_lock.ErrLockHeld.Error(),
		StartedAt:    now,
		FinishedAt:   &now,
	}
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, fmt.Errorf("创建运行记录失败: %w", err)
	}
	runsTotal.WithLabelValues(trigger, run.Status).Inc()
	return run, nil
}

// publish 发布运行报告，发布失败只记录日志
func (s *ETLService) publish(ctx context.Context, run *models.ETLRun) {
	for _, publisher := range s.publishers {
		publishCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		if err := publisher.Publish(publishCtx, run); err != nil {
			s.logger.Error("发布运行报告失败", "publisher", publisher.Name(), "run_id", run.ID, "error", err)
		}
		cancel()
	}
}

// ListRuns 按开始时间倒序列出最近的运行记录
func (s *ETLService) ListRuns(ctx context.Context, limit int) ([]models.ETLRun, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	var runs []models.ETLRun
	if err := s.db.WithContext(ctx).Order("started_at DESC").Limit(limit).Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("查询运行记录失败: %w", err)
	}
	return runs, nil
}

// GetRun 获取运行记录
func (s *ETLService) GetRun(ctx context.Context, id string) (*models.ETLRun, error) {
	var run models.ETLRun
	err := s.db.WithContext(ctx).First(&run, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("查询运行记录失败: %w", err)
	}
	return &run, nil
}

// Close 关闭报告发布器
func (s *ETLService) Close() {
	for _, publisher := range s.publishers {
		if err := publisher.Close(); err != nil {
			s.logger.Warn("关闭报告发布器失败", "publisher", publisher.Name(), "error", err)
		}
	}
}

func jobKinds(jobs []Job) models.JSONBStringArray {
	kinds := make(models.JSONBStringArray, 0, len(jobs))
	for _, job := range jobs {
		kinds = append(kinds, string(job.Kind))
	}
	return kinds
}
