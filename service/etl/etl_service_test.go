/*
 * @module service/etl/etl_service_test
 * @description ETL 编排服务测试
 * @architecture 测试层 - mock 数据源、目标表与运行锁，内存 SQLite 保存运行记录
 * @documentReference DESIGN.md
 * @stateFlow 构造作业 -> Run -> 校验运行记录、作业结果与报告发布
 * @rules 单个作业失败不影响其他作业；锁被占用时记录 skipped
 * @dependencies testing, testify/mock, testutil
 * @refs etl_service.go, job.go
 */

package etl

import (
	"context"
	"errors"
	"testing"
	"time"

	"retail-datahub/service/cleansing"
	"retail-datahub/service/distributed_lock"
	"retail-datahub/service/models"
	"retail-datahub/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const validDateUUID = "3b7ca996-37f9-433f-b6d0-ce8391b615ad"

// MockSource 数据源 mock
type MockSource struct {
	mock.Mock
	name string
}

func (m *MockSource) Extract(ctx context.Context) (*cleansing.RecordBatch, error) {
	args := m.Called()
	if batch := args.Get(0); batch != nil {
		return batch.(*cleansing.RecordBatch), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockSource) Describe() string {
	return m.name
}

// MockSink 目标表 mock
type MockSink struct {
	mock.Mock
}

func (m *MockSink) ReplaceTable(ctx context.Context, table string, batch *cleansing.RecordBatch) (int64, error) {
	args := m.Called(table, batch.Len())
	return int64(args.Int(0)), args.Error(1)
}

// MockLocker 运行锁 mock
type MockLocker struct {
	mock.Mock
}

func (m *MockLocker) ExecuteWithLockAndRefresh(ctx context.Context, key string, ttl, refreshInterval time.Duration, fn func() error) error {
	args := m.Called(key, ttl, refreshInterval)
	if err := args.Error(0); err != nil {
		return err
	}
	return fn()
}

// MockPublisher 报告发布 mock
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Name() string {
	return "mock"
}

func (m *MockPublisher) Publish(ctx context.Context, run *models.ETLRun) error {
	return m.Called(run.Status).Error(0)
}

func (m *MockPublisher) Close() error {
	return m.Called().Error(0)
}

func datesBatch() *cleansing.RecordBatch {
	return testutil.RawBatch(cleansing.KindDates,
		cleansing.Row{"timestamp": "22:00:06", "month": "9", "year": "2012", "day": "19", "time_period": "Evening", "date_uuid": validDateUUID},
		cleansing.Row{"timestamp": "NULL", "month": "NULL", "year": "NULL", "day": "NULL", "time_period": "NULL", "date_uuid": "NULL"},
		cleansing.Row{"timestamp": "GP", "month": "GP", "year": "GP", "day": "GP", "time_period": "GP", "date_uuid": "GP"},
	)
}

func ordersBatch() *cleansing.RecordBatch {
	return testutil.RawBatch(cleansing.KindOrders,
		cleansing.Row{"level_0": "0", "date_uuid": validDateUUID, "first_name": "Gerhard", "product_code": "R7-3126933h", "product_quantity": int64(3)},
	)
}

func newTestService(t *testing.T, jobs []Job, sink TableSink, opts ...Option) (*ETLService, *testutil.TestDB) {
	t.Helper()
	testDB := testutil.NewTestDB()
	t.Cleanup(testDB.Close)
	return NewETLService(testDB.DB, cleansing.NewCleaner(nil), sink, jobs, opts...), testDB
}

func TestETLService_Run_Success(t *testing.T) {
	dates := &MockSource{name: "s3://bucket/date_details.json"}
	dates.On("Extract").Return(datesBatch(), nil)
	orders := &MockSource{name: "table:orders_table"}
	orders.On("Extract").Return(ordersBatch(), nil)
	sink := new(MockSink)
	sink.On("ReplaceTable", TableDimDateTimes, 1).Return(1, nil)
	sink.On("ReplaceTable", TableOrders, 1).Return(1, nil)
	publisher := new(MockPublisher)
	publisher.On("Publish", models.ETLStatusSuccess).Return(nil)

	jobs := []Job{
		{Kind: cleansing.KindDates, Source: dates, Destination: TableDimDateTimes},
		{Kind: cleansing.KindOrders, Source: orders, Destination: TableOrders},
	}
	service, testDB := newTestService(t, jobs, sink, WithPublishers(publisher))

	run, err := service.Run(context.Background(), models.ETLTriggerManual, nil)

	require.NoError(t, err)
	assert.Equal(t, models.ETLStatusSuccess, run.Status)
	assert.Equal(t, models.JSONBStringArray{"dates", "orders"}, run.Kinds)
	require.Len(t, run.Jobs, 2)
	assert.Equal(t, "dates", run.Jobs[0].Kind)
	assert.Equal(t, 3, run.Jobs[0].RowsIn)
	assert.Equal(t, 1, run.Jobs[0].RowsOut)
	assert.Equal(t, 1, run.Jobs[0].DroppedRows[cleansing.DropAllMissing])
	assert.Equal(t, 1, run.Jobs[0].DroppedRows[cleansing.DropBadDateUUID])
	assert.Equal(t, int64(4), run.RowsIn)
	assert.Equal(t, int64(2), run.RowsWritten)
	require.NotNil(t, run.FinishedAt)

	stored, err := service.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ETLStatusSuccess, stored.Status)
	require.Len(t, stored.Jobs, 2)
	assert.Equal(t, "table:orders_table", stored.Jobs[1].Source)

	var count int64
	testDB.DB.Model(&models.ETLRun{}).Count(&count)
	assert.Equal(t, int64(1), count)
	sink.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestETLService_Run_JobFailure(t *testing.T) {
	dates := &MockSource{name: "dates"}
	dates.On("Extract").Return(datesBatch(), nil)
	stores := &MockSource{name: "store_api"}
	stores.On("Extract").Return(nil, errors.New("HTTP请求失败，状态码: 403"))
	schemaBroken := &MockSource{name: "table:orders_table"}
	schemaBroken.On("Extract").Return(cleansing.NewRecordBatch([]string{"level_0"}), nil)
	sink := new(MockSink)
	sink.On("ReplaceTable", TableDimDateTimes, 1).Return(0, errors.New("disk full"))
	publisher := new(MockPublisher)
	publisher.On("Publish", models.ETLStatusFailed).Return(errors.New("broker down"))

	jobs := []Job{
		{Kind: cleansing.KindDates, Source: dates, Destination: TableDimDateTimes},
		{Kind: cleansing.KindStores, Source: stores, Destination: TableDimStoreDetails},
		{Kind: cleansing.KindOrders, Source: schemaBroken, Destination: TableOrders},
	}
	service, _ := newTestService(t, jobs, sink, WithPublishers(publisher), WithConcurrency(1))

	run, err := service.Run(context.Background(), models.ETLTriggerSchedule, nil)

	require.NoError(t, err, "作业失败不作为运行错误返回")
	assert.Equal(t, models.ETLStatusFailed, run.Status)
	assert.Contains(t, run.ErrorMessage, "stores")
	require.Len(t, run.Jobs, 3)
	assert.Contains(t, run.Jobs[0].Error, "写入")
	assert.Equal(t, 1, run.Jobs[0].RowsOut, "失败作业保留清洗结果")
	assert.Contains(t, run.Jobs[1].Error, "抽取")
	assert.Contains(t, run.Jobs[2].Error, "清洗")
	for _, job := range run.Jobs {
		assert.Equal(t, models.ETLStatusFailed, job.Status)
	}
	publisher.AssertExpectations(t)
}

func TestETLService_Run_SelectKinds(t *testing.T) {
	dates := &MockSource{name: "dates"}
	dates.On("Extract").Return(datesBatch(), nil)
	orders := &MockSource{name: "orders"}
	sink := new(MockSink)
	sink.On("ReplaceTable", TableDimDateTimes, 1).Return(1, nil)

	jobs := []Job{
		{Kind: cleansing.KindDates, Source: dates, Destination: TableDimDateTimes},
		{Kind: cleansing.KindOrders, Source: orders, Destination: TableOrders},
	}
	service, _ := newTestService(t, jobs, sink)

	run, err := service.Run(context.Background(), models.ETLTriggerManual, []cleansing.DatasetKind{cleansing.KindDates})
	require.NoError(t, err)
	assert.Equal(t, models.JSONBStringArray{"dates"}, run.Kinds)
	orders.AssertNotCalled(t, "Extract")

	_, err = service.Run(context.Background(), models.ETLTriggerManual, []cleansing.DatasetKind{cleansing.KindCards})
	assert.ErrorIs(t, err, ErrJobNotConfigured)
}

func TestETLService_Run_Locked(t *testing.T) {
	dates := &MockSource{name: "dates"}
	dates.On("Extract").Return(datesBatch(), nil)
	sink := new(MockSink)
	sink.On("ReplaceTable", TableDimDateTimes, 1).Return(1, nil)
	jobs := []Job{{Kind: cleansing.KindDates, Source: dates, Destination: TableDimDateTimes}}

	t.Run("获取锁后执行", func(t *testing.T) {
		locker := new(MockLocker)
		locker.On("ExecuteWithLockAndRefresh", runLockKey, time.Minute, 20*time.Second).Return(nil)
		service, _ := newTestService(t, jobs, sink, WithLocker(locker, time.Minute))

		run, err := service.Run(context.Background(), models.ETLTriggerSchedule, nil)

		require.NoError(t, err)
		assert.Equal(t, models.ETLStatusSuccess, run.Status)
		locker.AssertExpectations(t)
	})

	t.Run("锁被占用时跳过", func(t *testing.T) {
		locker := new(MockLocker)
		locker.On("ExecuteWithLockAndRefresh", runLockKey, time.Minute, 20*time.Second).Return(distributed_lock.ErrLockHeld)
		service, _ := newTestService(t, jobs, sink, WithLocker(locker, time.Minute))

		run, err := service.Run(context.Background(), models.ETLTriggerSchedule, nil)

		require.NoError(t, err)
		assert.Equal(t, models.ETLStatusSkipped, run.Status)
		assert.True(t, run.IsFinished())

		runs, err := service.ListRuns(context.Background(), 0)
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, models.ETLStatusSkipped, runs[0].Status)
	})

	t.Run("锁服务不可用", func(t *testing.T) {
		locker := new(MockLocker)
		locker.On("ExecuteWithLockAndRefresh", runLockKey, time.Minute, 20*time.Second).Return(errors.New("connection refused"))
		service, _ := newTestService(t, jobs, sink, WithLocker(locker, time.Minute))

		_, err := service.Run(context.Background(), models.ETLTriggerSchedule, nil)

		assert.Error(t, err)
	})
}

func TestETLService_ListAndGetRuns(t *testing.T) {
	service, testDB := newTestService(t, nil, new(MockSink))
	factory := testutil.NewTestDataFactory(testDB.DB)
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 25; i++ {
		startedAt := base.Add(time.Duration(i) * time.Minute)
		factory.CreateETLRun(func(r *models.ETLRun) { r.StartedAt = startedAt })
	}
	latest := factory.CreateETLRun(func(r *models.ETLRun) { r.StartedAt = time.Now() })

	runs, err := service.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, runs, defaultListLimit)
	assert.Equal(t, latest.ID, runs[0].ID)

	runs, err = service.ListRuns(context.Background(), 5)
	require.NoError(t, err)
	assert.Len(t, runs, 5)

	found, err := service.GetRun(context.Background(), latest.ID)
	require.NoError(t, err)
	assert.Equal(t, latest.ID, found.ID)

	_, err = service.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestETLService_Close(t *testing.T) {
	publisher := new(MockPublisher)
	publisher.On("Close").Return(errors.New("already closed"))
	service, _ := newTestService(t, nil, new(MockSink), WithPublishers(publisher))

	service.Close()

	publisher.AssertCalled(t, "Close")
	assert.Empty(t, service.Kinds())
}
