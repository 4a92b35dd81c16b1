/*
 * @module service/cleanup/run_cleanup_service_test
 * @description 运行记录清理服务测试
 * @architecture 测试层 - 内存 SQLite
 * @documentReference DESIGN.md
 * @stateFlow 创建不同时间的运行记录 -> 清理 -> 校验剩余记录
 * @rules 只删除过期且已结束的记录
 * @dependencies testing, testify, testutil
 * @refs run_cleanup_service.go
 */

package cleanup

import (
	"context"
	"testing"
	"time"

	"retail-datahub/service/models"
	"retail-datahub/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCleanupService_CleanupExpiredRuns(t *testing.T) {
	testDB := testutil.NewTestDB()
	defer testDB.Close()
	factory := testutil.NewTestDataFactory(testDB.DB)
	now := time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)

	expired := factory.CreateETLRun(func(r *models.ETLRun) { r.StartedAt = now.AddDate(0, 0, -40) })
	stuck := factory.CreateETLRun(func(r *models.ETLRun) {
		r.StartedAt = now.AddDate(0, 0, -40)
		r.Status = models.ETLStatusRunning
		r.FinishedAt = nil
	})
	recent := factory.CreateETLRun(func(r *models.ETLRun) { r.StartedAt = now.AddDate(0, 0, -5) })

	service := NewRunCleanupService(testDB.DB, 30)
	deleted, err := service.CleanupExpiredRuns(context.Background(), now)

	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	var remaining []models.ETLRun
	require.NoError(t, testDB.DB.Find(&remaining).Error)
	ids := make([]string, 0, len(remaining))
	for _, run := range remaining {
		ids = append(ids, run.ID)
	}
	assert.ElementsMatch(t, []string{stuck.ID, recent.ID}, ids)
	assert.NotContains(t, ids, expired.ID)
}

func TestRunCleanupService_Disabled(t *testing.T) {
	testDB := testutil.NewTestDB()
	defer testDB.Close()
	testutil.NewTestDataFactory(testDB.DB).CreateETLRun(func(r *models.ETLRun) { r.StartedAt = time.Now().AddDate(-1, 0, 0) })

	service := NewRunCleanupService(testDB.DB, 0)
	deleted, err := service.CleanupExpiredRuns(context.Background(), time.Now())

	require.NoError(t, err)
	assert.Zero(t, deleted)
	require.NoError(t, service.StartScheduledCleanup(DefaultCleanupCron))
	assert.False(t, service.started)
}

func TestRunCleanupService_Schedule(t *testing.T) {
	testDB := testutil.NewTestDB()
	defer testDB.Close()
	service := NewRunCleanupService(testDB.DB, 30)

	require.NoError(t, service.StartScheduledCleanup(DefaultCleanupCron))
	assert.Error(t, service.StartScheduledCleanup(DefaultCleanupCron), "重复启动应返回错误")
	assert.Len(t, service.cron.Entries(), 1)

	service.StopScheduledCleanup()
	assert.False(t, service.started)

	invalid := NewRunCleanupService(testDB.DB, 30)
	assert.Error(t, invalid.StartScheduledCleanup("every night"))
}
