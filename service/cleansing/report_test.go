/*
 * @module service/cleansing/report_test
 * @description 清洗报告计数与指标上报测试
 * @architecture 测试层
 * @documentReference DESIGN.md
 * @stateFlow 累加报告 -> observe -> 读取计数器
 * @rules 零值不计入报告；指标按 kind 与列累加
 * @dependencies testing, testify, prometheus/testutil
 * @refs report.go
 */

package cleansing

import (
	"testing"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCleansingReport_Counts(t *testing.T) {
	report := newReport(KindUsers, 5)
	report.addDropped(DropAllMissing, 2)
	report.addDropped(DropAllMissing, 0)
	report.addUnparseable(ColJoinDate, 1)
	report.addInvalidated(ColPhoneNumber, 0)

	assert.Equal(t, 2, report.TotalDropped())
	assert.Equal(t, map[string]int{ColJoinDate: 1}, report.UnparseableCells)
	assert.Empty(t, report.InvalidatedCells)
}

func TestCleansingReport_ObserveInvalidatedCells(t *testing.T) {
	counter := cellsInvalidatedTotal.WithLabelValues(string(KindUsers), ColPhoneNumber)
	before := promtestutil.ToFloat64(counter)

	report := newReport(KindUsers, 3)
	report.addInvalidated(ColPhoneNumber, 2)
	report.observe()

	assert.Equal(t, before+2, promtestutil.ToFloat64(counter))
}
