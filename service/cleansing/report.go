/*
 * @module service/cleansing/report
 * @description 清洗报告与 Prometheus 指标，记录每个批次的剔除行数和不可解析单元格数
 * @architecture 可观测性 - 批次级统计，不逐行上报
 * @documentReference DESIGN.md
 * @stateFlow 管道各阶段累加计数 -> 批次结束写入指标与日志
 * @rules 指标只在批次结束时上报一次
 * @dependencies github.com/prometheus/client_golang
 * @refs pipeline.go
 */

package cleansing

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rowsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "retail_datahub",
		Subsystem: "cleansing",
		Name:      "rows_processed_total",
		Help:      "进入清洗管道的行数",
	}, []string{"kind"})

	rowsDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "retail_datahub",
		Subsystem: "cleansing",
		Name:      "rows_dropped_total",
		Help:      "被识别为损坏或占位而剔除的行数",
	}, []string{"kind", "reason"})

	cellsUnparseableTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "retail_datahub",
		Subsystem: "cleansing",
		Name:      "cells_unparseable_total",
		Help:      "解析失败并置为缺失值的单元格数",
	}, []string{"kind", "column"})

	cellsInvalidatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "retail_datahub",
		Subsystem: "cleansing",
		Name:      "cells_invalidated_total",
		Help:      "校验未通过并置为缺失值的单元格数",
	}, []string{"kind", "column"})

	batchDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "retail_datahub",
		Subsystem: "cleansing",
		Name:      "batch_duration_seconds",
		Help:      "单个批次的清洗耗时",
		Buckets:   prometheus.DefBuckets,
	}, []string{"kind"})
)

// CleansingReport 单个批次的清洗报告
type CleansingReport struct {
	Kind             DatasetKind    `json:"kind"`
	RowsIn           int            `json:"rows_in"`
	RowsOut          int            `json:"rows_out"`
	DroppedRows      map[string]int `json:"dropped_rows"`
	UnparseableCells map[string]int `json:"unparseable_cells"`
	InvalidatedCells map[string]int `json:"invalidated_cells,omitempty"`
	Duration         time.Duration  `json:"duration"`
}

func newReport(kind DatasetKind, rowsIn int) *CleansingReport {
	return &CleansingReport{
		Kind:             kind,
		RowsIn:           rowsIn,
		DroppedRows:      make(map[string]int),
		UnparseableCells: make(map[string]int),
		InvalidatedCells: make(map[string]int),
	}
}

// TotalDropped 剔除行总数
func (r *CleansingReport) TotalDropped() int {
	total := 0
	for _, n := range r.DroppedRows {
		total += n
	}
	return total
}

func (r *CleansingReport) addDropped(reason string, n int) {
	if n > 0 {
		r.DroppedRows[reason] += n
	}
}

func (r *CleansingReport) addUnparseable(column string, n int) {
	if n > 0 {
		r.UnparseableCells[column] += n
	}
}

func (r *CleansingReport) addInvalidated(column string, n int) {
	if n > 0 {
		r.InvalidatedCells[column] += n
	}
}

// observe 将报告写入 Prometheus 指标
func (r *CleansingReport) observe() {
	kind := string(r.Kind)
	rowsProcessedTotal.WithLabelValues(kind).Add(float64(r.RowsIn))
	for reason, n := range r.DroppedRows {
		rowsDroppedTotal.WithLabelValues(kind, reason).Add(float64(n))
	}
	for column, n := range r.UnparseableCells {
		cellsUnparseableTotal.WithLabelValues(kind, column).Add(float64(n))
	}
	for column, n := range r.InvalidatedCells {
		cellsInvalidatedTotal.WithLabelValues(kind, column).Add(float64(n))
	}
	batchDurationSeconds.WithLabelValues(kind).Observe(r.Duration.Seconds())
}
