/*
 * @module service/cleansing/batch
 * @description 记录批次模型，按列顺序保存同一数据集类型的行数据
 * @architecture 数据模型层 - 清洗管道的输入输出载体
 * @documentReference DESIGN.md
 * @stateFlow 抽取端创建 -> 清洗管道逐阶段生成新批次 -> 持久化端写入
 * @rules 同一批次内所有行共享列集合；每个阶段返回新批次，不修改调用方数据
 * @dependencies encoding/json
 * @refs pipeline.go, field_normalizer.go
 */

package cleansing

import (
	"bytes"
	"encoding/json"
)

// Row 单行记录，列名到原始值的映射；缺失的键视为缺失值(nil)
type Row map[string]interface{}

// RecordBatch 记录批次
type RecordBatch struct {
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// UnmarshalJSON 解码批次，数值按原文保留精度：整数解码为 int64，其余为 float64
func (b *RecordBatch) UnmarshalJSON(data []byte) error {
	type rawBatch RecordBatch
	var raw rawBatch
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	for _, row := range raw.Rows {
		for column, value := range row {
			row[column] = jsonNumber(value)
		}
	}
	*b = RecordBatch(raw)
	return nil
}

func jsonNumber(value interface{}) interface{} {
	number, ok := value.(json.Number)
	if !ok {
		return value
	}
	if i, err := number.Int64(); err == nil {
		return i
	}
	if f, err := number.Float64(); err == nil {
		return f
	}
	return number.String()
}

// NewRecordBatch 创建记录批次
func NewRecordBatch(columns []string, rows ...Row) *RecordBatch {
	cols := make([]string, len(columns))
	copy(cols, columns)
	if rows == nil {
		rows = []Row{}
	}
	return &RecordBatch{Columns: cols, Rows: rows}
}

// Len 返回行数
func (b *RecordBatch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Rows)
}

// HasColumn 判断列是否存在
func (b *RecordBatch) HasColumn(name string) bool {
	return b.columnIndex(name) >= 0
}

func (b *RecordBatch) columnIndex(name string) int {
	for i, col := range b.Columns {
		if col == name {
			return i
		}
	}
	return -1
}

// Clone 深拷贝批次（行映射逐一复制，单元格值按值共享）
func (b *RecordBatch) Clone() *RecordBatch {
	rows := make([]Row, len(b.Rows))
	for i, row := range b.Rows {
		rows[i] = row.clone()
	}
	return NewRecordBatch(b.Columns, rows...)
}

// Value 读取单元格，缺失键返回 nil
func (r Row) Value(column string) interface{} {
	if r == nil {
		return nil
	}
	return r[column]
}

func (r Row) clone() Row {
	copied := make(Row, len(r))
	for key, value := range r {
		copied[key] = value
	}
	return copied
}

// withValue 返回修改了单个列后的新行
func (r Row) withValue(column string, value interface{}) Row {
	copied := r.clone()
	copied[column] = value
	return copied
}

// mapRows 对每一行应用转换函数，生成新批次
func (b *RecordBatch) mapRows(columns []string, fn func(Row) Row) *RecordBatch {
	rows := make([]Row, 0, len(b.Rows))
	for _, row := range b.Rows {
		rows = append(rows, fn(row))
	}
	return NewRecordBatch(columns, rows...)
}

// filterRows 保留 keep 返回 true 的行，返回新批次和被剔除的行数
func (b *RecordBatch) filterRows(keep func(Row) bool) (*RecordBatch, int) {
	rows := make([]Row, 0, len(b.Rows))
	dropped := 0
	for _, row := range b.Rows {
		if keep(row) {
			rows = append(rows, row)
			continue
		}
		dropped++
	}
	return NewRecordBatch(b.Columns, rows...), dropped
}
