/*
 * @module service/database/table_writer
 * @description 目标库表写入器，按清洗后的批次整表替换目标表
 * @architecture 数据访问层 - GORM 事务 + 动态建表
 * @documentReference DESIGN.md
 * @stateFlow 校验表名 -> 推断列类型 -> 事务内 删表 -> 建表 -> 分批插入
 * @rules 整表替换在单个事务内完成；列顺序与批次一致；单元格值按列类型归一后写入
 * @dependencies gorm.io/gorm, github.com/spf13/cast
 * @refs service/cleansing/batch.go, service/etl/etl_service.go
 */

package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"retail-datahub/service/cleansing"

	"github.com/spf13/cast"
	"gorm.io/gorm"
)

// 目标列类型
const (
	ColumnTypeBigint    = "BIGINT"
	ColumnTypeDouble    = "DOUBLE PRECISION"
	ColumnTypeTimestamp = "TIMESTAMP"
	ColumnTypeBoolean   = "BOOLEAN"
	ColumnTypeText      = "TEXT"
)

// DefaultInsertBatchSize 默认单次插入行数
const DefaultInsertBatchSize = 500

// TableWriter 目标表写入器
type TableWriter struct {
	db        *gorm.DB
	schema    string
	batchSize int
	logger    *slog.Logger
}

// NewTableWriter 创建目标表写入器；schema 为空时使用连接的默认模式
func NewTableWriter(db *gorm.DB, schema string) *TableWriter {
	return &TableWriter{
		db:        db,
		schema:    schema,
		batchSize: DefaultInsertBatchSize,
		logger:    slog.Default(),
	}
}

// EnsureSchema 目标模式不存在时创建
func (w *TableWriter) EnsureSchema(ctx context.Context) error {
	if w.schema == "" || w.schema == "public" {
		return nil
	}
	db := w.db.WithContext(ctx)
	if err := db.Exec(fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", db.Statement.Quote(w.schema))).Error; err != nil {
		return fmt.Errorf("创建模式 %s 失败: %w", w.schema, err)
	}
	return nil
}

// ReplaceTable 用批次内容整表替换目标表，返回写入行数
func (w *TableWriter) ReplaceTable(ctx context.Context, table string, batch *cleansing.RecordBatch) (int64, error) {
	if err := ValidateTableName(table); err != nil {
		return 0, err
	}
	if batch == nil {
		return 0, fmt.Errorf("写入表 %s 的批次为空", table)
	}
	if len(batch.Columns) == 0 {
		return 0, fmt.Errorf("写入表 %s 的批次没有列", table)
	}

	startTime := time.Now()
	columnTypes := InferColumnTypes(batch)
	records := normalizeRows(batch, columnTypes)

	var written int64
	err := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		qualified := w.qualifiedName(tx, table)
		if err := tx.Exec("DROP TABLE IF EXISTS " + qualified).Error; err != nil {
			return fmt.Errorf("删除表失败: %w", err)
		}

		definitions := make([]string, 0, len(batch.Columns))
		for _, col := range batch.Columns {
			definitions = append(definitions, tx.Statement.Quote(col)+" "+columnTypes[col])
		}
		createSQL := fmt.Sprintf("CREATE TABLE %s (%s)", qualified, strings.Join(definitions, ", "))
		if err := tx.Exec(createSQL).Error; err != nil {
			return fmt.Errorf("创建表失败: %w", err)
		}

		if len(records) == 0 {
			return nil
		}
		result := tx.Table(w.tableName(table)).CreateInBatches(records, w.batchSize)
		if result.Error != nil {
			return fmt.Errorf("插入数据失败: %w", result.Error)
		}
		written = result.RowsAffected
		return nil
	})
	if err != nil {
		w.logger.Error("目标表写入失败", "table", table, "rows", batch.Len(), "error", err)
		return 0, fmt.Errorf("替换表 %s 失败: %w", table, err)
	}

	w.logger.Info("目标表写入完成", "table", table, "rows", written, "duration", time.Since(startTime))
	return written, nil
}

// ListTables 列出目标库中的表
func (w *TableWriter) ListTables(ctx context.Context) ([]string, error) {
	tables, err := w.db.WithContext(ctx).Migrator().GetTables()
	if err != nil {
		return nil, fmt.Errorf("获取表列表失败: %w", err)
	}
	return tables, nil
}

func (w *TableWriter) tableName(table string) string {
	if w.schema == "" {
		return table
	}
	return w.schema + "." + table
}

func (w *TableWriter) qualifiedName(tx *gorm.DB, table string) string {
	if w.schema == "" {
		return tx.Statement.Quote(table)
	}
	return tx.Statement.Quote(w.schema) + "." + tx.Statement.Quote(table)
}

// ValidateTableName 验证表名
func ValidateTableName(tableName string) error {
	if len(tableName) == 0 {
		return fmt.Errorf("表名不能为空")
	}

	if len(tableName) > 63 {
		return fmt.Errorf("表名长度不能超过63个字符")
	}

	// 检查是否以字母开头
	if !((tableName[0] >= 'a' && tableName[0] <= 'z') || (tableName[0] >= 'A' && tableName[0] <= 'Z')) {
		return fmt.Errorf("表名必须以字母开头")
	}

	// 检查是否只包含字母、数字和下划线
	for i := 1; i < len(tableName); i++ {
		c := tableName[i]
		if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_') {
			return fmt.Errorf("表名只能包含字母、数字和下划线")
		}
	}

	return nil
}

// InferColumnTypes 根据单元格值推断每列的目标类型；全为缺失值的列按 TEXT 处理
func InferColumnTypes(batch *cleansing.RecordBatch) map[string]string {
	types := make(map[string]string, len(batch.Columns))
	for _, col := range batch.Columns {
		inferred := ""
		for _, row := range batch.Rows {
			valueType := cellType(row.Value(col))
			if valueType == "" {
				continue
			}
			inferred = mergeColumnType(inferred, valueType)
			if inferred == ColumnTypeText {
				break
			}
		}
		if inferred == "" {
			inferred = ColumnTypeText
		}
		types[col] = inferred
	}
	return types
}

func cellType(value interface{}) string {
	switch value.(type) {
	case nil:
		return ""
	case int, int8, int16, int32, int64, uint8, uint16, uint32:
		return ColumnTypeBigint
	case float32, float64:
		return ColumnTypeDouble
	case time.Time:
		return ColumnTypeTimestamp
	case bool:
		return ColumnTypeBoolean
	default:
		return ColumnTypeText
	}
}

func mergeColumnType(current, next string) string {
	switch {
	case current == "" || current == next:
		return next
	case (current == ColumnTypeBigint && next == ColumnTypeDouble) || (current == ColumnTypeDouble && next == ColumnTypeBigint):
		return ColumnTypeDouble
	default:
		return ColumnTypeText
	}
}

// normalizeRows 将行转换为完整列集合的映射，单元格值与列类型一致
func normalizeRows(batch *cleansing.RecordBatch, columnTypes map[string]string) []map[string]interface{} {
	records := make([]map[string]interface{}, 0, len(batch.Rows))
	for _, row := range batch.Rows {
		record := make(map[string]interface{}, len(batch.Columns))
		for _, col := range batch.Columns {
			record[col] = normalizeCell(row.Value(col), columnTypes[col])
		}
		records = append(records, record)
	}
	return records
}

func normalizeCell(value interface{}, columnType string) interface{} {
	if value == nil {
		return nil
	}
	switch columnType {
	case ColumnTypeDouble:
		return cast.ToFloat64(value)
	case ColumnTypeBigint:
		return cast.ToInt64(value)
	case ColumnTypeText:
		if t, ok := value.(time.Time); ok {
			return t.Format(time.RFC3339)
		}
		return cast.ToString(value)
	default:
		return value
	}
}
