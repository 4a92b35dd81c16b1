/*
 * @module service/extraction/rds_reader
 * @description 源关系库读取器，按表读取遗留数据为记录批次
 * @architecture 连接池模式 - database/sql + lib/pq
 * @documentReference DESIGN.md
 * @stateFlow 读取凭据 -> 建立连接池 -> 列出/读取表 -> 关闭连接池
 * @rules 标识符统一加引号；保留源表列顺序；索引列不进入批次
 * @dependencies database/sql, github.com/lib/pq
 * @refs service/config/app_config.go, service/cleansing/batch.go
 */

package extraction

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"retail-datahub/service/cleansing"
	"retail-datahub/service/config"

	"github.com/lib/pq"
)

// DefaultIndexColumn 源表中由导出工具写入的行索引列
const DefaultIndexColumn = "index"

// RDSReader 源数据库读取器
type RDSReader struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenRDSReader 按凭据建立源数据库连接池
func OpenRDSReader(ctx context.Context, creds *config.SourceCredentials) (*RDSReader, error) {
	db, err := sql.Open("postgres", creds.DSN())
	if err != nil {
		return nil, fmt.Errorf("创建源数据库连接失败: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("源数据库连接测试失败: %w", err)
	}

	slog.Info("源数据库连接成功", "host", creds.Host, "database", creds.Database)
	return NewRDSReader(db), nil
}

// NewRDSReader 使用已有连接池创建读取器
func NewRDSReader(db *sql.DB) *RDSReader {
	return &RDSReader{db: db, logger: slog.Default()}
}

// ListTables 列出源库 public 模式下的全部表
func (r *RDSReader) ListTables(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT table_name FROM information_schema.tables
		WHERE table_schema = 'public' AND table_type = 'BASE TABLE' ORDER BY table_name`)
	if err != nil {
		return nil, fmt.Errorf("查询源库表清单失败: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("扫描表名失败: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("读取表清单失败: %w", err)
	}
	return tables, nil
}

// ReadTable 读取整张表；indexColumn 非空且存在时从批次中移除
func (r *RDSReader) ReadTable(ctx context.Context, table, indexColumn string) (*cleansing.RecordBatch, error) {
	startTime := time.Now()
	query := fmt.Sprintf("SELECT * FROM %s", pq.QuoteIdentifier(table))

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("读取表 %s 失败: %w", table, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("获取表 %s 列信息失败: %w", table, err)
	}

	kept := make([]string, 0, len(columns))
	for _, col := range columns {
		if indexColumn != "" && col == indexColumn {
			continue
		}
		kept = append(kept, col)
	}

	var records []cleansing.Row
	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("扫描表 %s 行数据失败: %w", table, err)
		}

		row := make(cleansing.Row, len(kept))
		for i, col := range columns {
			if indexColumn != "" && col == indexColumn {
				continue
			}
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		records = append(records, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("读取表 %s 数据时发生错误: %w", table, err)
	}

	r.logger.Info("源表读取完成", "table", table, "rows", len(records), "duration", time.Since(startTime))
	return cleansing.NewRecordBatch(kept, records...), nil
}

// Close 关闭连接池
func (r *RDSReader) Close() error {
	return r.db.Close()
}
