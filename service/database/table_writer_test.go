/*
 * @module service/database/table_writer_test
 * @description 目标表写入器测试
 * @architecture 测试层 - 内存 SQLite
 * @documentReference DESIGN.md
 * @stateFlow 构造清洗后批次 -> ReplaceTable -> 读回校验
 * @rules 覆盖类型推断、整表替换、空批次与非法表名
 * @dependencies testing, testify, testutil
 * @refs table_writer.go
 */

package database

import (
	"context"
	"testing"
	"time"

	"retail-datahub/service/cleansing"
	"retail-datahub/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func productBatch() *cleansing.RecordBatch {
	return cleansing.NewRecordBatch(
		[]string{"product_name", "product_price", "weight", "date_added", "removed", "stock"},
		cleansing.Row{"product_name": "Tea", "product_price": 9.99, "weight": 1.2, "date_added": time.Date(2018, 10, 22, 0, 0, 0, 0, time.UTC), "removed": false, "stock": int64(3)},
		cleansing.Row{"product_name": "Coffee", "product_price": 4.5, "weight": nil, "date_added": nil, "removed": true, "stock": 2.5},
	)
}

func TestInferColumnTypes(t *testing.T) {
	types := InferColumnTypes(cleansing.NewRecordBatch(
		[]string{"card_number", "price", "opened", "flag", "name", "empty", "mixed"},
		cleansing.Row{"card_number": int64(4971858637664481), "price": 9.99, "opened": time.Now(), "flag": true, "name": "x", "mixed": int64(1)},
		cleansing.Row{"card_number": nil, "price": nil, "opened": nil, "flag": nil, "name": nil, "mixed": "a"},
	))

	assert.Equal(t, map[string]string{
		"card_number": ColumnTypeBigint,
		"price":       ColumnTypeDouble,
		"opened":      ColumnTypeTimestamp,
		"flag":        ColumnTypeBoolean,
		"name":        ColumnTypeText,
		"empty":       ColumnTypeText,
		"mixed":       ColumnTypeText,
	}, types)
}

func TestInferColumnTypes_IntegerAndFloat(t *testing.T) {
	types := InferColumnTypes(productBatch())
	assert.Equal(t, ColumnTypeDouble, types["stock"])
}

func TestTableWriter_ReplaceTable(t *testing.T) {
	testDB := testutil.NewTestDB()
	defer testDB.Close()
	writer := NewTableWriter(testDB.DB, "")
	ctx := context.Background()

	written, err := writer.ReplaceTable(ctx, "dim_products", productBatch())
	require.NoError(t, err)
	assert.Equal(t, int64(2), written)

	var count int64
	require.NoError(t, testDB.DB.Table("dim_products").Count(&count).Error)
	assert.Equal(t, int64(2), count)

	var rows []map[string]interface{}
	require.NoError(t, testDB.DB.Table("dim_products").Order("product_name").Find(&rows).Error)
	require.Len(t, rows, 2)
	assert.Equal(t, "Coffee", rows[0]["product_name"])
	assert.Nil(t, rows[0]["weight"])
	assert.InDelta(t, 9.99, rows[1]["product_price"], 1e-9)

	// 再次写入替换原有内容
	written, err = writer.ReplaceTable(ctx, "dim_products", cleansing.NewRecordBatch(
		[]string{"product_name"},
		cleansing.Row{"product_name": "Juice"},
	))
	require.NoError(t, err)
	assert.Equal(t, int64(1), written)

	require.NoError(t, testDB.DB.Table("dim_products").Count(&count).Error)
	assert.Equal(t, int64(1), count)
	columns, err := testDB.DB.Migrator().ColumnTypes("dim_products")
	require.NoError(t, err)
	assert.Len(t, columns, 1)

	tables, err := writer.ListTables(ctx)
	require.NoError(t, err)
	assert.Contains(t, tables, "dim_products")
}

func TestTableWriter_EmptyBatch(t *testing.T) {
	testDB := testutil.NewTestDB()
	defer testDB.Close()
	writer := NewTableWriter(testDB.DB, "")

	written, err := writer.ReplaceTable(context.Background(), "dim_date_times",
		cleansing.NewRecordBatch([]string{"month", "year", "date_uuid"}))

	require.NoError(t, err)
	assert.Equal(t, int64(0), written)
	assert.True(t, testDB.DB.Migrator().HasTable("dim_date_times"))
}

func TestTableWriter_Errors(t *testing.T) {
	testDB := testutil.NewTestDB()
	defer testDB.Close()
	writer := NewTableWriter(testDB.DB, "")

	testCases := []struct {
		name  string
		table string
		batch *cleansing.RecordBatch
	}{
		{name: "空表名", table: "", batch: productBatch()},
		{name: "非法字符", table: "dim users;", batch: productBatch()},
		{name: "数字开头", table: "1dim", batch: productBatch()},
		{name: "批次为空", table: "dim_users", batch: nil},
		{name: "批次没有列", table: "dim_users", batch: cleansing.NewRecordBatch(nil)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := writer.ReplaceTable(context.Background(), tc.table, tc.batch)
			assert.Error(t, err)
		})
	}
}
