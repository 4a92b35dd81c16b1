/*
 * @module service/cleansing/row_filter_test
 * @description 行过滤器单元测试
 * @architecture 测试层 - 纯函数测试，无外部依赖
 * @documentReference DESIGN.md
 * @stateFlow 构造批次 -> 执行过滤 -> 校验保留行与剔除计数
 * @rules 过滤器不修改输入批次
 * @dependencies testing, testify
 * @refs row_filter.go
 */

package cleansing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplacePlaceholders(t *testing.T) {
	batch := NewRecordBatch([]string{"a", "b"},
		Row{"a": "NULL", "b": "N/A"},
		Row{"a": "value"},
	)

	result := ReplacePlaceholders(batch, []string{"NULL", "N/A"})

	require.Equal(t, 2, result.Len())
	assert.Nil(t, result.Rows[0]["a"])
	assert.Nil(t, result.Rows[0]["b"])
	assert.Equal(t, "value", result.Rows[1]["a"])

	// 缺失的键补全为显式的缺失值
	value, ok := result.Rows[1]["b"]
	assert.True(t, ok)
	assert.Nil(t, value)

	// 输入保持不变
	assert.Equal(t, "NULL", batch.Rows[0]["a"])
}

func TestDropAllMissingRows(t *testing.T) {
	batch := NewRecordBatch([]string{"a", "b"},
		Row{"a": nil, "b": nil},
		Row{"a": "x", "b": nil},
		Row{},
	)

	result, dropped := DropAllMissingRows(batch)

	assert.Equal(t, 2, dropped)
	require.Equal(t, 1, result.Len())
	assert.Equal(t, "x", result.Rows[0]["a"])
}

func TestDropUnparseableDates(t *testing.T) {
	batch := NewRecordBatch([]string{ColDateOfBirth},
		Row{ColDateOfBirth: "1968 October 16"},
		Row{ColDateOfBirth: "GFWL1Y76XY"},
		Row{ColDateOfBirth: nil},
	)

	result, dropped := DropUnparseableDates(batch, ColDateOfBirth)

	assert.Equal(t, 2, dropped)
	require.Equal(t, 1, result.Len())
	assert.Equal(t, "1968 October 16", result.Rows[0][ColDateOfBirth])
}

func TestDropNonIntegers(t *testing.T) {
	batch := NewRecordBatch([]string{ColCardNumber},
		Row{ColCardNumber: "30060773296197"},
		Row{ColCardNumber: "NB71VBAHJE"},
		Row{ColCardNumber: nil},
	)

	result, dropped := DropNonIntegers(batch, ColCardNumber)

	assert.Equal(t, 2, dropped)
	require.Equal(t, 1, result.Len())
}

func TestDropPresentAndMissing(t *testing.T) {
	batch := NewRecordBatch([]string{"lat", "weight"},
		Row{"lat": nil, "weight": 1.0},
		Row{"lat": "13KJZ890JH", "weight": nil},
	)

	present, droppedPresent := DropPresent(batch, "lat")
	assert.Equal(t, 1, droppedPresent)
	require.Equal(t, 1, present.Len())
	assert.Equal(t, 1.0, present.Rows[0]["weight"])

	missing, droppedMissing := DropMissing(batch, "weight")
	assert.Equal(t, 1, droppedMissing)
	require.Equal(t, 1, missing.Len())
	assert.Nil(t, missing.Rows[0]["lat"])
}

func TestDropWrongLength(t *testing.T) {
	testCases := []struct {
		name   string
		value  interface{}
		length int
		keep   bool
	}{
		{name: "36位标识", value: "9476f17e-5d6a-4117-874d-9cdb38ca1fa5", length: 36, keep: true},
		{name: "10位标识", value: "NULLVALUES", length: 36, keep: false},
		{name: "缺失值", value: nil, length: 36, keep: false},
		{name: "缺失值且要求长度为0", value: nil, length: 0, keep: true},
		{name: "多字节字符按字符计数", value: "日期", length: 2, keep: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			batch := NewRecordBatch([]string{ColDateUUID}, Row{ColDateUUID: tc.value})
			result, dropped := DropWrongLength(batch, ColDateUUID, tc.length)
			if tc.keep {
				assert.Equal(t, 1, result.Len())
				assert.Equal(t, 0, dropped)
			} else {
				assert.Equal(t, 0, result.Len())
				assert.Equal(t, 1, dropped)
			}
		})
	}
}
