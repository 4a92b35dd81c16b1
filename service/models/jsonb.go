/*
 * @module service/models/jsonb
 * @description JSONB 列类型，实现 sql.Scanner 与 driver.Valuer
 * @architecture 数据模型层 - GORM 自定义类型
 * @documentReference DESIGN.md
 * @stateFlow 结构体 <-> JSON 文本 <-> 数据库列
 * @rules 空值写入 NULL，读取 NULL 得到 nil
 * @dependencies database/sql/driver, encoding/json
 * @refs etl_run.go
 */

package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// JSONBStringArray 字符串数组
type JSONBStringArray []string

// ETLJobResults 作业结果数组
type ETLJobResults []ETLJobResult

// scanJSON 从数据库值解析 JSON
func scanJSON(value interface{}, dest interface{}) error {
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("类型断言失败: 不是 []byte 或 string")
	}
	return json.Unmarshal(bytes, dest)
}

// Scan 实现 Scanner 接口
func (j *JSONBStringArray) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	return scanJSON(value, j)
}

// Value 实现 Valuer 接口
func (j JSONBStringArray) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan 实现 Scanner 接口
func (r *ETLJobResults) Scan(value interface{}) error {
	if value == nil {
		*r = nil
		return nil
	}
	return scanJSON(value, r)
}

// Value 实现 Valuer 接口
func (r ETLJobResults) Value() (driver.Value, error) {
	if r == nil {
		return nil, nil
	}
	return json.Marshal(r)
}
