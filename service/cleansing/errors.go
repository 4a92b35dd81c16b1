/*
 * @module service/cleansing/errors
 * @description 清洗管道错误分类：不可解析值、结构不匹配、过滤后类型转换失败
 * @architecture 错误模型 - 区分数据质量问题与契约违规
 * @documentReference DESIGN.md
 * @stateFlow 单元格解析失败 -> 缺失值；结构/转换错误 -> 向调用方传播
 * @rules 数据质量问题不返回错误；结构契约违规必须返回错误
 * @dependencies errors, fmt, strings
 * @refs scalar_parsers.go, pipeline.go
 */

package cleansing

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnparseable 单元格无法解析，调用方将其视为缺失值
var ErrUnparseable = errors.New("无法解析的值")

func unparseable(kind string, raw interface{}) error {
	return fmt.Errorf("%w: %s %v", ErrUnparseable, kind, raw)
}

// SchemaMismatchError 输入批次缺少数据集类型要求的列
type SchemaMismatchError struct {
	Kind    DatasetKind
	Missing []string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("数据集 %s 缺少列: %s", e.Kind, strings.Join(e.Missing, ", "))
}

// PostFilterCastError 过滤完成后的类型转换仍然失败，说明过滤顺序有缺陷
type PostFilterCastError struct {
	Kind     DatasetKind
	Column   string
	RowIndex int
	Value    interface{}
	Err      error
}

func (e *PostFilterCastError) Error() string {
	return fmt.Sprintf("数据集 %s 第 %d 行列 %s 类型转换失败(值 %v): %v", e.Kind, e.RowIndex, e.Column, e.Value, e.Err)
}

func (e *PostFilterCastError) Unwrap() error {
	return e.Err
}
