/*
 * @module service/cleansing/field_normalizer
 * @description 字段标准化：值替换、列拆分/移动/删除、字符剥离、单位换算、最终类型转换、电话校验
 * @architecture 声明式列变换 - 每个变换输入批次输出新批次
 * @documentReference DESIGN.md
 * @stateFlow 字符串级变换 -> 解析/换算 -> 最终类型转换
 * @rules 最终类型转换必须在所有字符串变换之后执行；引用不存在的列返回 SchemaMismatchError
 * @dependencies regexp, strings
 * @refs scalar_parsers.go, pipeline.go
 */

package cleansing

import (
	"regexp"
	"strings"
)

// ukPhonePattern 英国电话号码格式
var ukPhonePattern = regexp.MustCompile(`^(?:(?:\(?(?:0(?:0|11)\)?[\s-]?\(?|\+)44\)?[\s-]?(?:\(?0\)?[\s-]?)?)|(?:\(?0))(?:(?:\d{5}\)?[\s-]?\d{4,5})|(?:\d{4}\)?[\s-]?(?:\d{5}|\d{3}[\s-]?\d{3}))|(?:\d{3}\)?[\s-]?\d{3}[\s-]?\d{3,4})|(?:\d{2}\)?[\s-]?\d{4}[\s-]?\d{4}))(?:[\s-]?(?:x|ext\.?|\#)\d{3,4})?$`)

func requireColumns(batch *RecordBatch, columns ...string) error {
	var missing []string
	for _, col := range columns {
		if !batch.HasColumn(col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return &SchemaMismatchError{Missing: missing}
	}
	return nil
}

// mapStrings 对指定列中的字符串值应用 fn，非字符串值保持不变
func mapStrings(batch *RecordBatch, column string, fn func(string) interface{}) (*RecordBatch, error) {
	if err := requireColumns(batch, column); err != nil {
		return nil, err
	}
	return batch.mapRows(batch.Columns, func(row Row) Row {
		str, ok := row.Value(column).(string)
		if !ok {
			return row
		}
		return row.withValue(column, fn(str))
	}), nil
}

// ReplaceValues 精确匹配替换已知的错误取值
func ReplaceValues(batch *RecordBatch, column string, mapping map[string]string) (*RecordBatch, error) {
	return mapStrings(batch, column, func(value string) interface{} {
		if replacement, ok := mapping[value]; ok {
			return replacement
		}
		return value
	})
}

// SplitTail 从末尾按固定宽度拆分复合列：末尾 width 个字符写入 tail，其余写入 head，随后删除源列
func SplitTail(batch *RecordBatch, source, head, tail string, width int) (*RecordBatch, error) {
	if err := requireColumns(batch, source); err != nil {
		return nil, err
	}

	columns := make([]string, 0, len(batch.Columns)+2)
	for _, col := range batch.Columns {
		if col == source {
			if !batch.HasColumn(head) {
				columns = append(columns, head)
			}
			if !batch.HasColumn(tail) {
				columns = append(columns, tail)
			}
			continue
		}
		columns = append(columns, col)
	}

	return batch.mapRows(columns, func(row Row) Row {
		split := row.clone()
		delete(split, source)
		value := row.Value(source)
		if isMissing(value) {
			return split
		}
		str, _ := cellString(value)
		runes := []rune(str)
		cut := len(runes) - width
		if cut < 0 {
			cut = 0
		}
		split[head] = string(runes[:cut])
		split[tail] = string(runes[cut:])
		return split
	}), nil
}

// MoveColumnAfter 将列移动到参考列之后
func MoveColumnAfter(batch *RecordBatch, column, reference string) (*RecordBatch, error) {
	if err := requireColumns(batch, column, reference); err != nil {
		return nil, err
	}
	if column == reference {
		return batch, nil
	}

	columns := make([]string, 0, len(batch.Columns))
	for _, col := range batch.Columns {
		if col == column {
			continue
		}
		columns = append(columns, col)
		if col == reference {
			columns = append(columns, column)
		}
	}
	return NewRecordBatch(columns, batch.Rows...), nil
}

// DropColumns 删除指定列
func DropColumns(batch *RecordBatch, columns ...string) (*RecordBatch, error) {
	if err := requireColumns(batch, columns...); err != nil {
		return nil, err
	}

	drop := make(map[string]struct{}, len(columns))
	for _, col := range columns {
		drop[col] = struct{}{}
	}
	kept := make([]string, 0, len(batch.Columns))
	for _, col := range batch.Columns {
		if _, ok := drop[col]; !ok {
			kept = append(kept, col)
		}
	}

	return batch.mapRows(kept, func(row Row) Row {
		pruned := row.clone()
		for _, col := range columns {
			delete(pruned, col)
		}
		return pruned
	}), nil
}

// StripLetters 去除 ASCII 字母（上游损坏注入到数值列中的字符）
func StripLetters(batch *RecordBatch, column string) (*RecordBatch, error) {
	return mapStrings(batch, column, func(value string) interface{} {
		return strings.Map(func(r rune) rune {
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
				return -1
			}
			return r
		}, value)
	})
}

// StripChars 去除所有出现在 chars 中的字符
func StripChars(batch *RecordBatch, column, chars string) (*RecordBatch, error) {
	return mapStrings(batch, column, func(value string) interface{} {
		return strings.Map(func(r rune) rune {
			if strings.ContainsRune(chars, r) {
				return -1
			}
			return r
		}, value)
	})
}

// StripPrefix 去除前导符号（如货币符号）
func StripPrefix(batch *RecordBatch, column, prefix string) (*RecordBatch, error) {
	return mapStrings(batch, column, func(value string) interface{} {
		return strings.TrimPrefix(strings.TrimSpace(value), prefix)
	})
}

// ConvertWeights 将重量列换算为千克，无法解析的单元格置为缺失值；返回不可解析的单元格数
func ConvertWeights(batch *RecordBatch, column string) (*RecordBatch, int, error) {
	if err := requireColumns(batch, column); err != nil {
		return nil, 0, err
	}
	unparsed := 0
	converted := batch.mapRows(batch.Columns, func(row Row) Row {
		kilograms, err := ParseWeight(row.Value(column))
		if err != nil {
			unparsed++
			return row.withValue(column, nil)
		}
		return row.withValue(column, kilograms)
	})
	return converted, unparsed, nil
}

// ParseDates 将日期列转换为 time.Time，无法解析的单元格置为缺失值；返回不可解析的非空单元格数
func ParseDates(batch *RecordBatch, column string) (*RecordBatch, int, error) {
	if err := requireColumns(batch, column); err != nil {
		return nil, 0, err
	}
	unparsed := 0
	converted := batch.mapRows(batch.Columns, func(row Row) Row {
		value := row.Value(column)
		if isMissing(value) {
			return row
		}
		date, err := ParseDate(value)
		if err != nil {
			unparsed++
			return row.withValue(column, nil)
		}
		return row.withValue(column, date)
	})
	return converted, unparsed, nil
}

// CastFloat 将列转换为 float64，缺失值保持缺失；非空值转换失败返回 PostFilterCastError
func CastFloat(batch *RecordBatch, column string) (*RecordBatch, error) {
	return castColumn(batch, column, func(value interface{}) (interface{}, error) {
		return ToNumeric(value)
	})
}

// CastInteger 将列转换为 int64，缺失值保持缺失；非空值转换失败返回 PostFilterCastError
func CastInteger(batch *RecordBatch, column string) (*RecordBatch, error) {
	return castColumn(batch, column, func(value interface{}) (interface{}, error) {
		return ToInteger(value)
	})
}

func castColumn(batch *RecordBatch, column string, convert func(interface{}) (interface{}, error)) (*RecordBatch, error) {
	if err := requireColumns(batch, column); err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(batch.Rows))
	for i, row := range batch.Rows {
		value := row.Value(column)
		if isMissing(value) {
			rows = append(rows, row)
			continue
		}
		converted, err := convert(value)
		if err != nil {
			return nil, &PostFilterCastError{Column: column, RowIndex: i, Value: value, Err: err}
		}
		rows = append(rows, row.withValue(column, converted))
	}
	return NewRecordBatch(batch.Columns, rows...), nil
}

// ValidatePhones 对指定地区的行校验电话号码，不匹配时置为缺失值（不剔除行）；返回被置空的单元格数
func ValidatePhones(batch *RecordBatch, phoneColumn, localeColumn, locale string, pattern *regexp.Regexp) (*RecordBatch, int, error) {
	if err := requireColumns(batch, phoneColumn, localeColumn); err != nil {
		return nil, 0, err
	}
	invalidated := 0
	validated := batch.mapRows(batch.Columns, func(row Row) Row {
		if code, _ := row.Value(localeColumn).(string); code != locale {
			return row
		}
		phone, ok := row.Value(phoneColumn).(string)
		if !ok || pattern.MatchString(phone) {
			return row
		}
		invalidated++
		return row.withValue(phoneColumn, nil)
	})
	return validated, invalidated, nil
}
