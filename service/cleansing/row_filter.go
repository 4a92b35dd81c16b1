/*
 * @module service/cleansing/row_filter
 * @description 行有效性过滤器，按数据集特征识别并剔除损坏/占位行
 * @architecture 过滤器链 - 每个检查独立足以剔除一行，检查顺序固定
 * @documentReference DESIGN.md
 * @stateFlow 占位符归一 -> 全空行剔除 -> 数据集特征过滤
 * @rules 剔除即排除出输出批次，不做部分恢复；每次剔除按原因计数
 * @dependencies unicode/utf8
 * @refs pipeline.go, scalar_parsers.go
 */

package cleansing

import "unicode/utf8"

// 剔除原因
const (
	DropAllMissing    = "all_missing"
	DropBadBirthDate  = "unparseable_date_of_birth"
	DropBadCardNumber = "unparseable_card_number"
	DropLegacyLat     = "legacy_lat_present"
	DropBadWeight     = "unparseable_weight"
	DropBadDateUUID   = "invalid_date_uuid_length"
)

// dateUUIDLength 合法 date_uuid 的固定长度
const dateUUIDLength = 36

// isMissing 判断单元格是否为缺失值
func isMissing(value interface{}) bool {
	return value == nil
}

// ReplacePlaceholders 将占位符文本统一替换为缺失值
func ReplacePlaceholders(batch *RecordBatch, tokens []string) *RecordBatch {
	set := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		set[token] = struct{}{}
	}

	return batch.mapRows(batch.Columns, func(row Row) Row {
		cleaned := make(Row, len(batch.Columns))
		for _, col := range batch.Columns {
			value := row.Value(col)
			if str, ok := value.(string); ok {
				if _, placeholder := set[str]; placeholder {
					value = nil
				}
			}
			cleaned[col] = value
		}
		return cleaned
	})
}

// DropAllMissingRows 剔除所有列均为缺失值的行
func DropAllMissingRows(batch *RecordBatch) (*RecordBatch, int) {
	return batch.filterRows(func(row Row) bool {
		for _, col := range batch.Columns {
			if !isMissing(row.Value(col)) {
				return true
			}
		}
		return false
	})
}

// DropUnparseableDates 剔除指定日期列无法解析的行
func DropUnparseableDates(batch *RecordBatch, column string) (*RecordBatch, int) {
	return batch.filterRows(func(row Row) bool {
		_, err := ParseDate(row.Value(column))
		return err == nil
	})
}

// DropNonIntegers 剔除指定列无法转换为整数的行
func DropNonIntegers(batch *RecordBatch, column string) (*RecordBatch, int) {
	return batch.filterRows(func(row Row) bool {
		_, err := ToInteger(row.Value(column))
		return err == nil
	})
}

// DropPresent 剔除指定列存在值的行（遗留列有值意味着整行损坏）
func DropPresent(batch *RecordBatch, column string) (*RecordBatch, int) {
	return batch.filterRows(func(row Row) bool {
		return isMissing(row.Value(column))
	})
}

// DropMissing 剔除指定列为缺失值的行
func DropMissing(batch *RecordBatch, column string) (*RecordBatch, int) {
	return batch.filterRows(func(row Row) bool {
		return !isMissing(row.Value(column))
	})
}

// DropWrongLength 剔除指定列字符长度不等于 length 的行，缺失值长度按 0 计算
func DropWrongLength(batch *RecordBatch, column string, length int) (*RecordBatch, int) {
	return batch.filterRows(func(row Row) bool {
		str, ok := cellString(row.Value(column))
		if !ok {
			return length == 0
		}
		return utf8.RuneCountInString(str) == length
	})
}
