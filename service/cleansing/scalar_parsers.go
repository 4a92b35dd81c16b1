/*
 * @module service/cleansing/scalar_parsers
 * @description 标量解析器：日期、重量、数值的单元格级解析
 * @architecture 无状态函数集合 - 输入原始单元格，输出类型化值或 ErrUnparseable
 * @documentReference DESIGN.md
 * @stateFlow 原始值 -> 规范化字符串 -> 解析 -> 类型化值/不可解析
 * @rules 解析失败只返回 ErrUnparseable，不得 panic；与编程错误区分
 * @dependencies github.com/spf13/cast, strconv, strings, time
 * @refs field_normalizer.go, row_filter.go
 */

package cleansing

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// dateLayouts 常见的混合日期格式，按优先级尝试
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
	"2006/01/02",
	"2006/01/02 15:04:05",
	"2006/1/2",
	"2006 January 2",
	"2006 Jan 2",
	"January 2006 2",
	"Jan 2006 2",
	"January 2 2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
	"01/02/2006",
	"01/02/2006 15:04:05",
	"1/2/2006",
}

// ParseDate 尽力解析文本日期，失败返回 ErrUnparseable
func ParseDate(raw interface{}) (time.Time, error) {
	switch v := raw.(type) {
	case nil:
		return time.Time{}, unparseable("date", raw)
	case time.Time:
		if v.IsZero() {
			return time.Time{}, unparseable("date", raw)
		}
		return v, nil
	case *time.Time:
		if v == nil || v.IsZero() {
			return time.Time{}, unparseable("date", raw)
		}
		return *v, nil
	}

	str, ok := cellString(raw)
	if !ok {
		return time.Time{}, unparseable("date", raw)
	}
	str = strings.Join(strings.Fields(str), " ")
	if str == "" {
		return time.Time{}, unparseable("date", raw)
	}

	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, str, time.UTC); err == nil {
			return t, nil
		}
	}

	// 兜底：cast 内置的日期格式集合
	if t, err := cast.ToTimeInDefaultLocationE(str, time.UTC); err == nil && !t.IsZero() {
		return t, nil
	}

	return time.Time{}, unparseable("date", raw)
}

// 重量单位换算（以克为基准）
const (
	gramsPerKilogram = 1000
	gramsPerOunce    = 28.35
	weightSeparator  = " x "
)

// ParseWeight 将重量字符串换算为千克
//
// 语法：去掉末尾的 " ."；ml 与 g 视为克，kg 乘 1000，oz 乘 28.35，其余单位不可解析；
// 剩余部分按 " x " 拆分为若干因子并相乘，最后除以 1000。
func ParseWeight(raw interface{}) (float64, error) {
	weight, ok := raw.(string)
	if !ok {
		return 0, unparseable("weight", raw)
	}

	weight = strings.TrimSuffix(weight, " .")
	if strings.HasSuffix(weight, "ml") {
		weight = strings.TrimSuffix(weight, "ml") + "g"
	}

	switch {
	case strings.HasSuffix(weight, "kg"):
		weight = strings.TrimSuffix(weight, "kg") + weightSeparator + strconv.Itoa(gramsPerKilogram)
	case strings.HasSuffix(weight, "oz"):
		weight = strings.TrimSuffix(weight, "oz") + weightSeparator + strconv.FormatFloat(gramsPerOunce, 'f', -1, 64)
	case strings.HasSuffix(weight, "g"):
		weight = strings.TrimSuffix(weight, "g")
	default:
		return 0, unparseable("weight", raw)
	}

	grams := 1.0
	for _, factor := range strings.Split(weight, weightSeparator) {
		value, err := strconv.ParseFloat(strings.TrimSpace(factor), 64)
		if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
			return 0, unparseable("weight", raw)
		}
		grams *= value
	}

	return grams / gramsPerKilogram, nil
}

// ToNumeric 严格数值转换，残留非数字字符时不可解析
func ToNumeric(raw interface{}) (float64, error) {
	switch v := raw.(type) {
	case nil, bool:
		return 0, unparseable("numeric", raw)
	case string:
		value, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
			return 0, unparseable("numeric", raw)
		}
		return value, nil
	}

	value, err := cast.ToFloat64E(raw)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, unparseable("numeric", raw)
	}
	return value, nil
}

// ToInteger 严格的十进制整数转换，卡号等超出 float64 精确范围的值使用此函数
func ToInteger(raw interface{}) (int64, error) {
	switch v := raw.(type) {
	case nil, bool:
		return 0, unparseable("integer", raw)
	case string:
		str := strings.TrimSpace(v)
		if value, err := strconv.ParseInt(str, 10, 64); err == nil {
			return value, nil
		}
		value, err := strconv.ParseFloat(str, 64)
		if err != nil {
			return 0, unparseable("integer", raw)
		}
		return integralFloat(value, raw)
	case float64:
		return integralFloat(v, raw)
	case float32:
		return integralFloat(float64(v), raw)
	}

	value, err := cast.ToInt64E(raw)
	if err != nil {
		return 0, unparseable("integer", raw)
	}
	return value, nil
}

func integralFloat(value float64, raw interface{}) (int64, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) || value != math.Trunc(value) ||
		value >= math.MaxInt64 || value < math.MinInt64 {
		return 0, unparseable("integer", raw)
	}
	return int64(value), nil
}

// cellString 将单元格转换为字符串，nil 返回 false
func cellString(raw interface{}) (string, bool) {
	switch v := raw.(type) {
	case nil:
		return "", false
	case string:
		return v, true
	}
	str, err := cast.ToStringE(raw)
	if err != nil {
		return "", false
	}
	return str, true
}
