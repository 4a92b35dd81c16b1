/*
 * @module service/extraction/decoder
 * @description 文件解码：CSV（带表头、可选字符集）与按列组织的 JSON 转为记录批次
 * @architecture 无状态解码函数
 * @documentReference DESIGN.md
 * @stateFlow 字节流 -> 字符集转换 -> 解析 -> 记录批次
 * @rules 空单元格视为缺失值；空表头按 "Unnamed: <位置>" 命名；JSON 行按索引数值顺序排列
 * @dependencies encoding/csv, encoding/json, golang.org/x/text
 * @refs service/extraction/object_store.go
 */

package extraction

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"retail-datahub/service/cleansing"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DecodeCSV 解码带表头的 CSV；charset 为空时按 UTF-8 处理并去除 BOM
func DecodeCSV(r io.Reader, charset string) (*cleansing.RecordBatch, error) {
	reader, err := charsetReader(r, charset)
	if err != nil {
		return nil, err
	}

	csvReader := csv.NewReader(reader)
	header, err := csvReader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("CSV 内容为空")
	}
	if err != nil {
		return nil, fmt.Errorf("读取 CSV 表头失败: %w", err)
	}

	columns := make([]string, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		columns[i] = name
	}

	var rows []cleansing.Row
	for {
		record, err := csvReader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("读取 CSV 第 %d 行失败: %w", len(rows)+2, err)
		}
		row := make(cleansing.Row, len(columns))
		for i, col := range columns {
			if record[i] == "" {
				row[col] = nil
				continue
			}
			row[col] = record[i]
		}
		rows = append(rows, row)
	}

	return cleansing.NewRecordBatch(columns, rows...), nil
}

func charsetReader(r io.Reader, charset string) (io.Reader, error) {
	charset = strings.ToLower(strings.TrimSpace(charset))
	if charset == "" || charset == "utf-8" || charset == "utf8" {
		return transform.NewReader(r, unicode.BOMOverride(transform.Nop)), nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("不支持的字符集 %s: %w", charset, err)
	}
	return transform.NewReader(r, enc.NewDecoder()), nil
}

// DecodeColumnJSON 解码按列组织的 JSON（{"列": {"0": 值, ...}}），也接受记录数组
func DecodeColumnJSON(r io.Reader) (*cleansing.RecordBatch, error) {
	buffered := bufio.NewReader(r)
	first, err := firstNonSpace(buffered)
	if err != nil {
		return nil, fmt.Errorf("读取 JSON 失败: %w", err)
	}

	dec := json.NewDecoder(buffered)
	dec.UseNumber()

	if first == '[' {
		return decodeRecords(dec)
	}
	return decodeColumns(dec)
}

func firstNonSpace(r *bufio.Reader) (byte, error) {
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		if b == ' ' || b == '\n' || b == '\r' || b == '\t' {
			continue
		}
		return b, r.UnreadByte()
	}
}

func decodeColumns(dec *json.Decoder) (*cleansing.RecordBatch, error) {
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}

	var columns []string
	cells := make(map[string]map[string]interface{})
	indexSet := make(map[string]struct{})
	for dec.More() {
		keyToken, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("读取列名失败: %w", err)
		}
		column, _ := keyToken.(string)

		var values map[string]interface{}
		if err := dec.Decode(&values); err != nil {
			return nil, fmt.Errorf("解析列 %s 失败: %w", column, err)
		}
		if _, exists := cells[column]; !exists {
			columns = append(columns, column)
		}
		cells[column] = values
		for index := range values {
			indexSet[index] = struct{}{}
		}
	}

	indexes := make([]string, 0, len(indexSet))
	for index := range indexSet {
		indexes = append(indexes, index)
	}
	sortIndexes(indexes)

	rows := make([]cleansing.Row, 0, len(indexes))
	for _, index := range indexes {
		row := make(cleansing.Row, len(columns))
		for _, col := range columns {
			row[col] = jsonScalar(cells[col][index])
		}
		rows = append(rows, row)
	}
	return cleansing.NewRecordBatch(columns, rows...), nil
}

func decodeRecords(dec *json.Decoder) (*cleansing.RecordBatch, error) {
	var raw []json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("解析记录数组失败: %w", err)
	}

	var columns []string
	seen := make(map[string]struct{})
	rows := make([]cleansing.Row, 0, len(raw))
	for i, item := range raw {
		recordColumns, row, err := decodeOrderedObject(item)
		if err != nil {
			return nil, fmt.Errorf("解析第 %d 条记录失败: %w", i, err)
		}
		for _, col := range recordColumns {
			if _, ok := seen[col]; !ok {
				seen[col] = struct{}{}
				columns = append(columns, col)
			}
		}
		rows = append(rows, row)
	}
	return cleansing.NewRecordBatch(columns, rows...), nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	token, err := dec.Token()
	if err != nil {
		return fmt.Errorf("读取 JSON 失败: %w", err)
	}
	if delim, ok := token.(json.Delim); !ok || delim != want {
		return fmt.Errorf("期望 %q，实际为 %v", want, token)
	}
	return nil
}

// sortIndexes 数值索引按数值排序，非数值索引排在其后按字典序
func sortIndexes(indexes []string) {
	sort.Slice(indexes, func(i, j int) bool {
		a, errA := strconv.Atoi(indexes[i])
		b, errB := strconv.Atoi(indexes[j])
		switch {
		case errA == nil && errB == nil:
			return a < b
		case errA == nil:
			return true
		case errB == nil:
			return false
		default:
			return indexes[i] < indexes[j]
		}
	})
}
