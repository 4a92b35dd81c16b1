/*
 * @module service/extraction/store_api
 * @description 门店接口客户端，查询门店数量并逐个拉取门店详情
 * @architecture HTTP客户端 - API Key 鉴权，受限并发拉取
 * @documentReference DESIGN.md
 * @stateFlow 查询门店数量 -> 并发拉取详情 -> 按编号顺序组装批次
 * @rules 非200响应视为错误；列顺序以首个返回体的字段顺序为准；index 字段不进入批次
 * @dependencies net/http, encoding/json, golang.org/x/sync/errgroup
 * @refs service/extraction/source.go
 */

package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"retail-datahub/service/cleansing"

	"golang.org/x/sync/errgroup"
)

const (
	storeAPIKeyHeader    = "x-api-key"
	storeIndexField      = "index"
	defaultStoreFetchers = 8
)

// StoreAPIClient 门店接口客户端
type StoreAPIClient struct {
	baseURL     string
	apiKey      string
	httpClient  *http.Client
	concurrency int
	logger      *slog.Logger
}

// NewStoreAPIClient 创建门店接口客户端
func NewStoreAPIClient(baseURL, apiKey string, timeout time.Duration) *StoreAPIClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &StoreAPIClient{
		baseURL:     baseURL,
		apiKey:      apiKey,
		httpClient:  &http.Client{Timeout: timeout},
		concurrency: defaultStoreFetchers,
		logger:      slog.Default(),
	}
}

// NumberOfStores 查询门店数量
func (c *StoreAPIClient) NumberOfStores(ctx context.Context) (int, error) {
	body, err := c.get(ctx, c.baseURL+"/number_stores")
	if err != nil {
		return 0, fmt.Errorf("查询门店数量失败: %w", err)
	}

	var payload struct {
		NumberStores int `json:"number_stores"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, fmt.Errorf("解析门店数量失败: %w", err)
	}
	return payload.NumberStores, nil
}

// RetrieveStores 拉取编号 [0, count) 的全部门店详情
func (c *StoreAPIClient) RetrieveStores(ctx context.Context, count int) (*cleansing.RecordBatch, error) {
	if count < 0 {
		return nil, fmt.Errorf("门店数量不能为负数: %d", count)
	}

	startTime := time.Now()
	columnsByStore := make([][]string, count)
	rows := make([]cleansing.Row, count)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i := 0; i < count; i++ {
		g.Go(func() error {
			body, err := c.get(gctx, c.baseURL+"/store_details/"+strconv.Itoa(i))
			if err != nil {
				return fmt.Errorf("拉取门店 %d 失败: %w", i, err)
			}
			columns, row, err := decodeOrderedObject(body)
			if err != nil {
				return fmt.Errorf("解析门店 %d 失败: %w", i, err)
			}
			columnsByStore[i] = columns
			rows[i] = row
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// 列顺序：首个返回体优先，其余返回体中新出现的字段依次追加
	var columns []string
	seen := map[string]struct{}{storeIndexField: {}}
	for _, storeColumns := range columnsByStore {
		for _, col := range storeColumns {
			if _, ok := seen[col]; ok {
				continue
			}
			seen[col] = struct{}{}
			columns = append(columns, col)
		}
	}
	for _, row := range rows {
		delete(row, storeIndexField)
	}

	c.logger.Info("门店详情拉取完成", "stores", count, "duration", time.Since(startTime))
	return cleansing.NewRecordBatch(columns, rows...), nil
}

func (c *StoreAPIClient) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set(storeAPIKeyHeader, c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应失败: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP请求失败，状态码: %d, 响应: %s", resp.StatusCode, truncateBody(body))
	}
	return body, nil
}

// decodeOrderedObject 解析单个 JSON 对象，保留字段出现顺序
func decodeOrderedObject(data []byte) ([]string, cleansing.Row, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	token, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if delim, ok := token.(json.Delim); !ok || delim != '{' {
		return nil, nil, fmt.Errorf("期望 JSON 对象")
	}

	var columns []string
	row := make(cleansing.Row)
	for dec.More() {
		keyToken, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := keyToken.(string)
		if !ok {
			return nil, nil, fmt.Errorf("无效的字段名: %v", keyToken)
		}
		var value interface{}
		if err := dec.Decode(&value); err != nil {
			return nil, nil, err
		}
		if _, exists := row[key]; !exists {
			columns = append(columns, key)
		}
		row[key] = jsonScalar(value)
	}
	return columns, row, nil
}

// jsonScalar 将 json.Number 还原为整数或浮点数
func jsonScalar(value interface{}) interface{} {
	number, ok := value.(json.Number)
	if !ok {
		return value
	}
	if i, err := number.Int64(); err == nil {
		return i
	}
	if f, err := number.Float64(); err == nil {
		return f
	}
	return number.String()
}

func truncateBody(body []byte) string {
	const limit = 200
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
