/*
 * @module service/extraction/source
 * @description 抽取源抽象，统一源数据库表、门店接口与对象存储文件
 * @architecture 策略模式 - 每类源实现 Source 接口
 * @documentReference DESIGN.md
 * @stateFlow 作业调度 -> Source.Extract -> 原始记录批次
 * @rules 抽取只负责读取，不做任何清洗
 * @dependencies context
 * @refs service/etl/job.go
 */

package extraction

import (
	"context"
	"fmt"

	"retail-datahub/service/cleansing"
)

// Source 数据抽取源
type Source interface {
	// Extract 读取原始记录批次
	Extract(ctx context.Context) (*cleansing.RecordBatch, error)
	// Describe 源的可读描述，用于日志与运行记录
	Describe() string
}

// TableReader 按表读取
type TableReader interface {
	ReadTable(ctx context.Context, table, indexColumn string) (*cleansing.RecordBatch, error)
}

// TableSource 源数据库表
type TableSource struct {
	Reader      TableReader
	Table       string
	IndexColumn string
}

// Extract 读取整张表
func (s *TableSource) Extract(ctx context.Context) (*cleansing.RecordBatch, error) {
	return s.Reader.ReadTable(ctx, s.Table, s.IndexColumn)
}

// Describe 源描述
func (s *TableSource) Describe() string {
	return "table:" + s.Table
}

// StoreFetcher 门店接口
type StoreFetcher interface {
	NumberOfStores(ctx context.Context) (int, error)
	RetrieveStores(ctx context.Context, count int) (*cleansing.RecordBatch, error)
}

// StoreAPISource 门店接口源
type StoreAPISource struct {
	Client StoreFetcher
}

// Extract 查询门店数量后拉取全部门店
func (s *StoreAPISource) Extract(ctx context.Context) (*cleansing.RecordBatch, error) {
	count, err := s.Client.NumberOfStores(ctx)
	if err != nil {
		return nil, err
	}
	return s.Client.RetrieveStores(ctx, count)
}

// Describe 源描述
func (s *StoreAPISource) Describe() string {
	return "store_api"
}

// ObjectSource 对象存储文件源
type ObjectSource struct {
	Reader   *ObjectReader
	Location ObjectLocation
	Format   ObjectFormat
	Charset  string
}

// NewObjectSource 解析对象地址并创建文件源
func NewObjectSource(reader *ObjectReader, uri string, format ObjectFormat, charset string) (*ObjectSource, error) {
	location, err := ParseObjectURI(uri)
	if err != nil {
		return nil, err
	}
	if format == FormatAuto && location.Format() == FormatAuto {
		return nil, fmt.Errorf("无法从地址推断文件格式: %s", uri)
	}
	return &ObjectSource{Reader: reader, Location: location, Format: format, Charset: charset}, nil
}

// Extract 下载并解码对象
func (s *ObjectSource) Extract(ctx context.Context) (*cleansing.RecordBatch, error) {
	return s.Reader.ReadObject(ctx, s.Location, s.Format, s.Charset)
}

// Describe 源描述
func (s *ObjectSource) Describe() string {
	return s.Location.String()
}
