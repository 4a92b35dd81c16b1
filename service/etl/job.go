/*
 * @module service/etl/job
 * @description ETL 作业定义，一个作业对应一种数据集：源 -> 清洗 -> 目标表
 * @architecture 配置驱动 - 默认作业由应用配置与已创建的抽取客户端组装
 * @documentReference DESIGN.md
 * @stateFlow 应用配置 + 抽取客户端 -> 默认作业列表 -> 按类型筛选
 * @rules 每种数据集至多一个作业；缺少源客户端的作业不加入列表
 * @dependencies retail-datahub/service/extraction, retail-datahub/service/cleansing
 * @refs etl_service.go, service/init.go
 */

package etl

import (
	"fmt"
	"log/slog"

	"retail-datahub/service/cleansing"
	"retail-datahub/service/config"
	"retail-datahub/service/extraction"
)

// 源表
const (
	SourceTableUsers  = "legacy_users"
	SourceTableOrders = "orders_table"
)

// 目标表
const (
	TableDimUsers        = "dim_users"
	TableDimCardDetails  = "dim_card_details"
	TableDimStoreDetails = "dim_store_details"
	TableDimProducts     = "dim_products"
	TableOrders          = "orders_table"
	TableDimDateTimes    = "dim_date_times"
)

// Job ETL 作业
type Job struct {
	Kind        cleansing.DatasetKind
	Source      extraction.Source
	Destination string
	Options     cleansing.CleanOptions
}

// DefaultJobs 按配置组装默认作业；tables 或 stores 为 nil 时跳过依赖它们的作业
func DefaultJobs(cfg *config.AppConfig, tables extraction.TableReader, stores extraction.StoreFetcher, objects *extraction.ObjectReader) ([]Job, error) {
	var jobs []Job

	if tables != nil {
		jobs = append(jobs, Job{
			Kind:        cleansing.KindUsers,
			Source:      &extraction.TableSource{Reader: tables, Table: SourceTableUsers, IndexColumn: extraction.DefaultIndexColumn},
			Destination: TableDimUsers,
			Options:     cleansing.CleanOptions{ValidatePhone: cfg.ValidatePhone},
		})
	} else {
		slog.Warn("未配置源数据库，跳过用户与订单作业")
	}

	if objects != nil {
		cards, err := extraction.NewObjectSource(objects, cfg.CardsURI, extraction.FormatAuto, "")
		if err != nil {
			return nil, fmt.Errorf("银行卡数据源配置错误: %w", err)
		}
		jobs = append(jobs, Job{Kind: cleansing.KindCards, Source: cards, Destination: TableDimCardDetails})
	}

	if stores != nil {
		jobs = append(jobs, Job{
			Kind:        cleansing.KindStores,
			Source:      &extraction.StoreAPISource{Client: stores},
			Destination: TableDimStoreDetails,
		})
	} else {
		slog.Warn("未配置门店接口，跳过门店作业")
	}

	if objects != nil {
		products, err := extraction.NewObjectSource(objects, cfg.ProductsURI, extraction.FormatAuto, "")
		if err != nil {
			return nil, fmt.Errorf("商品数据源配置错误: %w", err)
		}
		jobs = append(jobs, Job{Kind: cleansing.KindProducts, Source: products, Destination: TableDimProducts})
	}

	if tables != nil {
		jobs = append(jobs, Job{
			Kind:        cleansing.KindOrders,
			Source:      &extraction.TableSource{Reader: tables, Table: SourceTableOrders, IndexColumn: extraction.DefaultIndexColumn},
			Destination: TableOrders,
		})
	}

	if objects != nil {
		dates, err := extraction.NewObjectSource(objects, cfg.DatesURI, extraction.FormatAuto, "")
		if err != nil {
			return nil, fmt.Errorf("日期数据源配置错误: %w", err)
		}
		jobs = append(jobs, Job{Kind: cleansing.KindDates, Source: dates, Destination: TableDimDateTimes})
	}

	return jobs, nil
}

// SelectJobs 按数据集类型筛选作业，kinds 为空时返回全部作业
func SelectJobs(jobs []Job, kinds []cleansing.DatasetKind) ([]Job, error) {
	if len(kinds) == 0 {
		return jobs, nil
	}

	byKind := make(map[cleansing.DatasetKind]Job, len(jobs))
	for _, job := range jobs {
		byKind[job.Kind] = job
	}

	selected := make([]Job, 0, len(kinds))
	seen := make(map[cleansing.DatasetKind]struct{}, len(kinds))
	for _, kind := range kinds {
		if _, dup := seen[kind]; dup {
			continue
		}
		seen[kind] = struct{}{}
		job, ok := byKind[kind]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrJobNotConfigured, kind)
		}
		selected = append(selected, job)
	}
	return selected, nil
}
