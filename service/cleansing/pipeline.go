/*
 * @module service/cleansing/pipeline
 * @description 清洗管道，为每种数据集类型编排 过滤 -> 标准化 -> 解析换算 -> 类型转换 -> 校验
 * @architecture 管道模式 - 每个数据集一条直线型阶段序列
 * @documentReference DESIGN.md
 * @stateFlow 结构校验 -> 占位符归一 -> 全空行剔除 -> 数据集阶段 -> 报告上报
 * @rules 不修改调用方批次；数据质量问题只剔除行或置空；结构与转换错误向调用方返回
 * @dependencies log/slog, time
 * @refs row_filter.go, field_normalizer.go, scalar_parsers.go
 */

package cleansing

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// CleanOptions 清洗选项
type CleanOptions struct {
	// ValidatePhone 仅对用户数据生效：校验英国号码格式，不匹配时置空
	ValidatePhone bool `json:"validate_phone"`
}

// Cleaner 数据清洗器
type Cleaner struct {
	logger *slog.Logger
}

// NewCleaner 创建数据清洗器
func NewCleaner(logger *slog.Logger) *Cleaner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cleaner{logger: logger}
}

// CleanUserData 清洗用户数据
func (c *Cleaner) CleanUserData(batch *RecordBatch, opts CleanOptions) (*RecordBatch, error) {
	return c.Clean(KindUsers, batch, opts)
}

// CleanCardData 清洗银行卡数据
func (c *Cleaner) CleanCardData(batch *RecordBatch) (*RecordBatch, error) {
	return c.Clean(KindCards, batch, CleanOptions{})
}

// CleanStoreData 清洗门店数据
func (c *Cleaner) CleanStoreData(batch *RecordBatch) (*RecordBatch, error) {
	return c.Clean(KindStores, batch, CleanOptions{})
}

// CleanProductsData 清洗商品数据（包含重量换算）
func (c *Cleaner) CleanProductsData(batch *RecordBatch) (*RecordBatch, error) {
	return c.Clean(KindProducts, batch, CleanOptions{})
}

// CleanOrdersData 清洗订单数据
func (c *Cleaner) CleanOrdersData(batch *RecordBatch) (*RecordBatch, error) {
	return c.Clean(KindOrders, batch, CleanOptions{})
}

// CleanDatesData 清洗日期数据
func (c *Cleaner) CleanDatesData(batch *RecordBatch) (*RecordBatch, error) {
	return c.Clean(KindDates, batch, CleanOptions{})
}

// Clean 按数据集类型清洗批次
func (c *Cleaner) Clean(kind DatasetKind, batch *RecordBatch, opts CleanOptions) (*RecordBatch, error) {
	cleaned, _, err := c.CleanWithReport(kind, batch, opts)
	return cleaned, err
}

// CleanWithReport 按数据集类型清洗批次并返回清洗报告
func (c *Cleaner) CleanWithReport(kind DatasetKind, batch *RecordBatch, opts CleanOptions) (*RecordBatch, *CleansingReport, error) {
	if err := CheckSchema(kind, batch); err != nil {
		c.logger.Error("清洗输入结构不匹配", "kind", kind, "error", err)
		return nil, nil, err
	}

	startTime := time.Now()
	run := &pipelineRun{
		kind:   kind,
		batch:  batch.Clone(),
		report: newReport(kind, batch.Len()),
	}

	run.batch = ReplacePlaceholders(run.batch, placeholderTokens[kind])
	run.drop(DropAllMissing, DropAllMissingRows)

	switch kind {
	case KindUsers:
		cleanUsers(run, opts)
	case KindCards:
		cleanCards(run)
	case KindStores:
		cleanStores(run)
	case KindProducts:
		cleanProducts(run)
	case KindOrders:
		cleanOrders(run)
	case KindDates:
		cleanDates(run)
	}

	if run.err != nil {
		c.logger.Error("批次清洗失败", "kind", kind, "rows_in", run.report.RowsIn, "error", run.err)
		return nil, nil, run.err
	}

	run.report.RowsOut = run.batch.Len()
	run.report.Duration = time.Since(startTime)
	run.report.observe()

	c.logger.Info("批次清洗完成",
		"kind", kind,
		"rows_in", run.report.RowsIn,
		"rows_out", run.report.RowsOut,
		"dropped", run.report.DroppedRows,
		"unparseable", run.report.UnparseableCells,
		"duration", run.report.Duration)

	return run.batch, run.report, nil
}

func cleanUsers(run *pipelineRun, opts CleanOptions) {
	run.drop(DropBadBirthDate, func(b *RecordBatch) (*RecordBatch, int) {
		return DropUnparseableDates(b, ColDateOfBirth)
	})
	run.parse(ColDateOfBirth, ParseDates)
	run.parse(ColJoinDate, ParseDates)
	run.transform(func(b *RecordBatch) (*RecordBatch, error) {
		return ReplaceValues(b, ColCountryCode, map[string]string{"GGB": "GB"})
	})
	if opts.ValidatePhone {
		run.invalidate(ColPhoneNumber, func(b *RecordBatch) (*RecordBatch, int, error) {
			return ValidatePhones(b, ColPhoneNumber, ColCountryCode, "GB", ukPhonePattern)
		})
	}
}

func cleanCards(run *pipelineRun) {
	run.transform(func(b *RecordBatch) (*RecordBatch, error) {
		return DropColumns(b, ColUnnamedIndex)
	})
	run.transform(func(b *RecordBatch) (*RecordBatch, error) {
		return SplitTail(b, ColCardNumberExpiry, ColCardNumber, ColExpiryDate, 5)
	})
	run.transform(func(b *RecordBatch) (*RecordBatch, error) {
		return StripChars(b, ColCardNumber, "?")
	})
	run.drop(DropBadCardNumber, func(b *RecordBatch) (*RecordBatch, int) {
		return DropNonIntegers(b, ColCardNumber)
	})
	run.transform(func(b *RecordBatch) (*RecordBatch, error) {
		return CastInteger(b, ColCardNumber)
	})
	run.parse(ColDatePaymentConfirmed, ParseDates)
}

func cleanStores(run *pipelineRun) {
	run.drop(DropLegacyLat, func(b *RecordBatch) (*RecordBatch, int) {
		return DropPresent(b, ColLegacyLat)
	})
	run.transform(func(b *RecordBatch) (*RecordBatch, error) {
		return DropColumns(b, ColLegacyLat)
	})
	run.transform(func(b *RecordBatch) (*RecordBatch, error) {
		return MoveColumnAfter(b, ColLatitude, ColAddress)
	})
	run.transform(func(b *RecordBatch) (*RecordBatch, error) {
		return ReplaceValues(b, ColContinent, map[string]string{
			"eeAmerica": "America",
			"eeEurope":  "Europe",
		})
	})
	run.transform(func(b *RecordBatch) (*RecordBatch, error) {
		return StripLetters(b, ColStaffNumbers)
	})
	run.transform(func(b *RecordBatch) (*RecordBatch, error) {
		return CastFloat(b, ColLatitude)
	})
	run.transform(func(b *RecordBatch) (*RecordBatch, error) {
		return CastFloat(b, ColLongitude)
	})
	run.transform(func(b *RecordBatch) (*RecordBatch, error) {
		return CastInteger(b, ColStaffNumbers)
	})
	run.parse(ColOpeningDate, ParseDates)
}

func cleanProducts(run *pipelineRun) {
	// 重量换算必须先于重量过滤
	run.parse(ColWeight, ConvertWeights)
	run.drop(DropBadWeight, func(b *RecordBatch) (*RecordBatch, int) {
		return DropMissing(b, ColWeight)
	})
	run.transform(func(b *RecordBatch) (*RecordBatch, error) {
		return DropColumns(b, ColUnnamedIndex)
	})
	run.transform(func(b *RecordBatch) (*RecordBatch, error) {
		return StripPrefix(b, ColProductPrice, "£")
	})
	run.transform(func(b *RecordBatch) (*RecordBatch, error) {
		return CastFloat(b, ColProductPrice)
	})
	run.parse(ColDateAdded, ParseDates)
}

func cleanOrders(run *pipelineRun) {
	run.transform(func(b *RecordBatch) (*RecordBatch, error) {
		return DropColumns(b, ColLevel0, ColFirstName, ColLastName, ColStrayOne)
	})
}

func cleanDates(run *pipelineRun) {
	run.drop(DropBadDateUUID, func(b *RecordBatch) (*RecordBatch, int) {
		return DropWrongLength(b, ColDateUUID, dateUUIDLength)
	})
}

// pipelineRun 单次管道执行状态，出错后后续阶段全部跳过
type pipelineRun struct {
	kind   DatasetKind
	batch  *RecordBatch
	report *CleansingReport
	err    error
}

func (p *pipelineRun) transform(fn func(*RecordBatch) (*RecordBatch, error)) {
	if p.err != nil {
		return
	}
	next, err := fn(p.batch)
	if err != nil {
		p.fail(err)
		return
	}
	p.batch = next
}

func (p *pipelineRun) drop(reason string, fn func(*RecordBatch) (*RecordBatch, int)) {
	if p.err != nil {
		return
	}
	next, dropped := fn(p.batch)
	p.report.addDropped(reason, dropped)
	p.batch = next
}

func (p *pipelineRun) parse(column string, fn func(*RecordBatch, string) (*RecordBatch, int, error)) {
	if p.err != nil {
		return
	}
	next, unparsed, err := fn(p.batch, column)
	if err != nil {
		p.fail(err)
		return
	}
	p.report.addUnparseable(column, unparsed)
	p.batch = next
}

func (p *pipelineRun) invalidate(column string, fn func(*RecordBatch) (*RecordBatch, int, error)) {
	if p.err != nil {
		return
	}
	next, invalidated, err := fn(p.batch)
	if err != nil {
		p.fail(err)
		return
	}
	p.report.addInvalidated(column, invalidated)
	p.batch = next
}

// fail 记录错误并补全数据集类型
func (p *pipelineRun) fail(err error) {
	var schemaErr *SchemaMismatchError
	if errors.As(err, &schemaErr) && schemaErr.Kind == "" {
		schemaErr.Kind = p.kind
	}
	var castErr *PostFilterCastError
	if errors.As(err, &castErr) && castErr.Kind == "" {
		castErr.Kind = p.kind
	}
	p.err = fmt.Errorf("清洗 %s 数据失败: %w", p.kind, err)
}
