/*
 * @module service/etl/job_test
 * @description 默认作业组装与作业筛选测试
 * @architecture 测试层
 * @documentReference DESIGN.md
 * @stateFlow 构造配置与客户端 -> DefaultJobs/SelectJobs -> 校验作业列表
 * @rules 作业顺序固定；缺少客户端的作业被跳过
 * @dependencies testing, testify
 * @refs job.go
 */

package etl

import (
	"context"
	"testing"

	"retail-datahub/service/cleansing"
	"retail-datahub/service/config"
	"retail-datahub/service/extraction"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTableReader struct{}

func (stubTableReader) ReadTable(ctx context.Context, table, indexColumn string) (*cleansing.RecordBatch, error) {
	return cleansing.NewRecordBatch(nil), nil
}

type stubStoreFetcher struct{}

func (stubStoreFetcher) NumberOfStores(ctx context.Context) (int, error) {
	return 0, nil
}

func (stubStoreFetcher) RetrieveStores(ctx context.Context, count int) (*cleansing.RecordBatch, error) {
	return cleansing.NewRecordBatch(nil), nil
}

func testAppConfig() *config.AppConfig {
	return &config.AppConfig{
		CardsURI:      "s3://data-handling-public/card_details.csv",
		ProductsURI:   "s3://data-handling-public/products.csv",
		DatesURI:      "https://data-handling-public.s3.eu-west-1.amazonaws.com/date_details.json",
		ValidatePhone: true,
	}
}

func kindsOf(jobs []Job) []cleansing.DatasetKind {
	kinds := make([]cleansing.DatasetKind, 0, len(jobs))
	for _, job := range jobs {
		kinds = append(kinds, job.Kind)
	}
	return kinds
}

func TestDefaultJobs(t *testing.T) {
	objects := extraction.NewObjectReader(nil)

	t.Run("全部源可用", func(t *testing.T) {
		jobs, err := DefaultJobs(testAppConfig(), stubTableReader{}, stubStoreFetcher{}, objects)

		require.NoError(t, err)
		assert.Equal(t, cleansing.AllKinds(), kindsOf(jobs))
		assert.Equal(t, TableDimUsers, jobs[0].Destination)
		assert.True(t, jobs[0].Options.ValidatePhone)
		assert.Equal(t, "table:legacy_users", jobs[0].Source.Describe())
		assert.Equal(t, "s3://data-handling-public/card_details.csv", jobs[1].Source.Describe())
		assert.Equal(t, "store_api", jobs[2].Source.Describe())
		assert.Equal(t, "table:orders_table", jobs[4].Source.Describe())
		assert.Equal(t, "s3://data-handling-public/date_details.json", jobs[5].Source.Describe())
		assert.Equal(t, TableDimDateTimes, jobs[5].Destination)
	})

	t.Run("缺少源数据库与门店接口", func(t *testing.T) {
		jobs, err := DefaultJobs(testAppConfig(), nil, nil, objects)

		require.NoError(t, err)
		assert.Equal(t, []cleansing.DatasetKind{cleansing.KindCards, cleansing.KindProducts, cleansing.KindDates}, kindsOf(jobs))
	})

	t.Run("只有源数据库", func(t *testing.T) {
		jobs, err := DefaultJobs(testAppConfig(), stubTableReader{}, nil, nil)

		require.NoError(t, err)
		assert.Equal(t, []cleansing.DatasetKind{cleansing.KindUsers, cleansing.KindOrders}, kindsOf(jobs))
	})

	t.Run("对象地址无法推断格式", func(t *testing.T) {
		cfg := testAppConfig()
		cfg.ProductsURI = "s3://data-handling-public/products"

		_, err := DefaultJobs(cfg, nil, nil, objects)

		assert.Error(t, err)
	})
}

func TestSelectJobs(t *testing.T) {
	jobs := []Job{
		{Kind: cleansing.KindCards, Destination: TableDimCardDetails},
		{Kind: cleansing.KindProducts, Destination: TableDimProducts},
		{Kind: cleansing.KindDates, Destination: TableDimDateTimes},
	}

	testCases := []struct {
		name     string
		kinds    []cleansing.DatasetKind
		expected []cleansing.DatasetKind
		wantErr  bool
	}{
		{name: "未指定时返回全部", kinds: nil, expected: []cleansing.DatasetKind{cleansing.KindCards, cleansing.KindProducts, cleansing.KindDates}},
		{name: "按请求顺序返回", kinds: []cleansing.DatasetKind{cleansing.KindDates, cleansing.KindCards}, expected: []cleansing.DatasetKind{cleansing.KindDates, cleansing.KindCards}},
		{name: "重复类型去重", kinds: []cleansing.DatasetKind{cleansing.KindDates, cleansing.KindDates}, expected: []cleansing.DatasetKind{cleansing.KindDates}},
		{name: "未配置的类型", kinds: []cleansing.DatasetKind{cleansing.KindUsers}, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			selected, err := SelectJobs(jobs, tc.kinds)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrJobNotConfigured)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, kindsOf(selected))
		})
	}
}
