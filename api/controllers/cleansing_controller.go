/*
 * @module api/controllers/cleansing_controller
 * @description 数据清洗控制器，对请求中的原始批次执行对应数据集的清洗管道
 * @architecture 分层架构 - 控制器层
 * @documentReference DESIGN.md
 * @stateFlow HTTP请求 -> 解析数据集类型与批次 -> 清洗 -> 返回批次与报告
 * @rules 输入缺少必需列返回400；清洗不写入任何表
 * @dependencies service/cleansing, github.com/go-chi/chi/v5, github.com/go-chi/render
 * @refs api/routes.go
 */

package controllers

import (
	"encoding/json"
	"errors"
	"net/http"

	"retail-datahub/service/cleansing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/spf13/cast"
)

// BatchCleaner 批次清洗接口
type BatchCleaner interface {
	CleanWithReport(kind cleansing.DatasetKind, batch *cleansing.RecordBatch, opts cleansing.CleanOptions) (*cleansing.RecordBatch, *cleansing.CleansingReport, error)
}

// CleansingController 数据清洗控制器
type CleansingController struct {
	cleaner BatchCleaner
}

// NewCleansingController 创建数据清洗控制器
func NewCleansingController(cleaner BatchCleaner) *CleansingController {
	return &CleansingController{cleaner: cleaner}
}

// CleansingResult 清洗结果
type CleansingResult struct {
	Batch  *cleansing.RecordBatch     `json:"batch"`
	Report *cleansing.CleansingReport `json:"report"`
}

// Clean 清洗原始批次
// @Summary 清洗原始批次
// @Description 按数据集类型清洗请求体中的原始批次，返回清洗后的批次与清洗报告
// @Description
// @Description **支持的数据集类型:** users, cards, stores, products, orders, dates
// @Tags 数据清洗
// @Accept json
// @Produce json
// @Param kind path string true "数据集类型"
// @Param validate_phone query bool false "是否校验英国手机号(仅 users)"
// @Param batch body cleansing.RecordBatch true "原始批次"
// @Success 200 {object} APIResponse{data=CleansingResult} "清洗成功"
// @Failure 400 {object} APIResponse "请求参数错误或输入缺少必需列"
// @Failure 500 {object} APIResponse "服务器内部错误"
// @Router /cleansing/{kind} [post]
func (c *CleansingController) Clean(w http.ResponseWriter, r *http.Request) {
	kind, err := cleansing.ParseDatasetKind(chi.URLParam(r, "kind"))
	if err != nil {
		respond(w, r, BadRequestResponse("无效的数据集类型", err))
		return
	}

	var batch cleansing.RecordBatch
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		respond(w, r, BadRequestResponse("请求参数解析失败", err))
		return
	}

	opts := cleansing.CleanOptions{ValidatePhone: cast.ToBool(r.URL.Query().Get("validate_phone"))}
	cleaned, report, err := c.cleaner.CleanWithReport(kind, &batch, opts)
	if err != nil {
		var schemaErr *cleansing.SchemaMismatchError
		if errors.As(err, &schemaErr) {
			respond(w, r, BadRequestResponse("输入批次结构不匹配", err))
			return
		}
		respond(w, r, InternalErrorResponse("数据清洗失败", err))
		return
	}

	render.JSON(w, r, SuccessResponse("清洗成功", CleansingResult{Batch: cleaned, Report: report}))
}
