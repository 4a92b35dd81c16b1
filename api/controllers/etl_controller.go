/*
 * @module api/controllers/etl_controller
 * @description ETL 运行控制器，提供手动触发运行与查询运行记录的接口
 * @architecture 分层架构 - 控制器层
 * @documentReference DESIGN.md
 * @stateFlow HTTP请求 -> 参数验证 -> ETL 服务调用 -> 响应返回
 * @rules 手动运行同步执行并返回运行记录；作业失败体现在运行状态中
 * @dependencies service/etl, github.com/go-chi/chi/v5, github.com/go-chi/render
 * @refs api/routes.go
 */

package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"retail-datahub/service/cleansing"
	"retail-datahub/service/etl"
	"retail-datahub/service/models"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/spf13/cast"
)

// ETLRunner ETL 服务接口
type ETLRunner interface {
	Run(ctx context.Context, trigger string, kinds []cleansing.DatasetKind) (*models.ETLRun, error)
	ListRuns(ctx context.Context, limit int) ([]models.ETLRun, error)
	GetRun(ctx context.Context, id string) (*models.ETLRun, error)
}

// ETLController ETL 运行控制器
type ETLController struct {
	etlService ETLRunner
}

// NewETLController 创建 ETL 运行控制器
func NewETLController(etlService ETLRunner) *ETLController {
	return &ETLController{etlService: etlService}
}

// ETLRunRequest 手动运行请求
type ETLRunRequest struct {
	Kinds []string `json:"kinds,omitempty" example:"users,dates"` // 为空时运行全部已配置作业
}

// TriggerRun 手动触发 ETL 运行
// @Summary 手动触发 ETL 运行
// @Description 同步执行一次 ETL 运行并返回运行记录
// @Description
// @Description **运行状态:**
// @Description running → success/failed；其他实例持有运行锁时为 skipped
// @Tags ETL运行
// @Accept json
// @Produce json
// @Param request body ETLRunRequest false "运行的数据集类型"
// @Success 200 {object} APIResponse{data=models.ETLRun} "运行结束"
// @Failure 400 {object} APIResponse "请求参数错误"
// @Failure 429 {object} APIResponse "触发过于频繁"
// @Failure 500 {object} APIResponse "服务器内部错误"
// @Router /etl/runs [post]
func (c *ETLController) TriggerRun(w http.ResponseWriter, r *http.Request) {
	var req ETLRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respond(w, r, BadRequestResponse("请求参数解析失败", err))
		return
	}

	kinds := make([]cleansing.DatasetKind, 0, len(req.Kinds))
	for _, value := range req.Kinds {
		kind, err := cleansing.ParseDatasetKind(value)
		if err != nil {
			respond(w, r, BadRequestResponse("无效的数据集类型", err))
			return
		}
		kinds = append(kinds, kind)
	}

	run, err := c.etlService.Run(r.Context(), models.ETLTriggerManual, kinds)
	if err != nil {
		if errors.Is(err, etl.ErrJobNotConfigured) {
			respond(w, r, BadRequestResponse("数据集作业未配置", err))
			return
		}
		respond(w, r, InternalErrorResponse("ETL 运行失败", err))
		return
	}

	render.JSON(w, r, SuccessResponse("运行结束", run))
}

// ListRuns 查询最近的运行记录
// @Summary 查询运行记录列表
// @Description 按开始时间倒序返回最近的运行记录
// @Tags ETL运行
// @Produce json
// @Param limit query int false "返回条数，默认20，最大100"
// @Success 200 {object} APIResponse{data=[]models.ETLRun} "查询成功"
// @Failure 500 {object} APIResponse "服务器内部错误"
// @Router /etl/runs [get]
func (c *ETLController) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := cast.ToInt(r.URL.Query().Get("limit"))

	runs, err := c.etlService.ListRuns(r.Context(), limit)
	if err != nil {
		respond(w, r, InternalErrorResponse("查询运行记录失败", err))
		return
	}

	render.JSON(w, r, SuccessResponse("查询成功", runs))
}

// GetRun 查询运行记录详情
// @Summary 查询运行记录详情
// @Description 返回单次运行及其每个作业的结果
// @Tags ETL运行
// @Produce json
// @Param id path string true "运行ID"
// @Success 200 {object} APIResponse{data=models.ETLRun} "查询成功"
// @Failure 404 {object} APIResponse "运行记录不存在"
// @Failure 500 {object} APIResponse "服务器内部错误"
// @Router /etl/runs/{id} [get]
func (c *ETLController) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := c.etlService.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, etl.ErrRunNotFound) {
			respond(w, r, NotFoundResponse("运行记录不存在", nil))
			return
		}
		respond(w, r, InternalErrorResponse("查询运行记录失败", err))
		return
	}

	render.JSON(w, r, SuccessResponse("查询成功", run))
}
