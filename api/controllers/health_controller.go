/*
 * @module api/controllers/health_controller
 * @description 健康检查控制器，提供服务健康状态检查
 * @architecture MVC架构 - 控制器层
 * @documentReference DESIGN.md
 * @stateFlow HTTP请求处理流程
 * @rules 健康检查不访问外部依赖；就绪检查校验目标数据库连接
 * @dependencies github.com/go-chi/render, github.com/prometheus/common/version
 * @refs api/routes.go
 */

package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/render"
	"github.com/prometheus/common/version"
)

const serviceName = "retail-datahub"

// Pinger 依赖连通性检查
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthController 健康检查控制器
type HealthController struct {
	db Pinger
}

// NewHealthController 创建健康检查控制器实例，db 为 nil 时就绪检查总是成功
func NewHealthController(db Pinger) *HealthController {
	return &HealthController{db: db}
}

// HealthResponse 健康检查响应结构
type HealthResponse struct {
	Status    string    `json:"status" example:"ok"`
	Timestamp time.Time `json:"timestamp" example:"2024-01-01T00:00:00Z"`
	Version   string    `json:"version" example:"1.0.0"`
	Revision  string    `json:"revision,omitempty" example:"a1b2c3d"`
	Service   string    `json:"service" example:"retail-datahub"`
	Error     string    `json:"error,omitempty"`
}

// Health 健康检查
// @Summary 健康检查
// @Description 检查服务健康状态
// @Tags 系统
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (c *HealthController) Health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, newHealthResponse("ok"))
}

// Ready 就绪检查
// @Summary 就绪检查
// @Description 检查服务是否就绪，目标数据库不可达时返回503
// @Tags 系统
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /ready [get]
func (c *HealthController) Ready(w http.ResponseWriter, r *http.Request) {
	if c.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := c.db.PingContext(ctx); err != nil {
			response := newHealthResponse("unavailable")
			response.Error = err.Error()
			render.Status(r, http.StatusServiceUnavailable)
			render.JSON(w, r, response)
			return
		}
	}

	render.JSON(w, r, newHealthResponse("ready"))
}

func newHealthResponse(status string) HealthResponse {
	return HealthResponse{
		Status:    status,
		Timestamp: time.Now(),
		Version:   version.Version,
		Revision:  version.Revision,
		Service:   serviceName,
	}
}
