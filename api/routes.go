/*
 * @module api/routes
 * @description API路由配置模块，负责初始化和配置所有HTTP路由
 * @architecture RESTful API架构
 * @documentReference DESIGN.md
 * @stateFlow 无状态HTTP请求处理
 * @rules 遵循RESTful API设计规范，统一错误处理和响应格式
 * @dependencies github.com/go-chi/chi/v5, github.com/go-chi/cors, github.com/go-chi/render
 * @refs service/init.go
 */

package api

import (
	"retail-datahub/api/controllers"
	authmw "retail-datahub/api/middleware"
	"retail-datahub/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
)

// InitRoute 初始化所有API路由
func InitRoute(r *chi.Mux) {
	// 基础中间件
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(render.SetContentType(render.ContentTypeJSON))

	// CORS配置
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", authmw.APIKeyHeader},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// API Key 鉴权
	r.Use(authmw.NewAPIKeyAuthMiddleware(service.AppConfig.APIKeyHash).Middleware)

	// 健康检查
	var pinger controllers.Pinger
	if sqlDB, err := service.DB.DB(); err == nil {
		pinger = sqlDB
	}
	healthController := controllers.NewHealthController(pinger)
	r.Get("/health", healthController.Health)
	r.Get("/ready", healthController.Ready)

	// 数据清洗
	r.Route("/cleansing", func(r chi.Router) {
		cleansingController := controllers.NewCleansingController(service.GlobalCleaner)
		r.Post("/{kind}", cleansingController.Clean)
	})

	// ETL 运行
	r.Route("/etl", func(r chi.Router) {
		etlController := controllers.NewETLController(service.GlobalETLService)
		if service.GlobalRateLimiter != nil {
			limit := service.AppConfig.TriggerLimit
			r.With(authmw.RateLimit(service.GlobalRateLimiter, limit.WindowSeconds, limit.PerClient, limit.Global)).
				Post("/runs", etlController.TriggerRun)
		} else {
			r.Post("/runs", etlController.TriggerRun)
		}
		r.Get("/runs", etlController.ListRuns)
		r.Get("/runs/{id}", etlController.GetRun)
	})
}
