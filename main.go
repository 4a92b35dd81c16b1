package main

import (
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"retail-datahub/api"
	_ "retail-datahub/docs"
	"retail-datahub/service"

	daprd "github.com/dapr/go-sdk/service/http"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	versioncollector "github.com/prometheus/client_golang/prometheus/collectors/version"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/version"
	httpSwagger "github.com/swaggo/http-swagger"
)

// @title 零售数据中心 API
// @version 1.0
// @description 零售销售数据 ETL 服务，提供多源数据抽取、清洗、入库与运行记录查询功能
// @BasePath /
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
func main() {
	cfg := service.AppConfig
	prometheus.MustRegister(versioncollector.NewCollector("retail_datahub"))
	slog.Info("启动零售数据中心服务", "version", version.Info(), "build", version.BuildContext())

	mux := chi.NewRouter()

	// 如果有BASE_CONTEXT，则在该路径下挂载所有路由
	if cfg.BaseContext != "" {
		mux.Route(cfg.BaseContext, func(r chi.Router) {
			subMux := r.(*chi.Mux)
			api.InitRoute(subMux)
			r.Handle("/metrics", promhttp.Handler())
			r.Handle("/swagger*", httpSwagger.WrapHandler)
		})
	} else {
		api.InitRoute(mux)
		mux.Handle("/metrics", promhttp.Handler())
		mux.Handle("/swagger*", httpSwagger.WrapHandler)
	}

	s := daprd.NewServiceWithMux(":"+strconv.Itoa(cfg.ListenPort), mux)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		slog.Info("收到退出信号，开始关闭服务")
		service.Shutdown()
		if err := s.GracefulStop(); err != nil {
			slog.Error("关闭HTTP服务失败", "error", err)
		}
	}()

	if err := s.Start(); err != nil && err != http.ErrServerClosed {
		slog.Error("服务启动失败", "error", err)
		os.Exit(1)
	}
}
