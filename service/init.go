/*
 * @module service/init
 * @description 服务初始化模块，负责配置加载、数据库连接与 ETL 组件装配
 * @architecture 分层架构 - 服务层
 * @documentReference DESIGN.md
 * @stateFlow 应用启动时执行初始化流程：配置 -> 目标库 -> 迁移 -> 抽取客户端 -> 报告发布器 -> ETL 服务 -> 调度器
 * @rules 目标库不可用时终止启动；可选的源与发布器不可用时记录警告并跳过
 * @dependencies gorm.io/gorm, gorm.io/driver/postgres
 * @refs service/etl, service/scheduler
 */

package service

import (
	"context"
	"log/slog"
	"os"
	"slices"
	"time"

	"retail-datahub/client/connectors"
	"retail-datahub/logger"
	"retail-datahub/service/cleansing"
	"retail-datahub/service/cleanup"
	"retail-datahub/service/config"
	"retail-datahub/service/database"
	"retail-datahub/service/distributed_lock"
	"retail-datahub/service/etl"
	"retail-datahub/service/extraction"
	"retail-datahub/service/rate_limiter"
	"retail-datahub/service/scheduler"

	"github.com/go-redis/redis/v8"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var (
	AppConfig              *config.AppConfig
	DB                     *gorm.DB
	GlobalCleaner          *cleansing.Cleaner
	GlobalTableWriter      *database.TableWriter
	GlobalETLService       *etl.ETLService
	GlobalSchedulerService *scheduler.SchedulerService
	GlobalRateLimiter      *rate_limiter.RedisRateLimiter
	GlobalCleanupService   *cleanup.RunCleanupService
	sourceReader           *extraction.RDSReader
	redisClient            *redis.Client
)

func init() {
	AppConfig = config.Load()
	logger.InitLogger(AppConfig.LogLevel)

	initDatabase()
	runMigrations()
	initServices()
}

// initDatabase 初始化目标数据库连接
func initDatabase() {
	var err error
	DB, err = gorm.Open(postgres.Open(AppConfig.Database.DSN()), &gorm.Config{})
	if err != nil {
		slog.Error("数据库连接失败", "error", err)
		os.Exit(1)
	}

	slog.Info("数据库连接成功")
}

// runMigrations 运行数据库迁移
func runMigrations() {
	slog.Info("开始运行数据库迁移...")

	if err := database.AutoMigrate(DB); err != nil {
		slog.Error("数据库迁移失败", "error", err)
		os.Exit(1)
	}

	GlobalTableWriter = database.NewTableWriter(DB, AppConfig.Database.Schema)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := GlobalTableWriter.EnsureSchema(ctx); err != nil {
		slog.Error("创建目标schema失败", "schema", AppConfig.Database.Schema, "error", err)
		os.Exit(1)
	}

	slog.Info("所有数据库迁移任务完成")
}

// initServices 初始化服务
func initServices() {
	GlobalCleaner = cleansing.NewCleaner(slog.Default())

	jobs, err := etl.DefaultJobs(AppConfig, newTableReader(), newStoreFetcher(), newObjectReader())
	if err != nil {
		slog.Error("ETL 作业配置错误", "error", err)
		os.Exit(1)
	}

	redisClient = newRedisClient()
	opts := []etl.Option{etl.WithPublishers(newPublishers(redisClient)...)}
	if redisClient != nil {
		lock := distributed_lock.NewRedisLock(redisClient)
		opts = append(opts, etl.WithLocker(distributed_lock.NewLockExecutor(lock), AppConfig.ETLLockTTL))
		if AppConfig.TriggerLimit.Enabled() {
			GlobalRateLimiter = rate_limiter.NewRedisRateLimiter(redisClient)
		}
	}
	GlobalETLService = etl.NewETLService(DB, GlobalCleaner, GlobalTableWriter, jobs, opts...)

	GlobalSchedulerService = scheduler.NewSchedulerService(GlobalETLService, AppConfig.ETLCron)
	if err := GlobalSchedulerService.Start(); err != nil {
		slog.Error("启动调度器服务失败", "error", err)
	}

	GlobalCleanupService = cleanup.NewRunCleanupService(DB, AppConfig.RunRetentionDays)
	if err := GlobalCleanupService.StartScheduledCleanup(cleanup.DefaultCleanupCron); err != nil {
		slog.Error("启动运行记录清理失败", "error", err)
	}

	slog.Info("服务初始化完成", "kinds", GlobalETLService.Kinds())
}

// newTableReader 打开源数据库，凭据文件缺失时返回 nil
func newTableReader() extraction.TableReader {
	creds, err := config.LoadSourceCredentials(AppConfig.SourceCredsPath)
	if err != nil {
		slog.Warn("未加载源数据库凭据", "path", AppConfig.SourceCredsPath, "error", err)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	reader, err := extraction.OpenRDSReader(ctx, creds)
	if err != nil {
		slog.Warn("连接源数据库失败", "host", creds.Host, "error", err)
		return nil
	}
	sourceReader = reader

	tables, err := reader.ListTables(ctx)
	if err != nil {
		slog.Warn("查询源库表清单失败", "error", err)
		return reader
	}
	slog.Info("源数据库表清单", "tables", tables)
	for _, required := range []string{etl.SourceTableUsers, etl.SourceTableOrders} {
		if !slices.Contains(tables, required) {
			slog.Warn("源数据库缺少作业所需的表", "table", required)
		}
	}
	return reader
}

// newStoreFetcher 创建门店接口客户端，未配置 Key 时返回 nil
func newStoreFetcher() extraction.StoreFetcher {
	if AppConfig.StoreAPI.APIKey == "" {
		return nil
	}
	return extraction.NewStoreAPIClient(AppConfig.StoreAPI.BaseURL, AppConfig.StoreAPI.APIKey, AppConfig.StoreAPI.Timeout)
}

// newObjectReader 创建 S3 对象读取器
func newObjectReader() *extraction.ObjectReader {
	client, err := extraction.NewS3Client(AppConfig.AWSRegion, AppConfig.AWSAnonymous)
	if err != nil {
		slog.Warn("创建S3客户端失败", "region", AppConfig.AWSRegion, "error", err)
		return nil
	}
	return extraction.NewObjectReader(client)
}

// newRedisClient 配置 Redis 时创建共享客户端，不可用时 ETL 运行不加分布式锁
func newRedisClient() *redis.Client {
	if !AppConfig.Redis.Enabled() {
		return nil
	}
	client, err := connectors.NewRedisClient(AppConfig.Redis)
	if err != nil {
		slog.Warn("Redis不可用，ETL 运行不加分布式锁", "addr", AppConfig.Redis.Addr(), "error", err)
		return nil
	}
	return client
}

// newPublishers 按配置创建运行报告发布器
func newPublishers(client *redis.Client) []etl.ReportPublisher {
	var publishers []etl.ReportPublisher

	if AppConfig.Kafka.Enabled() {
		publishers = append(publishers, connectors.NewKafkaPublisher(AppConfig.Kafka))
	}

	if AppConfig.MQTT.Enabled() {
		publisher, err := connectors.NewMQTTPublisher(AppConfig.MQTT)
		if err != nil {
			slog.Warn("MQTT不可用，跳过运行报告发布", "broker", AppConfig.MQTT.Broker, "error", err)
		} else {
			publishers = append(publishers, publisher)
		}
	}

	if client != nil && AppConfig.Redis.ReportChannel != "" {
		publishers = append(publishers, connectors.NewRedisPublisher(client, AppConfig.Redis.ReportChannel))
	}

	return publishers
}

// Shutdown 停止调度器并释放连接
func Shutdown() {
	if GlobalSchedulerService != nil {
		GlobalSchedulerService.Stop()
	}
	if GlobalCleanupService != nil {
		GlobalCleanupService.StopScheduledCleanup()
	}
	if GlobalETLService != nil {
		GlobalETLService.Close()
	}
	if sourceReader != nil {
		if err := sourceReader.Close(); err != nil {
			slog.Warn("关闭源数据库连接失败", "error", err)
		}
	}
	if redisClient != nil {
		redisClient.Close()
	}
	if sqlDB, err := DB.DB(); err == nil {
		sqlDB.Close()
	}
}
