/*
 * @module client/connectors/redis_connector
 * @description Redis 客户端创建与运行报告频道发布
 * @architecture 适配器模式 - 封装 go-redis 客户端，分布式锁与报告发布共用连接
 * @documentReference DESIGN.md
 * @stateFlow 创建客户端 -> 连接测试 -> 运行结束 PUBLISH 报告
 * @rules 频道名为空时不创建发布器
 * @dependencies github.com/go-redis/redis/v8
 * @refs run_report.go, service/distributed_lock/redis_lock.go
 */

package connectors

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"retail-datahub/service/config"
	"retail-datahub/service/models"

	"github.com/go-redis/redis/v8"
)

// NewRedisClient 按配置创建 Redis 客户端并测试连接
func NewRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("Redis连接失败: %w", err)
	}

	slog.Info("Redis连接成功", "addr", cfg.Addr(), "db", cfg.DB)
	return client, nil
}

// channelPublisher Redis 发布接口，由 *redis.Client 实现
type channelPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisPublisher Redis 频道运行报告发布器
type RedisPublisher struct {
	client  channelPublisher
	channel string
	logger  *slog.Logger
}

// NewRedisPublisher 创建 Redis 频道发布器，客户端由调用方管理
func NewRedisPublisher(client channelPublisher, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel, logger: slog.Default()}
}

// Name 发布器名称
func (p *RedisPublisher) Name() string {
	return "redis"
}

// Publish 发布运行报告
func (p *RedisPublisher) Publish(ctx context.Context, run *models.ETLRun) error {
	payload, err := encodeRunReport(run)
	if err != nil {
		return err
	}

	receivers, err := p.client.Publish(ctx, p.channel, payload).Result()
	if err != nil {
		return fmt.Errorf("PUBLISH命令失败 channel=%s: %w", p.channel, err)
	}

	p.logger.Debug("运行报告已发布到Redis频道", "channel", p.channel, "run_id", run.ID, "receivers", receivers)
	return nil
}

// Close 客户端由调用方关闭
func (p *RedisPublisher) Close() error {
	return nil
}
