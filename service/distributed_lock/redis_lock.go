/*
 * @module service/distributed_lock/redis_lock
 * @description Redis分布式锁实现，保证多实例部署时同一时刻只有一个 ETL 运行
 * @architecture 工具层 - 提供分布式锁能力
 * @documentReference DESIGN.md
 * @stateFlow 获取锁 -> 执行运行 -> 释放锁/自动过期
 * @rules 使用Redis SET NX实现，只有持有者能续期和释放；运行期间按间隔续期；锁被占用时不执行并返回 ErrLockHeld
 * @dependencies github.com/go-redis/redis/v8
 * @refs service/init.go, service/etl/etl_service.go
 */

package distributed_lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
)

// lockKeyPrefix 锁键前缀
const lockKeyPrefix = "etl_run:lock:"

// ErrLockHeld 锁已被其他实例持有
var ErrLockHeld = errors.New("锁已被其他实例持有")

const unlockScript = `
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`

const refreshScript = `
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("expire", KEYS[1], ARGV[2])
	else
		return 0
	end
`

// DistributedLock 分布式锁接口
type DistributedLock interface {
	// TryLock 尝试获取锁
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Unlock 释放锁
	Unlock(ctx context.Context, key string) error
	// Refresh 刷新锁的过期时间
	Refresh(ctx context.Context, key string, ttl time.Duration) error
}

// RedisLock Redis分布式锁实现
type RedisLock struct {
	client     *redis.Client
	instanceID string // 实例ID，用于标识锁的持有者
}

// NewRedisLock 使用已连接的客户端创建分布式锁
func NewRedisLock(client *redis.Client) *RedisLock {
	// 实例ID：主机名+进程ID
	hostname, _ := os.Hostname()
	lock := &RedisLock{
		client:     client,
		instanceID: fmt.Sprintf("%s:%d", hostname, os.Getpid()),
	}
	slog.Info("Redis分布式锁初始化成功", "instance_id", lock.instanceID)
	return lock
}

// TryLock 尝试获取锁，只有当键不存在时才会设置成功
func (r *RedisLock) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	result, err := r.client.SetNX(ctx, lockKey(key), r.instanceID, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("获取锁失败: %w", err)
	}

	if result {
		slog.Debug("分布式锁: 成功获取锁", "key", key, "ttl", ttl, "instance", r.instanceID)
	}
	return result, nil
}

// Unlock 释放锁，只有锁的持有者才能释放
func (r *RedisLock) Unlock(ctx context.Context, key string) error {
	result, err := r.client.Eval(ctx, unlockScript, []string{lockKey(key)}, r.instanceID).Int64()
	if err != nil {
		return fmt.Errorf("释放锁失败: %w", err)
	}

	if result == 1 {
		slog.Debug("分布式锁: 成功释放锁", "key", key, "instance", r.instanceID)
	} else {
		slog.Warn("分布式锁: 锁不存在或已被其他实例持有", "key", key, "instance", r.instanceID)
	}
	return nil
}

// Refresh 刷新锁的过期时间
func (r *RedisLock) Refresh(ctx context.Context, key string, ttl time.Duration) error {
	result, err := r.client.Eval(ctx, refreshScript, []string{lockKey(key)}, r.instanceID, int(ttl.Seconds())).Int64()
	if err != nil {
		return fmt.Errorf("刷新锁失败: %w", err)
	}
	if result != 1 {
		return fmt.Errorf("锁不存在或已被其他实例持有")
	}

	slog.Debug("分布式锁: 成功刷新锁", "key", key, "ttl", ttl, "instance", r.instanceID)
	return nil
}

func lockKey(key string) string {
	return lockKeyPrefix + key
}

// LockExecutor 带锁执行器
type LockExecutor struct {
	lock DistributedLock
}

// NewLockExecutor 创建带锁执行器
func NewLockExecutor(lock DistributedLock) *LockExecutor {
	return &LockExecutor{lock: lock}
}

// ExecuteWithLockAndRefresh 在锁保护下执行函数，并按 refreshInterval 自动续期
// 锁被占用时返回 ErrLockHeld；refreshInterval 不大于0时不续期
func (e *LockExecutor) ExecuteWithLockAndRefresh(ctx context.Context, key string, ttl, refreshInterval time.Duration, fn func() error) error {
	locked, err := e.lock.TryLock(ctx, key, ttl)
	if err != nil {
		return fmt.Errorf("获取锁失败: %w", err)
	}
	if !locked {
		slog.Debug("分布式锁: 锁已被其他实例持有，跳过执行", "key", key)
		return ErrLockHeld
	}

	defer e.unlock(ctx, key)
	if refreshInterval <= 0 {
		return fn()
	}

	// 续期先于释放停止
	refreshCtx, cancelRefresh := context.WithCancel(ctx)
	defer cancelRefresh()

	go func() {
		ticker := time.NewTicker(refreshInterval)
		defer ticker.Stop()

		for {
			select {
			case <-refreshCtx.Done():
				return
			case <-ticker.C:
				if refreshErr := e.lock.Refresh(refreshCtx, key, ttl); refreshErr != nil {
					slog.Error("分布式锁: 续期失败", "key", key, "error", refreshErr)
				}
			}
		}
	}()

	return fn()
}

// unlock 释放锁；运行上下文取消后仍需释放，使用独立上下文
func (e *LockExecutor) unlock(ctx context.Context, key string) {
	unlockCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := e.lock.Unlock(unlockCtx, key); err != nil {
		slog.Error("分布式锁: 释放锁失败", "key", key, "error", err)
	}
}
