/*
 * @module service/rate_limiter/redis_rate_limiter
 * @description 基于Redis的分布式限流服务，限制手动触发 ETL 运行的频率
 * @architecture 工具层 - 提供分布式限流能力
 * @documentReference DESIGN.md
 * @stateFlow 检查限流规则 -> Redis计数 -> 判断是否超限
 * @rules 使用Redis INCR和EXPIRE实现固定窗口限流，客户端规则先于全局规则检查
 * @dependencies github.com/go-redis/redis/v8
 * @refs api/middleware/rate_limit.go, service/init.go
 */

package rate_limiter

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// 限流类型
const (
	LimitTypeGlobal = "global"
	LimitTypeClient = "client"
)

const rateLimitScript = `
	local key = KEYS[1]
	local max_requests = tonumber(ARGV[1])
	local window = tonumber(ARGV[2])

	local current = redis.call('GET', key)
	if current == false then
		current = 0
	else
		current = tonumber(current)
	end

	if current >= max_requests then
		local ttl = redis.call('TTL', key)
		if ttl == -1 then
			ttl = window
		end
		return {0, current, max_requests, ttl}
	end

	local new_count = redis.call('INCR', key)
	if new_count == 1 then
		redis.call('EXPIRE', key, window)
	end

	local ttl = redis.call('TTL', key)
	if ttl == -1 then
		ttl = window
	end

	return {1, new_count, max_requests, ttl}
`

// RateLimitResult 限流检查结果
type RateLimitResult struct {
	Allowed       bool   `json:"allowed"`    // 是否允许请求
	Limit         int    `json:"limit"`      // 限制数量
	Remaining     int    `json:"remaining"`  // 剩余数量
	ResetAt       int64  `json:"reset_at"`   // 重置时间（Unix时间戳）
	RateLimitType string `json:"limit_type"` // 限流类型：global/client
	Message       string `json:"message"`    // 提示信息
}

// RateLimitRule 限流规则
type RateLimitRule struct {
	Type        string // global/client
	TargetID    string // 客户端标识，全局时为空
	TimeWindow  int    // 时间窗口（秒）
	MaxRequests int    // 最大请求数
}

// scriptEvaluator Redis 脚本执行接口，由 *redis.Client 实现
type scriptEvaluator interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// RedisRateLimiter Redis限流器
type RedisRateLimiter struct {
	client scriptEvaluator
	now    func() time.Time
}

// NewRedisRateLimiter 使用已连接的客户端创建Redis限流器
func NewRedisRateLimiter(client scriptEvaluator) *RedisRateLimiter {
	return &RedisRateLimiter{client: client, now: time.Now}
}

// CheckRateLimit 检查是否超过限流（按优先级检查：客户端 -> 全局）
func (r *RedisRateLimiter) CheckRateLimit(ctx context.Context, rules []RateLimitRule) (*RateLimitResult, error) {
	var last *RateLimitResult
	for _, rule := range sortRulesByPriority(rules) {
		result, err := r.checkSingleRule(ctx, rule)
		if err != nil {
			return nil, err
		}
		if !result.Allowed {
			return result, nil
		}
		last = result
	}

	if last != nil {
		return last, nil
	}

	// 没有限流规则，允许通过
	return &RateLimitResult{
		Allowed:       true,
		Limit:         -1,
		Remaining:     -1,
		RateLimitType: "none",
		Message:       "无限流规则",
	}, nil
}

// checkSingleRule 检查单个限流规则
func (r *RedisRateLimiter) checkSingleRule(ctx context.Context, rule RateLimitRule) (*RateLimitResult, error) {
	if rule.TimeWindow <= 0 {
		return nil, fmt.Errorf("无效的限流窗口: %d", rule.TimeWindow)
	}
	key := r.buildRateLimitKey(rule)

	values, err := r.client.Eval(ctx, rateLimitScript, []string{key}, rule.MaxRequests, rule.TimeWindow).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("限流检查失败: %w", err)
	}
	if len(values) != 4 {
		return nil, fmt.Errorf("限流脚本返回值异常: %v", values)
	}

	allowed := values[0] == 1
	currentCount := int(values[1])
	maxRequests := int(values[2])
	ttl := values[3]

	remaining := maxRequests - currentCount
	if remaining < 0 {
		remaining = 0
	}

	message := "允许请求"
	if !allowed {
		message = fmt.Sprintf("超过%s限流限制", rateLimitTypeName(rule.Type))
	}

	return &RateLimitResult{
		Allowed:       allowed,
		Limit:         maxRequests,
		Remaining:     remaining,
		ResetAt:       r.now().Add(time.Duration(ttl) * time.Second).Unix(),
		RateLimitType: rule.Type,
		Message:       message,
	}, nil
}

// buildRateLimitKey 构造限流Key
func (r *RedisRateLimiter) buildRateLimitKey(rule RateLimitRule) string {
	currentWindow := r.now().Unix() / int64(rule.TimeWindow)

	if rule.Type == LimitTypeGlobal {
		return fmt.Sprintf("rate_limit:etl_trigger:%s:%d", rule.Type, currentWindow)
	}
	return fmt.Sprintf("rate_limit:etl_trigger:%s:%s:%d", rule.Type, rule.TargetID, currentWindow)
}

// sortRulesByPriority 按优先级排序规则：client > global
func sortRulesByPriority(rules []RateLimitRule) []RateLimitRule {
	sorted := make([]RateLimitRule, 0, len(rules))
	for _, rule := range rules {
		if rule.Type != LimitTypeGlobal {
			sorted = append(sorted, rule)
		}
	}
	for _, rule := range rules {
		if rule.Type == LimitTypeGlobal {
			sorted = append(sorted, rule)
		}
	}
	return sorted
}

// rateLimitTypeName 获取限流类型名称
func rateLimitTypeName(limitType string) string {
	switch limitType {
	case LimitTypeGlobal:
		return "全局"
	case LimitTypeClient:
		return "客户端"
	default:
		return "未知"
	}
}
