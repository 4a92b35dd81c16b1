/*
 * @module service/rate_limiter/redis_rate_limiter_test
 * @description Redis限流器单元测试
 * @architecture 测试层 - mock Redis 脚本执行
 * @documentReference DESIGN.md
 */

package rate_limiter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockEvaluator Redis 脚本执行 mock
type MockEvaluator struct {
	mock.Mock
}

func (m *MockEvaluator) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	callArgs := m.Called(keys[0])
	cmd := redis.NewCmd(ctx)
	if err := callArgs.Error(1); err != nil {
		cmd.SetErr(err)
		return cmd
	}
	cmd.SetVal(callArgs.Get(0))
	return cmd
}

func scriptResult(allowed, count, limit, ttl int64) []interface{} {
	return []interface{}{allowed, count, limit, ttl}
}

func newTestLimiter(evaluator *MockEvaluator) *RedisRateLimiter {
	limiter := NewRedisRateLimiter(evaluator)
	limiter.now = func() time.Time { return time.Unix(1_700_000_040, 0) }
	return limiter
}

func TestCheckRateLimit(t *testing.T) {
	globalRule := RateLimitRule{Type: LimitTypeGlobal, TimeWindow: 60, MaxRequests: 10}
	clientRule := RateLimitRule{Type: LimitTypeClient, TargetID: "10.0.0.1", TimeWindow: 60, MaxRequests: 2}
	globalKey := "rate_limit:etl_trigger:global:28333334"
	clientKey := "rate_limit:etl_trigger:client:10.0.0.1:28333334"

	t.Run("全部规则通过", func(t *testing.T) {
		evaluator := new(MockEvaluator)
		evaluator.On("Eval", clientKey).Return(scriptResult(1, 1, 2, 60), nil).Once()
		evaluator.On("Eval", globalKey).Return(scriptResult(1, 3, 10, 20), nil).Once()

		result, err := newTestLimiter(evaluator).CheckRateLimit(context.Background(), []RateLimitRule{globalRule, clientRule})

		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, LimitTypeGlobal, result.RateLimitType)
		assert.Equal(t, 7, result.Remaining)
		assert.Equal(t, int64(1_700_000_060), result.ResetAt)
		evaluator.AssertExpectations(t)
	})

	t.Run("客户端超限时不再检查全局", func(t *testing.T) {
		evaluator := new(MockEvaluator)
		evaluator.On("Eval", clientKey).Return(scriptResult(0, 2, 2, 15), nil).Once()

		result, err := newTestLimiter(evaluator).CheckRateLimit(context.Background(), []RateLimitRule{globalRule, clientRule})

		require.NoError(t, err)
		assert.False(t, result.Allowed)
		assert.Equal(t, 0, result.Remaining)
		assert.Equal(t, "超过客户端限流限制", result.Message)
		evaluator.AssertNotCalled(t, "Eval", globalKey)
	})

	t.Run("无规则", func(t *testing.T) {
		result, err := newTestLimiter(new(MockEvaluator)).CheckRateLimit(context.Background(), nil)

		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, -1, result.Limit)
	})

	t.Run("Redis错误", func(t *testing.T) {
		evaluator := new(MockEvaluator)
		evaluator.On("Eval", globalKey).Return(nil, errors.New("connection refused"))

		_, err := newTestLimiter(evaluator).CheckRateLimit(context.Background(), []RateLimitRule{globalRule})

		assert.Error(t, err)
	})

	t.Run("无效窗口", func(t *testing.T) {
		_, err := newTestLimiter(new(MockEvaluator)).CheckRateLimit(context.Background(), []RateLimitRule{{Type: LimitTypeGlobal, MaxRequests: 1}})

		assert.Error(t, err)
	})
}

func TestSortRulesByPriority(t *testing.T) {
	rules := []RateLimitRule{
		{Type: LimitTypeGlobal},
		{Type: LimitTypeClient, TargetID: "a"},
	}

	sorted := sortRulesByPriority(rules)

	require.Len(t, sorted, 2)
	assert.Equal(t, LimitTypeClient, sorted[0].Type)
	assert.Equal(t, LimitTypeGlobal, sorted[1].Type)
}
