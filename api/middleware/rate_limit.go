/*
 * @module api/middleware/rate_limit
 * @description 限流中间件，按客户端与全局两级规则限制请求频率
 * @architecture 中间件模式 - HTTP请求拦截
 * @documentReference DESIGN.md
 * @stateFlow 识别客户端 -> 限流检查 -> 写入限流响应头 -> 下一个处理器/429
 * @rules 客户端优先以 API Key 识别，其次为来源地址；限流服务不可用时放行
 * @dependencies service/rate_limiter, github.com/go-chi/render
 * @refs api/routes.go
 */

package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"retail-datahub/service/rate_limiter"

	"github.com/go-chi/render"
)

// RateLimitChecker 限流检查接口，由 *rate_limiter.RedisRateLimiter 实现
type RateLimitChecker interface {
	CheckRateLimit(ctx context.Context, rules []rate_limiter.RateLimitRule) (*rate_limiter.RateLimitResult, error)
}

// RateLimit 创建限流中间件，window 单位为秒；clientMax 或 globalMax 为 0 时不启用对应规则
func RateLimit(checker RateLimitChecker, window, clientMax, globalMax int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var rules []rate_limiter.RateLimitRule
			if clientMax > 0 {
				rules = append(rules, rate_limiter.RateLimitRule{
					Type:        rate_limiter.LimitTypeClient,
					TargetID:    clientID(r),
					TimeWindow:  window,
					MaxRequests: clientMax,
				})
			}
			if globalMax > 0 {
				rules = append(rules, rate_limiter.RateLimitRule{
					Type:        rate_limiter.LimitTypeGlobal,
					TimeWindow:  window,
					MaxRequests: globalMax,
				})
			}

			result, err := checker.CheckRateLimit(r.Context(), rules)
			if err != nil {
				slog.Warn("限流检查失败，放行请求", "path", r.URL.Path, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			if result.Limit >= 0 {
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
				w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt, 10))
			}
			if !result.Allowed {
				render.Status(r, http.StatusTooManyRequests)
				render.JSON(w, r, map[string]interface{}{
					"status": http.StatusTooManyRequests,
					"msg":    result.Message,
					"error":  "Too Many Requests",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientID 客户端标识，API Key 只以摘要形式进入 Redis 键
func clientID(r *http.Request) string {
	if key := r.Header.Get(APIKeyHeader); key != "" {
		sum := sha256.Sum256([]byte(key))
		return "key:" + hex.EncodeToString(sum[:8])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
