/*
 * @module api/middleware/api_key_auth
 * @description API Key 鉴权中间件，使用 bcrypt 哈希校验 X-API-Key 请求头
 * @architecture 中间件模式 - HTTP请求拦截和验证
 * @documentReference DESIGN.md
 * @stateFlow 白名单判断 -> Key提取 -> 缓存/哈希校验 -> 下一个处理器
 * @rules 未配置哈希时不启用鉴权；健康检查、指标与文档路径免鉴权
 * @dependencies golang.org/x/crypto/bcrypt, github.com/go-chi/render
 * @refs api/routes.go
 */

package middleware

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/render"
	"golang.org/x/crypto/bcrypt"
)

// APIKeyHeader API Key 请求头
const APIKeyHeader = "X-API-Key"

// APIKeyAuthMiddleware API Key 认证中间件
type APIKeyAuthMiddleware struct {
	keyHash []byte
	// 校验通过的 Key 缓存，避免每个请求都做 bcrypt 比较
	cache      map[string]time.Time
	cacheMutex sync.RWMutex
	cacheTTL   time.Duration
	// 白名单路径（不需要鉴权）
	whitelistPaths []string
}

// NewAPIKeyAuthMiddleware 创建 API Key 认证中间件，keyHash 为 bcrypt 哈希
func NewAPIKeyAuthMiddleware(keyHash string) *APIKeyAuthMiddleware {
	return &APIKeyAuthMiddleware{
		keyHash:  []byte(keyHash),
		cache:    make(map[string]time.Time),
		cacheTTL: 5 * time.Minute,
		whitelistPaths: []string{
			"/health",  // 健康检查
			"/ready",   // 就绪检查
			"/metrics", // Prometheus指标
			"/swagger", // Swagger文档
		},
	}
}

// Enabled 是否启用鉴权
func (m *APIKeyAuthMiddleware) Enabled() bool {
	return len(m.keyHash) > 0
}

// AddWhitelistPath 添加白名单路径
func (m *APIKeyAuthMiddleware) AddWhitelistPath(path string) {
	m.whitelistPaths = append(m.whitelistPaths, path)
}

// IsWhitelistPath 检查路径是否在白名单中，支持前缀匹配
func (m *APIKeyAuthMiddleware) IsWhitelistPath(path string) bool {
	for _, whitelistPath := range m.whitelistPaths {
		if strings.HasPrefix(path, whitelistPath) {
			return true
		}
	}
	return false
}

// Middleware 认证中间件处理函数
func (m *APIKeyAuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.Enabled() || m.IsWhitelistPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		key := r.Header.Get(APIKeyHeader)
		if key == "" {
			m.respondUnauthorized(w, r, "缺少"+APIKeyHeader+"头")
			return
		}

		if !m.verified(key) {
			if err := bcrypt.CompareHashAndPassword(m.keyHash, []byte(key)); err != nil {
				m.respondUnauthorized(w, r, "API Key无效")
				return
			}
			m.saveToCache(key)
		}

		next.ServeHTTP(w, r)
	})
}

// verified 检查 Key 是否在有效缓存中
func (m *APIKeyAuthMiddleware) verified(key string) bool {
	m.cacheMutex.RLock()
	defer m.cacheMutex.RUnlock()

	expiresAt, exists := m.cache[key]
	return exists && time.Now().Before(expiresAt)
}

// saveToCache 保存校验通过的 Key
func (m *APIKeyAuthMiddleware) saveToCache(key string) {
	m.cacheMutex.Lock()
	defer m.cacheMutex.Unlock()

	m.cache[key] = time.Now().Add(m.cacheTTL)
}

// respondUnauthorized 返回401未授权响应
func (m *APIKeyAuthMiddleware) respondUnauthorized(w http.ResponseWriter, r *http.Request, message string) {
	render.Status(r, http.StatusUnauthorized)
	render.JSON(w, r, map[string]interface{}{
		"status": http.StatusUnauthorized,
		"msg":    message,
		"error":  "Unauthorized",
	})
}
