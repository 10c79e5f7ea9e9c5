/*
 * @module service/rate_limiter/redis_rate_limiter
 * @description 基于Redis的分布式限流器，按主体键原子计数，写入即续期时间窗口
 * @architecture 工具层 - 提供跨副本的分布式限流能力
 * @documentReference dev_docs/rate_limit_design.md
 * @stateFlow 读取计数 -> 判断是否超限；原子自增+续期 -> 计数写入
 * @rules 每次自增都将过期时间重置为完整窗口（写入续期策略），存储故障时返回类型化错误拒绝放行
 * @dependencies github.com/go-redis/redis/v8
 * @refs service/security/intrusion_detector.go
 */

package rate_limiter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"sentinel-service/service/config"
)

// ErrStoreRequired 未配置共享存储，限流器拒绝构造以避免静默放行
var ErrStoreRequired = errors.New("限流器必须配置Redis共享存储")

// StoreUnavailableError 共享存储不可用错误，调用方必须按失败关闭处理
type StoreUnavailableError struct {
	Op  string
	Err error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("限流存储操作 %s 失败: %v", e.Op, e.Err)
}

func (e *StoreUnavailableError) Unwrap() error {
	return e.Err
}

// RateLimitResult 限流检查结果
type RateLimitResult struct {
	Blocked   bool  `json:"blocked"`   // 是否已超限
	Count     int64 `json:"count"`     // 当前窗口计数
	Limit     int   `json:"limit"`     // 限制数量
	Remaining int   `json:"remaining"` // 剩余数量
	TTLMs     int64 `json:"ttl_ms"`    // 窗口剩余毫秒
}

// RateLimiter Redis限流器
type RateLimiter struct {
	client      *redis.Client
	window      time.Duration
	maxRequests int
	keyPrefix   string
}

// checkScript 原子读取计数和TTL，计数存在但无过期时间时修复为完整窗口
const checkScript = `
	local count = redis.call('GET', KEYS[1])
	if count == false then
		return {0, -2}
	end
	local ttl = redis.call('PTTL', KEYS[1])
	if ttl == -1 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
		ttl = tonumber(ARGV[1])
	end
	return {tonumber(count), ttl}
`

// incrementScript 原子自增并续期：每次写入都将过期时间重置为完整窗口
const incrementScript = `
	local count = redis.call('INCR', KEYS[1])
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
	return count
`

// NewRateLimiter 创建限流器实例，共享存储缺失时返回配置错误
func NewRateLimiter(cfg config.RateLimitConfig, client *redis.Client) (*RateLimiter, error) {
	if client == nil {
		return nil, ErrStoreRequired
	}
	if cfg.WindowSeconds <= 0 {
		return nil, fmt.Errorf("限流时间窗口必须大于0")
	}
	if cfg.MaxRequests <= 0 {
		return nil, fmt.Errorf("限流最大请求数必须大于0")
	}

	keyPrefix := cfg.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = "rate_limit"
	}

	return &RateLimiter{
		client:      client,
		window:      cfg.Window(),
		maxRequests: cfg.MaxRequests,
		keyPrefix:   keyPrefix,
	}, nil
}

// Limit 返回窗口内允许的最大请求数
func (r *RateLimiter) Limit() int {
	return r.maxRequests
}

// buildKey 构造限流Key
func (r *RateLimiter) buildKey(key string) string {
	return fmt.Sprintf("%s:%s", r.keyPrefix, key)
}

// Check 原子读取计数判断是否超限，不修改计数
func (r *RateLimiter) Check(ctx context.Context, key string) (*RateLimitResult, error) {
	result, err := r.client.Eval(ctx, checkScript, []string{r.buildKey(key)}, r.window.Milliseconds()).Result()
	if err != nil {
		return nil, &StoreUnavailableError{Op: "check", Err: err}
	}

	values := result.([]interface{})
	count := values[0].(int64)
	ttl := values[1].(int64)

	return &RateLimitResult{
		Blocked:   count >= int64(r.maxRequests),
		Count:     count,
		Limit:     r.maxRequests,
		Remaining: remaining(r.maxRequests, count),
		TTLMs:     ttl,
	}, nil
}

// Increment 原子自增计数并将过期时间续期为完整窗口
func (r *RateLimiter) Increment(ctx context.Context, key string) (int64, error) {
	count, err := r.client.Eval(ctx, incrementScript, []string{r.buildKey(key)}, r.window.Milliseconds()).Int64()
	if err != nil {
		return 0, &StoreUnavailableError{Op: "increment", Err: err}
	}
	return count, nil
}

// GetRemaining 获取剩余可用请求数
func (r *RateLimiter) GetRemaining(ctx context.Context, key string) (int, error) {
	count, err := r.client.Get(ctx, r.buildKey(key)).Int64()
	if err == redis.Nil {
		return r.maxRequests, nil
	}
	if err != nil {
		return 0, &StoreUnavailableError{Op: "get_remaining", Err: err}
	}
	return remaining(r.maxRequests, count), nil
}

// Reset 删除主体的限流计数
func (r *RateLimiter) Reset(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.buildKey(key)).Err(); err != nil {
		return &StoreUnavailableError{Op: "reset", Err: err}
	}
	return nil
}

// Cleanup 批量删除本限流器命名空间下的所有计数，维护操作不在请求路径上使用
func (r *RateLimiter) Cleanup(ctx context.Context) (int64, error) {
	var deleted int64
	var cursor uint64

	for {
		keys, next, err := r.client.Scan(ctx, cursor, r.keyPrefix+":*", 100).Result()
		if err != nil {
			return deleted, &StoreUnavailableError{Op: "cleanup", Err: err}
		}
		if len(keys) > 0 {
			removed, err := r.client.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, &StoreUnavailableError{Op: "cleanup", Err: err}
			}
			deleted += removed
		}
		cursor = next
		if cursor == 0 {
			return deleted, nil
		}
	}
}

// remaining 计算剩余请求数，不为负
func remaining(limit int, count int64) int {
	left := limit - int(count)
	if left < 0 {
		return 0
	}
	return left
}
