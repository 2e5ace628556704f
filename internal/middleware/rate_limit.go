package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/remembrance/memorial-backend/internal/common"
	"github.com/remembrance/memorial-backend/pkg/logger"
)

// RateLimitConfig configures the rate limiter
type RateLimitConfig struct {
	RequestsPerMinute int
	KeyPrefix         string
	Message           string
}

// rateLimitScript is an atomic sliding-window counter over a sorted set
var rateLimitScript = redis.NewScript(`
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)

if count < limit then
    redis.call('ZADD', key, now, now .. ':' .. math.random(1000000))
    redis.call('EXPIRE', key, math.ceil(window / 1000) + 1)
    return {1, limit - count - 1, 0}
end

local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local reset_at = 0
if #oldest >= 2 then
    reset_at = tonumber(oldest[2]) + window
end
return {0, 0, reset_at}
`)

// RateLimit limits write endpoints per caller: the user ID when authenticated,
// the client IP otherwise. A nil client or a non-positive limit disables it.
func RateLimit(redisClient *redis.Client, cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.Message == "" {
		cfg.Message = "Too many requests, please try again later"
	}
	return func(c *gin.Context) {
		if redisClient == nil || cfg.RequestsPerMinute <= 0 {
			c.Next()
			return
		}

		key := rateLimitKey(c, cfg.KeyPrefix)

		now := time.Now().UnixMilli()
		windowMs := int64(60 * 1000)

		result, err := rateLimitScript.Run(c.Request.Context(), redisClient, []string{key},
			cfg.RequestsPerMinute, windowMs, now,
		).Int64Slice()
		if err != nil {
			// fail open
			logger.GetLogger().Warn().Err(err).Str("key", key).Msg("rate limit check failed")
			c.Next()
			return
		}

		allowed := result[0] == 1
		remaining := result[1]
		resetAt := result[2]

		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.RequestsPerMinute))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if !allowed {
			c.Header("Retry-After", strconv.FormatInt(retryAfterSeconds(resetAt, now), 10))
			common.ErrorResponse(c, http.StatusTooManyRequests, cfg.Message, nil)
			c.Abort()
			return
		}

		c.Next()
	}
}

// rateLimitKey names the caller's bucket: the user ID when authenticated, the client IP otherwise
func rateLimitKey(c *gin.Context, prefix string) string {
	if uid := GetUserID(c); uid != "" {
		return prefix + uid
	}
	return prefix + "ip:" + c.ClientIP()
}

// retryAfterSeconds rounds the wait up to whole seconds, at least one
func retryAfterSeconds(resetAtMs, nowMs int64) int64 {
	wait := (resetAtMs - nowMs + 999) / 1000
	if wait < 1 {
		return 1
	}
	return wait
}
