package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"

	"github.com/yourusername/lucky-wheel/internal/config"
)

// RateLimitConfig holds rate limiting settings
type RateLimitConfig struct {
	// MaxRequests allowed per Window
	MaxRequests int
	Window      time.Duration
	KeyPrefix   string
}

// CheckinRateLimitConfig limits check-in submissions per client IP
func CheckinRateLimitConfig(cfg config.CheckinConfig) RateLimitConfig {
	rl := RateLimitConfig{
		MaxRequests: 10,
		Window:      time.Minute,
		KeyPrefix:   "rl:checkin",
	}
	if cfg.RateLimit > 0 {
		rl.MaxRequests = cfg.RateLimit
	}
	if cfg.RateWindowSec > 0 {
		rl.Window = time.Duration(cfg.RateWindowSec) * time.Second
	}
	return rl
}

// RateLimiter is a fixed-window limiter backed by Redis
type RateLimiter struct {
	redisClient redis.UniversalClient
}

// NewRateLimiter creates a RateLimiter
func NewRateLimiter(redisClient redis.UniversalClient) *RateLimiter {
	return &RateLimiter{redisClient: redisClient}
}

// Limit returns a middleware keyed by client IP and route pattern.
// Redis errors let the request through.
func (rl *RateLimiter) Limit(cfg RateLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		key := fmt.Sprintf("%s:%s:%s", cfg.KeyPrefix, clientIP, path)

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		count, err := rl.redisClient.Incr(ctx, key).Result()
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("[RateLimiter] Redis error, allowing request")
			c.Next()
			return
		}

		// first request in the window sets the TTL
		if count == 1 {
			if err := rl.redisClient.Expire(ctx, key, cfg.Window).Err(); err != nil {
				log.Warn().Err(err).Str("key", key).Msg("[RateLimiter] Failed to set TTL")
			}
		}

		remaining := cfg.MaxRequests - int(count)
		if remaining < 0 {
			remaining = 0
		}

		ttl, _ := rl.redisClient.TTL(ctx, key).Result()
		retryAfter := int(ttl.Seconds())
		if retryAfter < 0 {
			retryAfter = int(cfg.Window.Seconds())
		}

		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", cfg.MaxRequests))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
		c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", retryAfter))

		if int(count) > cfg.MaxRequests {
			log.Info().Str("ip", clientIP).Str("path", path).Int64("count", count).Msg("[RateLimiter] Rate limit exceeded")

			c.Header("Retry-After", fmt.Sprintf("%d", retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Too many requests. Please try again later.",
				"error_type":  "rate_limited",
				"retry_after": retryAfter,
			})
			return
		}

		c.Next()
	}
}
