package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"stockledger/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ── Redis fixed-window limiter ────────────────────────────────────────────────

// RateLimiter allows limit requests per client IP per window. Counters live
// in Redis so every replica shares them. When Redis errors the request is let
// through: the limiter protects capacity, it does not gate correctness.
// With a nil client it falls back to a process-local window.
func RateLimiter(rdb redis.Cmdable, limit int, window time.Duration) gin.HandlerFunc {
	if limit <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if rdb == nil {
		return localRateLimiter(limit, window)
	}

	return func(c *gin.Context) {
		now := time.Now()
		bucket := now.Truncate(window)
		key := fmt.Sprintf("ratelimit:%s:%d", c.ClientIP(), bucket.Unix())

		count, err := incrWindow(c.Request.Context(), rdb, key, window)
		if err != nil {
			log.Warn().Err(err).Str("request_id", c.GetString(RequestIDKey)).Msg("rate limiter unavailable, allowing request")
			c.Next()
			return
		}

		if count > int64(limit) {
			retry := bucket.Add(window).Sub(now)
			c.Header("Retry-After", strconv.Itoa(int(retry.Seconds())+1))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.New("Too many requests, retry shortly"))
			return
		}
		c.Next()
	}
}

func incrWindow(ctx context.Context, rdb redis.Cmdable, key string, window time.Duration) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()

	var incr *redis.IntCmd
	_, err := rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, window)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// ── Process-local fallback ────────────────────────────────────────────────────

type rateEntry struct {
	count     int
	windowEnd time.Time
}

func localRateLimiter(limit int, window time.Duration) gin.HandlerFunc {
	var mu sync.Mutex
	entries := make(map[string]*rateEntry)
	lastPurge := time.Now()

	return func(c *gin.Context) {
		now := time.Now()
		ip := c.ClientIP()

		mu.Lock()
		if now.Sub(lastPurge) > 5*window {
			for k, e := range entries {
				if now.After(e.windowEnd) {
					delete(entries, k)
				}
			}
			lastPurge = now
		}
		entry, ok := entries[ip]
		if !ok || now.After(entry.windowEnd) {
			entry = &rateEntry{windowEnd: now.Add(window)}
			entries[ip] = entry
		}
		entry.count++
		count, windowEnd := entry.count, entry.windowEnd
		mu.Unlock()

		if count > limit {
			c.Header("Retry-After", strconv.Itoa(int(windowEnd.Sub(now).Seconds())+1))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.New("Too many requests, retry shortly"))
			return
		}
		c.Next()
	}
}
