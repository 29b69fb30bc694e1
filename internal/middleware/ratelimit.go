package middleware

import (
	"net/http"
	"time"

	"tmplhub/internal/common"

	"github.com/gin-gonic/gin"
	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/time/rate"
)

// RateLimiter is a token bucket rate limiter per API client. Clients are
// identified by their API key when Auth ran before it, by IP otherwise.
// Buckets of idle clients expire.
type RateLimiter struct {
	limiters *ttlcache.Cache[string, *rate.Limiter]
	rate     rate.Limit
	burst    int
}

// NewRateLimiter creates a new RateLimiter. Its bucket cache runs until Stop.
func NewRateLimiter(rps float64, burst int, idleTTL time.Duration) *RateLimiter {
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	rl := &RateLimiter{
		rate:  rate.Limit(rps),
		burst: burst,
	}
	rl.limiters = ttlcache.New(
		ttlcache.WithTTL[string, *rate.Limiter](idleTTL),
	)
	go rl.limiters.Start()
	return rl
}

// Stop releases the expiry goroutine.
func (rl *RateLimiter) Stop() {
	rl.limiters.Stop()
}

func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	loader := ttlcache.LoaderFunc[string, *rate.Limiter](
		func(cache *ttlcache.Cache[string, *rate.Limiter], key string) *ttlcache.Item[string, *rate.Limiter] {
			return cache.Set(key, rate.NewLimiter(rl.rate, rl.burst), ttlcache.DefaultTTL)
		},
	)
	return rl.limiters.Get(key, ttlcache.WithLoader(loader)).Value()
}

func clientKey(c *gin.Context) string {
	if key := c.GetString(apiKeyContextKey); key != "" {
		return "key:" + key
	}
	return "ip:" + c.ClientIP()
}

// Middleware returns a Gin middleware that enforces rate limiting.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		limiter := rl.getLimiter(clientKey(c))
		if !limiter.Allow() {
			common.Error(c, http.StatusTooManyRequests, "rate limit exceeded")
			c.Abort()
			return
		}
		c.Next()
	}
}
