// file: internal/server/middleware/ratelimit.go
// version: 2.0.0
// guid: 1331705a-85cb-4158-92f5-5ce203d8a0e7

// Package middleware holds the gin middleware used by the trigger API.
package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ClientRateLimiter keeps one token bucket per client IP. Trigger endpoints
// start provider traffic, so callers are throttled before that happens.
type ClientRateLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*clientBucket
	perMinute int
	burst     int
	idleTTL   time.Duration
	now       func() time.Time
}

// NewClientRateLimiter allows perMinute requests per client with the given
// burst. Values below 1 are raised to 1.
func NewClientRateLimiter(perMinute, burst int) *ClientRateLimiter {
	if perMinute < 1 {
		perMinute = 1
	}
	if burst < 1 {
		burst = 1
	}
	return &ClientRateLimiter{
		buckets:   make(map[string]*clientBucket),
		perMinute: perMinute,
		burst:     burst,
		idleTTL:   15 * time.Minute,
		now:       time.Now,
	}
}

func (r *ClientRateLimiter) bucket(client string) *rate.Limiter {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	for key, b := range r.buckets {
		if now.Sub(b.lastSeen) > r.idleTTL {
			delete(r.buckets, key)
		}
	}

	b, ok := r.buckets[client]
	if !ok {
		b = &clientBucket{
			limiter: rate.NewLimiter(rate.Limit(float64(r.perMinute)/60.0), r.burst),
		}
		r.buckets[client] = b
	}
	b.lastSeen = now
	return b.limiter
}

// Middleware rejects requests over the limit with 429 and a Retry-After
// header.
func (r *ClientRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		client := c.ClientIP()
		if client == "" {
			client = "unknown"
		}
		limiter := r.bucket(client)
		now := r.now()
		reservation := limiter.ReserveN(now, 1)
		if delay := reservation.DelayFrom(now); delay > 0 {
			reservation.CancelAt(now)
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(delay.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":  "rate limit exceeded",
				"code":   "RATE_LIMITED",
				"status": http.StatusTooManyRequests,
			})
			return
		}
		c.Next()
	}
}
