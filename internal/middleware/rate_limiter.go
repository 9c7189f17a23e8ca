package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/Mtaasisi/NEON-POS-sub042/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type window struct {
	count int
	ends  time.Time
}

// RateLimiter is a fixed-window request limiter keyed by client IP.
type RateLimiter struct {
	limit  int
	period time.Duration

	mu      sync.Mutex
	clients map[string]*window
}

func NewRateLimiter(limit int, period time.Duration) *RateLimiter {
	return &RateLimiter{limit: limit, period: period, clients: make(map[string]*window)}
}

// Allow records one request for key and reports whether it is within the limit,
// plus the time the current window ends.
func (l *RateLimiter) Allow(key string, now time.Time) (bool, time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.clients[key]
	if !ok || now.After(w.ends) {
		w = &window{ends: now.Add(l.period)}
		l.clients[key] = w
	}
	w.count++
	return w.count <= l.limit, w.ends
}

func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		now := time.Now()
		ok, ends := l.Allow(c.ClientIP(), now)
		if !ok {
			secs := int(ends.Sub(now).Seconds()) + 1
			c.Header("Retry-After", strconv.Itoa(secs))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.New("rate_limited", "too many requests"))
			return
		}
		c.Next()
	}
}

// RunPurge drops expired windows every interval until ctx is done.
func (l *RateLimiter) RunPurge(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.mu.Lock()
			purged := 0
			for k, w := range l.clients {
				if now.After(w.ends) {
					delete(l.clients, k)
					purged++
				}
			}
			l.mu.Unlock()
			if purged > 0 {
				log.Debug().Int("purged", purged).Msg("rate limiter entries purged")
			}
		}
	}
}
