package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/AnTengye/contractchat/pkg/logger"
	"github.com/gin-gonic/gin"
)

// Throttle counts calls per route in fixed windows. Every route gets its own
// window, started by its first call.
type Throttle struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	now     func() time.Time
	buckets map[string]*bucket
}

type bucket struct {
	start time.Time
	count int
}

func NewThrottle(limit int, window time.Duration) *Throttle {
	return &Throttle{
		limit:   limit,
		window:  window,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

// Allow records a call for key and reports whether it fits the window. The
// second value is how long until the window resets.
func (t *Throttle) Allow(key string) (bool, time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	b, ok := t.buckets[key]
	if !ok || now.Sub(b.start) >= t.window {
		b = &bucket{start: now}
		t.buckets[key] = b
	}
	retry := b.start.Add(t.window).Sub(now)
	if b.count >= t.limit {
		return false, retry
	}
	b.count++
	return true, retry
}

// Handler limits the route it is attached to.
func (t *Throttle) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.Request.Method + " " + c.FullPath()
		ok, retry := t.Allow(key)
		if !ok {
			logger.Warn(c.Request.Context(), "route throttled", "route", key)
			c.Header("Retry-After", strconv.Itoa(int(retry.Seconds()+0.999)))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "too many requests, please try again later",
			})
			return
		}
		c.Next()
	}
}
