package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/iamasit07/guess-master/backend/internal/domain"
	"golang.org/x/time/rate"
)

// UserRateLimiter hands out one token bucket per authenticated user.
type UserRateLimiter struct {
	mu       sync.Mutex
	limiters map[domain.PlayerID]*userLimiter
	limit    rate.Limit
	burst    int
	idle     time.Duration
}

type userLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewUserRateLimiter(limit rate.Limit, burst int) *UserRateLimiter {
	return &UserRateLimiter{
		limiters: make(map[domain.PlayerID]*userLimiter),
		limit:    limit,
		burst:    burst,
		idle:     10 * time.Minute,
	}
}

func (l *UserRateLimiter) allow(id domain.PlayerID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	ul, ok := l.limiters[id]
	if !ok {
		ul = &userLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[id] = ul
	}
	ul.lastSeen = now

	// drop buckets of users that went quiet
	if len(l.limiters) > 1024 {
		for k, v := range l.limiters {
			if now.Sub(v.lastSeen) > l.idle {
				delete(l.limiters, k)
			}
		}
	}
	return ul.limiter.Allow()
}

// Middleware rejects requests beyond the caller's budget with 429
func (l *UserRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := UserID(c)
		if !id.IsZero() && !l.allow(id) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"message": "Too many requests, slow down"})
			return
		}
		c.Next()
	}
}
