package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// tenantLimiters 按组织(未解析时按客户端 IP)分配令牌桶
type tenantLimiters struct {
	mu       sync.Mutex
	rps      rate.Limit
	burst    int
	limiters map[string]*tenantLimiter
	lastGC   time.Time
}

type tenantLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterIdle 超过该时间未访问的令牌桶会被回收
const limiterIdle = 10 * time.Minute

func (l *tenantLimiters) get(key string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastGC) > limiterIdle {
		for k, v := range l.limiters {
			if now.Sub(v.lastSeen) > limiterIdle {
				delete(l.limiters, k)
			}
		}
		l.lastGC = now
	}

	tl, ok := l.limiters[key]
	if !ok {
		tl = &tenantLimiter{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.limiters[key] = tl
	}
	tl.lastSeen = now
	return tl.limiter
}

// RateLimitMiddleware 限流中间件,需放在租户解析之后
func RateLimitMiddleware(rps float64, burst int) gin.HandlerFunc {
	limiters := &tenantLimiters{
		rps:      rate.Limit(rps),
		burst:    burst,
		limiters: make(map[string]*tenantLimiter),
		lastGC:   time.Now(),
	}

	return func(c *gin.Context) {
		key := c.GetString("organization_id")
		if key == "" {
			key = "ip:" + c.ClientIP()
		}
		if !limiters.get(key, time.Now()).Allow() {
			Error(c, http.StatusTooManyRequests, "too many requests", "")
			return
		}
		c.Next()
	}
}
