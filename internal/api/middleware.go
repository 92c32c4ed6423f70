package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"terminal-core/pkg/logger"
)

const limiterTTL = 5 * time.Minute

// ipLimiters hands out one token bucket per client IP and forgets them all
// every limiterTTL.
type ipLimiters struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	byIP    map[string]*rate.Limiter
	resetAt time.Time
}

func newIPLimiters(perSecond float64, burst int) *ipLimiters {
	return &ipLimiters{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		byIP:    make(map[string]*rate.Limiter),
		resetAt: time.Now().Add(limiterTTL),
	}
}

func (l *ipLimiters) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now := time.Now(); now.After(l.resetAt) {
		l.byIP = make(map[string]*rate.Limiter)
		l.resetAt = now.Add(limiterTTL)
	}
	limiter, ok := l.byIP[ip]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.byIP[ip] = limiter
	}
	return limiter
}

// CORSMiddleware handles Cross-Origin Resource Sharing
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, PATCH, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// RequestIDMiddleware adds unique request ID for tracking
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("RequestID", requestID)
		c.Writer.Header().Set("X-Request-ID", requestID)
		c.Next()
	}
}

// RateLimitMiddleware prevents API abuse with per-IP rate limiting
func RateLimitMiddleware(perSecond float64, burst int) gin.HandlerFunc {
	limiters := newIPLimiters(perSecond, burst)
	log := logger.Named("api")
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !limiters.get(ip).Allow() {
			log.Warn("rate limit exceeded", zap.String("ip", ip))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":  "RATE_LIMITED",
				"error": "too many requests, please slow down",
			})
			return
		}

		c.Next()
	}
}

// TimeoutMiddleware puts a deadline on the request context. Handlers run on
// the request goroutine and observe the deadline through their context; a
// request that ran out of time without writing gets a 504.
func TimeoutMiddleware(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return
		}
		logger.Named("api").Warn("request timeout", zap.String("method", c.Request.Method), zap.String("path", c.Request.URL.Path))
		if !c.Writer.Written() {
			c.AbortWithStatusJSON(http.StatusGatewayTimeout, gin.H{
				"code":  "TIMEOUT",
				"error": "request took too long to process",
			})
		}
	}
}

// RequestLogger logs all API requests with timing and status.
func RequestLogger() gin.HandlerFunc {
	log := logger.Named("api")
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		requestID := c.GetString("RequestID")
		if len(requestID) > 8 {
			requestID = requestID[:8]
		}
		fields := []zap.Field{
			zap.String("request_id", requestID),
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			log.Error("request", fields...)
			return
		}
		log.Debug("request", fields...)
	}
}
