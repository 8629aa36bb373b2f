package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/imagehost/backend/internal/logger"
	"github.com/imagehost/backend/internal/services"
)

// APIRateLimitKeyPrefix namespaces general API counters in a shared limiter backend.
const APIRateLimitKeyPrefix = "api:"

// RateLimiter creates a per-IP rate limiting middleware. Limiter failures let
// the request through.
func RateLimiter(limiter services.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := ClientIP(c)
		count, err := limiter.Hit(c.Request.Context(), APIRateLimitKeyPrefix+clientIP)
		if err != nil {
			logger.WithField("client_ip", clientIP).WithError(err).Warn("Rate limiter unavailable, bypassing")
			c.Next()
			return
		}

		limit := int64(limiter.Limit())
		remaining := limit - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", limit))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))

		if count > limit {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": services.MsgTooManyRequests,
				"code":  services.KindRateLimited,
			})
			return
		}

		c.Next()
	}
}
