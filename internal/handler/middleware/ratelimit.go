package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"invitetree/graph/internal/config"
	"invitetree/graph/internal/repository"
	"invitetree/graph/pkg/response"
)

// RateLimit caps calls per client IP and path over a fixed window,
// counting in the state store. A store failure lets the request through:
// rate limiting is protection, not a correctness dependency.
func RateLimit(cfg config.RateLimitConfig, store repository.StateStore, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cfg.Enabled {
			c.Next()
			return
		}

		key := fmt.Sprintf("rate_limit:%s:%s", c.Request.URL.Path, c.ClientIP())
		count, err := store.Incr(c.Request.Context(), key, cfg.Period)
		if err != nil {
			logger.Warn("rate limit store unavailable", zap.Error(err))
			c.Next()
			return
		}

		if count > int64(cfg.Calls) {
			response.TooManyRequests(c, "rate limit exceeded")
			c.Abort()
			return
		}
		c.Next()
	}
}
