package middleware

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"invitetree/graph/pkg/response"
)

// Recovery converts a handler panic into a 500 instead of tearing the
// connection down.
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("panic recovered",
					zap.Any("error", err),
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.String("client_ip", c.ClientIP()),
				)
				response.InternalError(c, "internal server error")
				c.Abort()
			}
		}()
		c.Next()
	}
}
