package middleware

import (
	"github.com/gin-gonic/gin"

	jwtpkg "invitetree/graph/pkg/jwt"
	"invitetree/graph/pkg/response"
)

// AdminAuth checks that the authenticated actor carries an admin role.
// Must be used after JWTAuth middleware.
func AdminAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		claimsVal, exists := c.Get(ContextKeyActorClaims)
		if !exists {
			response.Unauthorized(c, "missing authentication")
			c.Abort()
			return
		}
		claims, ok := claimsVal.(*jwtpkg.Claims)
		if !ok {
			response.Unauthorized(c, "invalid claims")
			c.Abort()
			return
		}

		if !claims.Role.IsAdmin() {
			response.Forbidden(c, "admin access required")
			c.Abort()
			return
		}

		c.Next()
	}
}
