package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	jwtpkg "invitetree/graph/pkg/jwt"
	"invitetree/graph/pkg/response"
)

const ContextKeyActorClaims = "actor_claims"

// JWTAuth validates the actor token issued by the identity service and
// stores its claims on the request context. The core trusts that
// service's subject and role claims and performs no authentication of
// its own.
func JWTAuth(jwtManager *jwtpkg.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, "invalid authorization format")
			c.Abort()
			return
		}

		claims, err := jwtManager.Validate(parts[1])
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}

		c.Set(ContextKeyActorClaims, claims)
		c.Next()
	}
}
