package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"invitetree/graph/internal/handler/middleware"
	"invitetree/graph/internal/service"
	jwtpkg "invitetree/graph/pkg/jwt"
	"invitetree/graph/pkg/response"
)

var ErrNoClaims = errors.New("claims not found in context")

func getActorIDFromContext(c *gin.Context) (uuid.UUID, error) {
	claimsVal, exists := c.Get(middleware.ContextKeyActorClaims)
	if !exists {
		return uuid.Nil, ErrNoClaims
	}
	claims, ok := claimsVal.(*jwtpkg.Claims)
	if !ok {
		return uuid.Nil, ErrNoClaims
	}
	return uuid.Parse(claims.Subject)
}

func requestMeta(c *gin.Context) service.RequestMeta {
	return service.RequestMeta{
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.BadRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// respondServiceError maps the service error taxonomy onto HTTP
// responses. Internal failures stay opaque to the caller.
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidToken):
		response.NotFound(c, "invite token not found")
	case errors.Is(err, service.ErrTokenExpired):
		response.Gone(c, "invite token expired")
	case errors.Is(err, service.ErrTokenRevoked):
		response.Gone(c, "invite token revoked")
	case errors.Is(err, service.ErrTokenAlreadyUsed):
		response.Conflict(c, "invite token already used")
	case errors.Is(err, service.ErrTokenAlreadyRevoked):
		response.Conflict(c, "invite token already revoked")
	case errors.Is(err, service.ErrQuotaExceeded):
		response.BadRequest(c, "insufficient invite quota")
	case errors.Is(err, service.ErrQuotaBelowUsed):
		response.BadRequest(c, "quota below current usage")
	case errors.Is(err, service.ErrParentNotFound):
		response.BadRequest(c, "parent node not found")
	case errors.Is(err, service.ErrParentDeleted):
		response.Gone(c, "parent node is deleted")
	case errors.Is(err, service.ErrNodeNotFound):
		response.NotFound(c, "node not found")
	case errors.Is(err, service.ErrOperationNotFound):
		response.NotFound(c, "prune operation not found")
	case errors.Is(err, service.ErrAlreadyPruned):
		response.Conflict(c, "node already pruned")
	case errors.Is(err, service.ErrPruneConflict):
		response.Conflict(c, "subtree changed during prune, retry")
	case errors.Is(err, service.ErrCannotPruneCore):
		response.BadRequest(c, "cannot prune a core member")
	case errors.Is(err, service.ErrRollbackNotAllowed):
		response.Conflict(c, "operation cannot be rolled back")
	case errors.Is(err, service.ErrInvalidStatus):
		response.Conflict(c, "invalid status transition")
	default:
		// IntegrityViolation and persistence failures surface opaquely.
		response.InternalError(c, "operation failed")
	}
}
