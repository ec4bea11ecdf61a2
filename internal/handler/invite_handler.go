package handler

import (
	"github.com/gin-gonic/gin"

	"invitetree/graph/internal/service"
	"invitetree/graph/pkg/response"
)

type InviteHandler struct {
	tokenService service.TokenService
}

func NewInviteHandler(tokenService service.TokenService) *InviteHandler {
	return &InviteHandler{tokenService: tokenService}
}

type CreateInvitesRequest struct {
	Count int    `json:"count"`
	Note  string `json:"note"`
}

// Create issues invite tokens for the authenticated actor.
func (h *InviteHandler) Create(c *gin.Context) {
	actorID, err := getActorIDFromContext(c)
	if err != nil {
		response.Unauthorized(c, "invalid actor context")
		return
	}

	var req CreateInvitesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	tokens, err := h.tokenService.Create(c.Request.Context(), actorID, req.Count, req.Note, requestMeta(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, tokens)
}

// List returns the tokens created by the authenticated actor.
func (h *InviteHandler) List(c *gin.Context) {
	actorID, err := getActorIDFromContext(c)
	if err != nil {
		response.Unauthorized(c, "invalid actor context")
		return
	}

	tokens, err := h.tokenService.ListByOwner(c.Request.Context(), actorID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, tokens)
}

// Validate checks a token value. Public, side-effect-free, rate-limited.
func (h *InviteHandler) Validate(c *gin.Context) {
	result, err := h.tokenService.Validate(c.Request.Context(), c.Param("token"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, result)
}

type RevokeRequest struct {
	Reason string `json:"reason"`
}

// Revoke cancels an unused token and credits the quota back to its
// creator. The actor is recorded on the audit event.
func (h *InviteHandler) Revoke(c *gin.Context) {
	actorID, err := getActorIDFromContext(c)
	if err != nil {
		response.Unauthorized(c, "invalid actor context")
		return
	}
	tokenID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req RevokeRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	token, err := h.tokenService.Revoke(c.Request.Context(), tokenID, actorID, req.Reason, requestMeta(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, token)
}
