package handler

import (
	"github.com/gin-gonic/gin"

	"invitetree/graph/internal/service"
	"invitetree/graph/pkg/response"
)

// RegistrationHandler exposes the token-gated registration path. The
// identity service has already handled credentials by the time this is
// called; the core's job is consuming the token and growing the tree.
type RegistrationHandler struct {
	tokenService service.TokenService
}

func NewRegistrationHandler(tokenService service.TokenService) *RegistrationHandler {
	return &RegistrationHandler{tokenService: tokenService}
}

type RegisterRequest struct {
	InviteToken string `json:"invite_token" binding:"required"`
	DisplayName string `json:"display_name" binding:"required,max=64"`
}

// Register consumes an invite token and creates the node.
func (h *RegistrationHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	node, err := h.tokenService.Consume(c.Request.Context(), req.InviteToken, service.Registration{
		DisplayName: req.DisplayName,
		Meta:        requestMeta(c),
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, node)
}
