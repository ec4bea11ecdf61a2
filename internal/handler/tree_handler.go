package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"invitetree/graph/internal/service"
	"invitetree/graph/pkg/response"
)

type TreeHandler struct {
	treeService   service.TreeService
	healthService service.HealthService
}

func NewTreeHandler(treeService service.TreeService, healthService service.HealthService) *TreeHandler {
	return &TreeHandler{treeService: treeService, healthService: healthService}
}

// Ancestors returns the actor's chain of inviters, nearest first.
func (h *TreeHandler) Ancestors(c *gin.Context) {
	actorID, err := getActorIDFromContext(c)
	if err != nil {
		response.Unauthorized(c, "invalid actor context")
		return
	}
	ancestors, err := h.treeService.Ancestors(c.Request.Context(), actorID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, ancestors)
}

// Children returns the nodes the actor directly invited.
func (h *TreeHandler) Children(c *gin.Context) {
	actorID, err := getActorIDFromContext(c)
	if err != nil {
		response.Unauthorized(c, "invalid actor context")
		return
	}
	children, err := h.treeService.DirectChildren(c.Request.Context(), actorID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, children)
}

// Health returns the actor's latest health snapshot, if any.
func (h *TreeHandler) Health(c *gin.Context) {
	actorID, err := getActorIDFromContext(c)
	if err != nil {
		response.Unauthorized(c, "invalid actor context")
		return
	}
	snapshot, err := h.healthService.Latest(c.Request.Context(), actorID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, snapshot)
}

// maxDepthQuery reads the optional depth limit; 0 means unlimited.
func maxDepthQuery(c *gin.Context) int {
	depth, err := strconv.Atoi(c.DefaultQuery("max_depth", "0"))
	if err != nil || depth < 0 {
		return 0
	}
	return depth
}
