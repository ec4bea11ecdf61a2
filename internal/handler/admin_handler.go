package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"invitetree/graph/internal/model"
	"invitetree/graph/internal/repository"
	"invitetree/graph/internal/service"
	"invitetree/graph/pkg/response"
)

// AdminHandler is the investigation and enforcement surface: traversal
// queries, health history, quota adjustment, pruning, and the audit log.
type AdminHandler struct {
	treeService   service.TreeService
	tokenService  service.TokenService
	healthService service.HealthService
	pruneService  service.PruneService
	quotaService  service.QuotaService
	auditService  service.AuditService
}

func NewAdminHandler(
	treeService service.TreeService,
	tokenService service.TokenService,
	healthService service.HealthService,
	pruneService service.PruneService,
	quotaService service.QuotaService,
	auditService service.AuditService,
) *AdminHandler {
	return &AdminHandler{
		treeService:   treeService,
		tokenService:  tokenService,
		healthService: healthService,
		pruneService:  pruneService,
		quotaService:  quotaService,
		auditService:  auditService,
	}
}

// Descendants enumerates a subtree with depth annotations.
func (h *AdminHandler) Descendants(c *gin.Context) {
	rootID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	includeDeleted := c.Query("include_deleted") == "true"

	descs, err := h.treeService.Descendants(c.Request.Context(), rootID, maxDepthQuery(c), includeDeleted)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, descs)
}

// Tree returns the nested display structure of a subtree.
func (h *AdminHandler) Tree(c *gin.Context) {
	rootID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	tree, err := h.treeService.Tree(c.Request.Context(), rootID, maxDepthQuery(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, tree)
}

// SubtreeStats returns banded composition counts for a subtree.
func (h *AdminHandler) SubtreeStats(c *gin.Context) {
	rootID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	stats, err := h.treeService.SubtreeStats(c.Request.Context(), rootID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, stats)
}

// Ancestors returns a node's inviter chain for investigations.
func (h *AdminHandler) Ancestors(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	ancestors, err := h.treeService.Ancestors(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, ancestors)
}

type FlagRequest struct {
	Reason string `json:"reason"`
}

func (h *AdminHandler) Flag(c *gin.Context) {
	h.setFlag(c, true)
}

func (h *AdminHandler) Unflag(c *gin.Context) {
	h.setFlag(c, false)
}

func (h *AdminHandler) setFlag(c *gin.Context, flag bool) {
	actorID, err := getActorIDFromContext(c)
	if err != nil {
		response.Unauthorized(c, "invalid actor context")
		return
	}
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req FlagRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	if flag {
		err = h.treeService.Flag(c.Request.Context(), id, actorID, req.Reason, requestMeta(c))
	} else {
		err = h.treeService.Unflag(c.Request.Context(), id, actorID, req.Reason, requestMeta(c))
	}
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, gin.H{"id": id, "flagged": flag})
}

type AdjustQuotaRequest struct {
	Quota  int    `json:"quota" binding:"min=0"`
	Reason string `json:"reason"`
}

func (h *AdminHandler) AdjustQuota(c *gin.Context) {
	actorID, err := getActorIDFromContext(c)
	if err != nil {
		response.Unauthorized(c, "invalid actor context")
		return
	}
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req AdjustQuotaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	node, err := h.quotaService.Adjust(c.Request.Context(), id, req.Quota, actorID, req.Reason, requestMeta(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, node)
}

// HealthHistory returns a node's accumulated snapshots, newest first.
func (h *AdminHandler) HealthHistory(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	history, err := h.healthService.History(c.Request.Context(), id, limit)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, history)
}

// PrunePreview reports what an execute would remove; never mutates.
func (h *AdminHandler) PrunePreview(c *gin.Context) {
	rootID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	preview, err := h.pruneService.Preview(c.Request.Context(), rootID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, preview)
}

type PruneExecuteRequest struct {
	Reason string `json:"reason" binding:"required"`
}

func (h *AdminHandler) PruneExecute(c *gin.Context) {
	actorID, err := getActorIDFromContext(c)
	if err != nil {
		response.Unauthorized(c, "invalid actor context")
		return
	}
	rootID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req PruneExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	op, err := h.pruneService.Execute(c.Request.Context(), rootID, req.Reason, actorID, requestMeta(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, op)
}

func (h *AdminHandler) PruneRollback(c *gin.Context) {
	actorID, err := getActorIDFromContext(c)
	if err != nil {
		response.Unauthorized(c, "invalid actor context")
		return
	}
	opID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	op, err := h.pruneService.Rollback(c.Request.Context(), opID, actorID, requestMeta(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, op)
}

func (h *AdminHandler) PruneGet(c *gin.Context) {
	opID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	op, err := h.pruneService.Get(c.Request.Context(), opID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, op)
}

func (h *AdminHandler) PruneList(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	ops, err := h.pruneService.List(c.Request.Context(), limit, offset)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, ops)
}

// AuditQuery pages through the forensic log, newest first.
func (h *AdminHandler) AuditQuery(c *gin.Context) {
	filter := repository.AuditFilter{}

	if kind := c.Query("event_kind"); kind != "" {
		k := model.EventKind(kind)
		filter.Kind = &k
	}
	if actor := c.Query("actor_id"); actor != "" {
		id, err := uuid.Parse(actor)
		if err != nil {
			response.BadRequest(c, "invalid actor_id")
			return
		}
		filter.ActorID = &id
	}
	if target := c.Query("target_id"); target != "" {
		id, err := uuid.Parse(target)
		if err != nil {
			response.BadRequest(c, "invalid target_id")
			return
		}
		filter.TargetID = &id
	}
	if from := c.Query("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			response.BadRequest(c, "invalid from timestamp")
			return
		}
		filter.From = &t
	}
	if to := c.Query("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			response.BadRequest(c, "invalid to timestamp")
			return
		}
		filter.To = &t
	}
	filter.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "100"))
	filter.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))

	page, err := h.auditService.Query(c.Request.Context(), filter)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, page)
}

// RunSweep triggers the expiry sweep outside the cron cadence.
func (h *AdminHandler) RunSweep(c *gin.Context) {
	count, err := h.tokenService.SweepExpired(c.Request.Context(), time.Now())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, gin.H{"swept": count})
}

// RunHealthBatch triggers the scoring pass outside the cron cadence.
func (h *AdminHandler) RunHealthBatch(c *gin.Context) {
	count, err := h.healthService.RunBatch(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, gin.H{"scored": count})
}
