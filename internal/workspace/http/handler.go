package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	httpapi "github.com/synapse-qa/synapse-backend/internal/api/http"
	"github.com/synapse-qa/synapse-backend/internal/audits/domain"
	"github.com/synapse-qa/synapse-backend/internal/auth"
	"github.com/synapse-qa/synapse-backend/internal/workspace"
)

type Handler struct {
	workspaces *workspace.Manager
}

func New(workspaces *workspace.Manager) *Handler {
	return &Handler{workspaces: workspaces}
}

// Register mounts the workspace and audit routes on an authenticated group.
func (h *Handler) Register(r gin.IRouter) {
	ws := r.Group("/workspace")
	ws.GET("", h.Get)
	ws.POST("/analyze", h.Analyze)
	ws.POST("/clear", h.Clear)
	ws.POST("/issues/:id/toggle", h.ToggleDone)
	ws.PATCH("/issues/:id", h.UpdateIssue)
	ws.PATCH("/summary", h.UpdateSummary)
	ws.GET("/notifications", h.Notifications)

	audits := r.Group("/audits")
	audits.GET("", h.ListAudits)
	audits.POST("/:id/load", h.LoadAudit)
	audits.DELETE("/:id", h.DeleteAudit)
}

func (h *Handler) current(c *gin.Context) *workspace.Workspace {
	return h.workspaces.For(auth.OwnerID(c))
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, httpapi.ErrorResponse{Error: msg})
}

func (h *Handler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, h.current(c).View())
}

func (h *Handler) Analyze(c *gin.Context) {
	var req workspace.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}
	view, err := h.current(c).Submit(c.Request.Context(), req)
	if err != nil {
		httpapi.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) Clear(c *gin.Context) {
	c.JSON(http.StatusOK, h.current(c).Clear())
}

func externalID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		badRequest(c, "issue id must be an integer")
		return 0, false
	}
	return id, true
}

func (h *Handler) ToggleDone(c *gin.Context) {
	id, ok := externalID(c)
	if !ok {
		return
	}
	f, err := h.current(c).ToggleDone(c.Request.Context(), id)
	if err != nil {
		httpapi.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

// UpdateIssueRequest carries the fields to change; absent fields are left alone.
type UpdateIssueRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"desc"`
	Fix         *string `json:"fix"`
}

func (h *Handler) UpdateIssue(c *gin.Context) {
	id, ok := externalID(c)
	if !ok {
		return
	}
	var req UpdateIssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}
	if req.Title == nil && req.Description == nil && req.Fix == nil {
		badRequest(c, "one of title, desc or fix is required")
		return
	}

	w := h.current(c)
	ctx := c.Request.Context()
	var (
		f   domain.Finding
		err error
	)
	if req.Title != nil {
		if f, err = w.UpdateTitle(ctx, id, *req.Title); err != nil {
			httpapi.RespondError(c, err)
			return
		}
	}
	if req.Description != nil {
		if f, err = w.UpdateDescription(ctx, id, *req.Description); err != nil {
			httpapi.RespondError(c, err)
			return
		}
	}
	if req.Fix != nil {
		if f, err = w.UpdateFix(ctx, id, *req.Fix); err != nil {
			httpapi.RespondError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, f)
}

func (h *Handler) UpdateSummary(c *gin.Context) {
	var req struct {
		Summary *string `json:"summary"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Summary == nil {
		badRequest(c, "summary is required")
		return
	}
	c.JSON(http.StatusOK, h.current(c).UpdateSummary(c.Request.Context(), *req.Summary))
}

func (h *Handler) Notifications(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"notifications": h.current(c).DrainNotifications()})
}

func (h *Handler) ListAudits(c *gin.Context) {
	entries, err := h.current(c).RefreshHistory(c.Request.Context())
	if err != nil {
		httpapi.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"audits": entries})
}

func (h *Handler) LoadAudit(c *gin.Context) {
	view, err := h.current(c).LoadAudit(c.Request.Context(), c.Param("id"))
	if err != nil {
		httpapi.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) DeleteAudit(c *gin.Context) {
	view, err := h.current(c).DeleteAudit(c.Request.Context(), c.Param("id"))
	if err != nil {
		httpapi.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
