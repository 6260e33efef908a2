package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	httpapi "github.com/synapse-qa/synapse-backend/internal/api/http"
	"github.com/synapse-qa/synapse-backend/internal/auth"
	"github.com/synapse-qa/synapse-backend/internal/settings"
)

type Handler struct {
	settings  *settings.Store
	keys      settings.KeyStore
	providers []string
}

func New(store *settings.Store, keys settings.KeyStore, providers []string) *Handler {
	return &Handler{settings: store, keys: keys, providers: providers}
}

func (h *Handler) Register(r gin.IRouter) {
	g := r.Group("/settings")
	g.GET("", h.Get)
	g.PUT("/provider", h.SetProvider)
	g.PUT("/keys", h.SetKeys)
}

// SettingsResponse never carries full API keys.
type SettingsResponse struct {
	settings.Snapshot
	Providers []string         `json:"providers"`
	Keys      settings.APIKeys `json:"keys"`
}

func (h *Handler) respond(c *gin.Context) {
	ctx := c.Request.Context()
	owner := auth.OwnerID(c)

	snap, err := h.settings.For(owner).Snapshot(ctx)
	if err != nil {
		httpapi.RespondError(c, err)
		return
	}
	keys, err := h.keys.GetKeys(ctx, owner)
	if err != nil {
		httpapi.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, SettingsResponse{Snapshot: snap, Providers: h.providers, Keys: keys.Masked()})
}

func (h *Handler) Get(c *gin.Context) {
	h.respond(c)
}

func (h *Handler) SetProvider(c *gin.Context) {
	var req struct {
		Provider string `json:"provider"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpapi.ErrorResponse{Error: "invalid JSON body"})
		return
	}
	if err := h.settings.For(auth.OwnerID(c)).SetProvider(c.Request.Context(), req.Provider); err != nil {
		httpapi.RespondError(c, err)
		return
	}
	h.respond(c)
}

func (h *Handler) SetKeys(c *gin.Context) {
	var req settings.APIKeys
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpapi.ErrorResponse{Error: "invalid JSON body"})
		return
	}
	if err := h.keys.UpsertKeys(c.Request.Context(), auth.OwnerID(c), req); err != nil {
		httpapi.RespondError(c, err)
		return
	}
	h.respond(c)
}
