package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	httpapi "github.com/synapse-qa/synapse-backend/internal/api/http"
	"github.com/synapse-qa/synapse-backend/internal/audits/domain"
	"github.com/synapse-qa/synapse-backend/internal/auth"
	"github.com/synapse-qa/synapse-backend/internal/llm"
	"github.com/synapse-qa/synapse-backend/internal/logging"
	"github.com/synapse-qa/synapse-backend/internal/settings"
)

// AnalyzeRequest is the body of POST /api/analyze.
type AnalyzeRequest struct {
	Input    string `json:"input"`
	Provider string `json:"provider"`
	APIKey   string `json:"apiKey,omitempty"`
	IsTask   bool   `json:"isTask"`
}

// Handler proxies analysis calls to a provider and returns the raw reply. It must
// be mounted behind auth.RequireOwner: a call without an API key runs on the
// system key and costs the owner one credit.
type Handler struct {
	providers *llm.Registry
	settings  *settings.Store
}

func New(providers *llm.Registry, store *settings.Store) *Handler {
	return &Handler{providers: providers, settings: store}
}

func (h *Handler) Register(r gin.IRouter) {
	r.POST("/analyze", h.Analyze)
}

func (h *Handler) Analyze(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpapi.ErrorResponse{Error: "invalid JSON body"})
		return
	}
	if strings.TrimSpace(req.Input) == "" {
		httpapi.RespondError(c, domain.ErrEmptyInput)
		return
	}
	if req.Provider == "" {
		req.Provider = llm.GeminiName
	}

	p, err := h.providers.Get(req.Provider)
	if err != nil {
		httpapi.RespondError(c, err)
		return
	}

	ctx := c.Request.Context()
	owner := auth.OwnerID(c)
	systemKey := strings.TrimSpace(req.APIKey) == ""
	if systemKey {
		if !llm.SystemKeyAvailable(p) {
			httpapi.RespondError(c, llm.ErrNoSystemKey(p.Name()))
			return
		}
		credits, err := h.settings.For(owner).Credits(ctx)
		if err != nil {
			httpapi.RespondError(c, err)
			return
		}
		if credits <= 0 {
			httpapi.RespondError(c, domain.ErrCreditsExhausted)
			return
		}
	}

	logger := logging.NewLogger(ctx).With("owner_id", owner)
	logger.LogInfof("analyze_proxy", "provider=%s task=%t system_key=%t input_len=%d", req.Provider, req.IsTask, systemKey, len(req.Input))

	out, err := p.Analyze(ctx, llm.Request{
		Input:  req.Input,
		APIKey: req.APIKey,
		Mode:   llm.ModeFor(req.IsTask),
	})
	if err != nil {
		httpapi.RespondError(c, err)
		return
	}

	if systemKey {
		if _, err := h.settings.For(owner).ConsumeCredit(ctx); err != nil {
			logger.LogWarnf("analyze_proxy", "failed to consume credit: %v", err)
		}
	}
	c.JSON(http.StatusOK, out)
}
