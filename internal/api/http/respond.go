package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/synapse-qa/synapse-backend/internal/audits/domain"
	"github.com/synapse-qa/synapse-backend/internal/llm"
	"github.com/synapse-qa/synapse-backend/internal/logging"
	"github.com/synapse-qa/synapse-backend/internal/settings"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// StatusFor maps a domain error to an HTTP status.
func StatusFor(err error) int {
	var (
		perr    *llm.ProviderError
		invalid *domain.InvalidResponseError
	)
	switch {
	case errors.As(err, &perr):
		switch perr.Kind {
		case llm.KindQuota:
			return http.StatusTooManyRequests
		case llm.KindInvalidKey:
			return http.StatusUnauthorized
		}
		return http.StatusBadGateway
	case errors.As(err, &invalid):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrAuditNotFound),
		errors.Is(err, domain.ErrFindingNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrEmptyInput),
		errors.Is(err, llm.ErrUnknownProvider),
		errors.Is(err, settings.ErrInvalidProvider):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrCreditsExhausted):
		return http.StatusPaymentRequired
	case errors.Is(err, domain.ErrSaveInFlight):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// RespondError writes err with its mapped status. Server-side failures are logged
// and their detail is not echoed.
func RespondError(c *gin.Context, err error) {
	status := StatusFor(err)
	body := ErrorResponse{Error: err.Error()}

	var perr *llm.ProviderError
	if errors.As(err, &perr) {
		body = ErrorResponse{Error: perr.Message, Kind: string(perr.Kind)}
	}
	if status == http.StatusInternalServerError {
		logging.NewLogger(c.Request.Context()).LogError(c.FullPath(), err)
		body.Error = "internal error"
		var serr *domain.StoreError
		if errors.As(err, &serr) {
			body.Error = "failed to " + serr.Op
		}
	}
	c.AbortWithStatusJSON(status, body)
}
