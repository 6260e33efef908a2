package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/synapse-qa/synapse-backend/internal/audits/domain"
	"github.com/synapse-qa/synapse-backend/internal/llm"
	"github.com/synapse-qa/synapse-backend/internal/settings"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{&llm.ProviderError{Kind: llm.KindQuota}, http.StatusTooManyRequests},
		{&llm.ProviderError{Kind: llm.KindInvalidKey}, http.StatusUnauthorized},
		{&llm.ProviderError{Kind: llm.KindMalformed}, http.StatusBadGateway},
		{&domain.InvalidResponseError{Reason: "x"}, http.StatusBadGateway},
		{&domain.StoreError{Op: "insert issues", Err: errors.New("x")}, http.StatusInternalServerError},
		{fmt.Errorf("wrapped: %w", domain.ErrAuditNotFound), http.StatusNotFound},
		{domain.ErrFindingNotFound, http.StatusNotFound},
		{domain.ErrEmptyInput, http.StatusBadRequest},
		{fmt.Errorf("%w: %q", llm.ErrUnknownProvider, "x"), http.StatusBadRequest},
		{settings.ErrInvalidProvider, http.StatusBadRequest},
		{domain.ErrCreditsExhausted, http.StatusPaymentRequired},
		{domain.ErrSaveInFlight, http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, StatusFor(tc.err), tc.err.Error())
	}
}

func TestRespondError_HidesInternalDetail(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	RespondError(c, &domain.StoreError{Op: "insert issues", Err: errors.New("pq: password authentication failed")})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"failed to insert issues"}`, w.Body.String())
}
