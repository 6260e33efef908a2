package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synapse-qa/synapse-backend/internal/auth"
	"github.com/synapse-qa/synapse-backend/internal/llm"
	"github.com/synapse-qa/synapse-backend/internal/settings"
)

type stubProvider struct {
	name  string
	out   any
	err   error
	got   llm.Request
	calls int
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Analyze(_ context.Context, req llm.Request) (any, error) {
	s.got = req
	s.calls++
	return s.out, s.err
}

func setupRouter(store *settings.Store, providers ...llm.Provider) *gin.Engine {
	gin.SetMode(gin.TestMode)
	if store == nil {
		store = settings.NewStore(settings.NewMemoryKV(), 5, []string{"gemini", "groq"})
	}
	r := gin.New()
	New(llm.NewRegistry(providers...), store).Register(r.Group("/api", auth.RequireOwner(nil, true)))
	return r
}

func post(t *testing.T, r http.Handler, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-Id", "u1")
	r.ServeHTTP(w, req)
	return w
}

func TestAnalyze_ReturnsRawReply(t *testing.T) {
	stub := &stubProvider{name: "groq", out: map[string]any{"resumen": "ok", "tareas": []any{}}}
	store := settings.NewStore(settings.NewMemoryKV(), 5, []string{"groq"})
	r := setupRouter(store, stub)

	w := post(t, r, AnalyzeRequest{Input: "todo list", Provider: "groq", APIKey: "k", IsTask: true})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"resumen":"ok","tareas":[]}`, w.Body.String())
	assert.Equal(t, llm.ModeTasks, stub.got.Mode)
	assert.Equal(t, "k", stub.got.APIKey)

	credits, err := store.For("u1").Credits(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, credits, "own key costs no credit")
}

func TestAnalyze_SystemKeySpendsCredits(t *testing.T) {
	ctx := context.Background()
	stub := &stubProvider{name: "groq", out: map[string]any{"issues": []any{}}}
	store := settings.NewStore(settings.NewMemoryKV(), 1, []string{"groq"})
	r := setupRouter(store, stub)

	w := post(t, r, AnalyzeRequest{Input: "logs", Provider: "groq"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "", stub.got.APIKey)

	credits, err := store.For("u1").Credits(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, credits)

	w = post(t, r, AnalyzeRequest{Input: "logs", Provider: "groq"})
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Equal(t, 1, stub.calls, "no provider call once credits are gone")

	w = post(t, r, AnalyzeRequest{Input: "logs", Provider: "groq", APIKey: "mine"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAnalyze_SystemKeyNeverReachesUpstreamWithoutCredits(t *testing.T) {
	hits := 0
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"issues\":[]}"}}]}`))
	}))
	defer upstream.Close()

	groq := llm.NewGroq(llm.Config{APIKey: "SYSTEM-SECRET", BaseURL: upstream.URL})
	store := settings.NewStore(settings.NewMemoryKV(), 1, []string{"groq"})
	_, err := store.For("u1").ConsumeCredit(context.Background())
	require.NoError(t, err)
	r := setupRouter(store, groq)

	w := post(t, r, AnalyzeRequest{Input: "logs", Provider: "groq"})
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Equal(t, 0, hits)
}

func TestAnalyze_NoSystemKeyConfigured(t *testing.T) {
	groq := llm.NewGroq(llm.Config{BaseURL: "http://127.0.0.1:1"})
	r := setupRouter(nil, groq)

	w := post(t, r, AnalyzeRequest{Input: "logs", Provider: "groq"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_key")
}

func TestAnalyze_Errors(t *testing.T) {
	quota := &stubProvider{name: "gemini", err: &llm.ProviderError{Provider: "gemini", Kind: llm.KindQuota, Status: 429, Message: "quota exceeded"}}
	r := setupRouter(nil, quota)

	t.Run("empty input", func(t *testing.T) {
		w := post(t, r, AnalyzeRequest{Input: "   "})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown provider", func(t *testing.T) {
		w := post(t, r, AnalyzeRequest{Input: "x", Provider: "openai"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("provider quota surfaces as 429", func(t *testing.T) {
		w := post(t, r, AnalyzeRequest{Input: "x"})
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.JSONEq(t, `{"error":"quota exceeded","kind":"quota"}`, w.Body.String())
	})

	t.Run("bad json", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/analyze", bytes.NewBufferString("{")))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
