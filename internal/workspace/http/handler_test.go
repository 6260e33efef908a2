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

	"github.com/synapse-qa/synapse-backend/internal/audits/memstore"
	"github.com/synapse-qa/synapse-backend/internal/auth"
	"github.com/synapse-qa/synapse-backend/internal/llm"
	"github.com/synapse-qa/synapse-backend/internal/settings"
	"github.com/synapse-qa/synapse-backend/internal/workspace"
)

type cannedProvider struct {
	reply any
	err   error
}

func (cannedProvider) Name() string { return llm.GroqName }

func (p cannedProvider) Analyze(context.Context, llm.Request) (any, error) {
	return p.reply, p.err
}

var spanishReply = map[string]any{
	"resumen":           "ok",
	"tareas_pendientes": []any{map[string]any{"titulo": "Fix X", "prioridad": "alta"}},
}

func setupRouter(t *testing.T, p llm.Provider) (*gin.Engine, *workspace.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	m := workspace.NewManager(workspace.Deps{
		Providers: llm.NewRegistry(p),
		Store:     memstore.New(),
		Settings:  settings.NewStore(settings.NewMemoryKV(), 0, []string{llm.GroqName}),
	})
	r := gin.New()
	api := r.Group("/api/v1")
	api.Use(auth.RequireOwner(nil, true))
	New(m).Register(api)
	return r, m
}

func do(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-Id", "u1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeView(t *testing.T, w *httptest.ResponseRecorder) workspace.View {
	t.Helper()
	var v workspace.View
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestWorkspaceFlow(t *testing.T) {
	r, m := setupRouter(t, cannedProvider{reply: spanishReply})

	w := do(t, r, http.MethodPost, "/api/v1/workspace/analyze", workspace.SubmitRequest{Input: "pendientes", Provider: "groq", UseSystemKey: true, IsTask: true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	view := decodeView(t, w)
	require.Len(t, view.Issues, 1)
	assert.Equal(t, "Fix X", view.Issues[0].Title)
	assert.Equal(t, "High", string(view.Issues[0].Severity))
	assert.NotEmpty(t, view.AuditID)

	w = do(t, r, http.MethodPost, "/api/v1/workspace/issues/1/toggle", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"isDone":true`)

	fix := "rotate the key"
	w = do(t, r, http.MethodPatch, "/api/v1/workspace/issues/1", UpdateIssueRequest{Fix: &fix})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), fix)

	w = do(t, r, http.MethodPatch, "/api/v1/workspace/summary", map[string]string{"summary": "new"})
	require.Equal(t, http.StatusOK, w.Code)
	m.Wait()

	w = do(t, r, http.MethodGet, "/api/v1/workspace", nil)
	view = decodeView(t, w)
	assert.Equal(t, "new", view.Summary)
	assert.True(t, view.IsCompleted)

	w = do(t, r, http.MethodGet, "/api/v1/audits", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"isCompleted":true`)

	w = do(t, r, http.MethodPost, "/api/v1/workspace/clear", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decodeView(t, w).AuditID)

	w = do(t, r, http.MethodPost, "/api/v1/audits/"+view.AuditID+"/load", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, fix, decodeView(t, w).Issues[0].Fix)

	w = do(t, r, http.MethodGet, "/api/v1/workspace/notifications", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "terminal cleared")

	w = do(t, r, http.MethodDelete, "/api/v1/audits/"+view.AuditID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, r, http.MethodDelete, "/api/v1/audits/"+view.AuditID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWorkspaceErrors(t *testing.T) {
	r, _ := setupRouter(t, cannedProvider{reply: map[string]any{"summary": "no list"}})

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"empty input", http.MethodPost, "/api/v1/workspace/analyze", workspace.SubmitRequest{Input: " ", UseSystemKey: true}, http.StatusBadRequest},
		{"invalid reply", http.MethodPost, "/api/v1/workspace/analyze", workspace.SubmitRequest{Input: "x", Provider: "groq", UseSystemKey: true}, http.StatusBadGateway},
		{"unknown issue", http.MethodPost, "/api/v1/workspace/issues/7/toggle", nil, http.StatusNotFound},
		{"non-numeric issue", http.MethodPost, "/api/v1/workspace/issues/abc/toggle", nil, http.StatusBadRequest},
		{"empty patch", http.MethodPatch, "/api/v1/workspace/issues/1", map[string]string{}, http.StatusBadRequest},
		{"missing summary", http.MethodPatch, "/api/v1/workspace/summary", map[string]string{}, http.StatusBadRequest},
		{"load missing audit", http.MethodPost, "/api/v1/audits/nope/load", nil, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := do(t, r, tc.method, tc.path, tc.body)
			assert.Equal(t, tc.status, w.Code, w.Body.String())
		})
	}
}

func TestWorkspaceProviderQuota(t *testing.T) {
	r, _ := setupRouter(t, cannedProvider{err: &llm.ProviderError{Provider: "groq", Kind: llm.KindQuota, Status: 429, Message: "quota exceeded"}})

	w := do(t, r, http.MethodPost, "/api/v1/workspace/analyze", workspace.SubmitRequest{Input: "x", Provider: "groq", APIKey: "k"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), `"kind":"quota"`)
}
