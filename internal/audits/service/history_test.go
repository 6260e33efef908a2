package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synapse-qa/synapse-backend/internal/audits/domain"
	"github.com/synapse-qa/synapse-backend/internal/audits/memstore"
	"github.com/synapse-qa/synapse-backend/internal/audits/normalize"
)

func TestHistoryService_LoadAuditFromRows(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()

	saved, err := NewReconciler(store).Save(ctx, domain.AnalysisResult{
		Summary: "s",
		Issues:  []domain.Finding{{ExternalID: 3, Title: "c"}, {ExternalID: 1, Title: "a"}, {ExternalID: 2, Title: "b"}},
	}, "", "u1", "raw")
	require.NoError(t, err)

	hist := NewHistoryService(store, normalize.Options{})
	loaded, err := hist.LoadAuditByID(ctx, "u1", saved.AuditID)
	require.NoError(t, err)

	assert.Equal(t, "raw", loaded.RawInput)
	require.Len(t, loaded.Issues, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{loaded.Issues[0].ExternalID, loaded.Issues[1].ExternalID, loaded.Issues[2].ExternalID})
	for _, f := range loaded.Issues {
		assert.NotEmpty(t, f.StorageID)
	}
}

func TestHistoryService_LoadAuditLegacyBlob(t *testing.T) {
	store := memstore.New()
	store.PutAudit(domain.Audit{
		ID:           "legacy-1",
		OwnerID:      "u1",
		Summary:      "old",
		RawInput:     "old input",
		LegacyIssues: json.RawMessage(`[{"id":4,"title":"Old bug","description":"from blob","fix_plan":"patch","is_done":true,"severity":"Alta"}]`),
	})

	hist := NewHistoryService(store, normalize.Options{})
	loaded, err := hist.LoadAuditByID(context.Background(), "u1", "legacy-1")
	require.NoError(t, err)

	require.Len(t, loaded.Issues, 1)
	f := loaded.Issues[0]
	assert.Equal(t, 4, f.ExternalID)
	assert.Equal(t, "Old bug", f.Title)
	assert.Equal(t, "from blob", f.Description)
	assert.Equal(t, "patch", f.Fix)
	assert.True(t, f.IsDone)
	assert.Equal(t, domain.SeverityHigh, f.Severity)
	assert.False(t, f.Persisted())
}

func TestHistoryService_LoadAuditFallsBackOnQueryError(t *testing.T) {
	store := memstore.New()
	store.PutAudit(domain.Audit{ID: "a1", OwnerID: "u1", LegacyIssues: json.RawMessage(`[{"desc":"x"}]`)})
	store.FailOn("ListFindings", assert.AnError)

	loaded, err := NewHistoryService(store, normalize.Options{}).LoadAuditByID(context.Background(), "u1", "a1")
	require.NoError(t, err)
	require.Len(t, loaded.Issues, 1)
	assert.Equal(t, "x", loaded.Issues[0].Description)
}

func TestHistoryService_LoadAuditWithNothing(t *testing.T) {
	store := memstore.New()
	store.PutAudit(domain.Audit{ID: "a1", OwnerID: "u1", LegacyIssues: json.RawMessage(`{"not":"a list"}`)})

	loaded, err := NewHistoryService(store, normalize.Options{}).LoadAuditByID(context.Background(), "u1", "a1")
	require.NoError(t, err)
	assert.NotNil(t, loaded.Issues)
	assert.Empty(t, loaded.Issues)
}

func TestHistoryService_ListAndDelete(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()
	rec := NewReconciler(store)
	hist := NewHistoryService(store, normalize.Options{})

	for i := 0; i < 10; i++ {
		_, err := rec.Save(ctx, domain.AnalysisResult{Issues: []domain.Finding{{ExternalID: 1}}}, "", "u1", "raw")
		require.NoError(t, err)
	}

	entries, err := hist.ListRecent(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Len(t, entries, DefaultHistoryLimit)

	require.NoError(t, hist.DeleteAudit(ctx, "u1", entries[0].ID))
	assert.Equal(t, 9, store.AuditCount("u1"))
	assert.ErrorIs(t, hist.DeleteAudit(ctx, "u1", entries[0].ID), domain.ErrAuditNotFound)
	assert.ErrorIs(t, hist.DeleteAudit(ctx, "someone-else", entries[1].ID), domain.ErrAuditNotFound)
}
