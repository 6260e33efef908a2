package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsCompleted(t *testing.T) {
	assert.False(t, IsCompleted(nil))
	assert.False(t, IsCompleted([]Finding{}))

	all := []Finding{{IsDone: true}, {IsDone: true}, {IsDone: true}}
	assert.True(t, IsCompleted(all))

	partial := []Finding{{IsDone: true}, {IsDone: true}, {IsDone: false}}
	assert.False(t, IsCompleted(partial))
}

func TestHistoryEntry_IsCompleted(t *testing.T) {
	assert.False(t, HistoryEntry{}.IsCompleted())
	assert.True(t, HistoryEntry{TotalIssues: 3, CompletedIssues: 3}.IsCompleted())
	assert.False(t, HistoryEntry{TotalIssues: 3, CompletedIssues: 2}.IsCompleted())

	b, err := json.Marshal(HistoryEntry{Audit: Audit{ID: "a1"}, TotalIssues: 1, CompletedIssues: 1})
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, "a1", out["id"])
	assert.Equal(t, true, out["isCompleted"])
}

func TestComputeStats(t *testing.T) {
	s := ComputeStats([]Finding{
		{Severity: SeverityHigh, IsDone: true},
		{Severity: SeverityMedium},
		{Severity: SeverityLow},
		{Severity: SeverityHigh},
	})
	assert.Equal(t, Stats{Total: 4, Done: 1, Pending: 3, High: 2, Medium: 1, Low: 1}, s)
}

func TestWrapStore(t *testing.T) {
	assert.Nil(t, WrapStore("insert", nil))
	assert.Equal(t, ErrAuditNotFound, WrapStore("update", ErrAuditNotFound))

	err := WrapStore("insert", assert.AnError)
	var se *StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "insert", se.Op)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Same(t, err, WrapStore("outer", err))
}
