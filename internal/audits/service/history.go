package service

import (
	"context"
	"encoding/json"

	"github.com/synapse-qa/synapse-backend/internal/audits/domain"
	"github.com/synapse-qa/synapse-backend/internal/audits/normalize"
	"github.com/synapse-qa/synapse-backend/internal/logging"
)

// DefaultHistoryLimit is how many audits the recent list shows.
const DefaultHistoryLimit = 8

// LoadedAudit is an audit ready to become the active workspace.
type LoadedAudit struct {
	AuditID  string           `json:"auditId"`
	Summary  string           `json:"summary"`
	RawInput string           `json:"rawInput"`
	Issues   []domain.Finding `json:"issues"`
}

// HistoryService reads and deletes stored audits.
type HistoryService struct {
	store      domain.AuditStore
	normalizer normalize.Options
}

// NewHistoryService creates a new HistoryService
func NewHistoryService(store domain.AuditStore, normalizer normalize.Options) *HistoryService {
	return &HistoryService{store: store, normalizer: normalizer}
}

// ListRecent returns the owner's newest audits with their issue counters.
func (s *HistoryService) ListRecent(ctx context.Context, ownerID string, limit int) ([]domain.HistoryEntry, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	entries, err := s.store.ListRecent(ctx, ownerID, limit)
	if err != nil {
		return nil, domain.WrapStore("list audits", err)
	}
	return entries, nil
}

// LoadAuditByID fetches the owned audit and loads it.
func (s *HistoryService) LoadAuditByID(ctx context.Context, ownerID, auditID string) (*LoadedAudit, error) {
	a, err := s.store.GetAudit(ctx, ownerID, auditID)
	if err != nil {
		return nil, domain.WrapStore("get audit", err)
	}
	loaded := s.LoadAudit(ctx, *a)
	return &loaded, nil
}

// LoadAudit reads the audit's issue rows ordered by external id. When that query
// fails or finds nothing it falls back to the legacy issues blob on the audit.
func (s *HistoryService) LoadAudit(ctx context.Context, a domain.Audit) LoadedAudit {
	logger := logging.NewLogger(ctx).With("audit_id", a.ID)

	out := LoadedAudit{AuditID: a.ID, Summary: a.Summary, RawInput: a.RawInput}

	issues, err := s.store.ListFindings(ctx, a.ID)
	if err != nil {
		logger.LogWarnf("load_audit", "issue rows unavailable, using legacy blob: %v", err)
	}
	if err == nil && len(issues) > 0 {
		out.Issues = issues
		return out
	}

	out.Issues = s.legacyIssues(a.LegacyIssues)
	return out
}

// DeleteAudit removes an owned audit and, through the cascade, its issues.
func (s *HistoryService) DeleteAudit(ctx context.Context, ownerID, auditID string) error {
	return domain.WrapStore("delete audit", s.store.DeleteAudit(ctx, ownerID, auditID))
}

func (s *HistoryService) legacyIssues(blob json.RawMessage) []domain.Finding {
	if len(blob) == 0 {
		return []domain.Finding{}
	}
	var list []any
	if err := json.Unmarshal(blob, &list); err != nil {
		return []domain.Finding{}
	}
	return s.normalizer.Findings(list)
}
