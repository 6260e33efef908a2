package domain

import "context"

// FindingField names the free-text finding columns that can be edited in place.
type FindingField string

const (
	FieldTitle       FindingField = "title"
	FieldDescription FindingField = "description"
	FieldFix         FindingField = "fix"
)

// StoredFinding is the pair read back after inserting finding rows.
type StoredFinding struct {
	StorageID  string
	ExternalID int
}

// AuditStore is the two-table record store (audits + issues), scoped by owner.
type AuditStore interface {
	InsertAudit(ctx context.Context, a *Audit) error
	UpdateAudit(ctx context.Context, ownerID, auditID, summary, rawInput string) error
	UpdateSummary(ctx context.Context, ownerID, auditID, summary string) error
	GetAudit(ctx context.Context, ownerID, auditID string) (*Audit, error)
	ListRecent(ctx context.Context, ownerID string, limit int) ([]HistoryEntry, error)
	DeleteAudit(ctx context.Context, ownerID, auditID string) error

	InsertFindings(ctx context.Context, auditID string, findings []Finding) ([]StoredFinding, error)
	DeleteFindings(ctx context.Context, auditID string) error
	// ListFindings returns the audit's rows ordered by external id ascending.
	ListFindings(ctx context.Context, auditID string) ([]Finding, error)
	SetFindingDone(ctx context.Context, ownerID, storageID string, done bool) error
	UpdateFindingText(ctx context.Context, ownerID, storageID string, field FindingField, text string) error

	// WithTx runs fn against a store bound to one transaction. fn's error rolls it back.
	WithTx(ctx context.Context, fn func(AuditStore) error) error
}
