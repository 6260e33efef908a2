package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/synapse-qa/synapse-backend/internal/audits/domain"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// AuditRepository handles PostgreSQL operations for audits and their issues.
type AuditRepository struct {
	db *sql.DB
	q  querier
}

var _ domain.AuditStore = (*AuditRepository)(nil)

// NewAuditRepository creates a new AuditRepository
func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db, q: db}
}

// WithTx runs fn inside a single transaction.
func (r *AuditRepository) WithTx(ctx context.Context, fn func(domain.AuditStore) error) error {
	if r.db == nil {
		// already bound to a transaction
		return fn(r)
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&AuditRepository{q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// InsertAudit creates the parent row and fills in its id and created_at.
func (r *AuditRepository) InsertAudit(ctx context.Context, a *domain.Audit) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}

	const q = `
INSERT INTO audits (id, user_id, summary, input_text)
VALUES ($1, $2, $3, $4)
RETURNING created_at;
`
	if err := r.q.QueryRowContext(ctx, q, a.ID, a.OwnerID, a.Summary, a.RawInput).Scan(&a.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert audit: %w", err)
	}
	return nil
}

// UpdateAudit replaces summary and input text of an owned audit.
func (r *AuditRepository) UpdateAudit(ctx context.Context, ownerID, auditID, summary, rawInput string) error {
	const q = `
UPDATE audits
SET summary = $3, input_text = $4, updated_at = now()
WHERE id = $1 AND user_id = $2;
`
	return r.execOne(ctx, domain.ErrAuditNotFound, q, auditID, ownerID, summary, rawInput)
}

// UpdateSummary replaces only the summary of an owned audit.
func (r *AuditRepository) UpdateSummary(ctx context.Context, ownerID, auditID, summary string) error {
	const q = `
UPDATE audits
SET summary = $3, updated_at = now()
WHERE id = $1 AND user_id = $2;
`
	return r.execOne(ctx, domain.ErrAuditNotFound, q, auditID, ownerID, summary)
}

// GetAudit loads one owned audit, including the legacy issues blob if present.
func (r *AuditRepository) GetAudit(ctx context.Context, ownerID, auditID string) (*domain.Audit, error) {
	const q = `
SELECT id, user_id, summary, input_text, issues, created_at
FROM audits
WHERE id = $1 AND user_id = $2;
`
	var a domain.Audit
	var legacy []byte
	err := r.q.QueryRowContext(ctx, q, auditID, ownerID).
		Scan(&a.ID, &a.OwnerID, &a.Summary, &a.RawInput, &legacy, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrAuditNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get audit: %w", err)
	}
	if len(legacy) > 0 {
		a.LegacyIssues = legacy
	}
	return &a, nil
}

// ListRecent returns the owner's newest audits with issue counters.
func (r *AuditRepository) ListRecent(ctx context.Context, ownerID string, limit int) ([]domain.HistoryEntry, error) {
	const q = `
SELECT a.id, a.user_id, a.summary, a.input_text, a.created_at,
       COUNT(i.id) AS total_issues,
       COUNT(i.id) FILTER (WHERE i.is_done) AS completed_issues
FROM audits a
LEFT JOIN issues i ON i.audit_id = a.id
WHERE a.user_id = $1
GROUP BY a.id
ORDER BY a.created_at DESC
LIMIT $2;
`
	rows, err := r.q.QueryContext(ctx, q, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audits: %w", err)
	}
	defer rows.Close()

	out := make([]domain.HistoryEntry, 0, limit)
	for rows.Next() {
		var h domain.HistoryEntry
		if err := rows.Scan(&h.ID, &h.OwnerID, &h.Summary, &h.RawInput, &h.CreatedAt, &h.TotalIssues, &h.CompletedIssues); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteAudit removes an owned audit; its issues go with it (ON DELETE CASCADE).
func (r *AuditRepository) DeleteAudit(ctx context.Context, ownerID, auditID string) error {
	const q = `DELETE FROM audits WHERE id = $1 AND user_id = $2;`
	return r.execOne(ctx, domain.ErrAuditNotFound, q, auditID, ownerID)
}

// InsertFindings writes one row per finding and returns the stored ids.
func (r *AuditRepository) InsertFindings(ctx context.Context, auditID string, findings []domain.Finding) ([]domain.StoredFinding, error) {
	if len(findings) == 0 {
		return nil, nil
	}

	const cols = 8
	var sb strings.Builder
	sb.WriteString(`INSERT INTO issues (id, audit_id, external_id, title, description, category, severity, fix_plan, is_done) VALUES `)
	args := make([]any, 0, len(findings)*cols+1)
	args = append(args, auditID)
	for i, f := range findings {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := 1 + i*cols
		fmt.Fprintf(&sb, "($%d, $1, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8)
		args = append(args,
			uuid.New().String(),
			f.ExternalID,
			f.Title,
			f.Description,
			nullString(string(f.Category)),
			string(f.Severity),
			f.Fix,
			f.IsDone,
		)
	}
	sb.WriteString(" RETURNING id, external_id;")

	rows, err := r.q.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		// foreign key violation: the parent audit is gone
		var pgErr *pq.Error
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return nil, domain.ErrAuditNotFound
		}
		return nil, fmt.Errorf("failed to insert issues: %w", err)
	}
	defer rows.Close()

	out := make([]domain.StoredFinding, 0, len(findings))
	for rows.Next() {
		var s domain.StoredFinding
		if err := rows.Scan(&s.StorageID, &s.ExternalID); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteFindings removes every issue row of an audit.
func (r *AuditRepository) DeleteFindings(ctx context.Context, auditID string) error {
	const q = `DELETE FROM issues WHERE audit_id = $1;`
	if _, err := r.q.ExecContext(ctx, q, auditID); err != nil {
		return fmt.Errorf("failed to delete issues: %w", err)
	}
	return nil
}

// ListFindings returns the audit's issues ordered by external_id.
func (r *AuditRepository) ListFindings(ctx context.Context, auditID string) ([]domain.Finding, error) {
	const q = `
SELECT id, external_id, title, description, category, severity, fix_plan, is_done
FROM issues
WHERE audit_id = $1
ORDER BY external_id ASC;
`
	rows, err := r.q.QueryContext(ctx, q, auditID)
	if err != nil {
		return nil, fmt.Errorf("failed to list issues: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Finding, 0, 16)
	for rows.Next() {
		var f domain.Finding
		var category, fix sql.NullString
		var severity string
		if err := rows.Scan(&f.StorageID, &f.ExternalID, &f.Title, &f.Description, &category, &severity, &fix, &f.IsDone); err != nil {
			return nil, err
		}
		if c := domain.Category(category.String); c.Valid() {
			f.Category = c
		}
		f.Severity = domain.Severity(severity)
		f.Fix = fix.String
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// SetFindingDone flips is_done on one issue owned by ownerID.
func (r *AuditRepository) SetFindingDone(ctx context.Context, ownerID, storageID string, done bool) error {
	const q = `
UPDATE issues
SET is_done = $3
WHERE id = $1 AND audit_id IN (SELECT id FROM audits WHERE user_id = $2);
`
	return r.execOne(ctx, domain.ErrFindingNotFound, q, storageID, ownerID, done)
}

var findingColumns = map[domain.FindingField]string{
	domain.FieldTitle:       "title",
	domain.FieldDescription: "description",
	domain.FieldFix:         "fix_plan",
}

// UpdateFindingText replaces one free-text column of an issue owned by ownerID.
func (r *AuditRepository) UpdateFindingText(ctx context.Context, ownerID, storageID string, field domain.FindingField, text string) error {
	col, ok := findingColumns[field]
	if !ok {
		return fmt.Errorf("unknown finding field %q", field)
	}
	q := `
UPDATE issues
SET ` + col + ` = $3
WHERE id = $1 AND audit_id IN (SELECT id FROM audits WHERE user_id = $2);
`
	return r.execOne(ctx, domain.ErrFindingNotFound, q, storageID, ownerID, text)
}

func (r *AuditRepository) execOne(ctx context.Context, notFound error, q string, args ...any) error {
	result, err := r.q.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return notFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
