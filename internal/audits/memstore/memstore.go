// Package memstore is an in-process AuditStore. It backs the service when no
// database is configured and doubles as the store in tests.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/synapse-qa/synapse-backend/internal/audits/domain"
)

type auditRow struct {
	audit domain.Audit
	seq   int
}

// Store keeps audits and their findings in memory.
type Store struct {
	mu       sync.Mutex
	audits   map[string]auditRow
	findings map[string][]domain.Finding
	seq      int
	faults   *faults
}

type faults struct {
	mu  sync.Mutex
	ops map[string]error
}

var _ domain.AuditStore = (*Store)(nil)

func New() *Store {
	return &Store{
		audits:   make(map[string]auditRow),
		findings: make(map[string][]domain.Finding),
		faults:   &faults{ops: make(map[string]error)},
	}
}

// FailOn makes every later call of op return err. A nil err clears the fault.
func (s *Store) FailOn(op string, err error) {
	s.faults.mu.Lock()
	defer s.faults.mu.Unlock()
	if err == nil {
		delete(s.faults.ops, op)
		return
	}
	s.faults.ops[op] = err
}

func (s *Store) fault(op string) error {
	s.faults.mu.Lock()
	defer s.faults.mu.Unlock()
	return s.faults.ops[op]
}

// PutAudit stores a as-is, which is how tests seed legacy rows.
func (s *Store) PutAudit(a domain.Audit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	s.seq++
	s.audits[a.ID] = auditRow{audit: a, seq: s.seq}
}

// FindingCount returns how many rows the audit currently owns.
func (s *Store) FindingCount(auditID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.findings[auditID])
}

// AuditCount returns how many audits the owner has.
func (s *Store) AuditCount(ownerID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, row := range s.audits {
		if row.audit.OwnerID == ownerID {
			n++
		}
	}
	return n
}

func (s *Store) WithTx(ctx context.Context, fn func(domain.AuditStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Store{
		audits:   make(map[string]auditRow, len(s.audits)),
		findings: make(map[string][]domain.Finding, len(s.findings)),
		seq:      s.seq,
		faults:   s.faults,
	}
	for k, v := range s.audits {
		tx.audits[k] = v
	}
	for k, v := range s.findings {
		tx.findings[k] = domain.CloneFindings(v)
	}

	if err := fn(tx); err != nil {
		return err
	}

	s.audits = tx.audits
	s.findings = tx.findings
	s.seq = tx.seq
	return nil
}

func (s *Store) InsertAudit(ctx context.Context, a *domain.Audit) error {
	if err := s.fault("InsertAudit"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	a.CreatedAt = time.Now()
	s.seq++
	s.audits[a.ID] = auditRow{audit: *a, seq: s.seq}
	return nil
}

func (s *Store) UpdateAudit(ctx context.Context, ownerID, auditID, summary, rawInput string) error {
	if err := s.fault("UpdateAudit"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.audits[auditID]
	if !ok || row.audit.OwnerID != ownerID {
		return domain.ErrAuditNotFound
	}
	row.audit.Summary = summary
	row.audit.RawInput = rawInput
	s.audits[auditID] = row
	return nil
}

func (s *Store) UpdateSummary(ctx context.Context, ownerID, auditID, summary string) error {
	if err := s.fault("UpdateSummary"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.audits[auditID]
	if !ok || row.audit.OwnerID != ownerID {
		return domain.ErrAuditNotFound
	}
	row.audit.Summary = summary
	s.audits[auditID] = row
	return nil
}

func (s *Store) GetAudit(ctx context.Context, ownerID, auditID string) (*domain.Audit, error) {
	if err := s.fault("GetAudit"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.audits[auditID]
	if !ok || row.audit.OwnerID != ownerID {
		return nil, domain.ErrAuditNotFound
	}
	a := row.audit
	return &a, nil
}

func (s *Store) ListRecent(ctx context.Context, ownerID string, limit int) ([]domain.HistoryEntry, error) {
	if err := s.fault("ListRecent"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := make([]auditRow, 0, len(s.audits))
	for _, row := range s.audits {
		if row.audit.OwnerID == ownerID {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq > rows[j].seq })
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}

	out := make([]domain.HistoryEntry, 0, len(rows))
	for _, row := range rows {
		fs := s.findings[row.audit.ID]
		out = append(out, domain.HistoryEntry{
			Audit:           row.audit,
			TotalIssues:     len(fs),
			CompletedIssues: domain.CountDone(fs),
		})
	}
	return out, nil
}

func (s *Store) DeleteAudit(ctx context.Context, ownerID, auditID string) error {
	if err := s.fault("DeleteAudit"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.audits[auditID]
	if !ok || row.audit.OwnerID != ownerID {
		return domain.ErrAuditNotFound
	}
	delete(s.audits, auditID)
	delete(s.findings, auditID)
	return nil
}

func (s *Store) InsertFindings(ctx context.Context, auditID string, findings []domain.Finding) ([]domain.StoredFinding, error) {
	if err := s.fault("InsertFindings"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.audits[auditID]; !ok {
		return nil, domain.ErrAuditNotFound
	}
	out := make([]domain.StoredFinding, 0, len(findings))
	for _, f := range findings {
		f.StorageID = uuid.New().String()
		s.findings[auditID] = append(s.findings[auditID], f)
		out = append(out, domain.StoredFinding{StorageID: f.StorageID, ExternalID: f.ExternalID})
	}
	return out, nil
}

func (s *Store) DeleteFindings(ctx context.Context, auditID string) error {
	if err := s.fault("DeleteFindings"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.findings, auditID)
	return nil
}

func (s *Store) ListFindings(ctx context.Context, auditID string) ([]domain.Finding, error) {
	if err := s.fault("ListFindings"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := domain.CloneFindings(s.findings[auditID])
	sort.SliceStable(out, func(i, j int) bool { return out[i].ExternalID < out[j].ExternalID })
	return out, nil
}

func (s *Store) SetFindingDone(ctx context.Context, ownerID, storageID string, done bool) error {
	if err := s.fault("SetFindingDone"); err != nil {
		return err
	}
	return s.updateFinding(ownerID, storageID, func(f *domain.Finding) { f.IsDone = done })
}

func (s *Store) UpdateFindingText(ctx context.Context, ownerID, storageID string, field domain.FindingField, text string) error {
	if err := s.fault("UpdateFindingText"); err != nil {
		return err
	}
	var apply func(*domain.Finding)
	switch field {
	case domain.FieldTitle:
		apply = func(f *domain.Finding) { f.Title = text }
	case domain.FieldDescription:
		apply = func(f *domain.Finding) { f.Description = text }
	case domain.FieldFix:
		apply = func(f *domain.Finding) { f.Fix = text }
	default:
		return fmt.Errorf("unknown finding field %q", field)
	}
	return s.updateFinding(ownerID, storageID, apply)
}

// Finding returns the stored row with storageID, for assertions.
func (s *Store) Finding(storageID string) (domain.Finding, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, fs := range s.findings {
		for _, f := range fs {
			if f.StorageID == storageID {
				return f, true
			}
		}
	}
	return domain.Finding{}, false
}

func (s *Store) updateFinding(ownerID, storageID string, apply func(*domain.Finding)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for auditID, fs := range s.findings {
		if s.audits[auditID].audit.OwnerID != ownerID {
			continue
		}
		for i := range fs {
			if fs[i].StorageID == storageID {
				apply(&fs[i])
				return nil
			}
		}
	}
	return domain.ErrFindingNotFound
}
