package service

import (
	"context"
	"fmt"

	"github.com/synapse-qa/synapse-backend/internal/audits/domain"
	"github.com/synapse-qa/synapse-backend/internal/logging"
)

// Reconciler makes the audit and issue tables reflect a fresh analysis result and
// merges the store-assigned ids back onto the findings.
type Reconciler struct {
	store domain.AuditStore
}

// NewReconciler creates a new Reconciler
func NewReconciler(store domain.AuditStore) *Reconciler {
	return &Reconciler{store: store}
}

// SaveResult is what Save hands back to the caller.
type SaveResult struct {
	AuditID  string
	Findings []domain.Finding
}

// Save inserts a new audit when existingAuditID is empty, otherwise updates that
// audit in place and fully replaces its issue rows. Both paths run in one
// transaction. result is never mutated; on error the caller keeps its own list.
func (r *Reconciler) Save(ctx context.Context, result domain.AnalysisResult, existingAuditID, ownerID, rawInput string) (*SaveResult, error) {
	logger := logging.NewLogger(ctx).With("owner_id", ownerID)

	var out *SaveResult
	err := r.store.WithTx(ctx, func(tx domain.AuditStore) error {
		auditID := existingAuditID
		if auditID == "" {
			a := &domain.Audit{OwnerID: ownerID, Summary: result.Summary, RawInput: rawInput}
			if err := tx.InsertAudit(ctx, a); err != nil {
				return domain.WrapStore("insert audit", err)
			}
			auditID = a.ID
		} else {
			if err := tx.UpdateAudit(ctx, ownerID, auditID, result.Summary, rawInput); err != nil {
				return domain.WrapStore("update audit", err)
			}
			if err := tx.DeleteFindings(ctx, auditID); err != nil {
				return domain.WrapStore("delete issues", err)
			}
		}

		fresh := domain.CloneFindings(result.Issues)
		for i := range fresh {
			fresh[i].StorageID = ""
			fresh[i].IsDone = false
		}

		stored, err := tx.InsertFindings(ctx, auditID, fresh)
		if err != nil {
			return domain.WrapStore("insert issues", err)
		}
		merged, err := mergeStorageIDs(fresh, stored)
		if err != nil {
			return domain.WrapStore("merge issue ids", err)
		}

		out = &SaveResult{AuditID: auditID, Findings: merged}
		return nil
	})
	if err != nil {
		logger.LogError("save_audit", err)
		return nil, err
	}

	logger.LogInfof("save_audit", "saved audit_id=%s issues=%d replaced=%t", out.AuditID, len(out.Findings), existingAuditID != "")
	return out, nil
}

// mergeStorageIDs attaches the stored row id to each finding by external id.
func mergeStorageIDs(findings []domain.Finding, stored []domain.StoredFinding) ([]domain.Finding, error) {
	byExternal := make(map[int]string, len(stored))
	for _, s := range stored {
		byExternal[s.ExternalID] = s.StorageID
	}
	for i := range findings {
		id, ok := byExternal[findings[i].ExternalID]
		if !ok {
			return nil, fmt.Errorf("no stored row for external id %d", findings[i].ExternalID)
		}
		findings[i].StorageID = id
	}
	return findings, nil
}
