package workspace

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/synapse-qa/synapse-backend/internal/audits/domain"
	"github.com/synapse-qa/synapse-backend/internal/audits/service"
	"github.com/synapse-qa/synapse-backend/internal/llm"
	"github.com/synapse-qa/synapse-backend/internal/logging"
)

// TaskSummaryPrefix marks stored audits produced in task mode.
const TaskSummaryPrefix = "[TASKS] "

const pushTimeout = 15 * time.Second

// Workspace is one owner's working state. Network calls run outside mu. Point
// updates are written back by a single background writer in the order they were
// applied locally.
type Workspace struct {
	ownerID  string
	m        *Manager
	lastUsed time.Time // guarded by Manager.mu

	mu            sync.Mutex
	activeAuditID string
	summary       string
	rawInput      string
	issues        []domain.Finding
	history       []domain.HistoryEntry
	notifications []Notification

	pushMu    sync.Mutex
	pushQueue []pushJob
	pushing   bool
}

// View is a snapshot of a workspace.
type View struct {
	AuditID     string                `json:"auditId,omitempty"`
	Summary     string                `json:"summary"`
	RawInput    string                `json:"rawInput"`
	Issues      []domain.Finding      `json:"issues"`
	Stats       domain.Stats          `json:"stats"`
	IsCompleted bool                  `json:"isCompleted"`
	History     []domain.HistoryEntry `json:"history"`
	LocalOnly   bool                  `json:"localOnly"`
}

// SubmitRequest is one analysis submitted from the terminal.
type SubmitRequest struct {
	Input        string `json:"input"`
	Provider     string `json:"provider,omitempty"`
	APIKey       string `json:"apiKey,omitempty"`
	UseSystemKey bool   `json:"useSystemKey"`
	IsTask       bool   `json:"isTask"`
}

func (w *Workspace) viewLocked() View {
	issues := domain.CloneFindings(w.issues)
	if issues == nil {
		issues = []domain.Finding{}
	}
	history := append([]domain.HistoryEntry{}, w.history...)
	return View{
		AuditID:     w.activeAuditID,
		Summary:     w.summary,
		RawInput:    w.rawInput,
		Issues:      issues,
		Stats:       domain.ComputeStats(w.issues),
		IsCompleted: domain.IsCompleted(w.issues),
		History:     history,
		LocalOnly:   w.m.LocalOnly(),
	}
}

// View returns the current snapshot.
func (w *Workspace) View() View {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.viewLocked()
}

// resolveKey picks the API key for the call and reports whether the system key,
// and therefore a credit, is being used.
func (w *Workspace) resolveKey(ctx context.Context, p llm.Provider, req SubmitRequest) (string, bool, error) {
	provider := p.Name()
	if k := strings.TrimSpace(req.APIKey); k != "" {
		return k, false, nil
	}
	if !req.UseSystemKey {
		keys, err := w.m.deps.Keys.GetKeys(ctx, w.ownerID)
		if err != nil {
			return "", false, err
		}
		if k := keys.For(provider); k != "" {
			return k, false, nil
		}
		return "", false, &llm.ProviderError{Provider: provider, Kind: llm.KindInvalidKey, Message: "no personal API key configured for " + provider}
	}
	if !llm.SystemKeyAvailable(p) {
		return "", false, llm.ErrNoSystemKey(provider)
	}
	if w.m.deps.Settings != nil {
		credits, err := w.m.deps.Settings.For(w.ownerID).Credits(ctx)
		if err != nil {
			return "", false, err
		}
		if credits <= 0 {
			return "", false, domain.ErrCreditsExhausted
		}
	}
	return "", true, nil
}

// Submit runs one analysis and makes its result the active audit. Task mode always
// starts a new audit. When the save fails the normalized findings stay in the
// workspace unsaved and the store error is returned.
func (w *Workspace) Submit(ctx context.Context, req SubmitRequest) (View, error) {
	logger := logging.NewLogger(ctx).With("owner_id", w.ownerID)

	input := req.Input
	if strings.TrimSpace(input) == "" {
		return View{}, domain.ErrEmptyInput
	}

	providerName := req.Provider
	if providerName == "" && w.m.deps.Settings != nil {
		p, err := w.m.deps.Settings.For(w.ownerID).Provider(ctx)
		if err != nil {
			return View{}, err
		}
		providerName = p
	}
	if providerName == "" {
		providerName = llm.GeminiName
	}
	provider, err := w.m.deps.Providers.Get(providerName)
	if err != nil {
		return View{}, err
	}

	w.mu.Lock()
	targetID := w.activeAuditID
	w.mu.Unlock()
	if req.IsTask {
		targetID = ""
	}

	guardKey := targetID
	if guardKey == "" {
		guardKey = "new:" + w.ownerID
	}
	release, err := w.m.deps.Guard.Acquire(ctx, guardKey)
	if err != nil {
		return View{}, err
	}
	defer release()

	key, systemKey, err := w.resolveKey(ctx, provider, req)
	if err != nil {
		return View{}, err
	}

	raw, err := provider.Analyze(ctx, llm.Request{Input: input, APIKey: key, Mode: llm.ModeFor(req.IsTask)})
	if err != nil {
		logger.LogError("submit", err)
		return View{}, err
	}
	result, err := w.m.deps.Normalizer.Normalize(raw)
	if err != nil {
		logger.LogError("submit", err)
		return View{}, err
	}

	if systemKey && w.m.deps.Settings != nil {
		if _, err := w.m.deps.Settings.For(w.ownerID).ConsumeCredit(ctx); err != nil {
			logger.LogWarnf("submit", "failed to consume credit: %v", err)
		}
	}

	if w.m.reconciler == nil {
		w.mu.Lock()
		defer w.mu.Unlock()
		w.apply("", result.Summary, input, result.Issues)
		return w.viewLocked(), nil
	}

	stored := result
	if req.IsTask {
		stored.Summary = TaskSummaryPrefix + result.Summary
	}
	saved, saveErr := w.m.reconciler.Save(ctx, stored, targetID, w.ownerID, input)

	var history []domain.HistoryEntry
	var historyErr error
	if saveErr == nil {
		history, historyErr = w.m.history.ListRecent(ctx, w.ownerID, service.DefaultHistoryLimit)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if saveErr != nil {
		w.apply(targetID, result.Summary, input, result.Issues)
		w.notifyLocked(LevelError, "failed to save audit: "+saveErr.Error())
		return w.viewLocked(), saveErr
	}

	w.apply(saved.AuditID, result.Summary, input, saved.Findings)
	if historyErr != nil {
		w.notifyLocked(LevelError, "failed to load history: "+historyErr.Error())
	} else {
		w.history = history
	}
	if targetID != "" {
		w.notifyLocked(LevelSuccess, "audit updated")
	} else {
		w.notifyLocked(LevelSuccess, "analysis saved")
	}
	return w.viewLocked(), nil
}

// apply replaces the active state. Caller holds w.mu.
func (w *Workspace) apply(auditID, summary, rawInput string, issues []domain.Finding) {
	w.activeAuditID = auditID
	w.summary = summary
	w.rawInput = rawInput
	w.issues = domain.CloneFindings(issues)
}

func (w *Workspace) findLocked(externalID int) (int, error) {
	for i := range w.issues {
		if w.issues[i].ExternalID == externalID {
			return i, nil
		}
	}
	return -1, domain.ErrFindingNotFound
}

type pushJob struct {
	op  string
	rid string
	fn  func(context.Context) error
}

// push queues fn for the background writer of this workspace. Jobs run one at a
// time in queue order with a context detached from the request. A failure becomes
// a notification; the local change is kept.
func (w *Workspace) push(ctx context.Context, op string, fn func(context.Context) error) {
	w.m.pushes.Add(1)

	w.pushMu.Lock()
	w.pushQueue = append(w.pushQueue, pushJob{op: op, rid: logging.RequestID(ctx), fn: fn})
	start := !w.pushing
	w.pushing = true
	w.pushMu.Unlock()

	if start {
		go w.drainPushes()
	}
}

func (w *Workspace) drainPushes() {
	for {
		w.pushMu.Lock()
		if len(w.pushQueue) == 0 {
			w.pushing = false
			w.pushMu.Unlock()
			return
		}
		job := w.pushQueue[0]
		w.pushQueue = w.pushQueue[1:]
		w.pushMu.Unlock()

		w.runPush(job)
		w.m.pushes.Done()
	}
}

func (w *Workspace) runPush(job pushJob) {
	pctx, cancel := context.WithTimeout(logging.WithRequestID(context.Background(), job.rid), pushTimeout)
	defer cancel()
	if err := job.fn(pctx); err != nil {
		logging.NewLogger(pctx).With("owner_id", w.ownerID).LogError(job.op, err)
		w.notify(LevelError, fmt.Sprintf("failed to %s: %v", job.op, err))
	}
}

// ToggleDone flips isDone locally and adjusts the cached history counter of the
// active audit, then queues the store write when the finding is persisted.
func (w *Workspace) ToggleDone(ctx context.Context, externalID int) (domain.Finding, error) {
	w.mu.Lock()
	i, err := w.findLocked(externalID)
	if err != nil {
		w.mu.Unlock()
		return domain.Finding{}, err
	}
	w.issues[i].IsDone = !w.issues[i].IsDone
	f := w.issues[i]
	for h := range w.history {
		if w.history[h].ID != w.activeAuditID {
			continue
		}
		if f.IsDone {
			w.history[h].CompletedIssues++
		} else if w.history[h].CompletedIssues > 0 {
			w.history[h].CompletedIssues--
		}
	}
	if store := w.m.deps.Store; store != nil && f.Persisted() {
		w.push(ctx, "update issue status", func(pctx context.Context) error {
			return store.SetFindingDone(pctx, w.ownerID, f.StorageID, f.IsDone)
		})
	}
	w.mu.Unlock()
	return f, nil
}

func (w *Workspace) updateText(ctx context.Context, externalID int, field domain.FindingField, text string) (domain.Finding, error) {
	w.mu.Lock()
	i, err := w.findLocked(externalID)
	if err != nil {
		w.mu.Unlock()
		return domain.Finding{}, err
	}
	switch field {
	case domain.FieldTitle:
		w.issues[i].Title = text
	case domain.FieldDescription:
		w.issues[i].Description = text
	case domain.FieldFix:
		w.issues[i].Fix = text
	default:
		w.mu.Unlock()
		return domain.Finding{}, fmt.Errorf("unsupported field %q", field)
	}
	f := w.issues[i]
	if store := w.m.deps.Store; store != nil && f.Persisted() {
		w.push(ctx, "update issue "+string(field), func(pctx context.Context) error {
			return store.UpdateFindingText(pctx, w.ownerID, f.StorageID, field, text)
		})
	}
	w.mu.Unlock()
	return f, nil
}

func (w *Workspace) UpdateFix(ctx context.Context, externalID int, text string) (domain.Finding, error) {
	return w.updateText(ctx, externalID, domain.FieldFix, text)
}

func (w *Workspace) UpdateTitle(ctx context.Context, externalID int, text string) (domain.Finding, error) {
	return w.updateText(ctx, externalID, domain.FieldTitle, text)
}

func (w *Workspace) UpdateDescription(ctx context.Context, externalID int, text string) (domain.Finding, error) {
	return w.updateText(ctx, externalID, domain.FieldDescription, text)
}

// UpdateSummary sets the summary locally and pushes it to the active audit.
func (w *Workspace) UpdateSummary(ctx context.Context, text string) View {
	w.mu.Lock()
	w.summary = text
	auditID := w.activeAuditID
	view := w.viewLocked()
	if store := w.m.deps.Store; store != nil && auditID != "" {
		w.push(ctx, "update summary", func(pctx context.Context) error {
			return store.UpdateSummary(pctx, w.ownerID, auditID, text)
		})
	}
	w.mu.Unlock()
	return view
}

// Clear resets the active audit. History is kept.
func (w *Workspace) Clear() View {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.apply("", "", "", nil)
	w.notifyLocked(LevelWarning, "terminal cleared")
	return w.viewLocked()
}

// RefreshHistory reloads the recent audits, recomputing their counters.
func (w *Workspace) RefreshHistory(ctx context.Context) ([]domain.HistoryEntry, error) {
	if w.m.history == nil {
		return []domain.HistoryEntry{}, nil
	}
	entries, err := w.m.history.ListRecent(ctx, w.ownerID, service.DefaultHistoryLimit)
	if err != nil {
		w.notify(LevelError, "failed to load history: "+err.Error())
		return nil, err
	}
	w.mu.Lock()
	w.history = entries
	w.mu.Unlock()
	return append([]domain.HistoryEntry{}, entries...), nil
}

// LoadAudit makes a stored audit the active one.
func (w *Workspace) LoadAudit(ctx context.Context, auditID string) (View, error) {
	if w.m.history == nil {
		return View{}, domain.ErrAuditNotFound
	}
	loaded, err := w.m.history.LoadAuditByID(ctx, w.ownerID, auditID)
	if err != nil {
		if !errors.Is(err, domain.ErrAuditNotFound) {
			w.notify(LevelError, "failed to load audit")
		}
		return View{}, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.apply(loaded.AuditID, loaded.Summary, loaded.RawInput, loaded.Issues)
	w.recountLocked()
	return w.viewLocked(), nil
}

// recountLocked rewrites the cached counters of the active audit from the list.
func (w *Workspace) recountLocked() {
	for h := range w.history {
		if w.history[h].ID == w.activeAuditID {
			w.history[h].TotalIssues = len(w.issues)
			w.history[h].CompletedIssues = domain.CountDone(w.issues)
		}
	}
}

// DeleteAudit removes a stored audit and clears the workspace when it was active.
func (w *Workspace) DeleteAudit(ctx context.Context, auditID string) (View, error) {
	if w.m.history == nil {
		return View{}, domain.ErrAuditNotFound
	}
	if err := w.m.history.DeleteAudit(ctx, w.ownerID, auditID); err != nil {
		if !errors.Is(err, domain.ErrAuditNotFound) {
			w.notify(LevelError, "failed to delete audit: "+err.Error())
		}
		return View{}, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	kept := w.history[:0]
	for _, h := range w.history {
		if h.ID != auditID {
			kept = append(kept, h)
		}
	}
	w.history = kept
	if w.activeAuditID == auditID {
		w.apply("", "", "", nil)
	}
	w.notifyLocked(LevelSuccess, "audit deleted")
	return w.viewLocked(), nil
}
