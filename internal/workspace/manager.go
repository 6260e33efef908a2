// Package workspace holds the per-owner working state of the audit terminal: the
// active audit, its findings and summary, the recent history list and pending
// notifications. It orchestrates analysis, saving and point updates.
package workspace

import (
	"context"
	"sync"
	"time"

	"github.com/synapse-qa/synapse-backend/internal/audits/domain"
	"github.com/synapse-qa/synapse-backend/internal/audits/normalize"
	"github.com/synapse-qa/synapse-backend/internal/audits/service"
	"github.com/synapse-qa/synapse-backend/internal/llm"
	"github.com/synapse-qa/synapse-backend/internal/logging"
	"github.com/synapse-qa/synapse-backend/internal/settings"
)

// Deps are the collaborators shared by every workspace. Store may be nil, in
// which case workspaces run local-only and nothing is persisted.
type Deps struct {
	Providers  *llm.Registry
	Normalizer normalize.Options
	Store      domain.AuditStore
	Settings   *settings.Store
	Keys       settings.KeyStore
	Guard      Guard
}

// Manager owns one Workspace per owner. Workspaces live in this process only, so
// the service runs as a single instance; idle ones are evicted by EvictIdle.
type Manager struct {
	deps       Deps
	reconciler *service.Reconciler
	history    *service.HistoryService
	now        func() time.Time

	mu         sync.Mutex
	workspaces map[string]*Workspace
	pushes     sync.WaitGroup
}

func NewManager(deps Deps) *Manager {
	if deps.Guard == nil {
		deps.Guard = NewMemoryGuard()
	}
	if deps.Keys == nil {
		deps.Keys = settings.NewMemoryKeyStore()
	}
	m := &Manager{deps: deps, now: time.Now, workspaces: make(map[string]*Workspace)}
	if deps.Store != nil {
		m.reconciler = service.NewReconciler(deps.Store)
		m.history = service.NewHistoryService(deps.Store, deps.Normalizer)
	}
	return m
}

// LocalOnly reports whether workspaces run without a record store.
func (m *Manager) LocalOnly() bool {
	return m.deps.Store == nil
}

// For returns the workspace of ownerID, creating it on first use.
func (m *Manager) For(ownerID string) *Workspace {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workspaces[ownerID]
	if !ok {
		w = &Workspace{ownerID: ownerID, m: m}
		m.workspaces[ownerID] = w
	}
	w.lastUsed = m.now()
	return w
}

// EvictIdle drops workspaces not used for maxIdle and returns how many went.
// Persisted audits stay reachable through the owner's history.
func (m *Manager) EvictIdle(maxIdle time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := m.now().Add(-maxIdle)
	n := 0
	for owner, w := range m.workspaces {
		if w.lastUsed.Before(cutoff) {
			delete(m.workspaces, owner)
			n++
		}
	}
	return n
}

// RunEviction calls EvictIdle every interval until ctx is done.
func (m *Manager) RunEviction(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.EvictIdle(maxIdle); n > 0 {
				logging.L().Infow("evicted idle workspaces", "count", n)
			}
		}
	}
}

// Len returns how many workspaces are held.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.workspaces)
}

// Wait blocks until every background push has finished.
func (m *Manager) Wait() {
	m.pushes.Wait()
}
