package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// APIKeys are an owner's personal provider keys.
type APIKeys struct {
	GeminiKey string `json:"geminiKey,omitempty"`
	GroqKey   string `json:"groqKey,omitempty"`
}

// For returns the key stored for provider, or "".
func (k APIKeys) For(provider string) string {
	switch provider {
	case "gemini":
		return k.GeminiKey
	case "groq":
		return k.GroqKey
	}
	return ""
}

// Masked hides all but the last four characters of each key.
func (k APIKeys) Masked() APIKeys {
	return APIKeys{GeminiKey: mask(k.GeminiKey), GroqKey: mask(k.GroqKey)}
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", len(s)-4) + s[len(s)-4:]
}

// KeyStore persists APIKeys per owner.
type KeyStore interface {
	GetKeys(ctx context.Context, ownerID string) (APIKeys, error)
	UpsertKeys(ctx context.Context, ownerID string, keys APIKeys) error
}

type pgxQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// KeysRepo stores keys in the user_configs table.
type KeysRepo struct {
	db pgxQuerier
}

// NewKeysRepo accepts a *pgxpool.Pool or anything with the same query surface.
func NewKeysRepo(db pgxQuerier) *KeysRepo {
	return &KeysRepo{db: db}
}

func (r *KeysRepo) GetKeys(ctx context.Context, ownerID string) (APIKeys, error) {
	const q = `
select coalesce(gemini_key, ''), coalesce(groq_key, '')
from user_configs
where user_id = $1;
`
	var k APIKeys
	err := r.db.QueryRow(ctx, q, ownerID).Scan(&k.GeminiKey, &k.GroqKey)
	if errors.Is(err, pgx.ErrNoRows) {
		return APIKeys{}, nil
	}
	if err != nil {
		return APIKeys{}, fmt.Errorf("get user config: %w", err)
	}
	return k, nil
}

// UpsertKeys writes keys; an empty field keeps the stored value.
func (r *KeysRepo) UpsertKeys(ctx context.Context, ownerID string, keys APIKeys) error {
	if ownerID == "" {
		return fmt.Errorf("user_id required")
	}
	const q = `
insert into user_configs (user_id, gemini_key, groq_key, updated_at)
values ($1, nullif($2,''), nullif($3,''), now())
on conflict (user_id) do update
set
  gemini_key = coalesce(excluded.gemini_key, user_configs.gemini_key),
  groq_key = coalesce(excluded.groq_key, user_configs.groq_key),
  updated_at = now();
`
	if _, err := r.db.Exec(ctx, q, ownerID, keys.GeminiKey, keys.GroqKey); err != nil {
		return fmt.Errorf("upsert user config: %w", err)
	}
	return nil
}

// MemoryKeyStore is the KeyStore used when no database is configured.
type MemoryKeyStore struct {
	mu   sync.RWMutex
	keys map[string]APIKeys
}

func NewMemoryKeyStore() *MemoryKeyStore {
	return &MemoryKeyStore{keys: make(map[string]APIKeys)}
}

func (m *MemoryKeyStore) GetKeys(_ context.Context, ownerID string) (APIKeys, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.keys[ownerID], nil
}

func (m *MemoryKeyStore) UpsertKeys(_ context.Context, ownerID string, keys APIKeys) error {
	if ownerID == "" {
		return fmt.Errorf("user_id required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cur := m.keys[ownerID]
	if keys.GeminiKey != "" {
		cur.GeminiKey = keys.GeminiKey
	}
	if keys.GroqKey != "" {
		cur.GroqKey = keys.GroqKey
	}
	m.keys[ownerID] = cur
	return nil
}
