// Package settings holds the per-owner preferences the browser used to keep in
// local storage: the remaining system credits and the selected provider.
package settings

import (
	"context"
	"errors"
	"strconv"
)

const (
	DefaultCredits  = 10
	DefaultProvider = "gemini"

	keyPrefix = "synapse:settings:"
)

// CreditsPrefix is the key prefix shared by every owner's credit counter.
const CreditsPrefix = keyPrefix + "credits:"

// ErrInvalidProvider is returned when a provider name is not supported.
var ErrInvalidProvider = errors.New("invalid provider")

// Settings is the settings object of one owner.
type Settings struct {
	kv             KV
	ownerID        string
	defaultCredits int
	providers      map[string]bool
}

// Store hands out per-owner Settings over one KV.
type Store struct {
	kv             KV
	defaultCredits int
	providers      map[string]bool
}

// NewStore creates a settings store. providers lists the accepted provider names.
func NewStore(kv KV, defaultCredits int, providers []string) *Store {
	if defaultCredits <= 0 {
		defaultCredits = DefaultCredits
	}
	known := make(map[string]bool, len(providers))
	for _, p := range providers {
		known[p] = true
	}
	return &Store{kv: kv, defaultCredits: defaultCredits, providers: known}
}

// For returns the settings of ownerID.
func (s *Store) For(ownerID string) *Settings {
	return &Settings{kv: s.kv, ownerID: ownerID, defaultCredits: s.defaultCredits, providers: s.providers}
}

func (s *Settings) creditsKey() string  { return CreditsPrefix + s.ownerID }
func (s *Settings) providerKey() string { return keyPrefix + "provider:" + s.ownerID }

// Credits returns the remaining system credits. A missing or corrupt value reads as
// the default allowance.
func (s *Settings) Credits(ctx context.Context) (int, error) {
	v, ok, err := s.kv.Get(ctx, s.creditsKey())
	if err != nil {
		return 0, err
	}
	if !ok {
		return s.defaultCredits, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return s.defaultCredits, nil
	}
	return n, nil
}

// ConsumeCredit decrements the counter, never below zero, and returns what is left.
func (s *Settings) ConsumeCredit(ctx context.Context) (int, error) {
	return s.kv.DecrFloor(ctx, s.creditsKey(), s.defaultCredits)
}

// Provider returns the selected provider, falling back to the default.
func (s *Settings) Provider(ctx context.Context) (string, error) {
	v, ok, err := s.kv.Get(ctx, s.providerKey())
	if err != nil {
		return "", err
	}
	if !ok || !s.providers[v] {
		return DefaultProvider, nil
	}
	return v, nil
}

// SetProvider persists the provider preference.
func (s *Settings) SetProvider(ctx context.Context, provider string) error {
	if !s.providers[provider] {
		return ErrInvalidProvider
	}
	return s.kv.Set(ctx, s.providerKey(), provider)
}

// Snapshot is the settings view returned to clients.
type Snapshot struct {
	Provider string `json:"provider"`
	Credits  int    `json:"credits"`
}

func (s *Settings) Snapshot(ctx context.Context) (Snapshot, error) {
	p, err := s.Provider(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	c, err := s.Credits(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Provider: p, Credits: c}, nil
}
