package llm

import (
	"errors"
	"fmt"
)

// ErrorKind classifies provider failures.
type ErrorKind string

const (
	KindQuota      ErrorKind = "quota"
	KindInvalidKey ErrorKind = "invalid_key"
	KindUpstream   ErrorKind = "upstream"
	KindMalformed  ErrorKind = "malformed"
)

var ErrUnknownProvider = errors.New("unknown provider")

// ProviderError is a failed provider call. Message is safe to show to the user.
type ProviderError struct {
	Provider string
	Kind     ErrorKind
	Status   int
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s %s (status %d): %s", e.Provider, e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s %s: %s", e.Provider, e.Kind, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// classify maps an HTTP failure to a ProviderError.
func classify(provider string, status int, msg string) *ProviderError {
	kind := KindUpstream
	switch {
	case status == 429:
		kind = KindQuota
		msg = "quota exceeded, try again later or switch provider"
	case status == 401 || status == 403:
		kind = KindInvalidKey
		msg = "API key is invalid or expired"
	}
	if msg == "" {
		msg = fmt.Sprintf("upstream returned status %d", status)
	}
	return &ProviderError{Provider: provider, Kind: kind, Status: status, Message: msg}
}
