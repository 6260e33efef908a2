package domain

import (
	"errors"
	"fmt"
)

var (
	ErrAuditNotFound    = errors.New("audit not found")
	ErrFindingNotFound  = errors.New("finding not found")
	ErrEmptyInput       = errors.New("input text is required")
	ErrCreditsExhausted = errors.New("system credits exhausted, use your own API key")
	ErrSaveInFlight     = errors.New("a save for this audit is already in progress")
)

// InvalidResponseError means the model reply carried no recognizable findings list.
type InvalidResponseError struct {
	Reason string
}

func (e *InvalidResponseError) Error() string {
	return "server did not return valid findings: " + e.Reason
}

// StoreError wraps a failure of the record store.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// WrapStore tags err with the store operation that produced it. Not-found sentinels
// pass through untouched so callers can still match them directly.
func WrapStore(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrAuditNotFound) || errors.Is(err, ErrFindingNotFound) {
		return err
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}
