package ingest

import (
	"errors"
	"fmt"
)

// ErrNoPayload signals a fetched message without a body structure. It is
// fatal for that message only.
var ErrNoPayload = errors.New("message has no payload")

// ProviderError wraps a transport/auth failure from the mail provider.
// A listing failure aborts the run; a fetch failure is isolated to one
// message.
type ProviderError struct {
	Op  string
	ID  string // message id, empty for listing
	Err error
}

func (e *ProviderError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("provider: %s %s: %v", e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("provider: %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// PersistenceError wraps a storage failure. On the bulk insert path it is
// fatal for the run.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ItemError records a per-message failure collected during a run.
type ItemError struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}
