// Package brokererr defines the error kinds used to classify failures
// across Broker's components, per the error handling policy table.
package brokererr

import (
	"errors"
	"fmt"
)

// Kind identifies which handling policy an error gets (see the policy
// table: fatal at startup, logged-and-skipped, retried, etc).
type Kind int

const (
	// KindConfig is a fatal configuration/validation error, surfaced at
	// startup with exit code 2.
	KindConfig Kind = iota
	// KindMigration is a fatal schema migration failure, exit code 1.
	KindMigration
	// KindAuth means the remote rejected credentials (401/403) or denied
	// permission. Never retried within a poll cycle.
	KindAuth
	// KindTransport means a network/DNS/connect failure. Retried with
	// backoff inside the raising component; skipped if still failing.
	KindTransport
	// KindProtocol means a remote produced output Broker could not parse.
	KindProtocol
	// KindAnalyzer is a non-fatal warning from the analyzer CLI.
	KindAnalyzer
	// KindStorage is a Reference Store failure. Fatal only on the write
	// path of a successful upload; otherwise logged and retried.
	KindStorage
	// KindCancelled means the operation was aborted by shutdown. Never
	// logged as a failure.
	KindCancelled
	// KindFatal means the remote rejected the request for a reason that
	// retrying will not fix (a malformed request, an unknown route) but
	// that isn't a credentials problem. Never retried.
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindMigration:
		return "migration"
	case KindAuth:
		return "auth"
	case KindTransport:
		return "transport"
	case KindProtocol:
		return "protocol"
	case KindAnalyzer:
		return "analyzer"
	case KindStorage:
		return "storage"
	case KindCancelled:
		return "cancelled"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error wraps an underlying cause with a Kind so callers can classify
// it with errors.As without string-matching messages.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with kind and an operation label describing where it
// was raised (e.g. "git.list_refs").
func New(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
