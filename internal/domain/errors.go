package domain

import (
	"errors"
	"fmt"
)

// FailureKind names the ways a pipeline step can fail. Callers decide per kind
// whether to surface the failure or log and continue.
type FailureKind string

const (
	NetworkUnreachable  FailureKind = "network_unreachable"
	ProviderUnreachable FailureKind = "provider_unreachable"
	PersistenceFailure  FailureKind = "persistence_failure"
	NotificationFailure FailureKind = "notification_failure"
	MalformedRequest    FailureKind = "malformed_request"
)

// Error lets a bare kind act as an errors.Is target.
func (k FailureKind) Error() string { return string(k) }

// Failure wraps an underlying error with its kind.
type Failure struct {
	Kind FailureKind
	Err  error
}

func NewFailure(kind FailureKind, err error) *Failure {
	return &Failure{Kind: kind, Err: err}
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return string(f.Kind)
	}
	return fmt.Sprintf("%s: %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Is matches on kind, so errors.Is(err, domain.PersistenceFailure) works.
func (f *Failure) Is(target error) bool {
	k, ok := target.(FailureKind)
	return ok && k == f.Kind
}

// KindOf returns the failure kind carried by err, if any.
func KindOf(err error) (FailureKind, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind, true
	}
	return "", false
}

var ErrAlreadyFixed = errors.New("job already fixed")
