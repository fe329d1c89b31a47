package fetch

import (
	"errors"
	"fmt"

	"github.com/WessleyAI/showpulse/pkg/fn"
)

// Failure classes. All three are retryable and cost the worker its identity.
var (
	ErrBlocked  = errors.New("blocked response")
	ErrNetwork  = errors.New("network failure")
	ErrDeadline = fn.ErrDeadline
)

// Kind labels a failure class in logs and metrics.
type Kind string

const (
	KindBlocked  Kind = "blocked"
	KindNetwork  Kind = "network"
	KindDeadline Kind = "deadline"
)

// FetchError wraps one of the failure sentinels with venue context.
type FetchError struct {
	Venue  string
	Kind   Kind
	Status int
	Detail string
	Err    error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("fetch %s: %s", e.Venue, e.Err)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *FetchError) Unwrap() error { return e.Err }

// KindOf returns the failure class of err, or "" for success and
// anything not produced by an Executor.
func KindOf(err error) Kind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}
