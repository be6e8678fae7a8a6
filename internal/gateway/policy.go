// Package gateway maps entity kinds onto remote document store collections,
// validating records before every write and absorbing remote failures
// under the offline policy.
package gateway

import (
	"errors"
	"fmt"

	"github.com/julianstephens/habitflow/internal/constants"
)

var (
	// ErrNoIdentity is returned when a call has no owner to scope it to.
	ErrNoIdentity = errors.New("no identity for remote call")
	// ErrRemote wraps remote failures returned under the strict policy.
	ErrRemote = errors.New("remote store call failed")
)

// Policy decides what happens when the remote store fails.
type Policy int

const (
	// Offline logs the failure and returns a local fallback.
	Offline Policy = iota
	// Strict returns the failure to the caller.
	Strict
)

func (p Policy) String() string {
	if p == Strict {
		return constants.PolicyStrict
	}
	return constants.PolicyOffline
}

func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", constants.PolicyOffline:
		return Offline, nil
	case constants.PolicyStrict:
		return Strict, nil
	default:
		return Offline, fmt.Errorf("unknown sync policy %q (want %s or %s)", s, constants.PolicyOffline, constants.PolicyStrict)
	}
}

// SyncResult is the outcome of a remote call under the offline policy.
// Err holds the absorbed remote failure; Value is the remote result, or
// the local fallback when Err is set.
type SyncResult[T any] struct {
	Value T
	Err   error
}

// Degraded reports whether Value is a local fallback.
func (r SyncResult[T]) Degraded() bool { return r.Err != nil }

func ok[T any](v T) SyncResult[T] { return SyncResult[T]{Value: v} }

// Reporter observes every remote call.
type Reporter interface {
	ObserveCall(collection, op string, err error)
}

type nopReporter struct{}

func (nopReporter) ObserveCall(string, string, error) {}
