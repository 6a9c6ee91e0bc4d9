// Package errkind implements the error taxonomy of spec.md §7 as a small
// set of sentinel wrapper types. Each kind satisfies error and Unwrap so
// callers can still errors.Is/errors.As through to the underlying cause.
package errkind

import "fmt"

// Transient marks an error that is expected to resolve on retry (timeouts,
// connection resets, a momentarily unavailable dependency).
type Transient struct {
	Op  string
	Err error
}

func (e *Transient) Error() string { return fmt.Sprintf("transient: %s: %v", e.Op, e.Err) }
func (e *Transient) Unwrap() error { return e.Err }

// PoisonedInput marks an error caused by malformed or adversarial input
// that will never succeed no matter how many times it is retried.
type PoisonedInput struct {
	Op  string
	Err error
}

func (e *PoisonedInput) Error() string { return fmt.Sprintf("poisoned input: %s: %v", e.Op, e.Err) }
func (e *PoisonedInput) Unwrap() error { return e.Err }

// PolicyDenied marks an error where the request was well-formed but denied
// by a policy decision (rate limit, authorization, quota).
type PolicyDenied struct {
	Op  string
	Err error
}

func (e *PolicyDenied) Error() string { return fmt.Sprintf("policy denied: %s: %v", e.Op, e.Err) }
func (e *PolicyDenied) Unwrap() error { return e.Err }

// ResourceFailure marks an error where a backing resource (database, pod,
// external API) failed in a way that is not expected to self-heal quickly.
type ResourceFailure struct {
	Op  string
	Err error
}

func (e *ResourceFailure) Error() string { return fmt.Sprintf("resource failure: %s: %v", e.Op, e.Err) }
func (e *ResourceFailure) Unwrap() error { return e.Err }

// AuthFailure marks an error from a failed authentication or authorization
// check (bad SRP proof, expired session, invalid JWT).
type AuthFailure struct {
	Op  string
	Err error
}

func (e *AuthFailure) Error() string { return fmt.Sprintf("auth failure: %s: %v", e.Op, e.Err) }
func (e *AuthFailure) Unwrap() error { return e.Err }

func Transientf(op string, err error) error    { return &Transient{Op: op, Err: err} }
func Poisonedf(op string, err error) error     { return &PoisonedInput{Op: op, Err: err} }
func PolicyDeniedf(op string, err error) error { return &PolicyDenied{Op: op, Err: err} }
func ResourceFailuref(op string, err error) error {
	return &ResourceFailure{Op: op, Err: err}
}
func AuthFailuref(op string, err error) error { return &AuthFailure{Op: op, Err: err} }
