// Package outcome provides a three-state result for asynchronous lookups:
// unresolved, failed, or resolved with a value.
//
// It replaces the success-callback/failure-callback pair with a single value
// that makes "not yet known" explicit, so consumers cannot confuse a pending
// lookup with an empty result.
package outcome

// State describes where an asynchronous lookup currently stands.
type State int

const (
	// Unresolved means the lookup has not completed yet.
	Unresolved State = iota
	// Failed means the lookup completed with an error.
	Failed
	// Resolved means the lookup completed with a value.
	Resolved
)

// String returns the state name for logging.
func (s State) String() string {
	switch s {
	case Failed:
		return "failed"
	case Resolved:
		return "resolved"
	default:
		return "unresolved"
	}
}

// Outcome holds the result of an asynchronous lookup. The zero value is
// Unresolved, which is what makes it safe to embed in freshly-created state.
type Outcome[T any] struct {
	state State
	value T
	err   error
}

// Of returns a resolved outcome carrying value.
func Of[T any](value T) Outcome[T] {
	return Outcome[T]{state: Resolved, value: value}
}

// Fail returns a failed outcome carrying err.
func Fail[T any](err error) Outcome[T] {
	return Outcome[T]{state: Failed, err: err}
}

// State returns the current state.
func (o Outcome[T]) State() State { return o.state }

// Get returns the value and true if the outcome is resolved.
func (o Outcome[T]) Get() (T, bool) {
	return o.value, o.state == Resolved
}

// Err returns the failure cause, or nil unless the outcome is failed.
func (o Outcome[T]) Err() error {
	if o.state != Failed {
		return nil
	}
	return o.err
}
