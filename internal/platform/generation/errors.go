package generation

import (
	"errors"
	"fmt"
)

// Kind classifies a generation failure. Callers treat the credential kinds
// as blocking (prompt for a new key) and KindFailed as retryable.
type Kind int

const (
	KindFailed Kind = iota
	KindMissingCredential
	KindInvalidCredential
)

func (k Kind) String() string {
	switch k {
	case KindMissingCredential:
		return "missing_credential"
	case KindInvalidCredential:
		return "invalid_credential"
	default:
		return "failed"
	}
}

// Error is the only error type returned by the Adapter.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("generation %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("generation %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by Kind so errors.Is(err, ErrMissingCredential)
// works regardless of Op.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Err == nil
}

var (
	ErrMissingCredential = &Error{Kind: KindMissingCredential}
	ErrInvalidCredential = &Error{Kind: KindInvalidCredential}
	ErrFailed            = &Error{Kind: KindFailed}

	errEmptyResponse = errors.New("empty response")
)

// KindOf returns the Kind of err, or KindFailed when err is not a
// generation error.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return KindFailed
}
