package domain

import (
	"errors"
	"fmt"

	"github.com/rotisserie/eris"
)

// Error taxonomy shared by every package. Check with errors.Is.
var (
	ErrValidation         = errors.New("validation error")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrNoAvailableNumbers = errors.New("no available phone numbers in pool")
	ErrStorage            = errors.New("storage error")
	ErrUpstreamTimeout    = errors.New("upstream timeout")
	ErrAssignmentPersist  = errors.New("assignment persist failed")
	ErrRateLimited        = errors.New("rate limited")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrForbidden          = errors.New("forbidden")
)

// classified pairs a taxonomy class with the underlying cause.
type classified struct {
	class error
	err   error
}

func (e *classified) Error() string   { return e.err.Error() }
func (e *classified) Unwrap() []error { return []error{e.class, e.err} }

// Classify tags err with class while keeping err's chain intact.
func Classify(class, err error) error {
	if err == nil {
		return nil
	}
	return &classified{class: class, err: err}
}

// Validation returns an ErrValidation with a caller-facing message.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// StorageError wraps a driver failure and marks it as ErrStorage.
func StorageError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return Classify(ErrStorage, eris.Wrap(err, msg))
}
