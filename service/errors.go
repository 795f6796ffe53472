package service

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is reported when the addressed record does not exist or is deleted.
	ErrNotFound = errors.New("recrud: record not found")

	// ErrAlreadyExists is reported when creating a record with an existing identity.
	ErrAlreadyExists = errors.New("recrud: record already exists")

	// ErrMissingID is returned when an operation needs a record identifier and got none.
	ErrMissingID = errors.New("recrud: record id is required")
)

// TransportError is a network, serialization or driver failure. Its message is
// what the store records for the failed lane.
type TransportError struct {
	// Op is the operation name (e.g. "fetchList").
	Op string

	// Target is the URL, table or resource the operation addressed.
	Target string

	// Err is the underlying failure.
	Err error
}

func (e *TransportError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Target, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransportError reports whether err is, or wraps, a TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// Rejection builds the unsuccessful Result of a server-side error.
func Rejection(status int, err error) Result {
	return Result{
		ResponseData: map[string]any{"message": err.Error()},
		Success:      false,
		StatusCode:   status,
	}
}
