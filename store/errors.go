package store

import "errors"

var (
	// ErrUnresolvedKey is recorded when a success event carries no resolvable record identity.
	ErrUnresolvedKey = errors.New("recrud: record identity could not be resolved")

	// ErrNoCollection is recorded when a list response holds no record collection.
	ErrNoCollection = errors.New("recrud: list response has no record collection")

	// ErrDuplicateResource is returned when a resource name or event type is
	// already registered.
	ErrDuplicateResource = errors.New("recrud: resource already registered")

	// ErrRequestFailed is the fallback message for failures without a usable error body.
	ErrRequestFailed = errors.New("recrud: request failed")
)
