package crud

import "errors"

var (
	// ErrUnknownBackend is returned when Config.Backend names no adapter.
	ErrUnknownBackend = errors.New("recrud: unknown backend")

	// ErrUnknownRequestor is returned when a named requestor is not registered.
	ErrUnknownRequestor = errors.New("recrud: unknown requestor")

	// ErrMissingName is returned when a resource has neither Name nor ActionPrefix.
	ErrMissingName = errors.New("recrud: resource name is required")

	// ErrInvalidExpression is returned when KeyExpr or SuccessExpr does not compile.
	ErrInvalidExpression = errors.New("recrud: invalid expression")
)
