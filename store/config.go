package store

import "log/slog"

// KeyExtractor computes a record identity from a response payload.
type KeyExtractor func(data map[string]any) string

// ServerErrorFunc extracts an error message from a server-provided error body.
type ServerErrorFunc func(responseData any) string

// Config holds configuration for a Reducer.
type Config struct {
	// Key is the record field holding its identifier.
	// Default: "id"
	Key string

	// PartitionKey is the record field holding the parent identifier for
	// resources nested under a parent. Events may override it.
	// Default: "" (no partitioning)
	PartitionKey string

	// ResponseCollectionKey names the field of a list response holding the
	// records. Events may override it.
	// Default: "" (the list response is the collection itself)
	ResponseCollectionKey string

	// KeyExtractor derives identities from response payloads. Events may
	// override it.
	// Default: nil (field based derivation)
	KeyExtractor KeyExtractor

	// ServerError extracts failure messages from error bodies.
	// Default: ServerErrorMessage
	ServerError ServerErrorFunc

	// Logger receives contract violations.
	// Default: slog.Default()
	Logger *slog.Logger
}

// DefaultConfig returns the defaults used by most REST resources.
func DefaultConfig() Config {
	return Config{
		Key:         "id",
		ServerError: ServerErrorMessage,
		Logger:      slog.Default(),
	}
}

// validate fills unset fields with their defaults.
func (c *Config) validate() {
	if c.Key == "" {
		c.Key = "id"
	}
	if c.ServerError == nil {
		c.ServerError = ServerErrorMessage
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
