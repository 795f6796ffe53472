package httpsvc

import (
	"log/slog"
	"net/http"

	"github.com/jacentio/recrud/service"
)

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config holds configuration for an HTTP resource client.
type Config struct {
	// BaseURL is prepended to every resource path (e.g. "https://api.example.com").
	BaseURL string

	// Resource is the collection path below BaseURL (e.g. "users").
	Resource string

	// ResourceFunc, when set, computes the resource path from Args instead of
	// using Resource.
	ResourceFunc func(args map[string]any) string

	// Args are the factory arguments passed to ResourceFunc.
	Args map[string]any

	// Key is the identifier attribute of records. PUT reads the id from it
	// when the request has none.
	Key string

	// DefaultParams are merged under the request's query parameters on GET.
	DefaultParams map[string]any

	// Headers are sent on every request and override the default Accept header.
	Headers map[string]string

	// ResponseCollectionKey names the list field of FetchList responses that
	// wrap their records in an object.
	ResponseCollectionKey string

	// Transformer rewrites response payloads; for lists it runs per record.
	Transformer service.Transformer

	// Client sends the requests.
	Client Doer

	// Logger receives transport failures.
	Logger *slog.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Key:    "id",
		Client: http.DefaultClient,
		Logger: slog.Default(),
	}
}

func (c *Config) validate() {
	if c.Key == "" {
		c.Key = "id"
	}
	if c.Client == nil {
		c.Client = http.DefaultClient
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
