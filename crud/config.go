package crud

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/jacentio/recrud/service/sqlsvc"
	"github.com/jacentio/recrud/store"
)

// Backend selects the adapter performing a resource's I/O.
type Backend string

const (
	BackendHTTP     Backend = "http"
	BackendDynamoDB Backend = "dynamodb"
	BackendSQL      Backend = "sql"
)

// RequestorConfig declares an additional named requestor. It reuses the lane
// of Op against a different resource path or table.
type RequestorConfig struct {
	Name     string `yaml:"name"`
	Op       string `yaml:"op"`
	Resource string `yaml:"resource"`
	Table    string `yaml:"table"`
}

// Config holds configuration for one CRUD resource.
type Config struct {
	// Name identifies the resource in a Factory's root state.
	Name string `yaml:"name"`

	// ActionPrefix builds the event base "{ActionPrefix}_CRUD".
	// Default: strings.ToUpper(Name)
	ActionPrefix string `yaml:"actionPrefix"`

	// Backend selects the adapter.
	// Default: "http"
	Backend Backend `yaml:"backend"`

	// BaseURL and Resource address an HTTP resource.
	BaseURL  string `yaml:"baseUrl"`
	Resource string `yaml:"resource"`

	// Table names the DynamoDB or SQL table.
	Table string `yaml:"table"`

	// Key is the record identifier field.
	// Default: "id"
	Key string `yaml:"key"`

	// PartitionKey is the parent identifier field of nested resources.
	PartitionKey string `yaml:"partitionKey"`

	// ResponseCollectionKey names the list field of wrapped list responses.
	ResponseCollectionKey string `yaml:"responseCollectionKey"`

	// DefaultParams are merged under the query params of HTTP GET requests.
	DefaultParams map[string]any `yaml:"defaultParams"`

	// Headers are sent with every HTTP request.
	Headers map[string]string `yaml:"headers"`

	// KeyExpr is an expr-lang expression over a response record computing its
	// identity, e.g. `orgId + "/" + id`.
	KeyExpr string `yaml:"keyExpr"`

	// SuccessExpr is a CEL expression over status, success and response
	// deciding whether a result counts as success, e.g. `status == 200`.
	SuccessExpr string `yaml:"successExpr"`

	// SoftDelete marks DynamoDB items expired instead of deleting them.
	SoftDelete bool `yaml:"softDelete"`

	// SQLDriver and DSN open the database of the SQL backend.
	// Default driver: "pgx"
	SQLDriver string `yaml:"sqlDriver"`
	DSN       string `yaml:"dsn"`

	// Dialect is the SQL flavor: "postgres" or "sqlite3".
	// Default: derived from SQLDriver
	Dialect string `yaml:"dialect"`

	// Requestors declares additional named requestors.
	Requestors []RequestorConfig `yaml:"requestors"`

	// Logger receives the resource's logs.
	// Default: slog.Default()
	Logger *slog.Logger `yaml:"-"`
}

// DefaultConfig returns a Config for an HTTP resource keyed by "id".
func DefaultConfig() Config {
	return Config{
		Backend:   BackendHTTP,
		Key:       "id",
		SQLDriver: "pgx",
		Logger:    slog.Default(),
	}
}

// ActionBase returns the event base of the resource.
func (c Config) ActionBase() string {
	return c.ActionPrefix + "_CRUD"
}

// validate fills unset fields with their defaults and rejects unusable ones.
func (c *Config) validate() error {
	if c.ActionPrefix == "" {
		c.ActionPrefix = strings.ToUpper(c.Name)
	}
	if c.Name == "" {
		c.Name = strings.ToLower(c.ActionPrefix)
	}
	if c.Name == "" {
		return ErrMissingName
	}
	if c.Backend == "" {
		c.Backend = BackendHTTP
	}
	if c.Key == "" {
		c.Key = "id"
	}
	if c.SQLDriver == "" {
		c.SQLDriver = "pgx"
	}
	if c.Dialect == "" {
		c.Dialect = dialectFor(c.SQLDriver)
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}

	switch c.Backend {
	case BackendHTTP, BackendDynamoDB, BackendSQL:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Backend)
	}
	for _, r := range c.Requestors {
		if _, ok := store.ParseOp(r.Op); !ok {
			return fmt.Errorf("requestor %q: unknown op %q", r.Name, r.Op)
		}
	}
	return nil
}

// withDefaults fills the zero fields of c from d.
func (c Config) withDefaults(d Config) Config {
	if c.Backend == "" {
		c.Backend = d.Backend
	}
	if c.BaseURL == "" {
		c.BaseURL = d.BaseURL
	}
	if c.Resource == "" {
		c.Resource = d.Resource
	}
	if c.Table == "" {
		c.Table = d.Table
	}
	if c.Key == "" {
		c.Key = d.Key
	}
	if c.PartitionKey == "" {
		c.PartitionKey = d.PartitionKey
	}
	if c.ResponseCollectionKey == "" {
		c.ResponseCollectionKey = d.ResponseCollectionKey
	}
	if c.KeyExpr == "" {
		c.KeyExpr = d.KeyExpr
	}
	if c.SuccessExpr == "" {
		c.SuccessExpr = d.SuccessExpr
	}
	if !c.SoftDelete {
		c.SoftDelete = d.SoftDelete
	}
	if c.SQLDriver == "" {
		c.SQLDriver = d.SQLDriver
	}
	if c.DSN == "" {
		c.DSN = d.DSN
	}
	if c.Dialect == "" {
		c.Dialect = d.Dialect
	}
	if c.Logger == nil {
		c.Logger = d.Logger
	}
	c.DefaultParams = mergeParams(d.DefaultParams, c.DefaultParams)
	c.Headers = mergeHeaders(d.Headers, c.Headers)
	return c
}

// storeConfig derives the reducer configuration.
func (c Config) storeConfig() store.Config {
	cfg := store.DefaultConfig()
	cfg.Key = c.Key
	cfg.PartitionKey = c.PartitionKey
	cfg.ResponseCollectionKey = c.ResponseCollectionKey
	cfg.Logger = c.Logger.With("resource", c.Name)
	return cfg
}

func dialectFor(driver string) string {
	switch driver {
	case "sqlite3", "sqlite":
		return sqlsvc.DialectSQLite
	}
	return sqlsvc.DialectPostgres
}

func mergeParams(base, overlay map[string]any) map[string]any {
	if base == nil && overlay == nil {
		return nil
	}
	out := make(map[string]any, len(base)+len(overlay))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overlay {
		out[k] = v
	}
	return out
}

func mergeHeaders(base, overlay map[string]string) map[string]string {
	if base == nil && overlay == nil {
		return nil
	}
	out := make(map[string]string, len(base)+len(overlay))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overlay {
		out[k] = v
	}
	return out
}
