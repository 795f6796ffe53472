package sqlsvc

import (
	"log/slog"

	"github.com/jacentio/recrud/service"
)

// Supported goqu dialects.
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite3"
)

// Config holds configuration for a SQL table resource.
type Config struct {
	// Table is the table name. Its columns are the record fields.
	Table string

	// Key is the identifier column.
	Key string

	// PartitionKey, when set, is a column that scopes record lookups. Its
	// value is read from the request params or body.
	PartitionKey string

	// Dialect selects the SQL flavor generated: "postgres" or "sqlite3".
	Dialect string

	// Transformer rewrites response payloads; for lists it runs per record.
	Transformer service.Transformer

	// Logger receives driver failures.
	Logger *slog.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Key:     "id",
		Dialect: DialectPostgres,
		Logger:  slog.Default(),
	}
}

func (c *Config) validate() {
	if c.Key == "" {
		c.Key = "id"
	}
	if c.Dialect == "" {
		c.Dialect = DialectPostgres
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
