package dynamosvc

import (
	"context"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/jacentio/recrud/service"
)

// API is the subset of *dynamodb.Client the adapter uses.
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// Config holds configuration for a DynamoDB resource.
type Config struct {
	// Table is the DynamoDB table name.
	Table string

	// Key is the record identifier attribute. It is the hash key, or the
	// range key when PartitionKey is set.
	Key string

	// PartitionKey, when set, is the hash key attribute. FetchList queries a
	// single partition when the request params carry its value.
	PartitionKey string

	// SoftDelete makes Delete set TTLAttribute instead of removing the item.
	// Reads skip items whose TTL has passed.
	SoftDelete bool

	// TTLAttribute names the expiry attribute. Defaults to "ttl".
	TTLAttribute string

	// Transformer rewrites response payloads; for lists it runs per record.
	Transformer service.Transformer

	// Logger receives driver failures.
	Logger *slog.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Key:          "id",
		TTLAttribute: "ttl",
		Logger:       slog.Default(),
	}
}

func (c *Config) validate() {
	if c.Key == "" {
		c.Key = "id"
	}
	if c.TTLAttribute == "" {
		c.TTLAttribute = "ttl"
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
