// Package crud wires a resource's actions, reducer, service adapter and
// request sequencer from a single configuration.
//
//	users, err := crud.New(ctx, crud.Config{
//		Name:     "users",
//		BaseURL:  "https://api.example.com",
//		Resource: "users",
//	})
//	...
//	users.FetchList(ctx)
//	users.Put(ctx, "u1", map[string]any{"id": "u1", "name": "Ada"})
//	state := users.State()
package crud

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"github.com/jmoiron/sqlx"

	"github.com/jacentio/recrud/request"
	"github.com/jacentio/recrud/service"
	"github.com/jacentio/recrud/service/dynamosvc"
	"github.com/jacentio/recrud/service/httpsvc"
	"github.com/jacentio/recrud/service/sqlsvc"
	"github.com/jacentio/recrud/store"
)

// Crud is one configured resource.
type Crud struct {
	config     Config
	actions    store.Actions
	reducer    *store.Reducer
	adapter    service.Adapter
	sequencer  *request.Sequencer
	success    func(service.Result) bool
	requestors map[string]requestor
	state      func() store.AggregateState
	closers    []io.Closer
	logger     *slog.Logger
}

// requestor is a named operation bound to a lane.
type requestor struct {
	op store.Op
	fn service.Func
}

// Option customizes New.
type Option func(*options)

type options struct {
	adapter      service.Adapter
	httpClient   httpsvc.Doer
	dynamo       dynamosvc.API
	db           *sqlx.DB
	dispatcher   request.Dispatcher
	state        func() store.AggregateState
	transformer  service.Transformer
	keyExtractor store.KeyExtractor
	serverError  store.ServerErrorFunc
	resourceFunc func(args map[string]any) string
	resourceArgs map[string]any
	requestors   []namedRequestor
}

type namedRequestor struct {
	name string
	op   store.Op
	fn   service.Func
}

// WithAdapter uses a as the resource's adapter instead of building one from
// Config.Backend.
func WithAdapter(a service.Adapter) Option {
	return func(o *options) { o.adapter = a }
}

// WithHTTPClient sets the client of the HTTP backend.
func WithHTTPClient(c httpsvc.Doer) Option {
	return func(o *options) { o.httpClient = c }
}

// WithDynamoDB sets the client of the DynamoDB backend instead of loading the
// default AWS configuration.
func WithDynamoDB(api dynamosvc.API) Option {
	return func(o *options) { o.dynamo = api }
}

// WithDB sets the database of the SQL backend instead of opening Config.DSN.
func WithDB(db *sqlx.DB) Option {
	return func(o *options) { o.db = db }
}

// WithDispatcher sends the resource's events to d instead of a private
// store.Slice. State then reports the initial state.
func WithDispatcher(d request.Dispatcher) Option {
	return func(o *options) {
		o.dispatcher = d
		o.state = nil
	}
}

// WithTransformer rewrites response payloads before they reach the store.
func WithTransformer(fn service.Transformer) Option {
	return func(o *options) { o.transformer = fn }
}

// WithKeyExtractor computes record identities from response payloads. It
// takes precedence over Config.KeyExpr.
func WithKeyExtractor(fn store.KeyExtractor) Option {
	return func(o *options) { o.keyExtractor = fn }
}

// WithServerError extracts failure messages from error bodies.
func WithServerError(fn store.ServerErrorFunc) Option {
	return func(o *options) { o.serverError = fn }
}

// WithResourceFunc computes the HTTP resource path from args.
func WithResourceFunc(fn func(args map[string]any) string, args map[string]any) Option {
	return func(o *options) {
		o.resourceFunc = fn
		o.resourceArgs = args
	}
}

// WithRequestor registers an additional named operation running fn on op's lane.
func WithRequestor(name string, op store.Op, fn service.Func) Option {
	return func(o *options) {
		o.requestors = append(o.requestors, namedRequestor{name: name, op: op, fn: fn})
	}
}

// withState reports the resource state from fn. Used by Factory.
func withState(d request.Dispatcher, fn func() store.AggregateState) Option {
	return func(o *options) {
		o.dispatcher = d
		o.state = fn
	}
}

// New builds a resource from config.
func New(ctx context.Context, config Config, opts ...Option) (*Crud, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	var o options
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	logger := config.Logger.With("resource", config.Name)
	storeCfg := config.storeConfig()
	if o.serverError != nil {
		storeCfg.ServerError = o.serverError
	}
	switch {
	case o.keyExtractor != nil:
		storeCfg.KeyExtractor = o.keyExtractor
	case config.KeyExpr != "":
		extractor, err := CompileKeyExpr(config.KeyExpr)
		if err != nil {
			return nil, err
		}
		storeCfg.KeyExtractor = extractor
	}

	c := &Crud{
		config:     config,
		actions:    store.NewActions(config.ActionBase()),
		requestors: map[string]requestor{},
		logger:     logger,
	}
	c.reducer = store.NewReducer(c.actions, storeCfg)

	if config.SuccessExpr != "" {
		pred, err := CompileSuccessExpr(config.SuccessExpr)
		if err != nil {
			return nil, err
		}
		c.success = pred
	}

	dispatcher := o.dispatcher
	c.state = o.state
	if dispatcher == nil {
		slice := store.NewSlice(c.reducer)
		dispatcher = slice
		c.state = slice.State
	}
	c.sequencer = request.NewSequencer(dispatcher, logger)

	adapter := o.adapter
	if adapter == nil {
		var err error
		adapter, err = c.buildAdapter(ctx, config, &o)
		if err != nil {
			_ = c.Close()
			return nil, err
		}
	}
	c.adapter = adapter

	for _, r := range config.Requestors {
		op, _ := store.ParseOp(r.Op)
		rc := config
		if r.Resource != "" {
			rc.Resource = r.Resource
		}
		if r.Table != "" {
			rc.Table = r.Table
		}
		a, err := c.buildAdapter(ctx, rc, &o)
		if err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("requestor %q: %w", r.Name, err)
		}
		c.requestors[r.Name] = requestor{op: op, fn: service.Operation(a, op)}
	}
	for _, r := range o.requestors {
		c.requestors[r.name] = requestor{op: r.op, fn: r.fn}
	}

	logger.Debug("crud resource configured",
		"backend", string(config.Backend),
		"actionBase", config.ActionBase(),
	)
	return c, nil
}

func (c *Crud) buildAdapter(ctx context.Context, config Config, o *options) (service.Adapter, error) {
	switch config.Backend {
	case BackendHTTP:
		cfg := httpsvc.DefaultConfig()
		cfg.BaseURL = config.BaseURL
		cfg.Resource = config.Resource
		cfg.ResourceFunc = o.resourceFunc
		cfg.Args = o.resourceArgs
		cfg.Key = config.Key
		cfg.DefaultParams = config.DefaultParams
		cfg.Headers = config.Headers
		cfg.ResponseCollectionKey = config.ResponseCollectionKey
		cfg.Transformer = o.transformer
		cfg.Logger = c.logger
		if o.httpClient != nil {
			cfg.Client = o.httpClient
		}
		return httpsvc.New(cfg), nil

	case BackendDynamoDB:
		cfg := dynamosvc.DefaultConfig()
		cfg.Table = config.Table
		cfg.Key = config.Key
		cfg.PartitionKey = config.PartitionKey
		cfg.SoftDelete = config.SoftDelete
		cfg.Transformer = o.transformer
		cfg.Logger = c.logger
		if o.dynamo != nil {
			return dynamosvc.New(o.dynamo, cfg), nil
		}
		client, err := dynamosvc.NewFromConfig(ctx, cfg)
		if err != nil {
			return nil, err
		}
		// Later adapters of this resource share the loaded client.
		o.dynamo = client.API()
		return client, nil

	case BackendSQL:
		db := o.db
		if db == nil {
			opened, err := sqlx.Open(config.SQLDriver, config.DSN)
			if err != nil {
				return nil, fmt.Errorf("open %s database: %w", config.SQLDriver, err)
			}
			c.closers = append(c.closers, opened)
			o.db = opened
			db = opened
		}
		cfg := sqlsvc.DefaultConfig()
		cfg.Table = config.Table
		cfg.Key = config.Key
		cfg.PartitionKey = config.PartitionKey
		cfg.Dialect = config.Dialect
		cfg.Transformer = o.transformer
		cfg.Logger = c.logger
		return sqlsvc.New(db, cfg), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, config.Backend)
}

// Config returns the resolved configuration.
func (c *Crud) Config() Config { return c.config }

// Name returns the resource name.
func (c *Crud) Name() string { return c.config.Name }

// Actions returns the resource's event taxonomy.
func (c *Crud) Actions() store.Actions { return c.actions }

// Reducer returns the resource's reducer.
func (c *Crud) Reducer() *store.Reducer { return c.reducer }

// Adapter returns the adapter performing the resource's I/O.
func (c *Crud) Adapter() service.Adapter { return c.adapter }

// State returns the current resource state held by the built-in store.
func (c *Crud) State() store.AggregateState {
	if c.state == nil {
		return store.NewAggregateState()
	}
	return c.state()
}

// Requestors returns the sorted names of the additional requestors.
func (c *Crud) Requestors() []string {
	names := make([]string, 0, len(c.requestors))
	for name := range c.requestors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close releases the database opened for the SQL backend.
func (c *Crud) Close() error {
	var errs []error
	for _, closer := range c.closers {
		errs = append(errs, closer.Close())
	}
	c.closers = nil
	return errors.Join(errs...)
}
