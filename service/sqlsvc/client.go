// Package sqlsvc implements service.Adapter on a relational table.
package sqlsvc

import (
	"context"
	"fmt"
	"net/http"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"  // dialect registration
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jacentio/recrud/internal/keys"
	"github.com/jacentio/recrud/service"
)

// Client performs the six operations against one table.
type Client struct {
	db      *sqlx.DB
	config  Config
	builder goqu.DialectWrapper
}

var _ service.Adapter = (*Client)(nil)

// New creates a Client on db.
func New(db *sqlx.DB, config Config) *Client {
	config.validate()
	return &Client{
		db:      db,
		config:  config,
		builder: goqu.Dialect(config.Dialect),
	}
}

// Config returns the client's resolved configuration.
func (c *Client) Config() Config {
	return c.config
}

// FetchList selects the rows matching every param by equality, ordered by key.
func (c *Client) FetchList(ctx context.Context, req service.Request) (service.Result, error) {
	stmt := c.builder.From(c.config.Table).Prepared(true).Order(goqu.I(c.config.Key).Asc())
	if len(req.Params) > 0 {
		stmt = stmt.Where(goqu.Ex(req.Params))
	}
	query, args, err := stmt.ToSQL()
	if err != nil {
		return service.Result{}, c.transportError("fetchList", fmt.Errorf("build query: %w", err))
	}

	rows, err := c.selectRows(ctx, query, args)
	if err != nil {
		return service.Result{}, c.transportError("fetchList", err)
	}
	records := make([]any, len(rows))
	for i, row := range rows {
		records[i] = row
	}
	return service.Result{
		ResponseData: service.TransformList(records, "", c.config.Transformer),
		Success:      true,
		StatusCode:   http.StatusOK,
	}, nil
}

func (c *Client) FetchSingle(ctx context.Context, req service.Request) (service.Result, error) {
	if req.ID == "" {
		return service.Result{}, fmt.Errorf("fetchSingle: %w", service.ErrMissingID)
	}
	row, err := c.selectOne(ctx, c.where(req.ID, req.Params))
	if err != nil {
		return service.Result{}, c.transportError("fetchSingle", err)
	}
	if row == nil {
		return service.Rejection(http.StatusNotFound, service.ErrNotFound), nil
	}
	return c.transform(service.Result{ResponseData: row, Success: true, StatusCode: http.StatusOK}), nil
}

// Create inserts Body. A missing key column is filled with a UUID; an
// existing row with the same key is rejected with 409.
func (c *Client) Create(ctx context.Context, req service.Request) (service.Result, error) {
	body := copyMap(req.Body)
	id, ok := keys.Field(body, c.config.Key)
	if !ok {
		id = uuid.NewString()
		body[c.config.Key] = id
	}
	where := c.where(id, body)

	existing, err := c.selectOne(ctx, where)
	if err != nil {
		return service.Result{}, c.transportError("create", err)
	}
	if existing != nil {
		return service.Rejection(http.StatusConflict, service.ErrAlreadyExists), nil
	}

	query, args, err := c.builder.Insert(c.config.Table).Prepared(true).Rows(goqu.Record(body)).ToSQL()
	if err != nil {
		return service.Result{}, c.transportError("create", fmt.Errorf("build insert: %w", err))
	}
	if _, err := c.db.ExecContext(ctx, query, args...); err != nil {
		return service.Result{}, c.transportError("create", err)
	}

	row, err := c.selectOne(ctx, where)
	if err != nil {
		return service.Result{}, c.transportError("create", err)
	}
	return c.transform(service.Result{ResponseData: row, Success: true, StatusCode: http.StatusCreated}), nil
}

// Put overwrites the row's columns with Body. The id defaults to Body[Key].
func (c *Client) Put(ctx context.Context, req service.Request) (service.Result, error) {
	id := req.ID
	if id == "" {
		id, _ = keys.Field(req.Body, c.config.Key)
	}
	if id == "" {
		return service.Result{}, fmt.Errorf("put: %w", service.ErrMissingID)
	}
	set := copyMap(req.Body)
	delete(set, c.config.Key)
	return c.update(ctx, "put", c.where(id, mergeMaps(req.Params, req.Body)), set, req.Body)
}

// Patch sets added or replaced columns and nulls removed ones. With nothing
// to change Current is returned without I/O.
func (c *Client) Patch(ctx context.Context, req service.Request) (service.Result, error) {
	ops, err := service.PatchOperations(req)
	if err != nil {
		return service.Result{}, c.transportError("patch", err)
	}
	set := map[string]any{}
	for _, op := range ops {
		field := op.Field()
		if field == "" || field == c.config.Key || field == c.config.PartitionKey {
			continue
		}
		switch op.Op {
		case service.PatchAdd, service.PatchReplace:
			set[field] = op.Value
		case service.PatchRemove:
			set[field] = nil
		}
	}
	if len(set) == 0 {
		return service.Result{ResponseData: copyMap(req.Current), Success: true, StatusCode: http.StatusOK}, nil
	}

	id := req.ID
	if id == "" {
		id, _ = keys.Field(req.Current, c.config.Key)
	}
	if id == "" {
		return service.Result{}, fmt.Errorf("patch: %w", service.ErrMissingID)
	}
	return c.update(ctx, "patch", c.where(id, mergeMaps(req.Params, req.Current)), set, req.Current)
}

// Delete removes the row. Deleting an absent row succeeds.
func (c *Client) Delete(ctx context.Context, req service.Request) (service.Result, error) {
	if req.ID == "" {
		return service.Result{}, fmt.Errorf("delete: %w", service.ErrMissingID)
	}
	where := c.where(req.ID, req.Params)

	old, err := c.selectOne(ctx, where)
	if err != nil {
		return service.Result{}, c.transportError("delete", err)
	}

	query, args, err := c.builder.Delete(c.config.Table).Prepared(true).Where(where).ToSQL()
	if err != nil {
		return service.Result{}, c.transportError("delete", fmt.Errorf("build delete: %w", err))
	}
	if _, err := c.db.ExecContext(ctx, query, args...); err != nil {
		return service.Result{}, c.transportError("delete", err)
	}

	data := old
	if data == nil {
		data = map[string]any{}
		for k, v := range where {
			data[k] = v
		}
	}
	return service.Result{ResponseData: data, Success: true, StatusCode: http.StatusOK}, nil
}

func (c *Client) update(ctx context.Context, op string, where goqu.Ex, set map[string]any, fallback map[string]any) (service.Result, error) {
	if len(set) == 0 {
		// Nothing to write; report the row as stored.
		row, err := c.selectOne(ctx, where)
		if err != nil {
			return service.Result{}, c.transportError(op, err)
		}
		if row == nil {
			return service.Rejection(http.StatusNotFound, service.ErrNotFound), nil
		}
		return c.transform(service.Result{ResponseData: row, Success: true, StatusCode: http.StatusOK}), nil
	}

	query, args, err := c.builder.Update(c.config.Table).Prepared(true).Set(goqu.Record(set)).Where(where).ToSQL()
	if err != nil {
		return service.Result{}, c.transportError(op, fmt.Errorf("build update: %w", err))
	}
	res, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return service.Result{}, c.transportError(op, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return service.Rejection(http.StatusNotFound, service.ErrNotFound), nil
	}

	row, err := c.selectOne(ctx, where)
	if err != nil {
		return service.Result{}, c.transportError(op, err)
	}
	if row == nil {
		row = copyMap(fallback)
	}
	return c.transform(service.Result{ResponseData: row, Success: true, StatusCode: http.StatusOK}), nil
}

// where addresses the row with id, scoped by the partition column read from data.
func (c *Client) where(id string, data map[string]any) goqu.Ex {
	ex := goqu.Ex{c.config.Key: id}
	if pk := c.config.PartitionKey; pk != "" {
		if pkv, ok := data[pk]; ok && pkv != nil {
			ex[pk] = pkv
		}
	}
	return ex
}

func (c *Client) selectOne(ctx context.Context, where goqu.Ex) (map[string]any, error) {
	query, args, err := c.builder.From(c.config.Table).Prepared(true).Where(where).Limit(1).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	rows, err := c.selectRows(ctx, query, args)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (c *Client) selectRows(ctx context.Context, query string, args []any) (records []map[string]any, err error) {
	rows, err := c.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	for rows.Next() {
		row := map[string]any{}
		if err := rows.MapScan(row); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		records = append(records, normalizeRow(row))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// normalizeRow drops NULL columns and decodes byte slices as text.
func normalizeRow(row map[string]any) map[string]any {
	for k, v := range row {
		switch tv := v.(type) {
		case nil:
			delete(row, k)
		case []byte:
			row[k] = string(tv)
		}
	}
	return row
}

func (c *Client) transform(res service.Result) service.Result {
	if c.config.Transformer != nil {
		res.ResponseData = c.config.Transformer(res.ResponseData)
	}
	return res
}

func (c *Client) transportError(op string, err error) error {
	c.config.Logger.Warn("sql operation failed",
		"op", op,
		"table", c.config.Table,
		"error", err,
	)
	return &service.TransportError{Op: op, Target: c.config.Table, Err: err}
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func mergeMaps(base, overlay map[string]any) map[string]any {
	out := copyMap(base)
	for k, v := range overlay {
		out[k] = v
	}
	return out
}
