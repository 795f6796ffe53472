package sqlsvc_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacentio/recrud/service"
	"github.com/jacentio/recrud/service/sqlsvc"
)

const schema = `CREATE TABLE users (
	id     TEXT NOT NULL,
	org_id TEXT,
	name   TEXT,
	role   TEXT,
	age    INTEGER,
	PRIMARY KEY (id)
)`

func newClient(t *testing.T, mutate func(*sqlsvc.Config)) (*sqlsvc.Client, *sqlx.DB) {
	t.Helper()
	db, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(schema)
	require.NoError(t, err)

	cfg := sqlsvc.DefaultConfig()
	cfg.Table = "users"
	cfg.Dialect = sqlsvc.DialectSQLite
	if mutate != nil {
		mutate(&cfg)
	}
	return sqlsvc.New(db, cfg), db
}

func TestCreateAndFetch(t *testing.T) {
	c, _ := newClient(t, nil)
	ctx := context.Background()

	res, err := c.Create(ctx, service.Request{Body: map[string]any{"name": "Ada", "age": 36}})
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, http.StatusCreated, res.StatusCode)

	created := res.ResponseData.(map[string]any)
	id := created["id"].(string)
	_, err = uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, "Ada", created["name"])
	assert.EqualValues(t, 36, created["age"])
	assert.NotContains(t, created, "role", "NULL columns are dropped")

	res, err = c.FetchSingle(ctx, service.Request{ID: id})
	require.NoError(t, err)
	assert.Equal(t, created, res.ResponseData)

	res, err = c.FetchSingle(ctx, service.Request{ID: "missing"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestCreate_ExistingIsConflict(t *testing.T) {
	c, _ := newClient(t, nil)
	ctx := context.Background()

	_, err := c.Create(ctx, service.Request{Body: map[string]any{"id": "1", "name": "Ada"}})
	require.NoError(t, err)

	res, err := c.Create(ctx, service.Request{Body: map[string]any{"id": "1", "name": "Grace"}})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, http.StatusConflict, res.StatusCode)
}

func TestFetchList_FiltersAndOrders(t *testing.T) {
	c, _ := newClient(t, nil)
	ctx := context.Background()

	for _, body := range []map[string]any{
		{"id": "3", "name": "Linus", "role": "admin"},
		{"id": "1", "name": "Ada", "role": "admin"},
		{"id": "2", "name": "Grace", "role": "user"},
	} {
		_, err := c.Create(ctx, service.Request{Body: body})
		require.NoError(t, err)
	}

	res, err := c.FetchList(ctx, service.Request{})
	require.NoError(t, err)
	all := res.ResponseData.([]any)
	require.Len(t, all, 3)
	assert.Equal(t, "1", all[0].(map[string]any)["id"])

	res, err = c.FetchList(ctx, service.Request{Params: map[string]any{"role": "admin"}})
	require.NoError(t, err)
	admins := res.ResponseData.([]any)
	require.Len(t, admins, 2)
	assert.Equal(t, "Ada", admins[0].(map[string]any)["name"])
	assert.Equal(t, "Linus", admins[1].(map[string]any)["name"])
}

func TestPut(t *testing.T) {
	c, _ := newClient(t, nil)
	ctx := context.Background()

	_, err := c.Create(ctx, service.Request{Body: map[string]any{"id": "1", "name": "Ada"}})
	require.NoError(t, err)

	res, err := c.Put(ctx, service.Request{Body: map[string]any{"id": "1", "name": "Grace", "role": "admin"}})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, map[string]any{"id": "1", "name": "Grace", "role": "admin"}, res.ResponseData)

	res, err = c.Put(ctx, service.Request{ID: "missing", Body: map[string]any{"name": "x"}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestPatch(t *testing.T) {
	c, _ := newClient(t, nil)
	ctx := context.Background()

	_, err := c.Create(ctx, service.Request{Body: map[string]any{"id": "1", "name": "Ada", "role": "admin"}})
	require.NoError(t, err)

	res, err := c.Patch(ctx, service.Request{
		Current: map[string]any{"id": "1", "name": "Ada", "role": "admin"},
		Next:    map[string]any{"id": "1", "name": "Grace"},
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, map[string]any{"id": "1", "name": "Grace"}, res.ResponseData)

	current := map[string]any{"id": "1", "name": "Grace"}
	res, err = c.Patch(ctx, service.Request{Current: current, Next: current})
	require.NoError(t, err)
	assert.Equal(t, current, res.ResponseData)
}

func TestDelete_Idempotent(t *testing.T) {
	c, db := newClient(t, nil)
	ctx := context.Background()

	_, err := c.Create(ctx, service.Request{Body: map[string]any{"id": "1", "name": "Ada"}})
	require.NoError(t, err)

	res, err := c.Delete(ctx, service.Request{ID: "1"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, map[string]any{"id": "1", "name": "Ada"}, res.ResponseData)

	var count int
	require.NoError(t, db.Get(&count, "SELECT COUNT(*) FROM users"))
	assert.Zero(t, count)

	res, err = c.Delete(ctx, service.Request{ID: "1"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, map[string]any{"id": "1"}, res.ResponseData)
}

func TestPartitionScopesLookups(t *testing.T) {
	c, _ := newClient(t, func(cfg *sqlsvc.Config) { cfg.PartitionKey = "org_id" })
	ctx := context.Background()

	_, err := c.Create(ctx, service.Request{Body: map[string]any{"id": "1", "org_id": "a", "name": "Ada"}})
	require.NoError(t, err)

	res, err := c.FetchSingle(ctx, service.Request{ID: "1", Params: map[string]any{"org_id": "b"}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	res, err = c.FetchSingle(ctx, service.Request{ID: "1", Params: map[string]any{"org_id": "a"}})
	require.NoError(t, err)
	assert.Equal(t, "Ada", res.ResponseData.(map[string]any)["name"])
}

func TestMissingTableIsTransportError(t *testing.T) {
	c, _ := newClient(t, func(cfg *sqlsvc.Config) { cfg.Table = "nope" })

	_, err := c.FetchList(context.Background(), service.Request{})
	var te *service.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "nope", te.Target)
}
