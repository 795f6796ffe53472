package httpsvc_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacentio/recrud/service"
	"github.com/jacentio/recrud/service/httpsvc"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type captured struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   map[string]any
}

type fakeAPI struct {
	mu       sync.Mutex
	requests []captured
	status   int
	body     string
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	var body map[string]any
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &body)
	}
	f.mu.Lock()
	f.requests = append(f.requests, captured{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Header: r.Header.Clone(),
		Body:   body,
	})
	status, respBody := f.status, f.body
	f.mu.Unlock()

	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = io.WriteString(w, respBody)
}

func (f *fakeAPI) last(t *testing.T) captured {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.requests)
	return f.requests[len(f.requests)-1]
}

func (f *fakeAPI) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func newClient(t *testing.T, api *fakeAPI, mutate func(*httpsvc.Config)) *httpsvc.Client {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	cfg := httpsvc.DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.Resource = "users"
	cfg.Client = srv.Client()
	if mutate != nil {
		mutate(&cfg)
	}
	return httpsvc.New(cfg)
}

func TestFetchList(t *testing.T) {
	api := &fakeAPI{body: `[{"id":"1","name":"Ada"},{"id":"2","name":"Grace"}]`}
	c := newClient(t, api, func(cfg *httpsvc.Config) {
		cfg.DefaultParams = map[string]any{"limit": 10, "sort": "name"}
		cfg.Headers = map[string]string{"Authorization": "Bearer token"}
	})

	res, err := c.FetchList(context.Background(), service.Request{Params: map[string]any{"limit": 5}})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	require.Len(t, res.ResponseData, 2)

	got := api.last(t)
	assert.Equal(t, http.MethodGet, got.Method)
	assert.Equal(t, "/users", got.Path)
	assert.Equal(t, "limit=5&sort=name", got.Query)
	assert.Equal(t, "application/json", got.Header.Get("Accept"))
	assert.Equal(t, "Bearer token", got.Header.Get("Authorization"))
}

func TestFetchList_TransformsEachRecord(t *testing.T) {
	api := &fakeAPI{body: `{"items":[{"id":"1"},{"id":"2"}],"next":"abc"}`}
	c := newClient(t, api, func(cfg *httpsvc.Config) {
		cfg.ResponseCollectionKey = "items"
		cfg.Transformer = func(data any) any {
			m := data.(map[string]any)
			return map[string]any{"id": m["id"], "loaded": true}
		}
	})

	res, err := c.FetchList(context.Background(), service.Request{})
	require.NoError(t, err)

	obj := res.ResponseData.(map[string]any)
	assert.Equal(t, "abc", obj["next"])
	items := obj["items"].([]any)
	require.Len(t, items, 2)
	assert.Equal(t, true, items[1].(map[string]any)["loaded"])
}

func TestFetchSingle(t *testing.T) {
	api := &fakeAPI{body: `{"id":"a b","name":"Ada"}`}
	c := newClient(t, api, nil)

	res, err := c.FetchSingle(context.Background(), service.Request{ID: "a b"})
	require.NoError(t, err)
	assert.Equal(t, "Ada", res.ResponseData.(map[string]any)["name"])
	assert.Equal(t, "/users/a b", api.last(t).Path)

	_, err = c.FetchSingle(context.Background(), service.Request{})
	assert.ErrorIs(t, err, service.ErrMissingID)
}

func TestCreate_SendsJSONBody(t *testing.T) {
	api := &fakeAPI{status: http.StatusCreated, body: `{"id":"42","name":"Ada"}`}
	c := newClient(t, api, nil)

	res, err := c.Create(context.Background(), service.Request{Body: map[string]any{"name": "Ada"}})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, http.StatusCreated, res.StatusCode)

	got := api.last(t)
	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "/users", got.Path)
	assert.Equal(t, map[string]any{"name": "Ada"}, got.Body)
	assert.Equal(t, "application/json", got.Header.Get("Content-Type"))
}

func TestPut_IDDefaultsToBodyKey(t *testing.T) {
	api := &fakeAPI{body: `{"id":"7","name":"Grace"}`}
	c := newClient(t, api, nil)

	_, err := c.Put(context.Background(), service.Request{Body: map[string]any{"id": "7", "name": "Grace"}})
	require.NoError(t, err)
	got := api.last(t)
	assert.Equal(t, http.MethodPut, got.Method)
	assert.Equal(t, "/users/7", got.Path)

	_, err = c.Put(context.Background(), service.Request{Body: map[string]any{"name": "x"}})
	assert.ErrorIs(t, err, service.ErrMissingID)
}

func TestNumericIDsStayExact(t *testing.T) {
	api := &fakeAPI{body: `[{"id":12345678901234567,"name":"Ada"},{"id":1234567,"name":"Grace"}]`}
	c := newClient(t, api, nil)

	res, err := c.FetchList(context.Background(), service.Request{})
	require.NoError(t, err)
	items := res.ResponseData.([]any)
	require.Len(t, items, 2)

	for i, want := range []string{"12345678901234567", "1234567"} {
		record := items[i].(map[string]any)
		_, err = c.Put(context.Background(), service.Request{Body: record})
		require.NoError(t, err)
		assert.Equal(t, "/users/"+want, api.last(t).Path)
	}
}

func TestPatch(t *testing.T) {
	api := &fakeAPI{body: `{"id":"7","name":"Grace"}`}
	c := newClient(t, api, nil)

	res, err := c.Patch(context.Background(), service.Request{
		Current: map[string]any{"id": "7", "name": "Ada"},
		Next:    map[string]any{"id": "7", "name": "Grace"},
	})
	require.NoError(t, err)
	assert.True(t, res.Success)

	got := api.last(t)
	assert.Equal(t, http.MethodPatch, got.Method)
	assert.Equal(t, "/users/7", got.Path)
	assert.Equal(t, []any{
		map[string]any{"op": "replace", "path": "/name", "value": "Grace"},
	}, got.Body["patchOperations"])
}

func TestPatch_NoOperationsSkipsRequest(t *testing.T) {
	api := &fakeAPI{}
	c := newClient(t, api, nil)

	current := map[string]any{"id": "7", "name": "Ada"}
	res, err := c.Patch(context.Background(), service.Request{Current: current, Next: current})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, current, res.ResponseData)
	assert.Zero(t, api.count())
}

func TestDelete_EmptyBodyIsEmptyObject(t *testing.T) {
	api := &fakeAPI{status: http.StatusNoContent}
	c := newClient(t, api, nil)

	res, err := c.Delete(context.Background(), service.Request{ID: "7"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, map[string]any{}, res.ResponseData)

	got := api.last(t)
	assert.Equal(t, http.MethodDelete, got.Method)
	assert.Equal(t, "/users/7", got.Path)
	assert.Equal(t, map[string]any{}, got.Body)
}

func TestServerRejection(t *testing.T) {
	api := &fakeAPI{status: http.StatusUnprocessableEntity, body: `{"message":"name is required"}`}
	c := newClient(t, api, nil)

	res, err := c.Create(context.Background(), service.Request{Body: map[string]any{}})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)
	assert.Equal(t, map[string]any{"message": "name is required"}, res.ResponseData)
}

func TestMalformedBodyIsTransportError(t *testing.T) {
	api := &fakeAPI{body: `{not json`}
	c := newClient(t, api, nil)

	_, err := c.FetchList(context.Background(), service.Request{})
	require.Error(t, err)
	assert.True(t, service.IsTransportError(err))
}

type failingDoer struct{}

func (failingDoer) Do(*http.Request) (*http.Response, error) {
	return nil, errors.New("connection refused")
}

func TestNetworkFailureIsTransportError(t *testing.T) {
	cfg := httpsvc.DefaultConfig()
	cfg.BaseURL = "http://api.invalid"
	cfg.Resource = "users"
	cfg.Client = failingDoer{}
	c := httpsvc.New(cfg)

	_, err := c.FetchList(context.Background(), service.Request{})
	var te *service.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "fetchList", te.Op)
	assert.Equal(t, "http://api.invalid/users", te.Target)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestRequestIDHeader(t *testing.T) {
	api := &fakeAPI{body: `[]`}
	c := newClient(t, api, nil)

	ctx := service.WithRequestID(context.Background(), "req-1")
	_, err := c.FetchList(ctx, service.Request{})
	require.NoError(t, err)
	assert.Equal(t, "req-1", api.last(t).Header.Get(httpsvc.RequestIDHeader))
}

func TestResourceFunc(t *testing.T) {
	api := &fakeAPI{body: `[]`}
	c := newClient(t, api, func(cfg *httpsvc.Config) {
		cfg.Resource = ""
		cfg.Args = map[string]any{"org": "acme"}
		cfg.ResourceFunc = func(args map[string]any) string {
			return "orgs/" + args["org"].(string) + "/users"
		}
	})

	_, err := c.FetchList(context.Background(), service.Request{})
	require.NoError(t, err)
	assert.Equal(t, "/orgs/acme/users", api.last(t).Path)
}
