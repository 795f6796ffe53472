// Package httpsvc implements service.Adapter for JSON REST resources.
package httpsvc

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/jacentio/recrud/internal/keys"
	"github.com/jacentio/recrud/service"
)

// Numbers decode as json.Number so large integer ids survive the round trip.
var json = jsoniter.Config{
	EscapeHTML:             true,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
	UseNumber:              true,
}.Froze()

// RequestIDHeader carries the sequencer's request ID.
const RequestIDHeader = "X-Request-Id"

// Client performs the six operations against one REST resource:
//
//	GET    {base}/{resource}        FetchList
//	GET    {base}/{resource}/{id}   FetchSingle
//	POST   {base}/{resource}        Create
//	PUT    {base}/{resource}/{id}   Put
//	PATCH  {base}/{resource}/{id}   Patch
//	DELETE {base}/{resource}/{id}   Delete
type Client struct {
	config   Config
	resource string
}

var _ service.Adapter = (*Client)(nil)

// New creates a Client. ResourceFunc, when set, is evaluated once here.
func New(config Config) *Client {
	config.validate()
	resource := config.Resource
	if config.ResourceFunc != nil {
		resource = config.ResourceFunc(config.Args)
	}
	return &Client{
		config:   config,
		resource: strings.Trim(resource, "/"),
	}
}

// Config returns the client's resolved configuration.
func (c *Client) Config() Config {
	return c.config
}

// URL returns the collection URL, or the record URL when id is non-empty.
func (c *Client) URL(id string) string {
	u := strings.TrimRight(c.config.BaseURL, "/") + "/" + c.resource
	if id != "" {
		u += "/" + url.PathEscape(id)
	}
	return u
}

func (c *Client) FetchList(ctx context.Context, req service.Request) (service.Result, error) {
	res, err := c.get(ctx, "fetchList", c.URL(""), req.Params)
	if err != nil {
		return res, err
	}
	res.ResponseData = service.TransformList(res.ResponseData, c.config.ResponseCollectionKey, c.config.Transformer)
	return res, nil
}

func (c *Client) FetchSingle(ctx context.Context, req service.Request) (service.Result, error) {
	if req.ID == "" {
		return service.Result{}, fmt.Errorf("fetchSingle: %w", service.ErrMissingID)
	}
	res, err := c.get(ctx, "fetchSingle", c.URL(req.ID), req.Params)
	if err != nil {
		return res, err
	}
	return c.transform(res), nil
}

func (c *Client) Create(ctx context.Context, req service.Request) (service.Result, error) {
	res, err := c.send(ctx, "create", http.MethodPost, c.URL(""), req.Body)
	if err != nil {
		return res, err
	}
	return c.transform(res), nil
}

// Put replaces the record. The id defaults to Body[Key].
func (c *Client) Put(ctx context.Context, req service.Request) (service.Result, error) {
	id := req.ID
	if id == "" {
		id, _ = keys.Field(req.Body, c.config.Key)
	}
	if id == "" {
		return service.Result{}, fmt.Errorf("put: %w", service.ErrMissingID)
	}
	res, err := c.send(ctx, "put", http.MethodPut, c.URL(id), req.Body)
	if err != nil {
		return res, err
	}
	return c.transform(res), nil
}

// Patch sends {"patchOperations": [...]}. The id defaults to Current[Key];
// with no id the collection URL is patched. When there is nothing to change
// Current is returned as a successful result without a request.
func (c *Client) Patch(ctx context.Context, req service.Request) (service.Result, error) {
	ops, err := service.PatchOperations(req)
	if err != nil {
		return service.Result{}, c.transportError("patch", c.URL(req.ID), err)
	}
	if len(ops) == 0 {
		current := make(map[string]any, len(req.Current))
		for k, v := range req.Current {
			current[k] = v
		}
		return service.Result{ResponseData: current, Success: true, StatusCode: http.StatusOK}, nil
	}

	id := req.ID
	if id == "" {
		id, _ = keys.Field(req.Current, c.config.Key)
	}
	body := map[string]any{"patchOperations": ops}
	res, err := c.send(ctx, "patch", http.MethodPatch, c.URL(id), body)
	if err != nil {
		return res, err
	}
	return c.transform(res), nil
}

func (c *Client) Delete(ctx context.Context, req service.Request) (service.Result, error) {
	if req.ID == "" {
		return service.Result{}, fmt.Errorf("delete: %w", service.ErrMissingID)
	}
	return c.send(ctx, "delete", http.MethodDelete, c.URL(req.ID), nil)
}

func (c *Client) transform(res service.Result) service.Result {
	if c.config.Transformer != nil {
		res.ResponseData = c.config.Transformer(res.ResponseData)
	}
	return res
}

func (c *Client) get(ctx context.Context, op, target string, params map[string]any) (service.Result, error) {
	if qs := EncodeQuery(service.MergeParams(c.config.DefaultParams, params)); qs != "" {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + qs
	}
	return c.do(ctx, op, http.MethodGet, target, nil)
}

func (c *Client) send(ctx context.Context, op, method, target string, body any) (service.Result, error) {
	if body == nil {
		body = map[string]any{}
	}
	buf, err := json.Marshal(body)
	if err != nil {
		return service.Result{}, c.transportError(op, target, fmt.Errorf("encode body: %w", err))
	}
	return c.do(ctx, op, method, target, bytes.NewReader(buf))
}

func (c *Client) do(ctx context.Context, op, method, target string, body io.Reader) (service.Result, error) {
	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return service.Result{}, c.transportError(op, target, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.config.Headers {
		httpReq.Header.Set(k, v)
	}
	if id := service.RequestID(ctx); id != "" {
		httpReq.Header.Set(RequestIDHeader, id)
	}

	resp, err := c.config.Client.Do(httpReq)
	if err != nil {
		return service.Result{}, c.transportError(op, target, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return service.Result{}, c.transportError(op, target, fmt.Errorf("read body: %w", err))
	}

	// An empty body decodes as an empty object.
	var data any
	if len(bytes.TrimSpace(raw)) == 0 {
		data = map[string]any{}
	} else if err := json.Unmarshal(raw, &data); err != nil {
		return service.Result{}, c.transportError(op, target, fmt.Errorf("decode body: %w", err))
	}

	return service.Result{
		ResponseData: data,
		Success:      resp.StatusCode >= 200 && resp.StatusCode < 300,
		StatusCode:   resp.StatusCode,
		Raw:          resp,
	}, nil
}

func (c *Client) transportError(op, target string, err error) error {
	c.config.Logger.Warn("http request failed",
		"op", op,
		"url", target,
		"error", err,
	)
	return &service.TransportError{Op: op, Target: target, Err: err}
}
