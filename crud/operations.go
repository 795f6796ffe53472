package crud

import (
	"context"
	"fmt"

	"github.com/jacentio/recrud/internal/keys"
	"github.com/jacentio/recrud/request"
	"github.com/jacentio/recrud/service"
	"github.com/jacentio/recrud/store"
)

// CallOption customizes one operation call.
type CallOption func(*callOptions)

type callOptions struct {
	params            map[string]any
	keyValue          string
	partitionKeyValue string
	clearRecords      bool
	keyFromResponse   store.KeyExtractor
	patchOperations   []service.PatchOperation
}

// Params sets the call's query or filter parameters.
func Params(params map[string]any) CallOption {
	return func(o *callOptions) { o.params = params }
}

// KeyValue sets the record identity explicitly.
func KeyValue(v string) CallOption {
	return func(o *callOptions) { o.keyValue = v }
}

// PartitionValue scopes the call to a parent record. Identities become
// "{v}:{id}" and, when the resource has a PartitionKey, the value is sent
// as that parameter.
func PartitionValue(v string) CallOption {
	return func(o *callOptions) { o.partitionKeyValue = v }
}

// ClearRecords discards existing records when a list fetch succeeds.
func ClearRecords() CallOption {
	return func(o *callOptions) { o.clearRecords = true }
}

// KeyFromResponse overrides the key extractor for this call.
func KeyFromResponse(fn store.KeyExtractor) CallOption {
	return func(o *callOptions) { o.keyFromResponse = fn }
}

// PatchOperations sends ops instead of diffing current and next.
func PatchOperations(ops ...service.PatchOperation) CallOption {
	return func(o *callOptions) { o.patchOperations = ops }
}

// FetchList fetches the collection.
func (c *Crud) FetchList(ctx context.Context, opts ...CallOption) (service.Result, error) {
	o := collect(opts)
	return c.run(ctx, store.FetchList, service.Operation(c.adapter, store.FetchList), "", service.Request{
		Params: c.params(o),
	}, o)
}

// FetchSingle fetches the record id.
func (c *Crud) FetchSingle(ctx context.Context, id string, opts ...CallOption) (service.Result, error) {
	o := collect(opts)
	return c.run(ctx, store.FetchSingle, service.Operation(c.adapter, store.FetchSingle), id, service.Request{
		ID:     id,
		Params: c.params(o),
	}, o)
}

// Create creates a record from body.
func (c *Crud) Create(ctx context.Context, body map[string]any, opts ...CallOption) (service.Result, error) {
	o := collect(opts)
	return c.run(ctx, store.Create, service.Operation(c.adapter, store.Create), "", service.Request{
		Body:   c.body(body, o),
		Params: c.params(o),
	}, o)
}

// Put replaces the record id with body. An empty id is read from body.
func (c *Crud) Put(ctx context.Context, id string, body map[string]any, opts ...CallOption) (service.Result, error) {
	o := collect(opts)
	if id == "" {
		id, _ = keys.Field(body, c.config.Key)
	}
	return c.run(ctx, store.Put, service.Operation(c.adapter, store.Put), id, service.Request{
		ID:     id,
		Body:   c.body(body, o),
		Params: c.params(o),
	}, o)
}

// Patch updates the record id from current to next. An empty id is read from
// current. With PatchOperations and no next, next is current with the
// operations applied.
func (c *Crud) Patch(ctx context.Context, id string, current, next map[string]any, opts ...CallOption) (service.Result, error) {
	o := collect(opts)
	if id == "" {
		id, _ = keys.Field(current, c.config.Key)
	}
	if next == nil && len(o.patchOperations) > 0 {
		patched, err := service.ApplyPatch(current, o.patchOperations)
		if err != nil {
			return service.Result{}, fmt.Errorf("patch %q: %w", id, err)
		}
		next = patched
	}
	return c.run(ctx, store.Patch, service.Operation(c.adapter, store.Patch), id, service.Request{
		ID:              id,
		Current:         current,
		Next:            next,
		PatchOperations: o.patchOperations,
		Params:          c.params(o),
	}, o)
}

// Delete deletes the record id.
func (c *Crud) Delete(ctx context.Context, id string, opts ...CallOption) (service.Result, error) {
	o := collect(opts)
	return c.run(ctx, store.Delete, service.Operation(c.adapter, store.Delete), id, service.Request{
		ID:     id,
		Params: c.params(o),
	}, o)
}

// Request runs the additional requestor name with req on its lane.
func (c *Crud) Request(ctx context.Context, name string, req service.Request, opts ...CallOption) (service.Result, error) {
	r, ok := c.requestors[name]
	if !ok {
		return service.Result{}, fmt.Errorf("%w: %q", ErrUnknownRequestor, name)
	}
	o := collect(opts)
	if req.Params == nil {
		req.Params = c.params(o)
	}
	return c.run(ctx, r.op, r.fn, req.ID, req, o)
}

func (c *Crud) run(ctx context.Context, op store.Op, fn service.Func, id string, req service.Request, o callOptions) (service.Result, error) {
	return c.sequencer.Run(ctx, request.Call{
		Creators:              c.actions.Creators(op),
		Fn:                    fn,
		Request:               req,
		ID:                    id,
		KeyValue:              c.keyValue(id, o),
		PartitionKeyValue:     o.partitionKeyValue,
		KeyFromResponse:       o.keyFromResponse,
		ClearRecords:          o.clearRecords,
		ResponseCollectionKey: c.config.ResponseCollectionKey,
		Success:               c.success,
	})
}

// keyValue stamps the record identity of a call: the explicit value, else
// "{partition}:{id}", else id. Without an id the identity is left to the
// response.
func (c *Crud) keyValue(id string, o callOptions) string {
	if o.keyValue != "" {
		return o.keyValue
	}
	if id == "" {
		return ""
	}
	identity, _ := keys.Resolve(keys.Input{
		Key:               c.config.Key,
		PartitionKeyValue: o.partitionKeyValue,
		Data:              map[string]any{c.config.Key: id},
	})
	return identity
}

// params adds the partition value to the call's params.
func (c *Crud) params(o callOptions) map[string]any {
	if o.partitionKeyValue == "" || c.config.PartitionKey == "" {
		return o.params
	}
	if _, ok := o.params[c.config.PartitionKey]; ok {
		return o.params
	}
	return service.MergeParams(o.params, map[string]any{c.config.PartitionKey: o.partitionKeyValue})
}

// body adds the partition value to a create or put body.
func (c *Crud) body(body map[string]any, o callOptions) map[string]any {
	if o.partitionKeyValue == "" || c.config.PartitionKey == "" {
		return body
	}
	if _, ok := body[c.config.PartitionKey]; ok {
		return body
	}
	return service.MergeParams(body, map[string]any{c.config.PartitionKey: o.partitionKeyValue})
}

func collect(opts []CallOption) callOptions {
	var o callOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
