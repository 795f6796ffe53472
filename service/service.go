// Package service defines the contract between the request sequencer and the
// adapters that perform the actual I/O of the six CRUD operations.
package service

import (
	"context"

	"github.com/jacentio/recrud/store"
)

// Request holds the inputs of one operation. Each operation reads the fields it
// needs:
//
//   - FetchList: Params
//   - FetchSingle: ID, Params
//   - Create: Body
//   - Put: ID (defaults to Body[key]), Body
//   - Patch: ID (defaults to Current[key]), Current, Next, PatchOperations
//   - Delete: ID
type Request struct {
	ID              string
	Params          map[string]any
	Body            map[string]any
	Current         map[string]any
	Next            map[string]any
	PatchOperations []PatchOperation
}

// Result is the uniform outcome of an operation.
type Result struct {
	// ResponseData is the decoded response payload, or the error body when
	// Success is false.
	ResponseData any

	// Success reports whether the server accepted the operation.
	Success bool

	// StatusCode is the HTTP status, or the closest equivalent for other
	// backends (200, 201, 204, 404, 409).
	StatusCode int

	// Raw is the backend's own response value (*http.Response, SDK output).
	Raw any
}

// Adapter performs the network or database I/O of one resource. Transport
// failures are returned as errors; server rejections are reported through
// Result.Success.
type Adapter interface {
	FetchList(ctx context.Context, req Request) (Result, error)
	FetchSingle(ctx context.Context, req Request) (Result, error)
	Create(ctx context.Context, req Request) (Result, error)
	Put(ctx context.Context, req Request) (Result, error)
	Patch(ctx context.Context, req Request) (Result, error)
	Delete(ctx context.Context, req Request) (Result, error)
}

// Func performs one operation.
type Func func(ctx context.Context, req Request) (Result, error)

// Operation returns the adapter method serving op.
func Operation(a Adapter, op store.Op) Func {
	switch op {
	case store.FetchList:
		return a.FetchList
	case store.FetchSingle:
		return a.FetchSingle
	case store.Create:
		return a.Create
	case store.Put:
		return a.Put
	case store.Patch:
		return a.Patch
	case store.Delete:
		return a.Delete
	}
	return nil
}

// Transformer rewrites a response payload before it reaches the store. For
// list responses it runs once per record.
type Transformer func(data any) any

// TransformList applies fn to every element of a list response, resolved as in
// store.ResponseCollection. The response is rebuilt, not modified.
func TransformList(responseData any, collectionKey string, fn Transformer) any {
	if fn == nil {
		return responseData
	}
	collection, ok := store.ResponseCollection(responseData, collectionKey)
	if !ok {
		return responseData
	}
	transformed := make([]any, len(collection))
	for i, element := range collection {
		transformed[i] = fn(element)
	}

	if obj, ok := responseData.(map[string]any); ok && collectionKey != "" {
		if _, nested := obj[collectionKey]; nested {
			out := make(map[string]any, len(obj))
			for k, v := range obj {
				out[k] = v
			}
			out[collectionKey] = transformed
			return out
		}
	}
	return transformed
}

// MergeParams overlays params on defaults into a fresh map.
func MergeParams(defaults, params map[string]any) map[string]any {
	out := make(map[string]any, len(defaults)+len(params))
	for k, v := range defaults {
		out[k] = v
	}
	for k, v := range params {
		out[k] = v
	}
	return out
}
