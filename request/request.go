// Package request sequences one CRUD operation: it dispatches REQUEST, runs the
// service call and dispatches SUCCESS or FAILURE with its outcome.
package request

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/jacentio/recrud/service"
	"github.com/jacentio/recrud/store"
)

var (
	// ErrCanceled wraps the error of a call whose context ended before it
	// completed.
	ErrCanceled = errors.New("recrud: request canceled")

	// ErrNoOperation is returned when a Call has no service function.
	ErrNoOperation = errors.New("recrud: call has no operation")
)

// Dispatcher receives the events of a call. store.Slice and store.Root
// implement it.
type Dispatcher interface {
	Dispatch(ev store.Event)
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ev store.Event)

// Dispatch calls f(ev).
func (f DispatcherFunc) Dispatch(ev store.Event) { f(ev) }

// Call describes one operation run.
type Call struct {
	// Creators emits the events of the operation's lane.
	Creators store.Creators

	// Fn performs the I/O.
	Fn service.Func

	// Request is passed to Fn.
	Request service.Request

	// ID is the record identifier targeted by the caller.
	ID string

	// KeyValue is the record identity stamped on every event.
	KeyValue string

	// Key, PartitionKey and PartitionKeyValue override the reducer's
	// identity configuration for this call.
	Key               string
	PartitionKey      string
	PartitionKeyValue string

	// KeyFromResponse overrides the reducer's key extractor.
	KeyFromResponse store.KeyExtractor

	// ClearRecords discards existing records when a list fetch succeeds.
	ClearRecords bool

	// ResponseCollectionKey overrides the reducer's list collection key.
	ResponseCollectionKey string

	// Success decides whether a result counts as success. Defaults to
	// Result.Success.
	Success func(service.Result) bool
}

// Sequencer runs calls against a Dispatcher.
type Sequencer struct {
	dispatcher Dispatcher
	logger     *slog.Logger
}

// NewSequencer creates a Sequencer. A nil logger uses slog.Default().
func NewSequencer(dispatcher Dispatcher, logger *slog.Logger) *Sequencer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sequencer{
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Run dispatches REQUEST, calls Fn and dispatches SUCCESS or FAILURE. A server
// rejection returns the result with a nil error. A transport error, or the
// context ending, dispatches FAILURE and returns the error; cancellation
// errors wrap ErrCanceled.
func (s *Sequencer) Run(ctx context.Context, call Call) (service.Result, error) {
	if call.Fn == nil {
		return service.Result{}, ErrNoOperation
	}

	requestID := uuid.NewString()
	ctx = service.WithRequestID(ctx, requestID)
	op := call.Creators.Op()
	data := requestData(op, call.Request)

	base := store.Payload{
		ID:                    call.ID,
		KeyValue:              call.KeyValue,
		Key:                   call.Key,
		PartitionKey:          call.PartitionKey,
		PartitionKeyValue:     call.PartitionKeyValue,
		RequestData:           data,
		KeyFromResponse:       call.KeyFromResponse,
		ClearRecords:          call.ClearRecords,
		ResponseCollectionKey: call.ResponseCollectionKey,
	}

	s.dispatch(call.Creators.Request(base), requestID)

	res, err := s.invoke(ctx, call)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ErrCanceled) {
			err = fmt.Errorf("%w: %w", ErrCanceled, err)
		}
		s.logger.Warn("request failed",
			"type", call.Creators.Names().Failure,
			"requestID", requestID,
			"keyValue", call.KeyValue,
			"error", err,
		)
		failure := base
		failure.Error = err
		s.dispatch(call.Creators.Failure(failure), requestID)
		return res, err
	}

	outcome := base
	outcome.ResponseData = res.ResponseData

	success := res.Success
	if call.Success != nil {
		success = call.Success(res)
	}
	if success {
		s.dispatch(call.Creators.Success(outcome), requestID)
		return res, nil
	}

	s.logger.Warn("request rejected",
		"type", call.Creators.Names().Failure,
		"requestID", requestID,
		"keyValue", call.KeyValue,
		"status", res.StatusCode,
	)
	s.dispatch(call.Creators.Failure(outcome), requestID)
	return res, nil
}

// invoke runs Fn, reporting a context that ended first as an error.
func (s *Sequencer) invoke(ctx context.Context, call Call) (service.Result, error) {
	if err := ctx.Err(); err != nil {
		return service.Result{}, fmt.Errorf("%w: %w", ErrCanceled, err)
	}
	return call.Fn(ctx, call.Request)
}

func (s *Sequencer) dispatch(ev store.Event, requestID string) {
	ev.Meta.RequestID = requestID
	s.dispatcher.Dispatch(ev)
}

// requestData picks what the caller sent for op.
func requestData(op store.Op, req service.Request) any {
	switch op {
	case store.Create, store.Put:
		if req.Body != nil {
			return req.Body
		}
	case store.Patch:
		if req.Next != nil {
			return req.Next
		}
		if req.Current != nil {
			return req.Current
		}
	default:
		if req.Params != nil {
			return req.Params
		}
	}
	return nil
}
