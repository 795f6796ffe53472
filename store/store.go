package store

import (
	"github.com/jacentio/recrud/internal/keys"
)

// Reducer folds the events of one resource into its AggregateState.
//
// Apply is pure: it never modifies the state it receives, and returns that same
// state for events it does not recognize.
type Reducer struct {
	actions Actions
	config  Config
}

// NewReducer creates a Reducer for the resource described by actions.
func NewReducer(actions Actions, config Config) *Reducer {
	config.validate()
	return &Reducer{
		actions: actions,
		config:  config,
	}
}

// Actions returns the taxonomy the reducer recognizes.
func (r *Reducer) Actions() Actions {
	return r.actions
}

// Config returns the reducer configuration with defaults applied.
func (r *Reducer) Config() Config {
	return r.config
}

// Apply returns the state that results from ev.
func (r *Reducer) Apply(state AggregateState, ev Event) AggregateState {
	if !ev.Meta.Recrud {
		return state
	}
	op, phase, ok := r.actions.Lookup(ev.Type)
	if !ok {
		return state
	}

	switch phase {
	case Request:
		return r.request(state, op, ev)
	case Success:
		return r.success(state, op, ev)
	case Failure:
		return r.failure(state, op, ev)
	}
	return state
}

// request marks the lane busy, on the resource and, for record scoped ops, on
// the targeted record.
func (r *Reducer) request(state AggregateState, op Op, ev Event) AggregateState {
	busy := laneUpdate{op: op, status: laneBusy}
	if !op.RecordScoped() {
		return mergeAggregateState(state, busy, nil)
	}

	identity, ok := r.identity(ev.Payload, requestData(ev.Payload))
	if !ok {
		r.config.Logger.Debug("request without record identity",
			"type", ev.Type,
			"requestID", ev.Meta.RequestID,
		)
		return mergeAggregateState(state, busy, nil)
	}
	rec := mergeRecordState(recordOrDefault(state.Records, identity), recordUpdate{laneUpdate: busy})
	return mergeAggregateState(state, busy, withRecord(state.Records, identity, rec))
}

// success reconciles the server payload into the records map.
func (r *Reducer) success(state AggregateState, op Op, ev Event) AggregateState {
	done := laneUpdate{op: op, status: laneDone}
	p := ev.Payload

	switch op {
	case FetchList:
		return r.fetchListSuccess(state, ev)

	case FetchSingle, Put, Patch:
		data, _ := asData(p.ResponseData)
		identity, ok := r.identity(p, data)
		if !ok {
			return r.unresolved(state, op, ev, ErrUnresolvedKey)
		}
		// Patch replaces Data like Put: the server answers with the full record.
		rec := mergeRecordState(recordOrDefault(state.Records, identity), recordUpdate{
			laneUpdate: done,
			data:       data,
			mode:       replaceData,
		})
		return mergeAggregateState(state, done, withRecord(state.Records, identity, rec))

	case Create:
		data, _ := asData(p.ResponseData)
		identity, ok := r.identity(p, data)
		if !ok {
			return r.unresolved(state, op, ev, ErrUnresolvedKey)
		}
		rec := mergeRecordState(NewRecordState(), recordUpdate{
			laneUpdate: done,
			data:       data,
			mode:       replaceData,
		})
		return mergeAggregateState(state, done, withRecord(state.Records, identity, rec))

	case Delete:
		data, _ := asData(p.ResponseData)
		identity, ok := r.identity(p, data)
		if !ok {
			identity, ok = r.identity(p, requestData(p))
		}
		if !ok {
			return r.unresolved(state, op, ev, ErrUnresolvedKey)
		}
		return mergeAggregateState(state, done, withoutRecord(state.Records, identity))
	}
	return state
}

// fetchListSuccess upserts every element of the response collection.
func (r *Reducer) fetchListSuccess(state AggregateState, ev Event) AggregateState {
	p := ev.Payload
	done := laneUpdate{op: FetchList, status: laneDone}

	collectionKey := p.ResponseCollectionKey
	if collectionKey == "" {
		collectionKey = r.config.ResponseCollectionKey
	}
	collection, ok := ResponseCollection(p.ResponseData, collectionKey)
	if !ok {
		return r.unresolved(state, FetchList, ev, ErrNoCollection)
	}

	var records map[string]RecordState
	if p.ClearRecords {
		records = make(map[string]RecordState, len(collection))
	} else {
		records = copyRecords(state.Records)
	}

	// List elements carry their own identities; the explicit key value
	// addresses the list request, not its elements.
	elementPayload := p
	elementPayload.KeyValue = ""

	unresolved := 0
	for _, element := range collection {
		data, ok := asData(element)
		if !ok {
			unresolved++
			continue
		}
		identity, ok := r.identity(elementPayload, data)
		if !ok {
			unresolved++
			continue
		}
		records[identity] = mergeRecordState(recordOrDefault(records, identity), recordUpdate{
			laneUpdate: done,
			data:       data,
			mode:       mergeData,
		})
	}

	next := mergeAggregateState(state, done, records)
	if unresolved > 0 {
		r.config.Logger.Error("list elements without record identity",
			"type", ev.Type,
			"requestID", ev.Meta.RequestID,
			"skipped", unresolved,
			"error", ErrUnresolvedKey,
		)
		next = mergeAggregateState(next, laneUpdate{op: FetchList, status: laneFailed, message: ErrUnresolvedKey.Error()}, nil)
	}
	return next
}

// failure records the error on the resource and, for record scoped ops, on an
// existing targeted record. Data is never touched.
func (r *Reducer) failure(state AggregateState, op Op, ev Event) AggregateState {
	p := ev.Payload
	failed := laneUpdate{op: op, status: laneFailed, message: r.errorMessage(p)}

	if !op.RecordScoped() {
		return mergeAggregateState(state, failed, nil)
	}
	identity, ok := r.identity(p, requestData(p))
	if !ok {
		return mergeAggregateState(state, failed, nil)
	}
	existing, ok := state.Records[identity]
	if !ok {
		return mergeAggregateState(state, failed, nil)
	}
	rec := mergeRecordState(existing, recordUpdate{laneUpdate: failed})
	return mergeAggregateState(state, failed, withRecord(state.Records, identity, rec))
}

// unresolved handles a success the reducer cannot store: the lane is closed
// with err recorded as its error, and the violation is logged.
func (r *Reducer) unresolved(state AggregateState, op Op, ev Event, err error) AggregateState {
	r.config.Logger.Error("cannot reconcile success event",
		"type", ev.Type,
		"requestID", ev.Meta.RequestID,
		"error", err,
	)
	return mergeAggregateState(state, laneUpdate{op: op, status: laneFailed, message: err.Error()}, nil)
}

// identity resolves the record identity of p against data, falling back to
// p.ID when data yields none.
func (r *Reducer) identity(p Payload, data Data) (string, bool) {
	in := keys.Input{
		Key:               p.Key,
		PartitionKey:      p.PartitionKey,
		KeyValue:          p.KeyValue,
		PartitionKeyValue: p.PartitionKeyValue,
		Data:              data,
		Extractor:         keys.Extractor(p.KeyFromResponse),
	}
	if in.Key == "" {
		in.Key = r.config.Key
	}
	if in.PartitionKey == "" {
		in.PartitionKey = r.config.PartitionKey
	}
	if in.Extractor == nil && r.config.KeyExtractor != nil {
		in.Extractor = keys.Extractor(r.config.KeyExtractor)
	}
	if identity, ok := keys.Resolve(in); ok {
		return identity, true
	}
	if p.ID == "" {
		return "", false
	}
	// Events built without a requestor address the record by ID.
	in.Data = map[string]any{in.Key: p.ID}
	in.Extractor = nil
	return keys.Resolve(in)
}

// errorMessage prefers the transport error over the server error body.
func (r *Reducer) errorMessage(p Payload) string {
	if p.Error != nil {
		if msg := p.Error.Error(); msg != "" {
			return msg
		}
	}
	return r.config.ServerError(p.ResponseData)
}

// requestData returns the request body or parameters of p as a payload.
func requestData(p Payload) Data {
	data, _ := asData(p.RequestData)
	return data
}

// ResponseCollection extracts the list of records from a list response: the
// payload itself when it is a sequence, else payload[collectionKey].
func ResponseCollection(responseData any, collectionKey string) ([]any, bool) {
	switch v := responseData.(type) {
	case []any:
		return v, true
	case []Data:
		out := make([]any, len(v))
		for i, d := range v {
			out[i] = d
		}
		return out, true
	case []map[string]any:
		out := make([]any, len(v))
		for i, d := range v {
			out[i] = d
		}
		return out, true
	}
	if collectionKey == "" {
		return nil, false
	}
	data, ok := asData(responseData)
	if !ok {
		return nil, false
	}
	nested, ok := data[collectionKey]
	if !ok {
		return nil, false
	}
	return ResponseCollection(nested, "")
}
