// Package store provides the record state store: a pure reducer that folds
// CRUD request/success/failure events into a normalized per-record state tree.
//
// Each resource gets its own [Actions] taxonomy: six operations, each with a
// REQUEST, SUCCESS and FAILURE phase, named "{base}_{OP}_{PHASE}":
//
//	actions := store.NewActions("USERS_CRUD")
//	reducer := store.NewReducer(actions, store.DefaultConfig())
//
//	state := store.NewAggregateState()
//	state = reducer.Apply(state, actions.Creators(store.FetchSingle).Request(store.Payload{KeyValue: "u1"}))
//
// # State shape
//
// [AggregateState] holds the resource-wide busy flags, the last error, a
// per-operation error map and the records map. Every [RecordState] carries the
// same flags and errors scoped to that record, plus its last server-confirmed
// Data.
//
// # Lanes
//
// The six operations are independent lanes. A lane's transitions only touch its
// own flag and error slot, so a list fetch and a single-record update can be in
// flight at the same time.
//
// # Identity
//
// Records are addressed by an identity derived with [ResolveKey]: an explicit
// key value, a custom extractor, a partition composite "{partition}:{key}", or
// the plain key field, in that order.
//
// # Errors
//
//   - [ErrUnresolvedKey] - a success event carried no resolvable identity
//   - [ErrRequestFailed] - a failure event carried no usable message
package store
