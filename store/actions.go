package store

import "strings"

// MetaKey is the JSON name of the marker carried by every event of this package.
const MetaKey = "@@recrud/ACTION"

// Op is one of the six CRUD operations. Each op is an independent lane with its
// own busy flag and error slot.
type Op int

const (
	FetchList Op = iota
	FetchSingle
	Create
	Put
	Patch
	Delete

	numOps = int(Delete) + 1
)

// Ops lists all operations in declaration order.
func Ops() []Op {
	return []Op{FetchList, FetchSingle, Create, Put, Patch, Delete}
}

var opInfo = [numOps]struct {
	typeName string
	name     string
	flag     string
	errorKey string
}{
	FetchList:   {"FETCH_LIST", "fetchList", "isFetchingList", "fetchList"},
	FetchSingle: {"FETCH_SINGLE", "fetchSingle", "isFetchingSingle", "fetchSingle"},
	Create:      {"CREATE", "create", "isCreating", "create"},
	Put:         {"PUT", "put", "isPutting", "put"},
	Patch:       {"PATCH", "patch", "isUpdating", "update"},
	Delete:      {"DELETE", "delete", "isDeleting", "delete"},
}

func (o Op) valid() bool { return o >= 0 && int(o) < numOps }

// String returns the op as it appears in event types (e.g. "FETCH_LIST").
func (o Op) String() string {
	if !o.valid() {
		return "UNKNOWN"
	}
	return opInfo[o].typeName
}

// Name returns the camel-case operation name (e.g. "fetchList").
func (o Op) Name() string {
	if !o.valid() {
		return ""
	}
	return opInfo[o].name
}

// FlagName returns the name of the op's busy flag (e.g. "isFetchingList").
func (o Op) FlagName() string {
	if !o.valid() {
		return ""
	}
	return opInfo[o].flag
}

// ErrorKey returns the op's key in the errors map. Patch reports as "update".
func (o Op) ErrorKey() string {
	if !o.valid() {
		return ""
	}
	return opInfo[o].errorKey
}

// RecordScoped reports whether the op targets one known record. Create is not
// record scoped: its identity is only known once the server answers.
func (o Op) RecordScoped() bool {
	switch o {
	case FetchSingle, Put, Patch, Delete:
		return true
	}
	return false
}

// ParseOp maps a camel-case operation name back to its Op.
func ParseOp(name string) (Op, bool) {
	for _, op := range Ops() {
		if op.Name() == name {
			return op, true
		}
	}
	return 0, false
}

// Phase is one stage of a single lane invocation.
type Phase int

const (
	Request Phase = iota
	Success
	Failure
)

func (p Phase) String() string {
	switch p {
	case Request:
		return "REQUEST"
	case Success:
		return "SUCCESS"
	case Failure:
		return "FAILURE"
	}
	return "UNKNOWN"
}

// ActionNames holds the event types of one op.
type ActionNames struct {
	Base    string
	Request string
	Success string
	Failure string
}

// Type returns the event type for phase.
func (n ActionNames) Type(p Phase) string {
	switch p {
	case Request:
		return n.Request
	case Success:
		return n.Success
	case Failure:
		return n.Failure
	}
	return ""
}

// Actions is the event taxonomy of one resource. It is a plain value built once
// per resource at configuration time.
type Actions struct {
	base  string
	names [numOps]ActionNames
}

// NewActions builds the taxonomy "{base}_{OP}_{PHASE}" for all six ops.
func NewActions(base string) Actions {
	a := Actions{base: base}
	for _, op := range Ops() {
		opBase := base + "_" + op.String()
		a.names[op] = ActionNames{
			Base:    opBase,
			Request: opBase + "_" + Request.String(),
			Success: opBase + "_" + Success.String(),
			Failure: opBase + "_" + Failure.String(),
		}
	}
	return a
}

// Base returns the prefix shared by all event types of the resource.
func (a Actions) Base() string { return a.base }

// Names returns the event types of op.
func (a Actions) Names(op Op) ActionNames {
	if !op.valid() {
		return ActionNames{}
	}
	return a.names[op]
}

// Lookup maps an event type back to its op and phase.
func (a Actions) Lookup(eventType string) (Op, Phase, bool) {
	if a.base == "" || !strings.HasPrefix(eventType, a.base+"_") {
		return 0, 0, false
	}
	for _, op := range Ops() {
		names := a.names[op]
		switch eventType {
		case names.Request:
			return op, Request, true
		case names.Success:
			return op, Success, true
		case names.Failure:
			return op, Failure, true
		}
	}
	return 0, 0, false
}

// Creators returns the action creators of op.
func (a Actions) Creators(op Op) Creators {
	return Creators{op: op, names: a.Names(op)}
}

// Creators builds marked events for the three phases of one op.
type Creators struct {
	op    Op
	names ActionNames
}

// Op returns the lane the creators emit events for.
func (c Creators) Op() Op { return c.op }

// Names returns the event types the creators emit.
func (c Creators) Names() ActionNames { return c.names }

// Request builds the REQUEST event.
func (c Creators) Request(p Payload) Event { return c.Event(Request, p) }

// Success builds the SUCCESS event.
func (c Creators) Success(p Payload) Event { return c.Event(Success, p) }

// Failure builds the FAILURE event.
func (c Creators) Failure(p Payload) Event { return c.Event(Failure, p) }

// Event builds the event of the given phase.
func (c Creators) Event(phase Phase, p Payload) Event {
	return Event{
		Type:    c.names.Type(phase),
		Payload: p,
		Meta:    Meta{Recrud: true},
	}
}

// Event is the unit folded by the Reducer.
type Event struct {
	Type    string  `json:"type"`
	Payload Payload `json:"payload"`
	Meta    Meta    `json:"meta"`
}

// Meta marks events as belonging to this package. Reducers ignore events
// without the marker.
type Meta struct {
	Recrud    bool   `json:"@@recrud/ACTION"`
	RequestID string `json:"requestId,omitempty"`
}

// Payload carries the inputs of one lane transition. All fields are optional.
type Payload struct {
	// ID is the record identifier the caller targeted. It addresses the
	// record only when neither KeyValue nor the payload data resolves an
	// identity; with PartitionKeyValue it forms "{partition}:{ID}".
	ID string `json:"id,omitempty"`

	// KeyValue is the record identity stamped by the requestor. It takes
	// precedence over every other identity source.
	KeyValue string `json:"keyValue,omitempty"`

	// Key overrides Config.Key.
	Key string `json:"key,omitempty"`

	// PartitionKey overrides Config.PartitionKey.
	PartitionKey string `json:"partitionKey,omitempty"`

	// PartitionKeyValue is a parent identifier supplied by the caller.
	PartitionKeyValue string `json:"partitionKeyValue,omitempty"`

	// RequestData is what the caller sent (parameters or body).
	RequestData any `json:"requestData,omitempty"`

	// ResponseData is the server payload on SUCCESS, or the error body on FAILURE.
	ResponseData any `json:"responseData,omitempty"`

	// KeyFromResponse overrides Config.KeyExtractor.
	KeyFromResponse KeyExtractor `json:"-"`

	// ClearRecords discards existing records on FETCH_LIST.SUCCESS.
	ClearRecords bool `json:"clearRecords,omitempty"`

	// ResponseCollectionKey overrides Config.ResponseCollectionKey.
	ResponseCollectionKey string `json:"responseCollectionKey,omitempty"`

	// Error is the transport error of a FAILURE.
	Error error `json:"-"`
}
