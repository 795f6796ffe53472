package store

import (
	"fmt"
	"sync"
)

// Registry holds the reducers of several resources sharing one event stream.
type Registry struct {
	names  []string
	byName map[string]*Reducer
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		names:  []string{},
		byName: make(map[string]*Reducer),
	}
}

// Register adds the reducer of the named resource. Each name and each event
// type may belong to one resource only.
func (r *Registry) Register(name string, reducer *Reducer) error {
	if _, ok := r.byName[name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateResource, name)
	}
	actions := reducer.Actions()
	for _, op := range Ops() {
		names := actions.Names(op)
		for _, eventType := range []string{names.Request, names.Success, names.Failure} {
			if owner, ok := r.Owner(eventType); ok {
				return fmt.Errorf("%w: %q events %s belong to %q", ErrDuplicateResource, name, eventType, owner)
			}
		}
	}
	r.names = append(r.names, name)
	r.byName[name] = reducer
	return nil
}

// Reducer returns the reducer registered under name, or nil.
func (r *Registry) Reducer(name string) *Reducer {
	return r.byName[name]
}

// Names returns the registered resource names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// Owner returns the name of the resource whose taxonomy contains eventType.
func (r *Registry) Owner(eventType string) (string, bool) {
	for _, name := range r.names {
		if _, _, ok := r.byName[name].Actions().Lookup(eventType); ok {
			return name, true
		}
	}
	return "", false
}

// Apply routes ev to the reducer owning its type. Events no resource owns
// return root unchanged; otherwise root is copied, never modified.
func (r *Registry) Apply(root map[string]AggregateState, ev Event) map[string]AggregateState {
	if !ev.Meta.Recrud {
		return root
	}
	name, ok := r.Owner(ev.Type)
	if !ok {
		return root
	}

	state, ok := root[name]
	if !ok {
		state = NewAggregateState()
	}
	next := make(map[string]AggregateState, len(root)+1)
	for k, v := range root {
		next[k] = v
	}
	next[name] = r.byName[name].Apply(state, ev)
	return next
}

// Slice holds the state of one resource and applies events in arrival order.
// It is safe for concurrent use.
type Slice struct {
	mu      sync.Mutex
	reducer *Reducer
	state   AggregateState
}

// NewSlice creates a Slice starting from the initial state.
func NewSlice(reducer *Reducer) *Slice {
	return &Slice{
		reducer: reducer,
		state:   NewAggregateState(),
	}
}

// Dispatch applies ev.
func (s *Slice) Dispatch(ev Event) {
	s.mu.Lock()
	s.state = s.reducer.Apply(s.state, ev)
	s.mu.Unlock()
}

// State returns the current state. The returned value is never modified by
// later events.
func (s *Slice) State() AggregateState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Root holds the states of all resources of a Registry and applies events in
// arrival order. It is safe for concurrent use.
type Root struct {
	mu       sync.Mutex
	registry *Registry
	states   map[string]AggregateState
}

// NewRoot creates a Root over registry.
func NewRoot(registry *Registry) *Root {
	return &Root{
		registry: registry,
		states:   map[string]AggregateState{},
	}
}

// Register adds a resource reducer to the underlying registry.
func (r *Root) Register(name string, reducer *Reducer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registry.Register(name, reducer)
}

// Dispatch applies ev to the owning resource.
func (r *Root) Dispatch(ev Event) {
	r.mu.Lock()
	r.states = r.registry.Apply(r.states, ev)
	r.mu.Unlock()
}

// State returns the state of the named resource.
func (r *Root) State(name string) AggregateState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if state, ok := r.states[name]; ok {
		return state
	}
	return NewAggregateState()
}
