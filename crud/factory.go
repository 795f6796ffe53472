package crud

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/jacentio/recrud/store"
)

// Factory builds resources sharing default configuration and one root state.
type Factory struct {
	defaults Config
	opts     []Option
	root     *store.Root

	mu        sync.Mutex
	resources map[string]*Crud
}

// Configure returns a Factory whose resources inherit the unset fields of
// defaults and the given options.
func Configure(defaults Config, opts ...Option) *Factory {
	return &Factory{
		defaults:  defaults,
		opts:      opts,
		root:      store.NewRoot(store.NewRegistry()),
		resources: map[string]*Crud{},
	}
}

// New builds a resource registered in the factory's root state. Options are
// applied after the factory's.
func (f *Factory) New(ctx context.Context, config Config, opts ...Option) (*Crud, error) {
	config = config.withDefaults(f.defaults)
	if err := config.validate(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.resources[config.Name]; exists {
		return nil, fmt.Errorf("%w: %q", store.ErrDuplicateResource, config.Name)
	}
	for _, other := range f.resources {
		if other.config.ActionBase() == config.ActionBase() {
			return nil, fmt.Errorf("%w: %q and %q share action base %s",
				store.ErrDuplicateResource, config.Name, other.config.Name, config.ActionBase())
		}
	}

	name := config.Name
	all := append(append([]Option{}, f.opts...), opts...)
	all = append(all, withState(f.root, func() store.AggregateState { return f.root.State(name) }))

	c, err := New(ctx, config, all...)
	if err != nil {
		return nil, err
	}
	if err := f.root.Register(name, c.Reducer()); err != nil {
		_ = c.Close()
		return nil, err
	}
	f.resources[name] = c
	return c, nil
}

// Load builds every resource of a LoadConfig document.
func (f *Factory) Load(ctx context.Context, r io.Reader, opts ...Option) ([]*Crud, error) {
	configs, err := LoadConfig(r)
	if err != nil {
		return nil, err
	}
	out := make([]*Crud, 0, len(configs))
	for _, cfg := range configs {
		c, err := f.New(ctx, cfg, opts...)
		if err != nil {
			return nil, fmt.Errorf("resource %q: %w", cfg.Name, err)
		}
		out = append(out, c)
	}
	return out, nil
}

// Resource returns the named resource, or nil.
func (f *Factory) Resource(name string) *Crud {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resources[name]
}

// Root returns the shared root state.
func (f *Factory) Root() *store.Root {
	return f.root
}

// Close closes every resource.
func (f *Factory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var firstErr error
	for _, c := range f.resources {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
