package abi

import (
	"context"
	"slices"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/wippyai/savefile/errors"
)

// Registry maps interface names to entry points. It is filled during
// start-up and sealed before use; lookups never lock.
type Registry struct {
	entries *xsync.MapOf[string, EntryPoint]
	opts    ConnectOptions
	sealed  atomic.Bool
}

func NewRegistry(opts ConnectOptions) *Registry {
	return &Registry{
		entries: xsync.NewMapOf[string, EntryPoint](),
		opts:    opts,
	}
}

var defaultRegistry = NewRegistry(DefaultConnectOptions())

// DefaultRegistry returns the process-wide registry.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Register adds entry under name in the process-wide registry.
func Register(name string, entry EntryPoint) error {
	return defaultRegistry.Register(name, entry)
}

// Register adds entry under name. It fails once the registry is sealed or
// when name is taken.
func (r *Registry) Register(name string, entry EntryPoint) error {
	if r.sealed.Load() {
		return errors.Registration(name, errors.InvalidInput(errors.PhaseConnect, "registry is sealed"))
	}
	if name == "" || entry == nil {
		return errors.Registration(name, errors.InvalidInput(errors.PhaseConnect, "name and entry point are required"))
	}
	if _, loaded := r.entries.LoadOrStore(name, entry); loaded {
		return errors.Registration(name, errors.InvalidInput(errors.PhaseConnect, "already registered"))
	}
	return nil
}

// Seal makes the registry immutable.
func (r *Registry) Seal() {
	r.sealed.Store(true)
}

// Sealed reports whether Seal was called.
func (r *Registry) Sealed() bool {
	return r.sealed.Load()
}

// Lookup returns the entry point registered under name.
func (r *Registry) Lookup(name string) (EntryPoint, bool) {
	return r.entries.Load(name)
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, r.entries.Size())
	r.entries.Range(func(name string, _ EntryPoint) bool {
		names = append(names, name)
		return true
	})
	slices.Sort(names)
	return names
}

// Connect creates a new instance of the interface registered under
// iface's name.
func (r *Registry) Connect(ctx context.Context, iface Describer) (*Connection, error) {
	entry, ok := r.Lookup(iface.Name())
	if !ok {
		return nil, errors.NotFound(errors.PhaseConnect, "interface", iface.Name())
	}
	return Connect(ctx, entry, iface, r.opts)
}

// Attach binds a connection to the instance ref points at. The connection
// drops the instance on Close only when ref is owning.
func (r *Registry) Attach(ctx context.Context, ref Ref, iface Describer) (*Connection, error) {
	entry, ok := r.Lookup(ref.Interface)
	if !ok {
		return nil, errors.NotFound(errors.PhaseConnect, "interface", ref.Interface)
	}
	return attach(ctx, entry, ref, iface, r.opts)
}
