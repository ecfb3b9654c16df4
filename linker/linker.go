package linker

import (
	"context"
	"slices"
	"sync"

	"github.com/samber/lo"
	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"

	"github.com/wippyai/savefile/abi"
	serrors "github.com/wippyai/savefile/errors"
)

// Options configures a Linker.
type Options struct {
	// ModulePrefix is prepended to every module name the linker
	// instantiates.
	ModulePrefix string
	// ExchangePages is the initial size of each artifact's exchange
	// memory in 64KiB pages. It grows on demand.
	ExchangePages uint32
}

// DefaultOptions returns the default linker options.
func DefaultOptions() Options {
	return Options{
		ExchangePages: 1,
		ModulePrefix:  "savefile:",
	}
}

// Linker hosts abi entry points inside wasm artifacts on one runtime.
type Linker struct {
	runtime   wazero.Runtime
	artifacts map[string]*artifact
	options   Options
	mu        sync.Mutex
}

// New creates a linker on rt. The runtime stays owned by the caller.
func New(rt wazero.Runtime, opts Options) *Linker {
	if opts.ExchangePages == 0 {
		opts.ExchangePages = 1
	}
	return &Linker{
		runtime:   rt,
		artifacts: make(map[string]*artifact),
		options:   opts,
	}
}

// Link instantiates an artifact for target and returns an entry point
// that reaches target through the artifact's exported entry function.
// Requests and results cross the boundary as framed bytes in the
// artifact's memory. ctx is used for every call made through the link.
func (l *Linker) Link(ctx context.Context, name string, target abi.EntryPoint) (abi.EntryPoint, error) {
	if name == "" {
		return nil, serrors.InvalidInput(serrors.PhaseLinking, "empty artifact name")
	}
	if target == nil {
		return nil, serrors.InvalidInput(serrors.PhaseLinking, "nil entry point")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.artifacts[name]; ok {
		return nil, linkError("register", name, "already linked", nil)
	}

	a, err := instantiate(ctx, l.runtime, l.options.ModulePrefix+name, l.options.ExchangePages, target)
	if err != nil {
		return nil, linkError("instantiate", name, "", serrors.Instantiation(err))
	}
	l.artifacts[name] = a

	Logger().Info("entry point linked",
		zap.String("name", name),
		zap.String("module", a.name),
		zap.Uint32("pages", l.options.ExchangePages))

	return a.call, nil
}

// Unlink closes the artifact registered under name. Entry points returned
// for it fail with a protocol result afterwards.
func (l *Linker) Unlink(ctx context.Context, name string) error {
	l.mu.Lock()
	a, ok := l.artifacts[name]
	delete(l.artifacts, name)
	l.mu.Unlock()

	if !ok {
		return serrors.NotFound(serrors.PhaseLinking, "artifact", name)
	}
	return a.close(ctx)
}

// Names returns the linked artifact names in sorted order.
func (l *Linker) Names() []string {
	l.mu.Lock()
	names := lo.Keys(l.artifacts)
	l.mu.Unlock()
	slices.Sort(names)
	return names
}

// Close unlinks every artifact and returns the first error.
func (l *Linker) Close(ctx context.Context) error {
	l.mu.Lock()
	artifacts := l.artifacts
	l.artifacts = make(map[string]*artifact)
	l.mu.Unlock()

	var first error
	for _, a := range artifacts {
		if err := a.close(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}
