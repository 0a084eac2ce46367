package components

import (
	"context"
	"fmt"
	"sync"

	"github.com/aetherius-core/aetherius/internal/arch"
)

// Component is implemented by every in-process component. Go has no
// dynamic import equivalent to the original's module-scanning loader, so
// in-process components self-register a Factory at init() time — the same
// pattern database/sql drivers use — and the loader instantiates by name
// once a matching manifest is discovered.
type Component interface {
	OnLoad(ctx context.Context, handle arch.ComponentHandle) error
	OnEnable(ctx context.Context) error
	OnDisable(ctx context.Context) error
	OnUnload(ctx context.Context) error
}

// Factory constructs a fresh Component instance for a manifest's name.
type Factory func() Component

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register adds a Factory for name. Call from an init() func in the
// component's own package. Panics on duplicate registration, matching
// database/sql.Register's behavior for the same programmer-error class.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic(fmt.Sprintf("components: Register called twice for %q", name))
	}
	registry[name] = f
}

func newInstance(name string) (Component, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[name]
	if !ok {
		return nil, false
	}
	return f(), true
}
