package components

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aetherius-core/aetherius/internal/arch"
	"github.com/aetherius-core/aetherius/pkg/logger"
)

// LifecycleState is a component's position in its load/enable lifecycle.
type LifecycleState int

const (
	Discovered LifecycleState = iota
	Loaded
	Enabled
	Disabled
	Unloaded
	Failed
)

func (s LifecycleState) String() string {
	switch s {
	case Discovered:
		return "discovered"
	case Loaded:
		return "loaded"
	case Enabled:
		return "enabled"
	case Disabled:
		return "disabled"
	case Unloaded:
		return "unloaded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

type entry struct {
	manifest *Manifest
	state    LifecycleState
	failErr  error

	instance Component          // set once Loaded, for in-process components
	handle   *outOfProcessHandle // set once Loaded, for web components
}

// Loader discovers, orders, and manages the lifecycle of every component
// found under a directory. It implements both arch.ComponentRegistry (for
// read-only listing) and daemon.ComponentDispatcher (for routing "$"
// console commands), so the daemon only needs this one type.
type Loader struct {
	dir string
	bus arch.EventBus
	sup arch.ProcessSupervisor
	log logger.Logger

	mu      sync.RWMutex
	entries map[string]*entry
	order   []string
}

// New builds an empty Loader; call Scan to discover components.
func New(dir string, bus arch.EventBus, sup arch.ProcessSupervisor, log logger.Logger) *Loader {
	return &Loader{dir: dir, bus: bus, sup: sup, log: log, entries: make(map[string]*entry)}
}

// Scan discovers manifests and computes their dependency load order. It
// must be called before any Load/Enable operation.
func (l *Loader) Scan() error {
	manifests, err := Scan(l.dir)
	if err != nil {
		return err
	}
	ordered, err := LoadOrder(manifests)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = make(map[string]*entry, len(ordered))
	l.order = l.order[:0]
	for _, m := range ordered {
		l.entries[m.Name] = &entry{manifest: m, state: Discovered}
		l.order = append(l.order, m.Name)
	}
	return nil
}

func (l *Loader) get(name string) (*entry, error) {
	e, ok := l.entries[name]
	if !ok {
		return nil, fmt.Errorf("components: unknown component %q", name)
	}
	return e, nil
}

// componentHandle adapts a Loader into the narrow arch.ComponentHandle a
// component receives in OnLoad, instead of a back-reference to the whole
// daemon.
type componentHandle struct {
	l    *Loader
	name string
}

func (h componentHandle) Emit(ctx context.Context, event interface{}) {
	if ev, ok := event.(interface{ EventType() string }); ok {
		h.l.log.Debug("component emitted event", "component", h.name, "event_type", ev.EventType())
	}
	if h.l.bus != nil {
		h.l.bus.Fire(ctx, event)
	}
}

func (h componentHandle) SubmitCommand(ctx context.Context, text string, timeout time.Duration) (arch.CommandResult, error) {
	return h.l.sup.ExecuteWithResult(ctx, text, timeout)
}

func (h componentHandle) ConfigGet(key string) (string, bool) {
	return "", false
}

// Load instantiates name — from the in-process registry, or by spawning
// its start_command if the manifest marks it as a web component — after
// recursively ensuring every hard dependency is loaded first.
func (l *Loader) Load(ctx context.Context, name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loadLocked(ctx, name)
}

func (l *Loader) loadLocked(ctx context.Context, name string) error {
	e, err := l.get(name)
	if err != nil {
		return err
	}
	if e.state != Discovered && e.state != Unloaded {
		return nil
	}

	for _, dep := range e.manifest.HardDependencies {
		depEntry, err := l.get(dep)
		if err != nil {
			return err
		}
		if depEntry.state == Discovered || depEntry.state == Unloaded {
			if err := l.loadLocked(ctx, dep); err != nil {
				return fmt.Errorf("components: loading dependency %q of %q: %w", dep, name, err)
			}
		}
	}

	if e.manifest.Web {
		handle, err := startOutOfProcess(ctx, e.manifest, l.log)
		if err != nil {
			e.state = Failed
			e.failErr = err
			return err
		}
		e.handle = handle
		if handle.readyTimedOut {
			// The process is left running (it may still be mid-boot, or
			// may have raced the READY marker against our timeout) — only
			// the lifecycle bookkeeping reflects the timeout, not the
			// process itself.
			e.state = Failed
			e.failErr = fmt.Errorf("components: %q did not signal ready within its timeout; process left running", name)
			return nil
		}
	} else {
		inst, ok := newInstance(name)
		if !ok {
			e.state = Failed
			e.failErr = fmt.Errorf("components: no in-process factory registered for %q", name)
			return e.failErr
		}
		if err := inst.OnLoad(ctx, componentHandle{l: l, name: name}); err != nil {
			e.state = Failed
			e.failErr = err
			return err
		}
		e.instance = inst
	}

	e.state = Loaded
	return nil
}

// LoadAll loads every discovered component in dependency order.
func (l *Loader) LoadAll(ctx context.Context) error {
	l.mu.RLock()
	order := append([]string(nil), l.order...)
	l.mu.RUnlock()

	for _, name := range order {
		if err := l.Load(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

// Enable transitions a loaded component to enabled.
func (l *Loader) Enable(ctx context.Context, name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, err := l.get(name)
	if err != nil {
		return err
	}
	if e.state != Loaded && e.state != Disabled {
		return fmt.Errorf("components: %q must be loaded before it can be enabled (state=%s)", name, e.state)
	}
	if e.instance != nil {
		if err := e.instance.OnEnable(ctx); err != nil {
			e.state = Failed
			e.failErr = err
			return err
		}
	}
	e.state = Enabled
	return nil
}

// EnableAll enables every loaded component in dependency order.
func (l *Loader) EnableAll(ctx context.Context) error {
	l.mu.RLock()
	order := append([]string(nil), l.order...)
	l.mu.RUnlock()
	for _, name := range order {
		l.mu.RLock()
		st := l.entries[name].state
		l.mu.RUnlock()
		if st == Loaded {
			if err := l.Enable(ctx, name); err != nil {
				return err
			}
		}
	}
	return nil
}

// Disable transitions an enabled component back to disabled.
func (l *Loader) Disable(ctx context.Context, name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, err := l.get(name)
	if err != nil {
		return err
	}
	if e.state != Enabled {
		return fmt.Errorf("components: %q is not enabled (state=%s)", name, e.state)
	}
	if e.instance != nil {
		if err := e.instance.OnDisable(ctx); err != nil {
			return err
		}
	}
	e.state = Disabled
	return nil
}

// Unload fully removes a disabled or loaded component, stopping its
// process if it is a web component.
func (l *Loader) Unload(ctx context.Context, name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, err := l.get(name)
	if err != nil {
		return err
	}
	if e.state == Enabled {
		return fmt.Errorf("components: %q must be disabled before it can be unloaded", name)
	}
	if e.instance != nil {
		if err := e.instance.OnUnload(ctx); err != nil {
			return err
		}
		e.instance = nil
	}
	if e.handle != nil {
		if err := e.handle.stop(); err != nil {
			l.log.Warn("components: error stopping web component", "component", name, "error", err.Error())
		}
		e.handle = nil
	}
	e.state = Unloaded
	return nil
}

// Reload unloads (if needed) and loads+enables name again.
func (l *Loader) Reload(ctx context.Context, name string) error {
	l.mu.RLock()
	e, err := l.get(name)
	l.mu.RUnlock()
	if err != nil {
		return err
	}
	if e.state == Enabled {
		if err := l.Disable(ctx, name); err != nil {
			return err
		}
	}
	if e.state == Loaded || e.state == Disabled {
		if err := l.Unload(ctx, name); err != nil {
			return err
		}
	}
	if err := l.Load(ctx, name); err != nil {
		return err
	}
	return l.Enable(ctx, name)
}

// IsLoaded reports whether name has reached at least the Loaded state.
func (l *Loader) IsLoaded(name string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.entries[name]
	return ok && (e.state == Loaded || e.state == Enabled || e.state == Disabled)
}

// IsEnabled reports whether name is currently enabled.
func (l *Loader) IsEnabled(name string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.entries[name]
	return ok && e.state == Enabled
}

// List implements arch.ComponentRegistry.
func (l *Loader) List() []arch.ComponentSummary {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]arch.ComponentSummary, 0, len(l.order))
	for _, name := range l.order {
		e := l.entries[name]
		out = append(out, summaryFor(e))
	}
	return out
}

// Info implements arch.ComponentRegistry.
func (l *Loader) Info(name string) (arch.ComponentSummary, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.entries[name]
	if !ok {
		return arch.ComponentSummary{}, false
	}
	return summaryFor(e), true
}

func summaryFor(e *entry) arch.ComponentSummary {
	return arch.ComponentSummary{
		Name:        e.manifest.Name,
		Version:     e.manifest.Version,
		Author:      e.manifest.Author,
		State:       e.state.String(),
		HardDeps:    e.manifest.HardDependencies,
		SoftDeps:    e.manifest.SoftDependencies,
		LoadOrder:   e.manifest.LoadOrder,
		ProvidesWeb: e.manifest.Web,
	}
}

// Dispatch implements daemon.ComponentDispatcher, routing a "$name args"
// console line. In-process components don't expose a generic command
// surface beyond their lifecycle, so only web components (which speak
// line-oriented text over stdin) accept free-form args here.
func (l *Loader) Dispatch(ctx context.Context, name, args string) (string, error) {
	l.mu.RLock()
	e, ok := l.entries[name]
	l.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("components: unknown component %q", name)
	}
	if e.state != Enabled {
		return "", fmt.Errorf("components: %q is not enabled (state=%s)", name, e.state)
	}
	if e.handle == nil {
		return "", fmt.Errorf("components: %q does not accept console commands", name)
	}
	if err := e.handle.send(args); err != nil {
		return "", err
	}
	return "dispatched to " + name, nil
}
