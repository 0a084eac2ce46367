// Package arch defines the narrow interfaces that let the daemon, the
// supervisor, the event bus and the component loader depend on each other
// without importing one another's concrete packages, plus the CoreServices
// struct that replaces the global singletons of the original implementation.
package arch

import (
	"context"
	"time"

	"github.com/aetherius-core/aetherius/pkg/logger"
)

// TimeProvider abstracts wall-clock access so tests can control elapsed
// time without sleeping.
type TimeProvider interface {
	Now() time.Time
}

type realTime struct{}

func (realTime) Now() time.Time { return time.Now() }

// RealTime is the production TimeProvider.
var RealTime TimeProvider = realTime{}

// EventBus is the narrow surface the supervisor, log parser and component
// loader need from the event bus. The concrete implementation lives in
// internal/events; this interface exists so those packages don't import it
// directly and so tests can substitute a fake.
type EventBus interface {
	Fire(ctx context.Context, event interface{}) interface{}
}

// ProcessSupervisor is the narrow surface the daemon and command pipeline
// need from the process supervisor.
type ProcessSupervisor interface {
	SendCommand(ctx context.Context, text string) error
	ExecuteWithResult(ctx context.Context, text string, timeout time.Duration) (CommandResult, error)
	State() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Restart(ctx context.Context) error
}

// CommandResult is the outcome of a synchronous command execution, shared
// between the in-process direct path and the cross-process queue path.
type CommandResult struct {
	Success       bool
	Output        string
	Error         string
	ExecutionTime time.Duration
	TimedOut      bool
}

// ComponentHandle is the narrow capability surface a loaded component
// receives from the core instead of a back-reference to the whole daemon.
// It exists to break the cyclic component<->core references the original
// implementation relied on ad hoc attribute probing for.
type ComponentHandle interface {
	Emit(ctx context.Context, event interface{})
	SubmitCommand(ctx context.Context, text string, timeout time.Duration) (CommandResult, error)
	ConfigGet(key string) (string, bool)
}

// ComponentRegistry is the one interface every component-listing caller
// must use instead of probing for "ListComponents" vs "ListLoadedComponents"
// style methods by reflection.
type ComponentRegistry interface {
	List() []ComponentSummary
	Info(name string) (ComponentSummary, bool)
}

// ComponentSummary is the read-only view of a component's state exposed to
// CLI/console callers.
type ComponentSummary struct {
	Name       string
	Version    string
	Author     string
	State      string
	HardDeps   []string
	SoftDeps   []string
	LoadOrder  int
	ProvidesWeb bool
}

// CoreServices threads every shared dependency explicitly through
// construction instead of relying on package-level globals
// (`_event_manager`, `_command_queue`, `_server_state` in the original).
// Every long-lived component takes the subset of CoreServices it needs in
// its constructor.
type CoreServices struct {
	Logger logger.Logger
	Clock  TimeProvider
}

// NewCoreServices builds a CoreServices with production defaults.
func NewCoreServices(log logger.Logger) *CoreServices {
	return &CoreServices{Logger: log, Clock: RealTime}
}
