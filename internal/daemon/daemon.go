package daemon

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aetherius-core/aetherius/internal/arch"
	"github.com/aetherius-core/aetherius/internal/events"
	"github.com/aetherius-core/aetherius/internal/state"
	"github.com/aetherius-core/aetherius/pkg/logger"
)

// ComponentDispatcher is the narrow surface the daemon needs to route
// "$name args" lines to a running web component and "!component <verb>"
// lifecycle commands to the loader. internal/components' Loader implements
// it; the daemon depends only on this interface to avoid importing
// components directly.
type ComponentDispatcher interface {
	Dispatch(ctx context.Context, name, args string) (string, error)
	List() []arch.ComponentSummary
	Info(name string) (arch.ComponentSummary, bool)
	Load(ctx context.Context, name string) error
	Enable(ctx context.Context, name string) error
	Disable(ctx context.Context, name string) error
	Unload(ctx context.Context, name string) error
	Reload(ctx context.Context, name string) error
}

// Config controls daemon construction.
type Config struct {
	SocketPath string
	StatePath  string
}

// Daemon is the persistent console daemon: it owns the supervisor, the
// event bus, the command queue, and serves any number of client sessions
// over a Unix domain socket until told to quit.
type Daemon struct {
	cfg Config
	log logger.Logger
	bus *events.Bus
	sup arch.ProcessSupervisor

	components ComponentDispatcher

	listener net.Listener
	store    *state.Store

	mu       sync.Mutex
	sessions map[string]*Session

	quit chan struct{}
}

// New builds a Daemon. components may be nil until a component loader is
// wired in with SetComponentDispatcher.
func New(cfg Config, log logger.Logger, bus *events.Bus, sup arch.ProcessSupervisor) *Daemon {
	return &Daemon{
		cfg:      cfg,
		log:      log,
		bus:      bus,
		sup:      sup,
		store:    state.NewStore(cfg.StatePath),
		sessions: make(map[string]*Session),
		quit:     make(chan struct{}),
	}
}

// SetComponentDispatcher wires the "$" command route once a component
// loader exists.
func (d *Daemon) SetComponentDispatcher(cd ComponentDispatcher) {
	d.components = cd
}

// Serve listens on the configured socket path and accepts sessions until
// ctx is cancelled or Quit is called. A stale socket from a prior,
// uncleanly terminated daemon is removed before listening.
func (d *Daemon) Serve(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(d.cfg.SocketPath), 0o755); err != nil {
		return fmt.Errorf("daemon: mkdir socket dir: %w", err)
	}
	if _, err := os.Stat(d.cfg.SocketPath); err == nil {
		_ = os.Remove(d.cfg.SocketPath)
	}

	ln, err := net.Listen("unix", d.cfg.SocketPath)
	if err != nil {
		return fmt.Errorf("daemon: listen on %s: %w", d.cfg.SocketPath, err)
	}
	d.listener = ln

	d.bus.Register("*", events.PriorityLowest, true, d.broadcastEvent)

	go func() {
		select {
		case <-ctx.Done():
			d.Shutdown()
		case <-d.quit:
			_ = d.sup.Stop(ctx)
			d.Shutdown()
		}
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-d.quit:
				return nil
			default:
			}
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("daemon: accept: %w", err)
		}
		go d.handleConn(ctx, conn)
	}
}

func (d *Daemon) broadcastEvent(_ context.Context, ev events.Event) error {
	d.mu.Lock()
	sessions := make([]*Session, 0, len(d.sessions))
	for _, s := range d.sessions {
		sessions = append(sessions, s)
	}
	d.mu.Unlock()

	env := eventEnvelope(ev)
	for _, s := range sessions {
		if !s.Wants(ev.EventType()) && !s.Wants("*") {
			continue
		}
		s.Send(env)
	}
	return nil
}

// eventEnvelope builds the frame a bus event is pushed to sessions as. Log
// lines get the spec's documented "log" frame (content/is_error); every
// other event gets the "event" frame, an addition beyond the three
// documented shapes carrying state transitions, crashes and component
// lifecycle notifications (see SPEC_FULL.md §9).
func eventEnvelope(ev events.Event) Envelope {
	if ll, ok := ev.(*events.LogLineEvent); ok {
		return Envelope{
			Type:    MsgLog,
			Content: ll.Raw,
			IsError: strings.EqualFold(ll.Level, "ERROR") || strings.EqualFold(ll.Level, "SEVERE"),
		}
	}
	return Envelope{
		Type:      MsgEvent,
		EventType: ev.EventType(),
		Fields:    ev.Fields(),
		Timestamp: ev.Timestamp(),
	}
}

func (d *Daemon) handleConn(ctx context.Context, conn net.Conn) {
	sess := newSession(conn, d.log)
	d.mu.Lock()
	d.sessions[sess.ID] = sess
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		delete(d.sessions, sess.ID)
		d.mu.Unlock()
		sess.Close()
	}()

	d.readLoop(ctx, sess)
}

// Quit requests an orderly shutdown, equivalent to receiving a "!quit"
// command or SIGTERM.
func (d *Daemon) Quit() {
	select {
	case <-d.quit:
	default:
		close(d.quit)
	}
}

// Shutdown closes the listener and every session, and removes the socket
// and persisted-state files so a later Serve doesn't find stale artifacts.
func (d *Daemon) Shutdown() {
	if d.listener != nil {
		d.listener.Close()
	}
	d.mu.Lock()
	for _, s := range d.sessions {
		s.Close()
	}
	d.mu.Unlock()
	_ = os.Remove(d.cfg.SocketPath)
	_ = d.store.Clear()
}
