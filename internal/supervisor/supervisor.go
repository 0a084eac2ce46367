// Package supervisor owns the lifecycle of the supervised game server
// process: spawning it in its own process group, pumping its stdout/stderr
// through the log parser, detecting crashes vs. requested shutdowns, and
// exposing the three ways a command can reach its stdin (direct write,
// synchronous capture, and — via internal/pipeline — the cross-process and
// named-pipe tiers).
package supervisor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/aetherius-core/aetherius/internal/events"
	"github.com/aetherius-core/aetherius/internal/logparser"
	"github.com/aetherius-core/aetherius/internal/state"
	"github.com/aetherius-core/aetherius/pkg/logger"
)

// State is the supervised process's lifecycle state.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
	StateCrashed
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateCrashed:
		return "crashed"
	default:
		return "unknown"
	}
}

var (
	// ErrAlreadyRunning is returned by Start when the process is not stopped.
	ErrAlreadyRunning = errors.New("supervisor: process already starting or running")
	// ErrNotRunning is returned by operations that require a live process.
	ErrNotRunning = errors.New("supervisor: process is not running")
)

// Config controls how the supervised process is spawned and stopped.
type Config struct {
	Command         []string
	Dir             string
	Env             []string
	GracefulTimeout time.Duration // wait after SIGTERM before SIGKILL
	CaptureWindow   time.Duration // default synchronous-capture window
	AutoRestart     bool
	MaxRestarts     int
	RestartBackoff  time.Duration
	StatePath       string
}

func (c Config) withDefaults() Config {
	if c.GracefulTimeout <= 0 {
		c.GracefulTimeout = 30 * time.Second
	}
	if c.CaptureWindow <= 0 {
		c.CaptureWindow = 2 * time.Second
	}
	if c.RestartBackoff <= 0 {
		c.RestartBackoff = 5 * time.Second
	}
	return c
}

// Bus is the narrow surface the supervisor needs from the event bus.
type Bus interface {
	Fire(ctx context.Context, ev events.Event) events.Event
}

// Supervisor manages a single child process across its full lifecycle.
type Supervisor struct {
	cfg   Config
	log   logger.Logger
	bus   Bus
	store *state.Store
	parser *logparser.Parser

	mu           sync.RWMutex
	st           State
	cmd          *exec.Cmd
	stdin        io.WriteCloser
	startedAt    time.Time
	restartCount int
	stopRequested bool

	stderrMu   sync.Mutex
	stderrTail []string

	captures   map[string]*captureSession
	capturesMu sync.Mutex

	exited chan struct{}
}

// New builds a Supervisor. bus is typically *events.Bus.
func New(cfg Config, log logger.Logger, bus Bus) *Supervisor {
	cfg = cfg.withDefaults()
	s := &Supervisor{
		cfg:      cfg,
		log:      log,
		bus:      bus,
		captures: make(map[string]*captureSession),
	}
	s.parser = logparser.New(busAdapter{s.bus})
	if cfg.StatePath != "" {
		s.store = state.NewStore(cfg.StatePath)
	}
	return s
}

// busAdapter satisfies logparser.Bus by forwarding to the events.Bus-shaped
// interface the supervisor already holds.
type busAdapter struct{ bus Bus }

func (a busAdapter) Fire(ctx context.Context, ev events.Event) events.Event { return a.bus.Fire(ctx, ev) }

// CurrentState returns the current lifecycle state as the package's typed
// enum, for callers within aetherius that want to switch on it.
func (s *Supervisor) CurrentState() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st
}

// State implements arch.ProcessSupervisor, returning the lifecycle state
// as a string for callers (CLI, console, component handles) that only need
// to display or compare it.
func (s *Supervisor) State() string {
	return s.CurrentState().String()
}

func (s *Supervisor) setState(ctx context.Context, next State) {
	s.mu.Lock()
	prev := s.st
	s.st = next
	s.mu.Unlock()
	if prev == next {
		return
	}
	s.bus.Fire(ctx, &events.ServerStateChangedEvent{
		Base:     events.NewBase(time.Now()),
		OldState: prev.String(),
		NewState: next.String(),
	})
}

// Start spawns the configured command. It returns once the process has
// been spawned (stdin/stdout/stderr wired and pumping); it does not wait
// for the game server's own startup sequence to finish.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.st != StateStopped && s.st != StateCrashed {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.mu.Unlock()

	s.setState(ctx, StateStarting)

	if len(s.cfg.Command) == 0 {
		return fmt.Errorf("supervisor: empty command")
	}
	cmd := exec.Command(s.cfg.Command[0], s.cfg.Command[1:]...)
	cmd.Dir = s.cfg.Dir
	cmd.Env = s.cfg.Env
	cmd.SysProcAttr = procAttr()

	stdin, err := cmd.StdinPipe()
	if err != nil {
		s.setState(ctx, StateStopped)
		return fmt.Errorf("supervisor: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		s.setState(ctx, StateStopped)
		return fmt.Errorf("supervisor: stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		s.setState(ctx, StateStopped)
		return fmt.Errorf("supervisor: stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		s.setState(ctx, StateStopped)
		return fmt.Errorf("supervisor: start: %w", err)
	}

	s.mu.Lock()
	s.cmd = cmd
	s.stdin = stdin
	s.startedAt = time.Now()
	s.stopRequested = false
	s.exited = make(chan struct{})
	s.mu.Unlock()

	go s.pump(ctx, stdout, false)
	go s.pump(ctx, stderr, true)
	go s.monitor(ctx)

	if s.store != nil {
		_ = s.store.Save(&state.ProcessState{
			PID:          cmd.Process.Pid,
			State:        StateRunning.String(),
			StartedAt:    s.startedAt,
			JarPath:      fmt.Sprint(s.cfg.Command),
			WorkingDir:   s.cfg.Dir,
			RestartCount: s.restartCount,
		})
	}

	s.setState(ctx, StateRunning)
	return nil
}

func (s *Supervisor) pump(ctx context.Context, r io.Reader, isStderr bool) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if isStderr {
			s.stderrMu.Lock()
			s.stderrTail = append(s.stderrTail, line)
			if len(s.stderrTail) > 20 {
				s.stderrTail = s.stderrTail[len(s.stderrTail)-20:]
			}
			s.stderrMu.Unlock()
		}
		s.parser.ParseLine(ctx, line)
		s.dispatchToCapture(line)
	}
}

func (s *Supervisor) monitor(ctx context.Context) {
	s.mu.RLock()
	cmd := s.cmd
	exited := s.exited
	s.mu.RUnlock()
	// exited is closed only after the state transition and its event, so a
	// Stop that returns on it observes the final state.
	defer close(exited)

	err := cmd.Wait()

	exitCode := 0
	if exitErr, ok := err.(*exec.ExitError); ok {
		exitCode = exitErr.ExitCode()
	} else if err != nil {
		exitCode = -1
	}

	s.mu.Lock()
	requested := s.stopRequested
	uptime := time.Since(s.startedAt)
	s.mu.Unlock()

	if requested {
		s.setState(ctx, StateStopped)
		s.bus.Fire(ctx, &events.ServerStoppedEvent{
			Base:          events.NewBase(time.Now()),
			ExitCode:      exitCode,
			UptimeSeconds: uptime.Seconds(),
		})
		if s.store != nil {
			_ = s.store.Clear()
		}
		return
	}

	s.stderrMu.Lock()
	lastStderr := joinLines(s.stderrTail)
	s.stderrMu.Unlock()

	s.mu.Lock()
	s.restartCount++
	willRestart := s.cfg.AutoRestart && (s.cfg.MaxRestarts <= 0 || s.restartCount <= s.cfg.MaxRestarts)
	s.mu.Unlock()

	s.setState(ctx, StateCrashed)
	s.bus.Fire(ctx, &events.ServerCrashedEvent{
		Base:        events.NewBase(time.Now()),
		ExitCode:    exitCode,
		LastStderr:  lastStderr,
		WillRestart: willRestart,
	})

	if willRestart {
		s.log.Warn("server crashed, scheduling restart", "exit_code", exitCode, "restart_count", s.restartCount)
		time.AfterFunc(s.cfg.RestartBackoff, func() {
			if err := s.Start(ctx); err != nil {
				s.log.Error("auto-restart failed", "error", err.Error())
			}
		})
	}
}

func joinLines(lines []string) string {
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n"
		}
		out += l
	}
	return out
}

// Stop requests a graceful shutdown: "stop\n" on stdin, then SIGTERM to the
// process group if it hasn't exited within the graceful timeout, then
// SIGKILL if it still hasn't.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.st != StateRunning && s.st != StateStarting {
		s.mu.Unlock()
		return ErrNotRunning
	}
	cmd := s.cmd
	stdin := s.stdin
	exited := s.exited
	s.stopRequested = true
	s.mu.Unlock()

	s.setState(ctx, StateStopping)

	if stdin != nil {
		if _, err := io.WriteString(stdin, "stop\n"); err != nil {
			s.log.Warn("failed to write stop command to stdin, falling back to signal", "error", err.Error())
		}
	}

	select {
	case <-exited:
		return nil
	case <-time.After(s.cfg.GracefulTimeout):
	}

	if err := signalGroup(cmd.Process.Pid, syscall.SIGTERM); err != nil {
		s.log.Warn("failed to send SIGTERM to process group", "error", err.Error())
	}

	select {
	case <-exited:
		return nil
	case <-time.After(s.cfg.GracefulTimeout):
	}

	if err := signalGroup(cmd.Process.Pid, syscall.SIGKILL); err != nil {
		s.log.Warn("failed to send SIGKILL to process group", "error", err.Error())
	}
	<-exited
	return nil
}

// Restart stops (if running) and starts the process again.
func (s *Supervisor) Restart(ctx context.Context) error {
	if cur := s.CurrentState(); cur == StateRunning || cur == StateStarting {
		if err := s.Stop(ctx); err != nil {
			return err
		}
	}
	return s.Start(ctx)
}

// SendCommand writes text followed by a newline to the process's stdin.
// It is the fire-and-forget path; callers wanting the resulting output
// should use ExecuteWithResult instead. A broken pipe means the child is
// gone without us having observed its exit yet, so it promotes the
// supervisor straight to Crashed rather than silently returning an error
// for a process that looks alive everywhere else.
func (s *Supervisor) SendCommand(ctx context.Context, text string) error {
	s.mu.RLock()
	running := s.st == StateRunning
	stdin := s.stdin
	s.mu.RUnlock()
	if !running || stdin == nil {
		return ErrNotRunning
	}
	_, err := io.WriteString(stdin, text+"\n")
	if err != nil {
		s.log.Error("failed to write command to stdin, treating as crash", "error", err.Error())
		s.setState(ctx, StateCrashed)
		s.bus.Fire(ctx, &events.ServerCrashedEvent{
			Base:       events.NewBase(time.Now()),
			ExitCode:   -1,
			LastStderr: err.Error(),
		})
	}
	return err
}
