package supervisor

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/aetherius-core/aetherius/internal/events"
)

// adoptPollInterval is how often an adopted process's liveness is polled,
// since there is no os/exec child to cmd.Wait() on for a process this
// supervisor did not itself spawn.
const adoptPollInterval = 3 * time.Second

// Adopt looks for persisted state left by a previous supervisor instance
// and, if the recorded PID still looks alive and still looks like the
// configured command, reconciles the supervisor into StateRunning against
// it instead of assuming the process died along with the last daemon.
// Stale or mismatched state is cleared and Adopt reports false so the
// caller can Start a fresh process instead.
func (s *Supervisor) Adopt(ctx context.Context) (bool, error) {
	if s.store == nil {
		return false, nil
	}
	ps, err := s.store.Load()
	if err != nil {
		return false, err
	}
	if ps == nil {
		return false, nil
	}

	if !s.processLooksLikeOurs(ps.PID) {
		s.log.Warn("persisted process state is stale, discarding", "pid", ps.PID)
		_ = s.store.Clear()
		return false, nil
	}

	s.mu.Lock()
	s.st = StateRunning
	s.cmd = nil
	s.stdin = nil // adopted: no pipe to this process's stdin, by design
	s.startedAt = ps.StartedAt
	s.restartCount = ps.RestartCount
	s.stopRequested = false
	s.exited = make(chan struct{})
	s.mu.Unlock()

	s.log.Info("adopted running server process from persisted state", "pid", ps.PID)
	s.bus.Fire(ctx, &events.ServerStateChangedEvent{
		Base:     events.NewBase(time.Now()),
		OldState: StateStopped.String(),
		NewState: StateRunning.String(),
	})

	go s.watchAdopted(ctx, ps.PID)
	return true, nil
}

// processLooksLikeOurs reports whether pid is alive and its executable
// name matches the configured command, mirroring the original's
// "still a java process" sanity check before trusting a persisted PID
// generalized from "java" specifically to whatever command this
// supervisor is configured to run.
func (s *Supervisor) processLooksLikeOurs(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		return false
	}
	alive, err := proc.IsRunning()
	if err != nil || !alive {
		return false
	}
	if len(s.cfg.Command) == 0 {
		return true
	}
	name, err := proc.Name()
	if err != nil {
		return true // can't confirm, but the PID is alive and recorded as ours
	}
	want := strings.ToLower(filepath.Base(s.cfg.Command[0]))
	return want == "" || strings.Contains(strings.ToLower(name), want) || strings.Contains(want, strings.ToLower(name))
}

// watchAdopted polls an adopted process's liveness, since this supervisor
// never spawned it and so has no os/exec.Cmd to Wait() on. Once the
// process disappears it fires ServerStoppedEvent (adoption gives us no way
// to distinguish a clean stop from a crash, so it is reported as a stop)
// and clears persisted state.
func (s *Supervisor) watchAdopted(ctx context.Context, pid int) {
	ticker := time.NewTicker(adoptPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		proc, err := process.NewProcess(int32(pid))
		alive := err == nil
		if alive {
			alive, err = proc.IsRunning()
			alive = alive && err == nil
		}
		if alive {
			continue
		}

		s.mu.Lock()
		if s.cmd != nil {
			// Start() has since taken over (Restart, or a fresh spawn);
			// this goroutine's job is done.
			s.mu.Unlock()
			return
		}
		startedAt := s.startedAt
		exited := s.exited
		s.mu.Unlock()

		close(exited)
		s.setState(ctx, StateStopped)
		s.bus.Fire(ctx, &events.ServerStoppedEvent{
			Base:          events.NewBase(time.Now()),
			ExitCode:      0,
			UptimeSeconds: time.Since(startedAt).Seconds(),
		})
		if s.store != nil {
			_ = s.store.Clear()
		}
		return
	}
}
