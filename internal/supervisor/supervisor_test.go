package supervisor

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aetherius-core/aetherius/internal/events"
	"github.com/aetherius-core/aetherius/pkg/logger"
)

func newTestSupervisor(t *testing.T, cmd []string) (*Supervisor, *events.Bus) {
	t.Helper()
	bus := events.New(logger.Nop())
	cfg := Config{
		Command:         cmd,
		Dir:             t.TempDir(),
		GracefulTimeout: 2 * time.Second,
		CaptureWindow:   300 * time.Millisecond,
		StatePath:       filepath.Join(t.TempDir(), "state.json"),
	}
	return New(cfg, logger.Nop(), bus), bus
}

func TestStartRunStop(t *testing.T) {
	sup, _ := newTestSupervisor(t, []string{"/bin/sh", "-c", "while true; do sleep 0.05; done"})

	ctx := context.Background()
	require.NoError(t, sup.Start(ctx))
	assert.Equal(t, StateRunning, sup.CurrentState())

	require.NoError(t, sup.Stop(ctx))
	assert.Equal(t, StateStopped, sup.CurrentState())
}

func TestStartTwiceFails(t *testing.T) {
	sup, _ := newTestSupervisor(t, []string{"/bin/sh", "-c", "while true; do sleep 0.05; done"})
	ctx := context.Background()

	require.NoError(t, sup.Start(ctx))
	defer sup.Stop(ctx)

	assert.ErrorIs(t, sup.Start(ctx), ErrAlreadyRunning)
}

func TestSendCommandRequiresRunning(t *testing.T) {
	sup, _ := newTestSupervisor(t, []string{"/bin/sh", "-c", "sleep 1"})
	assert.ErrorIs(t, sup.SendCommand(context.Background(), "say hi"), ErrNotRunning)
}

func TestCrashFiresServerCrashedEvent(t *testing.T) {
	sup, bus := newTestSupervisor(t, []string{"/bin/sh", "-c", "exit 1"})

	crashed := make(chan *events.ServerCrashedEvent, 1)
	bus.Register("ServerCrashedEvent", events.PriorityNormal, false, func(_ context.Context, ev events.Event) error {
		if c, ok := ev.(*events.ServerCrashedEvent); ok {
			crashed <- c
		}
		return nil
	})

	require.NoError(t, sup.Start(context.Background()))

	select {
	case c := <-crashed:
		assert.Equal(t, 1, c.ExitCode)
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for ServerCrashedEvent")
	}
}

func TestExecuteWithResultCapturesOutput(t *testing.T) {
	sup, _ := newTestSupervisor(t, []string{"/bin/sh", "-c", "while read line; do echo \"got: $line\"; done"})
	ctx := context.Background()
	require.NoError(t, sup.Start(ctx))
	defer sup.Stop(ctx)

	res, err := sup.ExecuteWithResult(ctx, "hello", 500*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "got: hello", res.Output)
}
