package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aetherius-core/aetherius/internal/arch"
	"github.com/aetherius-core/aetherius/internal/events"
	"github.com/aetherius-core/aetherius/pkg/logger"
)

type fakeSupervisor struct {
	result arch.CommandResult
}

func (f *fakeSupervisor) SendCommand(_ context.Context, _ string) error { return nil }
func (f *fakeSupervisor) ExecuteWithResult(_ context.Context, _ string, _ time.Duration) (arch.CommandResult, error) {
	return f.result, nil
}
func (f *fakeSupervisor) State() string                { return "running" }
func (f *fakeSupervisor) Start(context.Context) error   { return nil }
func (f *fakeSupervisor) Stop(context.Context) error    { return nil }
func (f *fakeSupervisor) Restart(context.Context) error { return nil }

func startTestDaemon(t *testing.T) (*Daemon, string, context.CancelFunc) {
	t.Helper()
	dir := t.TempDir()
	sockPath := filepath.Join(dir, "aetherius.sock")
	bus := events.New(logger.Nop())
	sup := &fakeSupervisor{result: arch.CommandResult{Success: true, Output: "there are 0 players online"}}
	d := New(Config{SocketPath: sockPath, StatePath: filepath.Join(dir, "state.json")}, logger.Nop(), bus, sup)

	ctx, cancel := context.WithCancel(context.Background())
	go d.Serve(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := net.Dial("unix", sockPath); err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	return d, sockPath, cancel
}

func dialAndRoundTrip(t *testing.T, sockPath, text string) Envelope {
	t.Helper()
	conn, err := net.Dial("unix", sockPath)
	require.NoError(t, err)
	defer conn.Close()

	cmd := Envelope{Type: MsgCommand, ID: "req-1", Command: text}
	data, _ := json.Marshal(cmd)
	_, err = conn.Write(append(data, '\n'))
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	scanner := bufio.NewScanner(conn)
	require.True(t, scanner.Scan(), "expected a response line, scanner err: %v", scanner.Err())

	var env Envelope
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &env))
	return env
}

func TestGameCommandRoundTrip(t *testing.T) {
	_, sockPath, cancel := startTestDaemon(t)
	defer cancel()

	resp := dialAndRoundTrip(t, sockPath, "/list")
	assert.True(t, resp.Success)
	assert.Equal(t, "there are 0 players online", resp.Output)
}

func TestSystemStatusCommand(t *testing.T) {
	_, sockPath, cancel := startTestDaemon(t)
	defer cancel()

	resp := dialAndRoundTrip(t, sockPath, "!status")
	assert.True(t, resp.Success)
	assert.Equal(t, "running", resp.Output)
}

func TestComponentCommandWithoutLoaderFails(t *testing.T) {
	_, sockPath, cancel := startTestDaemon(t)
	defer cancel()

	resp := dialAndRoundTrip(t, sockPath, "$economy balance")
	assert.False(t, resp.Success, "expected failure with no component dispatcher wired")
}
