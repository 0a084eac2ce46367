package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aetherius-core/aetherius/internal/arch"
	"github.com/aetherius-core/aetherius/pkg/logger"
)

type fakeSupervisor struct {
	lastCommand string
	result      arch.CommandResult
	err         error
}

func (f *fakeSupervisor) SendCommand(_ context.Context, text string) error {
	f.lastCommand = text
	return nil
}

func (f *fakeSupervisor) ExecuteWithResult(_ context.Context, text string, _ time.Duration) (arch.CommandResult, error) {
	f.lastCommand = text
	return f.result, f.err
}

func (f *fakeSupervisor) State() string                { return "running" }
func (f *fakeSupervisor) Start(context.Context) error   { return nil }
func (f *fakeSupervisor) Stop(context.Context) error    { return nil }
func (f *fakeSupervisor) Restart(context.Context) error { return nil }

func TestSubmitProcessAwaitRoundTrip(t *testing.T) {
	dir := t.TempDir()
	sup := &fakeSupervisor{result: arch.CommandResult{Success: true, Output: "there are 3 players online"}}
	q := New(dir, sup, logger.Nop())
	ctx := context.Background()

	id, err := q.Submit(ctx, "list", 2*time.Second)
	require.NoError(t, err)

	require.NoError(t, q.ProcessOnce(ctx))
	assert.Equal(t, "list", sup.lastCommand)

	resp, err := q.AwaitCompletion(ctx, id, time.Second)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "there are 3 players online", resp.Output)
}

func TestProcessOnceRemovesPendingFile(t *testing.T) {
	dir := t.TempDir()
	sup := &fakeSupervisor{result: arch.CommandResult{Success: true}}
	q := New(dir, sup, logger.Nop())
	ctx := context.Background()

	id, err := q.Submit(ctx, "say hi", time.Second)
	require.NoError(t, err)
	require.NoError(t, q.ProcessOnce(ctx))

	pendingPath := filepath.Join(dir, "pending", id+".json")
	_, err = q.pendingRequests()
	require.NoError(t, err)
	assert.False(t, fileExists(pendingPath), "expected pending file removed after processing")
}

func TestAwaitCompletionTimesOut(t *testing.T) {
	dir := t.TempDir()
	sup := &fakeSupervisor{}
	q := New(dir, sup, logger.Nop())

	_, err := q.AwaitCompletion(context.Background(), "never-completed", 150*time.Millisecond)
	assert.Error(t, err)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
