package components

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

type fakeBus struct{ fired []interface{} }

func (f *fakeBus) Fire(_ context.Context, ev interface{}) interface{} {
	f.fired = append(f.fired, ev)
	return ev
}

type fakeSup struct{}

func (fakeSup) SendCommand(context.Context, string) error { return nil }
func (fakeSup) ExecuteWithResult(context.Context, string, time.Duration) (arch.CommandResult, error) {
	return arch.CommandResult{Success: true}, nil
}
func (fakeSup) State() string                { return "running" }
func (fakeSup) Start(context.Context) error   { return nil }
func (fakeSup) Stop(context.Context) error    { return nil }
func (fakeSup) Restart(context.Context) error { return nil }

type recordingComponent struct {
	loaded, enabled, disabled, unloaded bool
}

func (c *recordingComponent) OnLoad(context.Context, arch.ComponentHandle) error { c.loaded = true; return nil }
func (c *recordingComponent) OnEnable(context.Context) error                     { c.enabled = true; return nil }
func (c *recordingComponent) OnDisable(context.Context) error                    { c.disabled = true; return nil }
func (c *recordingComponent) OnUnload(context.Context) error                     { c.unloaded = true; return nil }

func writeManifest(t *testing.T, root, name, body string) {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "component.yaml"), []byte(body), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
}

func TestLoaderScanOrdersByDependencyAndLoadOrder(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "economy", "name: economy\nload_order: 10\ndepends: [core]\n")
	writeManifest(t, root, "core", "name: core\nload_order: 0\n")
	writeManifest(t, root, "shop", "name: shop\nload_order: 5\ndepends: [economy]\n")

	l := New(root, &fakeBus{}, fakeSup{}, logger.Nop())
	require.NoError(t, l.Scan())

	assert.Equal(t, []string{"core", "economy", "shop"}, l.order)
}

func TestLoaderRejectsCycle(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "a", "name: a\ndepends: [b]\n")
	writeManifest(t, root, "b", "name: b\ndepends: [a]\n")

	l := New(root, &fakeBus{}, fakeSup{}, logger.Nop())
	assert.Error(t, l.Scan(), "expected cycle detection error")
}

func TestLoaderLoadEnableDisableUnloadLifecycle(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "core", "name: core\n")
	Register("core", func() Component { return &recordingComponent{} })

	l := New(root, &fakeBus{}, fakeSup{}, logger.Nop())
	require.NoError(t, l.Scan())
	ctx := context.Background()

	require.NoError(t, l.Load(ctx, "core"))
	assert.True(t, l.IsLoaded("core"))

	require.NoError(t, l.Enable(ctx, "core"))
	assert.True(t, l.IsEnabled("core"))

	require.NoError(t, l.Disable(ctx, "core"))
	require.NoError(t, l.Unload(ctx, "core"))

	info, ok := l.Info("core")
	require.True(t, ok)
	assert.Equal(t, "unloaded", info.State)
}

func TestLoaderMissingHardDependencyFails(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "shop", "name: shop\ndepends: [nonexistent]\n")

	l := New(root, &fakeBus{}, fakeSup{}, logger.Nop())
	assert.Error(t, l.Scan(), "expected error for missing hard dependency")
}
