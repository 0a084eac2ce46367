package logparser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aetherius-core/aetherius/internal/events"
)

type fakeBus struct {
	fired []events.Event
}

func (f *fakeBus) Fire(_ context.Context, ev events.Event) events.Event {
	f.fired = append(f.fired, ev)
	return ev
}

func TestParseLinePlayerJoinPaper(t *testing.T) {
	bus := &fakeBus{}
	p := New(bus)

	p.ParseLine(context.Background(), "[12:00:00] [Server thread/INFO]: Steve joined the game")

	require.Len(t, bus.fired, 2, "expected LogLineEvent + PlayerJoinEvent")
	_, ok := bus.fired[0].(*events.LogLineEvent)
	require.True(t, ok, "expected first fired event to be LogLineEvent, got %T", bus.fired[0])

	join, ok := bus.fired[1].(*events.PlayerJoinEvent)
	require.True(t, ok, "expected second fired event to be PlayerJoinEvent, got %T", bus.fired[1])
	assert.Equal(t, "Steve", join.PlayerName)
}

func TestParseLinePlayerChat(t *testing.T) {
	bus := &fakeBus{}
	p := New(bus)

	p.ParseLine(context.Background(), "[12:00:01] [Server thread/INFO]: <Alex> hello world")

	chat, ok := bus.fired[1].(*events.PlayerChatEvent)
	require.True(t, ok, "expected PlayerChatEvent, got %T", bus.fired[1])
	assert.Equal(t, "Alex", chat.PlayerName)
	assert.Equal(t, "hello world", chat.Message)
}

func TestParseLineServerStarted(t *testing.T) {
	bus := &fakeBus{}
	p := New(bus)

	p.ParseLine(context.Background(), `[12:00:02] [Server thread/INFO]: Done (23.456s)! For help, type "help"`)

	started, ok := bus.fired[1].(*events.ServerStartedEvent)
	require.True(t, ok, "expected ServerStartedEvent, got %T", bus.fired[1])
	assert.Equal(t, 23.456, started.StartupSeconds)
}

func TestParseLineLagSpikeSeverity(t *testing.T) {
	bus := &fakeBus{}
	p := New(bus)

	p.ParseLine(context.Background(), "[12:00:03] [Server thread/WARN]: Can't keep up! Is the server overloaded? Running 6500ms or 130 ticks behind")

	lag, ok := bus.fired[1].(*events.LagSpikeEvent)
	require.True(t, ok, "expected LagSpikeEvent, got %T", bus.fired[1])
	assert.Equal(t, "critical", lag.Severity)
	assert.Equal(t, 130, lag.TickCount)
}

func TestParseLineUnknownFallsBack(t *testing.T) {
	bus := &fakeBus{}
	p := New(bus)

	p.ParseLine(context.Background(), "[12:00:04] [Server thread/INFO]: some never-seen-before message format")

	unk, ok := bus.fired[1].(*events.UnknownLogEvent)
	require.True(t, ok, "expected UnknownLogEvent for unmatched line, got %T", bus.fired[1])
	assert.NotEmpty(t, unk.AttemptedPatterns)
}

func TestParseLineStripsLog4jPrefix(t *testing.T) {
	bus := &fakeBus{}
	p := New(bus)

	p.ParseLine(context.Background(), "[12:00:05] [Server thread/INFO]: Bob left the game")

	line, ok := bus.fired[0].(*events.LogLineEvent)
	require.True(t, ok, "expected LogLineEvent, got %T", bus.fired[0])
	assert.Equal(t, "Bob left the game", line.Message)
	assert.Equal(t, "INFO", line.Level)
}
