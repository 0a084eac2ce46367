package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aetherius-core/aetherius/pkg/logger"
)

func newTestBus() *Bus {
	return New(logger.Nop())
}

func TestFirePriorityOrdering(t *testing.T) {
	bus := newTestBus()
	var order []string

	bus.Register("PlayerJoinEvent", PriorityLow, false, func(_ context.Context, _ Event) error {
		order = append(order, "low")
		return nil
	})
	bus.Register("PlayerJoinEvent", PriorityHighest, false, func(_ context.Context, _ Event) error {
		order = append(order, "highest")
		return nil
	})
	bus.Register("PlayerJoinEvent", PriorityNormal, false, func(_ context.Context, _ Event) error {
		order = append(order, "normal-1")
		return nil
	})
	bus.Register("PlayerJoinEvent", PriorityNormal, false, func(_ context.Context, _ Event) error {
		order = append(order, "normal-2")
		return nil
	})

	ev := &PlayerJoinEvent{Base: NewBase(time.Now()), PlayerName: "Steve"}
	bus.Fire(context.Background(), ev)

	assert.Equal(t, []string{"highest", "normal-1", "normal-2", "low"}, order)
}

func TestFireCancellationStopsDispatch(t *testing.T) {
	bus := newTestBus()
	var calls []string

	bus.Register("PlayerChatEvent", PriorityHighest, false, func(_ context.Context, ev Event) error {
		calls = append(calls, "first")
		ev.SetCancelled(true)
		return nil
	})
	bus.Register("PlayerChatEvent", PriorityNormal, false, func(_ context.Context, _ Event) error {
		calls = append(calls, "second")
		return nil
	})
	bus.Register("PlayerChatEvent", PriorityLow, true, func(_ context.Context, _ Event) error {
		calls = append(calls, "third-ignores-cancel")
		return nil
	})

	ev := &PlayerChatEvent{Base: NewBase(time.Now()), PlayerName: "Alex", Message: "hi"}
	fired := bus.Fire(context.Background(), ev)

	assert.True(t, fired.Cancelled())
	assert.Equal(t, []string{"first", "third-ignores-cancel"}, calls)
}

func TestFireAncestorFanOut(t *testing.T) {
	bus := newTestBus()
	var sawPlayerEvent, sawGlobal bool

	bus.Register("PlayerEvent", PriorityNormal, false, func(_ context.Context, ev Event) error {
		require.Equal(t, "PlayerLeaveEvent", ev.EventType())
		sawPlayerEvent = true
		return nil
	})
	bus.Register("*", PriorityNormal, false, func(_ context.Context, _ Event) error {
		sawGlobal = true
		return nil
	})

	ev := &PlayerLeaveEvent{Base: NewBase(time.Now()), PlayerName: "Notch"}
	bus.Fire(context.Background(), ev)

	assert.True(t, sawPlayerEvent, "expected PlayerEvent-registered listener to fire for PlayerLeaveEvent")
	assert.True(t, sawGlobal, "expected global listener to fire")
}

func TestHistoryRingBuffer(t *testing.T) {
	bus := New(logger.Nop(), WithHistorySize(3))

	for i := 0; i < 5; i++ {
		ev := &PlayerLeaveEvent{Base: NewBase(time.Now()), PlayerName: "p"}
		bus.Fire(context.Background(), ev)
	}

	assert.Len(t, bus.History(), 3)
}

func TestListenerPanicDoesNotAbortDispatch(t *testing.T) {
	bus := newTestBus()
	var secondRan bool

	bus.Register("PlayerJoinEvent", PriorityHighest, false, func(_ context.Context, _ Event) error {
		panic("boom")
	})
	bus.Register("PlayerJoinEvent", PriorityNormal, false, func(_ context.Context, _ Event) error {
		secondRan = true
		return nil
	})

	ev := &PlayerJoinEvent{Base: NewBase(time.Now()), PlayerName: "Steve"}
	bus.Fire(context.Background(), ev)

	assert.True(t, secondRan, "expected second listener to run despite first panicking")
}

func TestUnregisterStopsFutureDispatch(t *testing.T) {
	bus := newTestBus()
	var count int

	h := bus.Register("PlayerJoinEvent", PriorityNormal, false, func(_ context.Context, _ Event) error {
		count++
		return nil
	})

	ev := &PlayerJoinEvent{Base: NewBase(time.Now()), PlayerName: "Steve"}
	bus.Fire(context.Background(), ev)
	h.Unregister()
	bus.Fire(context.Background(), ev)

	assert.Equal(t, 1, count)
}

func TestFilterDropsEvent(t *testing.T) {
	bus := newTestBus()
	var called bool
	bus.AddFilter(func(ev Event) bool {
		return ev.EventType() != "PlayerChatEvent"
	})
	bus.Register("PlayerChatEvent", PriorityNormal, false, func(_ context.Context, _ Event) error {
		called = true
		return nil
	})

	ev := &PlayerChatEvent{Base: NewBase(time.Now()), PlayerName: "Alex", Message: "spam"}
	bus.Fire(context.Background(), ev)

	assert.False(t, called, "expected filtered event to never reach listener")
	assert.Empty(t, bus.History(), "expected filtered event to be excluded from history")
}

func TestRealtimePushNotifiesSubscribers(t *testing.T) {
	bus := newTestBus()
	var gotSubs []string
	var gotType string

	bus.SetWebNotifier(func(subs []string, eventType string, _ map[string]interface{}) {
		gotSubs = subs
		gotType = eventType
	})
	bus.SubscribeRealtime("client-1", "PlayerJoinEvent")

	ev := &PlayerJoinEvent{Base: NewBase(time.Now()), PlayerName: "Steve"}
	bus.Fire(context.Background(), ev)

	require.Equal(t, "PlayerJoinEvent", gotType)
	assert.Equal(t, []string{"client-1"}, gotSubs)
}

func TestSnapshotTracksCounts(t *testing.T) {
	bus := newTestBus()
	ev := &PlayerJoinEvent{Base: NewBase(time.Now()), PlayerName: "Steve"}
	bus.Fire(context.Background(), ev)
	bus.Fire(context.Background(), ev)

	snap := bus.Snapshot()
	assert.Equal(t, int64(2), snap.TotalFired)
	assert.Equal(t, int64(2), snap.ByType["PlayerJoinEvent"].Count)
}
