package events

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aetherius-core/aetherius/pkg/logger"
)

// Listener is the callback signature every registration uses. It is called
// synchronously on the goroutine that invoked Fire; listeners that need to
// do blocking work should hand off to their own goroutine internally.
type Listener func(ctx context.Context, ev Event) error

type registration struct {
	id              uint64
	eventType       string
	priority        Priority
	ignoreCancelled bool
	seq             uint64
	callback        Listener
}

// Handle lets a caller unregister a listener it previously registered.
type Handle struct {
	bus *Bus
	id  uint64
}

// Unregister removes the listener. Safe to call more than once.
func (h Handle) Unregister() {
	if h.bus == nil {
		return
	}
	h.bus.unregister(h.id)
}

// TypeStats tracks per-event-type counters used by Stats.
type TypeStats struct {
	Count        int64
	TotalTime    time.Duration
	MaxTime      time.Duration
	LastFired    time.Time
}

// Stats is a point-in-time snapshot of bus activity.
type Stats struct {
	TotalFired int64
	ByType     map[string]TypeStats
	SlowEvents []SlowEvent
}

// SlowEvent records a single Fire call whose total dispatch time exceeded
// the bus's slow-event threshold.
type SlowEvent struct {
	EventType string
	Duration  time.Duration
	At        time.Time
}

// WebNotifier is invoked after an event of a real-time-subscribed type has
// finished its normal dispatch, with the set of subscriber client ids and the
// event's serialized fields. internal/webnotify supplies the production
// implementation; it is injected here so the bus has no import on it.
type WebNotifier func(subscribers []string, eventType string, fields map[string]interface{})

// Filter can veto an event before any listener sees it. Returning false
// drops the event silently: it is not counted in Stats, not added to
// history and not dispatched to listeners.
type Filter func(ev Event) bool

const (
	defaultHistorySize   = 1000
	defaultSlowThreshold = time.Second
)

// Bus is the concrete, concurrency-safe event dispatcher. The zero value is
// not usable; construct with New.
type Bus struct {
	mu  sync.Mutex
	log logger.Logger

	nextID  uint64
	nextSeq uint64

	listeners map[string][]*registration // keyed by event type, "*" = global

	history     []historyEntry
	historyHead int
	historySize int
	historyFull bool

	stats          Stats
	slowThreshold  time.Duration

	filters []Filter

	notifier    WebNotifier
	realtime    map[string]bool
	subscribers map[string][]string // eventType -> client ids
}

type historyEntry struct {
	eventType string
	at        time.Time
	fields    map[string]interface{}
	cancelled bool
}

// Option configures a Bus at construction time.
type Option func(*Bus)

// WithHistorySize overrides the default 1000-entry ring buffer size.
func WithHistorySize(n int) Option {
	return func(b *Bus) { b.historySize = n }
}

// WithSlowThreshold overrides the default 1s slow-event threshold.
func WithSlowThreshold(d time.Duration) Option {
	return func(b *Bus) { b.slowThreshold = d }
}

// New builds an empty Bus.
func New(log logger.Logger, opts ...Option) *Bus {
	b := &Bus{
		log:           log,
		listeners:     make(map[string][]*registration),
		historySize:   defaultHistorySize,
		slowThreshold: defaultSlowThreshold,
		stats:         Stats{ByType: make(map[string]TypeStats)},
		realtime:      make(map[string]bool),
		subscribers:   make(map[string][]string),
	}
	for _, o := range opts {
		o(b)
	}
	b.history = make([]historyEntry, 0, b.historySize)
	return b
}

// Register adds a listener for the given event type ("*" for every event).
// Listeners fire in descending priority order; ties preserve registration
// order. ignoreCancelled, when true, means this listener still runs even
// after an earlier listener cancelled the event.
func (b *Bus) Register(eventType string, priority Priority, ignoreCancelled bool, cb Listener) Handle {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	b.nextSeq++
	r := &registration{
		id:              b.nextID,
		eventType:       eventType,
		priority:        priority,
		ignoreCancelled: ignoreCancelled,
		seq:             b.nextSeq,
		callback:        cb,
	}
	b.listeners[eventType] = append(b.listeners[eventType], r)
	return Handle{bus: b, id: r.id}
}

func (b *Bus) unregister(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for t, regs := range b.listeners {
		for i, r := range regs {
			if r.id == id {
				b.listeners[t] = append(regs[:i], regs[i+1:]...)
				return
			}
		}
	}
}

// AddFilter registers a pre-dispatch filter. Filters run in registration
// order; the first one to return false drops the event.
func (b *Bus) AddFilter(f Filter) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.filters = append(b.filters, f)
}

// SetWebNotifier wires the push-to-web-clients hook.
func (b *Bus) SetWebNotifier(n WebNotifier) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.notifier = n
}

// SubscribeRealtime marks eventType as one that should be pushed to clientID
// via the web notifier whenever it fires.
func (b *Bus) SubscribeRealtime(clientID, eventType string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.realtime[eventType] = true
	for _, id := range b.subscribers[eventType] {
		if id == clientID {
			return
		}
	}
	b.subscribers[eventType] = append(b.subscribers[eventType], clientID)
}

// UnsubscribeRealtime removes clientID from eventType's push list.
func (b *Bus) UnsubscribeRealtime(clientID, eventType string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subscribers[eventType]
	for i, id := range subs {
		if id == clientID {
			b.subscribers[eventType] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
}

// candidates returns the listeners that should see ev, in dispatch order:
// the concrete type's listeners, then each ancestor's, then global
// listeners, all merged and sorted by priority descending with ties broken
// by registration order.
func (b *Bus) candidates(ev Event) []*registration {
	types := append([]string{ev.EventType()}, ev.Ancestors()...)
	types = append(types, "*")

	var all []*registration
	seen := make(map[uint64]bool)
	for _, t := range types {
		for _, r := range b.listeners[t] {
			if seen[r.id] {
				continue
			}
			seen[r.id] = true
			all = append(all, r)
		}
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].priority != all[j].priority {
			return all[i].priority > all[j].priority
		}
		return all[i].seq < all[j].seq
	})
	return all
}

// Fire dispatches ev to every registered listener in priority order. Once a
// listener cancels the event, every later listener is skipped unless it has
// ignoreCancelled set. It returns the same event, mutated in place by any
// listener that cancelled it, so callers can inspect Cancelled() after the
// call.
func (b *Bus) Fire(ctx context.Context, ev Event) Event {
	b.mu.Lock()
	for _, f := range b.filters {
		if !f(ev) {
			b.mu.Unlock()
			return ev
		}
	}
	candidates := b.candidates(ev)
	b.mu.Unlock()

	start := time.Now()
	for _, r := range candidates {
		if ev.Cancelled() && !r.ignoreCancelled {
			continue
		}
		b.invoke(ctx, r, ev)
	}
	elapsed := time.Since(start)

	b.recordStats(ev, elapsed)
	b.recordHistory(ev)
	b.pushRealtime(ev)

	return ev
}

func (b *Bus) invoke(ctx context.Context, r *registration, ev Event) {
	defer func() {
		if rec := recover(); rec != nil {
			b.log.Error("event listener panicked", "event_type", ev.EventType(), "panic", fmt.Sprint(rec))
		}
	}()
	if err := r.callback(ctx, ev); err != nil {
		b.log.Warn("event listener returned error", "event_type", ev.EventType(), "error", err.Error())
	}
}

func (b *Bus) recordStats(ev Event, elapsed time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stats.TotalFired++
	ts := b.stats.ByType[ev.EventType()]
	ts.Count++
	ts.TotalTime += elapsed
	if elapsed > ts.MaxTime {
		ts.MaxTime = elapsed
	}
	ts.LastFired = ev.Timestamp()
	b.stats.ByType[ev.EventType()] = ts

	if elapsed >= b.slowThreshold {
		b.stats.SlowEvents = append(b.stats.SlowEvents, SlowEvent{
			EventType: ev.EventType(),
			Duration:  elapsed,
			At:        ev.Timestamp(),
		})
		if len(b.stats.SlowEvents) > 100 {
			b.stats.SlowEvents = b.stats.SlowEvents[len(b.stats.SlowEvents)-100:]
		}
	}
}

func (b *Bus) recordHistory(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry := historyEntry{
		eventType: ev.EventType(),
		at:        ev.Timestamp(),
		fields:    ev.Fields(),
		cancelled: ev.Cancelled(),
	}
	if len(b.history) < b.historySize {
		b.history = append(b.history, entry)
		return
	}
	b.history[b.historyHead] = entry
	b.historyHead = (b.historyHead + 1) % b.historySize
	b.historyFull = true
}

func (b *Bus) pushRealtime(ev Event) {
	b.mu.Lock()
	if !b.realtime[ev.EventType()] || b.notifier == nil {
		b.mu.Unlock()
		return
	}
	subs := append([]string(nil), b.subscribers[ev.EventType()]...)
	notifier := b.notifier
	fields := ev.Fields()
	b.mu.Unlock()

	if len(subs) > 0 {
		notifier(subs, ev.EventType(), fields)
	}
}

// History returns the most recent events, oldest first, newest last.
func (b *Bus) History() []map[string]interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()

	var ordered []historyEntry
	if b.historyFull {
		ordered = append(ordered, b.history[b.historyHead:]...)
		ordered = append(ordered, b.history[:b.historyHead]...)
	} else {
		ordered = b.history
	}

	out := make([]map[string]interface{}, 0, len(ordered))
	for _, e := range ordered {
		out = append(out, map[string]interface{}{
			"event_type": e.eventType,
			"timestamp":  e.at,
			"cancelled":  e.cancelled,
			"fields":     e.fields,
		})
	}
	return out
}

// Snapshot returns a copy of the current stats.
func (b *Bus) Snapshot() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	byType := make(map[string]TypeStats, len(b.stats.ByType))
	for k, v := range b.stats.ByType {
		byType[k] = v
	}
	return Stats{
		TotalFired: b.stats.TotalFired,
		ByType:     byType,
		SlowEvents: append([]SlowEvent(nil), b.stats.SlowEvents...),
	}
}
