// Package events implements the priority-ordered, cancellable event bus
// described for the management engine: a single lattice of event types
// rooted at Event, ancestor-type fan-out on Fire, a bounded history ring,
// and an optional hook for pushing real-time events to web clients.
package events

import "time"

// Priority controls listener ordering within a single Fire call. Higher
// values run first; ties preserve registration order.
type Priority int

const (
	PriorityLowest Priority = iota
	PriorityLow
	PriorityNormal
	PriorityHigh
	PriorityHighest
)

func (p Priority) String() string {
	switch p {
	case PriorityLowest:
		return "LOWEST"
	case PriorityLow:
		return "LOW"
	case PriorityNormal:
		return "NORMAL"
	case PriorityHigh:
		return "HIGH"
	case PriorityHighest:
		return "HIGHEST"
	default:
		return "UNKNOWN"
	}
}

// Event is implemented by every concrete event type fired on the bus.
// Ancestors reports the strict supertypes (most specific first, BaseEvent
// itself excluded) so Fire can replicate the original's MRO-based fan-out
// without Go having class inheritance.
type Event interface {
	EventType() string
	Ancestors() []string
	Timestamp() time.Time
	Cancelled() bool
	SetCancelled(bool)
	Fields() map[string]interface{}
}

// Base is embedded by every concrete event struct; it supplies the
// cancellation flag and timestamp so individual event types only need to
// implement EventType, Ancestors and Fields.
type Base struct {
	At        time.Time
	cancelled bool
}

// NewBase stamps the event with the given time.
func NewBase(at time.Time) Base { return Base{At: at} }

func (b Base) Timestamp() time.Time { return b.At }
func (b *Base) Cancelled() bool      { return b.cancelled }
func (b *Base) SetCancelled(c bool)  { b.cancelled = c }

// --- Server lifecycle events -------------------------------------------------

type ServerStateChangedEvent struct {
	Base
	OldState string
	NewState string
}

func (e *ServerStateChangedEvent) EventType() string    { return "ServerStateChangedEvent" }
func (e *ServerStateChangedEvent) Ancestors() []string   { return []string{"ServerEvent"} }
func (e *ServerStateChangedEvent) Fields() map[string]interface{} {
	return map[string]interface{}{"old_state": e.OldState, "new_state": e.NewState}
}

type ServerStartedEvent struct {
	Base
	PID           int
	StartupSeconds float64
}

func (e *ServerStartedEvent) EventType() string  { return "ServerStartedEvent" }
func (e *ServerStartedEvent) Ancestors() []string { return []string{"ServerEvent"} }
func (e *ServerStartedEvent) Fields() map[string]interface{} {
	return map[string]interface{}{"pid": e.PID, "startup_seconds": e.StartupSeconds}
}

type ServerStoppedEvent struct {
	Base
	ExitCode       int
	UptimeSeconds  float64
}

func (e *ServerStoppedEvent) EventType() string  { return "ServerStoppedEvent" }
func (e *ServerStoppedEvent) Ancestors() []string { return []string{"ServerEvent"} }
func (e *ServerStoppedEvent) Fields() map[string]interface{} {
	return map[string]interface{}{"exit_code": e.ExitCode, "uptime_seconds": e.UptimeSeconds}
}

type ServerCrashedEvent struct {
	Base
	ExitCode    int
	LastStderr  string
	WillRestart bool
}

func (e *ServerCrashedEvent) EventType() string  { return "ServerCrashedEvent" }
func (e *ServerCrashedEvent) Ancestors() []string { return []string{"ServerEvent"} }
func (e *ServerCrashedEvent) Fields() map[string]interface{} {
	return map[string]interface{}{
		"exit_code":    e.ExitCode,
		"last_stderr":  e.LastStderr,
		"will_restart": e.WillRestart,
	}
}

type ServerLogEvent struct {
	Base
	Level   string
	Message string
	Raw     string
}

func (e *ServerLogEvent) EventType() string  { return "ServerLogEvent" }
func (e *ServerLogEvent) Ancestors() []string { return []string{"ServerEvent"} }
func (e *ServerLogEvent) Fields() map[string]interface{} {
	return map[string]interface{}{"level": e.Level, "message": e.Message, "raw": e.Raw}
}

// --- Log parser events -------------------------------------------------------

type LogLineEvent struct {
	Base
	Raw     string
	Level   string
	Message string
}

func (e *LogLineEvent) EventType() string  { return "LogLineEvent" }
func (e *LogLineEvent) Ancestors() []string { return []string{"LogEvent"} }
func (e *LogLineEvent) Fields() map[string]interface{} {
	return map[string]interface{}{"raw": e.Raw, "level": e.Level, "message": e.Message}
}

type UnknownLogEvent struct {
	Base
	RawLine          string
	AttemptedPatterns []string
}

func (e *UnknownLogEvent) EventType() string  { return "UnknownLogEvent" }
func (e *UnknownLogEvent) Ancestors() []string { return []string{"LogEvent"} }
func (e *UnknownLogEvent) Fields() map[string]interface{} {
	return map[string]interface{}{"raw_line": e.RawLine, "attempted_patterns": e.AttemptedPatterns}
}

// --- Player events ------------------------------------------------------------

type PlayerJoinEvent struct {
	Base
	PlayerName string
	IPAddress  string
}

func (e *PlayerJoinEvent) EventType() string  { return "PlayerJoinEvent" }
func (e *PlayerJoinEvent) Ancestors() []string { return []string{"PlayerEvent"} }
func (e *PlayerJoinEvent) Fields() map[string]interface{} {
	return map[string]interface{}{"player_name": e.PlayerName, "ip_address": e.IPAddress}
}

type PlayerLeaveEvent struct {
	Base
	PlayerName string
}

func (e *PlayerLeaveEvent) EventType() string  { return "PlayerLeaveEvent" }
func (e *PlayerLeaveEvent) Ancestors() []string { return []string{"PlayerEvent"} }
func (e *PlayerLeaveEvent) Fields() map[string]interface{} {
	return map[string]interface{}{"player_name": e.PlayerName}
}

type PlayerChatEvent struct {
	Base
	PlayerName string
	Message    string
}

func (e *PlayerChatEvent) EventType() string  { return "PlayerChatEvent" }
func (e *PlayerChatEvent) Ancestors() []string { return []string{"PlayerEvent"} }
func (e *PlayerChatEvent) Fields() map[string]interface{} {
	return map[string]interface{}{"player_name": e.PlayerName, "message": e.Message}
}

type PlayerDeathEvent struct {
	Base
	PlayerName   string
	Killer       string
	DeathMessage string
}

func (e *PlayerDeathEvent) EventType() string  { return "PlayerDeathEvent" }
func (e *PlayerDeathEvent) Ancestors() []string { return []string{"PlayerEvent"} }
func (e *PlayerDeathEvent) Fields() map[string]interface{} {
	return map[string]interface{}{
		"player_name":   e.PlayerName,
		"killer":        e.Killer,
		"death_message": e.DeathMessage,
	}
}

type PlayerAdvancementEvent struct {
	Base
	PlayerName       string
	AdvancementTitle string
}

func (e *PlayerAdvancementEvent) EventType() string  { return "PlayerAdvancementEvent" }
func (e *PlayerAdvancementEvent) Ancestors() []string { return []string{"PlayerEvent"} }
func (e *PlayerAdvancementEvent) Fields() map[string]interface{} {
	return map[string]interface{}{
		"player_name":       e.PlayerName,
		"advancement_title": e.AdvancementTitle,
	}
}

// --- Performance events --------------------------------------------------------

type LagSpikeEvent struct {
	Base
	DurationMS float64
	TickCount  int
	Severity   string
}

func (e *LagSpikeEvent) EventType() string  { return "LagSpikeEvent" }
func (e *LagSpikeEvent) Ancestors() []string { return []string{"PerformanceEvent"} }
func (e *LagSpikeEvent) Fields() map[string]interface{} {
	return map[string]interface{}{
		"duration_ms": e.DurationMS,
		"tick_count":  e.TickCount,
		"severity":    e.Severity,
	}
}

type TickTimeEvent struct {
	Base
	TPS float64
}

func (e *TickTimeEvent) EventType() string  { return "TickTimeEvent" }
func (e *TickTimeEvent) Ancestors() []string { return []string{"PerformanceEvent"} }
func (e *TickTimeEvent) Fields() map[string]interface{} {
	return map[string]interface{}{"tps": e.TPS}
}
