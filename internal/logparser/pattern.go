// Package logparser turns raw server stdout lines into typed events.
//
// Each built-in pattern is a regular expression with named capture groups
// plus a builder that turns the matched groups into a concrete events.Event.
// This replaces the original implementation's per-pattern eval()'d
// condition strings with plain Go closures (Gate), which are safer and
// faster and need no sandboxing.
package logparser

import (
	"regexp"
	"strconv"
	"time"

	"github.com/aetherius-core/aetherius/internal/events"
)

// Gate is an additional, optional condition checked after a pattern's regex
// matches, using the named groups captured so far. Most patterns don't need
// one; it exists for cases like "only treat this as a crash if the exit
// code is nonzero" that a plain regex can't express.
type Gate func(fields map[string]string) bool

// Pattern pairs a regex with the logic to turn a match into an event.
type Pattern struct {
	Name    string
	Regex   *regexp.Regexp
	Gate    Gate
	Build   func(fields map[string]string, raw string, at time.Time) events.Event
}

// Match runs the pattern against message (the line with timestamp/thread
// prefix already stripped) and returns the named-group fields if it matches
// and passes its gate.
func (p Pattern) Match(message string) (map[string]string, bool) {
	m := p.Regex.FindStringSubmatch(message)
	if m == nil {
		return nil, false
	}
	fields := make(map[string]string, len(p.Regex.SubexpNames()))
	for i, name := range p.Regex.SubexpNames() {
		if i == 0 || name == "" {
			continue
		}
		fields[name] = m[i]
	}
	if p.Gate != nil && !p.Gate(fields) {
		return nil, false
	}
	return fields, true
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func parseInt(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}

// DefaultPatterns returns the built-in pattern set, evaluated in order;
// the first match wins. A line matching none of them still produces a
// LogLineEvent followed by an UnknownLogEvent.
func DefaultPatterns() []Pattern {
	return []Pattern{
		{
			Name:  "player_join_vanilla",
			Regex: regexp.MustCompile(`^(?P<player>[A-Za-z0-9_]+)\[/(?P<ip>[0-9.]+):\d+\] logged in with entity id \d+`),
			Build: func(f map[string]string, raw string, at time.Time) events.Event {
				return &events.PlayerJoinEvent{Base: events.NewBase(at), PlayerName: f["player"], IPAddress: f["ip"]}
			},
		},
		{
			Name:  "player_join_paper",
			Regex: regexp.MustCompile(`^(?P<player>[A-Za-z0-9_]+) joined the game$`),
			Build: func(f map[string]string, raw string, at time.Time) events.Event {
				return &events.PlayerJoinEvent{Base: events.NewBase(at), PlayerName: f["player"]}
			},
		},
		{
			Name:  "player_leave",
			Regex: regexp.MustCompile(`^(?P<player>[A-Za-z0-9_]+) left the game$`),
			Build: func(f map[string]string, raw string, at time.Time) events.Event {
				return &events.PlayerLeaveEvent{Base: events.NewBase(at), PlayerName: f["player"]}
			},
		},
		{
			Name:  "player_chat",
			Regex: regexp.MustCompile(`^<(?P<player>[A-Za-z0-9_]+)> (?P<message>.+)$`),
			Build: func(f map[string]string, raw string, at time.Time) events.Event {
				return &events.PlayerChatEvent{Base: events.NewBase(at), PlayerName: f["player"], Message: f["message"]}
			},
		},
		{
			Name: "player_death_detailed",
			Regex: regexp.MustCompile(`^(?P<player>[A-Za-z0-9_]+) was (?P<cause>slain by|shot by|killed by|fireballed by|blown up by) (?P<killer>[A-Za-z0-9_]+)$`),
			Build: func(f map[string]string, raw string, at time.Time) events.Event {
				return &events.PlayerDeathEvent{
					Base:         events.NewBase(at),
					PlayerName:   f["player"],
					Killer:       f["killer"],
					DeathMessage: raw,
				}
			},
		},
		{
			Name: "player_death",
			Regex: regexp.MustCompile(`^(?P<player>[A-Za-z0-9_]+) (died|drowned|fell from a high place|fell out of the world|burned to death|went up in flames|blew up|hit the ground too hard|starved to death|suffocated in a wall)`),
			Build: func(f map[string]string, raw string, at time.Time) events.Event {
				return &events.PlayerDeathEvent{
					Base:         events.NewBase(at),
					PlayerName:   f["player"],
					DeathMessage: raw,
				}
			},
		},
		{
			Name:  "player_advancement",
			Regex: regexp.MustCompile(`^(?P<player>[A-Za-z0-9_]+) has (made the advancement|completed the challenge|reached the goal) \[(?P<advancement>.+)\]$`),
			Build: func(f map[string]string, raw string, at time.Time) events.Event {
				return &events.PlayerAdvancementEvent{Base: events.NewBase(at), PlayerName: f["player"], AdvancementTitle: f["advancement"]}
			},
		},
		{
			Name:  "server_started",
			Regex: regexp.MustCompile(`^Done \((?P<startup_time>[0-9.]+)s\)! For help, type "help"`),
			Build: func(f map[string]string, raw string, at time.Time) events.Event {
				return &events.ServerStartedEvent{Base: events.NewBase(at), StartupSeconds: parseFloat(f["startup_time"])}
			},
		},
		{
			Name:  "server_stopping",
			Regex: regexp.MustCompile(`^Stopping( the)? server`),
			Build: func(f map[string]string, raw string, at time.Time) events.Event {
				return &events.ServerStateChangedEvent{Base: events.NewBase(at), OldState: "running", NewState: "stopping"}
			},
		},
		{
			Name:  "tick_time_warning",
			Regex: regexp.MustCompile(`^Can't keep up! Is the server overloaded\? Running (?P<lag_ms>[0-9.]+)ms or (?P<tick_count>\d+) ticks? behind`),
			Build: func(f map[string]string, raw string, at time.Time) events.Event {
				lagMS := parseFloat(f["lag_ms"])
				severity := lagSeverity(lagMS)
				return &events.LagSpikeEvent{
					Base:       events.NewBase(at),
					DurationMS: lagMS,
					TickCount:  parseInt(f["tick_count"]),
					Severity:   severity,
				}
			},
		},
		{
			Name:  "tps_report",
			Regex: regexp.MustCompile(`^TPS from last 1m, 5m, 15m: (?P<tps>[0-9.]+)`),
			Build: func(f map[string]string, raw string, at time.Time) events.Event {
				return &events.TickTimeEvent{Base: events.NewBase(at), TPS: parseFloat(f["tps"])}
			},
		},
	}
}

// lagSeverity derives a severity bucket from a tick-lag duration, mirroring
// the thresholds the original log parser used to classify "Can't keep up!"
// warnings: minor jitter is common and not worth alarming on, but sustained
// multi-second lag indicates a real problem.
func lagSeverity(lagMS float64) string {
	switch {
	case lagMS >= 5000:
		return "critical"
	case lagMS >= 2000:
		return "high"
	case lagMS >= 1000:
		return "medium"
	default:
		return "low"
	}
}
