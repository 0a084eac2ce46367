package logparser

import (
	"context"
	"regexp"
	"time"

	"github.com/aetherius-core/aetherius/internal/events"
)

// prefixPattern strips a standard "[HH:MM:SS] [Thread/LEVEL]: " log4j-style
// prefix, leaving the bare message and capturing the level for ServerLogEvent.
var prefixPattern = regexp.MustCompile(`^\[\d{2}:\d{2}:\d{2}\] \[[^/]+/(?P<level>[A-Z]+)\]:\s?(?P<message>.*)$`)

// Bus is the narrow surface the parser needs from the event bus.
type Bus interface {
	Fire(ctx context.Context, ev events.Event) events.Event
}

// Parser turns raw server stdout lines into events and fires them on a bus.
// A Parser is safe for concurrent use only insofar as its Bus is; the
// pattern list itself is read-only after construction.
type Parser struct {
	patterns []Pattern
	bus      Bus
	clock    func() time.Time
}

// New builds a Parser with the built-in pattern set.
func New(bus Bus) *Parser {
	return &Parser{patterns: DefaultPatterns(), bus: bus, clock: time.Now}
}

// WithPatterns replaces the pattern set, for tests or for servers whose log
// format diverges from the built-ins.
func (p *Parser) WithPatterns(patterns []Pattern) *Parser {
	p.patterns = patterns
	return p
}

// extractLevelAndMessage strips a log4j-style timestamp/thread/level prefix
// if present, returning the bare message and the detected level ("INFO" if
// no prefix matched — most non-vanilla server output has none).
func extractLevelAndMessage(raw string) (level, message string) {
	m := prefixPattern.FindStringSubmatch(raw)
	if m == nil {
		return "INFO", raw
	}
	idx := prefixPattern.SubexpIndex("level")
	msgIdx := prefixPattern.SubexpIndex("message")
	return m[idx], m[msgIdx]
}

// ParseLine always fires a LogLineEvent first, then tries each pattern in
// order and fires the first match's event; a line matching nothing fires
// UnknownLogEvent instead. It returns the specific event that was fired
// after the LogLineEvent (nil patterns match -> the UnknownLogEvent).
func (p *Parser) ParseLine(ctx context.Context, raw string) events.Event {
	at := p.clock()
	level, message := extractLevelAndMessage(raw)

	p.bus.Fire(ctx, &events.LogLineEvent{
		Base:    events.NewBase(at),
		Raw:     raw,
		Level:   level,
		Message: message,
	})

	var attempted []string
	for _, pat := range p.patterns {
		attempted = append(attempted, pat.Name)
		fields, ok := pat.Match(message)
		if !ok {
			continue
		}
		ev := pat.Build(fields, message, at)
		return p.bus.Fire(ctx, ev)
	}

	return p.bus.Fire(ctx, &events.UnknownLogEvent{
		Base:              events.NewBase(at),
		RawLine:           raw,
		AttemptedPatterns: attempted,
	})
}
