package supervisor

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/aetherius-core/aetherius/internal/arch"
	"github.com/google/uuid"
)

// captureSession accumulates stdout lines produced while a synchronous
// command is in flight, for the window the caller is willing to wait.
type captureSession struct {
	id       string
	relevant func(line string) bool
	lines    []string
	mu       chan struct{} // binary semaphore guarding lines
}

func newCaptureSession(verb string) *captureSession {
	return &captureSession{
		id:       uuid.NewString(),
		relevant: relevanceFilterFor(verb),
		mu:       make(chan struct{}, 1),
	}
}

func (c *captureSession) append(line string) {
	clean := cleanLine(line)
	if clean == "" {
		return
	}
	if c.relevant != nil && !c.relevant(clean) {
		return
	}
	c.mu <- struct{}{}
	c.lines = append(c.lines, clean)
	<-c.mu
}

func (c *captureSession) snapshot() []string {
	c.mu <- struct{}{}
	out := append([]string(nil), c.lines...)
	<-c.mu
	return out
}

// cleanLine strips a log4j-style "[HH:MM:SS] [Thread/LEVEL]: " prefix so
// captured command output reads the way a player typing the command at the
// console would see it.
var capturePrefix = regexp.MustCompile(`^\[\d{2}:\d{2}:\d{2}\] \[[^\]]+\]:\s?`)

func cleanLine(line string) string {
	return strings.TrimSpace(capturePrefix.ReplaceAllString(line, ""))
}

// verbRelevance maps a command's verb (the first whitespace-delimited
// token, lowercased) to the regex its relevant output lines match, per the
// base-verb table. Every verb also accepts the genericRelevance patterns
// (the server's own "that didn't work" replies), and list additionally
// accepts a bare comma-separated player-name list. Verbs without an entry
// capture every line seen during the window, since we have no prior
// knowledge of their output shape.
var verbRelevance = map[string]*regexp.Regexp{
	"list":       regexp.MustCompile(`(?i)there are \d+(/\d+)? (of a max of \d+ )?players online|there are no players online|players online \(\d+\)`),
	"give":       regexp.MustCompile(`(?i)gave \d+ .+ to .+|could not give .+ to .+|unknown item|player .+ not found`),
	"tp":         regexp.MustCompile(`(?i)teleported .+ to|could not teleport|player .+ not found|invalid coordinates`),
	"gamemode":   regexp.MustCompile(`(?i)set .+'s game mode to|player .+ not found|invalid game mode`),
	"time":       regexp.MustCompile(`(?i)set the time to|added \d+ to the time`),
	"weather":    regexp.MustCompile(`(?i)set the weather to|weather set to`),
	"difficulty": regexp.MustCompile(`(?i)set the difficulty to|difficulty set to`),
}

// genericRelevance matches the server's generic error replies, which are
// relevant output for any verb regardless of its own specific pattern.
var genericRelevance = regexp.MustCompile(`(?i)unknown command|incorrect argument for command|permission denied|command not found|syntax error|usage:`)

// listPlayerNames is list's fallback: a bare comma-separated list of player
// names, as printed by servers whose "list" output omits the "players
// online" framing entirely.
var listPlayerNames = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{2,15}(,\s*[A-Za-z_][A-Za-z0-9_]{2,15})*$`)

func relevanceFilterFor(verb string) func(string) bool {
	verb = strings.ToLower(verb)
	re, ok := verbRelevance[verb]
	if !ok {
		return nil
	}
	return func(line string) bool {
		if re.MatchString(line) || genericRelevance.MatchString(line) {
			return true
		}
		if verb == "list" && listPlayerNames.MatchString(line) {
			return true
		}
		return false
	}
}

func firstToken(text string) string {
	text = strings.TrimPrefix(strings.TrimSpace(text), "/")
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func (s *Supervisor) dispatchToCapture(line string) {
	s.capturesMu.Lock()
	sessions := make([]*captureSession, 0, len(s.captures))
	for _, cs := range s.captures {
		sessions = append(sessions, cs)
	}
	s.capturesMu.Unlock()
	for _, cs := range sessions {
		cs.append(line)
	}
}

// ExecuteWithResult sends text to the process's stdin and captures
// whatever output lines look relevant to its verb during the given window
// (falling back to the supervisor's configured default window when timeout
// is zero). It implements the synchronous, in-process command path. In
// internal/pipeline, the cross-process queue calls ExecuteWithResult for
// each request and writes its own completed file, while the named-pipe
// bridge builds on SendCommand and returns no reply.
func (s *Supervisor) ExecuteWithResult(ctx context.Context, text string, timeout time.Duration) (arch.CommandResult, error) {
	if timeout <= 0 {
		timeout = s.cfg.CaptureWindow
	}

	cs := newCaptureSession(firstToken(text))
	s.capturesMu.Lock()
	s.captures[cs.id] = cs
	s.capturesMu.Unlock()
	defer func() {
		s.capturesMu.Lock()
		delete(s.captures, cs.id)
		s.capturesMu.Unlock()
	}()

	start := time.Now()
	if err := s.SendCommand(ctx, text); err != nil {
		return arch.CommandResult{Success: false, Error: err.Error()}, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return arch.CommandResult{
			Success:       false,
			Error:         ctx.Err().Error(),
			ExecutionTime: time.Since(start),
		}, ctx.Err()
	case <-timer.C:
	}

	lines := cs.snapshot()
	return arch.CommandResult{
		Success:       true,
		Output:        strings.Join(lines, "\n"),
		ExecutionTime: time.Since(start),
		TimedOut:      false,
	}, nil
}
