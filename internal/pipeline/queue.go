// Package pipeline implements the cross-process and named-pipe tiers of
// command delivery to the supervised server: callers that are not the
// daemon process itself (a separate CLI invocation, a component running
// out-of-process) cannot just call Supervisor.SendCommand directly, so
// they drop a request file for the daemon to pick up, or write to a named
// pipe it is listening on.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aetherius-core/aetherius/internal/arch"
	"github.com/aetherius-core/aetherius/pkg/logger"
	"github.com/google/uuid"
)

// CommandRequest is the on-disk schema for a queued command, written by
// the submitter and read by the daemon's queue processor.
type CommandRequest struct {
	ID             string    `json:"id"`
	Command        string    `json:"command"`
	SubmittedAt    time.Time `json:"submitted_at"`
	TimeoutSeconds float64   `json:"timeout_seconds"`
}

// CommandResponse is the on-disk schema for a completed command's result,
// written by the daemon and read by whichever process is awaiting it.
type CommandResponse struct {
	ID              string  `json:"id"`
	Success         bool    `json:"success"`
	Output          string  `json:"output"`
	Error           string  `json:"error,omitempty"`
	TimedOut        bool    `json:"timed_out"`
	CompletedAt     time.Time `json:"completed_at"`
	ExecutionTimeMS float64 `json:"execution_time_ms"`
}

const (
	defaultPollInterval = 500 * time.Millisecond
	defaultGCAge        = 300 * time.Second
)

// Queue is the file-based command queue: pending/<id>.json requests get
// processed into completed/<id>.json responses.
type Queue struct {
	baseDir      string
	pendingDir   string
	completedDir string
	sup          arch.ProcessSupervisor
	log          logger.Logger
	pollInterval time.Duration
	gcAge        time.Duration

	mu      sync.Mutex
	seen    map[string]bool
}

// New builds a Queue rooted at baseDir (baseDir/pending, baseDir/completed
// are created on demand).
func New(baseDir string, sup arch.ProcessSupervisor, log logger.Logger) *Queue {
	return &Queue{
		baseDir:      baseDir,
		pendingDir:   filepath.Join(baseDir, "pending"),
		completedDir: filepath.Join(baseDir, "completed"),
		sup:          sup,
		log:          log,
		pollInterval: defaultPollInterval,
		gcAge:        defaultGCAge,
		seen:         make(map[string]bool),
	}
}

func (q *Queue) ensureDirs() error {
	if err := os.MkdirAll(q.pendingDir, 0o755); err != nil {
		return err
	}
	return os.MkdirAll(q.completedDir, 0o755)
}

func atomicWriteJSON(dir, name string, v interface{}) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	enc := json.NewEncoder(tmp)
	if err := enc.Encode(v); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, filepath.Join(dir, name))
}

// Submit drops a pending command request file and returns its id.
func (q *Queue) Submit(ctx context.Context, command string, timeout time.Duration) (string, error) {
	id := uuid.NewString()
	req := CommandRequest{
		ID:             id,
		Command:        command,
		SubmittedAt:    time.Now(),
		TimeoutSeconds: timeout.Seconds(),
	}
	if err := atomicWriteJSON(q.pendingDir, id+".json", req); err != nil {
		return "", fmt.Errorf("pipeline: submit: %w", err)
	}
	return id, nil
}

// pendingRequests lists queued requests, oldest-submitted first.
func (q *Queue) pendingRequests() ([]CommandRequest, error) {
	entries, err := os.ReadDir(q.pendingDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var reqs []CommandRequest
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") || strings.HasPrefix(e.Name(), ".tmp-") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(q.pendingDir, e.Name()))
		if err != nil {
			continue
		}
		var req CommandRequest
		if err := json.Unmarshal(data, &req); err != nil {
			continue
		}
		reqs = append(reqs, req)
	}
	sort.Slice(reqs, func(i, j int) bool { return reqs[i].SubmittedAt.Before(reqs[j].SubmittedAt) })
	return reqs, nil
}

// ProcessOnce executes every currently-pending request against the
// supervisor and writes a completed response for each, removing the
// pending file once its response has been written.
func (q *Queue) ProcessOnce(ctx context.Context) error {
	if err := q.ensureDirs(); err != nil {
		return err
	}
	reqs, err := q.pendingRequests()
	if err != nil {
		return err
	}
	for _, req := range reqs {
		q.processOne(ctx, req)
	}
	return nil
}

func (q *Queue) processOne(ctx context.Context, req CommandRequest) {
	timeout := time.Duration(req.TimeoutSeconds * float64(time.Second))
	result, err := q.sup.ExecuteWithResult(ctx, req.Command, timeout)

	resp := CommandResponse{
		ID:              req.ID,
		Success:         result.Success,
		Output:          result.Output,
		TimedOut:        result.TimedOut,
		CompletedAt:     time.Now(),
		ExecutionTimeMS: float64(result.ExecutionTime.Microseconds()) / 1000.0,
	}
	if err != nil {
		resp.Success = false
		resp.Error = err.Error()
	} else if result.Error != "" {
		resp.Error = result.Error
	}

	if err := atomicWriteJSON(q.completedDir, req.ID+".json", resp); err != nil {
		q.log.Error("pipeline: failed to write completed response", "id", req.ID, "error", err.Error())
		return
	}
	if err := os.Remove(filepath.Join(q.pendingDir, req.ID+".json")); err != nil && !os.IsNotExist(err) {
		q.log.Warn("pipeline: failed to remove pending request", "id", req.ID, "error", err.Error())
	}
}

// AwaitCompletion polls for id's completed response until it appears or
// timeout elapses.
func (q *Queue) AwaitCompletion(ctx context.Context, id string, timeout time.Duration) (*CommandResponse, error) {
	deadline := time.Now().Add(timeout)
	path := filepath.Join(q.completedDir, id+".json")

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if data, err := os.ReadFile(path); err == nil {
			var resp CommandResponse
			if err := json.Unmarshal(data, &resp); err != nil {
				return nil, fmt.Errorf("pipeline: decode completed response: %w", err)
			}
			return &resp, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("pipeline: timed out waiting for command %s", id)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Run processes pending requests and garbage-collects old completed
// responses on a timer until ctx is cancelled.
func (q *Queue) Run(ctx context.Context) error {
	if err := q.ensureDirs(); err != nil {
		return err
	}
	ticker := time.NewTicker(q.pollInterval)
	defer ticker.Stop()
	gcTicker := time.NewTicker(q.gcAge)
	defer gcTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := q.ProcessOnce(ctx); err != nil {
				q.log.Error("pipeline: process tick failed", "error", err.Error())
			}
		case <-gcTicker.C:
			q.cleanupOld()
		}
	}
}

// cleanupOld removes completed response files older than gcAge, mirroring
// the original queue's periodic sweep so a long-lived daemon doesn't
// accumulate one file per command forever.
func (q *Queue) cleanupOld() {
	entries, err := os.ReadDir(q.completedDir)
	if err != nil {
		return
	}
	cutoff := time.Now().Add(-q.gcAge)
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			_ = os.Remove(filepath.Join(q.completedDir, e.Name()))
		}
	}
}
