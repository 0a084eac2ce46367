// Package state persists small JSON documents — the supervised process's
// PID/state snapshot, the daemon's own socket/session metadata — to disk so
// a restarted daemon can find and adopt an already-running child instead of
// assuming it died with the previous process.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ProcessState is the persisted view of a supervised child process. The
// four spec-literal keys (pid, start_time, jar_path, working_directory) are
// what a previous daemon's state file must be readable as; State and
// RestartCount are additive Go-side bookkeeping so a restarted daemon can
// resume a restart count and announce the right state transition on
// adoption, with no equivalent in the original's on-disk schema.
type ProcessState struct {
	PID          int       `json:"pid"`
	StartedAt    time.Time `json:"start_time"`
	JarPath      string    `json:"jar_path"`
	WorkingDir   string    `json:"working_directory"`
	State        string    `json:"state,omitempty"`
	RestartCount int       `json:"restart_count,omitempty"`
}

// Store reads and writes a ProcessState to a single path on disk, always
// via write-to-temp-then-rename so a crash mid-write never leaves a
// truncated or partially-written file behind for the next read.
type Store struct {
	path string
}

// NewStore builds a Store backed by path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the persisted state. A missing file is not an error; it
// returns (nil, nil) so callers can distinguish "no prior state" from a
// read failure.
func (s *Store) Load() (*ProcessState, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("state: read %s: %w", s.path, err)
	}
	var ps ProcessState
	if err := json.Unmarshal(data, &ps); err != nil {
		return nil, fmt.Errorf("state: decode %s: %w", s.path, err)
	}
	return &ps, nil
}

// Save atomically replaces the persisted state. It writes to a sibling
// temp file in the same directory (so the final rename is same-filesystem
// and therefore atomic on POSIX) and fsyncs before renaming.
func (s *Store) Save(ps *ProcessState) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("state: mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".state-*.tmp")
	if err != nil {
		return fmt.Errorf("state: create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once renamed

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(ps); err != nil {
		tmp.Close()
		return fmt.Errorf("state: encode: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("state: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("state: close temp: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("state: rename into place: %w", err)
	}
	return nil
}

// Clear removes the persisted state file, used on clean shutdown so a
// later daemon start doesn't try to adopt a process that has exited.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("state: remove %s: %w", s.path, err)
	}
	return nil
}
