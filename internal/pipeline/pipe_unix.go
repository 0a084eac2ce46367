//go:build !windows

package pipeline

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

func pipePath(dir, prefix string, pid int) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%d.pipe", prefix, pid))
}

// Listen creates the FIFO (if absent) and blocks reading lines from it
// until ctx is cancelled, forwarding each to the supervisor. The FIFO is
// reopened after every writer disconnects, since a FIFO delivers EOF to
// its reader once its last writer closes.
func (b *PipeBridge) Listen(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(b.path), 0o755); err != nil {
		return fmt.Errorf("pipeline: mkdir for pipe: %w", err)
	}
	if _, err := os.Stat(b.path); os.IsNotExist(err) {
		if err := unix.Mkfifo(b.path, 0o600); err != nil {
			return fmt.Errorf("pipeline: mkfifo %s: %w", b.path, err)
		}
	}
	defer os.Remove(b.path)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		f, err := os.OpenFile(b.path, os.O_RDONLY, 0)
		if err != nil {
			return fmt.Errorf("pipeline: open pipe %s: %w", b.path, err)
		}

		scanner := bufio.NewScanner(f)
		b.readLoop(ctx, scanner)
		f.Close()
	}
}
