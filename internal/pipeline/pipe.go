package pipeline

import (
	"bufio"
	"context"

	"github.com/aetherius-core/aetherius/internal/arch"
	"github.com/aetherius-core/aetherius/pkg/logger"
)

// PipeBridge listens on a platform-specific named pipe keyed by the
// supervised process's pid and forwards each line written to it straight
// to the supervisor's stdin. It exists for callers that can write to a
// filesystem path but can't hold a direct handle to the daemon process —
// the lightest-weight command path of the three the pipeline supports.
type PipeBridge struct {
	path string
	sup  arch.ProcessSupervisor
	log  logger.Logger
}

// PipePath returns the platform-specific path/name a client should write
// commands to for the given base directory, name prefix and pid.
func PipePath(dir, prefix string, pid int) string {
	return pipePath(dir, prefix, pid)
}

// NewPipeBridge creates (but does not yet open) a bridge at the path for
// prefix/pid under dir.
func NewPipeBridge(dir, prefix string, pid int, sup arch.ProcessSupervisor, log logger.Logger) *PipeBridge {
	return &PipeBridge{path: PipePath(dir, prefix, pid), sup: sup, log: log}
}

// Path returns the bridge's listening path.
func (b *PipeBridge) Path() string { return b.path }

func (b *PipeBridge) forwardLine(ctx context.Context, line string) {
	if line == "" {
		return
	}
	if err := b.sup.SendCommand(ctx, line); err != nil {
		b.log.Warn("pipe bridge: failed to forward command", "error", err.Error(), "path", b.path)
	}
}

func (b *PipeBridge) readLoop(ctx context.Context, scanner *bufio.Scanner) {
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}
		b.forwardLine(ctx, scanner.Text())
	}
}
