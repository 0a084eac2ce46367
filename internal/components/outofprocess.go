package components

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/aetherius-core/aetherius/pkg/logger"
)

// readyMarker is the exact line an out-of-process component must print to
// stdout once its own startup has finished; anything printed before it is
// logged but not treated as a handshake failure.
const readyMarker = "AETHERIUS_COMPONENT_STATUS: READY"

// outOfProcessHandle wraps a spawned "web" component's process.
type outOfProcessHandle struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
	log   logger.Logger

	// readyTimedOut records that the process never printed readyMarker
	// within its configured window. The process is left running rather
	// than killed — a slow-starting web service shouldn't be torn down
	// out from under itself. startOutOfProcess logs a warning and returns
	// no error; the loader then marks the component Failed while keeping
	// this handle.
	readyTimedOut bool
}

// startOutOfProcess runs manifest.StartCommand and blocks until the
// process prints readyMarker, exits, or ReadyTimeoutSeconds elapses —
// whichever comes first. A timeout does not kill the process: it is left
// running and the handle is returned with readyTimedOut set, so a
// slow-starting web component keeps making progress instead of being cut
// off right as it finishes booting.
func startOutOfProcess(ctx context.Context, m *Manifest, log logger.Logger) (*outOfProcessHandle, error) {
	if len(m.StartCommand) == 0 {
		return nil, fmt.Errorf("components: web component %q has no start_command", m.Name)
	}

	cmd := exec.CommandContext(ctx, m.StartCommand[0], m.StartCommand[1:]...)
	cmd.Dir = m.Dir

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("components: stdin pipe for %q: %w", m.Name, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("components: stdout pipe for %q: %w", m.Name, err)
	}
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("components: start %q: %w", m.Name, err)
	}

	ready := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.TrimSpace(line) == readyMarker {
				ready <- nil
				return
			}
			log.Debug("component startup output", "component", m.Name, "line", line)
		}
		ready <- fmt.Errorf("components: %q exited before signaling ready", m.Name)
	}()

	select {
	case err := <-ready:
		if err != nil {
			_ = cmd.Process.Kill()
			return nil, err
		}
	case <-time.After(m.readyTimeout()):
		log.Warn("component did not signal ready within timeout, leaving it running", "component", m.Name, "timeout", m.readyTimeout())
		return &outOfProcessHandle{cmd: cmd, stdin: stdin, log: log, readyTimedOut: true}, nil
	}

	return &outOfProcessHandle{cmd: cmd, stdin: stdin, log: log}, nil
}

// send writes a line to the component's stdin, the out-of-process
// equivalent of calling a method on an in-process Component.
func (h *outOfProcessHandle) send(line string) error {
	_, err := io.WriteString(h.stdin, line+"\n")
	return err
}

func (h *outOfProcessHandle) stop() error {
	if h.cmd.Process == nil {
		return nil
	}
	_ = h.stdin.Close()
	done := make(chan error, 1)
	go func() { done <- h.cmd.Wait() }()
	select {
	case <-done:
		return nil
	case <-time.After(5 * time.Second):
		return h.cmd.Process.Kill()
	}
}
