//go:build windows

package pipeline

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"golang.org/x/sys/windows"
)

func pipePath(_ string, prefix string, pid int) string {
	return fmt.Sprintf(`\\.\pipe\%s_%d`, prefix, pid)
}

// Listen repeatedly creates a Windows named pipe instance, accepts one
// client connection, reads lines from it until the client disconnects,
// and loops — mirroring the FIFO reopen-on-EOF behavior of the POSIX
// implementation, since Windows named pipes are connection-oriented rather
// than always-open like a FIFO.
func (b *PipeBridge) Listen(ctx context.Context) error {
	pathPtr, err := windows.UTF16PtrFromString(b.path)
	if err != nil {
		return fmt.Errorf("pipeline: pipe path: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		handle, err := windows.CreateNamedPipe(
			pathPtr,
			windows.PIPE_ACCESS_INBOUND,
			windows.PIPE_TYPE_BYTE|windows.PIPE_READMODE_BYTE|windows.PIPE_WAIT,
			windows.PIPE_UNLIMITED_INSTANCES,
			4096, 4096, 0, nil,
		)
		if err != nil {
			return fmt.Errorf("pipeline: create named pipe %s: %w", b.path, err)
		}

		if err := windows.ConnectNamedPipe(handle, nil); err != nil && err != windows.ERROR_PIPE_CONNECTED {
			windows.CloseHandle(handle)
			continue
		}

		f := os.NewFile(uintptr(handle), b.path)
		scanner := bufio.NewScanner(f)
		b.readLoop(ctx, scanner)
		f.Close()
	}
}
