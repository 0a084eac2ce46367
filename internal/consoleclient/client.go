// Package consoleclient implements the interactive console: a thin client
// over the daemon's Unix domain socket that sends command lines and
// renders responses and pushed events with color-coded output.
package consoleclient

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/aetherius-core/aetherius/internal/daemon"
)

var (
	colorSuccess = color.New(color.FgGreen)
	colorError   = color.New(color.FgRed, color.Bold)
	colorEvent   = color.New(color.FgCyan)
	colorHint    = color.New(color.FgYellow)
)

// Client is a connected session to the daemon's console socket.
type Client struct {
	conn net.Conn
	enc  *json.Encoder

	mu      sync.Mutex
	pending map[string]chan daemon.Envelope
	onEvent func(daemon.Envelope)
	onLog   func(daemon.Envelope)
}

// Dial connects to the daemon's Unix domain socket at path.
func Dial(path string) (*Client, error) {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return nil, fmt.Errorf("consoleclient: dial %s: %w", path, err)
	}
	c := &Client{
		conn:    conn,
		enc:     json.NewEncoder(conn),
		pending: make(map[string]chan daemon.Envelope),
	}
	go c.readLoop()
	return c, nil
}

// OnEvent registers a callback invoked for every "event" frame received,
// typically used to print live server state/crash/component notifications.
func (c *Client) OnEvent(fn func(daemon.Envelope)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEvent = fn
}

// OnLog registers a callback invoked for every "log" frame received,
// typically used to stream the server's own console output.
func (c *Client) OnLog(fn func(daemon.Envelope)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onLog = fn
}

func (c *Client) readLoop() {
	scanner := bufio.NewScanner(c.conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var env daemon.Envelope
		if err := json.Unmarshal(scanner.Bytes(), &env); err != nil {
			continue
		}
		switch env.Type {
		case daemon.MsgResponse:
			c.mu.Lock()
			ch, ok := c.pending[env.ID]
			if ok {
				delete(c.pending, env.ID)
			}
			c.mu.Unlock()
			if ok {
				ch <- env
			}
		case daemon.MsgLog:
			c.mu.Lock()
			cb := c.onLog
			c.mu.Unlock()
			if cb != nil {
				cb(env)
			}
		case daemon.MsgEvent:
			c.mu.Lock()
			cb := c.onEvent
			c.mu.Unlock()
			if cb != nil {
				cb(env)
			}
		case daemon.MsgHint:
			colorHint.Printf("(unrouted) %s\n", env.Content)
		}
	}
}

// Send writes text as a command line and waits up to timeout for its
// response.
func (c *Client) Send(text string, timeout time.Duration) (daemon.Envelope, error) {
	id := uuid.NewString()
	ch := make(chan daemon.Envelope, 1)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()

	env := daemon.Envelope{Type: daemon.MsgCommand, ID: id, Command: text}
	if err := c.enc.Encode(env); err != nil {
		return daemon.Envelope{}, fmt.Errorf("consoleclient: send: %w", err)
	}

	select {
	case resp := <-ch:
		return resp, nil
	case <-time.After(timeout):
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return daemon.Envelope{}, fmt.Errorf("consoleclient: timed out waiting for response to %q", text)
	}
}

// Render prints a response in the console's color scheme.
func Render(resp daemon.Envelope) {
	if resp.Success {
		if resp.Output != "" {
			colorSuccess.Println(resp.Output)
		}
	} else {
		colorError.Printf("error: %s\n", resp.Error)
	}
}

// RenderEvent prints a pushed "event" frame.
func RenderEvent(ev daemon.Envelope) {
	colorEvent.Printf("[%s] %s %v\n", ev.Timestamp.Format("15:04:05"), ev.EventType, ev.Fields)
}

// RenderLog prints a pushed "log" frame, coloring error lines distinctly.
func RenderLog(ev daemon.Envelope) {
	if ev.IsError {
		colorError.Println(ev.Content)
		return
	}
	fmt.Println(ev.Content)
}

// Close disconnects from the daemon.
func (c *Client) Close() error {
	return c.conn.Close()
}
