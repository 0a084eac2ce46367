package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// readLoop decodes one Envelope per line from sess's connection and
// dispatches each command frame until the client disconnects or ctx is
// cancelled.
func (d *Daemon) readLoop(ctx context.Context, sess *Session) {
	scanner := bufio.NewScanner(sess.conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		var env Envelope
		if err := json.Unmarshal(scanner.Bytes(), &env); err != nil {
			d.log.Warn("daemon: malformed envelope", "session", sess.ID, "error", err.Error())
			continue
		}
		if env.Type != MsgCommand {
			continue
		}
		d.dispatch(ctx, sess, env.ID, env.Command)
	}
}

// dispatch routes a console line by its leading character: "/" to the
// game server, "$" to a loaded component, "!" to the daemon itself, and a
// bare line (no prefix) back as an unrouted hint.
func (d *Daemon) dispatch(ctx context.Context, sess *Session, id, text string) {
	switch {
	case strings.HasPrefix(text, "/"):
		d.dispatchGameCommand(ctx, sess, id, strings.TrimPrefix(text, "/"))
	case strings.HasPrefix(text, "$"):
		d.dispatchComponentCommand(ctx, sess, id, strings.TrimPrefix(text, "$"))
	case strings.HasPrefix(text, "!"):
		d.dispatchSystemCommand(ctx, sess, id, strings.TrimPrefix(text, "!"))
	default:
		sess.Send(Envelope{Type: MsgHint, ID: id, Content: text})
	}
}

func (d *Daemon) dispatchGameCommand(ctx context.Context, sess *Session, id, text string) {
	result, err := d.sup.ExecuteWithResult(ctx, text, 2*time.Second)
	resp := Envelope{
		Type:    MsgResponse,
		ID:      id,
		Success: result.Success,
		Output:  result.Output,
	}
	if err != nil {
		resp.Success = false
		resp.Error = err.Error()
	} else if result.Error != "" {
		resp.Error = result.Error
	}
	sess.Send(resp)
}

func (d *Daemon) dispatchComponentCommand(ctx context.Context, sess *Session, id, text string) {
	if d.components == nil {
		sess.Send(Envelope{Type: MsgResponse, ID: id, Success: false, Error: "no components loaded"})
		return
	}
	name, args := splitFirstField(text)
	out, err := d.components.Dispatch(ctx, name, args)
	resp := Envelope{Type: MsgResponse, ID: id, Success: err == nil, Output: out}
	if err != nil {
		resp.Error = err.Error()
	}
	sess.Send(resp)
}

func (d *Daemon) dispatchSystemCommand(ctx context.Context, sess *Session, id, text string) {
	name, args := splitFirstField(text)
	switch name {
	case "quit", "shutdown":
		sess.Send(Envelope{Type: MsgResponse, ID: id, Success: true, Output: "daemon shutting down"})
		d.Quit()
	case "status":
		sess.Send(Envelope{Type: MsgResponse, ID: id, Success: true, Output: d.sup.State()})
	case "subscribe":
		sess.Subscribe(args)
		sess.Send(Envelope{Type: MsgResponse, ID: id, Success: true, Output: "subscribed to " + args})
	case "unsubscribe":
		sess.Unsubscribe(args)
		sess.Send(Envelope{Type: MsgResponse, ID: id, Success: true, Output: "unsubscribed from " + args})
	case "component":
		d.dispatchComponentLifecycle(ctx, sess, id, args)
	case "server":
		d.dispatchServerLifecycle(ctx, sess, id, args)
	default:
		sess.Send(Envelope{Type: MsgResponse, ID: id, Success: false, Error: "unknown system command: " + name})
	}
}

// dispatchComponentLifecycle routes "!component <verb> [name]" to the
// loader: list/info are read-only, load/enable/disable/unload/reload
// mutate a single named component's lifecycle state.
func (d *Daemon) dispatchComponentLifecycle(ctx context.Context, sess *Session, id, args string) {
	if d.components == nil {
		sess.Send(Envelope{Type: MsgResponse, ID: id, Success: false, Error: "no components loaded"})
		return
	}
	verb, name := splitFirstField(args)

	respond := func(err error, output string) {
		resp := Envelope{Type: MsgResponse, ID: id, Success: err == nil, Output: output}
		if err != nil {
			resp.Error = err.Error()
		}
		sess.Send(resp)
	}

	switch verb {
	case "list":
		data, _ := json.Marshal(d.components.List())
		respond(nil, string(data))
	case "info":
		info, ok := d.components.Info(name)
		if !ok {
			respond(fmt.Errorf("unknown component %q", name), "")
			return
		}
		data, _ := json.Marshal(info)
		respond(nil, string(data))
	case "load":
		respond(d.components.Load(ctx, name), name+" loaded")
	case "enable":
		respond(d.components.Enable(ctx, name), name+" enabled")
	case "disable":
		respond(d.components.Disable(ctx, name), name+" disabled")
	case "unload":
		respond(d.components.Unload(ctx, name), name+" unloaded")
	case "reload":
		respond(d.components.Reload(ctx, name), name+" reloaded")
	default:
		respond(fmt.Errorf("unknown component verb %q", verb), "")
	}
}

// dispatchServerLifecycle routes "!server start|stop|restart" to the
// supervisor directly, independent of the game-command forwarding path.
func (d *Daemon) dispatchServerLifecycle(ctx context.Context, sess *Session, id, verb string) {
	var err error
	switch verb {
	case "start":
		err = d.sup.Start(ctx)
	case "stop":
		err = d.sup.Stop(ctx)
	case "restart":
		err = d.sup.Restart(ctx)
	default:
		err = fmt.Errorf("unknown server verb %q", verb)
	}
	resp := Envelope{Type: MsgResponse, ID: id, Success: err == nil, Output: d.sup.State()}
	if err != nil {
		resp.Error = err.Error()
	}
	sess.Send(resp)
}

func splitFirstField(text string) (first, rest string) {
	text = strings.TrimSpace(text)
	parts := strings.SplitN(text, " ", 2)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], strings.TrimSpace(parts[1])
}
