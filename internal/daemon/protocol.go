// Package daemon implements the persistent console daemon: a single
// long-lived process that owns the supervised server, the event bus and
// the command pipeline, and exposes them to any number of short-lived CLI
// invocations and the interactive console client over a Unix domain
// socket. Sessions come and go; the daemon outlives every one of them.
package daemon

import "time"

// MessageType tags an Envelope's frame shape.
type MessageType string

const (
	MsgCommand  MessageType = "command"
	MsgResponse MessageType = "response"
	MsgLog      MessageType = "log"
	MsgEvent    MessageType = "event"
	MsgHint     MessageType = "hint"
)

// Envelope is the newline-delimited JSON frame exchanged over the socket.
// Its fields sit directly on the frame rather than behind a nested
// "payload" wrapper, matching the three message shapes: a command frame
// carries Command, a log frame carries Content/IsError, and a response
// frame carries Success/Output/Error. ID correlates a response with the
// command that produced it (an addition beyond those three shapes, needed
// because one socket multiplexes many in-flight requests from the CLI and
// console client). "event" and "hint" are two further additions: event
// carries every bus event that isn't a server log line, and hint echoes
// back unroutable bare-text input. See SPEC_FULL.md §9 for why these exist
// alongside the three documented frames instead of replacing them.
//
// Fields tagged omitempty are left out when zero, so a false is_error or
// success and an empty error are absent from the frame rather than encoded
// as false or null. Timestamp is a struct and is always encoded.
//
//	{"type":"command","command":"<text>"}
//	{"type":"log","content":"<line>","is_error":true}
//	{"type":"response","success":true,"output":"..."}
type Envelope struct {
	Type MessageType `json:"type"`
	ID   string      `json:"id,omitempty"`

	// command frame
	Command string `json:"command,omitempty"`

	// log frame; Content also carries hint frames' echoed text
	Content string `json:"content,omitempty"`
	IsError bool   `json:"is_error,omitempty"`

	// response frame
	Success bool   `json:"success,omitempty"`
	Output  string `json:"output,omitempty"`
	Error   string `json:"error,omitempty"`

	// event frame
	EventType string                 `json:"event_type,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	Timestamp time.Time              `json:"timestamp,omitempty"`
}
