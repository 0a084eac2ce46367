package daemon

import (
	"bufio"
	"encoding/json"
	"net"
	"sync"

	"github.com/google/uuid"

	"github.com/aetherius-core/aetherius/pkg/logger"
)

// Session is one connected client: a CLI invocation making a single
// request, or the interactive console client holding the connection open
// for the whole run. Its outbound writes are serialized through a channel
// so the read loop and event pushes never race on the socket.
type Session struct {
	ID   string
	conn net.Conn
	log  logger.Logger

	out    chan Envelope
	closed chan struct{}
	once   sync.Once

	subsMu sync.Mutex
	subs   map[string]bool
}

func newSession(conn net.Conn, log logger.Logger) *Session {
	s := &Session{
		ID:     uuid.NewString(),
		conn:   conn,
		log:    log,
		out:    make(chan Envelope, 64),
		closed: make(chan struct{}),
		subs:   make(map[string]bool),
	}
	go s.writeLoop()
	return s
}

func (s *Session) writeLoop() {
	w := bufio.NewWriter(s.conn)
	enc := json.NewEncoder(w)
	for {
		select {
		case <-s.closed:
			return
		case env := <-s.out:
			if err := enc.Encode(env); err != nil {
				s.log.Warn("daemon: session write failed", "session", s.ID, "error", err.Error())
				s.Close()
				return
			}
			if err := w.Flush(); err != nil {
				s.log.Warn("daemon: session flush failed", "session", s.ID, "error", err.Error())
				s.Close()
				return
			}
		}
	}
}

// Send queues env for delivery; it never blocks the caller for long since
// out is buffered and writeLoop drains it independently.
func (s *Session) Send(env Envelope) {
	select {
	case <-s.closed:
		return
	case s.out <- env:
	default:
		s.log.Warn("daemon: session output buffer full, dropping message", "session", s.ID)
	}
}

// Subscribe marks eventType as one this session wants pushed to it.
func (s *Session) Subscribe(eventType string) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	s.subs[eventType] = true
}

// Unsubscribe removes eventType from this session's push list.
func (s *Session) Unsubscribe(eventType string) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	delete(s.subs, eventType)
}

// Wants reports whether this session is subscribed to eventType.
func (s *Session) Wants(eventType string) bool {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	return s.subs[eventType]
}

// Close closes the underlying connection. Safe to call more than once.
func (s *Session) Close() {
	s.once.Do(func() {
		close(s.closed)
		s.conn.Close()
	})
}
