package subscriber

import (
	"fmt"
	"sync"
)

// State of a subscription session. Closed is terminal.
type State uint8

const (
	Connecting State = iota
	Connected
	AwaitingPong
	Closed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case AwaitingPong:
		return "awaiting-pong"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Session tracks the state of one subscription. It is shared between the
// reader loop and the keepalive ticker.
type Session struct {
	mu      sync.Mutex
	state   State
	started bool
	pingID  uint32 // last keepalive ping sent
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// begin moves a fresh session to Connecting. It fails once the session has run.
func (s *Session) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.state == Closed {
		return ErrSessionClosed
	}
	s.started = true
	s.state = Connecting
	return nil
}

func (s *Session) connected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Connecting {
		s.state = Connected
	}
}

// keepaliveTick decides what a keepalive tick does: send a new ping with the
// returned id, or report that the previous ping was never answered.
func (s *Session) keepaliveTick() (id uint32, alive bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case AwaitingPong:
		return 0, false
	case Connected:
		s.pingID++
		s.state = AwaitingPong
		return s.pingID, true
	default:
		return 0, true
	}
}

// pong handles a pong from the server. It reports whether the pong answered
// the outstanding keepalive ping.
func (s *Session) pong(id uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == AwaitingPong && id == s.pingID {
		s.state = Connected
		return true
	}
	return false
}

func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Closed
}
