package realtime

import (
	"errors"
	"sync/atomic"

	"github.com/opsdesk/opsdesk/models"
)

// State is a session's lifecycle phase. Transitions happen only in the hub
// and the session's own Close; delivery reads the state and never performs
// I/O against a session that is not Open.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// errNotOpen marks a send skipped because the session was not Open.
// It is not a transport failure and does not trigger eviction.
var errNotOpen = errors.New("session not open")

// Transport is the write side of one client connection. Production code
// wraps a WebSocket connection; tests use in-memory fakes.
type Transport interface {
	// WriteMessage writes one serialized event frame. A returned error
	// means the peer is unreachable and the session should be evicted.
	WriteMessage(data []byte) error

	// Close closes the underlying connection with a close code and reason.
	Close(code int, reason string) error
}

// Session is one admitted, authenticated, long-lived client connection.
// The hub owns registration; indices hold non-owning references.
type Session struct {
	transport Transport
	userID    string
	role      models.Role
	state     atomic.Int32
}

// NewSession wraps transport with the identity extracted at admission.
// The session starts in StateConnecting; Hub.Register opens it.
func NewSession(transport Transport, userID string, role models.Role) *Session {
	s := &Session{transport: transport, userID: userID, role: role}
	s.state.Store(int32(StateConnecting))
	return s
}

func (s *Session) UserID() string    { return s.userID }
func (s *Session) Role() models.Role { return s.role }
func (s *Session) State() State      { return State(s.state.Load()) }

func (s *Session) setState(st State) { s.state.Store(int32(st)) }

// send writes one frame if the session is Open. Non-Open sessions are
// skipped without touching the transport.
func (s *Session) send(data []byte) error {
	if s.State() != StateOpen {
		return errNotOpen
	}
	return s.transport.WriteMessage(data)
}

// Close transitions the session to Closed and closes the transport once.
// Safe to call from any teardown path; later calls are no-ops.
func (s *Session) Close(code int, reason string) {
	if s.state.Swap(int32(StateClosed)) == int32(StateClosed) {
		return
	}
	_ = s.transport.Close(code, reason)
}
