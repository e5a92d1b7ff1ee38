package realtime

import (
	"errors"
	"sync"
	"testing"

	"github.com/opsdesk/opsdesk/models"
)

// fakeTransport records frames and can be told to fail every write.
type fakeTransport struct {
	mu         sync.Mutex
	frames     [][]byte
	failWrites bool
	closed     bool
	closeCode  int
}

func (f *fakeTransport) WriteMessage(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		return errors.New("broken pipe")
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	f.frames = append(f.frames, cp)
	return nil
}

func (f *fakeTransport) Close(code int, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.closeCode = code
	return nil
}

func (f *fakeTransport) frameCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

func (f *fakeTransport) wasClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func openSession(t *testing.T, h *Hub, userID string, role models.Role) (*Session, *fakeTransport) {
	t.Helper()
	tr := &fakeTransport{}
	s := NewSession(tr, userID, role)
	h.Register(s)
	if s.State() != StateOpen {
		t.Fatalf("expected session open after register, got %v", s.State())
	}
	return s, tr
}

func TestRegisterUnregisterConsistency(t *testing.T) {
	h := NewHub()
	s1, _ := openSession(t, h, "u1", models.RoleUser)
	s2, _ := openSession(t, h, "u1", models.RoleUser)

	if got := len(h.SessionsForUser("u1")); got != 2 {
		t.Fatalf("expected 2 sessions for u1, got %d", got)
	}

	h.Unregister(s1)
	sessions := h.SessionsForUser("u1")
	if len(sessions) != 1 || sessions[0] != s2 {
		t.Fatalf("expected only s2 to remain, got %d sessions", len(sessions))
	}
	if s1.State() != StateClosed {
		t.Fatalf("expected s1 closed, got %v", s1.State())
	}

	h.Unregister(s2)
	if got := len(h.SessionsForUser("u1")); got != 0 {
		t.Fatalf("expected no sessions after full unregister, got %d", got)
	}
	if h.UserCount() != 0 || h.SessionCount() != 0 {
		t.Fatalf("expected empty hub, users=%d sessions=%d", h.UserCount(), h.SessionCount())
	}
}

func TestRegisterTwiceIsNoop(t *testing.T) {
	h := NewHub()
	s, _ := openSession(t, h, "u1", models.RoleUser)
	h.Register(s)
	if got := len(h.SessionsForUser("u1")); got != 1 {
		t.Fatalf("expected 1 session after duplicate register, got %d", got)
	}
}

func TestUnregisterIsIdempotent(t *testing.T) {
	h := NewHub()
	s, _ := openSession(t, h, "u1", models.RoleUser)
	h.Subscribe(s, "ticket-1")

	h.Unregister(s)
	h.Unregister(s) // second call must observe "not found" and return

	if h.SessionCount() != 0 || h.TopicCount() != 0 {
		t.Fatalf("expected clean hub after repeated unregister, sessions=%d topics=%d",
			h.SessionCount(), h.TopicCount())
	}
}

func TestUnknownUserYieldsEmptySet(t *testing.T) {
	h := NewHub()
	if got := h.SessionsForUser("nobody"); len(got) != 0 {
		t.Fatalf("expected empty set for unknown user, got %d", len(got))
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	h := NewHub()
	s, _ := openSession(t, h, "u1", models.RoleUser)

	h.Subscribe(s, "ticket-42")
	if got := h.SessionsForTopic("ticket-42"); len(got) != 1 || got[0] != s {
		t.Fatalf("expected s subscribed to ticket-42")
	}

	h.Unsubscribe(s, "ticket-42")
	if got := len(h.SessionsForTopic("ticket-42")); got != 0 {
		t.Fatalf("expected no subscribers after unsubscribe, got %d", got)
	}
	// Empty topics must be pruned, not enumerated.
	if h.TopicCount() != 0 {
		t.Fatalf("expected topic pruned when empty, topics=%d", h.TopicCount())
	}
}

func TestSubscribeIgnoresUnregisteredSession(t *testing.T) {
	h := NewHub()
	s := NewSession(&fakeTransport{}, "u1", models.RoleUser)

	h.Subscribe(s, "ticket-1")
	if h.TopicCount() != 0 {
		t.Fatal("subscription index must never reference a session outside the registry")
	}
}

func TestUnregisterEvictsFromAllTopics(t *testing.T) {
	h := NewHub()
	s, _ := openSession(t, h, "u1", models.RoleUser)
	other, _ := openSession(t, h, "u2", models.RoleUser)

	h.Subscribe(s, "ticket-1")
	h.Subscribe(s, "ticket-2")
	h.Subscribe(other, "ticket-2")

	h.Unregister(s)

	if got := len(h.SessionsForTopic("ticket-1")); got != 0 {
		t.Fatalf("expected ticket-1 empty after eviction, got %d", got)
	}
	subs := h.SessionsForTopic("ticket-2")
	if len(subs) != 1 || subs[0] != other {
		t.Fatalf("expected only other session left on ticket-2, got %d", len(subs))
	}
	if h.TopicCount() != 1 {
		t.Fatalf("expected lone surviving topic, topics=%d", h.TopicCount())
	}
}

func TestSessionsForRoleFiltersRegistry(t *testing.T) {
	h := NewHub()
	openSession(t, h, "u1", models.RoleIT)
	openSession(t, h, "u2", models.RoleIT)
	openSession(t, h, "u3", models.RoleAdmin)
	openSession(t, h, "u4", models.RoleUser)

	if got := len(h.SessionsForRole(models.RoleIT)); got != 2 {
		t.Fatalf("expected 2 it sessions, got %d", got)
	}
	if got := len(h.SessionsForRole(models.RoleAdmin)); got != 1 {
		t.Fatalf("expected 1 admin session, got %d", got)
	}
}

func TestConcurrentRegisterUnregister(t *testing.T) {
	h := NewHub()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := NewSession(&fakeTransport{}, "u1", models.RoleUser)
			h.Register(s)
			h.Subscribe(s, "ticket-1")
			h.Unregister(s)
		}()
	}
	wg.Wait()

	if h.SessionCount() != 0 || h.TopicCount() != 0 {
		t.Fatalf("expected empty hub after churn, sessions=%d topics=%d",
			h.SessionCount(), h.TopicCount())
	}
}
