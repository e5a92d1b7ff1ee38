package realtime

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/opsdesk/opsdesk/models"
)

func decodeFrame(t *testing.T, frame []byte) map[string]any {
	t.Helper()
	var obj map[string]any
	if err := json.Unmarshal(frame, &obj); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	return obj
}

func TestUnicastReachesAllSessionsOfUser(t *testing.T) {
	h := NewHub()
	_, tr1 := openSession(t, h, "u1", models.RoleUser)
	_, tr2 := openSession(t, h, "u1", models.RoleUser)
	_, tr3 := openSession(t, h, "u2", models.RoleUser)

	h.Deliver(context.Background(), NewEvent("ticket_updated", ToUser("u1"), map[string]any{"ticket_id": "t1"}))

	if tr1.frameCount() != 1 || tr2.frameCount() != 1 {
		t.Fatalf("expected both u1 sessions to receive the event, got %d/%d",
			tr1.frameCount(), tr2.frameCount())
	}
	if tr3.frameCount() != 0 {
		t.Fatalf("u2 must not receive a unicast for u1, got %d frames", tr3.frameCount())
	}

	obj := decodeFrame(t, tr1.frames[0])
	if obj["type"] != "ticket_updated" || obj["ticket_id"] != "t1" {
		t.Fatalf("unexpected wire frame: %v", obj)
	}
}

func TestTopicDeliveryOnlyReachesSubscribers(t *testing.T) {
	h := NewHub()
	sa, trA := openSession(t, h, "a", models.RoleUser)
	sb, trB := openSession(t, h, "b", models.RoleUser)
	_, trC := openSession(t, h, "c", models.RoleUser)

	h.Subscribe(sa, "ticket-42")
	h.Subscribe(sb, "ticket-42")

	h.Deliver(context.Background(), NewEvent("comment_added", ToTopic("ticket-42"), nil))

	if trA.frameCount() != 1 || trB.frameCount() != 1 {
		t.Fatalf("expected subscribers to receive the event, got %d/%d",
			trA.frameCount(), trB.frameCount())
	}
	if trC.frameCount() != 0 {
		t.Fatal("non-subscriber must not receive topic events")
	}
}

func TestRoleDeliveryReachesExactlyThatRole(t *testing.T) {
	h := NewHub()
	_, it1 := openSession(t, h, "u1", models.RoleIT)
	_, it2 := openSession(t, h, "u2", models.RoleIT)
	_, admin := openSession(t, h, "u3", models.RoleAdmin)
	_, user := openSession(t, h, "u4", models.RoleUser)

	h.Deliver(context.Background(), NewEvent("ticket_created", ToRole(models.RoleIT), nil))

	if it1.frameCount() != 1 || it2.frameCount() != 1 {
		t.Fatalf("expected both it sessions notified, got %d/%d", it1.frameCount(), it2.frameCount())
	}
	if admin.frameCount() != 0 || user.frameCount() != 0 {
		t.Fatal("role delivery must not leak to other roles")
	}
}

func TestBroadcastReachesEveryone(t *testing.T) {
	h := NewHub()
	transports := make([]*fakeTransport, 0, 5)
	roles := []models.Role{models.RoleAdmin, models.RoleIT, models.RoleUser, models.RoleUser, models.RoleIT}
	for i, role := range roles {
		_, tr := openSession(t, h, string(rune('a'+i)), role)
		transports = append(transports, tr)
	}

	h.Deliver(context.Background(), NewEvent("ticket_deleted", ToAll(), map[string]any{"ticket_id": "t9"}))

	for i, tr := range transports {
		if tr.frameCount() != 1 {
			t.Fatalf("session %d expected 1 frame, got %d", i, tr.frameCount())
		}
	}
}

func TestMulticastDeduplicatesUsers(t *testing.T) {
	h := NewHub()
	_, tr1 := openSession(t, h, "u1", models.RoleUser)
	_, tr2 := openSession(t, h, "u2", models.RoleUser)
	_, tr3 := openSession(t, h, "u3", models.RoleUser)

	h.Deliver(context.Background(), NewEvent("todo_updated", ToUsers("u1", "u2", "u1"), nil))

	if tr1.frameCount() != 1 {
		t.Fatalf("duplicate user ids must not duplicate delivery, got %d frames", tr1.frameCount())
	}
	if tr2.frameCount() != 1 || tr3.frameCount() != 0 {
		t.Fatalf("unexpected multicast fan-out: %d/%d", tr2.frameCount(), tr3.frameCount())
	}
}

func TestFailingSessionIsEvictedOthersUnaffected(t *testing.T) {
	h := NewHub()
	sessions := make([]*Session, 0, 4)
	transports := make([]*fakeTransport, 0, 4)
	for i := 0; i < 4; i++ {
		s, tr := openSession(t, h, string(rune('a'+i)), models.RoleUser)
		h.Subscribe(s, "ticket-7")
		sessions = append(sessions, s)
		transports = append(transports, tr)
	}
	transports[2].failWrites = true

	h.Deliver(context.Background(), NewEvent("ticket_updated", ToTopic("ticket-7"), nil))

	for i, tr := range transports {
		if i == 2 {
			continue
		}
		if tr.frameCount() != 1 {
			t.Fatalf("healthy session %d should have received the event", i)
		}
	}

	// Exactly the failing session is evicted everywhere.
	if h.SessionCount() != 3 {
		t.Fatalf("expected 3 sessions after eviction, got %d", h.SessionCount())
	}
	if sessions[2].State() != StateClosed {
		t.Fatalf("expected failing session closed, got %v", sessions[2].State())
	}
	if !transports[2].wasClosed() {
		t.Fatal("expected failing transport to be closed")
	}
	if got := len(h.SessionsForTopic("ticket-7")); got != 3 {
		t.Fatalf("expected failing session removed from topic, got %d subscribers", got)
	}

	// A later delivery still works and does not touch the evicted session.
	h.Deliver(context.Background(), NewEvent("ticket_updated", ToTopic("ticket-7"), nil))
	if transports[2].frameCount() != 0 {
		t.Fatal("evicted session must not receive later events")
	}
}

func TestNoCrossTalkAfterUnsubscribe(t *testing.T) {
	h := NewHub()
	s, tr := openSession(t, h, "u1", models.RoleUser)

	h.Subscribe(s, "ticket-3")
	h.Unsubscribe(s, "ticket-3")

	h.Deliver(context.Background(), NewEvent("comment_added", ToTopic("ticket-3"), nil))
	if tr.frameCount() != 0 {
		t.Fatal("unsubscribed session must not receive topic events")
	}
}

func TestDeliverSkipsNonOpenSessionWithoutIO(t *testing.T) {
	h := NewHub()
	s, tr := openSession(t, h, "u1", models.RoleUser)

	// Close the session without unregistering: deliver must check the
	// state enum, skip the write, and not treat the skip as a failure.
	s.Close(1000, "bye")
	h.Deliver(context.Background(), NewEvent("ticket_created", ToUser("u1"), nil))

	if tr.frameCount() != 0 {
		t.Fatal("no I/O expected against a closed session")
	}
}

func TestDeliverToOfflineUserIsNoop(t *testing.T) {
	h := NewHub()
	// Never queued, never an error.
	h.Deliver(context.Background(), NewEvent("ticket_created", ToUser("ghost"), nil))
	h.Deliver(context.Background(), NewEvent("ticket_created", ToTopic("no-such-topic"), nil))
}

func TestDeliverHonoursContextCancellation(t *testing.T) {
	h := NewHub()
	_, tr := openSession(t, h, "u1", models.RoleUser)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h.Deliver(ctx, NewEvent("ticket_created", ToUser("u1"), nil))

	if tr.frameCount() != 0 {
		t.Fatal("expected no sends after context cancellation")
	}
	// The session must still be registered: cancellation is not a failure.
	if h.SessionCount() != 1 {
		t.Fatalf("expected session to survive cancelled delivery, got %d", h.SessionCount())
	}
}
