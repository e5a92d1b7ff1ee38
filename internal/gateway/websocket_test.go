package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/opsdesk/opsdesk/models"
)

// wsClient wraps a dialed test connection with frame helpers.
type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func dialWS(t *testing.T, ts *httptest.Server, token string) *wsClient {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, token), nil)
	if err != nil {
		t.Fatalf("dialing: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return &wsClient{t: t, conn: conn}
}

// readFrame reads the next JSON frame with a short deadline.
func (c *wsClient) readFrame() map[string]any {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		c.t.Fatalf("reading frame: %v", err)
	}
	var frame map[string]any
	if err := json.Unmarshal(data, &frame); err != nil {
		c.t.Fatalf("decoding frame %q: %v", data, err)
	}
	return frame
}

// expectClose asserts the next read fails with the given close code.
func (c *wsClient) expectClose(code int) {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := c.conn.ReadMessage()
	var closeErr *websocket.CloseError
	if !errors.As(err, &closeErr) {
		c.t.Fatalf("expected close error, got %v", err)
	}
	if closeErr.Code != code {
		c.t.Fatalf("close code = %d, want %d", closeErr.Code, code)
	}
}

func (c *wsClient) send(v any) {
	c.t.Helper()
	if err := c.conn.WriteJSON(v); err != nil {
		c.t.Fatalf("sending: %v", err)
	}
}

func TestWebSocketRejectsMissingToken(t *testing.T) {
	_, ts := newTestGateway(t)
	c := dialWS(t, ts, "")
	c.expectClose(websocket.ClosePolicyViolation)
}

func TestWebSocketRejectsInvalidToken(t *testing.T) {
	_, ts := newTestGateway(t)
	c := dialWS(t, ts, "definitely-not-a-jwt")
	c.expectClose(websocket.ClosePolicyViolation)
}

func TestWebSocketWelcomeAndPing(t *testing.T) {
	gw, ts := newTestGateway(t)
	tok := login(t, ts, "user", "user")

	c := dialWS(t, ts, tok)
	welcome := c.readFrame()
	if welcome["type"] != "connected" {
		t.Fatalf("welcome type = %v", welcome["type"])
	}
	if welcome["user_id"] != "uid-user" {
		t.Fatalf("welcome user_id = %v", welcome["user_id"])
	}
	if gw.hub.SessionCount() != 1 {
		t.Fatalf("session count = %d after connect", gw.hub.SessionCount())
	}

	c.send(map[string]string{"type": "ping"})
	if frame := c.readFrame(); frame["type"] != "pong" {
		t.Fatalf("ping reply = %v", frame)
	}
}

func TestWebSocketControlErrors(t *testing.T) {
	_, ts := newTestGateway(t)
	tok := login(t, ts, "user", "user")

	c := dialWS(t, ts, tok)
	c.readFrame() // welcome

	// Raw garbage gets an error reply, not a disconnect.
	if err := c.conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("sending garbage: %v", err)
	}
	if frame := c.readFrame(); frame["type"] != "error" {
		t.Fatalf("garbage reply = %v", frame)
	}

	c.send(map[string]string{"type": "subscribe_ticket"})
	if frame := c.readFrame(); frame["type"] != "error" {
		t.Fatalf("missing ticket_id reply = %v", frame)
	}

	c.send(map[string]string{"type": "warp_drive"})
	if frame := c.readFrame(); frame["type"] != "error" {
		t.Fatalf("unknown type reply = %v", frame)
	}

	// Session is still alive.
	c.send(map[string]string{"type": "ping"})
	if frame := c.readFrame(); frame["type"] != "pong" {
		t.Fatalf("session dead after control errors: %v", frame)
	}
}

func TestWebSocketTicketEventsFanOut(t *testing.T) {
	_, ts := newTestGateway(t)
	userTok := login(t, ts, "user", "user")
	itTok := login(t, ts, "it", "it")

	userWS := dialWS(t, ts, userTok)
	userWS.readFrame() // welcome
	staffWS := dialWS(t, ts, itTok)
	staffWS.readFrame() // welcome

	// Creating a ticket broadcasts to everyone and notifies staff with a
	// message line on top.
	var created models.Ticket
	if code := doJSON(t, ts, userTok, http.MethodPost, "/api/tickets",
		map[string]string{"title": "Broken scanner"}, &created); code != http.StatusCreated {
		t.Fatalf("creating ticket: status %d", code)
	}

	if frame := userWS.readFrame(); frame["type"] != "ticket_created" {
		t.Fatalf("user frame = %v", frame)
	}
	first := staffWS.readFrame()
	second := staffWS.readFrame()
	if first["type"] != "ticket_created" || second["type"] != "ticket_created" {
		t.Fatalf("staff frames = %v / %v", first, second)
	}
	if first["message"] == nil && second["message"] == nil {
		t.Fatal("staff never received the notification variant")
	}

	// Only subscribers and the creator hear about updates.
	staffWS.send(map[string]string{"type": "subscribe_ticket", "ticket_id": created.ID})
	if frame := staffWS.readFrame(); frame["type"] != "subscribed" {
		t.Fatalf("subscribe ack = %v", frame)
	}

	if code := doJSON(t, ts, itTok, http.MethodPut, "/api/tickets/"+created.ID,
		map[string]string{"status": "in_progress"}, nil); code != http.StatusOK {
		t.Fatalf("updating ticket: status %d", code)
	}
	if frame := staffWS.readFrame(); frame["type"] != "ticket_updated" {
		t.Fatalf("subscriber frame = %v", frame)
	}
	if frame := userWS.readFrame(); frame["type"] != "ticket_updated" {
		t.Fatalf("creator frame = %v", frame)
	}

	// After unsubscribing, deletion is still broadcast to everyone.
	staffWS.send(map[string]string{"type": "unsubscribe_ticket", "ticket_id": created.ID})
	if frame := staffWS.readFrame(); frame["type"] != "unsubscribed" {
		t.Fatalf("unsubscribe ack = %v", frame)
	}

	if code := doJSON(t, ts, itTok, http.MethodDelete, "/api/tickets/"+created.ID, nil, nil); code != http.StatusOK {
		t.Fatalf("deleting ticket: status %d", code)
	}
	if frame := staffWS.readFrame(); frame["type"] != "ticket_deleted" {
		t.Fatalf("staff delete frame = %v", frame)
	}
	if frame := userWS.readFrame(); frame["type"] != "ticket_deleted" {
		t.Fatalf("user delete frame = %v", frame)
	}
}

func TestWebSocketBlockedUserDisconnected(t *testing.T) {
	gw, ts := newTestGateway(t)
	adminTok := login(t, ts, "admin", "admin")
	userTok := login(t, ts, "user", "user")

	c := dialWS(t, ts, userTok)
	c.readFrame() // welcome

	if code := doJSON(t, ts, adminTok, http.MethodPut, "/api/users/uid-user/block", nil, nil); code != http.StatusOK {
		t.Fatalf("blocking: status %d", code)
	}

	// The user hears user_blocked and is then disconnected.
	if frame := c.readFrame(); frame["type"] != "user_blocked" {
		t.Fatalf("blocked frame = %v", frame)
	}
	c.expectClose(websocket.ClosePolicyViolation)

	if gw.hub.SessionCount() != 0 {
		t.Fatalf("session count = %d after block", gw.hub.SessionCount())
	}

	// Reconnecting with the still-valid token is refused.
	c2 := dialWS(t, ts, userTok)
	c2.expectClose(websocket.ClosePolicyViolation)
}
