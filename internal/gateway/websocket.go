package gateway

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/opsdesk/opsdesk/internal/realtime"
	"github.com/opsdesk/opsdesk/models"
)

const (
	wsWriteTimeout = 10 * time.Second

	// Control messages are tiny; anything larger is a misbehaving client.
	wsReadLimit = 4 << 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Tokens authenticate the connection; the API is served to native and
	// web clients on arbitrary origins.
	CheckOrigin: func(*http.Request) bool { return true },
}

// wsTransport adapts a gorilla connection to realtime.Transport. Gorilla
// allows only one concurrent writer, so every write path (hub delivery,
// control replies, close frames) goes through one mutex.
type wsTransport struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (t *wsTransport) WriteMessage(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_ = t.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *wsTransport) Close(code int, reason string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	msg := websocket.FormatCloseMessage(code, reason)
	_ = t.conn.SetWriteDeadline(time.Now().Add(time.Second))
	_ = t.conn.WriteMessage(websocket.CloseMessage, msg)
	return t.conn.Close()
}

func (t *wsTransport) writeJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return t.WriteMessage(data)
}

// controlMessage is what clients may send over an open socket. Everything
// else flows server to client.
type controlMessage struct {
	Type     string `json:"type"`
	TicketID string `json:"ticket_id"`
}

// handleWebSocket admits one client connection. The upgrade happens before
// the credential check so a bad token yields a proper close frame (1008)
// instead of a failed handshake the client cannot distinguish from a network
// error.
func (gw *Gateway) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("ws: upgrade failed", "error", err)
		return
	}
	transport := &wsTransport{conn: conn}

	token := r.URL.Query().Get("token")
	if token == "" {
		_ = transport.Close(websocket.ClosePolicyViolation, "missing token")
		return
	}
	ident, err := gw.tokens.Verify(token)
	if err != nil {
		_ = transport.Close(websocket.ClosePolicyViolation, "invalid token")
		return
	}

	// Token-holding but since-blocked accounts are turned away here.
	var user models.User
	err = gw.db.Get(r.Context(), &user,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, ident.UserID)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && user.Blocked) {
		_ = transport.Close(websocket.ClosePolicyViolation, "account unavailable")
		return
	}
	if err != nil {
		slog.Error("ws: user lookup failed", "error", err)
		_ = transport.Close(websocket.CloseInternalServerErr, "internal error")
		return
	}

	sess := realtime.NewSession(transport, ident.UserID, ident.Role)
	gw.hub.Register(sess)
	defer func() {
		gw.hub.Unregister(sess)
		sess.Close(websocket.CloseNormalClosure, "")
	}()

	if err := transport.writeJSON(map[string]any{
		"type":    "connected",
		"user_id": ident.UserID,
	}); err != nil {
		return
	}

	slog.Debug("ws: session opened", "user_id", ident.UserID, "role", ident.Role)

	conn.SetReadLimit(wsReadLimit)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		gw.handleControl(sess, transport, data)
	}
}

// handleControl processes one client control frame. Malformed input gets an
// error reply on the same socket; it never tears the session down.
func (gw *Gateway) handleControl(sess *realtime.Session, transport *wsTransport, data []byte) {
	var msg controlMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		_ = transport.writeJSON(map[string]string{"type": "error", "message": "invalid message"})
		return
	}

	switch msg.Type {
	case "subscribe_ticket":
		if msg.TicketID == "" {
			_ = transport.writeJSON(map[string]string{"type": "error", "message": "ticket_id is required"})
			return
		}
		gw.hub.Subscribe(sess, ticketTopic(msg.TicketID))
		_ = transport.writeJSON(map[string]string{"type": "subscribed", "ticket_id": msg.TicketID})

	case "unsubscribe_ticket":
		if msg.TicketID == "" {
			_ = transport.writeJSON(map[string]string{"type": "error", "message": "ticket_id is required"})
			return
		}
		gw.hub.Unsubscribe(sess, ticketTopic(msg.TicketID))
		_ = transport.writeJSON(map[string]string{"type": "unsubscribed", "ticket_id": msg.TicketID})

	case "ping":
		_ = transport.writeJSON(map[string]string{"type": "pong"})

	default:
		_ = transport.writeJSON(map[string]string{"type": "error", "message": "unknown message type"})
	}
}
