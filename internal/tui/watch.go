// Package tui implements the terminal client that follows the live event
// stream of a running opsdesk server.
package tui

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
)

// entry is one rendered line in the event log.
type entry struct {
	at   time.Time
	kind string
	line string
}

// Watch is the bubbletea model behind 'opsdesk watch'.
type Watch struct {
	wsURL     string
	serverURL string

	conn    *websocket.Conn
	frames  chan map[string]any
	entries []entry
	userID  string

	connected bool
	err       error
	width     int
	height    int
}

// NewWatch creates a watch client for the given WebSocket URL. serverURL is
// only shown in the status bar.
func NewWatch(wsURL, serverURL string) *Watch {
	return &Watch{
		wsURL:     wsURL,
		serverURL: serverURL,
		frames:    make(chan map[string]any, 64),
	}
}

// Run starts the bubbletea program and blocks until quit.
func (w *Watch) Run() error {
	p := tea.NewProgram(w, tea.WithAltScreen())
	_, err := p.Run()
	if err != nil {
		return err
	}
	if w.err != nil {
		return w.err
	}
	return nil
}

type connectedMsg struct{ conn *websocket.Conn }
type frameMsg map[string]any
type closedMsg struct{ err error }

// Init implements tea.Model.
func (w *Watch) Init() tea.Cmd {
	return w.connect
}

// connect dials the server and starts the read pump.
func (w *Watch) connect() tea.Msg {
	conn, _, err := websocket.DefaultDialer.Dial(w.wsURL, nil)
	if err != nil {
		return closedMsg{err: fmt.Errorf("connecting to %s: %w", w.serverURL, err)}
	}

	go func() {
		defer close(w.frames)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var frame map[string]any
			if json.Unmarshal(data, &frame) != nil {
				continue
			}
			w.frames <- frame
		}
	}()

	return connectedMsg{conn: conn}
}

// waitFrame blocks for the next server frame.
func (w *Watch) waitFrame() tea.Msg {
	frame, ok := <-w.frames
	if !ok {
		return closedMsg{}
	}
	return frameMsg(frame)
}

// Update implements tea.Model.
func (w *Watch) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		w.width = msg.Width
		w.height = msg.Height

	case connectedMsg:
		w.conn = msg.conn
		w.connected = true
		return w, w.waitFrame

	case frameMsg:
		w.apply(map[string]any(msg))
		return w, w.waitFrame

	case closedMsg:
		w.connected = false
		if msg.err != nil {
			w.err = msg.err
			return w, tea.Quit
		}
		w.push("disconnected", "connection closed by server")

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if w.conn != nil {
				_ = w.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				_ = w.conn.Close()
			}
			return w, tea.Quit
		case "p":
			if w.conn != nil {
				_ = w.conn.WriteJSON(map[string]string{"type": "ping"})
			}
		}
	}
	return w, nil
}

// apply turns one server frame into a log entry.
func (w *Watch) apply(frame map[string]any) {
	kind, _ := frame["type"].(string)
	switch kind {
	case "connected":
		w.userID, _ = frame["user_id"].(string)
		w.push(kind, "authenticated, streaming events")
	case "pong":
		w.push(kind, "server is alive")
	default:
		w.push(kind, describeEvent(kind, frame))
	}
}

func (w *Watch) push(kind, line string) {
	w.entries = append(w.entries, entry{at: time.Now(), kind: kind, line: line})
	if len(w.entries) > 500 {
		w.entries = w.entries[len(w.entries)-500:]
	}
}

// describeEvent renders a one-line human summary of an event payload.
func describeEvent(kind string, frame map[string]any) string {
	switch kind {
	case "ticket_created", "ticket_updated", "ticket_assigned", "ticket_stale":
		if t, ok := frame["ticket"].(map[string]any); ok {
			title, _ := t["title"].(string)
			status, _ := t["status"].(string)
			priority, _ := t["priority"].(string)
			return fmt.Sprintf("%s [%s/%s]", title, priority, status)
		}
	case "ticket_deleted":
		if id, ok := frame["ticket_id"].(string); ok {
			return "ticket " + id
		}
	case "comment_added":
		if c, ok := frame["comment"].(map[string]any); ok {
			author, _ := c["author_name"].(string)
			text, _ := c["text"].(string)
			return fmt.Sprintf("%s: %s", author, text)
		}
	case "todo_created", "todo_updated", "todo_due_soon":
		if t, ok := frame["todo"].(map[string]any); ok {
			title, _ := t["title"].(string)
			status, _ := t["status"].(string)
			return fmt.Sprintf("%s [%s]", title, status)
		}
	case "todo_deleted":
		if id, ok := frame["todo_id"].(string); ok {
			return "todo " + id
		}
	case "inventory_created", "inventory_updated":
		if item, ok := frame["item"].(map[string]any); ok {
			name, _ := item["name"].(string)
			status, _ := item["status"].(string)
			return fmt.Sprintf("%s [%s]", name, status)
		}
	case "user_blocked":
		return "your account was blocked"
	case "error":
		if m, ok := frame["message"].(string); ok {
			return m
		}
	}
	if m, ok := frame["message"].(string); ok {
		return m
	}
	data, _ := json.Marshal(frame)
	return string(data)
}

// View implements tea.Model.
func (w *Watch) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("opsdesk watch"))
	b.WriteString("\n\n")

	visible := w.height - 5
	if visible < 5 {
		visible = 5
	}
	start := 0
	if len(w.entries) > visible {
		start = len(w.entries) - visible
	}
	if len(w.entries) == 0 {
		b.WriteString(dimStyle.Render("  waiting for events..."))
		b.WriteString("\n")
	}
	for _, e := range w.entries[start:] {
		b.WriteString(fmt.Sprintf(" %s %s %s\n",
			timeStyle.Render(e.at.Format("15:04:05")),
			eventStyle(e.kind).Render(fmt.Sprintf("%-18s", e.kind)),
			e.line))
	}

	status := w.serverURL
	if w.connected {
		status = okStyle.Render("● ") + status
	} else {
		status = errStyle.Render("○ ") + status
	}
	if w.userID != "" {
		status += dimStyle.Render("  user: " + w.userID)
	}
	status += dimStyle.Render("  [p] ping  [q] quit")

	b.WriteString("\n")
	b.WriteString(statusBarStyle.Width(max(w.width-2, 20)).Render(status))
	return b.String()
}
