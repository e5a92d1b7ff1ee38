package notify

import "context"

// Event is an outbound notification about a helpdesk state change. It is a
// side channel fed by the same domain events as the WebSocket fan-out;
// delivery here is equally best-effort.
type Event struct {
	Type     string // "ticket_created" | "ticket_assigned" | "comment_added" | "todo_due_soon" | "ticket_stale"
	Title    string
	Body     string
	Priority string // "high" | "medium" | "low" | ""
	TicketID string // optional ticket reference
	ChatID   string // optional per-user Telegram chat override
}

// Channel is implemented by each notification provider.
type Channel interface {
	Name() string
	IsConfigured() bool
	Send(ctx context.Context, evt Event) error
}
