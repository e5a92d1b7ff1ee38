package notify

import (
	"context"
	"log/slog"

	"github.com/opsdesk/opsdesk/internal/config"
)

// Dispatcher fans out events to all configured channels.
type Dispatcher struct {
	channels []Channel
	minPrio  string          // minimum ticket priority to notify on (empty = all)
	events   map[string]bool // event types to send (empty map = use defaults)
}

// defaultEvents is the set of event types forwarded when cfg.Events is empty.
var defaultEvents = map[string]bool{
	"ticket_created":  true,
	"ticket_assigned": true,
	"todo_due_soon":   true,
	"ticket_stale":    true,
}

// NewDispatcher creates a Dispatcher from the given config.
// Only channels with IsConfigured() == true are active.
func NewDispatcher(cfg config.NotifyConfig) *Dispatcher {
	d := &Dispatcher{
		minPrio: cfg.MinPriority,
	}
	if len(cfg.Events) > 0 {
		d.events = make(map[string]bool, len(cfg.Events))
		for _, e := range cfg.Events {
			d.events[e] = true
		}
	} else {
		d.events = defaultEvents
	}

	channels := []Channel{
		NewTelegram(cfg.Telegram),
		NewSlack(cfg.Slack),
		NewWebhook(cfg.Webhook),
		NewEmail(cfg.Email),
	}
	for _, ch := range channels {
		if ch.IsConfigured() {
			d.channels = append(d.channels, ch)
		}
	}
	return d
}

// IsAnyConfigured returns true if at least one channel is ready to send.
func (d *Dispatcher) IsAnyConfigured() bool {
	return len(d.channels) > 0
}

// Notify sends evt to all configured channels. Errors are logged but never
// returned: a notification failure must not fail the operation behind it.
func (d *Dispatcher) Notify(ctx context.Context, evt Event) {
	if !d.shouldSend(evt) {
		return
	}
	for _, ch := range d.channels {
		if err := ch.Send(ctx, evt); err != nil {
			slog.Warn("notify: channel send failed", "channel", ch.Name(), "event", evt.Type, "error", err)
		}
	}
}

func (d *Dispatcher) shouldSend(evt Event) bool {
	if len(d.events) > 0 && !d.events[evt.Type] {
		return false
	}
	if d.minPrio != "" && evt.Priority != "" {
		return priorityAtLeast(evt.Priority, d.minPrio)
	}
	return true
}

// priorityAtLeast returns true if got >= min in priority ordering.
func priorityAtLeast(got, min string) bool {
	order := map[string]int{"high": 3, "medium": 2, "low": 1}
	return order[got] >= order[min]
}
