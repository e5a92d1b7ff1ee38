package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/opsdesk/opsdesk/internal/notify"
	"github.com/opsdesk/opsdesk/internal/realtime"
	"github.com/opsdesk/opsdesk/models"
)

// startReminders schedules the periodic reminder sweep.
func (gw *Gateway) startReminders() error {
	schedule := gw.cfg.Reminders.Schedule
	if schedule == "" {
		schedule = "@every 15m"
	}

	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		sweepCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		gw.runReminderSweep(sweepCtx)
	}); err != nil {
		return fmt.Errorf("invalid reminder schedule %q: %w", schedule, err)
	}
	c.Start()
	gw.cron = c

	slog.Info("reminders: scheduler started", "schedule", schedule)
	return nil
}

// runReminderSweep finds todos approaching their due date and open
// high-priority tickets that have gone stale, and pushes reminders both to
// live sessions and to the notification channels.
func (gw *Gateway) runReminderSweep(ctx context.Context) {
	gw.remindDueTodos(ctx)
	gw.remindStaleTickets(ctx)
}

func (gw *Gateway) remindDueTodos(ctx context.Context) {
	horizon := gw.cfg.Reminders.DueSoonHours
	if horizon <= 0 {
		horizon = 24
	}
	cutoff := time.Now().UTC().Add(time.Duration(horizon) * time.Hour)

	var rows []models.TodoRow
	err := gw.db.Select(ctx, &rows,
		`SELECT `+todoColumns+` FROM todos
		 WHERE due_date != '' AND status NOT IN ('done', 'archived')`)
	if err != nil {
		slog.Warn("reminders: todo query failed", "error", err)
		return
	}

	now := time.Now().UTC()
	for i := range rows {
		todo := rows[i].Todo()
		due, ok := parseDueDate(todo.DueDate)
		if !ok || due.Before(now) || due.After(cutoff) {
			continue
		}

		gw.publish(ctx, realtime.NewEvent("todo_due_soon",
			realtime.ToUsers(todo.Audience()...), map[string]any{
				"todo":     todo,
				"due_date": todo.DueDate,
			}))
		gw.notifier.Notify(ctx, notify.Event{
			Type:  "todo_due_soon",
			Title: fmt.Sprintf("Todo due soon: %s", todo.Title),
			Body:  fmt.Sprintf("Due %s", todo.DueDate),
		})
	}
}

func (gw *Gateway) remindStaleTickets(ctx context.Context) {
	horizon := gw.cfg.Reminders.StaleTicketHours
	if horizon <= 0 {
		horizon = 48
	}
	cutoff := time.Now().UTC().Add(-time.Duration(horizon) * time.Hour).Format(time.RFC3339)

	var tickets []models.Ticket
	err := gw.db.Select(ctx, &tickets,
		`SELECT `+ticketColumns+` FROM tickets
		 WHERE status = 'open' AND priority = 'high' AND created_at < ?`, cutoff)
	if err != nil {
		slog.Warn("reminders: ticket query failed", "error", err)
		return
	}

	for i := range tickets {
		t := &tickets[i]
		payload := map[string]any{"ticket": t}
		for _, role := range models.StaffRoles {
			gw.publish(ctx, realtime.NewEvent("ticket_stale", realtime.ToRole(role), payload))
		}
		gw.notifier.Notify(ctx, notify.Event{
			Type:     "ticket_stale",
			Title:    fmt.Sprintf("High-priority ticket still open: %s", t.Title),
			Body:     fmt.Sprintf("Opened %s, no resolution yet", t.CreatedAt),
			Priority: string(t.Priority),
			TicketID: t.ID,
		})
	}
	if len(tickets) > 0 {
		slog.Info("reminders: stale tickets flagged", "count", len(tickets))
	}
}

// parseDueDate accepts both full RFC3339 timestamps and bare dates.
func parseDueDate(s string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		// A date-only deadline means end of that day.
		return t.Add(24*time.Hour - time.Second), true
	}
	return time.Time{}, false
}
