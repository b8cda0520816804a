package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kalambet/jarvis/internal/llm"
	"github.com/kalambet/jarvis/internal/storage"
)

const digestTaskLimit = 20

const digestPrompt = `You are a friendly, proactive personal assistant. Write a short, warm good-morning message for the user based on their schedule below. Briefly summarize the day and encourage them. Keep it personal and not too long.

Schedule:
%s`

// DigestStore is the persistence surface the digest needs.
// *storage.Store satisfies it.
type DigestStore interface {
	ListUsers() ([]storage.User, error)
	ListTasks(userID string, limit int) ([]storage.Task, error)
	ListCalendarEvents(userID string, from, to time.Time) ([]storage.CalendarEvent, error)
}

// DigestDispatcher sends each user a morning summary of their open tasks and
// the day's calendar events, phrased by the model.
type DigestDispatcher struct {
	store    DigestStore
	client   llm.Invoker
	notifier Notifier
	hour     int
	logger   *slog.Logger
}

// NewDigestDispatcher builds a dispatcher that delivers daily at the given
// UTC hour. An out-of-range hour defaults to 6.
func NewDigestDispatcher(store DigestStore, client llm.Invoker, notifier Notifier, hour int) *DigestDispatcher {
	if hour < 0 || hour > 23 {
		hour = 6
	}
	return &DigestDispatcher{
		store:    store,
		client:   client,
		notifier: notifier,
		hour:     hour,
		logger:   slog.Default(),
	}
}

// Run delivers one digest per day at the configured hour until ctx is
// cancelled.
func (d *DigestDispatcher) Run(ctx context.Context) {
	for {
		timer := time.NewTimer(time.Until(nextDigestTime(time.Now().UTC(), d.hour)))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			d.DispatchDigests(ctx, time.Now().UTC())
		}
	}
}

func nextDigestTime(now time.Time, hour int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next
}

// DispatchDigests builds and sends a digest for every user with something on
// their plate in the 24 hours from now. Per-user failures are logged and do
// not stop the sweep.
func (d *DigestDispatcher) DispatchDigests(ctx context.Context, now time.Time) {
	users, err := d.store.ListUsers()
	if err != nil {
		d.logger.Error("listing users for digest failed", "error", err)
		return
	}

	for _, u := range users {
		schedule, err := d.buildSchedule(u.ID, now)
		if err != nil {
			d.logger.Error("building digest failed", "user_id", u.ID, "error", err)
			continue
		}
		if schedule == "" {
			continue
		}

		text, err := d.client.Invoke(ctx, []llm.Message{
			{Role: llm.RoleSystem, Content: fmt.Sprintf(digestPrompt, schedule)},
		})
		if err != nil || text == "" {
			d.logger.Warn("digest phrasing failed, sending raw schedule", "user_id", u.ID, "error", err)
			text = schedule
		}

		if err := d.notifier.Notify(u.TelegramID, text); err != nil {
			d.logger.Error("digest delivery failed", "user_id", u.ID, "error", err)
		}
	}
}

// buildSchedule returns the user's open tasks and next-24h events as plain
// text, or empty when there is nothing to report.
func (d *DigestDispatcher) buildSchedule(userID string, now time.Time) (string, error) {
	tasks, err := d.store.ListTasks(userID, digestTaskLimit)
	if err != nil {
		return "", fmt.Errorf("listing tasks: %w", err)
	}
	events, err := d.store.ListCalendarEvents(userID, now, now.Add(24*time.Hour))
	if err != nil {
		return "", fmt.Errorf("listing events: %w", err)
	}

	var open []storage.Task
	for _, t := range tasks {
		if !t.Done {
			open = append(open, t)
		}
	}
	if len(open) == 0 && len(events) == 0 {
		return "", nil
	}

	var b strings.Builder
	b.WriteString("Today's schedule:\n")
	if len(events) > 0 {
		b.WriteString("\nEvents:\n")
		for _, e := range events {
			b.WriteString("- " + e.StartTime.Format("15:04") + ": " + e.Title)
			if e.Location != "" {
				b.WriteString(" (" + e.Location + ")")
			}
			b.WriteString("\n")
		}
	}
	if len(open) > 0 {
		b.WriteString("\nOpen tasks:\n")
		for _, t := range open {
			b.WriteString("- " + t.Title + " (priority: " + t.Priority + ")\n")
		}
	}
	return b.String(), nil
}
