package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kalambet/jarvis/internal/storage"
)

// ReminderStore is the persistence surface the dispatcher needs.
// *storage.Store satisfies it.
type ReminderStore interface {
	ListDueReminders(now time.Time) ([]storage.Reminder, error)
	MarkReminderSent(id string) error
	GetUser(id string) (storage.User, error)
}

// Notifier delivers reminder text to a Telegram user. *Bot satisfies it.
type Notifier interface {
	Notify(telegramID int64, text string) error
}

// ReminderDispatcher polls for due reminders and delivers them.
type ReminderDispatcher struct {
	store    ReminderStore
	notifier Notifier
	interval time.Duration
	logger   *slog.Logger
}

// NewReminderDispatcher builds a dispatcher polling at the given interval.
// A non-positive interval defaults to 30 seconds.
func NewReminderDispatcher(store ReminderStore, notifier Notifier, interval time.Duration) *ReminderDispatcher {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &ReminderDispatcher{
		store:    store,
		notifier: notifier,
		interval: interval,
		logger:   slog.Default(),
	}
}

// Run polls until ctx is cancelled.
func (d *ReminderDispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.DispatchDue(time.Now().UTC())
		}
	}
}

// DispatchDue delivers every reminder due at the given time. Delivery
// failures leave the reminder unsent so the next poll retries it.
func (d *ReminderDispatcher) DispatchDue(now time.Time) {
	due, err := d.store.ListDueReminders(now)
	if err != nil {
		d.logger.Error("listing due reminders failed", "error", err)
		return
	}

	for _, rem := range due {
		user, err := d.store.GetUser(rem.UserID)
		if err != nil {
			d.logger.Error("loading reminder user failed", "reminder_id", rem.ID, "error", err)
			continue
		}

		text := fmt.Sprintf("Reminder: %s", rem.Title)
		if rem.Message != "" {
			text = fmt.Sprintf("Reminder: %s\n%s", rem.Title, rem.Message)
		}

		if err := d.notifier.Notify(user.TelegramID, text); err != nil {
			d.logger.Warn("reminder delivery failed", "reminder_id", rem.ID, "error", err)
			continue
		}
		if err := d.store.MarkReminderSent(rem.ID); err != nil {
			d.logger.Error("marking reminder sent failed", "reminder_id", rem.ID, "error", err)
		}
	}
}
