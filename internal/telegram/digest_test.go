package telegram

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/jarvis/internal/llm"
	"github.com/kalambet/jarvis/internal/storage"
)

type fakeModel struct {
	reply   string
	err     error
	prompts []string
}

func (m *fakeModel) Invoke(_ context.Context, msgs []llm.Message) (string, error) {
	for _, msg := range msgs {
		m.prompts = append(m.prompts, msg.Content)
	}
	if m.err != nil {
		return "", m.err
	}
	return m.reply, nil
}

func createTask(t *testing.T, store *storage.Store, userID, title, priority string, done bool) {
	t.Helper()
	err := store.CreateTask(storage.Task{
		ID:        uuid.New().String(),
		UserID:    userID,
		Title:     title,
		Priority:  priority,
		Done:      done,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
}

func createEvent(t *testing.T, store *storage.Store, userID, title, location string, start time.Time) {
	t.Helper()
	err := store.CreateCalendarEvent(storage.CalendarEvent{
		ID:        uuid.New().String(),
		UserID:    userID,
		Title:     title,
		Location:  location,
		StartTime: start,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateCalendarEvent: %v", err)
	}
}

func TestDispatchDigests_SendsModelMessage(t *testing.T) {
	store, user := newDispatcherFixture(t)
	now := time.Date(2026, 8, 31, 6, 0, 0, 0, time.UTC)

	createTask(t, store, user.ID, "Buy milk", "high", false)
	createEvent(t, store, user.ID, "Standup", "office", now.Add(3*time.Hour))

	model := &fakeModel{reply: "Good morning! Busy day ahead."}
	notifier := &fakeNotifier{}
	d := NewDigestDispatcher(store, model, notifier, 6)
	d.DispatchDigests(context.Background(), now)

	if len(notifier.sent) != 1 {
		t.Fatalf("delivered %d digests, want 1", len(notifier.sent))
	}
	if notifier.sent[0] != "Good morning! Busy day ahead." {
		t.Errorf("message = %q", notifier.sent[0])
	}
	if notifier.ids[0] != user.TelegramID {
		t.Errorf("delivered to %d, want %d", notifier.ids[0], user.TelegramID)
	}

	if len(model.prompts) != 1 {
		t.Fatalf("model prompts = %d, want 1", len(model.prompts))
	}
	prompt := model.prompts[0]
	if !strings.Contains(prompt, "Buy milk (priority: high)") {
		t.Errorf("prompt missing the task: %q", prompt)
	}
	if !strings.Contains(prompt, "09:00: Standup (office)") {
		t.Errorf("prompt missing the event: %q", prompt)
	}
}

func TestDispatchDigests_SkipsQuietUsers(t *testing.T) {
	store, user := newDispatcherFixture(t)
	now := time.Date(2026, 8, 31, 6, 0, 0, 0, time.UTC)

	createTask(t, store, user.ID, "Old chore", "low", true)
	createEvent(t, store, user.ID, "Next week", "", now.Add(48*time.Hour))

	model := &fakeModel{reply: "unused"}
	notifier := &fakeNotifier{}
	d := NewDigestDispatcher(store, model, notifier, 6)
	d.DispatchDigests(context.Background(), now)

	if len(model.prompts) != 0 {
		t.Errorf("model called %d times for a quiet user", len(model.prompts))
	}
	if len(notifier.sent) != 0 {
		t.Errorf("delivered %d digests, want 0", len(notifier.sent))
	}
}

func TestDispatchDigests_ModelFailureFallsBackToSchedule(t *testing.T) {
	store, user := newDispatcherFixture(t)
	now := time.Date(2026, 8, 31, 6, 0, 0, 0, time.UTC)

	createTask(t, store, user.ID, "Water the plants", "medium", false)

	model := &fakeModel{err: errors.New("model down")}
	notifier := &fakeNotifier{}
	d := NewDigestDispatcher(store, model, notifier, 6)
	d.DispatchDigests(context.Background(), now)

	if len(notifier.sent) != 1 {
		t.Fatalf("delivered %d digests, want 1", len(notifier.sent))
	}
	if !strings.Contains(notifier.sent[0], "Water the plants") {
		t.Errorf("fallback message = %q, want the raw schedule", notifier.sent[0])
	}
}

// failForNotifier rejects delivery to one telegram id and accepts the rest.
type failForNotifier struct {
	fakeNotifier
	failFor int64
}

func (n *failForNotifier) Notify(telegramID int64, text string) error {
	if telegramID == n.failFor {
		return errors.New("chat unreachable")
	}
	return n.fakeNotifier.Notify(telegramID, text)
}

func TestDispatchDigests_DeliveryFailureDoesNotStopSweep(t *testing.T) {
	store, first := newDispatcherFixture(t)
	second, err := store.GetOrCreateUser(778, "other", "Other")
	if err != nil {
		t.Fatalf("GetOrCreateUser: %v", err)
	}
	now := time.Date(2026, 8, 31, 6, 0, 0, 0, time.UTC)

	createTask(t, store, first.ID, "First's task", "low", false)
	createTask(t, store, second.ID, "Second's task", "low", false)

	model := &fakeModel{reply: "Morning!"}
	notifier := &failForNotifier{failFor: first.TelegramID}
	d := NewDigestDispatcher(store, model, notifier, 6)
	d.DispatchDigests(context.Background(), now)

	if len(notifier.sent) != 1 {
		t.Fatalf("delivered %d digests, want 1", len(notifier.sent))
	}
	if notifier.ids[0] != second.TelegramID {
		t.Errorf("delivered to %d, want %d", notifier.ids[0], second.TelegramID)
	}
}

func TestNextDigestTime(t *testing.T) {
	now := time.Date(2026, 8, 31, 5, 30, 0, 0, time.UTC)
	if got := nextDigestTime(now, 6); !got.Equal(time.Date(2026, 8, 31, 6, 0, 0, 0, time.UTC)) {
		t.Errorf("nextDigestTime before the hour = %v", got)
	}
	if got := nextDigestTime(now, 5); !got.Equal(time.Date(2026, 9, 1, 5, 0, 0, 0, time.UTC)) {
		t.Errorf("nextDigestTime after the hour = %v", got)
	}
}
