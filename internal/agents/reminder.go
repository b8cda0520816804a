package agents

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kalambet/jarvis/internal/storage"
	"github.com/kalambet/jarvis/internal/workflow"
)

const reminderExtractPrompt = `You extract reminder details from a user message. The current time is %s. Resolve relative expressions ("in an hour", "tomorrow morning") into absolute timestamps. Reply with a single JSON object, no prose:

{"title": "what to remind about", "remind_at": "2006-01-02T15:04:05Z07:00", "message": "optional reminder text or empty string"}

"title" and "remind_at" are required.`

// reminderExtraction is the expected extraction payload for the reminder
// agent. Message is optional.
type reminderExtraction struct {
	Title    string `json:"title"`
	RemindAt string `json:"remind_at"`
	Message  string `json:"message"`
}

// ReminderAgent persists reminders with model-resolved absolute timestamps.
type ReminderAgent struct {
	deps Deps
}

func (a *ReminderAgent) Handle(ctx context.Context, state *workflow.State) (string, error) {
	prompt := fmt.Sprintf(reminderExtractPrompt, a.deps.now().Format(time.RFC3339))

	var ext reminderExtraction
	if err := extractJSON(ctx, a.deps.Client, prompt, state.LastUserMessage(), &ext); err != nil {
		slog.Warn("reminder extraction failed", "error", err)
		return "Sorry, I couldn't work out the reminder details. Could you rephrase?", nil
	}
	if ext.Title == "" || ext.RemindAt == "" {
		return "Sorry, I need to know what to remind you about and when.", nil
	}

	// The timestamp is taken verbatim from the model; past-dated reminders
	// are accepted and will fire on the next sweep.
	remindAt, err := parseTimestamp(ext.RemindAt)
	if err != nil {
		slog.Warn("reminder time unparseable", "value", ext.RemindAt, "error", err)
		return "Sorry, I couldn't understand the reminder time. Could you state it explicitly?", nil
	}

	reminder := storage.Reminder{
		ID:        uuid.New().String(),
		UserID:    state.UserID,
		Title:     ext.Title,
		Message:   ext.Message,
		RemindAt:  remindAt,
		CreatedAt: time.Now().UTC(),
	}
	if err := a.deps.Store.CreateReminder(reminder); err != nil {
		slog.Error("saving reminder failed", "error", err)
		return "Sorry, I couldn't save the reminder right now. Please try again.", nil
	}

	return fmt.Sprintf("Reminder set: %s at %s", reminder.Title, remindAt.Format("15:04 on Jan 2")), nil
}
