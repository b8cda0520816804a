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

const calendarExtractPrompt = `You extract calendar event details from a user message. The current time is %s. Resolve relative expressions ("tomorrow at 3pm") into absolute timestamps. Reply with a single JSON object, no prose:

{"title": "event title", "start_time": "2006-01-02T15:04:05Z07:00", "end_time": "RFC3339 or empty string", "location": "place or empty string"}

"title" and "start_time" are required.`

// calendarExtraction is the expected extraction payload for the calendar
// agent. EndTime and Location are optional.
type calendarExtraction struct {
	Title     string `json:"title"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Location  string `json:"location"`
}

// CalendarAgent schedules events from natural-language requests.
type CalendarAgent struct {
	deps Deps
}

func (a *CalendarAgent) Handle(ctx context.Context, state *workflow.State) (string, error) {
	prompt := fmt.Sprintf(calendarExtractPrompt, a.deps.now().Format(time.RFC3339))

	var ext calendarExtraction
	if err := extractJSON(ctx, a.deps.Client, prompt, state.LastUserMessage(), &ext); err != nil {
		slog.Warn("calendar extraction failed", "error", err)
		return "Sorry, I couldn't work out the event details. Could you rephrase?", nil
	}
	if ext.Title == "" || ext.StartTime == "" {
		return "Sorry, I need at least a title and a start time for the event.", nil
	}

	start, err := parseTimestamp(ext.StartTime)
	if err != nil {
		slog.Warn("calendar start time unparseable", "value", ext.StartTime, "error", err)
		return "Sorry, I couldn't understand the event time. Could you state it explicitly?", nil
	}
	// End time is resolved by the model too; no server-side bounds check.
	var end time.Time
	if ext.EndTime != "" {
		if end, err = parseTimestamp(ext.EndTime); err != nil {
			end = time.Time{}
		}
	}

	event := storage.CalendarEvent{
		ID:        uuid.New().String(),
		UserID:    state.UserID,
		Title:     ext.Title,
		Location:  ext.Location,
		StartTime: start,
		EndTime:   end,
		CreatedAt: time.Now().UTC(),
	}
	if err := a.deps.Store.CreateCalendarEvent(event); err != nil {
		slog.Error("saving calendar event failed", "error", err)
		return "Sorry, I couldn't save the event right now. Please try again.", nil
	}

	reply := fmt.Sprintf("Event scheduled: %s on %s", event.Title, start.Format("Jan 2 at 15:04"))
	if event.Location != "" {
		reply += " (" + event.Location + ")"
	}
	return reply, nil
}
