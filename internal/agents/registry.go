package agents

import (
	"context"
	"time"

	"github.com/kalambet/jarvis/internal/ingest"
	"github.com/kalambet/jarvis/internal/llm"
	"github.com/kalambet/jarvis/internal/storage"
	"github.com/kalambet/jarvis/internal/workflow"
)

// Store is the persistence surface the agents need. *storage.Store satisfies it.
type Store interface {
	CreateTask(t storage.Task) error
	CreateCalendarEvent(e storage.CalendarEvent) error
	CreateReminder(r storage.Reminder) error
	SearchDocuments(userID, query string, limit int) ([]storage.Document, error)
}

// Ingestor is the document ingestion collaborator boundary.
// *ingest.Service satisfies it.
type Ingestor interface {
	CreateOrUpdate(ctx context.Context, f ingest.File) (string, error)
	Index(ctx context.Context, documentID string) error
}

// ImageGenerator is the image-generation collaborator boundary.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Deps bundles the collaborators shared across agents.
type Deps struct {
	Client llm.Invoker
	Store  Store
	Ingest Ingestor
	Images ImageGenerator

	// Now is the clock used to anchor relative time expressions. Defaults
	// to time.Now when nil.
	Now func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// NewRegistry builds the dispatch table: one handler per intent label.
// Exactly one handler executes per workflow invocation.
func NewRegistry(deps Deps) map[workflow.Intent]workflow.Agent {
	return map[workflow.Intent]workflow.Agent{
		workflow.IntentTask:      &TaskAgent{deps},
		workflow.IntentCalendar:  &CalendarAgent{deps},
		workflow.IntentReminder:  &ReminderAgent{deps},
		workflow.IntentImage:     &ImageAgent{deps},
		workflow.IntentDocument:  &DocumentAgent{deps},
		workflow.IntentKnowledge: &KnowledgeAgent{deps},
		workflow.IntentGeneral:   &GeneralAgent{deps},
	}
}
