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

const taskExtractPrompt = `You extract task details from a user message. Reply with a single JSON object, no prose:

{"title": "short task title", "description": "details or empty string", "priority": "low|medium|high"}

"title" is required. Default "priority" to "medium" when the user gives no hint.`

// taskExtraction is the expected extraction payload for the task agent.
// Title is required; the rest default.
type taskExtraction struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
}

// TaskAgent creates to-do items from natural-language requests.
type TaskAgent struct {
	deps Deps
}

func (a *TaskAgent) Handle(ctx context.Context, state *workflow.State) (string, error) {
	var ext taskExtraction
	if err := extractJSON(ctx, a.deps.Client, taskExtractPrompt, state.LastUserMessage(), &ext); err != nil {
		slog.Warn("task extraction failed", "error", err)
		return "Sorry, I couldn't work out the task details. Could you rephrase?", nil
	}
	if ext.Title == "" {
		return "Sorry, I couldn't find a task title in that. What should the task be called?", nil
	}
	if ext.Priority != "low" && ext.Priority != "high" {
		ext.Priority = "medium"
	}

	task := storage.Task{
		ID:          uuid.New().String(),
		UserID:      state.UserID,
		Title:       ext.Title,
		Description: ext.Description,
		Priority:    ext.Priority,
		CreatedAt:   time.Now().UTC(),
	}
	if err := a.deps.Store.CreateTask(task); err != nil {
		slog.Error("saving task failed", "error", err)
		return "Sorry, I couldn't save the task right now. Please try again.", nil
	}

	return fmt.Sprintf("Task created: %s (priority: %s)", task.Title, task.Priority), nil
}
