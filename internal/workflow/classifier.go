package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kalambet/jarvis/internal/llm"
)

const classifyTimeout = 10 * time.Second

const classifierPrompt = `You are an intent classifier for a personal assistant. Read the user's message and reply with EXACTLY one word from this list:

- task: the user wants to create or manage a task or to-do item
- calendar: the user wants to schedule an event or meeting for a specific date/time
- reminder: the user asks to be reminded about something
- image: the user asks to draw, generate, or create a picture
- document: the user uploads a document or asks to process a file
- knowledge: the user asks a question that requires searching their knowledge base or documents
- general: ordinary conversation, greetings, or unclear intent

Examples:
"Create a task to buy milk" -> task
"Add a meeting tomorrow at 15:00" -> calendar
"Remind me in an hour" -> reminder
"Draw a cat" -> image
"What do you know about Python?" -> knowledge
"Hi, how are you?" -> general

User message: `

// Result is the outcome of one classification attempt. Err is set when the
// model call failed or produced a label outside the closed set; the dispatch
// step maps that to the general fallback by explicit policy.
type Result struct {
	Intent Intent
	Err    error
}

// Classifier maps a free-text message to one intent label with a single
// model call.
type Classifier struct {
	client llm.Invoker
	logger *slog.Logger
}

// NewClassifier creates a Classifier using the given model client.
func NewClassifier(client llm.Invoker) *Classifier {
	return &Classifier{client: client, logger: slog.Default()}
}

// Classify resolves the intent for the state's latest user message.
//
// When the context declares an attachment, classification is bypassed and
// the label is deterministically "document" — attachment handling always
// wins over message text. Any model failure or out-of-set label is returned
// as an Err result, never propagated as a routing failure.
func (c *Classifier) Classify(ctx context.Context, state *State) Result {
	if state.HasAttachment() {
		c.logger.Info("attachment detected, forcing document intent",
			"file", state.Context[CtxAttachmentName])
		return Result{Intent: IntentDocument}
	}

	message := state.LastUserMessage()
	if message == "" {
		return Result{Err: fmt.Errorf("empty message")}
	}

	ctx, cancel := context.WithTimeout(ctx, classifyTimeout)
	defer cancel()

	raw, err := c.client.Invoke(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: classifierPrompt},
		{Role: llm.RoleUser, Content: message},
	})
	if err != nil {
		return Result{Err: fmt.Errorf("classification call: %w", err)}
	}

	label := Intent(strings.ToLower(strings.TrimSpace(raw)))
	if !knownIntents[label] {
		return Result{Err: fmt.Errorf("unknown intent label %q", raw)}
	}

	c.logger.Info("intent classified", "intent", label)
	return Result{Intent: label}
}
