package agents

import (
	"context"
	"log/slog"

	"github.com/kalambet/jarvis/internal/llm"
	"github.com/kalambet/jarvis/internal/workflow"
)

const generalPrompt = `You are Jarvis, a personal AI assistant. Be friendly and concise. If the user greets you, greet them back and briefly mention what you can do: manage tasks, calendar events and reminders, generate images, and answer questions from their documents. If the request is unclear, politely ask for clarification.`

// GeneralAgent is the conversational fallback for greetings, chit-chat, and
// anything the classifier couldn't place.
type GeneralAgent struct {
	deps Deps
}

func (a *GeneralAgent) Handle(ctx context.Context, state *workflow.State) (string, error) {
	messages := append([]llm.Message{{Role: llm.RoleSystem, Content: generalPrompt}}, state.History...)

	response, err := a.deps.Client.Invoke(ctx, messages)
	if err != nil {
		slog.Warn("general response call failed", "error", err)
		return "Sorry, I'm having trouble answering right now. Please try again.", nil
	}
	return response, nil
}
