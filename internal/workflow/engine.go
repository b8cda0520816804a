package workflow

import (
	"context"
	"log/slog"

	"github.com/kalambet/jarvis/internal/llm"
)

// fallbackResponse is the terminal output when even the fallback agent fails.
// The workflow returns a response string in every case.
const fallbackResponse = "Sorry, something went wrong while processing your message. Please try again."

// Agent handles one intent: structured extraction, side effect, response text.
// Agents are expected to contain their own failures and return user-facing
// text; a returned error is treated as a last-resort failure by the engine.
type Agent interface {
	Handle(ctx context.Context, state *State) (string, error)
}

// Engine executes the single-pass routing workflow:
// classify -> dispatch lookup -> one agent -> terminal.
type Engine struct {
	classifier *Classifier
	agents     map[Intent]Agent
	logger     *slog.Logger
}

// NewEngine builds an Engine over the dispatch table. The table must contain
// an entry for IntentGeneral; it doubles as the fallback for classification
// failures and unknown labels.
func NewEngine(classifier *Classifier, agents map[Intent]Agent) *Engine {
	return &Engine{
		classifier: classifier,
		agents:     agents,
		logger:     slog.Default(),
	}
}

// Run processes one message through the workflow and returns the terminal
// response text. It never returns an error: every failure path degrades to a
// response string.
func (e *Engine) Run(ctx context.Context, state *State) string {
	// Classification failure degrades to the conversational fallback, by
	// policy rather than by accident.
	result := e.classifier.Classify(ctx, state)
	if result.Err != nil {
		e.logger.Warn("classification failed, routing to general", "error", result.Err)
		result.Intent = IntentGeneral
	}
	state.Intent = result.Intent

	agent, ok := e.agents[state.Intent]
	if !ok {
		agent = e.agents[IntentGeneral]
	}
	if agent == nil {
		e.logger.Error("no agent available", "intent", state.Intent)
		return fallbackResponse
	}

	response, err := agent.Handle(ctx, state)
	if err != nil {
		e.logger.Error("agent failed", "intent", state.Intent, "error", err)
		response = fallbackResponse
	}
	if response == "" {
		response = fallbackResponse
	}

	state.History = append(state.History, llm.Message{Role: llm.RoleAssistant, Content: response})
	return response
}
