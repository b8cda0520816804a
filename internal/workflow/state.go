// Package workflow implements the message-routing state machine: a single
// pass through intent classification, agent dispatch, and one handler.
package workflow

import "github.com/kalambet/jarvis/internal/llm"

// Intent is the routing label chosen for an inbound message.
type Intent string

// The closed set of intent labels.
const (
	IntentTask      Intent = "task"
	IntentCalendar  Intent = "calendar"
	IntentReminder  Intent = "reminder"
	IntentImage     Intent = "image"
	IntentDocument  Intent = "document"
	IntentKnowledge Intent = "knowledge"
	IntentGeneral   Intent = "general"
)

// knownIntents is used to validate model output against the closed set.
var knownIntents = map[Intent]bool{
	IntentTask:      true,
	IntentCalendar:  true,
	IntentReminder:  true,
	IntentImage:     true,
	IntentDocument:  true,
	IntentKnowledge: true,
	IntentGeneral:   true,
}

// Context keys supplied by the transport layer. The core only reads them.
const (
	CtxAttachmentPath = "attachment_path"
	CtxAttachmentName = "attachment_name"
	CtxAttachmentMime = "attachment_mime"
	CtxChatID         = "chat_id"
	CtxUsername       = "username"
	CtxFirstName      = "first_name"
)

// State is the mutable record threaded through one workflow run. It is
// created fresh per message and discarded after the terminal response.
type State struct {
	// History is the role-tagged message sequence; the last entry after a
	// run is the produced response.
	History []llm.Message

	// UserID is the resolved internal user id. Never reassigned.
	UserID string

	// Intent is set exactly once by the classification step.
	Intent Intent

	// Context carries caller-supplied hints (attachment metadata, chat id).
	// The core reads it but never mutates it.
	Context map[string]string
}

// NewState builds the initial state for one inbound message.
func NewState(userID, message string, context map[string]string) *State {
	if context == nil {
		context = map[string]string{}
	}
	return &State{
		History: []llm.Message{{Role: llm.RoleUser, Content: message}},
		UserID:  userID,
		Context: context,
	}
}

// LastUserMessage returns the content of the most recent user turn.
func (s *State) LastUserMessage() string {
	for i := len(s.History) - 1; i >= 0; i-- {
		if s.History[i].Role == llm.RoleUser {
			return s.History[i].Content
		}
	}
	return ""
}

// HasAttachment reports whether the transport attached a file to this message.
func (s *State) HasAttachment() bool {
	return s.Context[CtxAttachmentPath] != ""
}
