package agents

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/kalambet/jarvis/internal/llm"
	"github.com/kalambet/jarvis/internal/workflow"
)

const knowledgeAnswerPrompt = `You are a personal assistant answering from the user's own documents. Use ONLY the excerpts below. If they don't contain the answer, say so plainly.

Excerpts:
%s`

const (
	knowledgeTopK         = 5
	knowledgeSnippetChars = 800
)

// KnowledgeAgent answers questions grounded on the user's ingested documents.
type KnowledgeAgent struct {
	deps Deps
}

func (a *KnowledgeAgent) Handle(ctx context.Context, state *workflow.State) (string, error) {
	query := state.LastUserMessage()

	docs, err := a.deps.Store.SearchDocuments(state.UserID, searchTerms(query), knowledgeTopK)
	if err != nil {
		slog.Error("knowledge search failed", "error", err)
		return "Sorry, I couldn't search your knowledge base right now.", nil
	}
	if len(docs) == 0 {
		return "I couldn't find anything about that in your documents.", nil
	}

	var excerpts strings.Builder
	for _, d := range docs {
		excerpts.WriteString("--- " + d.OriginalName + " ---\n" + clipRunes(d.Content, knowledgeSnippetChars) + "\n\n")
	}

	answer, err := a.deps.Client.Invoke(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: strings.Replace(knowledgeAnswerPrompt, "%s", excerpts.String(), 1)},
		{Role: llm.RoleUser, Content: query},
	})
	if err != nil {
		slog.Warn("knowledge answer call failed", "error", err)
		// Degrade to listing the matching documents.
		names := make([]string, len(docs))
		for i, d := range docs {
			names[i] = d.OriginalName
		}
		return "I found these documents that may help: " + strings.Join(names, ", "), nil
	}
	return answer, nil
}

// clipRunes shortens s to at most max runes without splitting a multi-byte
// sequence.
func clipRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}

// searchTerms reduces a question to its longest word, a crude but serviceable
// keyword for LIKE-based lookup.
func searchTerms(query string) string {
	longest := ""
	for _, w := range strings.Fields(query) {
		w = strings.Trim(w, ".,!?\"'")
		if len(w) > len(longest) {
			longest = w
		}
	}
	if longest == "" {
		return query
	}
	return longest
}
