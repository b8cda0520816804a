// Package agents contains the intent handlers the workflow dispatches to.
// Each agent performs its own structured extraction against the message,
// executes its side effect, and renders user-facing text. Failures are
// contained here: an agent converts extraction and persistence errors into
// apology text instead of propagating them.
package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kalambet/jarvis/internal/llm"
)

const extractTimeout = 15 * time.Second

// extractJSON asks the model to produce a single JSON object per the prompt
// and unmarshals it into out. Models routinely wrap JSON in markdown code
// fences; those are stripped before parsing. A parse failure is a first-class
// error branch for the caller, not an incidental panic.
func extractJSON(ctx context.Context, client llm.Invoker, systemPrompt, message string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, extractTimeout)
	defer cancel()

	raw, err := client.Invoke(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: message},
	})
	if err != nil {
		return fmt.Errorf("extraction call: %w", err)
	}

	cleaned := stripCodeFences(raw)
	if err := json.Unmarshal([]byte(cleaned), out); err != nil {
		return fmt.Errorf("parsing extraction output %q: %w", raw, err)
	}
	return nil
}

// stripCodeFences removes a surrounding markdown code fence, with or without
// a language tag, leaving the inner payload.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 {
		// Drop a language tag such as "json" on the fence line.
		first := strings.TrimSpace(s[:idx])
		if first == "" || !strings.ContainsAny(first, "{[") {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// parseTimestamp accepts the formats models actually emit for absolute times.
func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02 15:04"} {
		if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
