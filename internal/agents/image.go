package agents

import (
	"context"
	"log/slog"

	"github.com/kalambet/jarvis/internal/workflow"
)

const imageExtractPrompt = `You extract an image-generation request from a user message. Reply with a single JSON object, no prose:

{"prompt": "a detailed English description of the image to generate", "style": "optional style hint or empty string"}

"prompt" is required.`

// imageExtraction is the expected extraction payload for the image agent.
type imageExtraction struct {
	Prompt string `json:"prompt"`
	Style  string `json:"style"`
}

// ImageAgent turns a request into a generation prompt and calls the image
// generation collaborator.
type ImageAgent struct {
	deps Deps
}

func (a *ImageAgent) Handle(ctx context.Context, state *workflow.State) (string, error) {
	var ext imageExtraction
	if err := extractJSON(ctx, a.deps.Client, imageExtractPrompt, state.LastUserMessage(), &ext); err != nil {
		slog.Warn("image extraction failed", "error", err)
		return "Sorry, I couldn't work out what to draw. Could you describe the image?", nil
	}
	if ext.Prompt == "" {
		return "Sorry, I couldn't work out what to draw. Could you describe the image?", nil
	}

	prompt := ext.Prompt
	if ext.Style != "" {
		prompt += ", " + ext.Style + " style"
	}

	url, err := a.deps.Images.Generate(ctx, prompt)
	if err != nil {
		slog.Error("image generation failed", "error", err)
		return "Sorry, image generation didn't work this time. Please try again.", nil
	}
	return "Here is your image: " + url, nil
}
