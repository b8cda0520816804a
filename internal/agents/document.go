package agents

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kalambet/jarvis/internal/ingest"
	"github.com/kalambet/jarvis/internal/workflow"
)

// DocumentAgent ingests the attached file into the knowledge base. It is the
// forced destination whenever the transport reports an attachment.
type DocumentAgent struct {
	deps Deps
}

func (a *DocumentAgent) Handle(ctx context.Context, state *workflow.State) (string, error) {
	path := state.Context[workflow.CtxAttachmentPath]
	name := state.Context[workflow.CtxAttachmentName]
	if path == "" {
		return "Please attach the document you'd like me to process.", nil
	}
	if name == "" {
		name = path
	}

	docID, err := a.deps.Ingest.CreateOrUpdate(ctx, ingest.File{
		UserID:       state.UserID,
		LocalPath:    path,
		OriginalName: name,
	})
	if err != nil {
		slog.Error("document ingestion failed", "file", name, "error", err)
		return "Sorry, I couldn't process that document. Please try again.", nil
	}

	if err := a.deps.Ingest.Index(ctx, docID); err != nil {
		slog.Warn("document indexing failed", "document_id", docID, "error", err)
		return fmt.Sprintf("Saved %s, but indexing it for search failed. I'll still keep the file.", name), nil
	}

	return fmt.Sprintf("Document %s added to your knowledge base.", name), nil
}
