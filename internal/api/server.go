// Package api exposes the assistant over HTTP: a chat endpoint driving the
// routing workflow, and the cloud connection management surface for
// configuring and running storage sync.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/jarvis/internal/storage"
	syncpkg "github.com/kalambet/jarvis/internal/sync"
	"github.com/kalambet/jarvis/internal/workflow"
)

const maxRequestBodySize = 1 << 20 // 1MB

// AppDeps holds the dependencies for the HTTP API.
type AppDeps struct {
	Store    *storage.Store
	Workflow *workflow.Engine
	Sync     *syncpkg.Service
	Token    string
}

// NewAppHandler returns the HTTP API router. All routes except /health
// require the bearer token.
func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Post("/chat", handleChat(deps))

		r.Post("/connections", handleCreateConnection(deps))
		r.Get("/connections", handleListConnections(deps))
		r.Get("/connections/{id}", handleGetConnection(deps))
		r.Patch("/connections/{id}", handlePatchConnection(deps))
		r.Post("/connections/{id}/sync", handleTriggerSync(deps))
		r.Get("/connections/{id}/status", handleSyncStatus(deps))
		r.Get("/connections/{id}/jobs", handleListJobs(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
