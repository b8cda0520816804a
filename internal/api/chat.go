package api

import (
	"encoding/json"
	"net/http"

	"github.com/kalambet/jarvis/internal/workflow"
)

// ChatRequest is one inbound message from a non-Telegram client.
type ChatRequest struct {
	TelegramID int64  `json:"telegram_id"`
	Username   string `json:"username"`
	FirstName  string `json:"first_name"`
	Message    string `json:"message"`
}

// ChatResponse carries the terminal response and the routed intent.
type ChatResponse struct {
	Response string `json:"response"`
	Intent   string `json:"intent"`
}

func handleChat(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.TelegramID == 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "telegram_id is required")
			return
		}
		if req.Message == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "message is required")
			return
		}

		user, err := deps.Store.GetOrCreateUser(req.TelegramID, req.Username, req.FirstName)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "resolving user: %v", err)
			return
		}

		state := workflow.NewState(user.ID, req.Message, map[string]string{
			workflow.CtxUsername:  req.Username,
			workflow.CtxFirstName: req.FirstName,
		})
		response := deps.Workflow.Run(r.Context(), state)

		writeJSON(w, ChatResponse{
			Response: response,
			Intent:   string(state.Intent),
		})
	}
}
