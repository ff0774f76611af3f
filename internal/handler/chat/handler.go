package chat

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pmahattanasawat/resume-chat/backend/internal/model/chat"
	"github.com/pmahattanasawat/resume-chat/backend/internal/service/agent"
	"github.com/pmahattanasawat/resume-chat/backend/internal/service/memory"
	"github.com/pmahattanasawat/resume-chat/backend/pkg/utils"
)

// Responder is the slice of the agent service the chat endpoints consume.
type Responder interface {
	Respond(ctx context.Context, history []chat.Turn, message string) (*agent.Answer, error)
	Stream(ctx context.Context, history []chat.Turn, message string) *agent.Stream
}

// Handler serves the chat, history, and health endpoints.
type Handler struct {
	agent   Responder
	memory  *memory.Registry
	timeout time.Duration
}

// New creates the chat handler. agent may be nil when the model is not
// configured; chat endpoints then answer 503 while history endpoints keep
// working.
func New(agentSvc Responder, mem *memory.Registry, timeout time.Duration) *Handler {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Handler{
		agent:   agentSvc,
		memory:  mem,
		timeout: timeout,
	}
}

// RegisterRoutes mounts the chat endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleChat)
	r.Post("/chat/stream", h.handleChatStream)
	r.Get("/chat/history/{sessionID}", h.handleHistory)
	r.Delete("/chat/history/{sessionID}", h.handleClearHistory)
	r.Get("/health", h.handleHealth)
}

// handleChat is the aggregate (non-streaming) endpoint: it waits for the
// orchestration to finish and returns one response object.
func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	req, sessionID, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}
	if h.agent == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "ai service unavailable")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	release, err := h.memory.Acquire(ctx, sessionID)
	if err != nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "session is busy")
		return
	}
	defer release()

	history, err := h.memory.History(ctx, sessionID)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.memory.Append(ctx, sessionID, chat.Turn{Role: chat.RoleUser, Content: req.Message}); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	answer, err := h.agent.Respond(ctx, history, req.Message)
	if err != nil {
		log.Printf("[chat] orchestration failed for session=%s: %v", sessionID, err)
		utils.RespondError(w, http.StatusInternalServerError, "chat processing failed")
		return
	}

	if err := h.memory.Append(ctx, sessionID, chat.Turn{Role: chat.RoleAssistant, Content: answer.Text}); err != nil {
		log.Printf("[chat] failed to save assistant turn: %v", err)
	}

	utils.RespondJSON(w, http.StatusOK, chat.Response{
		Response:  answer.Text,
		Sources:   answer.Sources,
		Timestamp: time.Now().UTC(),
		SessionID: sessionID,
	})
}

// handleChatStream delivers the answer as Server-Sent Events: one
// `data: <json>` frame per chunk, terminated by a single is_complete chunk.
func (h *Handler) handleChatStream(w http.ResponseWriter, r *http.Request) {
	flusher, flushable := w.(http.Flusher)
	if !flushable {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	req, sessionID, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}
	if h.agent == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "ai service unavailable")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	release, err := h.memory.Acquire(ctx, sessionID)
	if err != nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "session is busy")
		return
	}
	defer release()

	history, err := h.memory.History(ctx, sessionID)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.memory.Append(ctx, sessionID, chat.Turn{Role: chat.RoleUser, Content: req.Message}); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	w.Header().Set("X-Session-ID", sessionID)
	utils.SetupSSEHeaders(w)

	stream := h.agent.Stream(ctx, history, req.Message)
	for chunk := range stream.Chunks() {
		utils.SendSSEChunk(w, flusher, chunk)
	}

	answer, err := stream.Result()
	if err != nil {
		// Failed or cancelled before Done; the partial answer is discarded.
		log.Printf("[chat] stream ended without answer for session=%s: %v", sessionID, err)
		return
	}

	if err := h.memory.Append(ctx, sessionID, chat.Turn{Role: chat.RoleAssistant, Content: answer.Text}); err != nil {
		log.Printf("[chat] failed to save assistant turn: %v", err)
	}
}

// handleHistory returns the stored transcript. An unknown session is a fresh
// session and yields an empty list.
func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	turns, err := h.memory.History(r.Context(), sessionID)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	entries := make([]chat.HistoryEntry, 0, len(turns))
	for _, turn := range turns {
		entries = append(entries, chat.HistoryEntry{
			Type:      string(turn.Role),
			Content:   turn.Content,
			Timestamp: turn.CreatedAt,
		})
	}

	utils.RespondJSON(w, http.StatusOK, chat.HistoryResponse{
		SessionID:     sessionID,
		Messages:      entries,
		TotalMessages: len(entries),
	})
}

// handleClearHistory drops the session transcript. Idempotent; clearing an
// unknown session succeeds.
func (h *Handler) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if err := h.memory.Clear(r.Context(), sessionID); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{
		"message":    "chat history cleared for session " + sessionID,
		"session_id": sessionID,
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "resume-chat-backend",
	})
}

// decodeRequest parses and validates the shared inbound payload, generating
// a session id when the caller did not supply one. Input errors are rejected
// here before any orchestration starts.
func (h *Handler) decodeRequest(w http.ResponseWriter, r *http.Request) (chat.Request, string, bool) {
	var req chat.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return chat.Request{}, "", false
	}

	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		utils.RespondError(w, http.StatusBadRequest, "message field is required")
		return chat.Request{}, "", false
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	} else if err := memory.ValidateSessionID(sessionID); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return chat.Request{}, "", false
	}

	return req, sessionID, true
}
