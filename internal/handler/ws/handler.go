package ws

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/pmahattanasawat/resume-chat/backend/internal/model/chat"
	"github.com/pmahattanasawat/resume-chat/backend/internal/service/agent"
	"github.com/pmahattanasawat/resume-chat/backend/internal/service/memory"
)

// Responder is the slice of the agent service this transport consumes.
type Responder interface {
	Stream(ctx context.Context, history []chat.Turn, message string) *agent.Stream
}

// Handler serves the WebSocket chat transport. Each inbound text frame is a
// chat.Request; the answer comes back as the same StreamChunk JSON frames the
// SSE endpoint emits.
type Handler struct {
	agent    Responder
	memory   *memory.Registry
	timeout  time.Duration
	upgrader websocket.Upgrader
}

// New creates the WebSocket handler.
func New(agentSvc Responder, mem *memory.Registry, timeout time.Duration) *Handler {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Handler{
		agent:   agentSvc,
		memory:  mem,
		timeout: timeout,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts the WebSocket endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/chat/ws", h.handleWebSocket)
}

type errorFrame struct {
	Error string `json:"error"`
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	for {
		var req chat.Request
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[ws] read failed: %v", err)
			}
			return
		}

		h.handleMessage(r.Context(), conn, req)
	}
}

// handleMessage runs one exchange over the open connection. The per-session
// lock is held for the duration of the exchange, so two sockets on the same
// session cannot interleave.
func (h *Handler) handleMessage(parent context.Context, conn *websocket.Conn, req chat.Request) {
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		h.writeError(conn, "message field is required")
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	} else if err := memory.ValidateSessionID(sessionID); err != nil {
		h.writeError(conn, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(parent, h.timeout)
	defer cancel()

	release, err := h.memory.Acquire(ctx, sessionID)
	if err != nil {
		h.writeError(conn, "session is busy")
		return
	}
	defer release()

	history, err := h.memory.History(ctx, sessionID)
	if err != nil {
		h.writeError(conn, err.Error())
		return
	}

	if err := h.memory.Append(ctx, sessionID, chat.Turn{Role: chat.RoleUser, Content: req.Message}); err != nil {
		h.writeError(conn, err.Error())
		return
	}

	stream := h.agent.Stream(ctx, history, req.Message)
	for chunk := range stream.Chunks() {
		if err := conn.WriteJSON(chunk); err != nil {
			log.Printf("[ws] write failed for session=%s: %v", sessionID, err)
			cancel()
			for range stream.Chunks() {
				// Drain so the producer can observe cancellation and stop.
			}
			return
		}
	}

	answer, err := stream.Result()
	if err != nil {
		log.Printf("[ws] stream ended without answer for session=%s: %v", sessionID, err)
		return
	}

	if err := h.memory.Append(ctx, sessionID, chat.Turn{Role: chat.RoleAssistant, Content: answer.Text}); err != nil {
		log.Printf("[ws] failed to save assistant turn: %v", err)
	}
}

func (h *Handler) writeError(conn *websocket.Conn, message string) {
	if err := conn.WriteJSON(errorFrame{Error: message}); err != nil {
		log.Printf("[ws] failed to write error frame: %v", err)
	}
}
