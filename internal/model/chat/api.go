package chat

import "time"

// Request is the inbound chat payload shared by the aggregate, SSE, and
// WebSocket endpoints.
type Request struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// Response is the aggregate (non-streaming) answer.
type Response struct {
	Response  string    `json:"response"`
	Sources   []string  `json:"sources"`
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"session_id"`
}

// StreamChunk is one increment of a streamed answer. Exactly one chunk per
// response carries IsComplete=true, and it is the last chunk emitted.
// Sources is set only on the terminal chunk.
type StreamChunk struct {
	Content    string   `json:"content"`
	IsComplete bool     `json:"is_complete"`
	Sources    []string `json:"sources,omitempty"`
}

// HistoryEntry is one turn as exposed by the history endpoint.
type HistoryEntry struct {
	Type      string    `json:"type"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// HistoryResponse wraps a session transcript.
type HistoryResponse struct {
	SessionID     string         `json:"session_id"`
	Messages      []HistoryEntry `json:"messages"`
	TotalMessages int            `json:"total_messages"`
}
