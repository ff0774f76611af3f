package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/go-chi/chi/v5"

	"github.com/pmahattanasawat/resume-chat/backend/internal/model/chat"
	"github.com/pmahattanasawat/resume-chat/backend/internal/model/resume"
	"github.com/pmahattanasawat/resume-chat/backend/internal/service/agent"
	"github.com/pmahattanasawat/resume-chat/backend/internal/service/memory"
	"github.com/pmahattanasawat/resume-chat/backend/internal/service/tools"
)

type scriptStep struct {
	chunks []*schema.Message
	err    error
}

type fakeModel struct {
	mu    sync.Mutex
	steps []scriptStep
}

func (f *fakeModel) take() scriptStep {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.steps) == 0 {
		return scriptStep{err: errors.New("script exhausted")}
	}
	step := f.steps[0]
	f.steps = f.steps[1:]
	return step
}

func (f *fakeModel) Generate(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	step := f.take()
	if step.err != nil {
		return nil, step.err
	}
	return schema.ConcatMessages(step.chunks)
}

func (f *fakeModel) Stream(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	step := f.take()
	if step.err != nil {
		return nil, step.err
	}
	return schema.StreamReaderFromArray(step.chunks), nil
}

func (f *fakeModel) WithTools(_ []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return f, nil
}

func answerStep(parts ...string) scriptStep {
	chunks := make([]*schema.Message, 0, len(parts))
	for _, part := range parts {
		chunks = append(chunks, schema.AssistantMessage(part, nil))
	}
	return scriptStep{chunks: chunks}
}

func setupRouter(t *testing.T, steps []scriptStep) (*chi.Mux, *memory.Registry) {
	t.Helper()

	store, err := resume.NewStore(resume.Data{
		PersonalInfo: resume.PersonalInfo{Name: "Jane Doe", Email: "jane@example.com"},
		Skills:       map[string][]string{"languages": {"Go"}},
	})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	registry, err := tools.NewResumeRegistry(store)
	if err != nil {
		t.Fatalf("NewResumeRegistry: %v", err)
	}

	agentSvc, err := agent.NewService(&fakeModel{steps: steps}, registry, "Jane Doe", agent.Config{RetryBackoff: time.Millisecond})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	mem := memory.NewRegistry(memory.Config{})
	handler := New(agentSvc, mem, time.Second)

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r, mem
}

func postJSON(r http.Handler, path string, body any) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func parseSSE(t *testing.T, body string) []chat.StreamChunk {
	t.Helper()

	chunks := make([]chat.StreamChunk, 0, 8)
	for _, frame := range strings.Split(body, "\n\n") {
		frame = strings.TrimSpace(frame)
		if frame == "" {
			continue
		}
		if !strings.HasPrefix(frame, "data: ") {
			t.Fatalf("unexpected SSE frame: %q", frame)
		}
		var chunk chat.StreamChunk
		if err := json.Unmarshal([]byte(strings.TrimPrefix(frame, "data: ")), &chunk); err != nil {
			t.Fatalf("malformed SSE payload %q: %v", frame, err)
		}
		chunks = append(chunks, chunk)
	}
	return chunks
}

func TestChatMissingMessage(t *testing.T) {
	r, _ := setupRouter(t, nil)

	resp := postJSON(r, "/chat", map[string]string{"message": "   "})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestChatInvalidBody(t *testing.T) {
	r, _ := setupRouter(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader("{not json"))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestChatInvalidSessionID(t *testing.T) {
	r, _ := setupRouter(t, nil)

	resp := postJSON(r, "/chat", chat.Request{Message: "hi", SessionID: strings.Repeat("x", 200)})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestChatWithoutAgentAnswers503(t *testing.T) {
	mem := memory.NewRegistry(memory.Config{})
	handler := New(nil, mem, time.Second)

	r := chi.NewRouter()
	handler.RegisterRoutes(r)

	resp := postJSON(r, "/chat", chat.Request{Message: "hi"})
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.Code)
	}
}

func TestChatAggregateResponse(t *testing.T) {
	r, mem := setupRouter(t, []scriptStep{answerStep("Jane is an engineer.")})

	resp := postJSON(r, "/chat", chat.Request{Message: "Who is Jane?", SessionID: "s1"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var body chat.Response
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Response != "Jane is an engineer." {
		t.Fatalf("unexpected response text: %q", body.Response)
	}
	if body.SessionID != "s1" {
		t.Fatalf("expected session id echoed, got %q", body.SessionID)
	}

	turns, _ := mem.History(context.Background(), "s1")
	if len(turns) != 2 {
		t.Fatalf("expected user + assistant turns, got %d", len(turns))
	}
	if turns[0].Role != chat.RoleUser || turns[1].Role != chat.RoleAssistant {
		t.Fatalf("unexpected turn roles: %v, %v", turns[0].Role, turns[1].Role)
	}
}

func TestChatGeneratesSessionID(t *testing.T) {
	r, _ := setupRouter(t, []scriptStep{answerStep("hello")})

	resp := postJSON(r, "/chat", chat.Request{Message: "hi"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var body chat.Response
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.SessionID == "" {
		t.Fatal("expected generated session id")
	}
}

func TestChatFailureAnswers500(t *testing.T) {
	r, mem := setupRouter(t, []scriptStep{
		{err: errors.New("down")},
		{err: errors.New("still down")},
	})

	resp := postJSON(r, "/chat", chat.Request{Message: "hi", SessionID: "s1"})
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}

	// The user turn is recorded; no assistant turn is.
	turns, _ := mem.History(context.Background(), "s1")
	if len(turns) != 1 || turns[0].Role != chat.RoleUser {
		t.Fatalf("expected only the user turn, got %v", turns)
	}
}

func TestChatStreamDeliversOrderedFrames(t *testing.T) {
	r, mem := setupRouter(t, []scriptStep{answerStep("Jane ", "is an ", "engineer.")})

	resp := postJSON(r, "/chat/stream", chat.Request{Message: "Who is Jane?", SessionID: "s1"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if ct := resp.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected SSE content type, got %q", ct)
	}
	if resp.Header().Get("X-Session-ID") != "s1" {
		t.Fatalf("expected session id header, got %q", resp.Header().Get("X-Session-ID"))
	}

	chunks := parseSSE(t, resp.Body.String())
	if len(chunks) != 4 {
		t.Fatalf("expected 3 content frames + terminal, got %d", len(chunks))
	}
	var text strings.Builder
	terminals := 0
	for i, chunk := range chunks {
		if chunk.IsComplete {
			terminals++
			if i != len(chunks)-1 {
				t.Fatalf("terminal chunk at position %d, expected last", i)
			}
		}
		text.WriteString(chunk.Content)
	}
	if terminals != 1 {
		t.Fatalf("expected exactly one terminal chunk, got %d", terminals)
	}
	if text.String() != "Jane is an engineer." {
		t.Fatalf("unexpected streamed text: %q", text.String())
	}

	turns, _ := mem.History(context.Background(), "s1")
	if len(turns) != 2 || turns[1].Content != "Jane is an engineer." {
		t.Fatalf("expected assistant turn persisted, got %v", turns)
	}
}

func TestChatStreamFailureEmitsApology(t *testing.T) {
	r, mem := setupRouter(t, []scriptStep{
		{err: errors.New("down")},
		{err: errors.New("still down")},
	})

	resp := postJSON(r, "/chat/stream", chat.Request{Message: "hi", SessionID: "s1"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	chunks := parseSSE(t, resp.Body.String())
	if len(chunks) != 2 {
		t.Fatalf("expected apology + terminal, got %d", len(chunks))
	}
	if !strings.Contains(chunks[0].Content, "I apologize") {
		t.Fatalf("expected apology frame, got %q", chunks[0].Content)
	}
	if !chunks[1].IsComplete {
		t.Fatal("expected terminal frame last")
	}

	turns, _ := mem.History(context.Background(), "s1")
	if len(turns) != 1 {
		t.Fatalf("failed stream must not persist an assistant turn, got %v", turns)
	}
}

func TestChatCarriesHistoryAcrossRequests(t *testing.T) {
	r, mem := setupRouter(t, []scriptStep{
		answerStep("first answer"),
		answerStep("second answer"),
	})

	for _, message := range []string{"first question", "second question"} {
		resp := postJSON(r, "/chat", chat.Request{Message: message, SessionID: "s1"})
		if resp.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.Code)
		}
	}

	turns, _ := mem.History(context.Background(), "s1")
	if len(turns) != 4 {
		t.Fatalf("expected 4 turns, got %d", len(turns))
	}
	if turns[2].Content != "second question" || turns[3].Content != "second answer" {
		t.Fatalf("unexpected transcript tail: %v", turns[2:])
	}
}

func TestHistoryUnknownSession(t *testing.T) {
	r, _ := setupRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/chat/history/fresh", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var body chat.HistoryResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.TotalMessages != 0 || len(body.Messages) != 0 {
		t.Fatalf("expected empty history, got %+v", body)
	}
}

func TestHistoryAfterChat(t *testing.T) {
	r, _ := setupRouter(t, []scriptStep{answerStep("answer")})

	if resp := postJSON(r, "/chat", chat.Request{Message: "question", SessionID: "s1"}); resp.Code != http.StatusOK {
		t.Fatalf("chat failed: %d", resp.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/chat/history/s1", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	var body chat.HistoryResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.TotalMessages != 2 {
		t.Fatalf("expected 2 messages, got %d", body.TotalMessages)
	}
	if body.Messages[0].Type != "user" || body.Messages[1].Type != "assistant" {
		t.Fatalf("unexpected entry types: %+v", body.Messages)
	}
}

func TestClearHistory(t *testing.T) {
	r, mem := setupRouter(t, []scriptStep{answerStep("answer")})

	if resp := postJSON(r, "/chat", chat.Request{Message: "question", SessionID: "s1"}); resp.Code != http.StatusOK {
		t.Fatalf("chat failed: %d", resp.Code)
	}

	req := httptest.NewRequest(http.MethodDelete, "/chat/history/s1", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	turns, _ := mem.History(context.Background(), "s1")
	if len(turns) != 0 {
		t.Fatalf("expected cleared history, got %v", turns)
	}
}

func TestHealth(t *testing.T) {
	r, _ := setupRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["status"] != "healthy" {
		t.Fatalf("expected healthy status, got %+v", body)
	}
}
