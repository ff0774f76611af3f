package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

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

func setupServer(t *testing.T, steps []scriptStep) (*httptest.Server, *memory.Registry) {
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

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, mem
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/chat/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWebSocketChatExchange(t *testing.T) {
	srv, mem := setupServer(t, []scriptStep{
		{chunks: []*schema.Message{
			schema.AssistantMessage("Jane ", nil),
			schema.AssistantMessage("is an engineer.", nil),
		}},
	})
	conn := dial(t, srv)

	if err := conn.WriteJSON(chat.Request{Message: "Who is Jane?", SessionID: "ws-1"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	var text strings.Builder
	terminals := 0
	for terminals == 0 {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var chunk chat.StreamChunk
		if err := conn.ReadJSON(&chunk); err != nil {
			t.Fatalf("read: %v", err)
		}
		text.WriteString(chunk.Content)
		if chunk.IsComplete {
			terminals++
		}
	}
	if text.String() != "Jane is an engineer." {
		t.Fatalf("unexpected streamed text: %q", text.String())
	}

	turns, _ := mem.History(context.Background(), "ws-1")
	if len(turns) != 2 {
		t.Fatalf("expected user + assistant turns, got %d", len(turns))
	}
}

func TestWebSocketEmptyMessage(t *testing.T) {
	srv, _ := setupServer(t, nil)
	conn := dial(t, srv)

	if err := conn.WriteJSON(chat.Request{Message: "  "}); err != nil {
		t.Fatalf("write: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var frame map[string]string
	if err := json.Unmarshal(raw, &frame); err != nil {
		t.Fatalf("decode error frame: %v", err)
	}
	if !strings.Contains(frame["error"], "message field is required") {
		t.Fatalf("expected validation error, got %v", frame)
	}
}
