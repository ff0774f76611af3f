package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/pmahattanasawat/resume-chat/backend/internal/model/chat"
	"github.com/pmahattanasawat/resume-chat/backend/internal/service/tools"
)

// Config bounds one orchestration pass. Zero values fall back to defaults.
type Config struct {
	// MaxToolCalls caps reasoning iterations per message. Reaching the cap
	// forces a best-effort final answer instead of looping forever.
	MaxToolCalls int
	// HistoryLimit caps the number of stored turns rendered into the model
	// context.
	HistoryLimit int
	// RetryBackoff is the pause before the single retry of a failed model
	// call.
	RetryBackoff time.Duration
}

const (
	defaultMaxToolCalls = 5
	defaultHistoryLimit = 10
	defaultRetryBackoff = 500 * time.Millisecond

	// streamBuffer bounds the chunk channel between the producing
	// orchestration goroutine and the consuming transport writer. A full
	// channel suspends production until the transport catches up.
	streamBuffer = 16
)

// apologyMessage is the only text a caller sees when orchestration fails.
const apologyMessage = "I apologize, but I encountered an error processing your question. " +
	"Please try rephrasing it or ask about a specific aspect of the resume."

// Answer is the finished result of one orchestration pass.
type Answer struct {
	Text    string
	Sources []string
	// Truncated marks an answer produced after the tool-call cap was hit;
	// Sources may be partial.
	Truncated bool
}

// Service runs the reasoning loop: given conversation history and a new user
// message it asks the model to either answer or request a tool call, executes
// requested tools against the registry, and produces the final answer text.
type Service struct {
	base         model.ToolCallingChatModel
	toolModel    model.ToolCallingChatModel
	registry     *tools.Registry
	systemPrompt string
	cfg          Config
}

// NewService binds the registry's tool contracts to the chat model.
func NewService(chatModel model.ToolCallingChatModel, registry *tools.Registry, ownerName string, cfg Config) (*Service, error) {
	if chatModel == nil {
		return nil, errors.New("chat model is required")
	}
	if registry == nil {
		return nil, errors.New("tool registry is required")
	}

	if cfg.MaxToolCalls <= 0 {
		cfg.MaxToolCalls = defaultMaxToolCalls
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = defaultRetryBackoff
	}

	toolModel, err := chatModel.WithTools(registry.Infos())
	if err != nil {
		return nil, fmt.Errorf("failed to bind tools: %w", err)
	}

	return &Service{
		base:         chatModel,
		toolModel:    toolModel,
		registry:     registry,
		systemPrompt: BuildSystemPrompt(ownerName),
		cfg:          cfg,
	}, nil
}

// Respond runs one orchestration pass to completion and returns the
// aggregate answer.
func (s *Service) Respond(ctx context.Context, history []chat.Turn, message string) (*Answer, error) {
	msgs := s.buildMessages(history, message)
	consulted := make(map[string]struct{})

	for i := 0; i < s.cfg.MaxToolCalls; i++ {
		resp, err := s.generate(ctx, s.toolModel, msgs)
		if err != nil {
			return nil, err
		}
		if len(resp.ToolCalls) == 0 {
			return &Answer{Text: resp.Content, Sources: sourceList(consulted)}, nil
		}

		msgs = append(msgs, resp)
		msgs = s.appendToolResults(ctx, msgs, resp.ToolCalls, consulted)
	}

	// Cap reached: one final completion without tools, flagged best-effort.
	resp, err := s.generate(ctx, s.base, append(msgs, schema.UserMessage(forceAnswerPrompt)))
	if err != nil {
		return nil, err
	}
	return &Answer{Text: resp.Content, Sources: sourceList(consulted), Truncated: true}, nil
}

// Stream runs one orchestration pass in a background goroutine, delivering
// the final answer text as ordered chunks. The returned stream's channel is
// closed after the terminal chunk; Result reports the finished answer once
// the channel is drained.
func (s *Service) Stream(ctx context.Context, history []chat.Turn, message string) *Stream {
	st := newStream()
	go s.produce(ctx, history, message, st)
	return st
}

func (s *Service) produce(ctx context.Context, history []chat.Turn, message string, st *Stream) {
	defer close(st.ch)

	answer, err := s.streamAnswer(ctx, history, message, st)
	if err != nil {
		st.err = err
		if ctx.Err() != nil {
			// Caller is gone; nothing left to deliver.
			return
		}
		log.Printf("[agent] orchestration failed: %v", err)
		if st.emit(ctx, chat.StreamChunk{Content: apologyMessage}) {
			st.emit(ctx, chat.StreamChunk{IsComplete: true})
		}
		return
	}

	st.answer = answer
	st.emit(ctx, chat.StreamChunk{IsComplete: true, Sources: answer.Sources})
}

func (s *Service) streamAnswer(ctx context.Context, history []chat.Turn, message string, st *Stream) (*Answer, error) {
	msgs := s.buildMessages(history, message)
	consulted := make(map[string]struct{})

	for i := 0; i < s.cfg.MaxToolCalls; i++ {
		full, err := s.streamOnce(ctx, s.toolModel, msgs, st)
		if err != nil {
			return nil, err
		}
		if len(full.ToolCalls) == 0 {
			return &Answer{Text: full.Content, Sources: sourceList(consulted)}, nil
		}

		msgs = append(msgs, full)
		msgs = s.appendToolResults(ctx, msgs, full.ToolCalls, consulted)
	}

	full, err := s.streamOnce(ctx, s.base, append(msgs, schema.UserMessage(forceAnswerPrompt)), st)
	if err != nil {
		return nil, err
	}
	return &Answer{Text: full.Content, Sources: sourceList(consulted), Truncated: true}, nil
}

// streamOnce streams one model completion, forwarding content chunks to the
// delivery channel in generation order. Forwarding stops as soon as a
// tool-call fragment appears: tool-call completions carry their reasoning in
// ToolCalls, and reasoning traces are never shown to the caller.
func (s *Service) streamOnce(ctx context.Context, m model.ToolCallingChatModel, msgs []*schema.Message, st *Stream) (*schema.Message, error) {
	reader, err := s.stream(ctx, m, msgs)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	chunks := make([]*schema.Message, 0, 8)
	sawToolCall := false

	for {
		chunk, recvErr := reader.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			return nil, recvErr
		}
		if chunk == nil {
			continue
		}

		chunks = append(chunks, chunk)
		if len(chunk.ToolCalls) > 0 {
			sawToolCall = true
		}
		if chunk.Content != "" && !sawToolCall {
			if !st.emit(ctx, chat.StreamChunk{Content: chunk.Content}) {
				return nil, ctx.Err()
			}
		}
	}

	return schema.ConcatMessages(chunks)
}

// appendToolResults executes each requested tool call and feeds the outcome
// back into the reasoning context. Invalid arguments and unknown tools come
// back as tool-error messages for the model, never as a crashed session.
func (s *Service) appendToolResults(ctx context.Context, msgs []*schema.Message, calls []schema.ToolCall, consulted map[string]struct{}) []*schema.Message {
	for _, call := range calls {
		name := call.Function.Name
		result, err := s.registry.Dispatch(ctx, name, json.RawMessage(call.Function.Arguments))

		var content string
		switch {
		case err != nil:
			content = fmt.Sprintf("tool error: %v", err)
			log.Printf("[agent] tool dispatch failed: %v", err)
		case result.IsError:
			content = "tool error: " + result.Content
		default:
			content = result.Content
			consulted[name] = struct{}{}
		}

		msgs = append(msgs, schema.ToolMessage(content, call.ID))
	}
	return msgs
}

// generate calls the model once, retrying a single time with backoff on
// transient upstream failures.
func (s *Service) generate(ctx context.Context, m model.ToolCallingChatModel, msgs []*schema.Message) (*schema.Message, error) {
	resp, err := m.Generate(ctx, msgs)
	if err == nil {
		return resp, nil
	}
	if waitErr := s.backoff(ctx, err); waitErr != nil {
		return nil, waitErr
	}
	return m.Generate(ctx, msgs)
}

func (s *Service) stream(ctx context.Context, m model.ToolCallingChatModel, msgs []*schema.Message) (*schema.StreamReader[*schema.Message], error) {
	reader, err := m.Stream(ctx, msgs)
	if err == nil {
		return reader, nil
	}
	if waitErr := s.backoff(ctx, err); waitErr != nil {
		return nil, waitErr
	}
	return m.Stream(ctx, msgs)
}

func (s *Service) backoff(ctx context.Context, cause error) error {
	if ctx.Err() != nil {
		return cause
	}
	log.Printf("[agent] model call failed, retrying once: %v", cause)
	select {
	case <-time.After(s.cfg.RetryBackoff):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) buildMessages(history []chat.Turn, message string) []*schema.Message {
	msgs := make([]*schema.Message, 0, len(history)+2)
	msgs = append(msgs, schema.SystemMessage(s.systemPrompt))

	start := 0
	if len(history) > s.cfg.HistoryLimit {
		start = len(history) - s.cfg.HistoryLimit
	}
	for _, turn := range history[start:] {
		switch turn.Role {
		case chat.RoleUser:
			msgs = append(msgs, schema.UserMessage(turn.Content))
		case chat.RoleAssistant:
			msgs = append(msgs, schema.AssistantMessage(turn.Content, nil))
		}
	}

	return append(msgs, schema.UserMessage(message))
}

func sourceList(consulted map[string]struct{}) []string {
	sources := make([]string, 0, len(consulted))
	for name := range consulted {
		sources = append(sources, name)
	}
	sort.Strings(sources)
	return sources
}
