package agent

import (
	"context"

	"github.com/pmahattanasawat/resume-chat/backend/internal/model/chat"
)

// Stream carries one response as an ordered sequence of chunks from the
// orchestration goroutine to the transport writer. The channel is bounded:
// a slow consumer suspends production rather than growing a buffer.
type Stream struct {
	ch     chan chat.StreamChunk
	answer *Answer
	err    error
}

func newStream() *Stream {
	return &Stream{ch: make(chan chat.StreamChunk, streamBuffer)}
}

// Chunks returns the delivery channel. It is closed after the terminal
// chunk, or without one if the caller's context was cancelled mid-stream.
func (st *Stream) Chunks() <-chan chat.StreamChunk {
	return st.ch
}

// Result reports the finished answer. Valid only after Chunks is drained.
// A nil answer with a non-nil error means orchestration failed before Done;
// the partial output must not be persisted.
func (st *Stream) Result() (*Answer, error) {
	return st.answer, st.err
}

// emit blocks until the consumer accepts the chunk or the context is done.
func (st *Stream) emit(ctx context.Context, chunk chat.StreamChunk) bool {
	select {
	case st.ch <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}
