package memory

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/pmahattanasawat/resume-chat/backend/internal/model/chat"
)

var (
	ErrInvalidSessionID = errors.New("invalid session id")
	ErrSessionBusy      = errors.New("session is busy")
)

const maxSessionIDLength = 128

// Config bounds per-session retention. Zero values fall back to defaults.
type Config struct {
	// MaxTurns caps the number of turns retained per session. Oldest turns
	// are dropped first; the most recent user turn is never dropped.
	MaxTurns int
	// SessionTTL is the idle duration after which a session is evicted by
	// the sweeper.
	SessionTTL time.Duration
}

const (
	defaultMaxTurns   = 50
	defaultSessionTTL = 30 * time.Minute
)

// Registry owns per-session conversation memory. It is constructed at
// process start and injected into request handlers; sessions are created on
// first use and evicted on explicit clear or idle timeout.
type Registry struct {
	mu       sync.RWMutex
	cfg      Config
	sessions map[string]*session
}

type session struct {
	// gate serializes orchestration for this session so concurrent messages
	// never interleave reads and appends.
	gate       chan struct{}
	turns      []chat.Turn
	lastActive time.Time
}

// NewRegistry bootstraps an empty in-memory registry.
func NewRegistry(cfg Config) *Registry {
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = defaultMaxTurns
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = defaultSessionTTL
	}
	return &Registry{
		cfg:      cfg,
		sessions: make(map[string]*session),
	}
}

// ValidateSessionID rejects malformed session identifiers at the boundary
// before they reach conversation memory.
func ValidateSessionID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidSessionID)
	}
	if len(id) > maxSessionIDLength {
		return fmt.Errorf("%w: exceeds %d bytes", ErrInvalidSessionID, maxSessionIDLength)
	}
	return nil
}

// Append adds a turn to the session history, creating the session on first
// use. Retention is enforced here: turns beyond MaxTurns are dropped oldest
// first.
func (r *Registry) Append(_ context.Context, sessionID string, turn chat.Turn) error {
	if err := ValidateSessionID(sessionID); err != nil {
		return err
	}

	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	sess := r.sessions[sessionID]
	if sess == nil {
		sess = newSession()
		r.sessions[sessionID] = sess
	}

	sess.turns = append(sess.turns, turn)
	if overflow := len(sess.turns) - r.cfg.MaxTurns; overflow > 0 {
		sess.turns = append([]chat.Turn(nil), sess.turns[overflow:]...)
	}
	sess.lastActive = time.Now()

	return nil
}

// History returns a snapshot of the session transcript. Unknown sessions are
// fresh sessions, not errors, and yield an empty slice.
func (r *Registry) History(_ context.Context, sessionID string) ([]chat.Turn, error) {
	if err := ValidateSessionID(sessionID); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.sessions[sessionID]
	if !ok {
		return []chat.Turn{}, nil
	}

	copied := make([]chat.Turn, len(sess.turns))
	copy(copied, sess.turns)
	return copied, nil
}

// Clear removes all turns for a session. Clearing an unknown session is not
// an error; the operation is idempotent.
func (r *Registry) Clear(_ context.Context, sessionID string) error {
	if err := ValidateSessionID(sessionID); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, sessionID)
	return nil
}

// Acquire takes the per-session orchestration lock, creating the session on
// first use. A second message for a session already mid-orchestration queues
// here until the first completes or the context expires. The returned release
// function must be called exactly once.
func (r *Registry) Acquire(ctx context.Context, sessionID string) (func(), error) {
	if err := ValidateSessionID(sessionID); err != nil {
		return nil, err
	}

	r.mu.Lock()
	sess := r.sessions[sessionID]
	if sess == nil {
		sess = newSession()
		r.sessions[sessionID] = sess
	}
	sess.lastActive = time.Now()
	r.mu.Unlock()

	select {
	case sess.gate <- struct{}{}:
		return func() { <-sess.gate }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrSessionBusy, ctx.Err())
	}
}

// StartSweeper launches the idle-session eviction loop. It stops when ctx is
// cancelled. Sessions currently mid-orchestration are skipped regardless of
// idle time.
func (r *Registry) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if evicted := r.sweep(time.Now()); evicted > 0 {
					log.Printf("[memory] evicted %d idle session(s)", evicted)
				}
			}
		}
	}()
}

func (r *Registry) sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for id, sess := range r.sessions {
		if now.Sub(sess.lastActive) < r.cfg.SessionTTL {
			continue
		}
		select {
		case sess.gate <- struct{}{}:
			<-sess.gate
		default:
			// Mid-orchestration; leave it for the next sweep.
			continue
		}
		delete(r.sessions, id)
		evicted++
	}
	return evicted
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func newSession() *session {
	return &session{
		gate:       make(chan struct{}, 1),
		turns:      make([]chat.Turn, 0, 16),
		lastActive: time.Now(),
	}
}
