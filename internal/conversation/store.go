// ABOUTME: ConversationStore keeps a bounded message history per conversation id
// ABOUTME: Histories live in memory only and are trimmed oldest-first
package conversation

import (
	"strings"
	"sync"
	"time"

	"github.com/harper/finrag/internal/models"
)

const (
	// MaxMessages is the per-conversation cap (ten exchanges)
	MaxMessages = 20

	// DefaultWindow is how many recent messages go into a prompt
	DefaultWindow = 6

	// NoHistory is the context window text for a conversation with no messages
	NoHistory = "No previous conversation."
)

// Store is safe for concurrent use
type Store struct {
	mu            sync.RWMutex
	conversations map[string][]models.Message
	now           func() time.Time
}

// Option configures a Store
type Option func(*Store)

// WithClock overrides the timestamp source
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates an empty store
func New(opts ...Option) *Store {
	s := &Store{
		conversations: make(map[string][]models.Message),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append records one exchange: the user query then the assistant answer
func (s *Store) Append(id, query, answer string) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := append(s.conversations[id],
		models.Message{Role: models.RoleUser, Content: query, Timestamp: now},
		models.Message{Role: models.RoleAssistant, Content: answer, Timestamp: now},
	)
	if len(msgs) > MaxMessages {
		// copy so the dropped prefix can be collected
		msgs = append([]models.Message(nil), msgs[len(msgs)-MaxMessages:]...)
	}
	s.conversations[id] = msgs
}

// History returns a copy of the retained messages, oldest first.
// Unknown ids yield an empty slice.
func (s *Store) History(id string) []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.conversations[id]
	out := make([]models.Message, len(msgs))
	copy(out, msgs)
	return out
}

// Clear forgets a conversation; clearing an unknown id is a no-op
func (s *Store) Clear(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conversations, id)
}

// ContextWindow renders the last n messages as "User: ..." / "Assistant: ..." lines
func (s *Store) ContextWindow(id string, n int) string {
	if n <= 0 {
		n = DefaultWindow
	}

	s.mu.RLock()
	msgs := s.conversations[id]
	if len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	lines := make([]string, len(msgs))
	for i, m := range msgs {
		lines[i] = m.Role.Label() + ": " + m.Content
	}
	s.mu.RUnlock()

	if len(lines) == 0 {
		return NoHistory
	}
	return strings.Join(lines, "\n")
}

// Count returns the number of conversations with retained messages
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conversations)
}
