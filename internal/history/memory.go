package history

import (
	"context"
	"sync"
	"time"

	"github.com/af-corp/chatcenter/internal/types"
)

// relatedScanWindow bounds how far back relevance ranking looks.
const relatedScanWindow = 200

// MemoryStore is a per-process Store. It backs tests and the degraded mode
// the engine falls into when PostgreSQL is unreachable at startup.
type MemoryStore struct {
	mu        sync.RWMutex
	turns     map[string][]storedTurn
	summaries map[string]string
	reminders map[string][]string
}

type storedTurn struct {
	userID string
	turn   types.Turn
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		turns:     make(map[string][]storedTurn),
		summaries: make(map[string]string),
		reminders: make(map[string][]string),
	}
}

func (s *MemoryStore) AppendMessage(ctx context.Context, sessionID, userID, role, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns[sessionID] = append(s.turns[sessionID], storedTurn{
		userID: userID,
		turn:   types.Turn{Role: role, Content: content, CreatedAt: time.Now()},
	})
	return nil
}

func (s *MemoryStore) RecentTurns(ctx context.Context, sessionID string, limit int) ([]types.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored := s.turns[sessionID]
	start := len(stored) - limit
	if start < 0 {
		start = 0
	}
	out := make([]types.Turn, 0, len(stored)-start)
	for _, st := range stored[start:] {
		out = append(out, st.turn)
	}
	return out, nil
}

func (s *MemoryStore) RelatedTurns(ctx context.Context, sessionID, query string, limit int) ([]types.Turn, error) {
	s.mu.RLock()
	stored := s.turns[sessionID]
	start := len(stored) - relatedScanWindow
	if start < 0 {
		start = 0
	}
	candidates := make([]types.Turn, 0, len(stored)-start)
	for _, st := range stored[start:] {
		candidates = append(candidates, st.turn)
	}
	s.mu.RUnlock()

	return rankRelated(candidates, query, limit), nil
}

func (s *MemoryStore) Summary(ctx context.Context, sessionID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.summaries[sessionID], nil
}

func (s *MemoryStore) SaveSummary(ctx context.Context, sessionID, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries[sessionID] = summary
	return nil
}

func (s *MemoryStore) MessageCount(ctx context.Context, sessionID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns[sessionID]), nil
}

func (s *MemoryStore) SaveReminder(ctx context.Context, sessionID, userID, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reminders[userID] = append(s.reminders[userID], content)
	return nil
}

// Reminders returns the reminders stored for a user. Test helper.
func (s *MemoryStore) Reminders(userID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.reminders[userID]...)
}

func (s *MemoryStore) SessionHistory(ctx context.Context, sessionID string, limit int) ([]types.Turn, error) {
	return s.RecentTurns(ctx, sessionID, limit)
}
