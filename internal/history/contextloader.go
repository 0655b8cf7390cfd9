package history

import (
	"context"
	"fmt"

	"github.com/af-corp/chatcenter/internal/config"
	"github.com/af-corp/chatcenter/internal/types"
)

// ContextLoader builds the bounded conversational context for one turn:
// session summary, the most recent turns, and turns related to the latest
// message. The three slices together never exceed the word budget; when raw
// history is larger, lower-relevance and older content is dropped first.
// Loading is read-only.
type ContextLoader struct {
	store Store
	cfg   config.ContextConfig
}

func NewContextLoader(store Store, cfg config.ContextConfig) *ContextLoader {
	return &ContextLoader{store: store, cfg: cfg}
}

func (l *ContextLoader) Load(ctx context.Context, sessionID, latestMessage string) (*types.ContextSnapshot, error) {
	budget := l.cfg.MaxTotalWords
	snap := &types.ContextSnapshot{Budget: budget}

	summary, err := l.store.Summary(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load summary: %w", err)
	}
	recent, err := l.store.RecentTurns(ctx, sessionID, l.cfg.RecentTurns)
	if err != nil {
		return nil, fmt.Errorf("load recent turns: %w", err)
	}
	related, err := l.store.RelatedTurns(ctx, sessionID, latestMessage, l.cfg.RelatedTurns)
	if err != nil {
		return nil, fmt.Errorf("load related turns: %w", err)
	}

	remaining := budget

	// The summary is the cheapest representation of old history; it goes in
	// first and whole or not at all.
	if summary != "" {
		if wc := wordCount(summary); wc <= remaining {
			snap.Summary = summary
			remaining -= wc
		}
	}

	// Recent turns, newest kept preferentially: walk backwards and prepend.
	for i := len(recent) - 1; i >= 0; i-- {
		wc := wordCount(recent[i].Content)
		if wc > remaining {
			break
		}
		snap.Recent = append([]types.Turn{recent[i]}, snap.Recent...)
		remaining -= wc
	}

	// Related turns are already ordered most-relevant first; lower-relevance
	// ones fall off when the budget runs out.
	for _, turn := range related {
		if containsTurn(snap.Recent, turn) {
			continue
		}
		wc := wordCount(turn.Content)
		if wc > remaining {
			break
		}
		snap.Related = append(snap.Related, turn)
		remaining -= wc
	}

	snap.WordsUsed = budget - remaining
	return snap, nil
}

func containsTurn(turns []types.Turn, t types.Turn) bool {
	for _, cur := range turns {
		if cur.Content == t.Content && cur.CreatedAt.Equal(t.CreatedAt) {
			return true
		}
	}
	return false
}
