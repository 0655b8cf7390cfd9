// Package history stores per-session chat history and builds the bounded
// conversational context loaded for each turn.
package history

import (
	"context"
	"sort"
	"strings"

	"github.com/af-corp/chatcenter/internal/types"
)

// Store persists and retrieves session history. All reads are safe to call
// concurrently with writes.
type Store interface {
	AppendMessage(ctx context.Context, sessionID, userID, role, content string) error
	RecentTurns(ctx context.Context, sessionID string, limit int) ([]types.Turn, error)
	RelatedTurns(ctx context.Context, sessionID, query string, limit int) ([]types.Turn, error)
	Summary(ctx context.Context, sessionID string) (string, error)
	SaveSummary(ctx context.Context, sessionID, summary string) error
	MessageCount(ctx context.Context, sessionID string) (int, error)
	SaveReminder(ctx context.Context, sessionID, userID, content string) error
	SessionHistory(ctx context.Context, sessionID string, limit int) ([]types.Turn, error)
}

// scoreOverlap ranks a stored turn against the latest message by case-folded
// keyword overlap. Words shorter than 3 runes carry no signal and are skipped.
func scoreOverlap(query, content string) int {
	queryWords := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(query)) {
		if len(w) >= 3 {
			queryWords[w] = true
		}
	}
	if len(queryWords) == 0 {
		return 0
	}
	score := 0
	for _, w := range strings.Fields(strings.ToLower(content)) {
		if queryWords[w] {
			score++
			delete(queryWords, w) // count each query word once
		}
	}
	return score
}

// rankRelated scores candidates against the query and returns the top limit
// turns, most relevant first; ties go to the more recent turn.
func rankRelated(candidates []types.Turn, query string, limit int) []types.Turn {
	type scored struct {
		turn  types.Turn
		score int
	}
	var hits []scored
	for _, turn := range candidates {
		if s := scoreOverlap(query, turn.Content); s > 0 {
			hits = append(hits, scored{turn: turn, score: s})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].turn.CreatedAt.After(hits[j].turn.CreatedAt)
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]types.Turn, len(hits))
	for i, h := range hits {
		out[i] = h.turn
	}
	return out
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}
