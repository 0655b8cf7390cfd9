package types

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// ErrEmptyMessage is the only validation failure surfaced to callers as an
// error response; every other failure degrades the result instead.
var ErrEmptyMessage = errors.New("message must not be empty")

// ChatRequest is the canonical internal representation of an incoming chat
// turn. The HTTP layer decodes into this and everything downstream reads it.
type ChatRequest struct {
	Message   string `json:"message"`
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id,omitempty"`
	Model     string `json:"model,omitempty"`
	WebSearch bool   `json:"web_search"`

	// Internal tracking
	ReceivedAt time.Time `json:"-"`
}

// Validate checks the request and fills defaults. Called once, before any
// retrieval begins.
func (r *ChatRequest) Validate() error {
	if r.Message == "" {
		return ErrEmptyMessage
	}
	if r.UserID == "" {
		r.UserID = "anonymous"
	}
	return nil
}

// ChatResult is returned synchronously to the caller. Immutable once built.
type ChatResult struct {
	Response  string       `json:"response"`
	SessionID string       `json:"session_id"`
	Metadata  ChatMetadata `json:"metadata"`
}

type ChatMetadata struct {
	DetectedSystem        string       `json:"detected_system,omitempty"`
	RAGUsed               bool         `json:"rag_used"`
	ContextStats          ContextStats `json:"context_stats"`
	ProcessingTimeSeconds float64      `json:"processing_time_seconds"`
	ModelUsed             string       `json:"model_used"`
}

type ContextStats struct {
	WordsUsed       int     `json:"words_used"`
	UsagePercentage float64 `json:"usage_percentage"`
}

// Turn is one stored message in a session's history.
type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ContextSnapshot is the bounded conversational context loaded for a session.
// Total words across Summary, Recent and Related never exceed the budget the
// loader was given.
type ContextSnapshot struct {
	Summary   string
	Recent    []Turn
	Related   []Turn
	WordsUsed int
	Budget    int
}

// Stats reports how much of the word budget the snapshot consumed.
func (s *ContextSnapshot) Stats() ContextStats {
	if s == nil {
		return ContextStats{}
	}
	pct := 0.0
	if s.Budget > 0 {
		pct = float64(s.WordsUsed) / float64(s.Budget) * 100
	}
	return ContextStats{WordsUsed: s.WordsUsed, UsagePercentage: pct}
}

// RetrievalBundle carries the per-request retrieval results into prompt
// assembly. Each field is independently nil-able: absence means that branch
// failed or was skipped, never an error for the bundle as a whole.
type RetrievalBundle struct {
	Context       *ContextSnapshot
	RAGContext    string
	RAGExperience string
	WebResults    string
}

// NewSessionID synthesizes a session identifier when the caller supplied
// none. Uniqueness is probabilistic (random suffix), which is acceptable
// here; the value is returned to the caller for reuse on subsequent turns.
func NewSessionID(userID string) string {
	b := make([]byte, 4)
	rand.Read(b)
	return fmt.Sprintf("%s_%d_%s", userID, time.Now().Unix(), hex.EncodeToString(b))
}
