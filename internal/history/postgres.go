package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/af-corp/chatcenter/internal/types"
)

const summaryCacheTTL = 5 * time.Minute
const summaryKeyPrefix = "chat:summary:"

// PostgresStore implements Store with PostgreSQL, fronted by a Redis
// read-through cache for session summaries. Redis is optional; a nil client
// disables the cache layer.
type PostgresStore struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func NewPostgresStore(db *pgxpool.Pool, rdb *redis.Client) *PostgresStore {
	return &PostgresStore{db: db, redis: rdb}
}

func (s *PostgresStore) AppendMessage(ctx context.Context, sessionID, userID, role, content string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO chat_messages (session_id, user_id, role, content)
		VALUES ($1, $2, $3, $4)
	`, sessionID, userID, role, content)
	if err != nil {
		return fmt.Errorf("insert chat message: %w", err)
	}
	return nil
}

func (s *PostgresStore) RecentTurns(ctx context.Context, sessionID string, limit int) ([]types.Turn, error) {
	rows, err := s.db.Query(ctx, `
		SELECT role, content, created_at
		FROM chat_messages
		WHERE session_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent turns: %w", err)
	}
	defer rows.Close()

	turns, err := scanTurns(rows)
	if err != nil {
		return nil, err
	}
	reverse(turns) // chronological order
	return turns, nil
}

func (s *PostgresStore) RelatedTurns(ctx context.Context, sessionID, query string, limit int) ([]types.Turn, error) {
	// Pull a bounded recent window and rank in-process; keyword relevance
	// does not need an index for windows this size.
	rows, err := s.db.Query(ctx, `
		SELECT role, content, created_at
		FROM chat_messages
		WHERE session_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, sessionID, relatedScanWindow)
	if err != nil {
		return nil, fmt.Errorf("query related candidates: %w", err)
	}
	defer rows.Close()

	candidates, err := scanTurns(rows)
	if err != nil {
		return nil, err
	}
	return rankRelated(candidates, query, limit), nil
}

func (s *PostgresStore) Summary(ctx context.Context, sessionID string) (string, error) {
	if s.redis != nil {
		cached, err := s.redis.Get(ctx, summaryKeyPrefix+sessionID).Result()
		if err == nil {
			return cached, nil
		}
	}

	var summary string
	err := s.db.QueryRow(ctx, `
		SELECT summary FROM session_summaries WHERE session_id = $1
	`, sessionID).Scan(&summary)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("query session summary: %w", err)
	}

	if s.redis != nil {
		s.redis.Set(ctx, summaryKeyPrefix+sessionID, summary, summaryCacheTTL)
	}
	return summary, nil
}

func (s *PostgresStore) SaveSummary(ctx context.Context, sessionID, summary string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO session_summaries (session_id, summary, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (session_id) DO UPDATE SET summary = $2, updated_at = NOW()
	`, sessionID, summary)
	if err != nil {
		return fmt.Errorf("upsert session summary: %w", err)
	}

	if s.redis != nil {
		s.redis.Set(ctx, summaryKeyPrefix+sessionID, summary, summaryCacheTTL)
	}
	return nil
}

func (s *PostgresStore) MessageCount(ctx context.Context, sessionID string) (int, error) {
	var count int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM chat_messages WHERE session_id = $1
	`, sessionID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) SaveReminder(ctx context.Context, sessionID, userID, content string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO reminders (session_id, user_id, content)
		VALUES ($1, $2, $3)
	`, sessionID, userID, content)
	if err != nil {
		return fmt.Errorf("insert reminder: %w", err)
	}
	return nil
}

func (s *PostgresStore) SessionHistory(ctx context.Context, sessionID string, limit int) ([]types.Turn, error) {
	return s.RecentTurns(ctx, sessionID, limit)
}

func scanTurns(rows pgx.Rows) ([]types.Turn, error) {
	var turns []types.Turn
	for rows.Next() {
		var t types.Turn
		if err := rows.Scan(&t.Role, &t.Content, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}
	return turns, nil
}

func reverse(turns []types.Turn) {
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
}
