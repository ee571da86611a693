package store

import (
	"context"
	"database/sql"
	"fmt"
)

// AppendMessages inserts the batch in one transaction and touches the
// conversation's updated_at. If any turn already exists the whole batch
// is rolled back with ErrDuplicateTurn.
func (s *SQLiteStore) AppendMessages(ctx context.Context, convID string, entries []Message) error {
	if len(entries) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, e := range entries {
		var exists int
		err := tx.QueryRowContext(ctx,
			`SELECT 1 FROM messages WHERE conversation_id = ? AND turn = ?`,
			convID, e.Turn,
		).Scan(&exists)
		if err == nil {
			return fmt.Errorf("%w: conversation %s turn %d", ErrDuplicateTurn, convID, e.Turn)
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("failed to check turn: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO messages (conversation_id, turn, speaker, speaker_id, text)
			 VALUES (?, ?, ?, ?, ?)`,
			convID, e.Turn, e.Speaker, e.SpeakerID, e.Text,
		); err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE conversations SET updated_at = CURRENT_TIMESTAMP WHERE id = ?`, convID,
	); err != nil {
		return fmt.Errorf("failed to touch conversation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

// GetMessages returns the full transcript in turn order.
func (s *SQLiteStore) GetMessages(ctx context.Context, convID string) ([]Message, error) {
	return s.queryMessages(ctx,
		`SELECT turn, speaker, speaker_id, text, created_at FROM messages
		 WHERE conversation_id = ? ORDER BY turn ASC`, convID)
}

// GetMessagesInRange returns the turns in [startTurn, endTurn].
func (s *SQLiteStore) GetMessagesInRange(ctx context.Context, convID string, startTurn, endTurn int) ([]Message, error) {
	return s.queryMessages(ctx,
		`SELECT turn, speaker, speaker_id, text, created_at FROM messages
		 WHERE conversation_id = ? AND turn >= ? AND turn <= ? ORDER BY turn ASC`,
		convID, startTurn, endTurn)
}

// GetMessagesUpToTurn returns the turns in [1, maxTurn].
func (s *SQLiteStore) GetMessagesUpToTurn(ctx context.Context, convID string, maxTurn int) ([]Message, error) {
	return s.queryMessages(ctx,
		`SELECT turn, speaker, speaker_id, text, created_at FROM messages
		 WHERE conversation_id = ? AND turn <= ? ORDER BY turn ASC`,
		convID, maxTurn)
}

func (s *SQLiteStore) queryMessages(ctx context.Context, query string, args ...any) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.Turn, &m.Speaker, &m.SpeakerID, &m.Text, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}
	return out, nil
}
