package store

import (
	"context"
	"fmt"
)

// UpsertLexicalTokens merges a batch of tokens in one transaction. On
// conflict, weight and occurrences accumulate and last_turn takes the
// maximum.
func (s *SQLiteStore) UpsertLexicalTokens(ctx context.Context, convID string, tokens []LexicalToken) error {
	if len(tokens) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, t := range tokens {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO lexical_tokens (conversation_id, token, weight, occurrences, last_turn)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(conversation_id, token) DO UPDATE SET
			   weight = ROUND(weight + excluded.weight, 4),
			   occurrences = occurrences + excluded.occurrences,
			   last_turn = MAX(last_turn, excluded.last_turn)`,
			convID, t.Token, t.Weight, t.Occurrences, t.LastTurn,
		); err != nil {
			return fmt.Errorf("failed to upsert token: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tokens: %w", err)
	}
	return nil
}

// PruneLexicalTokens keeps the top-N tokens by (weight desc, last_turn
// desc, token asc). Idempotent.
func (s *SQLiteStore) PruneLexicalTokens(ctx context.Context, convID string, keep int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM lexical_tokens
		 WHERE conversation_id = ? AND token NOT IN (
		   SELECT token FROM lexical_tokens WHERE conversation_id = ?
		   ORDER BY weight DESC, last_turn DESC, token ASC LIMIT ?
		 )`,
		convID, convID, keep,
	)
	if err != nil {
		return fmt.Errorf("failed to prune tokens: %w", err)
	}
	return nil
}

// ListLexicalTokens returns the top tokens by (weight desc, last_turn
// desc, token asc). A non-positive limit returns all rows.
func (s *SQLiteStore) ListLexicalTokens(ctx context.Context, convID string, limit int) ([]LexicalToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT token, weight, occurrences, last_turn FROM lexical_tokens
		 WHERE conversation_id = ?
		 ORDER BY weight DESC, last_turn DESC, token ASC LIMIT ?`,
		convID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query tokens: %w", err)
	}
	defer rows.Close()

	var out []LexicalToken
	for rows.Next() {
		var t LexicalToken
		if err := rows.Scan(&t.Token, &t.Weight, &t.Occurrences, &t.LastTurn); err != nil {
			return nil, fmt.Errorf("failed to scan token: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tokens: %w", err)
	}
	return out, nil
}
