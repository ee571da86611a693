package store

import (
	"context"
	"fmt"
)

// UpsertConflictEntries merges a batch of ledger entries in one
// transaction. On conflict: confidence and last_turn take the maximum,
// occurrences accumulate, first_turn the minimum, and the copied
// evidence strings refresh to the latest detection.
func (s *SQLiteStore) UpsertConflictEntries(ctx context.Context, convID string, entries []ConflictEntry) error {
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
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO conflict_entries
			   (conversation_id, issue_key, item_a, item_b, confidence, status,
			    first_turn, last_turn, occurrences)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(conversation_id, issue_key) DO UPDATE SET
			   item_a = excluded.item_a,
			   item_b = excluded.item_b,
			   confidence = MAX(confidence, excluded.confidence),
			   first_turn = MIN(first_turn, excluded.first_turn),
			   last_turn = MAX(last_turn, excluded.last_turn),
			   occurrences = occurrences + excluded.occurrences`,
			convID, e.IssueKey, e.ItemA, e.ItemB, e.Confidence, e.Status,
			e.FirstTurn, e.LastTurn, e.Occurrences,
		); err != nil {
			return fmt.Errorf("failed to upsert conflict: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit conflicts: %w", err)
	}
	return nil
}

// PruneConflictEntries keeps the top-N entries by (confidence desc,
// last_turn desc, issue_key asc). Idempotent.
func (s *SQLiteStore) PruneConflictEntries(ctx context.Context, convID string, keep int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM conflict_entries
		 WHERE conversation_id = ? AND issue_key NOT IN (
		   SELECT issue_key FROM conflict_entries WHERE conversation_id = ?
		   ORDER BY confidence DESC, last_turn DESC, issue_key ASC LIMIT ?
		 )`,
		convID, convID, keep,
	)
	if err != nil {
		return fmt.Errorf("failed to prune conflicts: %w", err)
	}
	return nil
}

// ListConflictEntries returns the top entries by (confidence desc,
// last_turn desc, issue_key asc). A non-positive limit returns all.
func (s *SQLiteStore) ListConflictEntries(ctx context.Context, convID string, limit int) ([]ConflictEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT issue_key, item_a, item_b, confidence, status, first_turn, last_turn, occurrences
		 FROM conflict_entries WHERE conversation_id = ?
		 ORDER BY confidence DESC, last_turn DESC, issue_key ASC LIMIT ?`,
		convID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query conflicts: %w", err)
	}
	defer rows.Close()

	var out []ConflictEntry
	for rows.Next() {
		var e ConflictEntry
		if err := rows.Scan(&e.IssueKey, &e.ItemA, &e.ItemB, &e.Confidence,
			&e.Status, &e.FirstTurn, &e.LastTurn, &e.Occurrences); err != nil {
			return nil, fmt.Errorf("failed to scan conflict: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate conflicts: %w", err)
	}
	return out, nil
}
