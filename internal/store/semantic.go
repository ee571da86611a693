package store

import (
	"context"
	"fmt"
)

// UpsertSemanticItems merges a batch of items in one transaction. On
// conflict: weight and occurrences accumulate, confidence takes the
// maximum, first_turn the minimum, last_turn the maximum, and the
// incoming evidence text wins.
func (s *SQLiteStore) UpsertSemanticItems(ctx context.Context, convID string, items []SemanticItem) error {
	if len(items) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, it := range items {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO semantic_items
			   (conversation_id, item_type, canonical_text, evidence_text,
			    weight, confidence, occurrences, first_turn, last_turn, status)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(conversation_id, item_type, canonical_text) DO UPDATE SET
			   evidence_text = excluded.evidence_text,
			   weight = ROUND(weight + excluded.weight, 4),
			   confidence = MAX(confidence, excluded.confidence),
			   occurrences = occurrences + excluded.occurrences,
			   first_turn = MIN(first_turn, excluded.first_turn),
			   last_turn = MAX(last_turn, excluded.last_turn)`,
			convID, it.ItemType, it.CanonicalText, it.EvidenceText,
			it.Weight, it.Confidence, it.Occurrences, it.FirstTurn, it.LastTurn, it.Status,
		); err != nil {
			return fmt.Errorf("failed to upsert semantic item: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit semantic items: %w", err)
	}
	return nil
}

// PruneSemanticItems keeps the top-N items by (weight desc, last_turn
// desc, key asc). Idempotent.
func (s *SQLiteStore) PruneSemanticItems(ctx context.Context, convID string, keep int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM semantic_items
		 WHERE conversation_id = ? AND (item_type, canonical_text) NOT IN (
		   SELECT item_type, canonical_text FROM semantic_items WHERE conversation_id = ?
		   ORDER BY weight DESC, last_turn DESC, item_type ASC, canonical_text ASC LIMIT ?
		 )`,
		convID, convID, keep,
	)
	if err != nil {
		return fmt.Errorf("failed to prune semantic items: %w", err)
	}
	return nil
}

// ListSemanticItems returns the top items by (weight desc, last_turn
// desc, key asc). A non-positive limit returns all rows.
func (s *SQLiteStore) ListSemanticItems(ctx context.Context, convID string, limit int) ([]SemanticItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT item_type, canonical_text, evidence_text, weight, confidence,
		        occurrences, first_turn, last_turn, status
		 FROM semantic_items WHERE conversation_id = ?
		 ORDER BY weight DESC, last_turn DESC, item_type ASC, canonical_text ASC LIMIT ?`,
		convID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query semantic items: %w", err)
	}
	defer rows.Close()

	var out []SemanticItem
	for rows.Next() {
		var it SemanticItem
		if err := rows.Scan(&it.ItemType, &it.CanonicalText, &it.EvidenceText,
			&it.Weight, &it.Confidence, &it.Occurrences,
			&it.FirstTurn, &it.LastTurn, &it.Status); err != nil {
			return nil, fmt.Errorf("failed to scan semantic item: %w", err)
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate semantic items: %w", err)
	}
	return out, nil
}
