package store

import (
	"context"
	"fmt"
)

// InsertMicroSummary inserts a micro summary row. Re-inserting an
// existing (start, end) range is a no-op: summaries are immutable.
func (s *SQLiteStore) InsertMicroSummary(ctx context.Context, convID string, startTurn, endTurn int, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO micro_summaries (conversation_id, start_turn, end_turn, summary)
		 VALUES (?, ?, ?, ?)`,
		convID, startTurn, endTurn, summary,
	)
	if err != nil {
		return fmt.Errorf("failed to insert micro summary: %w", err)
	}
	return nil
}

// ListRecentMicroSummaries returns the latest micro summaries, oldest
// first, limited to the last `limit` windows.
func (s *SQLiteStore) ListRecentMicroSummaries(ctx context.Context, convID string, limit int) ([]Summary, error) {
	return s.querySummaries(ctx,
		`SELECT ?1, start_turn, end_turn, summary FROM (
		   SELECT start_turn, end_turn, summary FROM micro_summaries
		   WHERE conversation_id = ?2 ORDER BY end_turn DESC LIMIT ?3
		 ) ORDER BY start_turn ASC`,
		TierMicro, convID, limit)
}

// ListMicroSummariesAfter returns every micro summary whose end turn is
// beyond afterEndTurn, in range order. Tier compaction consumes these.
func (s *SQLiteStore) ListMicroSummariesAfter(ctx context.Context, convID string, afterEndTurn int) ([]Summary, error) {
	return s.querySummaries(ctx,
		`SELECT ?1, start_turn, end_turn, summary FROM micro_summaries
		 WHERE conversation_id = ?2 AND end_turn > ?3 ORDER BY start_turn ASC`,
		TierMicro, convID, afterEndTurn)
}

// InsertTierSummary inserts a meso or macro summary row with the same
// immutability rule as micro summaries.
func (s *SQLiteStore) InsertTierSummary(ctx context.Context, convID, tier string, startTurn, endTurn int, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO tier_summaries (conversation_id, tier, start_turn, end_turn, summary)
		 VALUES (?, ?, ?, ?, ?)`,
		convID, tier, startTurn, endTurn, summary,
	)
	if err != nil {
		return fmt.Errorf("failed to insert tier summary: %w", err)
	}
	return nil
}

// ListRecentTierSummaries returns the latest summaries of one tier,
// oldest first, limited to the last `limit` ranges.
func (s *SQLiteStore) ListRecentTierSummaries(ctx context.Context, convID, tier string, limit int) ([]Summary, error) {
	return s.querySummaries(ctx,
		`SELECT ?1, start_turn, end_turn, summary FROM (
		   SELECT start_turn, end_turn, summary FROM tier_summaries
		   WHERE conversation_id = ?2 AND tier = ?1 ORDER BY end_turn DESC LIMIT ?3
		 ) ORDER BY start_turn ASC`,
		tier, convID, limit)
}

// ListTierSummariesAfter returns every summary of one tier beyond
// afterEndTurn, in range order.
func (s *SQLiteStore) ListTierSummariesAfter(ctx context.Context, convID, tier string, afterEndTurn int) ([]Summary, error) {
	return s.querySummaries(ctx,
		`SELECT ?1, start_turn, end_turn, summary FROM tier_summaries
		 WHERE conversation_id = ?2 AND tier = ?1 AND end_turn > ?3 ORDER BY start_turn ASC`,
		tier, convID, afterEndTurn)
}

func (s *SQLiteStore) querySummaries(ctx context.Context, query string, args ...any) ([]Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query summaries: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sm Summary
		if err := rows.Scan(&sm.Tier, &sm.StartTurn, &sm.EndTurn, &sm.Summary); err != nil {
			return nil, fmt.Errorf("failed to scan summary: %w", err)
		}
		out = append(out, sm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate summaries: %w", err)
	}
	return out, nil
}
