package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on an embedded SQLite file. A single
// connection serializes writes; SQLite allows one writer anyway and the
// pool would otherwise break ":memory:" databases in tests.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
	logger *zap.Logger
}

var _ Store = (*SQLiteStore)(nil)

// Open initializes the SQLite database at the given path, creating the
// parent directory if needed. Pass ":memory:" for an ephemeral store.
func Open(path string, logger *zap.Logger) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, dbPath: path, logger: logger}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// initialize applies pragmas and creates the schema.
func (s *SQLiteStore) initialize() error {
	for _, pragma := range []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA foreign_keys=ON;`,
	} {
		if _, err := s.db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to apply pragma: %w", err)
		}
	}

	conversationTable := `
	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		topic TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`

	messageTable := `
	CREATE TABLE IF NOT EXISTS messages (
		conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
		turn INTEGER NOT NULL,
		speaker TEXT NOT NULL,
		speaker_id TEXT NOT NULL,
		text TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (conversation_id, turn)
	);
	`

	lexicalTable := `
	CREATE TABLE IF NOT EXISTS lexical_tokens (
		conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
		token TEXT NOT NULL,
		weight REAL NOT NULL DEFAULT 0,
		occurrences INTEGER NOT NULL DEFAULT 1,
		last_turn INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (conversation_id, token)
	);
	CREATE INDEX IF NOT EXISTS idx_lexical_rank ON lexical_tokens(conversation_id, weight DESC, last_turn DESC);
	`

	semanticTable := `
	CREATE TABLE IF NOT EXISTS semantic_items (
		conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
		item_type TEXT NOT NULL,
		canonical_text TEXT NOT NULL,
		evidence_text TEXT NOT NULL,
		weight REAL NOT NULL DEFAULT 0,
		confidence REAL NOT NULL DEFAULT 0,
		occurrences INTEGER NOT NULL DEFAULT 1,
		first_turn INTEGER NOT NULL DEFAULT 0,
		last_turn INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'active',
		PRIMARY KEY (conversation_id, item_type, canonical_text)
	);
	CREATE INDEX IF NOT EXISTS idx_semantic_rank ON semantic_items(conversation_id, weight DESC, last_turn DESC);
	`

	microTable := `
	CREATE TABLE IF NOT EXISTS micro_summaries (
		conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
		start_turn INTEGER NOT NULL,
		end_turn INTEGER NOT NULL,
		summary TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (conversation_id, start_turn, end_turn)
	);
	`

	tierTable := `
	CREATE TABLE IF NOT EXISTS tier_summaries (
		conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
		tier TEXT NOT NULL,
		start_turn INTEGER NOT NULL,
		end_turn INTEGER NOT NULL,
		summary TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (conversation_id, tier, start_turn, end_turn)
	);
	`

	conflictTable := `
	CREATE TABLE IF NOT EXISTS conflict_entries (
		conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
		issue_key TEXT NOT NULL,
		item_a TEXT NOT NULL,
		item_b TEXT NOT NULL,
		confidence REAL NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'open',
		first_turn INTEGER NOT NULL DEFAULT 0,
		last_turn INTEGER NOT NULL DEFAULT 0,
		occurrences INTEGER NOT NULL DEFAULT 1,
		PRIMARY KEY (conversation_id, issue_key)
	);
	CREATE INDEX IF NOT EXISTS idx_conflict_rank ON conflict_entries(conversation_id, confidence DESC, last_turn DESC);
	`

	for _, table := range []string{
		conversationTable, messageTable, lexicalTable, semanticTable,
		microTable, tierTable, conflictTable,
	} {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetConversation returns the conversation or ErrConversationNotFound.
func (s *SQLiteStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var conv Conversation
	err := s.db.QueryRowContext(ctx,
		`SELECT id, topic, created_at, updated_at FROM conversations WHERE id = ?`, id,
	).Scan(&conv.ID, &conv.Topic, &conv.CreatedAt, &conv.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrConversationNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	return &conv, nil
}

// CreateConversation inserts a new conversation row.
func (s *SQLiteStore) CreateConversation(ctx context.Context, id, topic string) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, topic) VALUES (?, ?)`, id, topic,
	); err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	var conv Conversation
	if err := s.db.QueryRowContext(ctx,
		`SELECT id, topic, created_at, updated_at FROM conversations WHERE id = ?`, id,
	).Scan(&conv.ID, &conv.Topic, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to read back conversation: %w", err)
	}
	return &conv, nil
}

// GetMemoryStats aggregates the per-conversation memory counters.
func (s *SQLiteStore) GetMemoryStats(ctx context.Context, convID string) (*MemoryStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &MemoryStats{}

	counts := []struct {
		query string
		dest  *int
	}{
		{`SELECT COUNT(*) FROM messages WHERE conversation_id = ?`, &stats.Messages},
		{`SELECT COUNT(*) FROM lexical_tokens WHERE conversation_id = ?`, &stats.Tokens},
		{`SELECT COUNT(*) FROM semantic_items WHERE conversation_id = ?`, &stats.SemanticItems},
		{`SELECT COUNT(*) FROM micro_summaries WHERE conversation_id = ?`, &stats.MicroSummaries},
		{`SELECT COUNT(*) FROM tier_summaries WHERE conversation_id = ?`, &stats.TierSummaries},
		{`SELECT COUNT(*) FROM conflict_entries WHERE conversation_id = ?`, &stats.Conflicts},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query, convID).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("failed to count rows: %w", err)
		}
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT item_type, COUNT(*) FROM semantic_items WHERE conversation_id = ? GROUP BY item_type`,
		convID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count semantic types: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var typ string
		var n int
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, fmt.Errorf("failed to scan type count: %w", err)
		}
		switch typ {
		case "decision":
			stats.Decisions = n
		case "open_question":
			stats.OpenQuestions = n
		case "constraint":
			stats.Constraints = n
		case "definition":
			stats.Definitions = n
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate type counts: %w", err)
	}

	if err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(end_turn), 0) FROM micro_summaries WHERE conversation_id = ?`,
		convID,
	).Scan(&stats.LastSummaryTurn); err != nil {
		return nil, fmt.Errorf("failed to read last summary turn: %w", err)
	}

	return stats, nil
}
