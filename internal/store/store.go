// Package store persists conversations and their memory state in an
// embedded SQLite database. All writes for one conversation go through
// short transactions; batch operations are atomic.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrDuplicateTurn reports an append of a (conversation, turn) pair
	// that already exists. This is a programmer error: turns are
	// allocated strictly monotonically by the orchestrator.
	ErrDuplicateTurn = errors.New("duplicate turn")

	// ErrConversationNotFound reports a lookup of an unknown id.
	ErrConversationNotFound = errors.New("conversation not found")
)

// Conversation is the root entity; every other row hangs off its id.
type Conversation struct {
	ID        string    `json:"id"`
	Topic     string    `json:"topic"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Message is one stored turn. Turns form a dense prefix 1..N.
type Message struct {
	Turn      int       `json:"turn"`
	Speaker   string    `json:"speaker"`
	SpeakerID string    `json:"speakerId"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"-"`
}

// LexicalToken is one weighted token row of the lexical tier.
type LexicalToken struct {
	Token       string  `json:"token"`
	Weight      float64 `json:"weight"`
	Occurrences int     `json:"occurrences"`
	LastTurn    int     `json:"lastTurn"`
}

// SemanticItem is one classified claim of the semantic tier.
type SemanticItem struct {
	ItemType      string  `json:"itemType"`
	CanonicalText string  `json:"canonicalText"`
	EvidenceText  string  `json:"evidenceText"`
	Weight        float64 `json:"weight"`
	Confidence    float64 `json:"confidence"`
	Occurrences   int     `json:"occurrences"`
	FirstTurn     int     `json:"firstTurn"`
	LastTurn      int     `json:"lastTurn"`
	Status        string  `json:"status"`
}

// Summary is a micro or tier summary covering [StartTurn, EndTurn].
type Summary struct {
	Tier      string `json:"tier"`
	StartTurn int    `json:"startTurn"`
	EndTurn   int    `json:"endTurn"`
	Summary   string `json:"summary"`
}

// Summary tiers.
const (
	TierMicro = "micro"
	TierMeso  = "meso"
	TierMacro = "macro"
)

// ConflictEntry is one detected contradiction in the ledger. ItemA and
// ItemB are copied evidence, not references, so pruning semantic items
// never dangles the ledger.
type ConflictEntry struct {
	IssueKey    string  `json:"issueKey"`
	ItemA       string  `json:"itemA"`
	ItemB       string  `json:"itemB"`
	Confidence  float64 `json:"confidence"`
	Status      string  `json:"status"`
	FirstTurn   int     `json:"firstTurn"`
	LastTurn    int     `json:"lastTurn"`
	Occurrences int     `json:"occurrences"`
}

// MemoryStats aggregates per-conversation memory counts.
type MemoryStats struct {
	Messages        int `json:"messages"`
	Tokens          int `json:"tokens"`
	SemanticItems   int `json:"semanticItems"`
	Decisions       int `json:"decisions"`
	OpenQuestions   int `json:"openQuestions"`
	Constraints     int `json:"constraints"`
	Definitions     int `json:"definitions"`
	MicroSummaries  int `json:"microSummaries"`
	TierSummaries   int `json:"tierSummaries"`
	Conflicts       int `json:"conflicts"`
	LastSummaryTurn int `json:"lastSummaryTurn"`
}

// Store is the persistence contract of the memory core. Batch writes
// are single atomic units; reads return strictly sorted outputs.
type Store interface {
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	CreateConversation(ctx context.Context, id, topic string) (*Conversation, error)

	// AppendMessages inserts a batch atomically and touches the
	// conversation's updated_at. Fails with ErrDuplicateTurn if any
	// turn already exists; nothing is written in that case.
	AppendMessages(ctx context.Context, convID string, entries []Message) error
	GetMessages(ctx context.Context, convID string) ([]Message, error)
	GetMessagesInRange(ctx context.Context, convID string, startTurn, endTurn int) ([]Message, error)
	GetMessagesUpToTurn(ctx context.Context, convID string, maxTurn int) ([]Message, error)

	UpsertLexicalTokens(ctx context.Context, convID string, tokens []LexicalToken) error
	PruneLexicalTokens(ctx context.Context, convID string, keep int) error
	ListLexicalTokens(ctx context.Context, convID string, limit int) ([]LexicalToken, error)

	UpsertSemanticItems(ctx context.Context, convID string, items []SemanticItem) error
	PruneSemanticItems(ctx context.Context, convID string, keep int) error
	ListSemanticItems(ctx context.Context, convID string, limit int) ([]SemanticItem, error)

	InsertMicroSummary(ctx context.Context, convID string, startTurn, endTurn int, summary string) error
	ListRecentMicroSummaries(ctx context.Context, convID string, limit int) ([]Summary, error)
	ListMicroSummariesAfter(ctx context.Context, convID string, afterEndTurn int) ([]Summary, error)

	InsertTierSummary(ctx context.Context, convID, tier string, startTurn, endTurn int, summary string) error
	ListRecentTierSummaries(ctx context.Context, convID, tier string, limit int) ([]Summary, error)
	ListTierSummariesAfter(ctx context.Context, convID, tier string, afterEndTurn int) ([]Summary, error)

	UpsertConflictEntries(ctx context.Context, convID string, entries []ConflictEntry) error
	PruneConflictEntries(ctx context.Context, convID string, keep int) error
	ListConflictEntries(ctx context.Context, convID string, limit int) ([]ConflictEntry, error)

	GetMemoryStats(ctx context.Context, convID string) (*MemoryStats, error)

	Close() error
}
