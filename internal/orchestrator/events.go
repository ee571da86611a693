package orchestrator

import "colloquy/internal/store"

// Emitter receives streaming events in order. A nil emitter disables
// streaming; a non-nil error from the emitter (client gone) ends the
// loop early, but the batch built so far is still committed.
type Emitter func(event any) error

// Guardrails echoes the active loop limits in the meta event.
type Guardrails struct {
	ModeratorInterval   int `json:"moderatorInterval"`
	MaxGenerationMs     int `json:"maxGenerationMs"`
	MaxRepetitionStreak int `json:"maxRepetitionStreak"`
}

// Quality carries the repetition-guard readings for one turn.
type Quality struct {
	SimilarityToPrevious float64 `json:"similarityToPrevious"`
	RepetitionStreak     int     `json:"repetitionStreak"`
}

// MetaEvent opens every stream.
type MetaEvent struct {
	Type           string            `json:"type"`
	ConversationID string            `json:"conversationId"`
	Topic          string            `json:"topic"`
	Engine         string            `json:"engine"`
	Memory         store.MemoryStats `json:"memory"`
	Charter        []string          `json:"charter"`
	Guardrails     Guardrails        `json:"guardrails"`
}

// TurnEvent reports one generated entry.
type TurnEvent struct {
	Type       string        `json:"type"`
	Entry      store.Message `json:"entry"`
	TotalTurns int           `json:"totalTurns"`
	Quality    Quality       `json:"quality"`
}

// ModeratorEvent reports a moderator assessment, always after the turn
// that triggered it.
type ModeratorEvent struct {
	Type       string     `json:"type"`
	Moderation Moderation `json:"moderation"`
	TotalTurns int        `json:"totalTurns"`
}

// DoneEvent closes a successful stream.
type DoneEvent struct {
	Type           string            `json:"type"`
	ConversationID string            `json:"conversationId"`
	Topic          string            `json:"topic"`
	Turns          int               `json:"turns"`
	TotalTurns     int               `json:"totalTurns"`
	StopReason     string            `json:"stopReason"`
	Memory         store.MemoryStats `json:"memory"`
}

// ErrorEvent replaces DoneEvent when the request fails.
type ErrorEvent struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}
