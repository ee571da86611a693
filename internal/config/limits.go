// Package config holds the runtime configuration: the env-tunable memory
// limits with their documented bounds, and the optional YAML server
// config with live reload.
package config

import (
	"math"
	"os"
	"strconv"
)

// Limits are the tunable caps of the memory core. Each field is read
// from its environment variable, truncated to an integer and clamped to
// the documented range; unparseable values fall back to the default.
type Limits struct {
	LexicalKeep         int
	PromptTokenLimit    int
	SemanticKeep        int
	PromptSemanticLimit int
	SummaryWindow       int
	MinTurnsForSummary  int
	MesoGroup           int
	MacroGroup          int
	ConflictKeep        int
	PromptConflictLimit int
	ModeratorInterval   int
	MaxGenerationMS     int
	MaxRepetitionStreak int
}

// DefaultLimits returns the limits with every knob at its default.
func DefaultLimits() Limits {
	return Limits{
		LexicalKeep:         180,
		PromptTokenLimit:    50,
		SemanticKeep:        240,
		PromptSemanticLimit: 24,
		SummaryWindow:       40,
		MinTurnsForSummary:  40,
		MesoGroup:           4,
		MacroGroup:          3,
		ConflictKeep:        160,
		PromptConflictLimit: 14,
		ModeratorInterval:   6,
		MaxGenerationMS:     30000,
		MaxRepetitionStreak: 2,
	}
}

// LoadLimits reads every knob from the environment.
func LoadLimits() Limits {
	return Limits{
		LexicalKeep:         envInt("LEXICAL_KEEP", 180, 50, 500),
		PromptTokenLimit:    envInt("PROMPT_TOKEN_LIMIT", 50, 10, 200),
		SemanticKeep:        envInt("SEMANTIC_KEEP", 240, 50, 800),
		PromptSemanticLimit: envInt("PROMPT_SEMANTIC_LIMIT", 24, 8, 120),
		SummaryWindow:       envInt("SUMMARY_WINDOW", 40, 10, 200),
		MinTurnsForSummary:  envInt("MIN_TURNS_FOR_SUMMARY", 40, 10, 400),
		MesoGroup:           envInt("MESO_GROUP", 4, 2, 12),
		MacroGroup:          envInt("MACRO_GROUP", 3, 2, 10),
		ConflictKeep:        envInt("CONFLICT_KEEP", 160, 30, 600),
		PromptConflictLimit: envInt("PROMPT_CONFLICT_LIMIT", 14, 3, 80),
		ModeratorInterval:   envInt("MODERATOR_INTERVAL", 6, 2, 20),
		MaxGenerationMS:     envInt("MAX_GENERATION_MS", 30000, 3000, 120000),
		MaxRepetitionStreak: envInt("MAX_REPETITION_STREAK", 2, 1, 5),
	}
}

// envInt parses an environment variable as a number, truncates it to an
// integer and clamps it to [lo, hi]. Missing, unparseable or non-finite
// values yield the default.
func envInt(name string, def, lo, hi int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return def
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return def
	}
	v := int(math.Trunc(f))
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
