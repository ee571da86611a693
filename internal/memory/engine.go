// Package memory owns the tiered conversational memory: the lexical and
// semantic tiers, the micro/meso/macro summary hierarchy and the
// conflict ledger. The engine ingests new turns, compacts old material
// and produces the compressed view the prompt assembler consumes.
package memory

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"colloquy/internal/config"
	"colloquy/internal/extract"
	"colloquy/internal/llm"
	"colloquy/internal/store"
)

// Engine drives memory updates for all conversations. It is stateless
// between calls; all state lives in the store. Callers serialize writes
// per conversation.
type Engine struct {
	store  store.Store
	gen    llm.Generator // nil runs every compaction on the local path
	limits config.Limits
	logger *zap.Logger
}

// NewEngine creates a memory engine. gen may be nil.
func NewEngine(st store.Store, gen llm.Generator, limits config.Limits, logger *zap.Logger) *Engine {
	return &Engine{store: st, gen: gen, limits: limits, logger: logger}
}

// Ingest extracts durable knowledge from newEntries, merges it into the
// lexical and semantic tiers, recomputes the conflict ledger and drives
// summary compaction. totalTurns is the transcript length after the
// batch.
func (e *Engine) Ingest(ctx context.Context, convID, topic string, newEntries []store.Message, totalTurns int) error {
	if len(newEntries) == 0 {
		return nil
	}

	if err := e.updateLexical(ctx, convID, newEntries); err != nil {
		return err
	}
	if err := e.updateSemantic(ctx, convID, newEntries); err != nil {
		return err
	}
	if err := e.refreshConflicts(ctx, convID); err != nil {
		return err
	}
	if err := e.compact(ctx, convID, topic, totalTurns); err != nil {
		return err
	}
	return nil
}

// BootstrapIfNeeded rebuilds memory from the full transcript when the
// lexical and semantic tiers are both empty. Safe to call on every
// request; a populated memory makes it a summary-compaction-only pass.
func (e *Engine) BootstrapIfNeeded(ctx context.Context, convID, topic string, transcript []store.Message) error {
	stats, err := e.store.GetMemoryStats(ctx, convID)
	if err != nil {
		return err
	}
	if stats.Tokens == 0 && stats.SemanticItems == 0 && len(transcript) > 0 {
		e.logger.Info("Bootstrapping memory from transcript",
			zap.String("conversation", convID), zap.Int("turns", len(transcript)))
		if err := e.updateLexical(ctx, convID, transcript); err != nil {
			return err
		}
		if err := e.updateSemantic(ctx, convID, transcript); err != nil {
			return err
		}
		if err := e.refreshConflicts(ctx, convID); err != nil {
			return err
		}
	}
	// Summary compaction runs regardless; below the turn threshold the
	// window loop simply does not fire.
	return e.compact(ctx, convID, topic, len(transcript))
}

func (e *Engine) updateLexical(ctx context.Context, convID string, entries []store.Message) error {
	var all []extract.Token
	for _, m := range entries {
		all = append(all, extract.Tokens(m.Text, m.Turn)...)
	}
	deduped := extract.DedupeTokens(all)
	if len(deduped) == 0 {
		return nil
	}

	rows := make([]store.LexicalToken, len(deduped))
	for i, t := range deduped {
		rows[i] = store.LexicalToken{
			Token:       t.Text,
			Weight:      t.Weight,
			Occurrences: t.Occurrences,
			LastTurn:    t.LastTurn,
		}
	}
	if err := e.store.UpsertLexicalTokens(ctx, convID, rows); err != nil {
		return fmt.Errorf("lexical update failed: %w", err)
	}
	return e.store.PruneLexicalTokens(ctx, convID, e.limits.LexicalKeep)
}

func (e *Engine) updateSemantic(ctx context.Context, convID string, entries []store.Message) error {
	var all []extract.Item
	for _, m := range entries {
		all = append(all, extract.Items(m.Text, m.Turn)...)
	}
	deduped := extract.DedupeItems(all)
	if len(deduped) == 0 {
		return nil
	}

	rows := make([]store.SemanticItem, len(deduped))
	for i, it := range deduped {
		rows[i] = store.SemanticItem{
			ItemType:      string(it.Type),
			CanonicalText: it.CanonicalText,
			EvidenceText:  it.EvidenceText,
			Weight:        it.Weight,
			Confidence:    it.Confidence,
			Occurrences:   it.Occurrences,
			FirstTurn:     it.FirstTurn,
			LastTurn:      it.LastTurn,
			Status:        it.Status,
		}
	}
	if err := e.store.UpsertSemanticItems(ctx, convID, rows); err != nil {
		return fmt.Errorf("semantic update failed: %w", err)
	}
	return e.store.PruneSemanticItems(ctx, convID, e.limits.SemanticKeep)
}
