package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"colloquy/internal/extract"
	"colloquy/internal/store"
)

const (
	conflictScanItems   = 70
	conflictMinShared   = 3
	conflictKeyTokens   = 6
	conflictKeyMaxLen   = 220
	conflictMaxConf     = 0.96
	conflictKeepTop     = 80
	conflictEvidenceLen = 120
)

// refreshConflicts recomputes the ledger from the current top semantic
// items and merges the detections in.
func (e *Engine) refreshConflicts(ctx context.Context, convID string) error {
	items, err := e.store.ListSemanticItems(ctx, convID, 0)
	if err != nil {
		return err
	}

	var candidates []store.SemanticItem
	for _, it := range items {
		switch it.ItemType {
		case string(extract.ItemDecision), string(extract.ItemConstraint), string(extract.ItemDefinition):
			candidates = append(candidates, it)
		}
		if len(candidates) == conflictScanItems {
			break
		}
	}

	detected := detectConflicts(candidates)
	if len(detected) == 0 {
		return nil
	}
	if err := e.store.UpsertConflictEntries(ctx, convID, detected); err != nil {
		return fmt.Errorf("conflict update failed: %w", err)
	}
	return e.store.PruneConflictEntries(ctx, convID, e.limits.ConflictKeep)
}

// detectConflicts pairs items that share vocabulary but disagree on
// negation. A pair qualifies when it shares at least three substantial
// canonical tokens and exactly one side carries a negation marker.
func detectConflicts(items []store.SemanticItem) []store.ConflictEntry {
	type scratch struct {
		tokens []string
		set    map[string]struct{}
	}
	prepared := make([]scratch, len(items))
	for i, it := range items {
		for _, tok := range strings.Fields(it.CanonicalText) {
			if len(tok) < 4 || extract.IsStopWord(tok) {
				continue
			}
			if prepared[i].set == nil {
				prepared[i].set = make(map[string]struct{})
			}
			if _, seen := prepared[i].set[tok]; seen {
				continue
			}
			prepared[i].set[tok] = struct{}{}
			prepared[i].tokens = append(prepared[i].tokens, tok)
		}
	}

	byKey := make(map[string]store.ConflictEntry)
	var keys []string
	for i := 0; i < len(items); i++ {
		for j := i + 1; j < len(items); j++ {
			var shared []string
			for _, tok := range prepared[i].tokens {
				if _, ok := prepared[j].set[tok]; ok {
					shared = append(shared, tok)
				}
			}
			if len(shared) < conflictMinShared {
				continue
			}
			if extract.HasNegation(items[i].EvidenceText) == extract.HasNegation(items[j].EvidenceText) {
				continue
			}

			keyTokens := shared
			if len(keyTokens) > conflictKeyTokens {
				keyTokens = keyTokens[:conflictKeyTokens]
			}
			issueKey := fmt.Sprintf("%s|%s|%s", items[i].ItemType, items[j].ItemType, strings.Join(keyTokens, "-"))
			if len(issueKey) > conflictKeyMaxLen {
				issueKey = issueKey[:conflictKeyMaxLen]
			}

			confidence := 0.46 + float64(len(shared))*0.07 + max(items[i].Confidence, items[j].Confidence)*0.2
			if confidence > conflictMaxConf {
				confidence = conflictMaxConf
			}

			entry := store.ConflictEntry{
				IssueKey:    issueKey,
				ItemA:       excerptN(items[i].EvidenceText, conflictEvidenceLen),
				ItemB:       excerptN(items[j].EvidenceText, conflictEvidenceLen),
				Confidence:  confidence,
				Status:      "open",
				FirstTurn:   min(items[i].FirstTurn, items[j].FirstTurn),
				LastTurn:    max(items[i].LastTurn, items[j].LastTurn),
				Occurrences: 1,
			}

			prev, ok := byKey[issueKey]
			if !ok {
				byKey[issueKey] = entry
				keys = append(keys, issueKey)
				continue
			}
			if entry.Confidence > prev.Confidence {
				prev.Confidence = entry.Confidence
				prev.ItemA, prev.ItemB = entry.ItemA, entry.ItemB
			}
			if entry.LastTurn > prev.LastTurn {
				prev.LastTurn = entry.LastTurn
			}
			if entry.FirstTurn < prev.FirstTurn {
				prev.FirstTurn = entry.FirstTurn
			}
			prev.Occurrences += entry.Occurrences
			byKey[issueKey] = prev
		}
	}

	out := make([]store.ConflictEntry, 0, len(keys))
	for _, k := range keys {
		out = append(out, byKey[k])
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		if out[i].LastTurn != out[j].LastTurn {
			return out[i].LastTurn > out[j].LastTurn
		}
		return out[i].IssueKey < out[j].IssueKey
	})
	if len(out) > conflictKeepTop {
		out = out[:conflictKeepTop]
	}
	return out
}

func excerptN(text string, n int) string {
	text = strings.TrimSpace(text)
	if len(text) <= n {
		return text
	}
	for n > 0 && !utf8.RuneStart(text[n]) {
		n--
	}
	return text[:n] + "…"
}
