package memory

import (
	"context"

	"colloquy/internal/store"
)

const (
	viewMicroSummaries = 6
	viewMesoSummaries  = 4
	viewMacroSummaries = 3
	viewItemsPerType   = 6
)

// View is the bounded DTO handed to the prompt assembler: the
// compressed rendition of everything the conversation has established.
type View struct {
	Tokens         []store.LexicalToken  `json:"tokens"`
	MicroSummaries []store.Summary       `json:"microSummaries"`
	MesoSummaries  []store.Summary       `json:"mesoSummaries"`
	MacroSummaries []store.Summary       `json:"macroSummaries"`
	Decisions      []store.SemanticItem  `json:"decisions"`
	Hypotheses     []store.SemanticItem  `json:"hypotheses"`
	Constraints    []store.SemanticItem  `json:"constraints"`
	Definitions    []store.SemanticItem  `json:"definitions"`
	OpenQuestions  []store.SemanticItem  `json:"openQuestions"`
	Conflicts      []store.ConflictEntry `json:"conflicts"`
	Stats          store.MemoryStats     `json:"stats"`
}

// CompressedView assembles the view from the store under the configured
// prompt limits.
func (e *Engine) CompressedView(ctx context.Context, convID string) (*View, error) {
	view := &View{}

	tokens, err := e.store.ListLexicalTokens(ctx, convID, e.limits.PromptTokenLimit)
	if err != nil {
		return nil, err
	}
	view.Tokens = tokens

	if view.MicroSummaries, err = e.store.ListRecentMicroSummaries(ctx, convID, viewMicroSummaries); err != nil {
		return nil, err
	}
	if view.MesoSummaries, err = e.store.ListRecentTierSummaries(ctx, convID, store.TierMeso, viewMesoSummaries); err != nil {
		return nil, err
	}
	if view.MacroSummaries, err = e.store.ListRecentTierSummaries(ctx, convID, store.TierMacro, viewMacroSummaries); err != nil {
		return nil, err
	}

	items, err := e.store.ListSemanticItems(ctx, convID, e.limits.PromptSemanticLimit)
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		switch it.ItemType {
		case "decision":
			view.Decisions = appendCapped(view.Decisions, it)
		case "hypothesis":
			view.Hypotheses = appendCapped(view.Hypotheses, it)
		case "constraint":
			view.Constraints = appendCapped(view.Constraints, it)
		case "definition":
			view.Definitions = appendCapped(view.Definitions, it)
		case "open_question":
			view.OpenQuestions = appendCapped(view.OpenQuestions, it)
		}
	}

	if view.Conflicts, err = e.store.ListConflictEntries(ctx, convID, e.limits.PromptConflictLimit); err != nil {
		return nil, err
	}

	stats, err := e.store.GetMemoryStats(ctx, convID)
	if err != nil {
		return nil, err
	}
	view.Stats = *stats

	return view, nil
}

func appendCapped(items []store.SemanticItem, it store.SemanticItem) []store.SemanticItem {
	if len(items) >= viewItemsPerType {
		return items
	}
	return append(items, it)
}
