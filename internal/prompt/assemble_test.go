package prompt

import (
	"strings"
	"testing"

	"colloquy/internal/memory"
	"colloquy/internal/store"
)

func TestAssemble_SectionOrder(t *testing.T) {
	view := &memory.View{
		Tokens: []store.LexicalToken{{Token: "caching"}, {Token: "eviction"}},
		MicroSummaries: []store.Summary{
			{StartTurn: 1, EndTurn: 4, Summary: "early exploration"},
		},
		Decisions: []store.SemanticItem{
			{CanonicalText: "we will adopt lru eviction"},
		},
		Conflicts: []store.ConflictEntry{
			{Status: "open", Confidence: 0.81, ItemA: "adopt locking", ItemB: "do not adopt locking"},
		},
	}
	block := Assemble(Input{
		Topic:     "cache policy",
		Recent:    []store.Message{{Turn: 1, Speaker: "Ada", Text: "Let us begin."}},
		View:      view,
		Directive: "focus on eviction tradeoffs",
	})

	markers := []string{
		"Topic: cache policy",
		"Brief: (no explicit",
		"Discussion charter:",
		"High-value memory tokens: caching, eviction",
		"S1 (turns 1-4): early exploration",
		"Mid-range summaries:",
		"Long-range summaries:",
		"Decisions so far:",
		"1. we will adopt lru eviction",
		"Working hypotheses:",
		"Constraints:",
		"Definitions:",
		"Open questions:",
		"Detected tensions:",
		"1. (open, conf 0.81) adopt locking <> do not adopt locking",
		"Moderator directive: focus on eviction tradeoffs",
		"Recent turns:",
		"Ada: Let us begin.",
		"Instructions:",
		"start your reply with \"DONE:\"",
	}
	pos := -1
	for _, marker := range markers {
		idx := strings.Index(block, marker)
		if idx < 0 {
			t.Fatalf("missing section %q in block:\n%s", marker, block)
		}
		if idx < pos {
			t.Errorf("section %q appears out of order", marker)
		}
		pos = idx
	}
}

func TestAssemble_Placeholders(t *testing.T) {
	block := Assemble(Input{Topic: "empty start", View: &memory.View{}})

	for _, want := range []string{
		"High-value memory tokens: (none yet)",
		"(no summaries yet)",
		"(no mid-range summaries yet)",
		"(no long-range summaries yet)",
		"(none)\n",
		"(none detected)",
		"Moderator directive: " + DefaultDirective,
		"(No recent turns)",
	} {
		if !strings.Contains(block, want) {
			t.Errorf("missing placeholder %q", want)
		}
	}
}

func TestAssemble_NilView(t *testing.T) {
	block := Assemble(Input{Topic: "robustness"})
	if !strings.Contains(block, "High-value memory tokens: (none yet)") {
		t.Error("nil view should render token placeholder")
	}
	if !strings.Contains(block, "Discussion charter:\n1) ") {
		t.Error("default charter should be enumerated from 1)")
	}
}

func TestAssemble_RecentWindowCap(t *testing.T) {
	var recent []store.Message
	for i := 1; i <= 14; i++ {
		recent = append(recent, store.Message{Turn: i, Speaker: "Ada", Text: strings.Repeat("x", i)})
	}
	block := Assemble(Input{Topic: "window", Recent: recent})

	if strings.Contains(block, "Ada: xxxx\n") {
		t.Error("turn 4 should fall outside the 10-entry window")
	}
	if !strings.Contains(block, "Ada: xxxxx\n") {
		t.Error("turn 5 should be the oldest entry kept")
	}
}

func TestAssemble_Deterministic(t *testing.T) {
	in := Input{
		Topic:  "determinism",
		Recent: []store.Message{{Turn: 1, Speaker: "Grace", Text: "same input"}},
		View: &memory.View{
			Tokens: []store.LexicalToken{{Token: "alpha"}, {Token: "beta"}},
		},
	}
	if Assemble(in) != Assemble(in) {
		t.Error("identical inputs must produce identical blocks")
	}
}
