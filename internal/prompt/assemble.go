// Package prompt renders the compressed memory view, the recent window
// and the discussion charter into the single context block that
// conditions each generation. Assembly is pure; identical inputs
// produce byte-identical output.
package prompt

import (
	"fmt"
	"strings"

	"colloquy/internal/memory"
	"colloquy/internal/store"
)

// DefaultDirective is used until the moderator issues its own.
const DefaultDirective = "continue depth-first reasoning and avoid repetition"

// recentWindow caps how many trailing transcript entries appear in the
// block.
const recentWindow = 10

// DefaultCharter is the standing discussion charter injected into every
// context block.
var DefaultCharter = []string{
	"Stay on the stated topic; treat it as the shared objective.",
	"Build on the other agent's most recent point before adding your own.",
	"Prefer concrete claims, evidence and examples over generalities.",
	"Surface disagreements explicitly instead of papering over them.",
	"Honor decisions and constraints already recorded in memory.",
	"Ask at most one focused question per turn.",
	"Work toward a concrete conclusion rather than open-ended chat.",
}

// Input carries everything Assemble needs. Recent may be longer than
// the window; the assembler keeps the tail.
type Input struct {
	Topic     string
	Brief     string
	Charter   []string
	Recent    []store.Message
	View      *memory.View
	Directive string
}

// Assemble renders the context block. Section order is fixed; empty
// sections render placeholders rather than disappearing.
func Assemble(in Input) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Topic: %s\n", in.Topic)

	if strings.TrimSpace(in.Brief) != "" {
		fmt.Fprintf(&b, "Brief: %s\n", strings.TrimSpace(in.Brief))
	} else {
		b.WriteString("Brief: (no explicit objective, constraints or done-criteria)\n")
	}

	charter := in.Charter
	if len(charter) == 0 {
		charter = DefaultCharter
	}
	b.WriteString("Discussion charter:\n")
	for i, rule := range charter {
		fmt.Fprintf(&b, "%d) %s\n", i+1, rule)
	}

	writeTokens(&b, in.View)
	writeSummaries(&b, in.View)
	writeItems(&b, in.View)
	writeConflicts(&b, in.View)

	directive := strings.TrimSpace(in.Directive)
	if directive == "" {
		directive = DefaultDirective
	}
	fmt.Fprintf(&b, "Moderator directive: %s\n", directive)

	writeRecent(&b, in.Recent)
	writeInstructions(&b)

	return b.String()
}

func writeTokens(b *strings.Builder, view *memory.View) {
	if view == nil || len(view.Tokens) == 0 {
		b.WriteString("High-value memory tokens: (none yet)\n")
		return
	}
	names := make([]string, len(view.Tokens))
	for i, t := range view.Tokens {
		names[i] = t.Token
	}
	fmt.Fprintf(b, "High-value memory tokens: %s\n", strings.Join(names, ", "))
}

func writeSummaries(b *strings.Builder, view *memory.View) {
	writeTier := func(label, heading, placeholder string, summaries []store.Summary) {
		fmt.Fprintf(b, "%s:\n", heading)
		if len(summaries) == 0 {
			fmt.Fprintf(b, "%s\n", placeholder)
			return
		}
		for i, s := range summaries {
			fmt.Fprintf(b, "%s%d (turns %d-%d): %s\n", label, i+1, s.StartTurn, s.EndTurn, s.Summary)
		}
	}
	var micro, meso, macro []store.Summary
	if view != nil {
		micro, meso, macro = view.MicroSummaries, view.MesoSummaries, view.MacroSummaries
	}
	writeTier("S", "Recent window summaries", "(no summaries yet)", micro)
	writeTier("M", "Mid-range summaries", "(no mid-range summaries yet)", meso)
	writeTier("X", "Long-range summaries", "(no long-range summaries yet)", macro)
}

func writeItems(b *strings.Builder, view *memory.View) {
	groups := []struct {
		heading string
		items   []store.SemanticItem
	}{
		{"Decisions so far", nil},
		{"Working hypotheses", nil},
		{"Constraints", nil},
		{"Definitions", nil},
		{"Open questions", nil},
	}
	if view != nil {
		groups[0].items = view.Decisions
		groups[1].items = view.Hypotheses
		groups[2].items = view.Constraints
		groups[3].items = view.Definitions
		groups[4].items = view.OpenQuestions
	}
	for _, g := range groups {
		fmt.Fprintf(b, "%s:\n", g.heading)
		if len(g.items) == 0 {
			b.WriteString("(none)\n")
			continue
		}
		for i, it := range g.items {
			fmt.Fprintf(b, "%d. %s\n", i+1, it.CanonicalText)
		}
	}
}

func writeConflicts(b *strings.Builder, view *memory.View) {
	b.WriteString("Detected tensions:\n")
	if view == nil || len(view.Conflicts) == 0 {
		b.WriteString("(none detected)\n")
		return
	}
	for i, c := range view.Conflicts {
		fmt.Fprintf(b, "%d. (%s, conf %.2f) %s <> %s\n", i+1, c.Status, c.Confidence, c.ItemA, c.ItemB)
	}
}

func writeRecent(b *strings.Builder, recent []store.Message) {
	b.WriteString("Recent turns:\n")
	if len(recent) == 0 {
		b.WriteString("(No recent turns)\n")
		return
	}
	if len(recent) > recentWindow {
		recent = recent[len(recent)-recentWindow:]
	}
	for _, m := range recent {
		fmt.Fprintf(b, "%s: %s\n", m.Speaker, m.Text)
	}
}

func writeInstructions(b *strings.Builder) {
	b.WriteString("Instructions:\n")
	for i, line := range []string{
		"Reply in 2-4 sentences.",
		"Stay anchored to the topic above in every sentence.",
		"Reference or respond to the previous speaker's point before introducing a new one.",
		"Do not open with template phrases like \"Great point\" or \"I agree that\".",
		"Do not repeat wording from earlier turns; add new substance each time.",
		"Respect the recorded decisions and constraints unless you explicitly challenge one.",
		"If the objective is fully met, start your reply with \"DONE:\" followed by the conclusion.",
	} {
		fmt.Fprintf(b, "%d) %s\n", i+1, line)
	}
}
