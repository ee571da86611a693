package memory

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"colloquy/internal/llm"
	"colloquy/internal/store"
)

const (
	microSummaryWords = 110
	tierSummaryWords  = 130
	summaryTimeout    = 20 * time.Second
	excerptLen        = 140
)

// compact drives the summary hierarchy: micro windows over raw turns,
// then meso over micro and macro over meso.
func (e *Engine) compact(ctx context.Context, convID, topic string, totalTurns int) error {
	if err := e.compactMicro(ctx, convID, topic, totalTurns); err != nil {
		return err
	}
	if err := e.compactTier(ctx, convID, topic, store.TierMeso, e.limits.MesoGroup); err != nil {
		return err
	}
	return e.compactTier(ctx, convID, topic, store.TierMacro, e.limits.MacroGroup)
}

// compactMicro summarizes each full window of un-summarized turns once
// the transcript is long enough.
func (e *Engine) compactMicro(ctx context.Context, convID, topic string, totalTurns int) error {
	if totalTurns < e.limits.MinTurnsForSummary {
		return nil
	}

	lastEnd := 0
	if recent, err := e.store.ListRecentMicroSummaries(ctx, convID, 1); err != nil {
		return err
	} else if len(recent) > 0 {
		lastEnd = recent[0].EndTurn
	}

	window := e.limits.SummaryWindow
	for totalTurns-lastEnd >= window {
		start, end := lastEnd+1, lastEnd+window
		msgs, err := e.store.GetMessagesInRange(ctx, convID, start, end)
		if err != nil {
			return err
		}

		summary, err := e.summarizeTurns(ctx, convID, topic, msgs, start, end)
		if err != nil {
			return err
		}
		if err := e.store.InsertMicroSummary(ctx, convID, start, end, summary); err != nil {
			return err
		}
		e.logger.Debug("Micro summary created",
			zap.String("conversation", convID), zap.Int("start", start), zap.Int("end", end))
		lastEnd = end
	}
	return nil
}

// compactTier groups the lower tier's summaries into the given tier.
// The lower tier of meso is micro; of macro, meso.
func (e *Engine) compactTier(ctx context.Context, convID, topic, tier string, group int) error {
	tail := 0
	if recent, err := e.store.ListRecentTierSummaries(ctx, convID, tier, 1); err != nil {
		return err
	} else if len(recent) > 0 {
		tail = recent[len(recent)-1].EndTurn
	}

	var pending []store.Summary
	var err error
	if tier == store.TierMeso {
		pending, err = e.store.ListMicroSummariesAfter(ctx, convID, tail)
	} else {
		pending, err = e.store.ListTierSummariesAfter(ctx, convID, store.TierMeso, tail)
	}
	if err != nil {
		return err
	}

	for len(pending) >= group {
		batch := pending[:group]
		pending = pending[group:]
		start, end := batch[0].StartTurn, batch[group-1].EndTurn

		summary, err := e.summarizeSummaries(ctx, topic, tier, batch, start, end)
		if err != nil {
			return err
		}
		if err := e.store.InsertTierSummary(ctx, convID, tier, start, end, summary); err != nil {
			return err
		}
		e.logger.Debug("Tier summary created",
			zap.String("conversation", convID), zap.String("tier", tier),
			zap.Int("start", start), zap.Int("end", end))
	}
	return nil
}

// summarizeTurns produces a micro summary via the LLM, demoting to the
// deterministic local summary on any failure.
func (e *Engine) summarizeTurns(ctx context.Context, convID, topic string, msgs []store.Message, start, end int) (string, error) {
	local := llm.Func(func(context.Context, llm.Request) (string, error) {
		return e.localTurnSummary(ctx, convID, msgs, start, end), nil
	})

	var sb strings.Builder
	fmt.Fprintf(&sb, "Topic: %s\n\nSummarize turns %d-%d of this dialogue. ", topic, start, end)
	sb.WriteString("Preserve decisions, constraints, open questions and who said what.\n\n")
	for _, m := range msgs {
		fmt.Fprintf(&sb, "%s: %s\n", m.Speaker, m.Text)
	}

	gen := llm.WithFallback(e.gen, local, e.logger)
	return gen.Generate(ctx, llm.Request{
		System:   "You are a Memory Compactor. Produce dense, factual summaries.",
		Prompt:   sb.String(),
		MaxWords: microSummaryWords,
		Timeout:  summaryTimeout,
	})
}

// summarizeSummaries produces a meso or macro summary from lower-tier
// summaries, with the same local fallback discipline.
func (e *Engine) summarizeSummaries(ctx context.Context, topic, tier string, batch []store.Summary, start, end int) (string, error) {
	local := llm.Func(func(context.Context, llm.Request) (string, error) {
		return localTierSummary(tier, batch, start, end), nil
	})

	var sb strings.Builder
	fmt.Fprintf(&sb, "Topic: %s\n\nCondense these dialogue summaries (turns %d-%d) into one %s-level summary. ",
		topic, start, end, tier)
	sb.WriteString("Keep decisions, constraints and unresolved questions.\n\n")
	for i, s := range batch {
		fmt.Fprintf(&sb, "%d. (turns %d-%d) %s\n", i+1, s.StartTurn, s.EndTurn, s.Summary)
	}

	gen := llm.WithFallback(e.gen, local, e.logger)
	return gen.Generate(ctx, llm.Request{
		System:   "You are a Memory Compactor. Produce dense, factual summaries.",
		Prompt:   sb.String(),
		MaxWords: tierSummaryWords,
		Timeout:  summaryTimeout,
	})
}

// localTurnSummary is the deterministic fallback: the window's top
// tokens plus excerpts of its first, middle and last messages.
func (e *Engine) localTurnSummary(ctx context.Context, convID string, msgs []store.Message, start, end int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Turns %d-%d.", start, end)

	if tokens, err := e.store.ListLexicalTokens(ctx, convID, 8); err == nil && len(tokens) > 0 {
		names := make([]string, len(tokens))
		for i, t := range tokens {
			names[i] = t.Token
		}
		fmt.Fprintf(&sb, " Key terms: %s.", strings.Join(names, ", "))
	}

	if len(msgs) > 0 {
		picks := []store.Message{msgs[0]}
		if len(msgs) > 2 {
			picks = append(picks, msgs[len(msgs)/2])
		}
		if len(msgs) > 1 {
			picks = append(picks, msgs[len(msgs)-1])
		}
		for _, m := range picks {
			fmt.Fprintf(&sb, " [%d] %s: %s", m.Turn, m.Speaker, excerpt(m.Text))
		}
	}
	return sb.String()
}

func localTierSummary(tier string, batch []store.Summary, start, end int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s summary of turns %d-%d.", strings.ToUpper(tier[:1])+tier[1:], start, end)
	for _, s := range batch {
		fmt.Fprintf(&sb, " (%d-%d) %s", s.StartTurn, s.EndTurn, excerpt(s.Summary))
	}
	return sb.String()
}

func excerpt(text string) string {
	text = strings.TrimSpace(text)
	if len(text) <= excerptLen {
		return text
	}
	// Cut on a rune boundary; a byte cut could split a multi-byte rune
	// and persist invalid UTF-8.
	cut := excerptLen
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "…"
}
