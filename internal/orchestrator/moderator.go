package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"colloquy/internal/extract"
	"colloquy/internal/llm"
	"colloquy/internal/store"
)

const (
	moderatorTurns    = 8
	moderatorTokens   = 20
	moderatorTimeout  = 15 * time.Second
	directiveMaxChars = 280
)

// Moderation is the moderator's verdict on the recent window.
type Moderation struct {
	OnTopic    bool   `json:"onTopic"`
	Repetitive bool   `json:"repetitive"`
	TooShort   bool   `json:"tooShort"`
	Done       bool   `json:"done"`
	Directive  string `json:"directive"`
}

// moderate asks the LLM for a JSON verdict on the last few turns and
// falls back to the local heuristics on any failure, including
// malformed JSON.
func (o *Orchestrator) moderate(ctx context.Context, convID, topic string, transcript []store.Message, directive string) Moderation {
	local := localModeration(topic, transcript)

	if o.gen == nil {
		return local
	}

	recent := transcript
	if len(recent) > moderatorTurns {
		recent = recent[len(recent)-moderatorTurns:]
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Topic: %s\nCurrent directive: %s\n", topic, directive)
	if tokens, err := o.store.ListLexicalTokens(ctx, convID, moderatorTokens); err == nil && len(tokens) > 0 {
		names := make([]string, len(tokens))
		for i, t := range tokens {
			names[i] = t.Token
		}
		fmt.Fprintf(&sb, "Memory tokens: %s\n", strings.Join(names, ", "))
	}
	sb.WriteString("Recent turns:\n")
	for _, m := range recent {
		fmt.Fprintf(&sb, "%s: %s\n", m.Speaker, m.Text)
	}
	sb.WriteString("\nAssess the dialogue. Respond with ONLY a JSON object: " +
		`{"onTopic":bool,"repetitive":bool,"tooShort":bool,"done":bool,"directive":"one imperative sentence"}`)

	raw, err := o.gen.Generate(ctx, llm.Request{
		System:      "You are a dialogue moderator. Respond with a single JSON object and nothing else.",
		Prompt:      sb.String(),
		Temperature: 0,
		Timeout:     moderatorTimeout,
	})
	if err != nil {
		o.logger.Warn("Moderator call failed, using local assessment", zap.Error(err))
		return local
	}

	mod, err := parseModeration(raw)
	if err != nil {
		o.logger.Warn("Moderator returned malformed JSON, using local assessment", zap.Error(err))
		return local
	}
	if strings.TrimSpace(mod.Directive) == "" {
		mod.Directive = local.Directive
	}
	mod.Directive = truncateDirective(mod.Directive)
	return mod
}

// parseModeration extracts the first {...} substring and decodes it.
func parseModeration(raw string) (Moderation, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return Moderation{}, fmt.Errorf("no JSON object in moderator output")
	}
	var mod Moderation
	if err := json.Unmarshal([]byte(raw[start:end+1]), &mod); err != nil {
		return Moderation{}, fmt.Errorf("decode moderator output: %w", err)
	}
	return mod, nil
}

// localModeration is the deterministic fallback assessment.
func localModeration(topic string, transcript []store.Message) Moderation {
	var last, prev string
	if len(transcript) > 0 {
		last = transcript[len(transcript)-1].Text
	}
	if len(transcript) > 1 {
		prev = transcript[len(transcript)-2].Text
	}

	onTopic := true
	if anchor := firstTopicToken(topic); anchor != "" {
		onTopic = strings.Contains(strings.ToLower(last), anchor)
	}
	repetitive := prev != "" && extract.Jaccard(last, prev) > 0.88
	tooShort := len(strings.Fields(last)) < 8

	var directive string
	switch {
	case !onTopic:
		directive = "Steer back to topic: " + topic
	case repetitive:
		directive = "Avoid repeating prior wording; add a counterpoint or new evidence."
	case tooShort:
		directive = "Add depth: one rationale and one practical implication."
	default:
		directive = "Increase specificity with one concrete actionable point."
	}

	return Moderation{
		OnTopic:    onTopic,
		Repetitive: repetitive,
		TooShort:   tooShort,
		Done:       false,
		Directive:  truncateDirective(directive),
	}
}

func firstTopicToken(topic string) string {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(topic)))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func truncateDirective(directive string) string {
	if len(directive) <= directiveMaxChars {
		return directive
	}
	// The directive carries free text (topic, model output); cut on a
	// rune boundary so the stream never sees invalid UTF-8.
	cut := directiveMaxChars
	for cut > 0 && !utf8.RuneStart(directive[cut]) {
		cut--
	}
	return directive[:cut]
}
