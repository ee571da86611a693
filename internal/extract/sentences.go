package extract

import (
	"regexp"
	"strings"
)

const (
	maxSentencesPerMessage = 4
	minSentenceLen         = 16
	maxConfidence          = 0.95
)

var (
	sentenceSplitRe = regexp.MustCompile(`[.!?]\s+`)
	whWordRe        = regexp.MustCompile(`(?i)\b(how|what|why|which|who|where|when)\b`)
	hypothesisRe    = regexp.MustCompile(`(?i)hypothesis|hypothesize|theory|we suspect|we predict|i predict|suggests that`)
	decisionRe      = regexp.MustCompile(`(?i)we should|we need to|we will|let's|i propose|we agree|decision|decide|agreed`)
	constraintRe    = regexp.MustCompile(`(?i)constraint|must|cannot|can't|should not|limit|budget|deadline|latency|security|privacy|compliance`)
	definitionRe    = regexp.MustCompile(`(?i)define|defined as|means|definition|term`)
	negationRe      = regexp.MustCompile(`(?i)\b(not|never|cannot|can't|without|avoid|against|reject)\b`)
)

// Sentences splits a message on sentence terminators followed by
// whitespace, keeping at most four sentences of at least 16 characters.
func Sentences(text string) []string {
	var out []string
	for _, part := range sentenceSplitRe.Split(text, -1) {
		s := strings.TrimSpace(part)
		if len(s) < minSentenceLen {
			continue
		}
		out = append(out, s)
		if len(out) == maxSentencesPerMessage {
			break
		}
	}
	return out
}

// Classify assigns a sentence to its semantic category. The check order
// is load-bearing: a sentence matching several categories takes the
// first, so a question containing a decision verb stays an open
// question. Returns false for sentences matching nothing.
func Classify(sentence string) (ItemType, float64, string, bool) {
	switch {
	case strings.Contains(sentence, "?") || whWordRe.MatchString(sentence):
		return ItemOpenQuestion, 0.62, StatusOpen, true
	case hypothesisRe.MatchString(sentence):
		return ItemHypothesis, 0.67, StatusActive, true
	case decisionRe.MatchString(sentence):
		return ItemDecision, 0.68, StatusActive, true
	case constraintRe.MatchString(sentence):
		return ItemConstraint, 0.66, StatusActive, true
	case definitionRe.MatchString(sentence):
		return ItemDefinition, 0.64, StatusActive, true
	default:
		return "", 0, "", false
	}
}

// HasNegation reports whether the text contains a negation marker. Used
// by conflict detection to pair an assertion with its denial.
func HasNegation(text string) bool {
	return negationRe.MatchString(text)
}

// Items extracts the classified semantic items of one message. Weight
// and confidence scale with sentence density: longer sentences carry
// more signal, capped at 24 words.
func Items(text string, turn int) []Item {
	var out []Item
	for _, sentence := range Sentences(text) {
		typ, base, status, ok := Classify(sentence)
		if !ok {
			continue
		}
		words := len(strings.Fields(sentence))
		density := float64(min(words, 24)) / 16
		confidence := base + density*0.05
		if confidence > maxConfidence {
			confidence = maxConfidence
		}
		out = append(out, Item{
			Type:          typ,
			CanonicalText: Canonical(sentence),
			EvidenceText:  sentence,
			Weight:        round4(1 + density),
			Confidence:    round4(confidence),
			Occurrences:   1,
			FirstTurn:     turn,
			LastTurn:      turn,
			Status:        status,
		})
	}
	return out
}
