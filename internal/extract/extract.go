// Package extract implements the deterministic text analysis the memory
// engine is built on: lexical tokenization, sentence classification,
// canonicalization and similarity. Every function here is pure; the same
// input always yields byte-identical output.
package extract

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

const (
	maxTokensPerMessage = 24
	maxTokenLenBonus    = 12
	canonicalMaxLen     = 180
)

var (
	tokenRe     = regexp.MustCompile(`[a-z0-9][a-z0-9'-]*`)
	pureDigitRe = regexp.MustCompile(`^[0-9]+$`)
	nonCanonRe  = regexp.MustCompile(`[^a-z0-9\s-]`)
	spaceRe     = regexp.MustCompile(`\s+`)
)

// round4 rounds to four decimal places, the precision used for all
// persisted weights and confidences.
func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// Tokens extracts the weighted lexical tokens of one message. Tokens
// shorter than three runes, pure digits and stop words are discarded.
// At most 24 tokens are returned, highest weight first.
func Tokens(text string, turn int) []Token {
	counts := make(map[string]int)
	for _, raw := range tokenRe.FindAllString(strings.ToLower(text), -1) {
		tok := strings.Trim(raw, "'")
		if len(tok) < 3 || pureDigitRe.MatchString(tok) || IsStopWord(tok) {
			continue
		}
		counts[tok]++
	}

	out := make([]Token, 0, len(counts))
	for tok, n := range counts {
		bonus := float64(min(len(tok), maxTokenLenBonus)) / float64(maxTokenLenBonus)
		out = append(out, Token{
			Text:        tok,
			Weight:      round4(float64(n) * (1 + bonus)),
			Occurrences: n,
			LastTurn:    turn,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		return out[i].Text < out[j].Text
	})
	if len(out) > maxTokensPerMessage {
		out = out[:maxTokensPerMessage]
	}
	return out
}

// Canonical normalizes free text into the key form used for semantic
// dedup: lowercase, punctuation replaced by spaces, whitespace collapsed,
// capped at 180 characters.
func Canonical(text string) string {
	s := strings.ToLower(text)
	s = nonCanonRe.ReplaceAllString(s, " ")
	s = spaceRe.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	if len(s) > canonicalMaxLen {
		s = s[:canonicalMaxLen]
	}
	return s
}

// jaccardSet builds the comparison token set: alphanumeric runs of
// length greater than two, lowercased.
func jaccardSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	var sb strings.Builder
	flush := func() {
		if sb.Len() > 2 {
			set[sb.String()] = struct{}{}
		}
		sb.Reset()
	}
	for _, r := range strings.ToLower(text) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return set
}

// Jaccard returns the token-set similarity of two texts in [0,1]. Two
// empty texts are considered identical.
func Jaccard(a, b string) float64 {
	sa, sb := jaccardSet(a), jaccardSet(b)
	if len(sa) == 0 && len(sb) == 0 {
		return 1
	}
	if len(sa) == 0 || len(sb) == 0 {
		return 0
	}
	inter := 0
	for tok := range sa {
		if _, ok := sb[tok]; ok {
			inter++
		}
	}
	union := len(sa) + len(sb) - inter
	return float64(inter) / float64(union)
}

// DedupeTokens groups tokens by text, summing occurrences and weight and
// keeping the highest turn. Output is sorted by weight desc, text asc.
func DedupeTokens(tokens []Token) []Token {
	merged := make(map[string]Token)
	for _, t := range tokens {
		prev, ok := merged[t.Text]
		if !ok {
			merged[t.Text] = t
			continue
		}
		prev.Occurrences += t.Occurrences
		prev.Weight = round4(prev.Weight + t.Weight)
		if t.LastTurn > prev.LastTurn {
			prev.LastTurn = t.LastTurn
		}
		merged[t.Text] = prev
	}

	out := make([]Token, 0, len(merged))
	for _, t := range merged {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		return out[i].Text < out[j].Text
	})
	return out
}

// DedupeItems groups items by (type, canonical text), summing weight and
// occurrences, taking the max confidence and last turn, min first turn;
// the latest evidence text wins. Output is sorted by weight desc, then
// type asc, then canonical text asc.
func DedupeItems(items []Item) []Item {
	type key struct {
		typ  ItemType
		text string
	}
	merged := make(map[key]Item)
	order := make([]key, 0, len(items))
	for _, it := range items {
		k := key{it.Type, it.CanonicalText}
		prev, ok := merged[k]
		if !ok {
			merged[k] = it
			order = append(order, k)
			continue
		}
		prev.Weight = round4(prev.Weight + it.Weight)
		prev.Occurrences += it.Occurrences
		if it.Confidence > prev.Confidence {
			prev.Confidence = it.Confidence
		}
		if it.FirstTurn < prev.FirstTurn {
			prev.FirstTurn = it.FirstTurn
		}
		if it.LastTurn >= prev.LastTurn {
			prev.LastTurn = it.LastTurn
			prev.EvidenceText = it.EvidenceText
		}
		merged[k] = prev
	}

	out := make([]Item, 0, len(merged))
	for _, k := range order {
		out = append(out, merged[k])
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].CanonicalText < out[j].CanonicalText
	})
	return out
}
