package extract

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTokens_Filtering(t *testing.T) {
	tokens := Tokens("The cache cache policy is 42 ok a1b", 3)

	got := make(map[string]Token)
	for _, tok := range tokens {
		got[tok.Text] = tok
	}

	if _, ok := got["the"]; ok {
		t.Error("stop word 'the' should be filtered")
	}
	if _, ok := got["42"]; ok {
		t.Error("pure digit token should be filtered")
	}
	if _, ok := got["is"]; ok {
		t.Error("short token should be filtered")
	}
	if _, ok := got["a1b"]; !ok {
		t.Error("mixed alphanumeric token should survive")
	}

	cache, ok := got["cache"]
	if !ok {
		t.Fatal("expected token 'cache'")
	}
	if cache.Occurrences != 2 {
		t.Errorf("cache occurrences = %d, want 2", cache.Occurrences)
	}
	// weight = occurrences * (1 + min(len,12)/12) = 2 * (1 + 5/12)
	if want := 2.8333; cache.Weight != want {
		t.Errorf("cache weight = %v, want %v", cache.Weight, want)
	}
	if cache.LastTurn != 3 {
		t.Errorf("cache lastTurn = %d, want 3", cache.LastTurn)
	}
}

func TestTokens_ApostropheTrim(t *testing.T) {
	tokens := Tokens("'quoted' words here", 1)
	for _, tok := range tokens {
		if strings.HasPrefix(tok.Text, "'") || strings.HasSuffix(tok.Text, "'") {
			t.Errorf("token %q retains surrounding apostrophe", tok.Text)
		}
	}
}

func TestTokens_CapAt24(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 40; i++ {
		sb.WriteString("token")
		sb.WriteByte(byte('a' + i%26))
		sb.WriteByte(byte('a' + i/26))
		sb.WriteString(" ")
	}
	if got := len(Tokens(sb.String(), 1)); got != 24 {
		t.Errorf("token count = %d, want 24", got)
	}
}

func TestTokens_Deterministic(t *testing.T) {
	text := "We should adopt optimistic locking because latency budgets are tight. What about rollback?"
	a := Tokens(text, 7)
	b := Tokens(text, 7)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("Tokens not deterministic (-first +second):\n%s", diff)
	}
	ia := Items(text, 7)
	ib := Items(text, 7)
	if diff := cmp.Diff(ia, ib); diff != "" {
		t.Errorf("Items not deterministic (-first +second):\n%s", diff)
	}
}

func TestSentences(t *testing.T) {
	text := "Short one. This sentence is long enough to keep. Tiny. " +
		"Another sufficiently long sentence here! A third keeper sentence follows now? " +
		"Fourth keeper sentence with enough length. Fifth keeper that must be dropped."
	got := Sentences(text)
	if len(got) != 4 {
		t.Fatalf("sentence count = %d, want 4", len(got))
	}
	for _, s := range got {
		if len(s) < 16 {
			t.Errorf("kept sentence below minimum length: %q", s)
		}
	}
}

func TestClassify_PriorityOrder(t *testing.T) {
	tests := []struct {
		name     string
		sentence string
		wantType ItemType
		wantConf float64
		wantStat string
	}{
		{"question mark", "Is the budget fixed?", ItemOpenQuestion, 0.62, StatusOpen},
		{"wh word", "what drives the latency numbers here", ItemOpenQuestion, 0.62, StatusOpen},
		{"question beats decision", "Should we decide on LRU now?", ItemOpenQuestion, 0.62, StatusOpen},
		{"hypothesis", "Our theory explains the tail behavior", ItemHypothesis, 0.67, StatusActive},
		{"decision", "We will adopt optimistic locking", ItemDecision, 0.68, StatusActive},
		{"constraint", "Writes cannot exceed the deadline", ItemConstraint, 0.66, StatusActive},
		{"definition", "Eviction is defined as removal on overflow", ItemDefinition, 0.64, StatusActive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			typ, conf, status, ok := Classify(tt.sentence)
			if !ok {
				t.Fatalf("Classify(%q) matched nothing", tt.sentence)
			}
			if typ != tt.wantType || conf != tt.wantConf || status != tt.wantStat {
				t.Errorf("Classify(%q) = (%s, %v, %s), want (%s, %v, %s)",
					tt.sentence, typ, conf, status, tt.wantType, tt.wantConf, tt.wantStat)
			}
		})
	}
}

func TestClassify_Unmatched(t *testing.T) {
	if _, _, _, ok := Classify("The sky stayed blue all afternoon yesterday"); ok {
		t.Error("neutral sentence should be discarded")
	}
}

func TestItems_Scoring(t *testing.T) {
	// 6 words: density = 6/16 = 0.375
	items := Items("We will adopt optimistic locking now.", 5)
	if len(items) != 1 {
		t.Fatalf("item count = %d, want 1", len(items))
	}
	it := items[0]
	if it.Weight != 1.375 {
		t.Errorf("weight = %v, want 1.375", it.Weight)
	}
	if want := round4(0.68 + 0.375*0.05); it.Confidence != want {
		t.Errorf("confidence = %v, want %v", it.Confidence, want)
	}
	if it.FirstTurn != 5 || it.LastTurn != 5 {
		t.Errorf("turn range = [%d,%d], want [5,5]", it.FirstTurn, it.LastTurn)
	}
}

func TestItems_ConfidenceCeiling(t *testing.T) {
	long := "We will adopt " + strings.Repeat("very ", 30) + "careful optimistic locking"
	items := Items(long, 1)
	for _, it := range items {
		if it.Confidence > 0.95 {
			t.Errorf("confidence %v exceeds 0.95 ceiling", it.Confidence)
		}
	}
}

func TestCanonical(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  We WILL adopt  locking!  ", "we will adopt locking"},
		{"a,b;c", "a b c"},
		{"keep-hyphen and 123", "keep-hyphen and 123"},
	}
	for _, tt := range tests {
		if got := Canonical(tt.in); got != tt.want {
			t.Errorf("Canonical(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	long := strings.Repeat("x", 400)
	if got := Canonical(long); len(got) != 180 {
		t.Errorf("canonical length = %d, want 180", len(got))
	}
}

func TestJaccard(t *testing.T) {
	a := "the cache policy favors recency"
	b := "recency drives the cache policy"
	sim := Jaccard(a, b)
	if sim < 0 || sim > 1 {
		t.Errorf("similarity %v outside [0,1]", sim)
	}
	if Jaccard(a, b) != Jaccard(b, a) {
		t.Error("jaccard is not symmetric")
	}
	if Jaccard(a, a) != 1 {
		t.Error("identical texts should score 1")
	}
	if Jaccard("", "") != 1 {
		t.Error("two empty texts should score 1")
	}
	if Jaccard(a, "") != 0 {
		t.Error("empty vs non-empty should score 0")
	}
}

func TestHasNegation(t *testing.T) {
	if !HasNegation("we will not adopt locking") {
		t.Error("expected negation in 'not'")
	}
	if HasNegation("we will adopt locking") {
		t.Error("unexpected negation")
	}
	if HasNegation("the knot was tight") {
		t.Error("'knot' must not register as negation")
	}
}

func TestDedupeTokens(t *testing.T) {
	in := []Token{
		{Text: "cache", Weight: 1.4167, Occurrences: 1, LastTurn: 1},
		{Text: "cache", Weight: 1.4167, Occurrences: 1, LastTurn: 3},
		{Text: "policy", Weight: 1.5, Occurrences: 1, LastTurn: 2},
	}
	out := DedupeTokens(in)
	if len(out) != 2 {
		t.Fatalf("deduped count = %d, want 2", len(out))
	}
	if out[0].Text != "cache" {
		t.Errorf("expected cache first by weight, got %q", out[0].Text)
	}
	if out[0].Occurrences != 2 || out[0].LastTurn != 3 {
		t.Errorf("merge got occ=%d lastTurn=%d, want 2 and 3", out[0].Occurrences, out[0].LastTurn)
	}
	if out[0].Weight != 2.8334 {
		t.Errorf("merged weight = %v, want 2.8334", out[0].Weight)
	}
}

func TestDedupeItems(t *testing.T) {
	in := []Item{
		{Type: ItemDecision, CanonicalText: "adopt lru", EvidenceText: "first", Weight: 1.2, Confidence: 0.68, Occurrences: 1, FirstTurn: 2, LastTurn: 2},
		{Type: ItemDecision, CanonicalText: "adopt lru", EvidenceText: "second", Weight: 1.3, Confidence: 0.70, Occurrences: 1, FirstTurn: 5, LastTurn: 5},
	}
	out := DedupeItems(in)
	if len(out) != 1 {
		t.Fatalf("deduped count = %d, want 1", len(out))
	}
	it := out[0]
	if it.Weight != 2.5 || it.Occurrences != 2 {
		t.Errorf("merge got weight=%v occ=%d, want 2.5 and 2", it.Weight, it.Occurrences)
	}
	if it.Confidence != 0.70 {
		t.Errorf("confidence = %v, want max 0.70", it.Confidence)
	}
	if it.FirstTurn != 2 || it.LastTurn != 5 {
		t.Errorf("turn range = [%d,%d], want [2,5]", it.FirstTurn, it.LastTurn)
	}
	if it.EvidenceText != "second" {
		t.Errorf("evidence = %q, want latest", it.EvidenceText)
	}
}
