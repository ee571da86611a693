package orchestrator

import (
	"strings"
	"testing"
	"unicode/utf8"

	"colloquy/internal/store"
)

func TestParseModeration_Permissive(t *testing.T) {
	raw := "Sure, here is my assessment:\n```json\n" +
		`{"onTopic":true,"repetitive":false,"tooShort":false,"done":true,"directive":"wrap up"}` +
		"\n```\nHope that helps!"
	mod, err := parseModeration(raw)
	if err != nil {
		t.Fatalf("parseModeration: %v", err)
	}
	if !mod.OnTopic || !mod.Done || mod.Directive != "wrap up" {
		t.Errorf("parsed %+v", mod)
	}
}

func TestParseModeration_Malformed(t *testing.T) {
	for _, raw := range []string{"", "no json here", "{broken", "{]"} {
		if _, err := parseModeration(raw); err == nil {
			t.Errorf("parseModeration(%q) should fail", raw)
		}
	}
}

func TestLocalModeration_Branches(t *testing.T) {
	long := "This message talks about caching strategy with plenty of substantive detail included."

	tests := []struct {
		name       string
		topic      string
		transcript []store.Message
		wantPrefix string
		done       bool
	}{
		{
			name:       "off topic",
			topic:      "caching strategy",
			transcript: []store.Message{{Text: "Completely unrelated message with more than eight whole words in it."}},
			wantPrefix: "Steer back to topic:",
		},
		{
			name:  "repetitive",
			topic: "caching strategy",
			transcript: []store.Message{
				{Text: long},
				{Text: long},
			},
			wantPrefix: "Avoid repeating prior wording",
		},
		{
			name:       "too short",
			topic:      "caching strategy",
			transcript: []store.Message{{Text: "About caching, yes."}},
			wantPrefix: "Add depth:",
		},
		{
			name:       "default",
			topic:      "caching strategy",
			transcript: []store.Message{{Text: long}},
			wantPrefix: "Increase specificity",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mod := localModeration(tt.topic, tt.transcript)
			if mod.Done {
				t.Error("local assessment never signals done")
			}
			if !strings.HasPrefix(mod.Directive, tt.wantPrefix) {
				t.Errorf("directive = %q, want prefix %q", mod.Directive, tt.wantPrefix)
			}
		})
	}
}

func TestTruncateDirective(t *testing.T) {
	long := strings.Repeat("x", 400)
	if got := truncateDirective(long); len(got) != directiveMaxChars {
		t.Errorf("truncated length = %d, want %d", len(got), directiveMaxChars)
	}
	if got := truncateDirective("short"); got != "short" {
		t.Errorf("short directive altered: %q", got)
	}

	// Multi-byte topic text must never be cut mid-rune.
	wide := "Steer back to topic: " + strings.Repeat("€", 150)
	got := truncateDirective(wide)
	if !utf8.ValidString(got) {
		t.Fatalf("truncated directive is invalid UTF-8: %q", got)
	}
	if len(got) > directiveMaxChars {
		t.Errorf("truncated length = %d, exceeds %d", len(got), directiveMaxChars)
	}
}
