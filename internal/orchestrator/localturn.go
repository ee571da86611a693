package orchestrator

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"colloquy/internal/store"
)

// Angles give the deterministic generator something different to say
// each turn so it does not trip its own repetition guard.
var turnAngles = []string{
	"the core tradeoff",
	"a concrete failure mode",
	"the measurable success criterion",
	"an alternative worth ruling out",
	"the cheapest experiment to run",
	"the riskiest open assumption",
	"how this interacts with existing constraints",
	"what we would need to reverse this later",
}

// localTurn is the deterministic fallback generator. It stays anchored
// to the topic, varies by turn number and speaker role, responds to
// the previous entry and folds in the moderator directive.
func localTurn(topic, directive string, turn int, agent Agent, transcript []store.Message) string {
	angle := turnAngles[(turn-1)%len(turnAngles)]

	var sb strings.Builder
	if len(transcript) == 0 {
		fmt.Fprintf(&sb, "Let us open the discussion of %s with %s.", topic, angle)
	} else {
		prev := transcript[len(transcript)-1]
		if agent.ID == "agent-a" {
			fmt.Fprintf(&sb, "Building on %s's last point about %s, I propose we examine %s next.",
				prev.Speaker, topic, angle)
		} else {
			fmt.Fprintf(&sb, "Before we accept %s's framing of %s, we should pressure-test %s.",
				prev.Speaker, topic, angle)
		}
	}
	fmt.Fprintf(&sb, " For turn %d the guidance is to %s.", turn, lowerFirst(directive))
	fmt.Fprintf(&sb, " Keeping %s in focus, that means naming one specific claim we can verify or reject.", topic)
	return sb.String()
}

func lowerFirst(s string) string {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "."))
	if s == "" {
		return "continue depth-first reasoning"
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToLower(r)) + s[size:]
}
