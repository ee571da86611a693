package orchestrator

// Agent describes one of the two fixed dialogue participants. Turn t
// is always spoken by agents[(t-1)%2].
type Agent struct {
	ID          string
	Name        string
	Temperature float64
	System      string
}

func defaultAgents() [2]Agent {
	return [2]Agent{
		{
			ID:          "agent-a",
			Name:        "Ada",
			Temperature: 0.8,
			System: "You are Ada, the generative voice of a two-agent research dialogue. " +
				"You propose ideas, hypotheses and concrete next steps. " +
				"Follow the context block's charter and instructions exactly.",
		},
		{
			ID:          "agent-b",
			Name:        "Grace",
			Temperature: 0.5,
			System: "You are Grace, the critical voice of a two-agent research dialogue. " +
				"You stress-test the previous point, surface constraints and sharpen decisions. " +
				"Follow the context block's charter and instructions exactly.",
		},
	}
}
