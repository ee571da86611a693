package extract

// ItemType categorizes a classified sentence.
type ItemType string

const (
	ItemOpenQuestion ItemType = "open_question"
	ItemHypothesis   ItemType = "hypothesis"
	ItemDecision     ItemType = "decision"
	ItemConstraint   ItemType = "constraint"
	ItemDefinition   ItemType = "definition"
)

// Item statuses.
const (
	StatusOpen     = "open"
	StatusActive   = "active"
	StatusResolved = "resolved"
)

// Token is a weighted lexical token observed in a message.
type Token struct {
	Text        string
	Weight      float64
	Occurrences int
	LastTurn    int
}

// Item is a classified semantic sentence.
type Item struct {
	Type          ItemType
	CanonicalText string
	EvidenceText  string
	Weight        float64
	Confidence    float64
	Occurrences   int
	FirstTurn     int
	LastTurn      int
	Status        string
}
