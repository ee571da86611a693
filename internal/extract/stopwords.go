package extract

// stopWords is the fixed filter set shared by tokenization and conflict
// detection. Membership checks are on already-lowercased tokens.
var stopWords = map[string]struct{}{}

func init() {
	for _, w := range []string{
		"the", "and", "for", "are", "but", "not", "you", "all", "any",
		"can", "had", "her", "was", "one", "our", "out", "day", "get",
		"has", "him", "his", "how", "man", "new", "now", "old", "see",
		"two", "way", "who", "its", "did", "yes", "with", "that", "this",
		"have", "from", "they", "will", "would", "there", "their", "what",
		"about", "which", "when", "were", "been", "more", "some", "them",
		"then", "than", "also", "into", "only", "other", "could", "these",
		"those", "such", "over", "just", "like", "very", "should", "after",
		"before", "where", "because", "while", "being", "does", "doing",
		"each", "here", "most", "much", "many", "might", "must", "shall",
		"still", "between", "under", "during", "through", "again", "both",
		"same", "your",
	} {
		stopWords[w] = struct{}{}
	}
}

// IsStopWord reports whether the lowercased token is in the filter set.
func IsStopWord(token string) bool {
	_, ok := stopWords[token]
	return ok
}
