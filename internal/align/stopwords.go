package align

// stopWords are dropped before phrase and overlap matching
var stopWords = map[string]struct{}{}

func init() {
	for _, w := range []string{
		"a", "about", "above", "after", "again", "against", "all", "also", "am", "an", "and", "any",
		"are", "aren't", "as", "at", "be", "because", "been", "before", "being", "below", "between",
		"both", "but", "by", "can", "can't", "could", "couldn't", "did", "didn't", "do", "does",
		"doesn't", "doing", "don't", "down", "during", "each", "even", "few", "for", "from", "further",
		"get", "got", "had", "hadn't", "has", "hasn't", "have", "haven't", "having", "he", "he's",
		"her", "here", "hers", "herself", "him", "himself", "his", "how", "i", "i'm", "i've", "if",
		"in", "into", "is", "isn't", "it", "it's", "its", "itself", "just", "let's", "like", "me",
		"more", "most", "much", "my", "myself", "no", "nor", "not", "now", "of", "off", "oh", "ok",
		"okay", "on", "once", "only", "or", "other", "our", "ours", "ourselves", "out", "over", "own",
		"really", "same", "she", "she's", "should", "so", "some", "such", "than", "that", "that's",
		"the", "their", "theirs", "them", "themselves", "then", "there", "there's", "these", "they",
		"they're", "this", "those", "through", "to", "too", "um", "uh", "under", "until", "up",
		"very", "was", "wasn't", "we", "we're", "were", "weren't", "what", "what's", "when", "where",
		"which", "while", "who", "whom", "why", "will", "with", "won't", "would", "wouldn't", "yeah",
		"you", "you're", "your", "yours", "yourself", "yourselves",
	} {
		stopWords[w] = struct{}{}
	}
}

// isContentWord reports whether a folded token carries meaning on its own.
// Single characters only count when they are digits.
func isContentWord(w string) bool {
	if _, stop := stopWords[w]; stop {
		return false
	}
	if len([]rune(w)) == 1 {
		r := []rune(w)[0]
		return r >= '0' && r <= '9'
	}
	return true
}
