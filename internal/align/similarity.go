package align

import (
	"unicode/utf8"

	"github.com/antzucaro/matchr"
)

// ratio is 2*LCS/(len(a)+len(b)) over runes: 1 for identical text and 0 for
// nothing in common. Surrounding words lower it only by their length.
func ratio(a, b string) float64 {
	total := utf8.RuneCountInString(a) + utf8.RuneCountInString(b)
	if total == 0 {
		return 0
	}
	return 2 * float64(matchr.LongestCommonSubsequence(a, b)) / float64(total)
}

// ratioBound is the best ratio two strings of these lengths could reach
func ratioBound(la, lb int) float64 {
	if la+lb == 0 {
		return 0
	}
	return 2 * float64(min(la, lb)) / float64(la+lb)
}
