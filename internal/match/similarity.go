// Package match aligns free-text classifier labels with reference taxonomy
// entries using token-sorted fuzzy similarity.
package match

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Similarity scores two strings between 0 (unrelated) and 100 (identical).
type Similarity interface {
	Score(a, b string) float64
}

// SimilarityFunc adapts a plain function to Similarity.
type SimilarityFunc func(a, b string) float64

func (f SimilarityFunc) Score(a, b string) float64 {
	return f(a, b)
}

// TokenSort is the default Similarity: both inputs are case-folded, split
// into words and sorted before comparison, so word order does not matter.
var TokenSort Similarity = SimilarityFunc(TokenSortRatio)

// TokenSortRatio returns the indel similarity of the token-sorted forms of a
// and b, scaled to 0-100. Two empty inputs score 0.
func TokenSortRatio(a, b string) float64 {
	return Ratio(sortTokens(a), sortTokens(b))
}

// Ratio returns 100 * 2*LCS / (len(a)+len(b)) over runes, the normalized
// insert/delete similarity of a and b.
func Ratio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 0
	}
	return 100 * float64(2*lcsLength(ra, rb)) / float64(total)
}

func sortTokens(s string) string {
	s = cases.Lower(language.Und).String(norm.NFKC.String(s))
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

// lcsLength computes the longest common subsequence with two DP rows.
func lcsLength(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	if len(a) < len(b) {
		a, b = b, a
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else {
				curr[j] = max(prev[j], curr[j-1])
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
