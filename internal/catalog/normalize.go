package catalog

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize lowercases s, folds compatibility forms (º, ²), strips diacritics
// and collapses every run of non-alphanumeric characters into a single space.
func Normalize(s string) string {
	// transform chains keep state, so each call builds its own.
	fold := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(fold, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	b.Grow(len(folded))
	pendingSpace := false
	for _, r := range strings.ToLower(folded) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
			continue
		}
		pendingSpace = true
	}
	return b.String()
}

// trigrams returns the multiset of space-padded character trigrams of every
// word in an already normalized string, plus its total size.
func trigrams(normalized string) (map[string]int, int) {
	grams := make(map[string]int)
	total := 0
	for _, word := range strings.Fields(normalized) {
		padded := []rune(" " + word + " ")
		for i := 0; i+3 <= len(padded); i++ {
			grams[string(padded[i:i+3])]++
			total++
		}
	}
	return grams, total
}

// dice is the Sørensen–Dice coefficient of two trigram multisets
func dice(a map[string]int, aTotal int, b map[string]int, bTotal int) float64 {
	if aTotal == 0 || bTotal == 0 {
		return 0
	}
	if len(a) > len(b) {
		a, b = b, a
	}
	shared := 0
	for g, n := range a {
		if m, ok := b[g]; ok {
			shared += min(n, m)
		}
	}
	return 2 * float64(shared) / float64(aTotal+bTotal)
}

// Similarity scores two free-text descriptions in [0,1]
func Similarity(a, b string) float64 {
	ga, ta := trigrams(Normalize(a))
	gb, tb := trigrams(Normalize(b))
	return dice(ga, ta, gb, tb)
}
