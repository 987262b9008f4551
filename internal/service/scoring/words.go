package scoring

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// normalizeWords lowercases text, strips diacritics and punctuation and
// splits it into words, so "Pão," and "pao" compare equal.
func normalizeWords(text string) []string {
	folder := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(folder, strings.ToLower(text))
	if err != nil {
		folded = strings.ToLower(text)
	}
	return strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// overlap counts how many expected words appear in the transcript. Repeated
// expected words must be spoken as many times as they are written.
func overlap(expected, transcript []string) (matched int, missing []string) {
	heard := make(map[string]int, len(transcript))
	for _, word := range transcript {
		heard[word]++
	}
	for _, word := range expected {
		if heard[word] > 0 {
			heard[word]--
			matched++
			continue
		}
		missing = append(missing, word)
	}
	return matched, missing
}
