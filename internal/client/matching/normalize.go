package matching

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize folds case, strips diacritics, turns every run of punctuation
// or whitespace into a single space and trims the result.
func Normalize(s string) string {
	// Transformers carry state, so each call builds its own.
	strip := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if out, _, err := transform.String(strip, s); err == nil {
		s = out
	}
	s = cases.Fold().String(s)
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	return strings.Join(fields, " ")
}

// tokens splits a normalized name into words longer than one character.
func tokens(normalized string) []string {
	var out []string
	for _, w := range strings.Fields(normalized) {
		if utf8.RuneCountInString(w) > 1 {
			out = append(out, w)
		}
	}
	return out
}

func partialMatch(a, b string) bool {
	if strings.HasPrefix(a, b) || strings.HasPrefix(b, a) ||
		strings.HasSuffix(a, b) || strings.HasSuffix(b, a) {
		return true
	}
	longer := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	return longer > 3 && (strings.Contains(a, b) || strings.Contains(b, a))
}
