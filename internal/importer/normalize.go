package importer

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldDiacritics maps "Órla" to "Orla". A transformer is built per call
// because transform chains keep internal state.
func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// NormalizeColumn lowercases a header and strips everything that is not an
// ASCII letter or digit, so "D.O.B" and "dob" compare equal.
func NormalizeColumn(s string) string {
	s = strings.ToLower(foldDiacritics(s))
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// normalizeName produces the comparison form used for identity keys:
// lowercase, no diacritics, no punctuation, single spaces.
func normalizeName(s string) string {
	s = strings.ToLower(foldDiacritics(s))
	var b strings.Builder
	space := false
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '-':
			space = true
		}
	}
	return b.String()
}

// titleCase capitalizes each word, keeping Mc/O' prefixes readable enough for
// roster names ("o'brien" becomes "O'Brien").
func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = capitalizeParts(w)
	}
	return strings.Join(words, " ")
}

func capitalizeParts(w string) string {
	rs := []rune(w)
	upperNext := true
	for i, r := range rs {
		if upperNext && unicode.IsLetter(r) {
			rs[i] = unicode.ToUpper(r)
			upperNext = false
			continue
		}
		if r == '\'' || r == '-' {
			upperNext = true
		}
	}
	return string(rs)
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
