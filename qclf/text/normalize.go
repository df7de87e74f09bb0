// Package text holds the character classes and cleaning rules applied to raw
// words before they are split into subwords.
package text

import (
	"strings"
	"unicode"
)

const replacementChar = '\uFFFD'

// IsWhitespace reports whether r is a space, tab, newline, carriage return or
// a Unicode space separator (Zs).
func IsWhitespace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r':
		return true
	}
	return unicode.Is(unicode.Zs, r)
}

// IsControl reports whether r is in a Unicode "other" (C*) category.
// Tab, newline and carriage return are whitespace, not control.
func IsControl(r rune) bool {
	switch r {
	case '\t', '\n', '\r':
		return false
	}
	return unicode.In(r, unicode.Cc, unicode.Cf, unicode.Co, unicode.Cs) || isUnassigned(r)
}

// isUnassigned covers the Cn category, which the unicode package has no table for.
func isUnassigned(r rune) bool {
	if r < 0 || r > unicode.MaxRune {
		return false
	}
	return !unicode.In(r, unicode.L, unicode.M, unicode.N, unicode.P, unicode.S, unicode.Z, unicode.C)
}

// IsPunctuation reports whether r is punctuation. All non-alphanumeric
// printable ASCII counts, so symbols such as '^', '$' and '`' split words too.
func IsPunctuation(r rune) bool {
	if (r >= 33 && r <= 47) || (r >= 58 && r <= 64) || (r >= 91 && r <= 96) || (r >= 123 && r <= 126) {
		return true
	}
	return unicode.IsPunct(r)
}

func isDropped(r rune) bool {
	return r == 0 || r == replacementChar || IsControl(r)
}

// CleanText drops null, replacement and control characters and maps every
// whitespace character to a plain space.
func CleanText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if isDropped(r) {
			continue
		}
		if IsWhitespace(r) {
			b.WriteByte(' ')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ShouldIgnore reports whether word must be replaced by the pad placeholder:
// it is empty once cleaned, or it carries null, replacement or control characters.
func ShouldIgnore(word string) bool {
	if len(CleanText(word)) == 0 {
		return true
	}
	for _, r := range word {
		if isDropped(r) {
			return true
		}
	}
	return false
}
