package text

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// IsChineseChar reports whether r is in a CJK Unified Ideographs block.
// Hangul, Hiragana and Katakana are written with spaces and are not included.
func IsChineseChar(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) ||
		(r >= 0x3400 && r <= 0x4DBF) ||
		(r >= 0x20000 && r <= 0x2A6DF) ||
		(r >= 0x2A700 && r <= 0x2B73F) ||
		(r >= 0x2B740 && r <= 0x2B81F) ||
		(r >= 0x2B820 && r <= 0x2CEAF) ||
		(r >= 0xF900 && r <= 0xFAFF) ||
		(r >= 0x2F800 && r <= 0x2FA1F)
}

// TokenizeChineseChars surrounds every CJK ideograph with spaces so each one
// becomes its own word.
func TokenizeChineseChars(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if IsChineseChar(r) {
			b.WriteByte(' ')
			b.WriteRune(r)
			b.WriteByte(' ')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// WhitespaceTokenize trims s and splits it on runs of whitespace.
func WhitespaceTokenize(s string) []string {
	return strings.FieldsFunc(s, IsWhitespace)
}

// SplitOnPunctuation splits s so every punctuation rune stands alone.
func SplitOnPunctuation(s string) []string {
	var out []string
	start := -1
	for i, r := range s {
		if IsPunctuation(r) {
			if start >= 0 {
				out = append(out, s[start:i])
				start = -1
			}
			out = append(out, string(r))
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		out = append(out, s[start:])
	}
	return out
}

// StripAccents removes combining marks after canonical decomposition.
func StripAccents(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range norm.NFD.String(s) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// BasicTokenize runs the BERT pre-tokenization of a single word: clean,
// isolate CJK ideographs, split on whitespace then on punctuation. With
// lowerCase the pieces are lowercased and stripped of accents.
func BasicTokenize(word string, lowerCase bool) []string {
	cleaned := TokenizeChineseChars(CleanText(word))
	var out []string
	for _, tok := range WhitespaceTokenize(cleaned) {
		if lowerCase {
			tok = StripAccents(strings.ToLower(tok))
		}
		out = append(out, SplitOnPunctuation(tok)...)
	}
	return out
}
