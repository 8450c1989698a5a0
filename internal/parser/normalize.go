package parser

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/insightdelivered/ideabank/internal/models"
)

// wordSeparator matches runs of whitespace and/or slashes.
var wordSeparator = regexp.MustCompile(`[\s\x{000B}\x{00A0}\x{1680}\x{2000}-\x{200A}\x{2028}\x{2029}\x{202F}\x{205F}\x{3000}\x{FEFF}/]+`)

// Normalize title-cases a categorical value.
//
// The value is trimmed, lowercased, split on whitespace and slashes, and each
// word gets an uppercase first letter before the words are joined with single
// spaces. A second pass then uppercases every ASCII word character that starts
// a word, so "o'neil" and "front-end" become "O'Neil" and "Front-End".
// Blank input yields "Unknown".
func Normalize(s string) string {
	s = strings.TrimFunc(s, isSpace)
	if s == "" {
		return models.UnknownValue
	}

	words := wordSeparator.Split(strings.ToLower(s), -1)
	for i, w := range words {
		words[i] = upperFirst(w)
	}
	return upperWordStarts(strings.Join(words, " "))
}

// isSpace reports whether r is one of the blanks wordSeparator splits on.
// U+0085 (NEL) is not among them.
func isSpace(r rune) bool {
	switch r {
	case '\t', '\n', '\v', '\f', '\r', ' ',
		'\u00A0', '\u1680', '\u2028', '\u2029', '\u202F', '\u205F', '\u3000', '\uFEFF':
		return true
	}
	return r >= '\u2000' && r <= '\u200A'
}

func upperFirst(w string) string {
	r, size := utf8.DecodeRuneInString(w)
	if size == 0 {
		return w
	}
	return strings.ToUpper(string(r)) + w[size:]
}

// upperWordStarts uppercases each ASCII letter that follows a non-word byte.
// Bytes of multi-byte runes count as non-word.
func upperWordStarts(s string) string {
	b := []byte(s)
	for i, c := range b {
		if !isWordByte(c) || (i > 0 && isWordByte(b[i-1])) {
			continue
		}
		if c >= 'a' && c <= 'z' {
			b[i] = c - ('a' - 'A')
		}
	}
	return string(b)
}

func isWordByte(c byte) bool {
	return c == '_' ||
		(c >= '0' && c <= '9') ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z')
}
