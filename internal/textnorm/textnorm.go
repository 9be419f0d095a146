// Package textnorm canonicalizes free text into a comparison-only form used by
// the lexical search path. The output is never shown to users.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/width"
)

const (
	katakanaFirst = 'ァ' // U+30A1
	katakanaLast  = 'ヶ' // U+30F6
	kanaShift     = 0x60
	longVowelMark = 'ー'
)

// Normalize lowercases ASCII, folds fullwidth Latin letters and digits to
// halfwidth, folds katakana to hiragana and drops everything except
// hiragana, [a-z0-9] and the long-vowel mark. It is total and idempotent.
func Normalize(s string) string {
	if s == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r, ok := foldRune(r); ok {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// Len returns the rune length of the normalized form of s.
func Len(s string) int {
	return len([]rune(Normalize(s)))
}

func foldRune(r rune) (rune, bool) {
	if p := width.LookupRune(r); p.Kind() == width.EastAsianFullwidth {
		if n := p.Narrow(); n != 0 {
			r = n
		}
	}

	switch {
	case r >= 'A' && r <= 'Z':
		return r + ('a' - 'A'), true
	case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		return r, true
	case r >= katakanaFirst && r <= katakanaLast:
		return r - kanaShift, true
	case r == longVowelMark:
		return r, true
	case unicode.Is(unicode.Hiragana, r):
		return r, true
	}
	return 0, false
}
