// Package nlp splits free text into clean lowercase words.
package nlp

import (
	"errors"
	"fmt"
	"iter"
	"regexp"
	"slices"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultDisallowed matches runs of anything that is not an ASCII letter.
const DefaultDisallowed = `[^A-Za-z]+`

var defaultDisallowed = regexp.MustCompile(DefaultDisallowed)

var ErrInvalidPattern = errors.New("invalid tokenizer pattern")

// Tokenize yields the words of text using DefaultDisallowed.
func Tokenize(text string) iter.Seq[string] {
	return TokenizeWith(text, defaultDisallowed)
}

// TokenizeWith splits text on whitespace and the ASCII separator controls,
// strips every match of disallowed from each candidate and lowercases the
// remainder. Only non-empty results
// made entirely of letters are yielded. A nil disallowed uses the default.
//
// The sequence is lazy and may be ranged over any number of times.
func TokenizeWith(text string, disallowed *regexp.Regexp) iter.Seq[string] {
	if disallowed == nil {
		disallowed = defaultDisallowed
	}
	return func(yield func(string) bool) {
		// Casers keep state, so each pass gets its own.
		lower := cases.Lower(language.Und)
		for _, word := range strings.FieldsFunc(text, isSeparator) {
			clean := lower.String(disallowed.ReplaceAllString(word, ""))
			if !isAlpha(clean) {
				continue
			}
			if !yield(clean) {
				return
			}
		}
	}
}

// TokenizePattern compiles pattern and tokenizes text with it.
func TokenizePattern(text, pattern string) (iter.Seq[string], error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPattern, err)
	}
	return TokenizeWith(text, re), nil
}

// Words collects Tokenize(text) into a slice.
func Words(text string) []string {
	return slices.Collect(Tokenize(text))
}

// isSeparator reports whether r splits candidate words: Unicode white space
// plus the ASCII separator controls U+001C to U+001F.
func isSeparator(r rune) bool {
	return unicode.IsSpace(r) || (r >= '\x1c' && r <= '\x1f')
}

func isAlpha(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
