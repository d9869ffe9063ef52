// Package chunker splits oversized audit input into ordered pieces whose
// concatenation is exactly the original input.
package chunker

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// DefaultMaxSize is the default chunk size in bytes.
const DefaultMaxSize = 50000

// Split cuts plain text into pieces of at most maxSize bytes, preferring to
// end each piece just after the last newline in the window.
func Split(text string, maxSize int) []string {
	return split(text, maxSize, cutLine)
}

// SplitMarkup cuts markup into pieces of at most maxSize bytes. Each piece
// ends right after the last tag, comment or doctype that completes inside
// the window, as seen by the HTML tokenizer, so a '>' in an attribute value
// or a comment is never taken for a tag end. When no tag completes inside
// the window, the raw limit is used.
func SplitMarkup(markup string, maxSize int) []string {
	return split(markup, maxSize, cutMarkup)
}

// Count reports how many pieces SplitMarkup would produce.
func Count(markup string, maxSize int) int {
	n := 0
	for rest := markup; ; n++ {
		if len(rest) <= maxSize || maxSize <= 0 {
			return n + 1
		}
		rest = rest[cutMarkup(rest, maxSize):]
	}
}

func split(s string, maxSize int, cut func(string, int) int) []string {
	if len(s) <= maxSize || maxSize <= 0 {
		return []string{s}
	}
	var chunks []string
	for len(s) > maxSize {
		end := cut(s, maxSize)
		chunks = append(chunks, s[:end])
		s = s[end:]
	}
	if len(s) > 0 {
		chunks = append(chunks, s)
	}
	return chunks
}

// cutLine ends the first piece after the last newline in the window.
func cutLine(s string, maxSize int) int {
	if i := strings.LastIndexByte(s[:maxSize], '\n'); i >= 0 {
		return i + 1
	}
	return cutLimit(s, maxSize)
}

// cutMarkup ends the first piece after the last non-text token that fits in
// the window. Token offsets come from the raw bytes of each token, which
// cover the input without gaps.
func cutMarkup(s string, maxSize int) int {
	z := html.NewTokenizer(strings.NewReader(s))
	offset, last := 0, 0
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		offset += len(z.Raw())
		if offset > maxSize {
			break
		}
		if tt != html.TextToken {
			last = offset
		}
	}
	if last > 0 {
		return last
	}
	return cutLimit(s, maxSize)
}

// cutLimit cuts at maxSize, moved back to a rune start. The result is always
// in (0, maxSize] unless a single rune is wider than maxSize.
func cutLimit(s string, maxSize int) int {
	end := maxSize
	for end > 0 && !utf8.RuneStart(s[end]) {
		end--
	}
	if end == 0 {
		// A single rune wider than maxSize; emit it whole.
		_, size := utf8.DecodeRuneInString(s)
		return size
	}
	return end
}
