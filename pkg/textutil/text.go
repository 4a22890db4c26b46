// Package textutil provides UTF-8 safe text helpers shared by the chunking
// and embedding pipelines.
package textutil

import (
	"strings"
	"unicode/utf8"
)

// SafeTruncate truncates a UTF-8 string to a maximum number of bytes
// without breaking multi-byte character boundaries.
//
// If the string is already within the limit, it returns unchanged.
func SafeTruncate(str string, maxBytes int) string {
	if len(str) <= maxBytes {
		return str
	}

	// Back up from the limit until the prefix is valid UTF-8.
	for i := maxBytes; i >= 0 && i > maxBytes-4; i-- {
		if utf8.ValidString(str[:i]) {
			return str[:i]
		}
	}

	var b strings.Builder
	for _, r := range str {
		if b.Len()+utf8.RuneLen(r) > maxBytes {
			break
		}
		b.WriteRune(r)
	}
	return b.String()
}

// TruncateRunes limits a string to at most maxRunes characters.
func TruncateRunes(str string, maxRunes int) string {
	if utf8.RuneCountInString(str) <= maxRunes {
		return str
	}
	runes := []rune(str)
	return string(runes[:maxRunes])
}

// Sanitize removes invalid UTF-8 byte sequences from a string.
//
// This is useful when dealing with text produced by external extractors,
// where encoding issues might have corrupted the bytes.
func Sanitize(str string) string {
	if utf8.ValidString(str) {
		return str
	}

	var buf strings.Builder
	buf.Grow(len(str))

	for len(str) > 0 {
		r, size := utf8.DecodeRuneInString(str)
		if r == utf8.RuneError && size == 1 {
			str = str[1:]
			continue
		}
		buf.WriteRune(r)
		str = str[size:]
	}

	return buf.String()
}

// CompressWhitespace replaces all runs of whitespace, including newlines,
// with a single space. Embedding providers reject multi-line inputs for
// some models, so chunk content is flattened before it is sent.
func CompressWhitespace(str string) string {
	return strings.Join(strings.Fields(str), " ")
}

// Preview produces a cleaned single-paragraph preview of content, truncated
// to maxLength bytes with an ellipsis.
func Preview(content string, maxLength int) string {
	content = strings.TrimSpace(content)

	lines := strings.Split(content, "\n")
	cleaned := make([]string, 0, len(lines))
	lastEmpty := false
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			if !lastEmpty {
				cleaned = append(cleaned, "")
			}
			lastEmpty = true
			continue
		}
		cleaned = append(cleaned, line)
		lastEmpty = false
	}

	result := strings.Join(cleaned, "\n")
	if len(result) > maxLength {
		result = SafeTruncate(result, maxLength) + "..."
	}

	return Sanitize(result)
}

// ContainsCJK reports whether the string contains CJK Unified Ideographs.
func ContainsCJK(str string) bool {
	for _, r := range str {
		if r >= 0x4e00 && r <= 0x9fff {
			return true
		}
	}
	return false
}
