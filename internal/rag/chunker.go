package rag

import (
	"iter"
	"strings"
	"unicode/utf8"
)

const (
	DefaultChunkSize = 1000
	// FallbackChunkLimit bounds the single chunk emitted when word splitting
	// yields nothing for non-blank input.
	FallbackChunkLimit = 5000
)

// Chunks splits text at whitespace into segments of at most size characters.
// A word longer than size becomes a chunk of its own; words are never split.
// Empty or whitespace-only input yields nothing.
func Chunks(text string, size int) iter.Seq[string] {
	if size <= 0 {
		size = DefaultChunkSize
	}
	return func(yield func(string) bool) {
		if strings.TrimSpace(text) == "" {
			return
		}

		emitted := 0
		var current []string
		currentLen := 0
		for _, word := range strings.Fields(text) {
			wordLen := utf8.RuneCountInString(word)
			if currentLen+wordLen+1 > size && len(current) > 0 {
				emitted++
				if !yield(strings.Join(current, " ")) {
					return
				}
				current = current[:0]
				currentLen = 0
			}
			current = append(current, word)
			currentLen += wordLen + 1
		}
		if len(current) > 0 {
			emitted++
			if !yield(strings.Join(current, " ")) {
				return
			}
		}

		if emitted == 0 {
			yield(truncateRunes(text, FallbackChunkLimit))
		}
	}
}

// SplitText collects Chunks into a slice.
func SplitText(text string, size int) []string {
	var out []string
	for chunk := range Chunks(text, size) {
		out = append(out, chunk)
	}
	return out
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
