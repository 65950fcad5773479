package rag

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func distinctWords(totalLen int) string {
	var b strings.Builder
	for i := 0; b.Len() < totalLen; i++ {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(fmt.Sprintf("w%04d", i))
	}
	return b.String()[:totalLen]
}

func TestSplitText_EmptyAndBlank(t *testing.T) {
	assert.Empty(t, SplitText("", 1000))
	assert.Empty(t, SplitText("   \n\t  ", 1000))
}

func TestSplitText_ShortTextSingleChunk(t *testing.T) {
	chunks := SplitText("  hello   world\nfoo ", 1000)
	assert.Equal(t, []string{"hello world foo"}, chunks)
}

func TestSplitText_ReconstructsNormalizedText(t *testing.T) {
	inputs := []string{
		"the quick brown fox jumps over the lazy dog",
		"  leading and trailing  \n\n whitespace\tmixed   in ",
		distinctWords(2500),
		"ñandú café über straße naïve résumé",
	}
	for _, in := range inputs {
		for _, size := range []int{1, 3, 7, 10, 64, 1000} {
			chunks := SplitText(in, size)
			assert.Equal(t, strings.Join(strings.Fields(in), " "), strings.Join(chunks, " "),
				"input %q size %d", in, size)
		}
	}
}

func TestSplitText_SizeBound(t *testing.T) {
	text := "alpha beta gamma " + strings.Repeat("x", 40) + " delta epsilon zeta eta theta"
	size := 12
	for _, chunk := range SplitText(text, size) {
		if utf8.RuneCountInString(chunk) > size {
			// The only permitted overflow is a single word longer than the budget.
			assert.NotContains(t, chunk, " ")
			assert.Greater(t, utf8.RuneCountInString(chunk), size)
			continue
		}
		assert.NotEmpty(t, strings.TrimSpace(chunk))
	}
}

func TestSplitText_LongWordIsItsOwnChunk(t *testing.T) {
	long := strings.Repeat("a", 30)
	chunks := SplitText("hi "+long+" there", 10)
	assert.Equal(t, []string{"hi", long, "there"}, chunks)
}

func TestSplitText_2500CharsGivesThreeChunks(t *testing.T) {
	text := distinctWords(2500)
	chunks := SplitText(text, 1000)
	require.Len(t, chunks, 3)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 1000)
		assert.Equal(t, c, strings.TrimSpace(c))
	}
}

func TestSplitText_DefaultSize(t *testing.T) {
	text := distinctWords(2500)
	assert.Equal(t, SplitText(text, DefaultChunkSize), SplitText(text, 0))
}

func TestChunks_StopsEarly(t *testing.T) {
	var got []string
	for c := range Chunks("a b c d e f", 2) {
		got = append(got, c)
		if len(got) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "héll", truncateRunes("héllo", 4))
	assert.Equal(t, "abc", truncateRunes("abc", 5000))
	assert.Equal(t, FallbackChunkLimit, utf8.RuneCountInString(truncateRunes(strings.Repeat("é", 6000), FallbackChunkLimit)))
}
