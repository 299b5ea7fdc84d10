package utils

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitTextShortInput(t *testing.T) {
	assert.Equal(t, []string{"hello world"}, SplitText("  hello world \n", 600, 200))
	assert.Nil(t, SplitText("   \n\t", 600, 200))
	assert.Nil(t, SplitText("abc", 0, 0))
}

func TestSplitTextBounds(t *testing.T) {
	text := strings.Repeat("lorem ipsum dolor sit amet. ", 200)

	chunks := SplitText(text, 600, 200)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 600)
		assert.NotEmpty(t, c)
	}
}

func TestSplitTextOverlap(t *testing.T) {
	text := strings.Repeat("a", 1000)

	chunks := SplitText(text, 600, 200)
	require.Len(t, chunks, 2)
	assert.Len(t, chunks[0], 600)
	// No separators: hard cut, second chunk starts 200 runes before the first one ended.
	assert.Len(t, chunks[1], 600)
}

func TestSplitTextPrefersParagraphs(t *testing.T) {
	first := strings.Repeat("x", 400)
	second := strings.Repeat("y", 400)

	chunks := SplitText(first+"\n\n"+second, 600, 100)
	require.NotEmpty(t, chunks)
	assert.Equal(t, first, chunks[0])
}

func TestSplitTextMultibyte(t *testing.T) {
	text := strings.Repeat("é", 1300)

	chunks := SplitText(text, 600, 0)
	require.Len(t, chunks, 3)
	for _, c := range chunks {
		assert.True(t, utf8.ValidString(c))
	}
}
