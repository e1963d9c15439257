package chunking

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChunk_EmptyInput(t *testing.T) {
	u := New(100, 10)
	require.Empty(t, u.Chunk(""))
}

func TestChunk_ShorterThanBudgetYieldsOneChunk(t *testing.T) {
	u := New(100, 10)
	text := "a short piece of text"
	chunks := u.Chunk(text)
	require.Len(t, chunks, 1)
	require.Equal(t, text, chunks[0])
}

func TestChunk_RespectsBound(t *testing.T) {
	u := New(50, 10)
	text := strings.Repeat("the quick brown fox jumps over the lazy dog. ", 20)
	chunks := u.Chunk(text)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		require.LessOrEqual(t, len([]rune(c)), 50)
		require.NotEmpty(t, c)
	}
}

func TestChunk_PrefersParagraphBoundary(t *testing.T) {
	u := New(40, 5)
	text := "first paragraph here is short.\n\nsecond paragraph follows after the break and runs on."
	chunks := u.Chunk(text)
	require.NotEmpty(t, chunks)
	require.True(t, strings.HasPrefix(chunks[0], "first paragraph"))
	require.Equal(t, "first paragraph here is short.", chunks[0])
}

func TestChunk_OverlapCarriesForward(t *testing.T) {
	u := New(30, 10)
	text := strings.Repeat("word ", 40)
	chunks := u.Chunk(text)
	require.True(t, len(chunks) > 1)

	// With overlap, consecutive chunks share text, so their combined
	// length exceeds the text's own length.
	total := 0
	for _, c := range chunks {
		total += len([]rune(c))
	}
	require.Greater(t, total, len([]rune(strings.TrimSpace(text))))
}

func TestNew_PanicsOnInvalidOverlap(t *testing.T) {
	require.Panics(t, func() { New(10, 10) })
	require.Panics(t, func() { New(10, 11) })
	require.Panics(t, func() { New(10, -1) })
}

func TestNewRecursive_SelectsRecursiveStrategy(t *testing.T) {
	u := NewRecursive(100, 10)
	require.True(t, u.useRecursive)

	boundary := New(100, 10)
	require.False(t, boundary.useRecursive)
}
