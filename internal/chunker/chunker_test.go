package chunker

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novelrag/internal/domain"
)

func TestNewWindowChunker_RejectsBadGeometry(t *testing.T) {
	tests := []struct {
		name          string
		size, overlap int
	}{
		{name: "overlap equals size", size: 10, overlap: 10},
		{name: "overlap exceeds size", size: 10, overlap: 11},
		{name: "zero size", size: 0, overlap: 0},
		{name: "negative overlap", size: 10, overlap: -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewWindowChunker(tt.size, tt.overlap)
			require.ErrorIs(t, err, domain.ErrChunkingPrecondition)
			assert.Nil(t, c)
		})
	}
}

func TestWindowChunker_EmptyAndShort(t *testing.T) {
	c, err := NewWindowChunker(DefaultWindowSize, DefaultOverlap)
	require.NoError(t, err)

	chunks, err := c.Chunk(domain.Section{Title: "CHAPTER I", Content: ""})
	require.NoError(t, err)
	assert.Empty(t, chunks)

	chunks, err = c.Chunk(domain.Section{Title: "CHAPTER I", Content: "Hello, Alice."})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, domain.Chunk{SectionTitle: "CHAPTER I", SequenceIndex: 1, Text: "Hello, Alice."}, chunks[0])
}

func TestWindowChunker_HardCutWithoutBoundaries(t *testing.T) {
	c, err := NewWindowChunker(10, 2)
	require.NoError(t, err)

	windows := c.Split(strings.Repeat("a", 25))
	require.Len(t, windows, 3)
	assert.Len(t, windows[0], 10)
	assert.Len(t, windows[1], 10)
	assert.Len(t, windows[2], 9)
}

func TestWindowChunker_PrefersNaturalBoundaries(t *testing.T) {
	c, err := NewWindowChunker(12, 4)
	require.NoError(t, err)

	windows := c.Split("aaaa bbbb\n\ncccc dddd eeee")
	require.Len(t, windows, 3)
	assert.Equal(t, "aaaa bbbb\n\n", windows[0])
	assert.Equal(t, "b\n\ncccc dddd", windows[1])
	assert.Equal(t, "dddd eeee", windows[2])
}

func TestWindowChunker_WindowsCoverContent(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 60; i++ {
		fmt.Fprintf(&b, "Sentence number %d tells of the White Rabbit’s watch. ", i)
		if i%7 == 6 {
			b.WriteString("\n\n")
		}
	}
	content := b.String()
	runes := []rune(content)

	const size, overlap = 100, 20
	c, err := NewWindowChunker(size, overlap)
	require.NoError(t, err)
	chunks, err := c.Chunk(domain.Section{Title: "CHAPTER I", Content: content})
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	step := size - overlap
	covered := 0
	for i, ch := range chunks {
		assert.Equal(t, i+1, ch.SequenceIndex)
		assert.Equal(t, "CHAPTER I", ch.SectionTitle)
		n := utf8.RuneCountInString(ch.Text)
		assert.LessOrEqual(t, n, size)

		start := i * step
		require.LessOrEqual(t, start, covered, "gap before chunk %d", i+1)
		assert.Equal(t, string(runes[start:start+n]), ch.Text)
		covered = start + n
	}
	assert.Equal(t, len(runes), covered)
}

func TestSentenceChunker(t *testing.T) {
	c, err := NewSentenceChunker(3, 1)
	require.NoError(t, err)

	content := "One. Two! Three? Four. Five. Six. Seven."
	chunks, err := c.Chunk(domain.Section{Title: "CHAPTER II", Content: content})
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, "One. Two! Three?", chunks[0].Text)
	assert.Equal(t, "Three? Four. Five.", chunks[1].Text)
	assert.Equal(t, "Five. Six. Seven.", chunks[2].Text)
	for i, ch := range chunks {
		assert.Equal(t, i+1, ch.SequenceIndex)
		assert.Equal(t, "CHAPTER II", ch.SectionTitle)
	}
}

func TestSentenceChunker_NoPunctuation(t *testing.T) {
	c, err := NewSentenceChunker(5, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"no punctuation here"}, c.Split("  no punctuation here "))
	assert.Empty(t, c.Split("   "))
}

func TestNewSentenceChunker_RejectsOverlap(t *testing.T) {
	_, err := NewSentenceChunker(3, 3)
	require.ErrorIs(t, err, domain.ErrChunkingPrecondition)
}
