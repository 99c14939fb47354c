package assembler

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novelrag/internal/domain"
)

func item(title string, seq int, text string, score float64) domain.RetrievedItem {
	return domain.RetrievedItem{
		Chunk: domain.Chunk{SectionTitle: title, SequenceIndex: seq, Text: text},
		Score: score,
	}
}

func TestAssemble_PreservesOrderAndTruncates(t *testing.T) {
	items := []domain.RetrievedItem{
		item("CHAPTER VII. A Mad Tea-Party", 4, strings.Repeat("Have some wine. ", 30), 0.2),
		item("CHAPTER I. Down the Rabbit-Hole", 1, "Alice was beginning to get very tired.", 0.9),
		item("CHAPTER VI. Pig and Pepper", 12, strings.Repeat("é", 400), 0.5),
	}

	res, err := New(0).Assemble("What did the Hatter offer?", items, "  There was no wine.\n")
	require.NoError(t, err)

	assert.Equal(t, "What did the Hatter offer?", res.Query)
	assert.Equal(t, "There was no wine.", res.Answer)
	require.Len(t, res.Sources, 3)
	for i, src := range res.Sources {
		assert.LessOrEqual(t, utf8.RuneCountInString(src.Excerpt), DefaultExcerptLen)
		assert.Equal(t, items[i].Chunk.SectionTitle, src.SectionTitle)
		assert.Equal(t, items[i].Chunk.SequenceIndex, src.SequenceIndex)
	}
	assert.Equal(t, "Alice was beginning to get very tired.", res.Sources[1].Excerpt)
	assert.Equal(t, DefaultExcerptLen, utf8.RuneCountInString(res.Sources[2].Excerpt))
}

func TestAssemble_EmptyRetrieval(t *testing.T) {
	res, err := New(150).Assemble("anything", nil, "answer")
	require.ErrorIs(t, err, domain.ErrEmptyRetrieval)
	assert.Nil(t, res)
}

func TestAssemble_CustomExcerptLen(t *testing.T) {
	res, err := New(5).Assemble("q", []domain.RetrievedItem{item("T", 2, "  abcdefgh  ", 1)}, "a")
	require.NoError(t, err)
	assert.Equal(t, "abcde", res.Sources[0].Excerpt)
}

func TestContext(t *testing.T) {
	ctx := Context([]domain.RetrievedItem{item("A", 1, " first \n", 1), item("B", 1, "second", 1)})
	assert.Equal(t, "first\n\nsecond", ctx)
}
