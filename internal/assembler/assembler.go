package assembler

import (
	"fmt"
	"strings"

	"novelrag/internal/domain"
)

// DefaultExcerptLen is the display length of a source excerpt, in characters.
const DefaultExcerptLen = 150

// Assembler turns retrieved chunks and a generated answer into an AnswerResult.
type Assembler struct {
	excerptLen int
}

// New creates an assembler; excerptLen <= 0 selects DefaultExcerptLen.
func New(excerptLen int) *Assembler {
	if excerptLen <= 0 {
		excerptLen = DefaultExcerptLen
	}
	return &Assembler{excerptLen: excerptLen}
}

// Assemble keeps the ranking order of items and attaches provenance to each
// source. It fails with domain.ErrEmptyRetrieval when there is nothing to cite.
func (a *Assembler) Assemble(query string, items []domain.RetrievedItem, answer string) (*domain.AnswerResult, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("query %q: %w", query, domain.ErrEmptyRetrieval)
	}
	sources := make([]domain.Source, 0, len(items))
	for _, it := range items {
		sources = append(sources, domain.Source{
			Excerpt:       Excerpt(it.Chunk.Text, a.excerptLen),
			SectionTitle:  it.Chunk.SectionTitle,
			SequenceIndex: it.Chunk.SequenceIndex,
		})
	}
	return &domain.AnswerResult{
		Query:   query,
		Answer:  strings.TrimSpace(answer),
		Sources: sources,
	}, nil
}

// Context concatenates the retrieved chunk texts into the prompt context
// handed to the answer generator.
func Context(items []domain.RetrievedItem) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		parts = append(parts, strings.TrimSpace(it.Chunk.Text))
	}
	return strings.Join(parts, "\n\n")
}

// Excerpt trims text and cuts it to at most n runes.
func Excerpt(text string, n int) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n])
}
