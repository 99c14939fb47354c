package chunker

import (
	"fmt"
	"unicode"

	"novelrag/internal/domain"
)

const (
	DefaultWindowSize = 1000
	DefaultOverlap    = 100
)

// WindowChunker splits text into fixed-size overlapping character windows,
// preferring to end a window on a paragraph, line or word boundary.
type WindowChunker struct {
	size    int
	overlap int
}

// NewWindowChunker validates the window geometry. overlap must be smaller than size.
func NewWindowChunker(size, overlap int) (*WindowChunker, error) {
	if size <= 0 || overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("size=%d overlap=%d: %w", size, overlap, domain.ErrChunkingPrecondition)
	}
	return &WindowChunker{size: size, overlap: overlap}, nil
}

// Chunk splits a section into chunks numbered from 1.
func (c *WindowChunker) Chunk(section domain.Section) ([]domain.Chunk, error) {
	return toChunks(section, c.Split(section.Content)), nil
}

// Split returns the windows for content. Window i starts at rune offset
// i*(size-overlap); a window may end early, but never before the next one starts.
func (c *WindowChunker) Split(content string) []string {
	runes := []rune(content)
	if len(runes) == 0 {
		return nil
	}
	step := c.size - c.overlap
	var windows []string
	for start := 0; ; start += step {
		if len(runes)-start <= c.size {
			windows = append(windows, string(runes[start:]))
			break
		}
		end := boundary(runes, start+step, start+c.size)
		windows = append(windows, string(runes[start:end]))
	}
	return windows
}

// boundary picks a cut in (lo, hi]: just after the last paragraph break,
// else the last newline, else the last whitespace, else hi.
func boundary(runes []rune, lo, hi int) int {
	space, line := -1, -1
	for i := hi - 1; i >= lo; i-- {
		r := runes[i]
		if r == '\n' {
			if i > lo && runes[i-1] == '\n' {
				return i + 1
			}
			if line < 0 {
				line = i + 1
			}
		} else if space < 0 && unicode.IsSpace(r) {
			space = i + 1
		}
	}
	switch {
	case line > 0:
		return line
	case space > 0:
		return space
	}
	return hi
}

func toChunks(section domain.Section, texts []string) []domain.Chunk {
	if len(texts) == 0 {
		return nil
	}
	chunks := make([]domain.Chunk, 0, len(texts))
	for i, t := range texts {
		chunks = append(chunks, domain.Chunk{
			SectionTitle:  section.Title,
			SequenceIndex: i + 1,
			Text:          t,
		})
	}
	return chunks
}
