package segmenter

import (
	"fmt"
	"regexp"
	"strings"

	"novelrag/internal/domain"
)

// SentinelStrategy takes the text between the start and end sentinels and
// splits it on chapter headers.
type SentinelStrategy struct {
	start    string
	end      string
	title    string
	headerRe *regexp.Regexp
}

// NewSentinelStrategy creates the last-resort strategy. title names the single
// section emitted when the body has no chapter headers.
func NewSentinelStrategy(start, end, headerWord, title string) *SentinelStrategy {
	return &SentinelStrategy{
		start:    start,
		end:      end,
		title:    title,
		headerRe: regexp.MustCompile(regexp.QuoteMeta(headerWord) + `[ \t]+` + romanPattern + `\.`),
	}
}

func (s *SentinelStrategy) Name() string { return "sentinel" }

func (s *SentinelStrategy) Extract(text string) []domain.Section {
	interior, ok := s.body(text)
	if !ok {
		return nil
	}
	parts := s.headerRe.Split(interior, -1)
	if len(parts) == 1 {
		return []domain.Section{{Title: s.title, Content: interior}}
	}
	sections := make([]domain.Section, 0, len(parts)-1)
	for i, p := range parts[1:] {
		sections = append(sections, domain.Section{
			Title:   fmt.Sprintf("Section %d", i+1),
			Content: strings.TrimSpace(p),
		})
	}
	return sections
}

// body returns the trimmed text strictly between the first start sentinel and
// the first end sentinel after it.
func (s *SentinelStrategy) body(text string) (string, bool) {
	if s.start == "" || s.end == "" {
		return "", false
	}
	i := strings.Index(text, s.start)
	if i < 0 {
		return "", false
	}
	rest := text[i+len(s.start):]
	j := strings.Index(rest, s.end)
	if j < 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:j]), true
}
