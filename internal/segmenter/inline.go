package segmenter

import (
	"regexp"
	"strings"

	"novelrag/internal/domain"
)

// InlineMarkerStrategy treats bracketed annotations such as
// "[Sidenote: _Down the Rabbit-Hole_]" as section boundaries.
type InlineMarkerStrategy struct {
	endMarkers []string
	keywords   []string
	markerRe   *regexp.Regexp
}

// NewInlineMarkerStrategy creates a strategy for markers with the given label.
// Only sections whose title contains one of keywords are kept; an empty
// keyword list keeps all of them. The last section stops at the first of endMarkers.
func NewInlineMarkerStrategy(label string, keywords []string, endMarkers ...string) *InlineMarkerStrategy {
	lower := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			lower = append(lower, k)
		}
	}
	return &InlineMarkerStrategy{
		endMarkers: endMarkers,
		keywords:   lower,
		markerRe:   regexp.MustCompile(`(?s)\[` + regexp.QuoteMeta(label) + `:[ \t]*_(.*?)_\]`),
	}
}

func (s *InlineMarkerStrategy) Name() string { return "inline-marker" }

func (s *InlineMarkerStrategy) Extract(text string) []domain.Section {
	marks := s.markerRe.FindAllStringSubmatchIndex(text, -1)
	var sections []domain.Section
	for i, m := range marks {
		title := strings.TrimSpace(text[m[2]:m[3]])
		if !s.accepts(title) {
			continue
		}
		end := len(text)
		if i+1 < len(marks) {
			end = marks[i+1][0]
		}
		body := text[m[1]:end]
		body = body[:firstMarker(body, s.endMarkers)]
		sections = append(sections, domain.Section{Title: title, Content: strings.TrimSpace(body)})
	}
	return sections
}

func (s *InlineMarkerStrategy) accepts(title string) bool {
	if len(s.keywords) == 0 {
		return true
	}
	lt := strings.ToLower(title)
	for _, k := range s.keywords {
		if strings.Contains(lt, k) {
			return true
		}
	}
	return false
}
