package segmenter

import (
	"fmt"
	"regexp"
	"strings"

	"novelrag/internal/domain"
)

// TOCStrategy uses a table of contents to find chapter titles and then
// locates each chapter header in the body.
type TOCStrategy struct {
	headerWord string
	endMarkers []string
	blockRe    *regexp.Regexp
	entryRe    *regexp.Regexp
	anyHeadRe  *regexp.Regexp
}

// NewTOCStrategy creates a strategy for a contents block delimited by start and end.
// The last chapter stops at the first of endMarkers found after it.
func NewTOCStrategy(start, end, headerWord string, endMarkers ...string) *TOCStrategy {
	return &TOCStrategy{
		headerWord: headerWord,
		endMarkers: endMarkers,
		blockRe:    regexp.MustCompile(`(?s)` + regexp.QuoteMeta(start) + `\s+(.+?)` + regexp.QuoteMeta(end)),
		entryRe:    regexp.MustCompile(`(?m)^[ \t]*(` + romanPattern + `)\.[ \t]+(.+?)[ \t]+(\d+)[ \t]*$`),
		anyHeadRe:  headerRegexp(headerWord, romanPattern),
	}
}

func (s *TOCStrategy) Name() string { return "toc" }

func (s *TOCStrategy) Extract(text string) []domain.Section {
	block := s.blockRe.FindStringSubmatchIndex(text)
	if block == nil {
		return nil
	}
	toc := text[block[2]:block[3]]
	// Body headers are searched after the contents block, each one after the previous match.
	cursor := block[1]
	seen := make(map[string]struct{})
	var sections []domain.Section
	for _, entry := range s.entryRe.FindAllStringSubmatch(toc, -1) {
		num, title := entry[1], strings.TrimSpace(entry[2])
		if _, dup := seen[num]; dup {
			continue
		}
		seen[num] = struct{}{}
		loc := headerRegexp(s.headerWord, regexp.QuoteMeta(num)).FindStringIndex(text[cursor:])
		if loc == nil {
			continue
		}
		start, bodyStart := cursor+loc[0], cursor+loc[1]
		end := s.sectionEnd(text, bodyStart)
		sections = append(sections, domain.Section{
			Title:   fmt.Sprintf("%s %s. %s", s.headerWord, num, title),
			Content: strings.TrimSpace(text[start:end]),
		})
		cursor = bodyStart
	}
	return sections
}

// sectionEnd returns the offset of the next chapter header or end marker after from.
func (s *TOCStrategy) sectionEnd(text string, from int) int {
	end := from + firstMarker(text[from:], s.endMarkers)
	if loc := s.anyHeadRe.FindStringIndex(text[from:]); loc != nil && from+loc[0] < end {
		end = from + loc[0]
	}
	return end
}

func headerRegexp(word, numeral string) *regexp.Regexp {
	return regexp.MustCompile(`\b` + regexp.QuoteMeta(word) + `[ \t]+` + numeral + `\b`)
}
