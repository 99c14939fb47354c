package generator

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"
)

// Extractive answers offline by ranking sentences of the retrieved passages.
// Sentences are scored by normalized word frequency, and words shared with
// the question weigh QueryBoost times more.
type Extractive struct {
	MaxSentences int
	QueryBoost   float64

	tokenPattern    *regexp.Regexp
	sentencePattern *regexp.Regexp
	stopwords       map[string]struct{}
}

// NewExtractive creates a frequency-based sentence ranker.
func NewExtractive(maxSentences int) *Extractive {
	if maxSentences <= 0 {
		maxSentences = 3
	}
	return &Extractive{
		MaxSentences:    maxSentences,
		QueryBoost:      3,
		tokenPattern:    regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`),
		sentencePattern: regexp.MustCompile(`[^.!?]+[.!?]+["'’”]?`),
		stopwords:       defaultStopwords(),
	}
}

func (s *Extractive) Name() string { return "extractive" }

const noAnswer = "I don't know."

func (s *Extractive) Generate(ctx context.Context, query, passages string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	sentences := s.sentences(passages)
	if len(sentences) == 0 {
		return noAnswer, nil
	}

	freq := map[string]float64{}
	for _, sent := range sentences {
		for _, tok := range s.tokens(sent) {
			freq[tok]++
		}
	}
	maxF := 0.0
	for _, v := range freq {
		if v > maxF {
			maxF = v
		}
	}
	if maxF > 0 {
		for k, v := range freq {
			freq[k] = v / maxF
		}
	}
	qset := map[string]struct{}{}
	for _, tok := range s.tokens(query) {
		qset[tok] = struct{}{}
	}

	type pair struct {
		idx   int
		score float64
		hits  int
	}
	scores := make([]pair, len(sentences))
	for i, sent := range sentences {
		toks := s.tokens(sent)
		p := pair{idx: i}
		for _, tok := range toks {
			w := freq[tok]
			if _, ok := qset[tok]; ok {
				w *= s.QueryBoost
				p.hits++
			}
			p.score += w
		}
		// normalize by sentence length to avoid bias
		if l := float64(len(toks)); l > 0 {
			p.score /= math.Sqrt(l)
		}
		scores[i] = p
	}
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].hits != scores[j].hits {
			return scores[i].hits > scores[j].hits
		}
		return scores[i].score > scores[j].score
	})
	if len(qset) > 0 && scores[0].hits == 0 {
		return noAnswer, nil
	}

	n := s.MaxSentences
	if n > len(scores) {
		n = len(scores)
	}
	// keep original order among selected
	selected := make([]int, n)
	for i := 0; i < n; i++ {
		selected[i] = scores[i].idx
	}
	sort.Ints(selected)
	out := make([]string, 0, n)
	for _, idx := range selected {
		out = append(out, sentences[idx])
	}
	return strings.Join(out, " "), nil
}

func (s *Extractive) sentences(text string) []string {
	var out []string
	for _, m := range s.sentencePattern.FindAllString(text, -1) {
		if sent := strings.Join(strings.Fields(m), " "); sent != "" && len(s.tokens(sent)) > 0 {
			out = append(out, sent)
		}
	}
	if len(out) == 0 {
		if rest := strings.Join(strings.Fields(text), " "); len(s.tokens(rest)) > 0 {
			out = append(out, rest)
		}
	}
	return out
}

func (s *Extractive) tokens(text string) []string {
	raw := s.tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, t := range raw {
		if _, ok := s.stopwords[t]; ok {
			continue
		}
		out = append(out, t)
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
		"what", "who", "why", "how", "when", "where", "does", "did", "do", "i", "you",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
