package tfidf

import (
	"context"
	"errors"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync/atomic"
)

var (
	errNotPrepared = errors.New("tfidf embedder not prepared")
	wordRe         = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
)

// model is a fitted vocabulary. It is never mutated after Prepare builds it.
type model struct {
	index map[string]int
	idf   []float64
}

// Embedder implements a TF-IDF vectorizer over the chunk corpus.
// It needs no network and is the default when no embedding service is configured.
// Prepare may run again (a rebuild) while Embed is serving queries; callers see
// either the old or the new vocabulary, never a mix.
type Embedder struct {
	stopwords map[string]struct{}
	current   atomic.Pointer[model]
}

// NewEmbedder creates an unprepared TF-IDF embedder.
func NewEmbedder() *Embedder {
	return &Embedder{stopwords: defaultStopwords()}
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "tfidf" }

// Prepare fits the vocabulary and smoothed IDF weights on the chunk texts.
// Terms are indexed in sorted order, so the same corpus always gives the same
// vector layout and a reopened index only needs the stored chunk texts.
func (e *Embedder) Prepare(corpus []string) error {
	if len(corpus) == 0 {
		return errors.New("empty corpus for TF-IDF prepare")
	}
	df := make(map[string]int)
	for _, text := range corpus {
		for term := range e.termCounts(text) {
			df[term]++
		}
	}
	if len(df) == 0 {
		return errors.New("no tokens found in corpus")
	}
	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	m := &model{index: make(map[string]int, len(terms)), idf: make([]float64, len(terms))}
	n := float64(len(corpus))
	for i, term := range terms {
		m.index[term] = i
		m.idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}
	e.current.Store(m)
	return nil
}

// Dimension returns the vocabulary size, or 0 before Prepare.
func (e *Embedder) Dimension() int {
	if m := e.current.Load(); m != nil {
		return len(m.idf)
	}
	return 0
}

// Embed computes the L2-normalized TF-IDF vector for text using sublinear
// term frequency (1 + ln count). Text with no known terms yields the zero vector.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float64, error) {
	m := e.current.Load()
	if m == nil {
		return nil, errNotPrepared
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vec := make([]float64, len(m.idf))
	var sumSq float64
	for term, count := range e.termCounts(text) {
		idx, ok := m.index[term]
		if !ok {
			continue
		}
		w := (1 + math.Log(float64(count))) * m.idf[idx]
		vec[idx] = w
		sumSq += w * w
	}
	if sumSq == 0 {
		return vec, nil
	}
	l2 := math.Sqrt(sumSq)
	for i := range vec {
		vec[i] /= l2
	}
	return vec, nil
}

// termCounts lowercases text and counts its non-stopword terms.
func (e *Embedder) termCounts(text string) map[string]int {
	counts := make(map[string]int)
	for _, tok := range wordRe.FindAllString(strings.ToLower(text), -1) {
		if _, stop := e.stopwords[tok]; !stop {
			counts[tok]++
		}
	}
	return counts
}

func defaultStopwords() map[string]struct{} {
	words := strings.Fields(`
		a an the and or but if then else for to of in on at by with as is are was were be been being
		it its this that these those from up down over under again further than so such into about
		between through during before after above below out off own same too very can will just don
		should now she her he his said what who`)
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
