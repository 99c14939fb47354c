package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"novelrag/internal/assembler"
	"novelrag/internal/domain"
	"novelrag/internal/embedding"
	"novelrag/internal/generator"
	"novelrag/internal/metrics"
	"novelrag/internal/vectorstore"
)

// DefaultTopK is the number of chunks retrieved per question.
const DefaultTopK = 3

// ErrEmptyQuery is returned for a blank question.
var ErrEmptyQuery = errors.New("query is empty")

// Deps are the collaborators of the service. Metrics and Log may be nil.
type Deps struct {
	Segmenter domain.Segmenter
	Chunker   domain.Chunker
	Embedder  embedding.Embedder
	Store     vectorstore.Storage
	Generator generator.Generator
	Assembler *assembler.Assembler
	Metrics   *metrics.Metrics
	Log       *slog.Logger
}

// Options tune retrieval and indexing.
type Options struct {
	TopK int
	// EmbedConcurrency bounds parallel embedding calls during a build.
	EmbedConcurrency int
}

type RAGServiceImpl struct {
	segmenter domain.Segmenter
	chunker   domain.Chunker
	embedder  embedding.Embedder
	store     vectorstore.Storage
	generator generator.Generator
	assembler *assembler.Assembler
	metrics   *metrics.Metrics
	log       *slog.Logger
	opts      Options

	mu     sync.RWMutex
	chunks []domain.Chunk
}

func NewRAGService(deps Deps, opts Options) *RAGServiceImpl {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.EmbedConcurrency <= 0 {
		opts.EmbedConcurrency = 4
	}
	if deps.Assembler == nil {
		deps.Assembler = assembler.New(0)
	}
	if deps.Log == nil {
		deps.Log = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt32)}))
	}
	return &RAGServiceImpl{
		segmenter: deps.Segmenter,
		chunker:   deps.Chunker,
		embedder:  deps.Embedder,
		store:     deps.Store,
		generator: deps.Generator,
		assembler: deps.Assembler,
		metrics:   deps.Metrics,
		log:       deps.Log,
		opts:      opts,
	}
}

// BuildStats summarizes an index build.
type BuildStats struct {
	Sections  int
	Chunks    int
	Dimension int
	Duration  time.Duration
}

// Build segments text, chunks every section, embeds the chunks and replaces
// the contents of the vector store.
func (s *RAGServiceImpl) Build(ctx context.Context, text string) (BuildStats, error) {
	start := time.Now()
	sections, err := s.segmenter.Segment(text)
	if err != nil {
		s.metrics.Error("segment")
		return BuildStats{}, err
	}

	var chunks []domain.Chunk
	for i, sec := range sections {
		cs, err := s.chunker.Chunk(sec)
		if err != nil {
			s.metrics.Error("chunk")
			return BuildStats{}, fmt.Errorf("chunk %q: %w", sec.Title, err)
		}
		for _, c := range cs {
			c.ID = fmt.Sprintf("%d:%d", i+1, c.SequenceIndex)
			chunks = append(chunks, c)
		}
	}
	if len(chunks) == 0 {
		return BuildStats{}, fmt.Errorf("%d sections produced no chunks", len(sections))
	}
	s.log.Info("document split", "sections", len(sections), "chunks", len(chunks))

	if err := s.embedder.Prepare(texts(chunks)); err != nil {
		s.metrics.Error("embed")
		return BuildStats{}, fmt.Errorf("prepare embedder: %w", err)
	}
	if err := s.SelfTest(ctx); err != nil {
		return BuildStats{}, err
	}
	vectors, err := s.embedAll(ctx, chunks)
	if err != nil {
		s.metrics.Error("embed")
		return BuildStats{}, err
	}
	dim := len(vectors[0])

	if err := s.store.Clear(ctx); err != nil {
		s.metrics.Error("store")
		return BuildStats{}, fmt.Errorf("clear store: %w", err)
	}
	if err := s.store.Init(ctx, dim); err != nil {
		s.metrics.Error("store")
		return BuildStats{}, fmt.Errorf("init store: %w", err)
	}
	if err := s.store.Upsert(ctx, chunks, vectors); err != nil {
		s.metrics.Error("store")
		return BuildStats{}, fmt.Errorf("upsert: %w", err)
	}
	if p, ok := s.store.(vectorstore.Persistent); ok {
		if err := p.Save(); err != nil {
			s.metrics.Error("store")
			return BuildStats{}, fmt.Errorf("save index: %w", err)
		}
	}

	s.mu.Lock()
	s.chunks = chunks
	s.mu.Unlock()

	stats := BuildStats{Sections: len(sections), Chunks: len(chunks), Dimension: dim, Duration: time.Since(start)}
	s.metrics.ObserveBuild(stats.Sections, stats.Chunks, stats.Duration.Seconds())
	s.log.Info("index built", "embedder", s.embedder.Name(), "dimension", dim, "duration", stats.Duration)
	return stats, nil
}

// SelfTest embeds a probe string and fails when the embedder returns nothing.
func (s *RAGServiceImpl) SelfTest(ctx context.Context) error {
	vec, err := s.embedder.Embed(ctx, "test")
	if err != nil {
		return fmt.Errorf("embedding self-test: %w", err)
	}
	if len(vec) == 0 {
		return errors.New("embedding self-test: empty vector")
	}
	return nil
}

func (s *RAGServiceImpl) embedAll(ctx context.Context, chunks []domain.Chunk) ([][]float64, error) {
	vectors := make([][]float64, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.EmbedConcurrency)
	for i := range chunks {
		i := i
		g.Go(func() error {
			t := time.Now()
			vec, err := s.embedder.Embed(gctx, chunks[i].Text)
			if err != nil {
				return fmt.Errorf("embed chunk %s: %w", chunks[i].ID, err)
			}
			s.metrics.ObserveEmbedding(time.Since(t).Seconds())
			vectors[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// Open reuses an index that already exists in the store, so a restart does
// not rebuild. It returns domain.ErrIndexNotBuilt when the store is empty.
func (s *RAGServiceImpl) Open(ctx context.Context) error {
	if p, ok := s.store.(vectorstore.Persistent); ok {
		if _, err := p.Load(); err != nil {
			return fmt.Errorf("load index: %w", err)
		}
	}
	chunks, err := s.store.Chunks(ctx)
	if err != nil {
		return fmt.Errorf("list chunks: %w", err)
	}
	if len(chunks) == 0 {
		return domain.ErrIndexNotBuilt
	}
	if err := s.embedder.Prepare(texts(chunks)); err != nil {
		return fmt.Errorf("prepare embedder: %w", err)
	}
	s.mu.Lock()
	s.chunks = chunks
	s.mu.Unlock()
	s.log.Info("index opened", "chunks", len(chunks), "embedder", s.embedder.Name())
	return nil
}

// Ready reports whether an index has been built or opened.
func (s *RAGServiceImpl) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks) > 0
}

// Chunks returns the indexed chunks in document order.
func (s *RAGServiceImpl) Chunks() []domain.Chunk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Chunk(nil), s.chunks...)
}

// Ask retrieves the topK chunks for query, generates an answer from them and
// attaches their provenance. topK <= 0 uses the configured default.
func (s *RAGServiceImpl) Ask(ctx context.Context, query string, topK int) (*domain.AnswerResult, error) {
	start := time.Now()
	items, err := s.Retrieve(ctx, query, topK)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return s.assembler.Assemble(query, nil, "")
	}

	t := time.Now()
	answer, err := s.generator.Generate(ctx, query, assembler.Context(items))
	if err != nil {
		s.metrics.Error("generate")
		return nil, fmt.Errorf("generate answer: %w", err)
	}
	s.metrics.ObserveGeneration(time.Since(t).Seconds())

	res, err := s.assembler.Assemble(query, items, answer)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveQuery(len(items), time.Since(start).Seconds())
	s.log.Debug("question answered", "query", query, "sources", len(res.Sources), "duration", time.Since(start))
	return res, nil
}

// Retrieve returns the chunks most similar to query. When the query has no
// known terms or every vector score is zero it ranks chunks by lexical
// overlap instead, keeping only chunks that share a word with the query.
func (s *RAGServiceImpl) Retrieve(ctx context.Context, query string, topK int) ([]domain.RetrievedItem, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if !s.Ready() {
		return nil, domain.ErrIndexNotBuilt
	}
	if topK <= 0 {
		topK = s.opts.TopK
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		s.metrics.Error("embed")
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if isZero(vec) {
		s.metrics.LexicalFallback()
		return s.lexicalSearch(query, topK), nil
	}
	res, err := s.store.Search(ctx, vec, topK)
	if err != nil {
		s.metrics.Error("retrieve")
		return nil, fmt.Errorf("search: %w", err)
	}
	allZero := true
	for _, r := range res {
		if r.Score > 1e-9 {
			allZero = false
			break
		}
	}
	if allZero {
		s.metrics.LexicalFallback()
		return s.lexicalSearch(query, topK), nil
	}
	return res, nil
}

func isZero(vec []float64) bool {
	for _, v := range vec {
		if v != 0 {
			return false
		}
	}
	return true
}

var unicodeWordRe = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)

func (s *RAGServiceImpl) lexicalSearch(query string, topK int) []domain.RetrievedItem {
	chunks := s.Chunks()
	qset := toTokenSet(query)
	type pair struct {
		idx   int
		score float64
	}
	scores := make([]pair, 0, len(chunks))
	for i, ch := range chunks {
		if sc := overlapOchiai(qset, ch.Text); sc > 0 {
			scores = append(scores, pair{i, sc})
		}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
	if topK > len(scores) {
		topK = len(scores)
	}
	out := make([]domain.RetrievedItem, 0, topK)
	for _, p := range scores[:topK] {
		out = append(out, domain.RetrievedItem{Chunk: chunks[p.idx], Score: p.score})
	}
	return out
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

// overlapOchiai is |A∩B| / sqrt(|A||B|) over the distinct words of query and text.
func overlapOchiai(qset map[string]struct{}, text string) float64 {
	stoks := unicodeWordRe.FindAllString(strings.ToLower(text), -1)
	seen := make(map[string]struct{}, len(stoks))
	inter := 0
	for _, t := range stoks {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := qset[t]; ok {
			inter++
		}
	}
	if len(qset) == 0 || len(seen) == 0 {
		return 0
	}
	return float64(inter) / math.Sqrt(float64(len(qset))*float64(len(seen)))
}

func texts(chunks []domain.Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Text
	}
	return out
}
