package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novelrag/internal/assembler"
	"novelrag/internal/chunker"
	"novelrag/internal/domain"
	"novelrag/internal/embedding"
	"novelrag/internal/embedding/tfidf"
	"novelrag/internal/generator"
	"novelrag/internal/metrics"
	"novelrag/internal/segmenter"
	"novelrag/internal/vectorstore/memory"
)

const novel = `CONTENTS
I. Down the Rabbit-Hole 1
II. The Pool of Tears 9
III. A Caucus-Race 17
LIST OF THE PLATES

CHAPTER I
Alice saw a White Rabbit with pink eyes. The Rabbit took a watch out of its waistcoat-pocket.

CHAPTER II
Alice grew very tall and cried. Her tears made a great pool. A Mouse swam in the pool.

CHAPTER III
The Dodo proposed a Caucus-race. Everybody ran in circles. The Dodo gave prizes of comfits.

End of Project Gutenberg
`

type recordingGenerator struct {
	passages string
	err      error
}

func (g *recordingGenerator) Name() string { return "recording" }

func (g *recordingGenerator) Generate(_ context.Context, _, passages string) (string, error) {
	g.passages = passages
	return "  an answer  ", g.err
}

func newService(t *testing.T, store *memory.Storage, gen generator.Generator, m *metrics.Metrics) *RAGServiceImpl {
	t.Helper()
	ch, err := chunker.NewWindowChunker(200, 20)
	require.NoError(t, err)
	return NewRAGService(Deps{
		Segmenter: segmenter.NewDefault(segmenter.DefaultConfig(), nil),
		Chunker:   ch,
		Embedder:  tfidf.NewEmbedder(),
		Store:     store,
		Generator: gen,
		Assembler: assembler.New(40),
		Metrics:   m,
	}, Options{})
}

func TestService_BuildAndAsk(t *testing.T) {
	ctx := context.Background()
	m := metrics.NewMetrics(prometheus.NewRegistry())
	svc := newService(t, memory.NewStorage(""), generator.NewExtractive(1), m)

	stats, err := svc.Build(ctx, novel)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Sections)
	assert.Equal(t, 3, stats.Chunks)
	assert.Positive(t, stats.Dimension)
	assert.True(t, svc.Ready())

	ids := make([]string, 0, 3)
	for _, c := range svc.Chunks() {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"1:1", "2:1", "3:1"}, ids)

	res, err := svc.Ask(ctx, "Who gave prizes of comfits?", 1)
	require.NoError(t, err)
	assert.Equal(t, "Who gave prizes of comfits?", res.Query)
	assert.Equal(t, "The Dodo gave prizes of comfits.", res.Answer)
	require.Len(t, res.Sources, 1)
	assert.Equal(t, "CHAPTER III. A Caucus-Race", res.Sources[0].SectionTitle)
	assert.Equal(t, 1, res.Sources[0].SequenceIndex)
	assert.Equal(t, "CHAPTER III\nThe Dodo proposed a Caucus-r", res.Sources[0].Excerpt)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.ChunksCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.QueryRequests))
}

func TestService_AskUsesDefaultTopKAndStuffsContext(t *testing.T) {
	ctx := context.Background()
	gen := &recordingGenerator{}
	svc := newService(t, memory.NewStorage(""), gen, nil)
	_, err := svc.Build(ctx, novel)
	require.NoError(t, err)

	res, err := svc.Ask(ctx, "rabbit watch", 0)
	require.NoError(t, err)
	assert.Equal(t, "an answer", res.Answer)
	assert.Len(t, res.Sources, DefaultTopK)
	assert.Equal(t, "CHAPTER I. Down the Rabbit-Hole", res.Sources[0].SectionTitle)
	assert.Contains(t, gen.passages, "waistcoat-pocket.\n\nCHAPTER")
}

func TestService_GeneratorFailure(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("ollama down")
	svc := newService(t, memory.NewStorage(""), &recordingGenerator{err: boom}, nil)
	_, err := svc.Build(ctx, novel)
	require.NoError(t, err)

	_, err = svc.Ask(ctx, "rabbit", 1)
	require.ErrorIs(t, err, boom)
}

func TestService_LexicalFallback(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, memory.NewStorage(""), generator.NewExtractive(1), nil)
	_, err := svc.Build(ctx, novel)
	require.NoError(t, err)

	// "the" is a stopword for TF-IDF, so only lexical overlap can rank it.
	items, err := svc.Retrieve(ctx, "the", 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
	for _, it := range items {
		assert.Positive(t, it.Score)
	}

	_, err = svc.Ask(ctx, "xylophone", 2)
	require.ErrorIs(t, err, domain.ErrEmptyRetrieval)
}

func TestService_Errors(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, memory.NewStorage(""), generator.NewExtractive(1), nil)

	_, err := svc.Ask(ctx, "rabbit", 1)
	require.ErrorIs(t, err, domain.ErrIndexNotBuilt)

	_, err = svc.Ask(ctx, "   ", 1)
	require.ErrorIs(t, err, ErrEmptyQuery)

	_, err = svc.Build(ctx, "no markers at all")
	require.ErrorIs(t, err, domain.ErrSegmentation)

	require.ErrorIs(t, svc.Open(ctx), domain.ErrIndexNotBuilt)
}

func TestService_OpenReusesPersistedIndex(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "alice_index.json")

	built := newService(t, memory.NewStorage(path), generator.NewExtractive(1), nil)
	_, err := built.Build(ctx, novel)
	require.NoError(t, err)
	want, err := built.Ask(ctx, "pool of tears", 1)
	require.NoError(t, err)

	reopened := newService(t, memory.NewStorage(path), generator.NewExtractive(1), nil)
	require.NoError(t, reopened.Open(ctx))
	got, err := reopened.Ask(ctx, "pool of tears", 1)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, "CHAPTER II. The Pool of Tears", got.Sources[0].SectionTitle)
}

type emptyEmbedder struct{ embedding.Embedder }

func (emptyEmbedder) Prepare([]string) error { return nil }

func (emptyEmbedder) Embed(context.Context, string) ([]float64, error) { return nil, nil }

func TestService_SelfTestRejectsEmptyVectors(t *testing.T) {
	svc := newService(t, memory.NewStorage(""), generator.NewExtractive(1), nil)
	svc.embedder = emptyEmbedder{}
	_, err := svc.Build(context.Background(), novel)
	require.ErrorContains(t, err, "self-test")
}
