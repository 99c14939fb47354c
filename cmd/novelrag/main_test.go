package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novelrag/internal/config"
	"novelrag/internal/domain"
)

const book = `CONTENTS
I. Down the Rabbit-Hole 1
II. The Pool of Tears 9
LIST OF THE PLATES

CHAPTER I
The White Rabbit took a watch out of its waistcoat-pocket and hurried on.

CHAPTER II
Alice cried so much that her tears made a pool around her.

End of Project Gutenberg
license text`

func newTestConfig(t *testing.T) (*config.AppConfig, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(book))
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	cfg := config.Default()
	cfg.Source.URL = srv.URL
	cfg.Source.TextPath = filepath.Join(dir, "book.txt")
	cfg.VectorStore.Memory.Path = filepath.Join(dir, "index.json")
	require.NoError(t, cfg.Validate())
	return cfg, &calls
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt32)}))
}

func TestRun_QueryBeforeBuild(t *testing.T) {
	cfg, calls := newTestConfig(t)
	var out bytes.Buffer
	err := run(context.Background(), cfg, options{query: "rabbit watch", topK: 3}, discard(), &out)
	require.ErrorIs(t, err, domain.ErrIndexNotBuilt)
	assert.Contains(t, err.Error(), "run -build first")
	assert.Zero(t, calls.Load())
}

func TestRun_FetchBuildThenQuery(t *testing.T) {
	cfg, calls := newTestConfig(t)
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, run(ctx, cfg, options{fetch: true, build: true, topK: 3}, discard(), &out))
	assert.Contains(t, out.String(), "extracted 2 chapters")
	assert.Contains(t, out.String(), "from 2 sections")
	assert.FileExists(t, cfg.VectorStore.Memory.Path)

	// a fresh process reopens the snapshot instead of rebuilding
	out.Reset()
	require.NoError(t, run(ctx, cfg, options{query: "What did the rabbit take out of the waistcoat?", topK: 1}, discard(), &out))
	assert.Contains(t, out.String(), "Answer: ")
	assert.Contains(t, out.String(), "The White Rabbit took a watch")
	assert.Contains(t, out.String(), "Source 1:\nChapter: CHAPTER I. Down the Rabbit-Hole\nStanza 1")
	assert.NotContains(t, out.String(), "Building index")
	assert.Equal(t, int32(1), calls.Load())
}

func TestEnsureIndex_FetchesAndBuildsOnlyWhenMissing(t *testing.T) {
	cfg, calls := newTestConfig(t)
	ctx := context.Background()

	var out bytes.Buffer
	a, err := newApp(ctx, cfg, discard(), &out)
	require.NoError(t, err)
	require.NoError(t, a.ensureIndex(ctx))
	assert.FileExists(t, cfg.Source.TextPath)
	assert.FileExists(t, cfg.VectorStore.Memory.Path)
	assert.Equal(t, int32(1), calls.Load())
	assert.True(t, a.svc.Ready())

	// text present, index missing: build without downloading again
	require.NoError(t, os.Remove(cfg.VectorStore.Memory.Path))
	b, err := newApp(ctx, cfg, discard(), &out)
	require.NoError(t, err)
	out.Reset()
	require.NoError(t, b.ensureIndex(ctx))
	assert.Equal(t, int32(1), calls.Load())
	assert.Contains(t, out.String(), "Building index")

	// both present: nothing to do
	c, err := newApp(ctx, cfg, discard(), &out)
	require.NoError(t, err)
	out.Reset()
	require.NoError(t, c.ensureIndex(ctx))
	assert.Empty(t, out.String())
	assert.Equal(t, int32(1), calls.Load())
}

func TestInspect_ReportsMarkersAndStrategies(t *testing.T) {
	cfg, _ := newTestConfig(t)
	require.NoError(t, os.WriteFile(cfg.Source.TextPath, []byte(book), 0o644))

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), cfg, options{inspect: true, topK: 3}, discard(), &out))
	assert.Contains(t, out.String(), `"CONTENTS"`)
	assert.Contains(t, out.String(), "toc: 2 sections")
	assert.Contains(t, out.String(), "CHAPTER II. The Pool of Tears")
}
