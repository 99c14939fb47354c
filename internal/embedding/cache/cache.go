// Package cache provides a Redis-backed embedding cache.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"novelrag/internal/embedding"
)

// Config configures the cache behavior.
type Config struct {
	KeyPrefix string
	TTL       time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{KeyPrefix: "novelrag:emb:", TTL: 7 * 24 * time.Hour}
}

// Embedder wraps another Embedder and stores its vectors in Redis keyed by
// model name and text hash. Cache failures are logged and fall through to
// the wrapped embedder.
type Embedder struct {
	next   embedding.Embedder
	client redis.UniversalClient
	cfg    Config
	log    *slog.Logger
	dim    atomic.Int64
}

// New wraps next with a Redis cache.
func New(next embedding.Embedder, client redis.UniversalClient, cfg Config, log *slog.Logger) *Embedder {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultConfig().KeyPrefix
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt32)}))
	}
	return &Embedder{next: next, client: client, cfg: cfg, log: log}
}

func (e *Embedder) Name() string { return e.next.Name() }

func (e *Embedder) Prepare(corpus []string) error { return e.next.Prepare(corpus) }

// Dimension falls back to the length of the last vector served, since a
// remote embedder only learns its dimension on a cache miss.
func (e *Embedder) Dimension() int {
	if d := e.next.Dimension(); d > 0 {
		return d
	}
	return int(e.dim.Load())
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float64, error) {
	key := e.key(text)
	raw, err := e.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var vec []float64
		if jerr := json.Unmarshal(raw, &vec); jerr == nil && len(vec) > 0 {
			e.dim.Store(int64(len(vec)))
			return vec, nil
		}
		e.log.Warn("discarding invalid cached embedding", "key", key)
	case !errors.Is(err, redis.Nil):
		e.log.Warn("embedding cache get failed", "error", err)
	}

	vec, err := e.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.dim.Store(int64(len(vec)))
	if data, jerr := json.Marshal(vec); jerr == nil {
		if serr := e.client.Set(ctx, key, data, e.cfg.TTL).Err(); serr != nil {
			e.log.Warn("embedding cache set failed", "error", serr)
		}
	}
	return vec, nil
}

func (e *Embedder) key(text string) string {
	h := sha256.Sum256([]byte(text))
	return e.cfg.KeyPrefix + e.next.Name() + ":" + hex.EncodeToString(h[:])
}
