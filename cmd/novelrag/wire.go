package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"novelrag/internal/chunker"
	"novelrag/internal/config"
	"novelrag/internal/domain"
	"novelrag/internal/embedding"
	"novelrag/internal/embedding/cache"
	"novelrag/internal/embedding/openai"
	"novelrag/internal/embedding/tfidf"
	"novelrag/internal/generator"
	"novelrag/internal/segmenter"
	"novelrag/internal/vectorstore"
	"novelrag/internal/vectorstore/memory"
	"novelrag/internal/vectorstore/qdrant"
)

// closers collects shutdown hooks of the wired components.
type closers []func()

func (c closers) close() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

func newSegmenter(cfg config.SegmenterConfig, log *slog.Logger) *segmenter.Segmenter {
	return segmenter.NewDefault(segmenterConfig(cfg), log)
}

func segmenterConfig(cfg config.SegmenterConfig) segmenter.Config {
	return segmenter.Config{
		TOCStart:      cfg.TOCStart,
		TOCEnd:        cfg.TOCEnd,
		HeaderWord:    cfg.HeaderWord,
		EndMarker:     cfg.EndMarker,
		MarkerLabel:   cfg.MarkerLabel,
		Keywords:      cfg.Keywords,
		StartSentinel: cfg.StartSentinel,
		EndSentinel:   cfg.EndSentinel,
		DocumentTitle: cfg.DocumentTitle,
	}
}

func newChunker(cfg config.ChunkerConfig) (domain.Chunker, error) {
	switch cfg.Type {
	case "window", "":
		return chunker.NewWindowChunker(cfg.Size, cfg.Overlap)
	case "sentence":
		return chunker.NewSentenceChunker(cfg.SentencesPerChunk, cfg.OverlapSentences)
	default:
		return nil, fmt.Errorf("unknown chunker: %s", cfg.Type)
	}
}

func newEmbedder(ctx context.Context, cfg config.EmbedderConfig, log *slog.Logger, cl *closers) (embedding.Embedder, error) {
	var emb embedding.Embedder
	switch cfg.Type {
	case "tfidf", "":
		// TF-IDF vectors depend on the corpus, so they are never cached.
		return tfidf.NewEmbedder(), nil
	case "openai":
		if cfg.OpenAI == nil {
			return nil, fmt.Errorf("openai embedder config missing")
		}
		client, err := openai.NewClient(openai.Config{
			BaseURL:   cfg.OpenAI.BaseURL,
			APIKeyEnv: cfg.OpenAI.APIKeyEnv,
			Model:     cfg.OpenAI.Model,
			Timeout:   time.Duration(cfg.OpenAI.TimeoutSecs) * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("openai embedder init failed: %w", err)
		}
		*cl = append(*cl, client.Close)
		emb = client
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Type)
	}

	if cfg.Cache == nil {
		return emb, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Cache.Addr,
		Password: os.Getenv(cfg.Cache.PasswordEnv),
		DB:       cfg.Cache.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Warn("embedding cache disabled", "addr", cfg.Cache.Addr, "error", err)
		_ = rdb.Close()
		return emb, nil
	}
	*cl = append(*cl, func() { _ = rdb.Close() })
	log.Info("embedding cache enabled", "addr", cfg.Cache.Addr)
	return cache.New(emb, rdb, cache.Config{
		KeyPrefix: cfg.Cache.KeyPrefix,
		TTL:       time.Duration(cfg.Cache.TTLHours) * time.Hour,
	}, log), nil
}

func newStore(cfg config.VectorStoreConfig) (vectorstore.Storage, error) {
	switch cfg.Type {
	case "memory", "":
		path := ""
		if cfg.Memory != nil {
			path = cfg.Memory.Path
		}
		return memory.NewStorage(path), nil
	case "qdrant":
		if cfg.Qdrant == nil {
			return nil, fmt.Errorf("qdrant config missing")
		}
		return qdrant.NewStorage(qdrant.Config{
			URL:        cfg.Qdrant.URL,
			APIKey:     os.Getenv(cfg.Qdrant.APIKeyEnv),
			Collection: cfg.Qdrant.Collection,
			Timeout:    time.Duration(cfg.Qdrant.TimeoutSecs) * time.Second,
		}), nil
	default:
		return nil, fmt.Errorf("unknown vector store: %s", cfg.Type)
	}
}

func newGenerator(cfg config.GeneratorConfig, cl *closers) (generator.Generator, error) {
	switch cfg.Type {
	case "extractive", "":
		return generator.NewExtractive(cfg.MaxSentences), nil
	case "ollama":
		if cfg.Ollama == nil {
			return nil, fmt.Errorf("ollama generator config missing")
		}
		g := generator.NewOllama(generator.OllamaConfig{
			BaseURL:     cfg.Ollama.BaseURL,
			Model:       cfg.Ollama.Model,
			Temperature: cfg.Ollama.Temperature,
			Timeout:     time.Duration(cfg.Ollama.TimeoutSecs) * time.Second,
		})
		*cl = append(*cl, g.Close)
		return g, nil
	default:
		return nil, fmt.Errorf("unknown generator: %s", cfg.Type)
	}
}
