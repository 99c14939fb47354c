package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"novelrag/internal/domain"
)

// SourceConfig locates the input document.
type SourceConfig struct {
	URL      string `yaml:"url"`
	TextPath string `yaml:"text_path"`
}

// SegmenterConfig holds the markers used to split the document into sections.
// An explicitly empty keywords list keeps every inline marker.
type SegmenterConfig struct {
	TOCStart      string   `yaml:"toc_start"`
	TOCEnd        string   `yaml:"toc_end"`
	HeaderWord    string   `yaml:"header_word"`
	EndMarker     string   `yaml:"end_marker"`
	MarkerLabel   string   `yaml:"marker_label"`
	Keywords      []string `yaml:"keywords"`
	StartSentinel string   `yaml:"start_sentinel"`
	EndSentinel   string   `yaml:"end_sentinel"`
	DocumentTitle string   `yaml:"document_title"`
}

// ChunkerConfig configures how sections are split into chunks.
type ChunkerConfig struct {
	Type              string `yaml:"type"`
	Size              int    `yaml:"size"`
	Overlap           int    `yaml:"overlap"`
	SentencesPerChunk int    `yaml:"sentences_per_chunk"`
	OverlapSentences  int    `yaml:"overlap_sentences"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// CacheConfig enables the Redis embedding cache.
type CacheConfig struct {
	Addr        string `yaml:"addr"`
	PasswordEnv string `yaml:"password_env"`
	DB          int    `yaml:"db"`
	KeyPrefix   string `yaml:"key_prefix"`
	TTLHours    int    `yaml:"ttl_hours"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type        string                `yaml:"type"`
	Concurrency int                   `yaml:"concurrency"`
	OpenAI      *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
	Cache       *CacheConfig          `yaml:"cache,omitempty"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type   string        `yaml:"type"`
	Memory *MemoryConfig `yaml:"memory,omitempty"`
	Qdrant *QdrantConfig `yaml:"qdrant,omitempty"`
}

// MemoryConfig sets where the in-memory index is snapshotted.
type MemoryConfig struct {
	Path string `yaml:"path"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// GeneratorConfig selects the answer generator.
type GeneratorConfig struct {
	Type         string        `yaml:"type"`
	MaxSentences int           `yaml:"max_sentences"`
	Ollama       *OllamaConfig `yaml:"ollama,omitempty"`
}

// OllamaConfig configures the Ollama completion endpoint.
type OllamaConfig struct {
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	TimeoutSecs int     `yaml:"timeout_secs"`
}

type RetrievalConfig struct {
	TopK       int `yaml:"top_k"`
	ExcerptLen int `yaml:"excerpt_len"`
}

type ServerConfig struct {
	Addr    string `yaml:"addr"`
	MaxTopK int    `yaml:"max_top_k"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Source      SourceConfig      `yaml:"source"`
	Segmenter   SegmenterConfig   `yaml:"segmenter"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Generator   GeneratorConfig   `yaml:"generator"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyConfigDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/novelrag/config.yaml.
// If neither exists, it writes defaults to ~/.config/novelrag/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := Default()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "novelrag", "config.yaml"), nil
}

// Default returns the configuration for the Project Gutenberg Alice edition,
// fully offline: TF-IDF embeddings, memory store and extractive answers.
func Default() *AppConfig {
	cfg := &AppConfig{
		Embedder:    EmbedderConfig{Type: "tfidf"},
		VectorStore: VectorStoreConfig{Type: "memory"},
		Generator:   GeneratorConfig{Type: "extractive"},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Source.URL == "" {
		cfg.Source.URL = "https://www.gutenberg.org/cache/epub/28885/pg28885.txt"
	}
	if cfg.Source.TextPath == "" {
		cfg.Source.TextPath = "alice_chapters.txt"
	}

	seg := &cfg.Segmenter
	setDefault(&seg.TOCStart, "CONTENTS")
	setDefault(&seg.TOCEnd, "LIST OF THE PLATES")
	setDefault(&seg.HeaderWord, "CHAPTER")
	setDefault(&seg.EndMarker, "End of Project Gutenberg")
	setDefault(&seg.MarkerLabel, "Sidenote")
	setDefault(&seg.StartSentinel, "*** START OF THE PROJECT GUTENBERG EBOOK ALICE'S ADVENTURES IN WONDERLAND ***")
	setDefault(&seg.EndSentinel, "*** END OF THE PROJECT GUTENBERG EBOOK ALICE'S ADVENTURES IN WONDERLAND ***")
	setDefault(&seg.DocumentTitle, "Alice's Adventures in Wonderland")
	if seg.Keywords == nil {
		seg.Keywords = []string{"chapter", "down the rabbit"}
	}

	setDefault(&cfg.Chunker.Type, "window")
	if cfg.Chunker.Size == 0 {
		cfg.Chunker.Size = 1000
		if cfg.Chunker.Overlap == 0 {
			cfg.Chunker.Overlap = 100
		}
	}
	if cfg.Chunker.SentencesPerChunk == 0 {
		cfg.Chunker.SentencesPerChunk = 5
		if cfg.Chunker.OverlapSentences == 0 {
			cfg.Chunker.OverlapSentences = 1
		}
	}

	setDefault(&cfg.Embedder.Type, "tfidf")
	if cfg.Embedder.Concurrency == 0 {
		cfg.Embedder.Concurrency = 4
	}
	if cfg.Embedder.Type == "openai" {
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		o := cfg.Embedder.OpenAI
		setDefault(&o.BaseURL, "http://localhost:11434/v1")
		setDefault(&o.Model, "nomic-embed-text")
		if o.TimeoutSecs == 0 {
			o.TimeoutSecs = 30
		}
	}
	if c := cfg.Embedder.Cache; c != nil {
		setDefault(&c.Addr, "localhost:6379")
		setDefault(&c.KeyPrefix, "novelrag:emb:")
		if c.TTLHours == 0 {
			c.TTLHours = 7 * 24
		}
	}

	setDefault(&cfg.VectorStore.Type, "memory")
	if cfg.VectorStore.Type == "memory" {
		if cfg.VectorStore.Memory == nil {
			cfg.VectorStore.Memory = &MemoryConfig{}
		}
		setDefault(&cfg.VectorStore.Memory.Path, "alice_index.json")
	}
	if cfg.VectorStore.Type == "qdrant" {
		if cfg.VectorStore.Qdrant == nil {
			cfg.VectorStore.Qdrant = &QdrantConfig{}
		}
		q := cfg.VectorStore.Qdrant
		setDefault(&q.URL, "http://localhost:6333")
		setDefault(&q.Collection, "novelrag")
		if q.TimeoutSecs == 0 {
			q.TimeoutSecs = 15
		}
	}

	setDefault(&cfg.Generator.Type, "extractive")
	if cfg.Generator.MaxSentences == 0 {
		cfg.Generator.MaxSentences = 3
	}
	if cfg.Generator.Type == "ollama" {
		if cfg.Generator.Ollama == nil {
			cfg.Generator.Ollama = &OllamaConfig{}
		}
		o := cfg.Generator.Ollama
		setDefault(&o.BaseURL, "http://localhost:11434")
		setDefault(&o.Model, "gemma3:1b")
		if o.TimeoutSecs == 0 {
			o.TimeoutSecs = 120
		}
	}

	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 3
	}
	if cfg.Retrieval.ExcerptLen == 0 {
		cfg.Retrieval.ExcerptLen = 150
	}
	setDefault(&cfg.Server.Addr, ":8080")
	if cfg.Server.MaxTopK == 0 {
		cfg.Server.MaxTopK = 20
	}
	setDefault(&cfg.Log.Level, "info")
	setDefault(&cfg.Log.Format, "text")
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

// Validate rejects configurations that cannot build a working pipeline.
func (c *AppConfig) Validate() error {
	var errs []error
	switch c.Chunker.Type {
	case "window":
		if c.Chunker.Size <= 0 || c.Chunker.Overlap < 0 || c.Chunker.Overlap >= c.Chunker.Size {
			errs = append(errs, fmt.Errorf("chunker size %d, overlap %d: %w", c.Chunker.Size, c.Chunker.Overlap, domain.ErrChunkingPrecondition))
		}
	case "sentence":
		if c.Chunker.SentencesPerChunk <= 0 || c.Chunker.OverlapSentences < 0 || c.Chunker.OverlapSentences >= c.Chunker.SentencesPerChunk {
			errs = append(errs, fmt.Errorf("chunker sentences %d, overlap %d: %w", c.Chunker.SentencesPerChunk, c.Chunker.OverlapSentences, domain.ErrChunkingPrecondition))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown chunker: %s", c.Chunker.Type))
	}
	if c.Embedder.Type != "tfidf" && c.Embedder.Type != "openai" {
		errs = append(errs, fmt.Errorf("unknown embedder: %s", c.Embedder.Type))
	}
	if c.VectorStore.Type != "memory" && c.VectorStore.Type != "qdrant" {
		errs = append(errs, fmt.Errorf("unknown vector store: %s", c.VectorStore.Type))
	}
	if c.Generator.Type != "extractive" && c.Generator.Type != "ollama" {
		errs = append(errs, fmt.Errorf("unknown generator: %s", c.Generator.Type))
	}
	if c.Retrieval.TopK < 1 {
		errs = append(errs, fmt.Errorf("retrieval top_k must be positive, got %d", c.Retrieval.TopK))
	}
	if c.Retrieval.ExcerptLen < 1 {
		errs = append(errs, fmt.Errorf("retrieval excerpt_len must be positive, got %d", c.Retrieval.ExcerptLen))
	}
	return errors.Join(errs...)
}
