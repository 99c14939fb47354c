package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"novelrag/internal/api"
	"novelrag/internal/assembler"
	"novelrag/internal/config"
	"novelrag/internal/domain"
	"novelrag/internal/fetch"
	"novelrag/internal/logging"
	"novelrag/internal/metrics"
	"novelrag/internal/segmenter"
	"novelrag/internal/service"
	"novelrag/internal/tui"
)

type options struct {
	fetch   bool
	build   bool
	query   string
	serve   bool
	inspect bool
	topK    int
}

func (o options) any() bool {
	return o.fetch || o.build || o.query != "" || o.serve || o.inspect
}

func main() {
	_ = godotenv.Load()

	var cfgPath string
	var opts options
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ./config.yaml or ~/.config/novelrag/config.yaml if not provided)")
	flag.BoolVar(&opts.fetch, "fetch", false, "Download the source text to source.text_path")
	flag.BoolVar(&opts.build, "build", false, "Build the index from the downloaded text")
	flag.StringVar(&opts.query, "query", "", "Ask a single question and print the answer with sources")
	flag.BoolVar(&opts.serve, "serve", false, "Serve the HTTP query API")
	flag.BoolVar(&opts.inspect, "inspect", false, "Report segmentation markers and per-strategy sections of the downloaded text")
	flag.IntVar(&opts.topK, "k", 0, "Number of chunks to retrieve (default from config)")
	flag.Parse()

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}
	if opts.topK <= 0 {
		opts.topK = cfg.Retrieval.TopK
	}

	// the TUI owns the terminal, so interactive mode only logs warnings
	level := cfg.Log.Level
	if !opts.any() {
		level = "warn"
	}
	log, err := logging.New(os.Stderr, level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log config: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts, log, os.Stdout); err != nil {
		log.Error("fatal", "error", err)
		stop()
		os.Exit(1)
	}
}

type app struct {
	cfg     *config.AppConfig
	log     *slog.Logger
	out     io.Writer
	seg     *segmenter.Segmenter
	svc     *service.RAGServiceImpl
	reg     *prometheus.Registry
	closers closers
}

func run(ctx context.Context, cfg *config.AppConfig, opts options, log *slog.Logger, out io.Writer) error {
	a, err := newApp(ctx, cfg, log, out)
	if err != nil {
		return err
	}
	defer a.closers.close()

	if opts.fetch {
		if err := a.fetch(ctx); err != nil {
			return err
		}
	}
	if opts.inspect {
		if err := a.inspect(); err != nil {
			return err
		}
	}
	if opts.build {
		if err := a.build(ctx); err != nil {
			return err
		}
	}
	if opts.query != "" {
		if err := a.open(ctx); err != nil {
			if errors.Is(err, domain.ErrIndexNotBuilt) {
				return fmt.Errorf("%w: run -build first", err)
			}
			return err
		}
		res, err := a.svc.Ask(ctx, opts.query, opts.topK)
		if err != nil {
			return err
		}
		printResult(out, res)
	}
	if opts.serve {
		if err := a.ensureIndex(ctx); err != nil {
			return err
		}
		return a.serve(ctx)
	}
	if opts.any() {
		return nil
	}

	if err := a.ensureIndex(ctx); err != nil {
		return err
	}
	m := tui.New(a.svc, cfg.Segmenter.DocumentTitle, opts.topK)
	_, err = tea.NewProgram(m, tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}

func newApp(ctx context.Context, cfg *config.AppConfig, log *slog.Logger, out io.Writer) (*app, error) {
	a := &app{cfg: cfg, log: log, out: out, reg: prometheus.NewRegistry()}
	a.reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	ch, err := newChunker(cfg.Chunker)
	if err != nil {
		return nil, err
	}
	emb, err := newEmbedder(ctx, cfg.Embedder, log, &a.closers)
	if err != nil {
		a.closers.close()
		return nil, err
	}
	st, err := newStore(cfg.VectorStore)
	if err != nil {
		a.closers.close()
		return nil, err
	}
	gen, err := newGenerator(cfg.Generator, &a.closers)
	if err != nil {
		a.closers.close()
		return nil, err
	}

	a.seg = newSegmenter(cfg.Segmenter, log)
	a.svc = service.NewRAGService(service.Deps{
		Segmenter: a.seg,
		Chunker:   ch,
		Embedder:  emb,
		Store:     st,
		Generator: gen,
		Assembler: assembler.New(cfg.Retrieval.ExcerptLen),
		Metrics:   metrics.NewMetrics(a.reg),
		Log:       log,
	}, service.Options{TopK: cfg.Retrieval.TopK, EmbedConcurrency: cfg.Embedder.Concurrency})
	log.Debug("components wired",
		"chunker", cfg.Chunker.Type,
		"embedder", emb.Name(),
		"vector_store", cfg.VectorStore.Type,
		"generator", gen.Name(),
	)
	return a, nil
}

func (a *app) fetch(ctx context.Context) error {
	fmt.Fprintf(a.out, "Fetching %s...\n", a.cfg.Source.URL)
	f := fetch.New(fetch.Config{}, a.log)
	if _, err := f.Download(ctx, a.cfg.Source.URL, a.cfg.Source.TextPath); err != nil {
		return err
	}
	text, err := a.readText()
	if err != nil {
		return err
	}
	sections, err := a.seg.Segment(text)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Saved to %s, extracted %d chapters\n", a.cfg.Source.TextPath, len(sections))
	return nil
}

func (a *app) readText() (string, error) {
	data, err := os.ReadFile(a.cfg.Source.TextPath)
	if err != nil {
		return "", fmt.Errorf("read source text: %w", err)
	}
	return string(data), nil
}

func (a *app) build(ctx context.Context) error {
	text, err := a.readText()
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Building index...")
	stats, err := a.svc.Build(ctx, text)
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}
	fmt.Fprintf(a.out, "Indexed %d chunks from %d sections (dimension %d) in %s\n",
		stats.Chunks, stats.Sections, stats.Dimension, stats.Duration.Round(time.Millisecond))
	return nil
}

func (a *app) open(ctx context.Context) error {
	if a.svc.Ready() {
		return nil
	}
	return a.svc.Open(ctx)
}

// ensureIndex fetches the text and builds the index only when they are missing.
func (a *app) ensureIndex(ctx context.Context) error {
	err := a.open(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrIndexNotBuilt) {
		return err
	}
	if _, statErr := os.Stat(a.cfg.Source.TextPath); errors.Is(statErr, os.ErrNotExist) {
		if err := a.fetch(ctx); err != nil {
			return err
		}
	}
	return a.build(ctx)
}

func (a *app) inspect() error {
	text, err := a.readText()
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Text length: %d characters\n\nMarkers:\n", len([]rune(text)))
	for _, r := range segmenter.Probe(text, segmenterConfig(a.cfg.Segmenter).ProbeMarkers()) {
		if r.Found {
			fmt.Fprintf(a.out, "  %-40q found at %d\n", r.Marker, r.Offset)
		} else {
			fmt.Fprintf(a.out, "  %-40q not found\n", r.Marker)
		}
	}
	fmt.Fprintln(a.out, "\nStrategies:")
	for _, r := range a.seg.Explain(text) {
		fmt.Fprintf(a.out, "  %s: %d sections\n", r.Strategy, len(r.Sections))
		for _, title := range r.Sections {
			fmt.Fprintf(a.out, "    %s\n", title)
		}
	}
	return nil
}

func (a *app) serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           api.NewServer(a.svc, a.reg, a.log, api.Config{MaxTopK: a.cfg.Server.MaxTopK}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		a.log.Info("listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	a.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func printResult(w io.Writer, res *domain.AnswerResult) {
	fmt.Fprintf(w, "\nAnswer: %s\n\nSources:\n", res.Answer)
	for i, src := range res.Sources {
		fmt.Fprintf(w, "\nSource %d:\n%s\n", i+1, tui.FormatSource(src, src.Excerpt))
	}
}
