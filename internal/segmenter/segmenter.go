package segmenter

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"

	"novelrag/internal/domain"
)

// Strategy extracts sections from raw text. An empty result means the
// strategy does not apply and the next one should be tried.
type Strategy interface {
	Name() string
	Extract(text string) []domain.Section
}

// Config holds the markers recognised by the default strategies.
type Config struct {
	TOCStart      string
	TOCEnd        string
	HeaderWord    string
	EndMarker     string
	MarkerLabel   string
	Keywords      []string
	StartSentinel string
	EndSentinel   string
	DocumentTitle string
}

// DefaultConfig matches the Project Gutenberg edition of Alice's Adventures in Wonderland.
func DefaultConfig() Config {
	return Config{
		TOCStart:      "CONTENTS",
		TOCEnd:        "LIST OF THE PLATES",
		HeaderWord:    "CHAPTER",
		EndMarker:     "End of Project Gutenberg",
		MarkerLabel:   "Sidenote",
		Keywords:      []string{"chapter", "down the rabbit"},
		StartSentinel: "*** START OF THE PROJECT GUTENBERG EBOOK ALICE'S ADVENTURES IN WONDERLAND ***",
		EndSentinel:   "*** END OF THE PROJECT GUTENBERG EBOOK ALICE'S ADVENTURES IN WONDERLAND ***",
		DocumentTitle: "Alice's Adventures in Wonderland",
	}
}

// Segmenter tries its strategies in order and returns the first non-empty result.
type Segmenter struct {
	strategies []Strategy
	log        *slog.Logger
}

// New creates a segmenter over an explicit strategy list.
func New(log *slog.Logger, strategies ...Strategy) *Segmenter {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt32)}))
	}
	return &Segmenter{strategies: strategies, log: log}
}

// NewDefault creates the table-of-contents, inline-marker, sentinel chain.
func NewDefault(cfg Config, log *slog.Logger) *Segmenter {
	return New(log,
		NewTOCStrategy(cfg.TOCStart, cfg.TOCEnd, cfg.HeaderWord, cfg.EndMarker, cfg.EndSentinel),
		NewInlineMarkerStrategy(cfg.MarkerLabel, cfg.Keywords, cfg.EndMarker, cfg.EndSentinel),
		NewSentinelStrategy(cfg.StartSentinel, cfg.EndSentinel, cfg.HeaderWord, cfg.DocumentTitle),
	)
}

// Segment splits text into sections. It fails with domain.ErrSegmentation
// when every strategy comes back empty.
func (s *Segmenter) Segment(text string) ([]domain.Section, error) {
	text = normalizeNewlines(text)
	for _, st := range s.strategies {
		sections := st.Extract(text)
		if len(sections) > 0 {
			s.log.Info("document segmented", "strategy", st.Name(), "sections", len(sections))
			return sections, nil
		}
		s.log.Debug("segmentation strategy yielded nothing", "strategy", st.Name())
	}
	return nil, fmt.Errorf("%d strategies tried: %w", len(s.strategies), domain.ErrSegmentation)
}

var newlineReplacer = strings.NewReplacer("\r\n", "\n", "\r", "\n")

func normalizeNewlines(text string) string {
	return newlineReplacer.Replace(text)
}

// firstMarker returns the offset of the earliest non-empty marker in text,
// or len(text) when none occurs.
func firstMarker(text string, markers []string) int {
	end := len(text)
	for _, m := range markers {
		if m == "" {
			continue
		}
		if i := strings.Index(text[:end], m); i >= 0 {
			end = i
		}
	}
	return end
}

// romanPattern matches an upper-case roman numeral.
const romanPattern = `[IVXLCDM]+`
