// Package fetch downloads the source document and normalizes it to plain text.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"novelrag/internal/retry"
)

// ErrTooLarge is returned when a response exceeds Config.MaxBytes.
var ErrTooLarge = errors.New("response body too large")

// Config configures the downloader.
type Config struct {
	Timeout   time.Duration
	UserAgent string
	MaxBytes  int64
	Retry     retry.Policy
}

type Fetcher struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
	policy    retry.Policy
	log       *slog.Logger
}

func New(cfg Config, log *slog.Logger) *Fetcher {
	if cfg.Timeout == 0 {
		cfg.Timeout = time.Minute
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "novelrag/1.0"
	}
	if cfg.MaxBytes == 0 {
		cfg.MaxBytes = 32 << 20
	}
	if cfg.Retry == (retry.Policy{}) {
		cfg.Retry = retry.DefaultPolicy()
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt32)}))
	}
	return &Fetcher{
		client:    &http.Client{Timeout: cfg.Timeout},
		userAgent: cfg.UserAgent,
		maxBytes:  cfg.MaxBytes,
		policy:    cfg.Retry,
		log:       log,
	}
}

// Fetch downloads url and returns its normalized text. HTML responses are
// reduced to their visible text.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	var body []byte
	var contentType string
	err := retry.Do(ctx, f.policy, func() error {
		b, ct, err := f.get(ctx, url)
		if err != nil {
			return err
		}
		body, contentType = b, ct
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}

	text := string(body)
	if isHTML(contentType, body) {
		text, err = HTMLText(bytes.NewReader(body))
		if err != nil {
			return "", err
		}
	}
	f.log.Info("fetched source", "url", url, "bytes", len(body), "content_type", contentType)
	return Normalize(text), nil
}

// Download fetches url and writes the normalized text to path.
func (f *Fetcher) Download(ctx context.Context, url, path string) (int, error) {
	text, err := f.Fetch(ctx, url)
	if err != nil {
		return 0, err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, err
		}
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return 0, fmt.Errorf("write %s: %w", path, err)
	}
	f.log.Info("saved source", "path", path, "chars", len([]rune(text)))
	return len(text), nil
}

func (f *Fetcher) get(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("User-Agent", f.userAgent)
	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
		return nil, "", &retry.RetryableError{Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, "", &retry.RetryableError{StatusCode: resp.StatusCode, Message: resp.Status}
	}
	if resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("unexpected status: %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, "", &retry.RetryableError{StatusCode: resp.StatusCode, Message: err.Error()}
	}
	if int64(len(body)) > f.maxBytes {
		return nil, "", fmt.Errorf("%w: more than %d bytes", ErrTooLarge, f.maxBytes)
	}
	return body, resp.Header.Get("Content-Type"), nil
}

func isHTML(contentType string, body []byte) bool {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		return mt == "text/html" || mt == "application/xhtml+xml"
	}
	head := strings.ToLower(strings.TrimSpace(string(body[:min(len(body), 512)])))
	return strings.HasPrefix(head, "<!doctype html") || strings.HasPrefix(head, "<html")
}

// Normalize strips a byte order mark, converts line endings to "\n" and
// applies Unicode NFC so marker searches see composed characters.
func Normalize(text string) string {
	text = strings.TrimPrefix(text, "\uFEFF")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return norm.NFC.String(text)
}
