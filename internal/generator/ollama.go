package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"novelrag/internal/retry"
)

// OllamaConfig configures the Ollama completion client.
type OllamaConfig struct {
	BaseURL     string
	Model       string
	Temperature float64
	Timeout     time.Duration
	Retry       retry.Policy

	// MaxResponseBytes caps the response body; larger responses are an error.
	MaxResponseBytes int64
}

// Ollama calls the non-streaming /api/generate endpoint of an Ollama server.
type Ollama struct {
	baseURL     string
	model       string
	temperature float64
	client      *http.Client
	policy      retry.Policy
	maxBytes    int64
}

func NewOllama(cfg OllamaConfig) *Ollama {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "gemma3:1b"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if cfg.Retry == (retry.Policy{}) {
		cfg.Retry = retry.DefaultPolicy()
	}
	if cfg.MaxResponseBytes == 0 {
		cfg.MaxResponseBytes = 8 << 20
	}
	return &Ollama{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		client:      &http.Client{Timeout: cfg.Timeout},
		policy:      cfg.Retry,
		maxBytes:    cfg.MaxResponseBytes,
	}
}

func (o *Ollama) Name() string { return "ollama:" + o.model }

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Error    string `json:"error"`
}

func (o *Ollama) Generate(ctx context.Context, query, passages string) (string, error) {
	req := generateRequest{Model: o.model, Prompt: Prompt(query, passages)}
	if o.temperature > 0 {
		req.Options = map[string]any{"temperature": o.temperature}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	var answer string
	err = retry.Do(ctx, o.policy, func() error {
		a, err := o.generateOnce(ctx, body)
		if err != nil {
			return err
		}
		answer = a
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	return strings.TrimSpace(answer), nil
}

func (o *Ollama) generateOnce(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := o.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &retry.RetryableError{Message: err.Error()}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, o.maxBytes+1))
	if err != nil {
		return "", &retry.RetryableError{StatusCode: resp.StatusCode, Message: err.Error()}
	}
	if int64(len(payload)) > o.maxBytes {
		return "", fmt.Errorf("response exceeds %d bytes", o.maxBytes)
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return "", &retry.RetryableError{StatusCode: resp.StatusCode, Message: string(payload)}
	}
	var out generateResponse
	if resp.StatusCode >= 300 {
		if json.Unmarshal(payload, &out) == nil && out.Error != "" {
			return "", fmt.Errorf("%s: %s", resp.Status, out.Error)
		}
		return "", errors.New(resp.Status)
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return out.Response, nil
}

func (o *Ollama) Close() {
	o.client.CloseIdleConnections()
}
