package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novelrag/internal/retry"
)

var fastRetry = retry.Policy{MaxRetries: 2, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bom", "\uFEFFCONTENTS", "CONTENTS"},
		{"crlf", "a\r\nb\rc", "a\nb\nc"},
		{"nfc", "Cafe\u0301", "Caf\u00e9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestHTMLText(t *testing.T) {
	page := `<!DOCTYPE html><html><head><title>Alice</title><style>p{}</style></head>
<body>
<h2>CHAPTER I.
  Down the Rabbit-Hole</h2>
<p>Alice was   beginning<br>to get very tired.</p>
<script>var x = 1;</script>
<p>So she was considering.</p>
</body></html>`
	text, err := HTMLText(strings.NewReader(page))
	require.NoError(t, err)
	assert.Equal(t, "CHAPTER I.\nDown the Rabbit-Hole\n\nAlice was beginning\nto get very tired.\n\nSo she was considering.", text)
}

func TestFetcher_DownloadPlainText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "novelrag/1.0", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("\uFEFFCHAPTER I.\r\nDown the Rabbit-Hole\r\n"))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "data", "alice.txt")
	n, err := New(Config{Retry: fastRetry}, nil).Download(context.Background(), srv.URL, path)
	require.NoError(t, err)
	assert.Positive(t, n)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "CHAPTER I.\nDown the Rabbit-Hole\n", string(data))
}

func TestFetcher_HTMLResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><p>Curiouser and curiouser!</p></body></html>`))
	}))
	defer srv.Close()

	text, err := New(Config{Retry: fastRetry}, nil).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "Curiouser and curiouser!", text)
}

func TestFetcher_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	text, err := New(Config{Retry: fastRetry}, nil).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetcher_NotFound(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := New(Config{Retry: fastRetry}, nil).Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetcher_RejectsOversizedBody(t *testing.T) {
	var calls atomic.Int32
	var size atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(strings.Repeat("a", int(size.Load()))))
	}))
	defer srv.Close()

	f := New(Config{Retry: fastRetry, MaxBytes: 64}, nil)
	size.Store(65)
	_, err := f.Fetch(context.Background(), srv.URL)
	require.ErrorIs(t, err, ErrTooLarge)
	assert.Equal(t, int32(1), calls.Load())

	size.Store(64)
	text, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Len(t, text, 64)
}
