package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novelrag/internal/domain"
)

func TestPointID_IsStableUUID(t *testing.T) {
	a := PointID("3:7")
	_, err := uuid.Parse(a)
	require.NoError(t, err)
	assert.Equal(t, a, PointID("3:7"))
	assert.NotEqual(t, a, PointID("3:8"))
}

func TestStorage_InitAndUpsert(t *testing.T) {
	var created map[string]any
	var upserted struct {
		Points []point `json:"points"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "k", r.Header.Get("api-key"))
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/collections/alice":
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&created))
		case r.Method == http.MethodPut && r.URL.Path == "/collections/alice/points":
			assert.Equal(t, "true", r.URL.Query().Get("wait"))
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&upserted))
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"result":true,"status":"ok"}`))
	}))
	defer srv.Close()

	s := NewStorage(Config{URL: srv.URL + "/", APIKey: "k", Collection: "alice"})
	ctx := context.Background()
	require.NoError(t, s.Init(ctx, 2))
	assert.Equal(t, map[string]any{"size": float64(2), "distance": "Cosine"}, created["vectors"])

	chunk := domain.Chunk{ID: "1:1", SectionTitle: "CHAPTER I. Down the Rabbit-Hole", SequenceIndex: 1, Text: "Alice"}
	require.NoError(t, s.Upsert(ctx, []domain.Chunk{chunk}, [][]float64{{1, 0}}))
	require.Len(t, upserted.Points, 1)
	assert.Equal(t, PointID("1:1"), upserted.Points[0].ID)
	assert.Equal(t, chunk, upserted.Points[0].Payload.chunk())
}

func TestStorage_InitExistingCollection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	require.NoError(t, NewStorage(Config{URL: srv.URL}).Init(context.Background(), 4))
}

func TestStorage_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/collections/novelrag/points/search", r.URL.Path)
		var req map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, float64(3), req["limit"])
		_, _ = w.Write([]byte(`{"result":[
			{"id":"x","score":0.9,"payload":{"chunk_id":"2:1","section_title":"CHAPTER II. The Pool of Tears","sequence_index":1,"text":"tears"}}
		]}`))
	}))
	defer srv.Close()

	res, err := NewStorage(Config{URL: srv.URL}).Search(context.Background(), []float64{1}, 3)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "2:1", res[0].Chunk.ID)
	assert.Equal(t, "CHAPTER II. The Pool of Tears", res[0].Chunk.SectionTitle)
	assert.InDelta(t, 0.9, res[0].Score, 1e-9)
}

func TestStorage_ChunksScrollsAllPages(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/collections/novelrag/points/scroll", r.URL.Path)
		var req map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		calls++
		if req["offset"] == nil {
			_, _ = w.Write([]byte(`{"result":{"points":[
				{"payload":{"chunk_id":"10:1","text":"c"}},
				{"payload":{"chunk_id":"2:2","text":"b"}}
			],"next_page_offset":"abc"}}`))
			return
		}
		assert.Equal(t, "abc", req["offset"])
		_, _ = w.Write([]byte(`{"result":{"points":[{"payload":{"chunk_id":"2:1","text":"a"}}],"next_page_offset":null}}`))
	}))
	defer srv.Close()

	chunks, err := NewStorage(Config{URL: srv.URL}).Chunks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}
	assert.Equal(t, []string{"2:1", "2:2", "10:1"}, ids)
}

func TestStorage_MissingCollection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	s := NewStorage(Config{URL: srv.URL})
	chunks, err := s.Chunks(context.Background())
	require.NoError(t, err)
	assert.Empty(t, chunks)
	require.NoError(t, s.Clear(context.Background()))

	_, err = s.Search(context.Background(), []float64{1}, 1)
	require.Error(t, err)
}
