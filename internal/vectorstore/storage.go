package vectorstore

import (
	"context"

	"novelrag/internal/domain"
)

// Storage persists vectors and supports similarity search.
type Storage interface {
	Init(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, chunks []domain.Chunk, vectors [][]float64) error
	Search(ctx context.Context, vector []float64, topK int) ([]domain.RetrievedItem, error)
	// Chunks returns every stored chunk in insertion order.
	Chunks(ctx context.Context) ([]domain.Chunk, error)
	Clear(ctx context.Context) error
}

// Persistent is implemented by stores that keep their state on local disk
// and must be saved explicitly after a build.
type Persistent interface {
	Save() error
	// Load reports false when there is nothing to load.
	Load() (bool, error)
}
