package domain

import "errors"

var (
	// ErrSegmentation is returned when no segmentation strategy produced a section.
	ErrSegmentation = errors.New("segmentation failed: no sections extracted")
	// ErrChunkingPrecondition is returned for an invalid window/overlap configuration.
	ErrChunkingPrecondition = errors.New("chunk overlap must be smaller than chunk size")
	// ErrEmptyRetrieval is returned when there are no retrieved chunks to cite.
	ErrEmptyRetrieval = errors.New("no grounded answer available")
	// ErrIndexNotBuilt is returned when querying before an index exists.
	ErrIndexNotBuilt = errors.New("index not built")
)
