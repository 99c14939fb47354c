package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveBuild(12, 140, 1.5)
	m.ObserveEmbedding(0.01)
	m.ObserveQuery(3, 0.2)
	m.ObserveGeneration(0.1)
	m.LexicalFallback()
	m.Error("generate")
	m.Error("generate")

	assert.Equal(t, 12.0, testutil.ToFloat64(m.SectionsExtracted))
	assert.Equal(t, 140.0, testutil.ToFloat64(m.ChunksCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EmbeddingsGenerated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.QueryRequests))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LexicalFallbacks))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Errors.WithLabelValues("generate")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveBuild(1, 1, 1)
		m.ObserveEmbedding(1)
		m.ObserveQuery(1, 1)
		m.ObserveGeneration(1)
		m.LexicalFallback()
		m.Error("x")
	})
}

func TestNewMetrics_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewMetrics(prometheus.NewRegistry())
		NewMetrics(prometheus.NewRegistry())
	})
}
