package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Recorders(t *testing.T) {
	m := New("docmind")

	m.ObserveIngestion("", time.Second, nil)
	m.ObserveIngestion("embed", time.Second, errors.New("boom"))
	m.ChunkStored()
	m.ChunkStored()
	m.ObserveEmbedding(10*time.Millisecond, nil)
	m.ObserveAnswer("answered", 3, 20*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ingestions.WithLabelValues("failure", "embed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.chunksStored))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.answers.WithLabelValues("answered")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "docmind_chunks_stored_total 2")
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveIngestion("", time.Second, nil)
		m.ChunkStored()
		m.ObserveEmbedding(time.Second, nil)
		m.ObserveAnswer("answered", 0, time.Second)
	})
}
