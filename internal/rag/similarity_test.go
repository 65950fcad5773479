package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docmind/internal/model"
)

func chunkWith(id uint, vec []float32) model.Chunk {
	c := model.Chunk{ID: id, DocumentID: 1, Content: "chunk"}
	c.SetEmbedding("test-model", vec)
	return c
}

func ids(results []Result) []uint {
	out := make([]uint, len(results))
	for i, r := range results {
		out[i] = r.Chunk.ID
	}
	return out
}

func TestCosineSimilarity_KnownValues(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 1.0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0.0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1.0},
		{"magnitude independent", []float32{2, 2}, []float32{5, 5}, 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := CosineSimilarity(tt.a, tt.b)
			require.True(t, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestCosineSimilarity_Undefined(t *testing.T) {
	_, ok := CosineSimilarity([]float32{0, 0}, []float32{1, 0})
	assert.False(t, ok)
	_, ok = CosineSimilarity([]float32{1, 0}, []float32{1, 0, 0})
	assert.False(t, ok)
	_, ok = CosineSimilarity(nil, nil)
	assert.False(t, ok)
}

func TestSearch_EmptyCorpus(t *testing.T) {
	results := Search([]float32{1, 0}, nil, 5)
	require.NotNil(t, results)
	assert.Empty(t, results)
}

func TestSearch_RanksDescendingAndTruncates(t *testing.T) {
	corpus := []model.Chunk{
		chunkWith(1, []float32{0, 1}),
		chunkWith(2, []float32{1, 0}),
		chunkWith(3, []float32{1, 1}),
		chunkWith(4, []float32{-1, 0}),
	}
	results := Search([]float32{1, 0}, corpus, 3)
	assert.Equal(t, []uint{2, 3, 1}, ids(results))
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
}

func TestSearch_TiesKeepCorpusOrderAndAreDeterministic(t *testing.T) {
	corpus := []model.Chunk{
		chunkWith(7, []float32{1, 0}),
		chunkWith(3, []float32{2, 0}),
		chunkWith(9, []float32{0.5, 0}),
		chunkWith(1, []float32{0, 1}),
	}
	first := Search([]float32{1, 0}, corpus, 10)
	assert.Equal(t, []uint{7, 3, 9, 1}, ids(first))
	for i := 0; i < 5; i++ {
		assert.Equal(t, ids(first), ids(Search([]float32{1, 0}, corpus, 10)))
	}
}

func TestSearchWithStats_ExcludesZeroNormAndDimensionMismatch(t *testing.T) {
	corpus := []model.Chunk{
		chunkWith(1, []float32{0, 0}),
		chunkWith(2, []float32{1, 0, 0}),
		chunkWith(3, []float32{0, 1}),
		chunkWith(4, nil),
	}
	results, stats := SearchWithStats([]float32{1, 0}, corpus, 5)
	assert.Equal(t, []uint{3}, ids(results))
	assert.Equal(t, 4, stats.Scanned)
	assert.Equal(t, 1, stats.SkippedZeroNorm)
	assert.Equal(t, 2, stats.SkippedDimMismatch)
}

func TestSearch_DefaultK(t *testing.T) {
	var corpus []model.Chunk
	for i := uint(1); i <= 8; i++ {
		corpus = append(corpus, chunkWith(i, []float32{float32(i), 1}))
	}
	assert.Len(t, Search([]float32{1, 1}, corpus, 0), DefaultTopK)
}

func TestStageError(t *testing.T) {
	err := &StageError{Stage: StageEmbed, Chunk: 2, Err: ErrEmbedding}
	assert.ErrorIs(t, err, ErrEmbedding)
	stage, ok := StageOf(err)
	assert.True(t, ok)
	assert.Equal(t, StageEmbed, stage)
	assert.Equal(t, "embed chunk 2: embedding failed", err.Error())
}
