package rag

import (
	"math"
	"sort"

	"docmind/internal/model"
)

const DefaultTopK = 5

// Result is one ranked chunk. Score is the cosine similarity in [-1, 1].
type Result struct {
	Chunk model.Chunk `json:"chunk"`
	Score float64     `json:"score"`
}

// SearchStats reports chunks left out of a ranking.
type SearchStats struct {
	Scanned            int `json:"scanned"`
	SkippedZeroNorm    int `json:"skipped_zero_norm"`
	SkippedDimMismatch int `json:"skipped_dim_mismatch"`
}

// CosineSimilarity returns dot(a,b)/(|a||b|). ok is false when the vectors
// differ in length, are empty, or either has zero norm; the score is then
// undefined and must not be ranked.
func CosineSimilarity(a, b []float32) (score float64, ok bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0, false
	}
	score = dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if math.IsNaN(score) {
		return 0, false
	}
	// Rounding can push parallel vectors a hair past the bounds.
	return math.Max(-1, math.Min(1, score)), true
}

// Search ranks corpus against query by cosine similarity and returns at most
// k results in descending score order. Equal scores keep corpus order.
func Search(query []float32, corpus []model.Chunk, k int) []Result {
	results, _ := SearchWithStats(query, corpus, k)
	return results
}

// SearchWithStats is Search plus a count of the chunks excluded from ranking:
// zero-norm embeddings and embeddings whose dimension differs from query.
func SearchWithStats(query []float32, corpus []model.Chunk, k int) ([]Result, SearchStats) {
	stats := SearchStats{Scanned: len(corpus)}
	if k <= 0 {
		k = DefaultTopK
	}
	if len(corpus) == 0 {
		return []Result{}, stats
	}

	scored := make([]Result, 0, len(corpus))
	for i := range corpus {
		vec := corpus[i].EmbeddingVector()
		if len(vec) != len(query) {
			stats.SkippedDimMismatch++
			continue
		}
		score, ok := CosineSimilarity(query, vec)
		if !ok {
			stats.SkippedZeroNorm++
			continue
		}
		scored = append(scored, Result{Chunk: corpus[i], Score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if k < len(scored) {
		scored = scored[:k]
	}
	return scored, stats
}
