package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimilarityGate_Accepts(t *testing.T) {
	gate := SimilarityGate{Lower: 0.70, Upper: 0.89}

	assert.True(t, gate.Accepts(0.80))
	// Границы интервала открытые
	assert.False(t, gate.Accepts(0.70))
	assert.False(t, gate.Accepts(0.89))
	assert.False(t, gate.Accepts(0.10))
	assert.False(t, gate.Accepts(0.95))
}

func TestCosineSimilarity(t *testing.T) {
	t.Run("Сонаправленные векторы", func(t *testing.T) {
		score, err := cosineSimilarity([]float32{1, 2, 3}, []float32{2, 4, 6})
		require.NoError(t, err)
		assert.InDelta(t, 1.0, score, 1e-9)
	})

	t.Run("Ортогональные векторы", func(t *testing.T) {
		score, err := cosineSimilarity([]float32{1, 0}, []float32{0, 1})
		require.NoError(t, err)
		assert.InDelta(t, 0.0, score, 1e-9)
	})

	t.Run("Разные размерности", func(t *testing.T) {
		_, err := cosineSimilarity([]float32{1, 2}, []float32{1, 2, 3})
		assert.Error(t, err)
	})

	t.Run("Нулевой вектор", func(t *testing.T) {
		_, err := cosineSimilarity([]float32{0, 0}, []float32{1, 2})
		assert.Error(t, err)
	})
}
