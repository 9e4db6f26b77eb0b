package knowledge

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/aihub/ragbot-go/internal/errors"
)

func TestFlatIndexAppendAndSearch(t *testing.T) {
	ix := NewFlatIndex(2)
	require.NoError(t, ix.Append([]float32{1, 0}))
	require.NoError(t, ix.Append([]float32{0, 1}))
	require.NoError(t, ix.Append([]float32{1, 1}))
	assert.Equal(t, 3, ix.Rows())

	matches, err := ix.Search([]float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, matches, 3)

	// 最相近的排最前
	assert.Equal(t, 0, matches[0].Row)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-6)
	assert.Equal(t, 2, matches[1].Row)
	assert.InDelta(t, 1/math.Sqrt2, matches[1].Score, 1e-6)
	assert.Equal(t, 1, matches[2].Row)
}

// 分数并列时先插入的行排前面
func TestFlatIndexTieBreakByRow(t *testing.T) {
	ix := NewFlatIndex(2)
	require.NoError(t, ix.Append([]float32{0, 1}))
	require.NoError(t, ix.Append([]float32{0, 1}))
	require.NoError(t, ix.Append([]float32{0, 2}))

	matches, err := ix.Search([]float32{0, 1}, 3)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	assert.Equal(t, 0, matches[0].Row)
	assert.Equal(t, 1, matches[1].Row)
	assert.Equal(t, 2, matches[2].Row)
}

func TestFlatIndexEmptySearch(t *testing.T) {
	ix := NewFlatIndex(2)
	_, err := ix.Search([]float32{1, 0}, 1)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeIndexEmpty))
}

func TestFlatIndexDimensionMismatch(t *testing.T) {
	ix := NewFlatIndex(3)
	assert.Error(t, ix.Append([]float32{1, 0}))

	require.NoError(t, ix.Append([]float32{1, 0, 0}))
	_, err := ix.Search([]float32{1, 0}, 1)
	assert.Error(t, err)
}

func TestFlatIndexKLargerThanRows(t *testing.T) {
	ix := NewFlatIndex(2)
	require.NoError(t, ix.Append([]float32{1, 0}))

	matches, err := ix.Search([]float32{1, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestNormalizeL2(t *testing.T) {
	vec := []float32{3, 4}
	NormalizeL2(vec)
	assert.InDelta(t, 0.6, float64(vec[0]), 1e-6)
	assert.InDelta(t, 0.8, float64(vec[1]), 1e-6)

	// 零向量保持不变
	zero := []float32{0, 0}
	NormalizeL2(zero)
	assert.Equal(t, []float32{0, 0}, zero)
}

// 任何变更之后分块数与向量行数必须一致
func TestKnowledgeBaseInvariant(t *testing.T) {
	kb := NewKnowledgeBase(2, "test-model")
	require.NoError(t, kb.Add(Chunk{Text: "a", Source: "doc1.txt"}, []float32{1, 0}))
	require.NoError(t, kb.Add(Chunk{Text: "b", Source: "doc1.txt"}, []float32{0, 1}))
	assert.Equal(t, 2, kb.Size())

	// 维度不符的追加必须原子失败，不留半条记录
	err := kb.Add(Chunk{Text: "c", Source: "doc2.txt"}, []float32{1, 0, 0})
	require.Error(t, err)
	assert.Equal(t, 2, kb.Size())
}

func TestKnowledgeBaseSearch(t *testing.T) {
	kb := NewKnowledgeBase(2, "test-model")
	require.NoError(t, kb.Add(Chunk{Text: "first", Source: "doc1.txt"}, []float32{1, 0}))
	require.NoError(t, kb.Add(Chunk{Text: "second", Source: "doc2.txt"}, []float32{0, 1}))

	results, err := kb.Search([]float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "first", results[0].Chunk.Text)
	assert.Equal(t, []string{"doc1.txt", "doc2.txt"}, kb.Sources())
}
