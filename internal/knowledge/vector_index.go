package knowledge

import (
	"fmt"
	"math"
	"sort"

	apperrors "github.com/aihub/ragbot-go/internal/errors"
)

// SearchMatch 检索命中：行号 + 余弦相似度
type SearchMatch struct {
	Row   int
	Score float64
}

// FlatIndex 平面向量索引。所有向量入库前做L2归一化，
// 内积即余弦相似度。追加顺序即行号顺序，不支持删除。
type FlatIndex struct {
	dim     int
	vectors [][]float32
}

// NewFlatIndex 创建指定维度的空索引
func NewFlatIndex(dim int) *FlatIndex {
	return &FlatIndex{dim: dim}
}

// Dim 返回向量维度
func (ix *FlatIndex) Dim() int {
	return ix.dim
}

// Rows 返回已存向量行数
func (ix *FlatIndex) Rows() int {
	return len(ix.vectors)
}

// Append 追加一条向量到索引末尾，内部会做L2归一化
func (ix *FlatIndex) Append(vec []float32) error {
	if len(vec) != ix.dim {
		return fmt.Errorf("vector dimension mismatch: got %d, want %d", len(vec), ix.dim)
	}
	normalized := make([]float32, len(vec))
	copy(normalized, vec)
	NormalizeL2(normalized)
	ix.vectors = append(ix.vectors, normalized)
	return nil
}

// Vectors 返回内部向量切片，仅供快照序列化使用
func (ix *FlatIndex) Vectors() [][]float32 {
	return ix.vectors
}

// Search 返回按相似度降序的前k个近邻。
// 分数相同的按行号升序（先插入的在前）。
func (ix *FlatIndex) Search(query []float32, k int) ([]SearchMatch, error) {
	if len(ix.vectors) == 0 {
		return nil, apperrors.NewIndexEmptyError()
	}
	if len(query) != ix.dim {
		return nil, fmt.Errorf("query dimension mismatch: got %d, want %d", len(query), ix.dim)
	}
	if k <= 0 {
		return nil, nil
	}
	if k > len(ix.vectors) {
		k = len(ix.vectors)
	}

	q := make([]float32, len(query))
	copy(q, query)
	NormalizeL2(q)

	matches := make([]SearchMatch, 0, len(ix.vectors))
	for row, vec := range ix.vectors {
		matches = append(matches, SearchMatch{Row: row, Score: dot(q, vec)})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Row < matches[j].Row
	})

	return matches[:k], nil
}

// NormalizeL2 原地L2归一化；零向量保持不变
func NormalizeL2(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
