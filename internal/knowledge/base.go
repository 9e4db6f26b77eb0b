package knowledge

import (
	"fmt"
	"sync"

	apperrors "github.com/aihub/ragbot-go/internal/errors"
)

// ScoredChunk 带相似度的检索结果
type ScoredChunk struct {
	Chunk Chunk
	Score float64
	Row   int
}

// KnowledgeBase 向量索引与分块集合的组合体。
// 不变式：任何时刻 store.Size() == index.Rows()，
// 追加是原子操作，向量写入失败时分块也不写入。
type KnowledgeBase struct {
	mu             sync.RWMutex
	index          *FlatIndex
	store          *ChunkStore
	embeddingModel string
}

// NewKnowledgeBase 创建空知识库
func NewKnowledgeBase(dim int, embeddingModel string) *KnowledgeBase {
	return &KnowledgeBase{
		index:          NewFlatIndex(dim),
		store:          NewChunkStore(),
		embeddingModel: embeddingModel,
	}
}

// Add 原子追加分块与其向量
func (kb *KnowledgeBase) Add(chunk Chunk, vec []float32) error {
	kb.mu.Lock()
	defer kb.mu.Unlock()

	if err := kb.index.Append(vec); err != nil {
		return fmt.Errorf("append vector: %w", err)
	}
	kb.store.Append(chunk)
	return nil
}

// Size 返回分块数量（等于向量行数）
func (kb *KnowledgeBase) Size() int {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return kb.store.Size()
}

// Dim 返回向量维度
func (kb *KnowledgeBase) Dim() int {
	return kb.index.Dim()
}

// EmbeddingModel 返回构建索引时使用的向量化模型标识
func (kb *KnowledgeBase) EmbeddingModel() string {
	return kb.embeddingModel
}

// Sources 返回去重后的来源文件列表
func (kb *KnowledgeBase) Sources() []string {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return kb.store.Sources()
}

// Search 返回与查询向量最相近的k个分块，按相似度降序
func (kb *KnowledgeBase) Search(query []float32, k int) ([]ScoredChunk, error) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	if kb.store.Size() == 0 {
		return nil, apperrors.NewIndexEmptyError()
	}

	matches, err := kb.index.Search(query, k)
	if err != nil {
		return nil, err
	}

	results := make([]ScoredChunk, 0, len(matches))
	for _, m := range matches {
		chunk, ok := kb.store.Get(m.Row)
		if !ok {
			continue
		}
		results = append(results, ScoredChunk{Chunk: chunk, Score: m.Score, Row: m.Row})
	}
	return results, nil
}
