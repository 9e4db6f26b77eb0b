package engine

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	apperrors "github.com/aihub/ragbot-go/internal/errors"
	"github.com/aihub/ragbot-go/internal/knowledge"
	"github.com/aihub/ragbot-go/internal/logger"
)

// Retriever 查询向量化 + 近邻检索 + 阈值过滤。
// 查询向量带固定容量缓存：满了之后不再写入（冻结策略，不做LRU淘汰）。
type Retriever struct {
	kb       *knowledge.KnowledgeBase
	embedder knowledge.Embedder

	defaultTopK int
	maxTopK     int
	minScore    float64

	cacheCap int
	cacheMu  sync.RWMutex
	cache    map[string][]float32
}

// NewRetriever 创建检索器
func NewRetriever(kb *knowledge.KnowledgeBase, embedder knowledge.Embedder,
	defaultTopK, maxTopK int, minScore float64, cacheCap int) *Retriever {
	if defaultTopK <= 0 {
		defaultTopK = 3
	}
	if maxTopK <= 0 {
		maxTopK = 10
	}
	if cacheCap <= 0 {
		cacheCap = 100
	}
	return &Retriever{
		kb:          kb,
		embedder:    embedder,
		defaultTopK: defaultTopK,
		maxTopK:     maxTopK,
		minScore:    minScore,
		cacheCap:    cacheCap,
		cache:       make(map[string][]float32),
	}
}

// Search 检索与查询最相关的分块。
// 过滤后低于阈值的全部丢弃，但只要索引非空就至少返回最佳一条。
func (r *Retriever) Search(ctx context.Context, query string, topK int) ([]knowledge.ScoredChunk, error) {
	if r.kb == nil {
		return nil, apperrors.NewIndexNotLoadedError()
	}
	if topK <= 0 {
		topK = r.defaultTopK
	}
	if topK > r.maxTopK {
		topK = r.maxTopK
	}

	embedding, err := r.queryEmbedding(ctx, query, topK)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	// 多取一些候选，留给阈值过滤
	candidates := topK * 2
	if candidates > 10 {
		candidates = 10
	}

	matches, err := r.kb.Search(embedding, candidates)
	if err != nil {
		return nil, err
	}

	results := make([]knowledge.ScoredChunk, 0, topK)
	for _, m := range matches {
		if m.Score >= r.minScore {
			results = append(results, m)
			logger.Debug("chunk score", zap.Float64("score", m.Score))
		}
		if len(results) >= topK {
			break
		}
	}

	// 全部低于阈值时退化为单条最佳匹配，保证非空索引永不返回空
	if len(results) == 0 && len(matches) > 0 {
		logger.Warn("no chunks above threshold, using best match",
			zap.Float64("threshold", r.minScore),
			zap.Float64("best_score", matches[0].Score))
		results = append(results, matches[0])
	}

	logger.Debug("retrieval complete",
		zap.Int("results", len(results)),
		zap.Int("top_k", topK))

	return results, nil
}

// queryEmbedding 取缓存或新算查询向量，缓存键为 query_topK
func (r *Retriever) queryEmbedding(ctx context.Context, query string, topK int) ([]float32, error) {
	key := fmt.Sprintf("%s_%d", query, topK)

	r.cacheMu.RLock()
	cached, ok := r.cache[key]
	r.cacheMu.RUnlock()
	if ok {
		logger.Debug("using cached query embedding")
		return cached, nil
	}

	embedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	knowledge.NormalizeL2(embedding)

	r.cacheMu.Lock()
	if len(r.cache) < r.cacheCap {
		r.cache[key] = embedding
	}
	r.cacheMu.Unlock()

	return embedding, nil
}

// ClearCache 清空查询向量缓存
func (r *Retriever) ClearCache() {
	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()
	r.cache = make(map[string][]float32)
	logger.Info("query embedding cache cleared")
}

// CacheSize 当前缓存条数
func (r *Retriever) CacheSize() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}
