package engine

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/aihub/ragbot-go/internal/errors"
	"github.com/aihub/ragbot-go/internal/knowledge"
	"github.com/aihub/ragbot-go/internal/logger"
	"github.com/aihub/ragbot-go/internal/ollama"
)

// Source 回答引用的分块及其相似度
type Source struct {
	Chunk string  `json:"chunk"`
	Score float64 `json:"score"`
}

// QueryResult 阻塞式问答结果
type QueryResult struct {
	Query          string        `json:"query"`
	Response       string        `json:"response"`
	Sources        []Source      `json:"sources"`
	Style          ResponseStyle `json:"style"`
	IsTrial        bool          `json:"is_trial"`
	NoticeAttached bool          `json:"notice_attached"`
	ProcessingTime float64       `json:"processing_time"`
}

// StreamResult 流式问答收尾结果（全文缓冲后终稿处理）
type StreamResult struct {
	FinalText      string
	Style          ResponseStyle
	IsTrial        bool
	NoticeAttached bool
}

// HealthStatus 各组件健康状态
type HealthStatus struct {
	IndexVectors    int      `json:"index_vectors"`
	Chunks          int      `json:"chunks"`
	EmbeddingModel  string   `json:"embedding_model"`
	Generator       string   `json:"generator"`
	CacheSize       int      `json:"cache_size"`
	PerformanceMode string   `json:"performance_mode"`
	Sources         []string `json:"sources,omitempty"`
}

// Engine 检索增强问答流水线：检索→构造提示词→生成→终稿处理
type Engine struct {
	retriever *Retriever
	builder   *PromptBuilder
	finisher  *Finisher
	generator *ollama.Service
	model     string

	modeMu sync.RWMutex
	mode   PerformanceMode
}

// NewEngine 创建问答引擎
func NewEngine(retriever *Retriever, finisher *Finisher,
	generator *ollama.Service, model string, mode string) *Engine {

	m := PerformanceMode(mode)
	if !ValidMode(mode) {
		m = ModeBalanced
	}
	return &Engine{
		retriever: retriever,
		builder:   NewPromptBuilder(),
		finisher:  finisher,
		generator: generator,
		model:     model,
		mode:      m,
	}
}

// SetPerformanceMode 运行时切换性能模式
func (e *Engine) SetPerformanceMode(mode string) error {
	if !ValidMode(mode) {
		return apperrors.NewValidationError("invalid performance mode: " + mode)
	}
	e.modeMu.Lock()
	e.mode = PerformanceMode(mode)
	e.modeMu.Unlock()
	logger.Info("performance mode changed", zap.String("mode", mode))
	return nil
}

// PerformanceMode 当前性能模式
func (e *Engine) PerformanceMode() string {
	e.modeMu.RLock()
	defer e.modeMu.RUnlock()
	return string(e.mode)
}

// ClearCache 清空查询向量缓存
func (e *Engine) ClearCache() {
	e.retriever.ClearCache()
}

func (e *Engine) generationOptions(style ResponseStyle, isTrial bool) *ollama.Options {
	e.modeMu.RLock()
	preset, _ := PresetFor(e.mode)
	e.modeMu.RUnlock()

	return &ollama.Options{
		Temperature:   preset.Temperature,
		TopP:          preset.TopP,
		NumPredict:    MaxTokens(style, isTrial),
		NumCtx:        preset.NumCtx,
		NumBatch:      preset.NumBatch,
		RepeatPenalty: preset.RepeatPenalty,
		Stop:          preset.Stop,
	}
}

// Query 阻塞式问答。noticeDue由会话层判定；结果的NoticeAttached
// 为真时调用方必须回写会话的一次性标记。
func (e *Engine) Query(ctx context.Context, query string, topK int,
	style ResponseStyle, channel Channel, noticeDue bool) (*QueryResult, error) {

	start := time.Now()

	matches, err := e.retriever.Search(ctx, query, topK)
	if err != nil {
		return nil, err
	}

	chunkTexts := make([]string, len(matches))
	sources := make([]Source, len(matches))
	for i, m := range matches {
		chunkTexts[i] = m.Chunk.Text
		sources[i] = Source{Chunk: m.Chunk.Text, Score: m.Score}
	}

	built := e.builder.Build(query, chunkTexts, style)

	resp, err := e.generator.Generate(ctx, ollama.GenerateRequest{
		Model:   e.model,
		Prompt:  built.Text,
		Options: e.generationOptions(built.Style, built.IsTrial),
	})
	if err != nil {
		logger.Error("generation failed", zap.Error(err))
		return nil, apperrors.NewGeneratorUnavailableError(err)
	}

	final := e.finisher.Finalize(resp.Response, built.Style, built.IsTrial, channel, noticeDue)

	result := &QueryResult{
		Query:          query,
		Response:       final.Text,
		Sources:        sources,
		Style:          built.Style,
		IsTrial:        built.IsTrial,
		NoticeAttached: final.NoticeAttached,
		ProcessingTime: time.Since(start).Seconds(),
	}

	logger.Info("query processed",
		zap.Float64("seconds", result.ProcessingTime),
		zap.Bool("is_trial", built.IsTrial),
		zap.String("style", string(built.Style)))

	return result, nil
}

// QueryStream 流式问答：token边到边转发（首包去免责声明），
// 全文缓冲完成后再做终稿处理，补充信息只出现在终稿里。
func (e *Engine) QueryStream(ctx context.Context, query string, topK int,
	style ResponseStyle, channel Channel, noticeDue bool,
	onToken func(token string) error) (*StreamResult, error) {

	matches, err := e.retriever.Search(ctx, query, topK)
	if err != nil {
		return nil, err
	}

	chunkTexts := make([]string, len(matches))
	for i, m := range matches {
		chunkTexts[i] = m.Chunk.Text
	}

	built := e.builder.Build(query, chunkTexts, style)

	var full strings.Builder
	firstSent := false
	err = e.generator.GenerateStream(ctx, ollama.GenerateRequest{
		Model:   e.model,
		Prompt:  built.Text,
		Options: e.generationOptions(built.Style, built.IsTrial),
	}, func(token string) error {
		full.WriteString(token)
		if !firstSent {
			token = SanitizeDisclaimer(token, true)
			firstSent = true
		}
		if token == "" {
			return nil
		}
		return onToken(token)
	})
	if err != nil {
		logger.Error("streaming generation failed", zap.Error(err))
		return nil, apperrors.NewGeneratorUnavailableError(err)
	}

	final := e.finisher.Finalize(full.String(), built.Style, built.IsTrial, channel, noticeDue)

	return &StreamResult{
		FinalText:      final.Text,
		Style:          built.Style,
		IsTrial:        built.IsTrial,
		NoticeAttached: final.NoticeAttached,
	}, nil
}

// WarmUp 启动预热：跑一次探针检索并让生成模型加载进显存
func (e *Engine) WarmUp(ctx context.Context) {
	logger.Info("warming up engine")

	if _, err := e.retriever.Search(ctx, "test query", 1); err != nil {
		logger.Warn("warm-up retrieval failed", zap.Error(err))
	}

	warmCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, err := e.generator.Generate(warmCtx, ollama.GenerateRequest{
		Model:   e.model,
		Prompt:  "Hello, this is a test.",
		Options: &ollama.Options{NumPredict: 1},
	})
	if err != nil {
		logger.Warn("warm-up generation failed", zap.Error(err))
		return
	}
	logger.Info("warm-up complete")
}

// Health 汇总各组件状态
func (e *Engine) Health(ctx context.Context, kb *knowledge.KnowledgeBase) HealthStatus {
	status := HealthStatus{
		Generator:       "not connected",
		CacheSize:       e.retriever.CacheSize(),
		PerformanceMode: e.PerformanceMode(),
	}
	if kb != nil {
		status.IndexVectors = kb.Size()
		status.Chunks = kb.Size()
		status.EmbeddingModel = kb.EmbeddingModel()
		status.Sources = kb.Sources()
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := e.generator.Ping(pingCtx); err == nil {
		status.Generator = "connected"
	}

	return status
}
