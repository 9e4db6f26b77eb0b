package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/aihub/ragbot-go/internal/config"
	"github.com/aihub/ragbot-go/internal/knowledge"
	"github.com/aihub/ragbot-go/internal/logger"
	"github.com/aihub/ragbot-go/internal/ollama"
)

// 摄取任务：读取文本/Markdown文件，分块、向量化并写入知识库快照。
// 服务进程只读快照，摄取离线执行，不支持边服务边摄取。
func main() {
	appendMode := flag.Bool("append", false, "add to the existing snapshot instead of rebuilding")
	flag.Parse()

	files := flag.Args()
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: ingest [-append] <file> [<file>...]")
		fmt.Fprintln(os.Stderr, "  <file>: text or markdown file to index")
		os.Exit(1)
	}

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	if err := logger.InitLogger(); err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()
	if err := config.LoadConfig(); err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}
	cfg := config.AppConfig

	ollama.InitGlobalService(cfg.Engine.OllamaURL, cfg.Engine.RequestTimeout)
	embedder := knowledge.NewEmbedder(cfg.Knowledge.Embedding)
	if !embedder.Ready() {
		logger.Fatal("embedding provider not configured")
	}

	var kb *knowledge.KnowledgeBase
	if *appendMode {
		loaded, err := knowledge.LoadSnapshot(cfg.Knowledge.SnapshotDir)
		if err != nil {
			logger.Warn("no existing snapshot found, creating a new one", zap.Error(err))
		} else {
			kb = loaded
		}
	}
	if kb == nil {
		kb = knowledge.NewKnowledgeBase(embedder.Dimensions(), cfg.Knowledge.Embedding.Model)
	}

	ctx := context.Background()
	start := time.Now()
	total := 0

	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Fatal("failed to read file", zap.String("file", path), zap.Error(err))
		}

		chunks := knowledge.ChunkText(string(data), cfg.Knowledge.ChunkSize, cfg.Knowledge.ChunkOverlap)
		logger.Info("chunked document",
			zap.String("file", path),
			zap.Int("chunks", len(chunks)))

		source := filepath.Base(path)
		for i, text := range chunks {
			vec, err := embedder.Embed(ctx, text)
			if err != nil {
				logger.Fatal("embedding failed",
					zap.String("file", path),
					zap.Int("chunk", i),
					zap.Error(err))
			}
			if err := kb.Add(knowledge.Chunk{Text: text, Source: source}, vec); err != nil {
				logger.Fatal("failed to add chunk", zap.Error(err))
			}
		}
		total += len(chunks)
	}

	if err := knowledge.SaveSnapshot(kb, cfg.Knowledge.SnapshotDir); err != nil {
		logger.Fatal("failed to save snapshot", zap.Error(err))
	}

	logger.Info("ingestion complete",
		zap.Int("new_chunks", total),
		zap.Int("total_chunks", kb.Size()),
		zap.Int("dimension", kb.Dim()),
		zap.Duration("elapsed", time.Since(start)),
		zap.String("snapshot_dir", cfg.Knowledge.SnapshotDir))
}
