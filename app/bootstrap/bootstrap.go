package bootstrap

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/aihub/ragbot-go/internal/config"
	"github.com/aihub/ragbot-go/internal/conversation"
	"github.com/aihub/ragbot-go/internal/database"
	"github.com/aihub/ragbot-go/internal/di"
	"github.com/aihub/ragbot-go/internal/engine"
	apperrors "github.com/aihub/ragbot-go/internal/errors"
	"github.com/aihub/ragbot-go/internal/knowledge"
	"github.com/aihub/ragbot-go/internal/logger"
	"github.com/aihub/ragbot-go/internal/messaging"
	"github.com/aihub/ragbot-go/internal/ollama"
)

// App encapsulates lifecycle resources that need to be cleaned up on shutdown.
type App struct {
	cleanupTasks []func() error

	KnowledgeBase *knowledge.KnowledgeBase
	Engine        *engine.Engine
	Manager       *conversation.Manager
}

// Global app instance for controllers to access
var globalApp *App

// GetApp returns the global app instance
func GetApp() *App {
	return globalApp
}

// SetGlobalApp sets the global app instance
func SetGlobalApp(app *App) {
	globalApp = app
}

// Init bootstraps configuration, logger, knowledge base and the QA pipeline
// components required by the Beego application.
func Init() (*App, error) {
	// Load environment variables from .env if present (non-fatal if missing).
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	// Initialize structured logger.
	if err := logger.InitLogger(); err != nil {
		return nil, err
	}

	// Load dynamic configuration.
	if err := config.LoadConfig(); err != nil {
		return nil, err
	}
	cfg := config.AppConfig

	app := &App{}

	// 初始化全局Ollama服务
	ollama.InitGlobalService(cfg.Engine.OllamaURL, cfg.Engine.RequestTimeout)
	logger.Info("Global Ollama service initialized",
		zap.String("url", cfg.Engine.OllamaURL),
		zap.String("model", cfg.Engine.Model))

	// 加载知识库快照。缺失时服务仍可启动，查询会返回IndexNotLoaded。
	kb, err := knowledge.LoadSnapshot(cfg.Knowledge.SnapshotDir)
	if err != nil {
		if apperrors.IsCode(err, apperrors.ErrCodeIndexNotLoaded) {
			logger.Warn("vector snapshot not found, run the ingest job first",
				zap.String("dir", cfg.Knowledge.SnapshotDir))
		} else {
			return nil, err
		}
	}
	app.KnowledgeBase = kb

	// 会话存储：默认进程内，多进程部署切Redis
	var store conversation.SessionStore
	if cfg.Conversation.StoreProvider == "redis" {
		if err := database.InitRedis(); err != nil {
			logger.Warn("Failed to initialize Redis, falling back to memory session store", zap.Error(err))
			store = conversation.NewMemoryStore(cfg.Conversation.MaxHistory)
		} else {
			app.cleanupTasks = append(app.cleanupTasks, func() error {
				database.CloseRedis()
				return nil
			})
			store = conversation.NewRedisStore(
				database.GetRedisClient(),
				time.Duration(cfg.Conversation.TimeoutMinutes)*time.Minute,
				cfg.Conversation.MaxHistory,
			)
		}
	} else {
		store = conversation.NewMemoryStore(cfg.Conversation.MaxHistory)
	}

	embedder := knowledge.NewEmbedder(cfg.Knowledge.Embedding)
	retriever := engine.NewRetriever(kb, embedder,
		cfg.Retrieval.DefaultTopK, cfg.Retrieval.MaxTopK,
		cfg.Retrieval.MinScore, cfg.Retrieval.CacheSize)
	finisher := engine.NewFinisher(cfg.Notice.LinkText)

	app.Engine = engine.NewEngine(retriever, finisher,
		ollama.GetGlobalService(), cfg.Engine.Model, cfg.Engine.PerformanceMode)
	app.Manager = conversation.NewManager(store,
		cfg.Conversation.TimeoutMinutes, cfg.Conversation.MaxHistory)

	// 注册依赖注入容器，控制器经工厂解析
	container := di.InitContainer()
	if err := container.Provide(func() *engine.Engine { return app.Engine }); err != nil {
		return nil, err
	}
	if err := container.Provide(func() *conversation.Manager { return app.Manager }); err != nil {
		return nil, err
	}
	if err := container.Provide(func() *knowledge.KnowledgeBase { return app.KnowledgeBase }); err != nil {
		return nil, err
	}
	if err := container.Provide(func() messaging.Sender { return messaging.NewLogSender() }); err != nil {
		return nil, err
	}

	// 索引就绪时后台预热，不阻塞启动
	if kb != nil && kb.Size() > 0 {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			app.Engine.WarmUp(ctx)
		}()
	}

	return app, nil
}

// Shutdown flushes/logs and closes resources gracefully.
func (a *App) Shutdown() {
	// Execute cleanup tasks in reverse order (best effort).
	for i := len(a.cleanupTasks) - 1; i >= 0; i-- {
		if err := a.cleanupTasks[i](); err != nil {
			log.Printf("Cleanup error: %v\n", err)
		}
	}

	// Flush logger buffers.
	logger.Sync()
}
