package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server       ServerConfig
	Redis        RedisConfig
	Engine       EngineConfig
	Knowledge    KnowledgeConfig
	Retrieval    RetrievalConfig
	Conversation ConversationConfig
	Notice       NoticeConfig
	Webhook      WebhookConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type RedisConfig struct {
	Host     string
	Port     string
	DB       int
	Password string
}

// EngineConfig 生成引擎配置（Ollama端点与性能模式）
type EngineConfig struct {
	OllamaURL       string
	Model           string
	PerformanceMode string // speed | quality | balanced
	RequestTimeout  int    // 秒
}

// KnowledgeConfig 知识库配置（分块、快照、向量化）
type KnowledgeConfig struct {
	SnapshotDir  string
	ChunkSize    int // 每块词数
	ChunkOverlap int
	Embedding    EmbeddingConfig
}

type EmbeddingConfig struct {
	Provider   string // ollama | openai
	Model      string
	APIKey     string
	Dimensions int
}

// RetrievalConfig 检索配置
type RetrievalConfig struct {
	DefaultTopK int
	MaxTopK     int
	MinScore    float64
	CacheSize   int
}

// ConversationConfig 会话配置
type ConversationConfig struct {
	MaxHistory     int
	TimeoutMinutes int
	StoreProvider  string // memory | redis
}

// NoticeConfig 补充信息配置（每会话最多展示一次）
type NoticeConfig struct {
	LinkText string
}

// WebhookConfig 消息通道Webhook配置
type WebhookConfig struct {
	Secret string
}

var AppConfig *Config

func LoadConfig() error {
	// 设置默认值
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", "6379")
	viper.SetDefault("redis.db", 0)

	// 引擎配置默认值
	viper.SetDefault("engine.ollama_url", "http://localhost:11435")
	viper.SetDefault("engine.model", "mistral")
	viper.SetDefault("engine.performance_mode", "balanced")
	viper.SetDefault("engine.request_timeout", 180)

	// 知识库配置默认值
	viper.SetDefault("knowledge.snapshot_dir", "./vector_store")
	viper.SetDefault("knowledge.chunk_size", 300)
	viper.SetDefault("knowledge.chunk_overlap", 50)
	viper.SetDefault("knowledge.embedding.provider", "ollama")
	viper.SetDefault("knowledge.embedding.model", "all-minilm")
	viper.SetDefault("knowledge.embedding.dimensions", 384)

	// 检索配置默认值
	viper.SetDefault("retrieval.default_top_k", 3)
	viper.SetDefault("retrieval.max_top_k", 10)
	viper.SetDefault("retrieval.min_score", 0.1)
	viper.SetDefault("retrieval.cache_size", 100)

	// 会话配置默认值
	viper.SetDefault("conversation.max_history", 10)
	viper.SetDefault("conversation.timeout_minutes", 30)
	viper.SetDefault("conversation.store_provider", "memory")

	viper.SetDefault("notice.link_text",
		"For community support and to connect with others, visit: vitiligosupportgroup.com")

	// 读取环境变量
	viper.SetEnvPrefix("RAGBOT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// 兼容常用环境变量
	if port := os.Getenv("PORT"); port != "" {
		viper.Set("server.port", port)
	}
	if redisHost := os.Getenv("REDIS_HOST"); redisHost != "" {
		viper.Set("redis.host", redisHost)
	}
	if redisPort := os.Getenv("REDIS_PORT"); redisPort != "" {
		viper.Set("redis.port", redisPort)
	}
	if ollamaURL := os.Getenv("OLLAMA_URL"); ollamaURL != "" {
		viper.Set("engine.ollama_url", ollamaURL)
	}
	if model := os.Getenv("GENERATION_MODEL"); model != "" {
		viper.Set("engine.model", model)
	}
	if openaiKey := os.Getenv("OPENAI_API_KEY"); openaiKey != "" {
		viper.Set("knowledge.embedding.api_key", openaiKey)
	}
	if provider := os.Getenv("EMBEDDING_PROVIDER"); provider != "" {
		viper.Set("knowledge.embedding.provider", provider)
	}
	if secret := os.Getenv("WEBHOOK_SECRET"); secret != "" {
		viper.Set("webhook.secret", secret)
	}
	if sessionStore := os.Getenv("SESSION_STORE"); sessionStore != "" {
		viper.Set("conversation.store_provider", sessionStore)
	}

	AppConfig = &Config{
		Server: ServerConfig{
			Port: viper.GetString("server.port"),
			Env:  viper.GetString("server.env"),
		},
		Redis: RedisConfig{
			Host:     viper.GetString("redis.host"),
			Port:     viper.GetString("redis.port"),
			DB:       viper.GetInt("redis.db"),
			Password: viper.GetString("redis.password"),
		},
		Engine: EngineConfig{
			OllamaURL:       viper.GetString("engine.ollama_url"),
			Model:           viper.GetString("engine.model"),
			PerformanceMode: viper.GetString("engine.performance_mode"),
			RequestTimeout:  viper.GetInt("engine.request_timeout"),
		},
		Knowledge: KnowledgeConfig{
			SnapshotDir:  viper.GetString("knowledge.snapshot_dir"),
			ChunkSize:    viper.GetInt("knowledge.chunk_size"),
			ChunkOverlap: viper.GetInt("knowledge.chunk_overlap"),
			Embedding: EmbeddingConfig{
				Provider:   viper.GetString("knowledge.embedding.provider"),
				Model:      viper.GetString("knowledge.embedding.model"),
				APIKey:     viper.GetString("knowledge.embedding.api_key"),
				Dimensions: viper.GetInt("knowledge.embedding.dimensions"),
			},
		},
		Retrieval: RetrievalConfig{
			DefaultTopK: viper.GetInt("retrieval.default_top_k"),
			MaxTopK:     viper.GetInt("retrieval.max_top_k"),
			MinScore:    viper.GetFloat64("retrieval.min_score"),
			CacheSize:   viper.GetInt("retrieval.cache_size"),
		},
		Conversation: ConversationConfig{
			MaxHistory:     viper.GetInt("conversation.max_history"),
			TimeoutMinutes: viper.GetInt("conversation.timeout_minutes"),
			StoreProvider:  viper.GetString("conversation.store_provider"),
		},
		Notice: NoticeConfig{
			LinkText: viper.GetString("notice.link_text"),
		},
		Webhook: WebhookConfig{
			Secret: viper.GetString("webhook.secret"),
		},
	}

	return nil
}
