package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config 聚合整个服务的配置项，启动时加载一次，之后只读。
type Config struct {
	Server    ServerConfig
	AI        AIConfig
	Embedding EmbeddingConfig
	Knowledge KnowledgeConfig
	Pipeline  PipelineConfig
	Session   SessionConfig
	LogMode   string
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	knowledge, err := loadKnowledgeConfig()
	if err != nil {
		return nil, err
	}

	pipeline, err := loadPipelineConfig()
	if err != nil {
		return nil, err
	}

	session, err := loadSessionConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:    server,
		AI:        ai,
		Embedding: loadEmbeddingConfig(),
		Knowledge: knowledge,
		Pipeline:  pipeline,
		Session:   session,
		LogMode:   getEnvOrDefault("LOG_MODE", "dev"),
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature float64
	MaxTokens   *int
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
// 温度与长度在每次调用时通过 option 覆盖，这里只设置默认值。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + Model 或 AK/SK 组合")
	}

	temperature := float32(c.Temperature)

	var maxTokens *int
	if c.MaxTokens != nil {
		val := *c.MaxTokens
		maxTokens = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   maxTokens,
		Temperature: &temperature,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	cfg := AIConfig{
		APIKey:      strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:   strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:   strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:       strings.TrimSpace(os.Getenv("Model")),
		BaseURL:     getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature: 0.7,
		MaxTokens:   maxTokens,
	}
	if temperature != nil {
		cfg.Temperature = *temperature
	}
	return cfg, nil
}

// EmbeddingConfig 描述向量化服务（OpenAI 兼容接口）配置。
type EmbeddingConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// Enabled 表示是否可以创建向量化客户端。
func (c EmbeddingConfig) Enabled() bool {
	return c.APIKey != "" && c.Model != ""
}

func loadEmbeddingConfig() EmbeddingConfig {
	return EmbeddingConfig{
		APIKey:  strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		Model:   getEnvOrDefault("EMBEDDING_MODEL", "text-embedding-3-small"),
		BaseURL: strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")),
	}
}

// KnowledgeConfig 描述知识库存储与检索参数。
type KnowledgeConfig struct {
	Path                string
	Collection          string
	SimilarityThreshold float64
	TopK                int
	ChunkSize           int
	ChunkOverlap        int
}

func loadKnowledgeConfig() (KnowledgeConfig, error) {
	cfg := KnowledgeConfig{
		Path:                getEnvOrDefault("KB_PATH", "./data/db/knowledge.db"),
		Collection:          getEnvOrDefault("KB_COLLECTION", "mental_health_kb"),
		SimilarityThreshold: 1.2,
		TopK:                6,
		ChunkSize:           800,
		ChunkOverlap:        150,
	}

	threshold, err := parseOptionalFloatEnv("SIMILARITY_THRESHOLD")
	if err != nil {
		return KnowledgeConfig{}, err
	}
	if threshold != nil {
		if *threshold <= 0 {
			return KnowledgeConfig{}, fmt.Errorf("invalid SIMILARITY_THRESHOLD value %v: must be positive", *threshold)
		}
		cfg.SimilarityThreshold = *threshold
	}

	for key, dst := range map[string]*int{
		"TOP_K_RETRIEVAL": &cfg.TopK,
		"CHUNK_SIZE":      &cfg.ChunkSize,
		"CHUNK_OVERLAP":   &cfg.ChunkOverlap,
	} {
		val, err := parseOptionalIntEnv(key)
		if err != nil {
			return KnowledgeConfig{}, err
		}
		if val == nil {
			continue
		}
		if *val < 0 || (*val == 0 && key != "CHUNK_OVERLAP") {
			return KnowledgeConfig{}, fmt.Errorf("invalid %s value %d", key, *val)
		}
		*dst = *val
	}

	if cfg.ChunkOverlap >= cfg.ChunkSize {
		return KnowledgeConfig{}, fmt.Errorf("CHUNK_OVERLAP (%d) must be smaller than CHUNK_SIZE (%d)", cfg.ChunkOverlap, cfg.ChunkSize)
	}
	return cfg, nil
}

// PipelineConfig 控制对话编排中的可选远程调用与缓存规模。
type PipelineConfig struct {
	StageLLMEnabled      bool
	LanguageLLMEnabled   bool
	TranslationCacheSize int
	HistoryWindow        int
	DefaultRegion        string
}

func loadPipelineConfig() (PipelineConfig, error) {
	stageLLM, err := parseBoolEnv("STAGE_LLM_ENABLED", true)
	if err != nil {
		return PipelineConfig{}, err
	}

	languageLLM, err := parseBoolEnv("LANGUAGE_LLM_ENABLED", true)
	if err != nil {
		return PipelineConfig{}, err
	}

	cfg := PipelineConfig{
		StageLLMEnabled:      stageLLM,
		LanguageLLMEnabled:   languageLLM,
		TranslationCacheSize: 1000,
		HistoryWindow:        10,
		DefaultRegion:        strings.ToUpper(strings.TrimSpace(os.Getenv("DEFAULT_REGION"))),
	}

	if size, err := parseOptionalIntEnv("TRANSLATION_CACHE_SIZE"); err != nil {
		return PipelineConfig{}, err
	} else if size != nil {
		if *size < 0 {
			return PipelineConfig{}, fmt.Errorf("invalid TRANSLATION_CACHE_SIZE value %d", *size)
		}
		cfg.TranslationCacheSize = *size
	}

	if window, err := parseOptionalIntEnv("HISTORY_WINDOW"); err != nil {
		return PipelineConfig{}, err
	} else if window != nil {
		if *window < 1 {
			cfg.HistoryWindow = 1
		} else {
			cfg.HistoryWindow = *window
		}
	}

	return cfg, nil
}

// SessionConfig 描述会话语言偏好的存储位置。
type SessionConfig struct {
	RedisAddr string
	TTL       time.Duration
}

func loadSessionConfig() (SessionConfig, error) {
	ttl := 24 * time.Hour
	if raw := strings.TrimSpace(os.Getenv("SESSION_TTL")); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return SessionConfig{}, fmt.Errorf("invalid SESSION_TTL value %q: %w", raw, err)
		}
		ttl = parsed
	}
	return SessionConfig{
		RedisAddr: strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		TTL:       ttl,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
