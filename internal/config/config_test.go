package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "ARK_TEMPERATURE", "ARK_MAX_TOKENS", "SIMILARITY_THRESHOLD", "TOP_K_RETRIEVAL",
		"CHUNK_SIZE", "CHUNK_OVERLAP", "STAGE_LLM_ENABLED", "LANGUAGE_LLM_ENABLED",
		"TRANSLATION_CACHE_SIZE", "HISTORY_WINDOW", "DEFAULT_REGION", "SESSION_TTL",
		"KB_PATH", "KB_COLLECTION", "EMBEDDING_MODEL", "REDIS_ADDR",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.InDelta(t, 0.7, cfg.AI.Temperature, 1e-9)
	assert.Nil(t, cfg.AI.MaxTokens)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedding.Model)
	assert.Equal(t, "./data/db/knowledge.db", cfg.Knowledge.Path)
	assert.Equal(t, "mental_health_kb", cfg.Knowledge.Collection)
	assert.InDelta(t, 1.2, cfg.Knowledge.SimilarityThreshold, 1e-9)
	assert.Equal(t, 6, cfg.Knowledge.TopK)
	assert.Equal(t, 800, cfg.Knowledge.ChunkSize)
	assert.Equal(t, 150, cfg.Knowledge.ChunkOverlap)
	assert.True(t, cfg.Pipeline.StageLLMEnabled)
	assert.True(t, cfg.Pipeline.LanguageLLMEnabled)
	assert.Equal(t, 1000, cfg.Pipeline.TranslationCacheSize)
	assert.Equal(t, 10, cfg.Pipeline.HistoryWindow)
	assert.Empty(t, cfg.Pipeline.DefaultRegion)
	assert.Equal(t, 24*time.Hour, cfg.Session.TTL)
	assert.Empty(t, cfg.Session.RedisAddr)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "127.0.0.1:9000")
	t.Setenv("ARK_TEMPERATURE", "0.3")
	t.Setenv("SIMILARITY_THRESHOLD", "0.9")
	t.Setenv("TOP_K_RETRIEVAL", "4")
	t.Setenv("STAGE_LLM_ENABLED", "false")
	t.Setenv("DEFAULT_REGION", " bc ")
	t.Setenv("SESSION_TTL", "2h")
	t.Setenv("HISTORY_WINDOW", "0")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.InDelta(t, 0.3, cfg.AI.Temperature, 1e-9)
	assert.InDelta(t, 0.9, cfg.Knowledge.SimilarityThreshold, 1e-9)
	assert.Equal(t, 4, cfg.Knowledge.TopK)
	assert.False(t, cfg.Pipeline.StageLLMEnabled)
	assert.Equal(t, "BC", cfg.Pipeline.DefaultRegion)
	assert.Equal(t, 2*time.Hour, cfg.Session.TTL)
	assert.Equal(t, 1, cfg.Pipeline.HistoryWindow)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"ARK_TEMPERATURE":      "warm",
		"TOP_K_RETRIEVAL":      "0",
		"SIMILARITY_THRESHOLD": "-1",
		"STAGE_LLM_ENABLED":    "maybe",
		"SESSION_TTL":          "forever",
		"PORT":                 "80 80",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadRejectsOverlapLargerThanChunk(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "100")
	t.Setenv("CHUNK_OVERLAP", "100")

	_, err := Load()
	assert.Error(t, err)
}

func TestAIConfigEnabled(t *testing.T) {
	assert.False(t, AIConfig{}.Enabled())
	assert.False(t, AIConfig{APIKey: "k"}.Enabled())
	assert.True(t, AIConfig{APIKey: "k", Model: "m"}.Enabled())
	assert.True(t, AIConfig{AccessKey: "a", SecretKey: "s", Model: "m"}.Enabled())
}
