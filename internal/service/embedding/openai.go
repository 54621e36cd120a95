// Package embedding 提供基于 OpenAI 兼容接口的文本向量化，实现 eino 的 embedding.Embedder。
package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/zhouzirui/mindharbor/backend/internal/config"
)

// ErrEmbeddingUnavailable 表示未配置向量化服务。
var ErrEmbeddingUnavailable = errors.New("embedding service is not configured")

// DefaultBatchSize 是单次请求携带的最大文本数。
const DefaultBatchSize = 96

// embeddingService 是 openai-go 向量化接口的最小子集。
type embeddingService interface {
	New(ctx context.Context, body openai.EmbeddingNewParams, opts ...option.RequestOption) (*openai.CreateEmbeddingResponse, error)
}

// Embedder 调用 OpenAI embeddings 接口，按批次发送文本。
type Embedder struct {
	svc       embeddingService
	model     string
	batchSize int
}

var _ embedding.Embedder = (*Embedder)(nil)

// New 根据配置创建向量化客户端。
func New(cfg config.EmbeddingConfig) (*Embedder, error) {
	if !cfg.Enabled() {
		return nil, ErrEmbeddingUnavailable
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(opts...)
	return newWithService(&client.Embeddings, cfg.Model, DefaultBatchSize), nil
}

func newWithService(svc embeddingService, model string, batchSize int) *Embedder {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Embedder{svc: svc, model: model, batchSize: batchSize}
}

// EmbedStrings 返回与输入顺序一致的向量。
func (e *Embedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	modelName := e.model
	if o := embedding.GetCommonOptions(&embedding.Options{}, opts...); o.Model != nil && *o.Model != "" {
		modelName = *o.Model
	}

	out := make([][]float64, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))
		batch := texts[start:end]

		resp, err := e.svc.New(ctx, openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: batch},
			Model: modelName,
		})
		if err != nil {
			return nil, fmt.Errorf("embed batch %d-%d: %w", start, end, err)
		}
		if len(resp.Data) != len(batch) {
			return nil, fmt.Errorf("embed batch %d-%d: got %d vectors for %d texts", start, end, len(resp.Data), len(batch))
		}

		for _, item := range resp.Data {
			idx := int(item.Index)
			if idx < 0 || idx >= len(batch) {
				return nil, fmt.Errorf("embed batch %d-%d: vector index %d out of range", start, end, idx)
			}
			out[start+idx] = item.Embedding
		}
	}
	return out, nil
}
