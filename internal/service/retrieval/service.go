package retrieval

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/mindharbor/backend/internal/logger"
	"github.com/zhouzirui/mindharbor/backend/internal/model/chat"
	"github.com/zhouzirui/mindharbor/backend/internal/model/knowledge"
)

// ErrRetrievalFailed 表示向量检索源调用失败，本轮对话无法继续。
var ErrRetrievalFailed = errors.New("knowledge retrieval failed")

// MetaSource 是文档元数据中记录来源路径的键。
const MetaSource = "source"

// Service 组合检索源与过滤参数。
type Service struct {
	retriever retriever.Retriever
	params    Params
	log       *logger.Logger
}

// NewService 创建检索服务。
func NewService(r retriever.Retriever, params Params, log *logger.Logger) *Service {
	return &Service{
		retriever: r,
		params:    params,
		log:       logger.OrNop(log).With("component", "retrieval"),
	}
}

// Retrieve 取回候选片段并按阶段与距离过滤。
func (s *Service) Retrieve(ctx context.Context, query string, stage chat.Stage) ([]knowledge.Fragment, error) {
	k := s.params.CandidateCount(stage)
	docs, err := s.retriever.Retrieve(ctx, query, retriever.WithTopK(k))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRetrievalFailed, err)
	}

	candidates := make([]knowledge.Fragment, 0, len(docs))
	for _, doc := range docs {
		candidates = append(candidates, FromDocument(doc))
	}

	kept := s.params.Filter(candidates, stage)
	distances := make([]float64, 0, len(kept))
	for _, f := range kept {
		distances = append(distances, f.Distance)
	}
	s.log.Debug("knowledge retrieved",
		"stage", stage,
		"candidates", len(candidates),
		"kept", len(kept),
		"distances", distances,
	)
	return kept, nil
}

// FromDocument 把检索文档转换为知识片段，文档分数即余弦距离。
func FromDocument(doc *schema.Document) knowledge.Fragment {
	if doc == nil {
		return knowledge.Fragment{}
	}
	source, _ := doc.MetaData[MetaSource].(string)
	return knowledge.Fragment{
		ID:       doc.ID,
		Text:     doc.Content,
		Distance: doc.Score(),
		Source:   source,
	}
}
