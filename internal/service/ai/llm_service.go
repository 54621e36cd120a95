package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/zhouzirui/mindharbor/backend/internal/logger"
	"github.com/zhouzirui/mindharbor/backend/internal/model/chat"
	"github.com/zhouzirui/mindharbor/backend/internal/model/knowledge"
)

// ErrGenerationFailed 表示最终回复生成失败，该轮对话不可降级。
var ErrGenerationFailed = errors.New("response generation failed")

// Service 负责阶段化的最终回复生成。
type Service struct {
	runner  *Runner
	prompts *PromptManager
	log     *logger.Logger
}

// NewService creates a new AI service instance
func NewService(runner *Runner, prompts *PromptManager, log *logger.Logger) *Service {
	return &Service{
		runner:  runner,
		prompts: prompts,
		log:     logger.OrNop(log).With("component", "generation"),
	}
}

// Request 是一次回复生成的输入，消息与历史均已归一化为英文。
type Request struct {
	Stage        chat.Stage
	Message      string
	Fragments    []knowledge.Fragment
	History      []chat.Turn
	UserLanguage string
	CrisisFired  bool
}

// GenerateResponse 组装提示词并调用模型。
func (s *Service) GenerateResponse(ctx context.Context, req Request) (string, error) {
	spec := s.prompts.BuildPrompt(req.Stage, req.Message, req.Fragments, req.History, req.UserLanguage, req.CrisisFired)

	content, err := s.runner.Run(ctx, spec.Instruction())
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}

	s.log.Debug("generated response",
		"stage", req.Stage,
		"fragments", len(req.Fragments),
		"max_tokens", spec.MaxTokens,
		"length", len(content),
	)
	return content, nil
}
