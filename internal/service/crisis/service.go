package crisis

import (
	"context"

	"github.com/zhouzirui/mindharbor/backend/internal/analysis/risk"
	"github.com/zhouzirui/mindharbor/backend/internal/logger"
	"github.com/zhouzirui/mindharbor/backend/internal/model/chat"
)

// Service 对英文归一化后的消息做危机风险判定，命中时生成安全回复。
type Service struct {
	matcher   *risk.Matcher
	responder *Responder
	log       *logger.Logger
}

// NewService 创建危机判定服务。
func NewService(matcher *risk.Matcher, responder *Responder, log *logger.Logger) *Service {
	if matcher == nil {
		matcher = risk.NewMatcher()
	}
	return &Service{matcher: matcher, responder: responder, log: logger.OrNop(log).With("component", "crisis")}
}

// Assess 只处理英文文本；任一规则命中即判定为高风险。
func (s *Service) Assess(ctx context.Context, conv *chat.Conversation, englishText, userLanguage, region string) chat.RiskAssessment {
	match := s.matcher.Match(englishText)
	if !match.Matched() {
		return chat.RiskAssessment{Level: chat.RiskNone}
	}

	s.log.Warn("crisis pattern matched",
		"session", conversationID(conv),
		"tier", match.Tier.String(),
		"language", userLanguage,
	)
	return chat.RiskAssessment{
		Level:           chat.RiskHigh,
		HasExplicitPlan: match.ExplicitPlan(),
		Response:        s.responder.Build(ctx, conv, match.ExplicitPlan(), userLanguage, region),
	}
}

func conversationID(conv *chat.Conversation) string {
	if conv == nil {
		return ""
	}
	return conv.ID
}

// Fired 判断历史中的用户发言是否曾触发危机规则，用于决定引导阶段能否再次提及求助热线。
func (s *Service) Fired(history []chat.Turn) bool {
	for _, turn := range history {
		if turn.Role != chat.RoleUser {
			continue
		}
		if s.matcher.Match(turn.Text()).Matched() {
			return true
		}
	}
	return false
}
