// Package chat 串联语言识别、翻译、危机判定、情绪分析、阶段识别、检索与生成，完成一轮对话。
package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/zhouzirui/mindharbor/backend/internal/analysis/emotion"
	"github.com/zhouzirui/mindharbor/backend/internal/analysis/language"
	"github.com/zhouzirui/mindharbor/backend/internal/logger"
	"github.com/zhouzirui/mindharbor/backend/internal/model/chat"
	"github.com/zhouzirui/mindharbor/backend/internal/model/knowledge"
	"github.com/zhouzirui/mindharbor/backend/internal/service/ai"
	"github.com/zhouzirui/mindharbor/backend/internal/service/retrieval"
	"github.com/zhouzirui/mindharbor/backend/internal/service/stage"
)

// ErrEmptyMessage 表示请求消息为空。
var ErrEmptyMessage = errors.New("message is required")

// NoKnowledgeResponse 是理解与引导阶段检索不到相关内容时的英文回复，返回前翻译为用户语言。
const NoKnowledgeResponse = "I understand your question. However, I don't currently have content in my knowledge base that directly relates to it. To make sure I can give you accurate and helpful support, I suggest:\n\n" +
	"1. Rephrase your question using more specific keywords\n" +
	"2. Break the question down into smaller parts\n" +
	"3. If you need urgent mental health support, please reach out to a mental health professional\n\n" +
	"If you have other mental health questions, I'm happy to help by finding relevant information in my knowledge base."

// LanguageDetector 识别文本语言。
type LanguageDetector interface {
	Detect(ctx context.Context, conv *chat.Conversation, text string, updatePreferred bool) string
}

// Translator 在用户语言与英文之间翻译，失败时原样返回。
type Translator interface {
	ToEnglish(ctx context.Context, conv *chat.Conversation, text, sourceLang string) string
	ToUserLanguage(ctx context.Context, conv *chat.Conversation, text, targetLang string) string
}

// CrisisAssessor 判定危机风险。
type CrisisAssessor interface {
	Assess(ctx context.Context, conv *chat.Conversation, englishText, userLanguage, region string) chat.RiskAssessment
	Fired(history []chat.Turn) bool
}

// Retriever 取回过滤后的知识片段。
type Retriever interface {
	Retrieve(ctx context.Context, query string, stage chat.Stage) ([]knowledge.Fragment, error)
}

// Generator 生成最终回复。
type Generator interface {
	GenerateResponse(ctx context.Context, req ai.Request) (string, error)
}

// Request 是一轮对话的输入。
type Request struct {
	Message string
	History []chat.Turn
	Region  string
}

// Result 是一轮对话的输出。Stage 在高风险时为空。
type Result struct {
	Response        string             `json:"response"`
	Sources         []knowledge.Source `json:"sources"`
	Stage           chat.Stage         `json:"stage,omitempty"`
	RiskLevel       chat.RiskLevel     `json:"risk_level"`
	EmotionAnalysis *emotion.Analysis  `json:"emotion_analysis,omitempty"`
	HasExplicitPlan bool               `json:"has_explicit_plan"`
}

// Dependencies 汇总编排所需的协作者。
type Dependencies struct {
	Detector      LanguageDetector
	Translator    Translator
	Crisis        CrisisAssessor
	Stages        stage.Classifier
	Retriever     Retriever
	Generator     Generator
	HistoryWindow int
}

// Orchestrator 负责单轮对话的完整流程。除检索与生成外，子调用失败都按各自的降级策略处理。
type Orchestrator struct {
	deps Dependencies
	log  *logger.Logger
}

// NewOrchestrator 创建编排器。
func NewOrchestrator(deps Dependencies, log *logger.Logger) *Orchestrator {
	if deps.HistoryWindow <= 0 {
		deps.HistoryWindow = 10
	}
	if deps.Stages == nil {
		deps.Stages = stage.Heuristic{}
	}
	return &Orchestrator{deps: deps, log: logger.OrNop(log).With("component", "orchestrator")}
}

// Chat 处理一条用户消息。conv 承载会话语言偏好，调用结束后由调用方决定是否写回。
func (o *Orchestrator) Chat(ctx context.Context, conv *chat.Conversation, req Request) (Result, error) {
	if strings.TrimSpace(req.Message) == "" {
		return Result{}, ErrEmptyMessage
	}
	started := time.Now()

	userLang := o.deps.Detector.Detect(ctx, conv, req.Message, true)
	englishMessage := o.deps.Translator.ToEnglish(ctx, conv, req.Message, userLang)
	history := o.normalizeHistory(ctx, conv, chat.TrimHistory(req.History, o.deps.HistoryWindow), userLang)

	assessment := o.deps.Crisis.Assess(ctx, conv, englishMessage, userLang, req.Region)
	if assessment.High() {
		o.log.Info("crisis response returned",
			"session", conversationID(conv),
			"language", userLang,
			"explicit_plan", assessment.HasExplicitPlan,
		)
		return Result{
			Response:        assessment.Response,
			Sources:         []knowledge.Source{},
			RiskLevel:       chat.RiskHigh,
			HasExplicitPlan: assessment.HasExplicitPlan,
		}, nil
	}

	analysis := emotion.Analyze(englishMessage)

	classified, err := o.deps.Stages.Classify(ctx, englishMessage, history)
	if err != nil {
		o.log.Warn("stage classification failed, using heuristic", "error", err)
		classified, _ = stage.Heuristic{}.Classify(ctx, englishMessage, history)
	}
	current := classified.Stage

	// 倾听阶段不检索，知识库故障在这一阶段不会暴露给用户
	var fragments []knowledge.Fragment
	if current != chat.StageListening {
		query := retrieval.BuildQuery(englishMessage, current, analysis.Primary())
		fragments, err = o.deps.Retriever.Retrieve(ctx, query, current)
		if err != nil {
			return Result{}, err
		}
		if len(fragments) == 0 {
			o.log.Info("no relevant knowledge", "session", conversationID(conv), "stage", current)
			return Result{
				Response:        o.deps.Translator.ToUserLanguage(ctx, conv, NoKnowledgeResponse, userLang),
				Sources:         []knowledge.Source{},
				Stage:           current,
				RiskLevel:       assessment.Level,
				EmotionAnalysis: &analysis,
				HasExplicitPlan: assessment.HasExplicitPlan,
			}, nil
		}
	}

	generated, err := o.deps.Generator.GenerateResponse(ctx, ai.Request{
		Stage:        current,
		Message:      englishMessage,
		Fragments:    fragments,
		History:      history,
		UserLanguage: userLang,
		CrisisFired:  o.deps.Crisis.Fired(history),
	})
	if err != nil {
		return Result{}, err
	}

	target := targetLanguage(userLang, conv)
	response := o.reconcileLanguage(ctx, conv, generated, target)

	sources := make([]knowledge.Source, 0, len(fragments))
	for _, f := range fragments {
		sources = append(sources, f.ToSource())
	}

	o.log.Info("chat turn completed",
		"session", conversationID(conv),
		"language", userLang,
		"stage", current,
		"stage_strategy", classified.Strategy,
		"emotion", analysis.Primary(),
		"intensity", analysis.Intensity,
		"sources", len(sources),
		"message_length", len(req.Message),
		"response_length", len(response),
		"elapsed", time.Since(started),
	)

	return Result{
		Response:        response,
		Sources:         sources,
		Stage:           current,
		RiskLevel:       assessment.Level,
		EmotionAnalysis: &analysis,
		HasExplicitPlan: assessment.HasExplicitPlan,
	}, nil
}

// normalizeHistory 为每条历史补上英文版本。用户发言按本轮识别的语言翻译；
// 助手发言先识别语言（不更新偏好），非英文时才翻译。已带英文版本的轮次直接复用。
func (o *Orchestrator) normalizeHistory(ctx context.Context, conv *chat.Conversation, history []chat.Turn, userLang string) []chat.Turn {
	if len(history) == 0 {
		return nil
	}

	out := make([]chat.Turn, len(history))
	for i, turn := range history {
		out[i] = turn
		if turn.ContentNormalized != "" {
			continue
		}
		switch turn.Role {
		case chat.RoleUser:
			out[i].ContentNormalized = o.deps.Translator.ToEnglish(ctx, conv, turn.Content, userLang)
		default:
			lang := o.deps.Detector.Detect(ctx, conv, turn.Content, false)
			if lang == language.English {
				out[i].ContentNormalized = turn.Content
			} else {
				out[i].ContentNormalized = o.deps.Translator.ToEnglish(ctx, conv, turn.Content, lang)
			}
		}
	}
	return out
}

// reconcileLanguage 确保回复使用目标语言：模型已按目标语言作答时直接返回，否则再翻译一次。
func (o *Orchestrator) reconcileLanguage(ctx context.Context, conv *chat.Conversation, generated, target string) string {
	if target == language.English {
		return generated
	}
	if detected := o.deps.Detector.Detect(ctx, conv, generated, false); detected == target {
		return generated
	}
	return o.deps.Translator.ToUserLanguage(ctx, conv, generated, target)
}

func targetLanguage(userLang string, conv *chat.Conversation) string {
	if userLang != "" {
		return userLang
	}
	if preferred := conv.Preferred(); preferred != "" {
		return preferred
	}
	return language.English
}

func conversationID(conv *chat.Conversation) string {
	if conv == nil {
		return ""
	}
	return conv.ID
}
