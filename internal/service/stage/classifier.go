// Package stage 判定对话所处阶段。远程实现调用模型，失败或回复无法解析时
// 交给规则实现兜底，两者都实现 Classifier。
package stage

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/zhouzirui/mindharbor/backend/internal/logger"
	"github.com/zhouzirui/mindharbor/backend/internal/model/chat"
	"github.com/zhouzirui/mindharbor/backend/internal/service/ai"
)

// Strategy 标识阶段结果来自哪种实现。
type Strategy string

const (
	StrategyRemote    Strategy = "remote"
	StrategyHeuristic Strategy = "heuristic"
)

// Result 是阶段判定结果。
type Result struct {
	Stage    chat.Stage
	Strategy Strategy
}

// Classifier 根据英文消息与历史判定阶段。
type Classifier interface {
	Classify(ctx context.Context, englishText string, history []chat.Turn) (Result, error)
}

// Heuristic 是基于关键词的确定性规则。
type Heuristic struct{}

var adviceKeywords = []string{
	"how to", "how do i", "how can i", "what should", "suggest", "advice", "help me", "cope", "deal with",
	"tips", "treatment", "therapy", "resources",
	"怎么办", "如何", "建议", "方法", "帮助", "治疗", "资源",
}

var emotionKeywords = []string{
	"feel", "sad", "anxious", "depressed", "lonely", "upset", "scared", "stressed",
	"感觉", "感到", "觉得", "难过", "焦虑", "抑郁",
}

// Classify 无历史或消息过短时为倾听阶段，其次按求助与情绪关键词判断。
func (Heuristic) Classify(_ context.Context, englishText string, history []chat.Turn) (Result, error) {
	message := strings.ToLower(strings.TrimSpace(englishText))
	result := Result{Stage: chat.StageListening, Strategy: StrategyHeuristic}

	if len(history) == 0 || utf8.RuneCountInString(message) <= 10 {
		return result, nil
	}
	if containsAny(message, adviceKeywords) {
		result.Stage = chat.StageGuidance
		return result, nil
	}
	if containsAny(message, emotionKeywords) {
		result.Stage = chat.StageUnderstanding
	}
	return result, nil
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// Remote 通过模型判定阶段。
type Remote struct {
	runner   *ai.Runner
	fallback Classifier
	log      *logger.Logger
}

// NewRemote 创建远程分类器，fallback 为 nil 时使用 Heuristic。
func NewRemote(runner *ai.Runner, fallback Classifier, log *logger.Logger) *Remote {
	if fallback == nil {
		fallback = Heuristic{}
	}
	return &Remote{runner: runner, fallback: fallback, log: logger.OrNop(log).With("component", "stage")}
}

const (
	historyTurns   = 3
	historySnippet = 150
)

// Classify 调用模型；调用失败或回复不含阶段名时回退到规则实现。
func (r *Remote) Classify(ctx context.Context, englishText string, history []chat.Turn) (Result, error) {
	if r.runner == nil {
		return r.fallback.Classify(ctx, englishText, history)
	}

	reply, err := r.runner.Run(ctx, ai.Instruction{
		System:      stageSystemPrompt,
		Query:       fmt.Sprintf(stageUserPrompt, englishText, summarizeHistory(history)),
		Temperature: 0.1,
		MaxTokens:   10,
	})
	if err != nil {
		r.log.Warn("stage classification call failed, use fallback", "error", err)
		return r.fallback.Classify(ctx, englishText, history)
	}

	stage, ok := chat.ParseStage(reply)
	if !ok {
		r.log.Warn("unexpected stage reply, use fallback", "reply", reply)
		return r.fallback.Classify(ctx, englishText, history)
	}
	return Result{Stage: stage, Strategy: StrategyRemote}, nil
}

func summarizeHistory(history []chat.Turn) string {
	recent := chat.TrimHistory(history, historyTurns)
	if len(recent) == 0 {
		return "This is the first message of the conversation."
	}

	var b strings.Builder
	b.WriteString("Conversation history (last 3 turns):\n")
	for _, turn := range recent {
		role := "AI"
		if turn.Role == chat.RoleUser {
			role = "User"
		}
		content := turn.Text()
		if utf8.RuneCountInString(content) > historySnippet {
			content = string([]rune(content)[:historySnippet])
		}
		fmt.Fprintf(&b, "- %s: %s\n", role, content)
	}
	return strings.TrimRight(b.String(), "\n")
}

const stageSystemPrompt = "You are a conversation stage analyzer. Return only the stage name: empathy, reflection, or support."

const stageUserPrompt = `Decide which stage this supportive conversation is in.

Stages:
1. empathy: the user is just starting to open up and needs their feelings acknowledged. Greetings, first tentative disclosures, short or uncertain messages.
2. reflection: the user has clearly described feelings or a specific problem and needs to feel understood and know others have been through it too.
3. support: the user is asking what to do, how to cope, for suggestions, resources or treatment, or the conversation has gone deep enough that they need next steps.

Current user message: %s

%s

Return exactly one word: empathy, reflection or support.`
