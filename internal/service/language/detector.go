package language

import (
	"context"
	"strings"
	"unicode/utf8"

	rules "github.com/zhouzirui/mindharbor/backend/internal/analysis/language"
	"github.com/zhouzirui/mindharbor/backend/internal/logger"
	"github.com/zhouzirui/mindharbor/backend/internal/model/chat"
	"github.com/zhouzirui/mindharbor/backend/internal/service/ai"
)

const (
	detectSystemPrompt = "You are a language detection expert. Identify the language of the given text and return ONLY its ISO 639-1 code (en, zh, es, fr, de, it, pt, ru, ja, ko, ar, hi, ...). Return the two-letter code and nothing else."
	detectMaxInput     = 500
)

// Detector 识别文本语言，并维护会话级的偏好语言。
type Detector struct {
	runner *ai.Runner
	log    *logger.Logger
}

// NewDetector 创建识别器。runner 为 nil 时只使用规则兜底。
func NewDetector(runner *ai.Runner, log *logger.Logger) *Detector {
	return &Detector{runner: runner, log: logger.OrNop(log).With("component", "language")}
}

// Enabled 表示是否启用模型识别。
func (d *Detector) Enabled() bool {
	return d != nil && d.runner != nil
}

// Detect 返回文本的语言代码。updatePreferred 为真且结果可信时写回会话偏好；
// 检测系统自身生成的文本时必须传 false。
func (d *Detector) Detect(ctx context.Context, conv *chat.Conversation, text string, updatePreferred bool) string {
	if strings.TrimSpace(text) == "" {
		return preferredOr(conv, rules.English)
	}

	if code, ok := rules.FastPath(text); ok {
		return d.resolve(conv, code, updatePreferred)
	}

	if !d.Enabled() {
		return d.fallback(conv, text, updatePreferred)
	}

	reply, err := d.runner.Run(ctx, ai.Instruction{
		System:      detectSystemPrompt,
		Query:       "Detect the language of this text and return only the ISO 639-1 code:\n\n" + truncate(text, detectMaxInput),
		Temperature: 0.1,
		MaxTokens:   5,
	})
	if err != nil {
		d.log.Warn("language detection call failed, use fallback", "error", err)
		return d.fallback(conv, text, updatePreferred)
	}

	code, ok := rules.ParseReply(reply)
	if !ok {
		d.log.Debug("unrecognised detection reply", "reply", reply)
		return preferredOr(conv, rules.English)
	}
	return d.resolve(conv, code, updatePreferred)
}

func (d *Detector) fallback(conv *chat.Conversation, text string, updatePreferred bool) string {
	if code, ok := rules.DetectScript(text); ok {
		return d.resolve(conv, code, updatePreferred)
	}
	return preferredOr(conv, rules.Other)
}

func (d *Detector) resolve(conv *chat.Conversation, code string, updatePreferred bool) string {
	if updatePreferred {
		conv.SetPreferred(code)
	}
	return code
}

func preferredOr(conv *chat.Conversation, def string) string {
	if p := conv.Preferred(); p != "" {
		return p
	}
	return def
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
