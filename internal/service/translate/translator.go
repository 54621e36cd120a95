package translate

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	rules "github.com/zhouzirui/mindharbor/backend/internal/analysis/language"
	"github.com/zhouzirui/mindharbor/backend/internal/logger"
	"github.com/zhouzirui/mindharbor/backend/internal/model/chat"
	"github.com/zhouzirui/mindharbor/backend/internal/service/ai"
)

// Detector 是翻译前确定源语言所需的能力。
type Detector interface {
	Detect(ctx context.Context, conv *chat.Conversation, text string, updatePreferred bool) string
}

const (
	toEnglishSystem = "You are a professional translator. Translate the user's message into English accurately, preserving its meaning, tone and emotional nuance. Return only the translation."
	toUserSystem    = "You are a professional translator. Translate the English text into %s accurately, preserving meaning, tone, emotional nuance and a natural conversational style. You MUST translate every phone number, emergency contact and resource entry completely. Never omit or shorten any emergency contact detail. Return only the translation."
	toUserQuery     = "Translate the following English text into %s. Keep ALL emergency contact numbers and resource information:\n\n%s"

	unknownTarget  = "the same language as the user's input"
	detectSampleLn = 100
)

// Translator 负责用户语言与英文之间的双向翻译。失败时原样返回输入，从不向调用方报错。
type Translator struct {
	runner   *ai.Runner
	detector Detector
	cache    *Cache
	log      *logger.Logger
}

// NewTranslator 创建翻译器。runner 为 nil 时所有翻译退化为原样返回。
func NewTranslator(runner *ai.Runner, detector Detector, cache *Cache, log *logger.Logger) *Translator {
	return &Translator{
		runner:   runner,
		detector: detector,
		cache:    cache,
		log:      logger.OrNop(log).With("component", "translate"),
	}
}

// ToEnglish 把文本翻译为英文。sourceLang 为空时先识别语言。
func (t *Translator) ToEnglish(ctx context.Context, conv *chat.Conversation, text, sourceLang string) string {
	if sourceLang == "" && t.detector != nil && strings.TrimSpace(text) != "" {
		sourceLang = t.detector.Detect(ctx, conv, text, true)
	}
	if sourceLang == rules.English {
		return text
	}
	if utf8.RuneCountInString(strings.TrimSpace(text)) < 2 {
		return text
	}

	if cached, ok := t.cache.Get(ToEnglish, sourceLang, text); ok {
		return cached
	}

	translated, err := t.run(ctx, ai.Instruction{
		System:      toEnglishSystem,
		Query:       "Translate the following text to English:\n\n" + text,
		Temperature: 0.1,
		MaxTokens:   500,
	})
	if err != nil {
		t.log.Warn("translation to English failed, using original text", "source", sourceLang, "error", err)
		return text
	}

	t.cache.Put(ToEnglish, sourceLang, text, translated)
	return translated
}

// ToUserLanguage 把英文文本翻译为目标语言，目标为英文或文本为空时原样返回。
func (t *Translator) ToUserLanguage(ctx context.Context, conv *chat.Conversation, text, targetLang string) string {
	if targetLang == "" || targetLang == rules.English {
		return text
	}
	if strings.TrimSpace(text) == "" {
		return text
	}

	if cached, ok := t.cache.Get(ToUser, targetLang, text); ok {
		return cached
	}

	name := t.targetName(ctx, conv, text, targetLang)
	translated, err := t.run(ctx, ai.Instruction{
		System:      fmt.Sprintf(toUserSystem, name),
		Query:       fmt.Sprintf(toUserQuery, name, text),
		Temperature: 0.1,
		MaxTokens:   2000,
	})
	if err != nil {
		t.log.Warn("translation to user language failed, using English text", "target", targetLang, "error", err)
		return text
	}

	t.cache.Put(ToUser, targetLang, text, translated)
	return translated
}

func (t *Translator) targetName(ctx context.Context, conv *chat.Conversation, text, targetLang string) string {
	if targetLang != rules.Other {
		if name := rules.Name(targetLang); name != "" {
			return name
		}
		return targetLang
	}
	if t.detector != nil {
		sample := text
		if utf8.RuneCountInString(sample) > detectSampleLn {
			sample = string([]rune(sample)[:detectSampleLn])
		}
		detected := t.detector.Detect(ctx, conv, sample, false)
		if name := rules.Name(detected); name != "" && detected != rules.English {
			return name
		}
	}
	return unknownTarget
}

func (t *Translator) run(ctx context.Context, in ai.Instruction) (string, error) {
	if t.runner == nil {
		return "", fmt.Errorf("translation model not configured")
	}
	return t.runner.Run(ctx, in)
}
