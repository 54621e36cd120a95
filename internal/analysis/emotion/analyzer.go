package emotion

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Type 是情绪类别。
type Type string

const (
	Sadness      Type = "sadness"
	Anxiety      Type = "anxiety"
	Depression   Type = "depression"
	Hopelessness Type = "hopelessness"
)

// Intensity 是情绪强度。
type Intensity string

const (
	IntensityLow    Intensity = "low"
	IntensityMedium Intensity = "medium"
	IntensityHigh   Intensity = "high"
)

// RiskLevel 是情绪层面的关注等级，与自杀风险判定相互独立。
type RiskLevel string

const (
	RiskNone   RiskLevel = "none"
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
)

// Score 记录单个类别的得分。
type Score struct {
	Type  Type    `json:"type"`
	Score float64 `json:"score"`
}

// Analysis 是对当前消息的情绪分析结果。
type Analysis struct {
	Intensity               Intensity `json:"intensity"`
	EmotionType             *Type     `json:"emotion_type"`
	RiskLevel               RiskLevel `json:"risk_level"`
	NeedsImmediateAttention bool      `json:"needs_immediate_attention"`
	Detected                []Score   `json:"detected_emotions"`
}

// Primary 返回主情绪，未识别时为空串。
func (a Analysis) Primary() Type {
	if a.EmotionType == nil {
		return ""
	}
	return *a.EmotionType
}

const (
	highModifier     = 2.0
	mediumModifier   = 1.5
	durationModifier = 1.3

	highThreshold   = 3.0
	mediumThreshold = 1.5

	substantiveLength = 30
)

type bucket struct {
	emotion  Type
	keywords []*regexp.Regexp
	high     []*regexp.Regexp
	medium   []*regexp.Regexp
}

// 按顺序评估，同分时靠前的类别胜出。
var buckets = []bucket{
	{
		emotion:  Sadness,
		keywords: words("sad", "sorrow", "grief", "upset"),
		high:     words("really", "extremely", "very"),
		medium:   words("quite", "rather"),
	},
	{
		emotion:  Anxiety,
		keywords: words("anxious", "worried", "afraid", "nervous"),
		high:     words("really", "extremely"),
		medium:   words("quite"),
	},
	{
		emotion:  Depression,
		keywords: words("depressed", "low", "tired", "exhausted"),
		high:     words("seriously", "severely"),
		medium:   words("quite"),
	},
	{
		emotion:  Hopelessness,
		keywords: words("hopeless", "no hope", "worthless"),
		high:     words("totally", "completely"),
		medium:   words("sometimes"),
	},
}

var durationTerms = words("always", "constantly", "for a long time")

// Analyze 基于关键词与修饰词计算情绪强度。输入应为英文归一化后的文本。
func Analyze(text string) Analysis {
	normalized := strings.ToLower(strings.TrimSpace(text))

	duration := 1.0
	if anyMatch(normalized, durationTerms) {
		duration = durationModifier
	}

	var (
		detected []Score
		best     float64
		primary  Type
	)
	for _, b := range buckets {
		hits := 0
		for _, kw := range b.keywords {
			if kw.MatchString(normalized) {
				hits++
			}
		}
		if hits == 0 {
			continue
		}

		modifier := 1.0
		switch {
		case anyMatch(normalized, b.high):
			modifier = highModifier
		case anyMatch(normalized, b.medium):
			modifier = mediumModifier
		}

		score := float64(hits) * modifier * duration
		detected = append(detected, Score{Type: b.emotion, Score: score})
		if score > best {
			best = score
			primary = b.emotion
		}
	}

	result := Analysis{Intensity: IntensityLow, RiskLevel: RiskNone, Detected: detected}
	switch {
	case best >= highThreshold:
		result.Intensity = IntensityHigh
	case best >= mediumThreshold:
		result.Intensity = IntensityMedium
	case best > 0:
		result.Intensity = IntensityLow
	default:
		return result
	}
	result.EmotionType = &primary

	severe := primary == Hopelessness || primary == Depression
	switch {
	case result.Intensity == IntensityHigh && severe:
		result.RiskLevel = RiskMedium
	case result.Intensity == IntensityMedium:
		result.RiskLevel = RiskLow
	}
	result.NeedsImmediateAttention = result.Intensity == IntensityHigh && severe &&
		utf8.RuneCountInString(text) > substantiveLength

	return result
}

func anyMatch(text string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// words 以词首边界编译关键词，"low" 不会命中 "follow"，但会命中 "lower"。
func words(list ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(list))
	for _, w := range list {
		out = append(out, regexp.MustCompile(`\b`+strings.ReplaceAll(regexp.QuoteMeta(w), " ", `\s+`)))
	}
	return out
}
