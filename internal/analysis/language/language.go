// Package language 提供不依赖模型的语言判定规则：常见英文短语快速通道、
// 模型回复解析以及基于 Unicode 文字区块的兜底识别。
package language

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

const (
	English = "en"
	Chinese = "zh"
	// Other 表示无法确定语言。
	Other = "other"
)

// Supported 是模型识别结果允许直接采用的语言代码。
var Supported = []string{"en", "zh", "es", "fr", "de", "it", "pt", "ru", "ja", "ko", "ar", "hi"}

var greetings = map[string]struct{}{
	"hi": {}, "hello": {}, "hey": {}, "hey there": {}, "hi there": {}, "good morning": {},
	"good afternoon": {}, "good evening": {}, "thanks": {}, "thank you": {}, "ok": {},
	"okay": {}, "yes": {}, "no": {}, "sure": {}, "yeah": {}, "yep": {}, "nope": {},
}

var shortInputWords = toSet(
	"the", "is", "are", "was", "were", "have", "has", "had", "do", "does", "did", "will",
	"would", "can", "could", "should", "may", "might", "what", "how", "why", "when", "where",
	"who", "i", "you", "he", "she", "it", "we", "they", "am", "to", "a", "an", "in", "on", "at",
	"for", "of", "with",
)

var fallbackWords = toSet(
	"the", "is", "are", "was", "were", "have", "has", "had", "do", "does", "did", "will",
	"would", "can", "could", "should", "may", "might",
)

// 模型回复中的英文语言名，与 Supported 一一对应。
var replyNames = []struct{ code, name string }{
	{"en", "english"}, {"zh", "chinese"}, {"es", "spanish"}, {"fr", "french"},
	{"de", "german"}, {"it", "italian"}, {"pt", "portuguese"}, {"ja", "japanese"},
	{"ko", "korean"}, {"ar", "arabic"}, {"ru", "russian"}, {"hi", "hindi"},
}

var twoLetterPrefix = regexp.MustCompile(`^([a-z]{2})`)

// FastPath 识别常见英文问候与短句，避免 "hi" 被当作印地语代码。
func FastPath(text string) (string, bool) {
	lowered := strings.ToLower(strings.TrimSpace(text))
	if lowered == "" {
		return "", false
	}
	if _, ok := greetings[lowered]; ok {
		return English, true
	}

	words := strings.Fields(lowered)
	if len(words) > 3 {
		return "", false
	}
	hits := 0
	for _, w := range words {
		if !isASCIIAlpha(w) {
			return "", false
		}
		if _, ok := shortInputWords[w]; ok {
			hits++
		}
	}
	if hits > 0 {
		return English, true
	}
	return "", false
}

// ParseReply 解析模型返回的语言代码。先精确匹配允许列表，再按前缀或英文名宽松匹配，
// 最后截取开头两个字母。
func ParseReply(reply string) (string, bool) {
	code := strings.Trim(strings.ToLower(strings.TrimSpace(reply)), "'\"`.")
	if code == "" {
		return "", false
	}
	for _, c := range Supported {
		if code == c {
			return c, true
		}
	}
	for _, n := range replyNames {
		if strings.HasPrefix(code, n.code) || strings.Contains(code, n.name) {
			return n.code, true
		}
	}
	if m := twoLetterPrefix.FindStringSubmatch(code); m != nil {
		return m[1], true
	}
	return "", false
}

// DetectScript 按文字区块兜底识别语言。
// 假名先于汉字判断，日文混排汉字时不会被误判为中文。
func DetectScript(text string) (string, bool) {
	var han, latin, kana, hangul, arabic, cyrillic, devanagari int
	for _, r := range text {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			latin++
		case unicode.In(r, unicode.Hiragana, unicode.Katakana):
			kana++
		case unicode.Is(unicode.Han, r):
			han++
		case unicode.Is(unicode.Hangul, r):
			hangul++
		case unicode.Is(unicode.Arabic, r):
			arabic++
		case unicode.Is(unicode.Cyrillic, r):
			cyrillic++
		case unicode.Is(unicode.Devanagari, r):
			devanagari++
		}
	}

	switch {
	case kana > 0:
		return "ja", true
	case han > 0 && float64(han)/float64(han+latin) > 0.3:
		return Chinese, true
	case hangul > 0:
		return "ko", true
	case arabic > 0:
		return "ar", true
	case cyrillic > 0:
		return "ru", true
	case devanagari > 0:
		return "hi", true
	}

	if countEnglishWords(text) >= 2 {
		return English, true
	}
	return "", false
}

// Name 返回语言代码的英文名称，供提示词使用。中文固定为简体中文。
func Name(code string) string {
	if code == "" || code == Other {
		return ""
	}
	if code == Chinese {
		return "Simplified Chinese"
	}
	tag, err := language.Parse(code)
	if err != nil {
		return ""
	}
	return display.English.Languages().Name(tag)
}

func countEnglishWords(text string) int {
	seen := make(map[string]struct{})
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	}) {
		if _, ok := fallbackWords[w]; ok {
			seen[w] = struct{}{}
		}
	}
	return len(seen)
}

func isASCIIAlpha(word string) bool {
	for _, r := range word {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return false
		}
	}
	return word != ""
}

func toSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
