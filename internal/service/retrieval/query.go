package retrieval

import (
	"strings"

	"github.com/zhouzirui/mindharbor/backend/internal/analysis/emotion"
	"github.com/zhouzirui/mindharbor/backend/internal/model/chat"
)

var (
	lonelinessTerms = []string{
		"lonely", "loneliness", "friend", "friends", "friendship", "social", "isolated", "isolation",
		"connection", "connect", "alone", "companionship", "relationship", "relationships",
	}
	depressionTerms = []string{
		"depress", "depressed", "depression", "hopeless", "hopelessness", "worthless", "suicide",
		"suicidal", "kill myself", "want to die",
	}
	anxietyTerms = []string{"anxiety", "anxious", "worry", "worried", "panic", "stress", "stressed"}
)

type topic int

const (
	topicGeneric topic = iota
	topicLoneliness
	topicDepression
	topicAnxiety
	topicDepressionLoneliness
)

// 每个主题在理解阶段与引导阶段追加的检索词。
var topicSuffixes = map[topic]map[chat.Stage]string{
	topicLoneliness: {
		chat.StageUnderstanding: "social connection friendship isolation loneliness",
		chat.StageGuidance:      "make friends join groups activities clubs community connection strategies",
	},
	topicDepression: {
		chat.StageUnderstanding: "depression symptoms assessment statistics research",
		chat.StageGuidance:      "depression treatment therapy medication support",
	},
	topicAnxiety: {
		chat.StageUnderstanding: "anxiety symptoms worry panic",
		chat.StageGuidance:      "anxiety coping strategies relaxation techniques",
	},
	topicDepressionLoneliness: {
		chat.StageUnderstanding: "depression loneliness symptoms isolation",
		chat.StageGuidance:      "treatment support social connection mental health",
	},
	topicGeneric: {
		chat.StageUnderstanding: "symptoms assessment",
		chat.StageGuidance:      "support resources help coping",
	},
}

var emotionSuffixes = map[emotion.Type]string{
	emotion.Depression:   "depression symptoms treatment",
	emotion.Anxiety:      "anxiety coping strategies",
	emotion.Sadness:      "mental health support",
	emotion.Hopelessness: "support resources help",
}

// BuildQuery 在英文消息后追加按主题与阶段偏置的检索词，结果只用于检索。
// 未命中任何主题且有主情绪时，额外追加情绪对应的检索词。
func BuildQuery(englishText string, stage chat.Stage, primary emotion.Type) string {
	lowered := strings.ToLower(englishText)
	lonely := containsAny(lowered, lonelinessTerms)
	depressed := containsAny(lowered, depressionTerms)
	anxious := containsAny(lowered, anxietyTerms)

	t := topicGeneric
	switch {
	case lonely && !depressed:
		t = topicLoneliness
	case depressed && !lonely:
		t = topicDepression
	case anxious && !depressed && !lonely:
		t = topicAnxiety
	case depressed && lonely:
		t = topicDepressionLoneliness
	}

	query := englishText
	if suffix := topicSuffixes[t][stage]; suffix != "" {
		query += " " + suffix
	}
	if !lonely && !depressed && !anxious && primary != "" {
		if suffix, ok := emotionSuffixes[primary]; ok {
			query += " " + suffix
		}
	}
	return query
}

func containsAny(text string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}
