package knowledge

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategory(t *testing.T) {
	cases := map[string]string{
		"":                                "unknown",
		"assessment/depression_signs.txt": "depression_symptoms",
		"support/depression_help.md":      "depression_treatment",
		"general/depression.txt":          "depression",
		"support/loneliness.txt":          "loneliness_friendship",
		"assessment/Friendship_Study.md":  "loneliness_friendship",
		"support/exercise.txt":            "exercise_motivation",
		"support/anxiety_tips.txt":        "anxiety",
		"assessment/stress.txt":           "stress",
		"general/overview.txt":            "general_mental_health",
		"misc/readme.txt":                 "mental_health",
	}
	for source, want := range cases {
		assert.Equal(t, want, Category(source), source)
	}
}

func TestSourceFile(t *testing.T) {
	assert.Equal(t, "a.txt", Fragment{Source: "support/x/a.txt"}.SourceFile())
	assert.Equal(t, "b.md", Fragment{Source: `general\b.md`}.SourceFile())
	assert.Equal(t, "c.txt", Fragment{Source: "c.txt"}.SourceFile())
	assert.Equal(t, "Unknown", Fragment{}.SourceFile())
}

func TestToSource(t *testing.T) {
	long := strings.Repeat("好", 250)
	src := Fragment{Text: long, Distance: 0.42, Source: "support/anxiety.txt"}.ToSource()

	assert.Equal(t, strings.Repeat("好", 200)+"...", src.Content)
	assert.Equal(t, 0.42, src.Score)
	assert.Equal(t, 0.42, src.Distance)
	assert.Equal(t, "anxiety.txt", src.SourceFile)
	assert.Equal(t, "anxiety", src.Category)

	short := Fragment{Text: "short"}.ToSource()
	assert.Equal(t, "short...", short.Content)
}
