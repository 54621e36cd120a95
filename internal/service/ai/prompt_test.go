package ai

import (
	"fmt"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/mindharbor/backend/internal/model/chat"
	"github.com/zhouzirui/mindharbor/backend/internal/model/knowledge"
)

func TestBuildPromptTokenBudgets(t *testing.T) {
	pm := NewPromptManager(0.7, 10)

	assert.Equal(t, 1500, pm.BuildPrompt(chat.StageGuidance, "how do i cope", nil, nil, "en", false).MaxTokens)
	assert.Equal(t, 1000, pm.BuildPrompt(chat.StageUnderstanding, "i feel sad", nil, nil, "en", false).MaxTokens)
	assert.Equal(t, 1000, pm.BuildPrompt(chat.StageListening, "hi", nil, nil, "en", false).MaxTokens)
	assert.InDelta(t, 0.7, pm.BuildPrompt(chat.StageListening, "hi", nil, nil, "en", false).Temperature, 1e-6)
}

func TestBuildPromptGuidanceHotlineRule(t *testing.T) {
	pm := NewPromptManager(0.7, 10)

	spec := pm.BuildPrompt(chat.StageGuidance, "how do i cope", nil, nil, "en", false)
	assert.Contains(t, spec.System, "Do NOT mention emergency hotlines")

	spec = pm.BuildPrompt(chat.StageGuidance, "how do i cope", nil, nil, "en", true)
	assert.NotContains(t, spec.System, "Do NOT mention emergency hotlines")
	assert.Contains(t, spec.System, "already been shown crisis resources")
}

func TestBuildPromptLanguageDirective(t *testing.T) {
	pm := NewPromptManager(0.7, 10)

	assert.NotContains(t, pm.BuildPrompt(chat.StageListening, "hi", nil, nil, "en", false).System, "LANGUAGE REQUIREMENT")

	zh := pm.BuildPrompt(chat.StageListening, "hi", nil, nil, "zh", false).System
	assert.Contains(t, zh, "LANGUAGE REQUIREMENT")
	assert.Contains(t, zh, "Simplified Chinese (language code: zh)")

	other := pm.BuildPrompt(chat.StageListening, "hi", nil, nil, "other", false).System
	assert.Contains(t, other, "the same language as the user's original message")
}

func TestBuildPromptFragments(t *testing.T) {
	pm := NewPromptManager(0.7, 10)
	fragments := []knowledge.Fragment{
		{Text: "Loneliness is common among students."},
		{Text: "Joining a club builds connection."},
	}

	spec := pm.BuildPrompt(chat.StageUnderstanding, "i feel lonely", fragments, nil, "en", false)
	assert.Contains(t, spec.Query, "User message: i feel lonely")
	assert.Contains(t, spec.Query, "[Knowledge Fragment 1]:\nLoneliness is common among students.")
	assert.Contains(t, spec.Query, "[Knowledge Fragment 2]:\nJoining a club builds connection.")
	assert.Contains(t, spec.Query, "assessment")

	listening := pm.BuildPrompt(chat.StageListening, "hi", fragments, nil, "en", false)
	assert.NotContains(t, listening.Query, "Knowledge Fragment")
	assert.Contains(t, listening.Query, "greeting")
}

func TestBuildPromptHistoryWindow(t *testing.T) {
	pm := NewPromptManager(0.7, 10)

	var history []chat.Turn
	for i := 0; i < 14; i++ {
		role := chat.RoleUser
		if i%2 == 1 {
			role = chat.RoleAssistant
		}
		history = append(history, chat.Turn{Role: role, Content: fmt.Sprintf("turn %d", i)})
	}
	history[13].ContentNormalized = "normalized 13"

	spec := pm.BuildPrompt(chat.StageListening, "hi", nil, history, "en", false)
	require.Len(t, spec.History, 10)
	assert.Equal(t, "turn 4", spec.History[0].Content)
	assert.Equal(t, schema.User, spec.History[0].Role)
	assert.Equal(t, schema.Assistant, spec.History[9].Role)
	assert.Equal(t, "normalized 13", spec.History[9].Content)
}

func TestTemplateUnknownStageFallsBackToListening(t *testing.T) {
	pm := NewPromptManager(0.7, 10)
	assert.Same(t, pm.Template(chat.StageListening), pm.Template(chat.Stage("unknown")))
}
