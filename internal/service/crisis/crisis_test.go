package crisis

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/mindharbor/backend/internal/analysis/risk"
	"github.com/zhouzirui/mindharbor/backend/internal/model/chat"
)

type fakeTranslator struct {
	translate func(text, target string) string
	targets   []string
}

func (f *fakeTranslator) ToUserLanguage(_ context.Context, _ *chat.Conversation, text, target string) string {
	f.targets = append(f.targets, target)
	return f.translate(text, target)
}

func TestBuildEnglishExplicitPlanWithRegion(t *testing.T) {
	r := NewResponder(nil, "", nil)
	out := r.Build(context.Background(), nil, true, "en", "bc")

	for _, n := range NationalNumbers {
		assert.Contains(t, out, n)
	}
	assert.Contains(t, out, "**British Columbia Resources:**")
	assert.Contains(t, out, "310-6789")
	assert.NotContains(t, out, "Ontario")
	assert.Contains(t, out, "Get Help Now")
}

func TestBuildUnknownRegionListsAll(t *testing.T) {
	r := NewResponder(nil, "", nil)
	out := r.Build(context.Background(), nil, false, "en", "XX")

	assert.Contains(t, out, "**Provincial Resources:**")
	for _, region := range Regions {
		assert.Contains(t, out, "**"+region.NameEN+":**")
	}
	assert.Contains(t, out, "Tell someone you trust")
	// 地区按固定顺序输出。
	assert.Less(t, strings.Index(out, "British Columbia"), strings.Index(out, "Nunavut"))
}

func TestBuildUsesDefaultRegion(t *testing.T) {
	r := NewResponder(nil, "ON", nil)
	out := r.Build(context.Background(), nil, false, "en", "")
	assert.Contains(t, out, "**Ontario Resources:**")
	assert.NotContains(t, out, "Provincial Resources")
}

func TestBuildChineseRenderedNatively(t *testing.T) {
	translator := &fakeTranslator{translate: func(text, _ string) string { return text }}
	r := NewResponder(translator, "", nil)

	out := r.Build(context.Background(), nil, true, "zh", "MB")
	assert.Contains(t, out, "全国资源")
	assert.Contains(t, out, "**曼尼托巴省资源：**")
	assert.Contains(t, out, "204-788-8200 或 1-888-315-9257")
	for _, n := range NationalNumbers {
		assert.Contains(t, out, n)
	}
	assert.Empty(t, translator.targets)
}

func TestBuildOtherLanguageTranslatesEnglish(t *testing.T) {
	translator := &fakeTranslator{translate: func(text, _ string) string {
		return strings.Replace(text, "I'm really worried", "Estoy muy preocupado", 1)
	}}
	r := NewResponder(translator, "", nil)

	out := r.Build(context.Background(), nil, true, "es", "QC")
	assert.Equal(t, []string{"es"}, translator.targets)
	assert.True(t, strings.HasPrefix(out, "Estoy muy preocupado"))
	assert.Equal(t, 1, strings.Count(out, "National Resources (24/7, Bilingual)"))
}

func TestBuildAppendsNationalBlockWhenNumbersLost(t *testing.T) {
	translator := &fakeTranslator{translate: func(string, string) string {
		return "Por favor, busca ayuda ahora."
	}}
	r := NewResponder(translator, "", nil)

	out := r.Build(context.Background(), nil, false, "es", "")
	assert.True(t, strings.HasPrefix(out, "Por favor, busca ayuda ahora."))
	for _, n := range NationalNumbers {
		assert.Contains(t, out, n)
	}
}

func TestAssessExplicitPlan(t *testing.T) {
	svc := NewService(risk.NewMatcher(), NewResponder(nil, "", nil), nil)

	got := svc.Assess(context.Background(), chat.NewConversation("s", ""), "I want to kill myself tonight", "en", "")
	assert.Equal(t, chat.RiskHigh, got.Level)
	assert.True(t, got.HasExplicitPlan)
	require.NotEmpty(t, got.Response)
	for _, n := range NationalNumbers {
		assert.Contains(t, got.Response, n)
	}
}

func TestAssessIdeation(t *testing.T) {
	svc := NewService(nil, NewResponder(nil, "", nil), nil)

	got := svc.Assess(context.Background(), nil, "Everything feels hopeless", "zh", "")
	assert.True(t, got.High())
	assert.False(t, got.HasExplicitPlan)
	assert.Contains(t, got.Response, "全国资源")
}

func TestAssessNoRisk(t *testing.T) {
	svc := NewService(nil, NewResponder(nil, "", nil), nil)

	got := svc.Assess(context.Background(), nil, "I want to leave work early", "en", "")
	assert.Equal(t, chat.RiskNone, got.Level)
	assert.False(t, got.HasExplicitPlan)
	assert.Empty(t, got.Response)
}

func TestLookupRegion(t *testing.T) {
	r, ok := LookupRegion(" nu ")
	require.True(t, ok)
	assert.Equal(t, "Nunavut", r.NameEN)

	_, ok = LookupRegion("")
	assert.False(t, ok)
	assert.Len(t, Regions, 13)
}

func TestFiredChecksUserTurnsOnly(t *testing.T) {
	svc := NewService(risk.NewMatcher(), NewResponder(nil, "", nil), nil)

	assert.False(t, svc.Fired(nil))
	assert.False(t, svc.Fired([]chat.Turn{
		{Role: chat.RoleAssistant, Content: "Some people feel they want to die when things pile up."},
		{Role: chat.RoleUser, Content: "I had a rough week"},
	}))
	assert.True(t, svc.Fired([]chat.Turn{
		{Role: chat.RoleUser, Content: "我不想活了", ContentNormalized: "I don't want to live anymore"},
	}))
}
