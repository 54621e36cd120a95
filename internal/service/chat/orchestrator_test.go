package chat_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/mindharbor/backend/internal/analysis/risk"
	"github.com/zhouzirui/mindharbor/backend/internal/model/chat"
	"github.com/zhouzirui/mindharbor/backend/internal/service/ai"
	chatsvc "github.com/zhouzirui/mindharbor/backend/internal/service/chat"
	"github.com/zhouzirui/mindharbor/backend/internal/service/crisis"
	"github.com/zhouzirui/mindharbor/backend/internal/service/retrieval"
	"github.com/zhouzirui/mindharbor/backend/internal/service/stage"
)

type detectCall struct {
	text            string
	updatePreferred bool
}

type fakeDetector struct {
	lang   string
	byText map[string]string
	calls  []detectCall
}

func (f *fakeDetector) Detect(_ context.Context, conv *chat.Conversation, text string, updatePreferred bool) string {
	f.calls = append(f.calls, detectCall{text: text, updatePreferred: updatePreferred})
	lang := f.lang
	if l, ok := f.byText[text]; ok {
		lang = l
	}
	if updatePreferred {
		conv.SetPreferred(lang)
	}
	return lang
}

type fakeTranslator struct {
	english  map[string]string
	toUser   []string
	toEnSrcs []string
}

func (f *fakeTranslator) ToEnglish(_ context.Context, _ *chat.Conversation, text, source string) string {
	f.toEnSrcs = append(f.toEnSrcs, source)
	if en, ok := f.english[text]; ok {
		return en
	}
	return text
}

func (f *fakeTranslator) ToUserLanguage(_ context.Context, _ *chat.Conversation, text, target string) string {
	if target == "en" || target == "" {
		return text
	}
	f.toUser = append(f.toUser, target)
	return "[" + target + "] " + text
}

type fakeEinoRetriever struct {
	docs    []*schema.Document
	err     error
	queries []string
}

func (f *fakeEinoRetriever) Retrieve(_ context.Context, query string, _ ...retriever.Option) ([]*schema.Document, error) {
	f.queries = append(f.queries, query)
	return f.docs, f.err
}

type fakeGenerator struct {
	response string
	err      error
	requests []ai.Request
}

func (f *fakeGenerator) GenerateResponse(_ context.Context, req ai.Request) (string, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

type failingClassifier struct{}

func (failingClassifier) Classify(context.Context, string, []chat.Turn) (stage.Result, error) {
	return stage.Result{}, errors.New("model offline")
}

func doc(id string, distance float64, source string) *schema.Document {
	d := &schema.Document{ID: id, Content: "fragment " + id, MetaData: map[string]any{retrieval.MetaSource: source}}
	return d.WithScore(distance)
}

type harness struct {
	detector   *fakeDetector
	translator *fakeTranslator
	retriever  *fakeEinoRetriever
	generator  *fakeGenerator
	classifier stage.Classifier
}

func newHarness() *harness {
	return &harness{
		detector:   &fakeDetector{lang: "en"},
		translator: &fakeTranslator{english: map[string]string{}},
		retriever:  &fakeEinoRetriever{},
		generator:  &fakeGenerator{response: "I hear you. What has been on your mind?"},
		classifier: stage.Heuristic{},
	}
}

func (h *harness) build() *chatsvc.Orchestrator {
	return chatsvc.NewOrchestrator(chatsvc.Dependencies{
		Detector:   h.detector,
		Translator: h.translator,
		Crisis:     crisis.NewService(risk.NewMatcher(), crisis.NewResponder(h.translator, "", nil), nil),
		Stages:     h.classifier,
		Retriever:  retrieval.NewService(h.retriever, retrieval.DefaultParams(), nil),
		Generator:  h.generator,
	}, nil)
}

var priorTurns = []chat.Turn{
	{Role: chat.RoleUser, Content: "I have been struggling lately"},
	{Role: chat.RoleAssistant, Content: "I'm here with you. What has been hardest?"},
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	_, err := newHarness().build().Chat(context.Background(), chat.NewConversation("s", ""), chatsvc.Request{Message: "  "})
	assert.ErrorIs(t, err, chatsvc.ErrEmptyMessage)
}

func TestChatCrisisShortCircuits(t *testing.T) {
	h := newHarness()
	res, err := h.build().Chat(context.Background(), chat.NewConversation("s", ""), chatsvc.Request{
		Message: "I want to kill myself tonight",
	})
	require.NoError(t, err)

	assert.Equal(t, chat.RiskHigh, res.RiskLevel)
	assert.True(t, res.HasExplicitPlan)
	assert.Empty(t, res.Stage)
	for _, n := range crisis.NationalNumbers {
		assert.Contains(t, res.Response, n)
	}
	assert.Empty(t, h.retriever.queries)
	assert.Empty(t, h.generator.requests)

	raw, err := json.Marshal(res)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), `"stage"`)
	assert.Contains(t, string(raw), `"sources":[]`)
	assert.Contains(t, string(raw), `"risk_level":"high"`)
}

func TestChatCrisisIsLanguageInvariant(t *testing.T) {
	h := newHarness()
	h.detector.lang = "fr"
	h.translator.english["Je veux mourir"] = "I want to die"
	conv := chat.NewConversation("s", "")

	res, err := h.build().Chat(context.Background(), conv, chatsvc.Request{Message: "Je veux mourir"})
	require.NoError(t, err)

	assert.Equal(t, chat.RiskHigh, res.RiskLevel)
	assert.False(t, res.HasExplicitPlan)
	assert.True(t, strings.HasPrefix(res.Response, "[fr] "))
	assert.Contains(t, res.Response, "988")
	assert.Equal(t, "fr", conv.Preferred())
}

func TestChatLonelinessScenario(t *testing.T) {
	h := newHarness()
	h.retriever.docs = []*schema.Document{
		doc("support", 0.3, "support/loneliness_friendship.md"),
		doc("assess", 0.5, "assessment/loneliness_signs.md"),
		doc("general", 0.9, "general/overview.txt"),
	}
	h.generator.response = "Many people feel that way. What does a typical evening look like for you?"

	res, err := h.build().Chat(context.Background(), chat.NewConversation("s", ""), chatsvc.Request{
		Message: "I feel really lonely, nobody wants to be my friend",
		History: priorTurns,
	})
	require.NoError(t, err)

	assert.Equal(t, chat.StageUnderstanding, res.Stage)
	assert.Equal(t, chat.RiskNone, res.RiskLevel)
	require.Len(t, h.retriever.queries, 1)
	assert.Contains(t, h.retriever.queries[0], "social connection friendship isolation loneliness")

	require.Len(t, res.Sources, 2)
	assert.Equal(t, "loneliness_signs.md", res.Sources[0].SourceFile)
	assert.Equal(t, "loneliness_friendship", res.Sources[0].Category)
	assert.Equal(t, "overview.txt", res.Sources[1].SourceFile)
	assert.Equal(t, "general_mental_health", res.Sources[1].Category)

	require.Len(t, h.generator.requests, 1)
	assert.Len(t, h.generator.requests[0].Fragments, 2)
	require.NotNil(t, res.EmotionAnalysis)
	assert.Equal(t, res.Response, h.generator.response)
}

func TestChatNoKnowledgeForGuidance(t *testing.T) {
	h := newHarness()
	h.retriever.docs = []*schema.Document{doc("far", 1.8, "support/anxiety.md")}

	res, err := h.build().Chat(context.Background(), chat.NewConversation("s", ""), chatsvc.Request{
		Message: "how do I deal with anxiety attacks",
		History: priorTurns,
	})
	require.NoError(t, err)

	assert.Equal(t, chat.StageGuidance, res.Stage)
	assert.Equal(t, chatsvc.NoKnowledgeResponse, res.Response)
	assert.NotNil(t, res.Sources)
	assert.Empty(t, res.Sources)
	assert.Empty(t, h.generator.requests)
}

func TestChatNoKnowledgeIsLocalized(t *testing.T) {
	h := newHarness()
	h.detector.lang = "zh"
	h.translator.english["我该怎么应对焦虑发作"] = "how do I deal with anxiety attacks"

	res, err := h.build().Chat(context.Background(), chat.NewConversation("s", ""), chatsvc.Request{
		Message: "我该怎么应对焦虑发作",
		History: []chat.Turn{{Role: chat.RoleUser, Content: "最近压力很大", ContentNormalized: "I've been very stressed lately"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "[zh] "+chatsvc.NoKnowledgeResponse, res.Response)
	assert.Equal(t, chat.StageGuidance, res.Stage)
}

func TestChatListeningSkipsRetrieval(t *testing.T) {
	h := newHarness()

	res, err := h.build().Chat(context.Background(), chat.NewConversation("s", ""), chatsvc.Request{Message: "hi"})
	require.NoError(t, err)

	assert.Equal(t, chat.StageListening, res.Stage)
	assert.Empty(t, h.retriever.queries)
	require.Len(t, h.generator.requests, 1)
	assert.Empty(t, h.generator.requests[0].Fragments)
	assert.Empty(t, res.Sources)
	assert.Equal(t, h.generator.response, res.Response)
}

func TestChatListeningIgnoresRetrievalOutage(t *testing.T) {
	h := newHarness()
	h.retriever.err = errors.New("index corrupted")

	res, err := h.build().Chat(context.Background(), chat.NewConversation("s", ""), chatsvc.Request{Message: "hi"})
	require.NoError(t, err)

	assert.Equal(t, chat.StageListening, res.Stage)
	assert.Empty(t, h.retriever.queries)
	assert.Equal(t, h.generator.response, res.Response)
}

func TestChatRetrievalFailureIsFatal(t *testing.T) {
	h := newHarness()
	h.retriever.err = errors.New("index corrupted")

	_, err := h.build().Chat(context.Background(), chat.NewConversation("s", ""), chatsvc.Request{
		Message: "I feel sad all the time",
		History: priorTurns,
	})
	assert.ErrorIs(t, err, retrieval.ErrRetrievalFailed)
	assert.Empty(t, h.generator.requests)
}

func TestChatGenerationFailureIsFatal(t *testing.T) {
	h := newHarness()
	h.generator.err = ai.ErrGenerationFailed

	_, err := h.build().Chat(context.Background(), chat.NewConversation("s", ""), chatsvc.Request{Message: "hello there"})
	assert.ErrorIs(t, err, ai.ErrGenerationFailed)
}

func TestChatResponseLanguageReconciliation(t *testing.T) {
	t.Run("already in user language", func(t *testing.T) {
		h := newHarness()
		h.detector.lang = "zh"
		h.generator.response = "我在这里陪着你。"

		res, err := h.build().Chat(context.Background(), chat.NewConversation("s", ""), chatsvc.Request{Message: "你好"})
		require.NoError(t, err)
		assert.Equal(t, "我在这里陪着你。", res.Response)
		assert.Empty(t, h.translator.toUser)
	})

	t.Run("translated when model answered in English", func(t *testing.T) {
		h := newHarness()
		h.detector.lang = "zh"
		h.detector.byText = map[string]string{"I am here with you.": "en"}
		h.generator.response = "I am here with you."
		conv := chat.NewConversation("s", "")

		res, err := h.build().Chat(context.Background(), conv, chatsvc.Request{Message: "你好"})
		require.NoError(t, err)
		assert.Equal(t, "[zh] I am here with you.", res.Response)
		assert.Equal(t, "zh", conv.Preferred())

		last := h.detector.calls[len(h.detector.calls)-1]
		assert.Equal(t, "I am here with you.", last.text)
		assert.False(t, last.updatePreferred)
	})
}

func TestChatNormalizesHistory(t *testing.T) {
	h := newHarness()
	h.detector.lang = "es"
	h.detector.byText = map[string]string{
		"Estoy aquí contigo.": "es",
		"I'm listening.":      "en",
	}
	h.translator.english = map[string]string{
		"Me siento mal":       "I feel bad",
		"Estoy aquí contigo.": "I'm here with you.",
		"hola":                "hello",
	}
	conv := chat.NewConversation("s", "")

	_, err := h.build().Chat(context.Background(), conv, chatsvc.Request{
		Message: "hola",
		History: []chat.Turn{
			{Role: chat.RoleUser, Content: "Me siento mal"},
			{Role: chat.RoleAssistant, Content: "Estoy aquí contigo."},
			{Role: chat.RoleAssistant, Content: "I'm listening."},
			{Role: chat.RoleUser, Content: "ya", ContentNormalized: "yes"},
		},
	})
	require.NoError(t, err)

	require.Len(t, h.generator.requests, 1)
	history := h.generator.requests[0].History
	require.Len(t, history, 4)
	assert.Equal(t, "I feel bad", history[0].ContentNormalized)
	assert.Equal(t, "I'm here with you.", history[1].ContentNormalized)
	assert.Equal(t, "I'm listening.", history[2].ContentNormalized)
	assert.Equal(t, "yes", history[3].ContentNormalized)
	assert.Equal(t, "es", h.generator.requests[0].UserLanguage)
}

func TestChatTrimsHistoryWindow(t *testing.T) {
	h := newHarness()
	var history []chat.Turn
	for i := 0; i < 14; i++ {
		history = append(history, chat.Turn{Role: chat.RoleUser, Content: "turn", ContentNormalized: "turn"})
	}

	_, err := h.build().Chat(context.Background(), chat.NewConversation("s", ""), chatsvc.Request{Message: "ok", History: history})
	require.NoError(t, err)
	assert.Len(t, h.generator.requests[0].History, 10)
}

func TestChatPassesCrisisFiredToGeneration(t *testing.T) {
	h := newHarness()
	h.retriever.docs = []*schema.Document{doc("s", 0.4, "support/depression_treatment.md")}

	_, err := h.build().Chat(context.Background(), chat.NewConversation("s", ""), chatsvc.Request{
		Message: "what should I do to feel better",
		History: []chat.Turn{
			{Role: chat.RoleUser, Content: "I feel hopeless"},
			{Role: chat.RoleAssistant, Content: "Please reach out to 988."},
		},
	})
	require.NoError(t, err)
	require.Len(t, h.generator.requests, 1)
	assert.Equal(t, chat.StageGuidance, h.generator.requests[0].Stage)
	assert.True(t, h.generator.requests[0].CrisisFired)
}

func TestChatStageClassifierFailureFallsBack(t *testing.T) {
	h := newHarness()
	h.classifier = failingClassifier{}
	h.retriever.docs = []*schema.Document{doc("a", 0.4, "assessment/sadness.md")}

	res, err := h.build().Chat(context.Background(), chat.NewConversation("s", ""), chatsvc.Request{
		Message: "I feel sad most evenings",
		History: priorTurns,
	})
	require.NoError(t, err)
	assert.Equal(t, chat.StageUnderstanding, res.Stage)
}
