package ai

import (
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	langrules "github.com/zhouzirui/mindharbor/backend/internal/analysis/language"
	"github.com/zhouzirui/mindharbor/backend/internal/model/chat"
	"github.com/zhouzirui/mindharbor/backend/internal/model/knowledge"
)

// PromptSpec 是最终生成调用所需的全部输入。
type PromptSpec struct {
	System      string
	History     []*schema.Message
	Query       string
	MaxTokens   int
	Temperature float32
}

// Instruction 转换为链调用参数。
func (p PromptSpec) Instruction() Instruction {
	return Instruction{
		System:      p.System,
		History:     p.History,
		Query:       p.Query,
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
	}
}

// PromptTemplate 描述某个对话阶段的角色设定与输出要求。
type PromptTemplate struct {
	SystemPrompt string
	ContextLabel string
	Tasks        []string
	Forbidden    []string
	MaxTokens    int
}

// PromptManager 按阶段管理提示词模板。
type PromptManager struct {
	templates     map[chat.Stage]*PromptTemplate
	temperature   float32
	historyWindow int
}

// NewPromptManager 创建带默认模板的管理器。
func NewPromptManager(temperature float64, historyWindow int) *PromptManager {
	if historyWindow <= 0 {
		historyWindow = 10
	}
	pm := &PromptManager{
		templates:     make(map[chat.Stage]*PromptTemplate),
		temperature:   float32(temperature),
		historyWindow: historyWindow,
	}
	pm.loadDefaultTemplates()
	return pm
}

// Template 返回阶段对应的模板，未知阶段退回倾听阶段。
func (pm *PromptManager) Template(stage chat.Stage) *PromptTemplate {
	if tpl, ok := pm.templates[stage]; ok {
		return tpl
	}
	return pm.templates[chat.StageListening]
}

// BuildPrompt 组装最终生成调用的提示词。
// crisisFired 为真时，引导阶段允许出现紧急热线。
func (pm *PromptManager) BuildPrompt(stage chat.Stage, englishMessage string, fragments []knowledge.Fragment, history []chat.Turn, userLanguage string, crisisFired bool) PromptSpec {
	tpl := pm.Template(stage)

	system := tpl.SystemPrompt
	if stage == chat.StageGuidance {
		if crisisFired {
			system += "\n\nThe user has already been shown crisis resources in this conversation. You may repeat 988, 1-833-456-4566 or 911 if they are relevant."
		} else {
			system += "\n\nDo NOT mention emergency hotlines (988, 1-833-456-4566, 911) unless the user explicitly describes a crisis, danger or suicidal thoughts."
		}
	}
	system += languageDirective(userLanguage)

	return PromptSpec{
		System:      system,
		History:     pm.buildHistoryMessages(history),
		Query:       buildUserContent(stage, tpl, englishMessage, fragments),
		MaxTokens:   tpl.MaxTokens,
		Temperature: pm.temperature,
	}
}

func (pm *PromptManager) buildHistoryMessages(turns []chat.Turn) []*schema.Message {
	window := chat.TrimHistory(turns, pm.historyWindow)
	if len(window) == 0 {
		return nil
	}

	history := make([]*schema.Message, 0, len(window))
	for _, turn := range window {
		content := strings.TrimSpace(turn.Text())
		if content == "" {
			continue
		}
		switch turn.Role {
		case chat.RoleUser:
			history = append(history, schema.UserMessage(content))
		case chat.RoleAssistant:
			history = append(history, schema.AssistantMessage(content, nil))
		}
	}
	return history
}

func buildUserContent(stage chat.Stage, tpl *PromptTemplate, message string, fragments []knowledge.Fragment) string {
	var b strings.Builder
	if stage == chat.StageGuidance {
		b.WriteString("User question: ")
	} else {
		b.WriteString("User message: ")
	}
	b.WriteString(message)

	if stage != chat.StageListening {
		fmt.Fprintf(&b, "\n\n=== Knowledge Base Content (%s) ===\n", tpl.ContextLabel)
		b.WriteString(formatFragments(fragments))
		b.WriteString("\n=== End of Knowledge Base Content ===")
	}

	b.WriteString("\n\nYour tasks:\n")
	for i, task := range tpl.Tasks {
		fmt.Fprintf(&b, "%d. %s\n", i+1, task)
	}
	if len(tpl.Forbidden) > 0 {
		b.WriteString("\nAvoid:\n")
		for _, rule := range tpl.Forbidden {
			b.WriteString("- ")
			b.WriteString(rule)
			b.WriteString("\n")
		}
	}
	b.WriteString("\nAlways finish your reply with one open, easy-to-answer question.")
	return b.String()
}

func formatFragments(fragments []knowledge.Fragment) string {
	parts := make([]string, 0, len(fragments))
	for i, f := range fragments {
		parts = append(parts, fmt.Sprintf("[Knowledge Fragment %d]:\n%s", i+1, f.Text))
	}
	return strings.Join(parts, "\n\n")
}

// languageDirective 要求模型直接使用用户语言作答。
func languageDirective(code string) string {
	if code == "" || code == langrules.English {
		return ""
	}
	name := langrules.Name(code)
	label := fmt.Sprintf("%s (language code: %s)", name, code)
	if name == "" {
		name = "the same language as the user's original message"
		label = name
	}
	return fmt.Sprintf(`

LANGUAGE REQUIREMENT:
The user writes in %s. Reply ENTIRELY in %s, never in English.
- Translate any knowledge base content, quotes and examples you use into %s.
- Do not mix languages.`, label, name, name)
}

func (pm *PromptManager) loadDefaultTemplates() {
	pm.templates[chat.StageListening] = &PromptTemplate{
		SystemPrompt: `You are a caring friend who wants to listen. You are not a therapist or counselor, just a real person who cares.

Tone:
- Natural and conversational, like texting a close friend who is having a hard time
- Warm and genuine, never scripted or clinical
- Short: two to four sentences, no lists, no jargon

Do not open with "I can sense that" or "It sounds like". Make the person feel heard, not analyzed.`,
		Tasks: []string{
			"Work out what kind of message this is. A plain greeting (hi, hello, hey) or casual opener gets a warm, simple greeting back and an invitation to share what is on their mind.",
			"If the user is expressing emotion or distress, acknowledge it in one short, plain sentence (for example \"That sounds really hard.\") without clichés.",
			"Encourage them to keep talking in one or two sentences (\"I'm here, tell me more.\").",
		},
		Forbidden: []string{
			"crisis resources or hotlines unless the user explicitly expresses suicidal thoughts",
			"statistics or research (\"many people\", \"studies show\")",
			"quoting or referencing knowledge base content",
			"explaining why they feel this way",
			"advice, solutions or professional terminology",
		},
		MaxTokens: 1000,
	}

	pm.templates[chat.StageUnderstanding] = &PromptTemplate{
		SystemPrompt: `You are a gentle mental health companion acting as an understanding guide.

You do not give direct advice. You help the user see that others have been through similar experiences, drawing on the knowledge base so they feel less alone. Sound like a friend who remembers something they read, not like someone reading from a report.`,
		ContextLabel: "assessment - evaluation and statistics",
		Tasks: []string{
			"Acknowledge what they said in one simple sentence.",
			"Weave the knowledge base content in naturally as shared experience (\"Actually, a lot of people feel this way after...\"). Warm quotes are welcome with a natural lead-in; mention where an idea comes from conversationally.",
			"Offer one short, real sentence of encouragement (\"You don't have to carry this alone.\").",
		},
		Forbidden: []string{
			"phrases like \"the knowledge base mentions\" or \"according to research\"",
			"cold statistics without warmth",
			"sounding like you looked something up",
		},
		MaxTokens: 1000,
	}

	pm.templates[chat.StageGuidance] = &PromptTemplate{
		SystemPrompt: `You are a supportive mental health assistant acting as a resource guide.

Offer practical suggestions grounded in the knowledge base, make clear they are suggestions and that the user decides, and keep the feeling of companionship throughout.`,
		ContextLabel: "support - advice and resources",
		Tasks: []string{
			"Respond to what they asked first and show you want to help before introducing any technique.",
			"Use the knowledge base extensively: combine several fragments and cite concrete strategies, techniques and examples from them by name, paraphrased naturally.",
			"Tell them you are still here to keep talking (\"I'll still be here, you can tell me anything.\").",
		},
		Forbidden: []string{
			"generic advice that ignores the knowledge base content",
			"stiff phrases like \"the knowledge base mentions\"",
		},
		MaxTokens: 1500,
	}
}
