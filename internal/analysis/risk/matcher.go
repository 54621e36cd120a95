// Package risk 用英文正则规则识别自杀意图。规则分两层：
// 明确计划（行动动词紧跟风险词、具体方式）与一般自杀意念。
// 每条规则都锚定在明确的风险词上，"I want to leave" 这类日常表达不在其中。
package risk

import (
	"regexp"
	"strings"
)

// Tier 是命中的规则层级。
type Tier int

const (
	TierNone Tier = iota
	TierExplicitPlan
	TierIdeation
)

func (t Tier) String() string {
	switch t {
	case TierExplicitPlan:
		return "explicit_plan"
	case TierIdeation:
		return "ideation"
	default:
		return "none"
	}
}

// ExplicitPlanPatterns 是明确计划层的规则源文本。
var ExplicitPlanPatterns = []string{
	`\bi\s+(want|plan|going|will|am)\s+to\s+(kill|end|suicide)\b`,
	`\bi\s+(want|plan|going|will|am)\s+to\s+(jump|hang|cut|overdose)\b`,
	`\bkill\s+myself\b`,
	`\bend\s+(my\s+life|it\s+all)\b`,
	`\bcommit\s+suicide\b`,
	`\bsuicide\s+(plan|method|way)\b`,
	`\btonight.*?(kill|end|suicide)\b`,
	`\blast\s+(time|goodbye|message)\b`,
	`\bcut\s+(wrist|artery|vein)\b`,
	`\boverdose\s+(on\s+)?(pills|medication)\b`,
	`\bjump\s+(off|from|bridge|building)\b`,
	`\bhang\s+myself\b`,
}

// IdeationPatterns 是一般自杀意念层的规则源文本。
var IdeationPatterns = []string{
	`\bi\s+want\s+(to\s+)?die\b`,
	`\bwanna\s+die\b`,
	`\bwant\s+to\s+die\b`,
	`\bi\s+want.*?\bdie\b`,
	`\bwish.*?\bdead\b`,
	`\bwish\s+i\s+.*?\bdie\b`,
	`\bwish.*?(i|to).*?\bdie\b`,
	`\bi\s+want.*?\bsuicide\b`,
	`\bcommit\s+suicide\b`,
	`\bkilling\s+myself\b`,
	`\bkill\s+myself\b`,
	`\bsuicide\b`,
	`\bdon'?t\s+want\s+to\s+live\b`,
	`\bnot\s+want\s+to\s+live\b`,
	`\blife.*?\bnot.*?\bworth\b`,
	`\bnot\s+worth\s+living\b`,
	`\bdon'?t\s+want\s+to\s+be\s+alive\b`,
	`\bend\s+(my\s+)?life\b`,
	`\bend\s+it\s+all\b`,
	`\bwant\s+to\s+leave\s+(this\s+)?world\b`,
	`\bbe\s+gone\b`,
	`\bbetter\s+off\s+dead\b`,
	`\bnot\s+want\s+to\s+be\s+here\b`,
	`\bworld.*?\bbetter.*?\bwithout.*?\bme\b`,
	`\bnobody\s+(would\s+)?care\b`,
	`\bno\s+one\s+(would\s+)?care\b`,
	`\bno\s+point\s+in\s+living\b`,
	`\bhopeless\b`,
	`\bno\s+hope\b`,
}

// Match 描述一次命中。
type Match struct {
	Tier    Tier
	Pattern string
}

// Matched 表示是否命中任一规则。
func (m Match) Matched() bool {
	return m.Tier != TierNone
}

// ExplicitPlan 表示命中的是明确计划层。
func (m Match) ExplicitPlan() bool {
	return m.Tier == TierExplicitPlan
}

// Matcher 持有预编译的两层规则。可被多个 goroutine 共享。
type Matcher struct {
	explicit []*regexp.Regexp
	ideation []*regexp.Regexp
}

// NewMatcher 编译默认规则集。
func NewMatcher() *Matcher {
	return &Matcher{
		explicit: compile(ExplicitPlanPatterns),
		ideation: compile(IdeationPatterns),
	}
}

// Match 依次检查明确计划层与意念层，返回首个命中。
func (m *Matcher) Match(englishText string) Match {
	normalized := strings.ToLower(strings.TrimSpace(englishText))
	if normalized == "" {
		return Match{}
	}
	for _, re := range m.explicit {
		if re.MatchString(normalized) {
			return Match{Tier: TierExplicitPlan, Pattern: re.String()}
		}
	}
	for _, re := range m.ideation {
		if re.MatchString(normalized) {
			return Match{Tier: TierIdeation, Pattern: re.String()}
		}
	}
	return Match{}
}

func compile(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(p))
	}
	return out
}
