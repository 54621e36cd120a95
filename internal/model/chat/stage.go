package chat

import "strings"

// Stage 表示对话所处阶段，每轮重新判定，不跨请求保存。
// 取值即对外的线上名称。
type Stage string

const (
	StageListening     Stage = "empathy"
	StageUnderstanding Stage = "reflection"
	StageGuidance      Stage = "support"
)

// ParseStage 在文本中查找阶段名称，按 empathy、reflection、support 顺序匹配。
func ParseStage(raw string) (Stage, bool) {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	for _, s := range []Stage{StageListening, StageUnderstanding, StageGuidance} {
		if strings.Contains(lowered, string(s)) {
			return s, true
		}
	}
	return "", false
}

// RiskLevel 是自杀风险等级。
type RiskLevel string

const (
	RiskNone RiskLevel = "none"
	RiskHigh RiskLevel = "high"
)

// RiskAssessment 是危机风险判定结果，Response 仅在 Level 为 High 时非空。
type RiskAssessment struct {
	Level           RiskLevel `json:"risk_level"`
	HasExplicitPlan bool      `json:"has_explicit_plan"`
	Response        string    `json:"response,omitempty"`
}

// High 表示是否命中危机规则。
func (r RiskAssessment) High() bool {
	return r.Level == RiskHigh
}
