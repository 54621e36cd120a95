package chat

// Role 标识一条对话轮次的发言方。
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn 是调用方随请求携带的一条历史对话。
// ContentNormalized 为英文归一化后的内容，只在单次调用内填充，不做持久化。
type Turn struct {
	Role              Role   `json:"role"`
	Content           string `json:"content"`
	ContentNormalized string `json:"content_en,omitempty"`
}

// Text 返回用于内部处理的内容，优先使用归一化版本。
func (t Turn) Text() string {
	if t.ContentNormalized != "" {
		return t.ContentNormalized
	}
	return t.Content
}

// TrimHistory 返回最近 limit 条历史，limit <= 0 时返回空。
func TrimHistory(history []Turn, limit int) []Turn {
	if limit <= 0 || len(history) == 0 {
		return nil
	}
	if len(history) <= limit {
		return history
	}
	return history[len(history)-limit:]
}
