package knowledge

import (
	"strings"
	"unicode/utf8"
)

// Fragment 是一次检索返回的知识片段。Distance 越小越相似，0 表示完全一致。
type Fragment struct {
	ID       string
	Text     string
	Distance float64
	Source   string
}

// Category 根据来源路径推断内容类别。
func (f Fragment) Category() string {
	return Category(f.Source)
}

// SourceFile 返回来源路径的最后一段，兼容 / 与 \ 分隔符。
func (f Fragment) SourceFile() string {
	if f.Source == "" {
		return "Unknown"
	}
	idx := strings.LastIndexAny(f.Source, `/\`)
	return f.Source[idx+1:]
}

// Snippet 返回前 n 个字符并追加省略号。
func (f Fragment) Snippet(n int) string {
	if utf8.RuneCountInString(f.Text) <= n {
		return f.Text + "..."
	}
	runes := []rune(f.Text)
	return string(runes[:n]) + "..."
}

// Category 由来源路径中的目录与文件名关键字决定类别。
func Category(source string) string {
	if source == "" {
		return "unknown"
	}
	lowered := strings.ToLower(source)
	switch {
	case strings.Contains(lowered, "depression"):
		switch {
		case strings.Contains(lowered, "assessment"):
			return "depression_symptoms"
		case strings.Contains(lowered, "support"):
			return "depression_treatment"
		}
		return "depression"
	case strings.Contains(lowered, "loneliness"), strings.Contains(lowered, "friendship"):
		return "loneliness_friendship"
	case strings.Contains(lowered, "exercise"), strings.Contains(lowered, "motivation"):
		return "exercise_motivation"
	case strings.Contains(lowered, "anxiety"):
		return "anxiety"
	case strings.Contains(lowered, "stress"):
		return "stress"
	case strings.Contains(lowered, "general"):
		return "general_mental_health"
	default:
		return "mental_health"
	}
}

// Source 是返回给调用方的精简来源信息。
type Source struct {
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
	Distance   float64 `json:"distance"`
	SourceFile string  `json:"source_file"`
	Category   string  `json:"category"`
}

// ToSource 把片段裁剪为对外展示的来源。
func (f Fragment) ToSource() Source {
	return Source{
		Content:    f.Snippet(200),
		Score:      f.Distance,
		Distance:   f.Distance,
		SourceFile: f.SourceFile(),
		Category:   f.Category(),
	}
}
