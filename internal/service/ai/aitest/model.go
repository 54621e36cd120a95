// Package aitest 提供测试用的假聊天模型。
package aitest

import (
	"context"
	"strings"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// Call 记录一次模型调用。
type Call struct {
	System      string
	User        string
	History     []*schema.Message
	Temperature *float32
	MaxTokens   *int
}

// RespondFunc 根据调用内容返回回复或错误。
type RespondFunc func(call Call) (string, error)

// Model 实现 model.ChatModel，按 Respond 返回内容并记录调用。
type Model struct {
	Respond RespondFunc

	mu    sync.Mutex
	calls []Call
}

// Reply 返回总是回复固定文本的模型。
func Reply(text string) *Model {
	return &Model{Respond: func(Call) (string, error) { return text, nil }}
}

// Fail 返回总是失败的模型。
func Fail(err error) *Model {
	return &Model{Respond: func(Call) (string, error) { return "", err }}
}

// Rule 在系统指令包含 Contains 时使用 Respond。
type Rule struct {
	Contains string
	Respond  RespondFunc
}

// Route 按顺序匹配规则分派回复，均未命中时使用 fallback。
func Route(fallback RespondFunc, rules ...Rule) *Model {
	return &Model{Respond: func(call Call) (string, error) {
		for _, r := range rules {
			if strings.Contains(call.System, r.Contains) {
				return r.Respond(call)
			}
		}
		if fallback == nil {
			return "", nil
		}
		return fallback(call)
	}}
}

// Text 是返回固定文本的 RespondFunc。
func Text(s string) RespondFunc {
	return func(Call) (string, error) { return s, nil }
}

// Err 是返回固定错误的 RespondFunc。
func Err(err error) RespondFunc {
	return func(Call) (string, error) { return "", err }
}

func (m *Model) Generate(_ context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	options := model.GetCommonOptions(&model.Options{}, opts...)
	call := Call{Temperature: options.Temperature, MaxTokens: options.MaxTokens}
	for _, msg := range input {
		switch msg.Role {
		case schema.System:
			call.System = msg.Content
		default:
			call.History = append(call.History, msg)
		}
	}
	if n := len(call.History); n > 0 && call.History[n-1].Role == schema.User {
		call.User = call.History[n-1].Content
		call.History = call.History[:n-1]
	}

	m.mu.Lock()
	m.calls = append(m.calls, call)
	m.mu.Unlock()

	content, err := m.Respond(call)
	if err != nil {
		return nil, err
	}
	return schema.AssistantMessage(content, nil), nil
}

func (m *Model) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (m *Model) BindTools(_ []*schema.ToolInfo) error {
	return nil
}

// Calls 返回调用记录的副本。
func (m *Model) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount 返回调用次数。
func (m *Model) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
