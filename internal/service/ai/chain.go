package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
)

// ErrEmptyCompletion 表示模型返回了空内容。
var ErrEmptyCompletion = errors.New("model returned empty content")

// Instruction 描述一次模型调用：系统指令、可选历史、用户输入与采样参数。
type Instruction struct {
	System      string
	History     []*schema.Message
	Query       string
	Temperature float32
	MaxTokens   int
}

// Runner 是 system + history + query 形式的通用 eino 链，
// 语言识别、翻译、阶段判定与最终生成共用同一个实例。
type Runner struct {
	chain compose.Runnable[map[string]any, *schema.Message]
}

// NewRunner 编译对话链。
func NewRunner(ctx context.Context, chatModel model.BaseChatModel) (*Runner, error) {
	if chatModel == nil {
		return nil, errors.New("chat model is required")
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}
	return &Runner{chain: runnable}, nil
}

// Run 执行一次调用并返回去除首尾空白的文本。
func (r *Runner) Run(ctx context.Context, in Instruction) (string, error) {
	input := map[string]any{
		"system":  in.System,
		"history": in.History,
		"query":   in.Query,
	}

	var opts []model.Option
	if in.Temperature > 0 {
		opts = append(opts, model.WithTemperature(in.Temperature))
	}
	if in.MaxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(in.MaxTokens))
	}

	msg, err := r.chain.Invoke(ctx, input, compose.WithChatModelOption(opts...))
	if err != nil {
		return "", err
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return "", ErrEmptyCompletion
	}
	return strings.TrimSpace(msg.Content), nil
}
