package logger

import (
	"strings"

	"go.uber.org/zap"
)

// Logger 包装 zap 的 SugaredLogger，统一键值对风格的日志调用。
type Logger struct {
	sugar *zap.SugaredLogger
}

// New 按模式创建日志器：prod 输出 JSON，其余输出开发格式。
func New(mode string) (*Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	default:
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	zapLogger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{sugar: zapLogger.Sugar()}, nil
}

// Wrap 包装已有的 zap.Logger，例如测试中带观察器的 core。
func Wrap(z *zap.Logger) *Logger {
	return &Logger{sugar: z.Sugar()}
}

// OrNop 在 l 为 nil 时返回丢弃所有输出的日志器，组件因此可以把日志器作为可选依赖。
func OrNop(l *Logger) *Logger {
	if l == nil {
		return &Logger{sugar: zap.NewNop().Sugar()}
	}
	return l
}

func (l *Logger) Sync() {
	_ = l.sugar.Sync()
}

func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Infow(msg, keysAndValues...)
}

func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.sugar.Warnw(msg, keysAndValues...)
}

func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, keysAndValues...)
}

func (l *Logger) Fatal(msg string, keysAndValues ...interface{}) {
	l.sugar.Fatalw(msg, keysAndValues...)
}

func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{sugar: l.sugar.With(keysAndValues...)}
}
