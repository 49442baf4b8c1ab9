// Package logging 提供基于 slog 的结构化日志：JSON 输出、文件切割、追踪上下文注入与运行时级别调整。
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	defaultLogger *Logger
	once          sync.Once

	// level 进程内共享的日志级别，配置热更新时调整。
	level = new(slog.LevelVar)
)

// Config 日志配置。
type Config struct {
	Service    string
	Module     string
	Level      string
	File       string // 为空则只输出到 stdout
	MaxSize    int    // 单个文件最大尺寸 (MB)
	MaxBackups int
	MaxAge     int // 天
	Compress   bool
	Console    bool // 同时写文件时，是否仍输出到 stdout
}

// Logger 封装 *slog.Logger，附带服务名与模块名。
type Logger struct {
	*slog.Logger
	Service string
	Module  string
}

// TraceHandler 从 ctx 中提取 trace_id 与 span_id 注入日志记录。
type TraceHandler struct {
	slog.Handler
}

// Handle 实现 slog.Handler。
func (h *TraceHandler) Handle(ctx context.Context, r slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		r.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return h.Handler.Handle(ctx, r)
}

// WithAttrs 保持装饰器不丢失。
func (h *TraceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TraceHandler{Handler: h.Handler.WithAttrs(attrs)}
}

// WithGroup 保持装饰器不丢失。
func (h *TraceHandler) WithGroup(name string) slog.Handler {
	return &TraceHandler{Handler: h.Handler.WithGroup(name)}
}

// ParseLevel 解析级别名称，未知名称按 info 处理。
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetLevel 运行时调整全局日志级别。
func SetLevel(s string) {
	level.Set(ParseLevel(s))
}

// Level 当前全局日志级别。
func Level() slog.Level {
	return level.Level()
}

func replaceAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey {
		a.Key = "timestamp"
	}
	return a
}

// NewFromConfig 按配置创建 Logger，级别写入全局 LevelVar。
func NewFromConfig(cfg Config) *Logger {
	level.Set(ParseLevel(cfg.Level))
	opts := &slog.HandlerOptions{Level: level, ReplaceAttr: replaceAttr}

	var handler slog.Handler
	if cfg.File != "" {
		fileWriter := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
		handler = slog.NewJSONHandler(fileWriter, opts)
		if cfg.Console {
			handler = newMultiHandler(handler, slog.NewJSONHandler(os.Stdout, opts))
		}
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return wrap(handler, cfg.Service, cfg.Module)
}

// NewWithWriter 输出到任意 writer，主要用于测试与 CLI。
func NewWithWriter(w io.Writer, service, module string) *Logger {
	opts := &slog.HandlerOptions{Level: level, ReplaceAttr: replaceAttr}
	return wrap(slog.NewJSONHandler(w, opts), service, module)
}

func wrap(h slog.Handler, service, module string) *Logger {
	logger := slog.New(&TraceHandler{Handler: h}).With(
		slog.String("service", service),
		slog.String("module", module),
	)
	return &Logger{Logger: logger, Service: service, Module: module}
}

// InitLogger 初始化全局默认日志记录器并设置为 slog 默认值，只执行一次。
func InitLogger(cfg Config) *Logger {
	once.Do(func() {
		defaultLogger = NewFromConfig(cfg)
		slog.SetDefault(defaultLogger.Logger)
	})
	return defaultLogger
}

// LogDuration 返回一个在操作结束时以 Info 级别记录耗时的函数。
func LogDuration(ctx context.Context, l *slog.Logger, operation string, args ...any) func() {
	start := time.Now()
	return func() {
		l.InfoContext(ctx, fmt.Sprintf("%s finished", operation), append(args, "duration", time.Since(start))...)
	}
}
