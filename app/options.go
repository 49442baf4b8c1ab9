package app

import (
	"context"
	"time"

	"github.com/wyfcoding/binpack/server"
)

// Option 应用选项。
type Option func(*options)

type options struct {
	servers         []server.Server
	hooks           []Hook
	shutdownTimeout time.Duration
}

// WithServer 注册随应用启停的服务。
func WithServer(servers ...server.Server) Option {
	return func(o *options) {
		o.servers = append(o.servers, servers...)
	}
}

// WithHook 注册生命周期钩子，按注册顺序启动、逆序停止。
func WithHook(hook Hook) Option {
	return func(o *options) {
		o.hooks = append(o.hooks, hook)
	}
}

// WithCleanup 注册关闭时执行的清理函数。
func WithCleanup(name string, cleanup func(ctx context.Context) error) Option {
	return WithHook(Hook{Name: name, OnStop: cleanup})
}

// WithShutdownTimeout 关闭阶段的总时限。
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.shutdownTimeout = d
		}
	}
}
