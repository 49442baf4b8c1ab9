// Package app 管理进程生命周期：启动服务、监听退出信号、按序关闭并清理资源。
package app

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultShutdownTimeout 默认关闭时限。
const DefaultShutdownTimeout = 15 * time.Second

// App 应用容器。
type App struct {
	name      string
	logger    *slog.Logger
	opts      options
	lifecycle *Lifecycle
}

// New 创建应用。
func New(name string, logger *slog.Logger, opts ...Option) *App {
	o := options{shutdownTimeout: DefaultShutdownTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	lc := NewLifecycle(logger)
	for _, h := range o.hooks {
		lc.Append(h)
	}
	return &App{name: name, logger: logger, opts: o, lifecycle: lc}
}

// Run 启动全部钩子与服务，阻塞到收到 SIGINT/SIGTERM、ctx 取消或任一服务失败。
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.logger.Info("application starting", "name", a.name, "pid", os.Getpid())

	if err := a.lifecycle.Start(ctx); err != nil {
		return errors.Join(err, a.shutdown())
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range a.opts.servers {
		g.Go(func() error {
			return srv.Start(gctx)
		})
	}
	runErr := g.Wait()
	if runErr != nil {
		a.logger.Error("server exited with error", "error", runErr)
	}

	a.logger.Info("shutting down application", "name", a.name)
	if err := a.shutdown(); err != nil {
		return errors.Join(runErr, err)
	}
	a.logger.Info("application shut down gracefully")
	return runErr
}

func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.opts.shutdownTimeout)
	defer cancel()
	return a.lifecycle.Stop(ctx)
}
