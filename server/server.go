// Package server 提供 HTTP 服务的启动与优雅关闭封装。
package server

import "context"

// Server 可由 app 统一管理生命周期的服务。
type Server interface {
	// Start 阻塞运行，ctx 取消时开始优雅关闭。
	Start(ctx context.Context) error
	// Stop 等待在途请求完成并释放资源。
	Stop(ctx context.Context) error
}
