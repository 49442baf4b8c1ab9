// Package middleware 提供 Gin 中间件：异常恢复、访问日志、请求 ID、指标、追踪、限流与请求体限制。
package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/binpack/response"
)

// Recovery 捕获 panic，记录堆栈并返回 500。
func Recovery(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.ErrorContext(c.Request.Context(), "panic recovered",
					"error", err,
					"method", c.Request.Method,
					"path", c.Request.URL.Path,
					"stack", string(debug.Stack()),
				)
				response.ErrorWithStatus(c, http.StatusInternalServerError, "Internal Server Error", "an unexpected error occurred")
				c.Abort()
			}
		}()
		c.Next()
	}
}
