// Package response 统一 HTTP 响应格式：{code, msg, data} 与按 xerrors 映射的错误响应。
package response

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/binpack/tracing"
	"github.com/wyfcoding/binpack/xerrors"
)

// HTTPStatusProvider 能给出 HTTP 状态码的错误。
type HTTPStatusProvider interface {
	HTTPStatus() int
}

// Body 响应体。
type Body struct {
	Code    int    `json:"code"`
	Msg     string `json:"msg"`
	Data    any    `json:"data,omitempty"`
	Detail  string `json:"detail,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

// Success 返回 HTTP 200，业务码 0。
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Body{Code: 0, Msg: "success", Data: data})
}

// SuccessWithRawData 不做包装直接返回，用于健康检查。
func SuccessWithRawData(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

// Error 按错误类型映射状态码；xerrors 错误使用其业务码，其余为 500。
func Error(c *gin.Context, err error) {
	if err == nil {
		Success(c, nil)
		return
	}

	status := http.StatusInternalServerError
	code := status
	if xe, ok := xerrors.FromError(err); ok {
		status = xe.HTTPStatus()
		code = xe.Code
	} else if p, ok := err.(HTTPStatusProvider); ok {
		status = p.HTTPStatus()
		code = status
	}

	var mbe *http.MaxBytesError
	switch {
	case errors.As(err, &mbe):
		status, code = http.StatusRequestEntityTooLarge, http.StatusRequestEntityTooLarge
	case errors.Is(err, context.DeadlineExceeded):
		status, code = http.StatusGatewayTimeout, http.StatusGatewayTimeout
	}

	c.JSON(status, Body{
		Code:    code,
		Msg:     http.StatusText(status),
		Detail:  err.Error(),
		TraceID: tracing.GetTraceID(c.Request.Context()),
	})
}

// ErrorWithStatus 指定状态码、消息与详情。
func ErrorWithStatus(c *gin.Context, status int, msg string, detail string) {
	c.JSON(status, Body{Code: status, Msg: msg, Detail: detail, TraceID: tracing.GetTraceID(c.Request.Context())})
}
