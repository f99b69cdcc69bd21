// Package response 统一 HTTP 响应结构
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Body 响应体
type Body struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// Success 返回 200
func Success(c *gin.Context, data any) {
	SuccessWithStatus(c, http.StatusOK, data)
}

// SuccessWithStatus 返回指定成功状态码
func SuccessWithStatus(c *gin.Context, status int, data any) {
	c.JSON(status, Body{Code: status, Message: "success", Data: data})
}

// ErrorWithStatus 返回错误；errCode 为机器可读错误码
func ErrorWithStatus(c *gin.Context, status int, message, errCode string) {
	c.AbortWithStatusJSON(status, Body{Code: status, Message: message, Error: errCode})
}
