package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response 统一响应格式
type Response struct {
	Code    int         `json:"code"`    // 状态码: 0 表示成功,非 0 表示失败
	Message string      `json:"message"` // 响应消息
	Data    interface{} `json:"data"`    // 响应数据
}

// ErrorResponse 错误响应格式
type ErrorResponse struct {
	Code      int      `json:"code"`                 // HTTP 状态码
	Message   string   `json:"message"`              // 错误消息
	Detail    string   `json:"detail,omitempty"`     // 错误详情(可选)
	ErrorCode string   `json:"error_code,omitempty"` // 领域错误码,如 DEPENDENCY_CYCLE
	TaskIDs   []string `json:"task_ids,omitempty"`   // 需要在界面上高亮的任务
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Created 创建成功响应
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    0,
		Message: "created",
		Data:    data,
	})
}

// Error 错误响应
func Error(c *gin.Context, code int, message string, detail string) {
	abortWith(c, ErrorResponse{
		Code:    code,
		Message: message,
		Detail:  detail,
	})
}

func abortWith(c *gin.Context, resp ErrorResponse) {
	statusCode := http.StatusInternalServerError
	if resp.Code >= 400 && resp.Code < 600 {
		statusCode = resp.Code
	}
	c.AbortWithStatusJSON(statusCode, resp)
}
