package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mautops/schedule-gin/internal/scheduling"
)

// APIError API 错误
type APIError struct {
	Code    int
	Message string
	Detail  string
}

func (e *APIError) Error() string {
	return e.Message
}

// ErrorHandlerMiddleware 统一渲染 handler 通过 c.Error 记录的错误
// APIError 直接使用其状态码,领域错误按错误码映射,其余为 500
func ErrorHandlerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err

		var apiErr *APIError
		if errors.As(err, &apiErr) {
			Error(c, apiErr.Code, apiErr.Message, apiErr.Detail)
			return
		}
		HandleServiceError(c, err)
	}
}

// WrapError 包装错误
func WrapError(err error, code int, message string) *APIError {
	return &APIError{
		Code:    code,
		Message: message,
		Detail:  err.Error(),
	}
}

// HTTPStatus 领域错误码对应的 HTTP 状态码
func HTTPStatus(code string) int {
	switch code {
	case scheduling.CodeValidation:
		return http.StatusBadRequest
	case scheduling.CodeNotFound:
		return http.StatusNotFound
	case scheduling.CodeCycle, scheduling.CodeSelfLoop, scheduling.CodeCrossProject, scheduling.CodeInvalidTransition:
		return http.StatusConflict
	case scheduling.CodeScheduleOverflow:
		return http.StatusUnprocessableEntity
	case scheduling.CodeScheduleTimeout:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// HandleServiceError 把服务层错误转换为错误响应
func HandleServiceError(c *gin.Context, err error) {
	var coded scheduling.CodedError
	if !errors.As(err, &coded) {
		c.Set("error", err.Error())
		Error(c, http.StatusInternalServerError, "internal server error", "")
		return
	}

	abortWith(c, ErrorResponse{
		Code:      HTTPStatus(coded.Code()),
		Message:   coded.Error(),
		ErrorCode: coded.Code(),
		TaskIDs:   scheduling.ErrorTaskIDs(err),
	})
}
