package api_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mautops/schedule-gin/internal/api"
	"github.com/mautops/schedule-gin/internal/scheduling"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestErrorHandlerMiddleware 测试 handler 记录的错误按类型渲染
func TestErrorHandlerMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var logged string
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Next()
		logged = c.GetString("error")
	})
	router.Use(api.ErrorHandlerMiddleware())

	router.GET("/bad", func(c *gin.Context) {
		_ = c.Error(api.WrapError(errors.New("EOF"), http.StatusBadRequest, "invalid request"))
	})
	router.GET("/missing", func(c *gin.Context) {
		_ = c.Error(fmt.Errorf("lookup: %w", &scheduling.NotFoundError{Resource: "task", ID: "tsk-1"}))
	})
	router.GET("/boom", func(c *gin.Context) {
		_ = c.Error(errors.New("disk full"))
	})
	router.GET("/written", func(c *gin.Context) {
		c.String(http.StatusAccepted, "ok")
		_ = c.Error(errors.New("late"))
	})

	tests := []struct {
		path      string
		status    int
		message   string
		errorCode string
		detail    string
	}{
		{path: "/bad", status: http.StatusBadRequest, message: "invalid request", detail: "EOF"},
		{path: "/missing", status: http.StatusNotFound, errorCode: scheduling.CodeNotFound},
		{path: "/boom", status: http.StatusInternalServerError, message: "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			require.Equal(t, tt.status, w.Code)

			var resp api.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.status, resp.Code)
			if tt.message != "" {
				assert.Equal(t, tt.message, resp.Message)
			}
			assert.Equal(t, tt.errorCode, resp.ErrorCode)
			assert.Equal(t, tt.detail, resp.Detail)
		})
	}

	// 内部错误细节只进入请求日志,不返回给客户端
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, "disk full", logged)
	assert.NotContains(t, w.Body.String(), "disk full")

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/written", nil))
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}
