package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// HTTPSRedirectMiddleware 非 HTTPS 请求 301 重定向,健康检查与指标不重定向
func HTTPSRedirectMiddleware(enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !enabled || IsHTTPS(c) || c.Request.URL.Path == "/health" || c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		host := c.Request.Host
		if host == "" {
			host = "localhost"
		}
		c.Redirect(http.StatusMovedPermanently, "https://"+host+c.Request.RequestURI)
		c.Abort()
	}
}

// IsHTTPS 检查请求是否通过 HTTPS,支持反向代理头
func IsHTTPS(c *gin.Context) bool {
	if strings.EqualFold(c.GetHeader("X-Forwarded-Proto"), "https") {
		return true
	}
	if c.GetHeader("X-Forwarded-SSL") == "on" {
		return true
	}
	return c.Request.TLS != nil || c.Request.URL.Scheme == "https"
}
