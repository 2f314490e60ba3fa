package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// HeaderAPIVersion 请求与响应中的 API 版本头
	HeaderAPIVersion = "API-Version"
	// CurrentAPIVersion 当前 API 版本
	CurrentAPIVersion = "v1"
)

var supportedVersions = map[string]bool{CurrentAPIVersion: true}

// VersionMiddleware API 版本中间件
// 版本取自 /api/vN 路径,请求头 API-Version 优先;不支持的版本返回 400
func VersionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		version := versionFromPath(c.Request.URL.Path)
		if header := c.GetHeader(HeaderAPIVersion); header != "" {
			version = header
		}
		if !supportedVersions[version] {
			Error(c, http.StatusBadRequest, "unsupported api version", version)
			return
		}

		c.Set("api_version", version)
		c.Header(HeaderAPIVersion, version)
		c.Next()
	}
}

func versionFromPath(path string) string {
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if len(parts) > 1 && parts[0] == "api" && strings.HasPrefix(parts[1], "v") && len(parts[1]) > 1 {
		return parts[1]
	}
	return CurrentAPIVersion
}

// GetAPIVersion 从上下文获取 API 版本
func GetAPIVersion(c *gin.Context) string {
	if v, ok := c.Get("api_version"); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return CurrentAPIVersion
}
