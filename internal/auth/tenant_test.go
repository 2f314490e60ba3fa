package auth_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/mautops/schedule-gin/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRouter(validator *auth.TokenValidator, allowHeader bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(auth.TenantMiddleware(validator, allowHeader))
	router.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id":         c.GetString(auth.ContextUserID),
			"organization_id": c.GetString(auth.ContextOrganizationID),
		})
	})
	return router
}

func whoami(t *testing.T, router *gin.Engine, headers map[string]string) (int, map[string]string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	body := map[string]string{}
	if w.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	}
	return w.Code, body
}

// TestTokenValidator_RoundTrip 测试签发与验证
func TestTokenValidator_RoundTrip(t *testing.T) {
	v := auth.NewTokenValidator("secret", "schedule-gin")
	token, err := v.IssueToken("u-1", "org-1", time.Minute)
	require.NoError(t, err)

	claims, err := v.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.Subject)
	assert.Equal(t, "org-1", claims.OrganizationID)
}

// TestTokenValidator_Rejects 测试错误密钥、过期、签发方不符与缺少组织
func TestTokenValidator_Rejects(t *testing.T) {
	v := auth.NewTokenValidator("secret", "schedule-gin")

	other, err := auth.NewTokenValidator("other", "schedule-gin").IssueToken("u-1", "org-1", time.Minute)
	require.NoError(t, err)
	_, err = v.ValidateToken(other)
	assert.Error(t, err)

	expired, err := v.IssueToken("u-1", "org-1", -time.Minute)
	require.NoError(t, err)
	_, err = v.ValidateToken(expired)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	wrongIssuer, err := auth.NewTokenValidator("secret", "elsewhere").IssueToken("u-1", "org-1", time.Minute)
	require.NoError(t, err)
	_, err = v.ValidateToken(wrongIssuer)
	assert.Error(t, err)

	noOrg, err := v.IssueToken("u-1", "", time.Minute)
	require.NoError(t, err)
	_, err = v.ValidateToken(noOrg)
	assert.Error(t, err)

	assert.Nil(t, auth.NewTokenValidator("", ""))
}

// TestTenantMiddleware 测试 Token 与请求头两种方式
func TestTenantMiddleware(t *testing.T) {
	v := auth.NewTokenValidator("secret", "")
	token, err := v.IssueToken("u-1", "org-1", time.Minute)
	require.NoError(t, err)

	router := setupRouter(v, false)
	code, body := whoami(t, router, map[string]string{"Authorization": "Bearer " + token})
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "org-1", body["organization_id"])
	assert.Equal(t, "u-1", body["user_id"])

	code, _ = whoami(t, router, map[string]string{"Authorization": "Bearer broken"})
	assert.Equal(t, http.StatusUnauthorized, code)

	// 未开启时忽略请求头
	code, _ = whoami(t, router, map[string]string{auth.HeaderOrganizationID: "org-2"})
	assert.Equal(t, http.StatusUnauthorized, code)

	router = setupRouter(nil, true)
	code, body = whoami(t, router, map[string]string{auth.HeaderOrganizationID: "org-2", auth.HeaderUserID: "u-2"})
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "org-2", body["organization_id"])
	assert.Equal(t, "u-2", body["user_id"])

	code, _ = whoami(t, router, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}
