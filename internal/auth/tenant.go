package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// gin 上下文中的租户字段
const (
	ContextUserID         = "user_id"
	ContextOrganizationID = "organization_id"
)

// 开发环境下可直接通过请求头传入租户
const (
	HeaderOrganizationID = "X-Organization-ID"
	HeaderUserID         = "X-User-ID"
)

// TenantClaims 租户 JWT 声明
type TenantClaims struct {
	OrganizationID string `json:"org_id"`
	jwt.RegisteredClaims
}

// TokenValidator HS256 Token 验证器
type TokenValidator struct {
	secret []byte
	issuer string
}

// NewTokenValidator 创建 Token 验证器,secret 为空时返回 nil
func NewTokenValidator(secret, issuer string) *TokenValidator {
	if secret == "" {
		return nil
	}
	return &TokenValidator{secret: []byte(secret), issuer: issuer}
}

// ValidateToken 验证 Token 并返回声明
func (v *TokenValidator) ValidateToken(tokenString string) (*TenantClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &TenantClaims{}, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to validate token: %w", err)
	}

	claims, ok := token.Claims.(*TenantClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return nil, errors.New("missing sub claim")
	}
	if claims.OrganizationID == "" {
		return nil, errors.New("missing org_id claim")
	}
	return claims, nil
}

// IssueToken 签发 Token,供命令行工具与测试使用
func (v *TokenValidator) IssueToken(userID, organizationID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &TenantClaims{
		OrganizationID: organizationID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// TenantMiddleware 解析调用方的组织与用户
// Authorization 头优先;allowHeader 为 true 时接受 X-Organization-ID / X-User-ID
func TenantMiddleware(validator *TokenValidator, allowHeader bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("Authorization")
		if token != "" && validator != nil {
			token = strings.TrimPrefix(token, "Bearer ")
			claims, err := validator.ValidateToken(token)
			if err != nil {
				c.JSON(http.StatusUnauthorized, gin.H{
					"code":    401,
					"message": "invalid token",
					"detail":  err.Error(),
				})
				c.Abort()
				return
			}
			c.Set(ContextUserID, claims.Subject)
			c.Set(ContextOrganizationID, claims.OrganizationID)
			c.Next()
			return
		}

		if allowHeader {
			if org := c.GetHeader(HeaderOrganizationID); org != "" {
				c.Set(ContextOrganizationID, org)
				c.Set(ContextUserID, c.GetHeader(HeaderUserID))
				c.Next()
				return
			}
		}

		c.JSON(http.StatusUnauthorized, gin.H{
			"code":    401,
			"message": "missing tenant credentials",
		})
		c.Abort()
	}
}
