package service

import "context"

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	clientIPKey  contextKey = "ip"
	userAgentKey contextKey = "user_agent"
)

// WithRequestInfo 在 context 中记录请求信息,供审计日志使用
func WithRequestInfo(ctx context.Context, requestID, ip, userAgent string) context.Context {
	ctx = context.WithValue(ctx, requestIDKey, requestID)
	ctx = context.WithValue(ctx, clientIPKey, ip)
	return context.WithValue(ctx, userAgentKey, userAgent)
}

// GetRequestID 从 context 获取请求 ID
func GetRequestID(ctx context.Context) string {
	return stringValue(ctx, requestIDKey)
}

// GetClientIP 从 context 获取客户端 IP
func GetClientIP(ctx context.Context) string {
	return stringValue(ctx, clientIPKey)
}

// GetUserAgent 从 context 获取 User Agent
func GetUserAgent(ctx context.Context) string {
	return stringValue(ctx, userAgentKey)
}

func stringValue(ctx context.Context, key contextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}
