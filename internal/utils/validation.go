package utils

import (
	"regexp"
	"strings"
	"unicode"
)

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateID 校验路径中的任务、依赖、项目 ID
func ValidateID(id string) error {
	if id == "" {
		return ErrEmptyID
	}
	if len(id) > 64 {
		return ErrIDTooLong
	}
	if !idPattern.MatchString(id) {
		return ErrInvalidIDFormat
	}
	return nil
}

// ValidateName 校验自定义名称或单位,nil 表示未提供
func ValidateName(name *string, maxLen int) error {
	if name == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*name)
	if maxLen > 0 && len(trimmed) > maxLen {
		return ErrNameTooLong
	}
	if containsControlChars(trimmed) {
		return ErrControlChars
	}
	if containsMarkup(trimmed) {
		return ErrDangerousChars
	}
	return nil
}

func containsControlChars(s string) bool {
	for _, r := range s {
		if unicode.IsControl(r) {
			return true
		}
	}
	return false
}

// containsMarkup 名称会被直接渲染到甘特图上
func containsMarkup(s string) bool {
	lower := strings.ToLower(s)
	for _, pattern := range []string{"<script", "</script>", "javascript:", "onerror=", "onload=", "<iframe", "<img", "<svg"} {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

// 错误定义
var (
	ErrNameTooLong     = &ValidationError{Code: "NAME_TOO_LONG", Message: "name exceeds maximum length"}
	ErrControlChars    = &ValidationError{Code: "CONTROL_CHARS", Message: "name contains control characters"}
	ErrDangerousChars  = &ValidationError{Code: "DANGEROUS_CHARS", Message: "name contains dangerous characters"}
	ErrEmptyID         = &ValidationError{Code: "EMPTY_ID", Message: "id cannot be empty"}
	ErrInvalidIDFormat = &ValidationError{Code: "INVALID_ID_FORMAT", Message: "id contains invalid characters"}
	ErrIDTooLong       = &ValidationError{Code: "ID_TOO_LONG", Message: "id exceeds maximum length"}
)

// ValidationError 验证错误
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
