package utils_test

import (
	"strings"
	"testing"

	"github.com/mautops/schedule-gin/internal/utils"
	"github.com/stretchr/testify/assert"
)

// TestValidateID 测试 ID 格式校验
func TestValidateID(t *testing.T) {
	assert.NoError(t, utils.ValidateID("tsk-0f8e_12"))
	assert.Equal(t, utils.ErrEmptyID, utils.ValidateID(""))
	assert.Equal(t, utils.ErrInvalidIDFormat, utils.ValidateID("a/b"))
	assert.Equal(t, utils.ErrInvalidIDFormat, utils.ValidateID("1' OR '1'='1"))
	assert.Equal(t, utils.ErrIDTooLong, utils.ValidateID(strings.Repeat("a", 65)))
}

// TestValidateName 测试自定义名称校验
func TestValidateName(t *testing.T) {
	name := func(s string) *string { return &s }

	assert.NoError(t, utils.ValidateName(nil, 255))
	assert.NoError(t, utils.ValidateName(name("Pour foundation, block B"), 255))
	assert.NoError(t, utils.ValidateName(name("地基浇筑"), 255))
	assert.Equal(t, utils.ErrNameTooLong, utils.ValidateName(name(strings.Repeat("x", 33)), 32))
	assert.Equal(t, utils.ErrControlChars, utils.ValidateName(name("a\x00b"), 255))
	assert.Equal(t, utils.ErrDangerousChars, utils.ValidateName(name("<script>alert(1)</script>"), 255))
}
