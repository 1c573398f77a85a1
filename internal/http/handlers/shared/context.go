package shared

import (
	"strconv"
	"strings"

	"github.com/rentflow/internal/http/response"

	"github.com/gin-gonic/gin"
)

// 鉴权中间件写入的上下文键
const (
	ContextPartyID   = "party_id"
	ContextPartyRole = "party_role"
)

// GetContextUint 从上下文读取 uint 值并统一处理错误响应。
func GetContextUint(c *gin.Context, key string) (uint, bool) {
	value, exists := c.Get(key)
	if !exists {
		RespondError(c, response.CodeUnauthorized, "unauthorized", nil)
		return 0, false
	}

	switch v := value.(type) {
	case uint:
		return v, true
	case int:
		if v < 0 {
			RespondError(c, response.CodeBadRequest, key+" invalid", nil)
			return 0, false
		}
		return uint(v), true
	case float64:
		if v < 0 {
			RespondError(c, response.CodeBadRequest, key+" invalid", nil)
			return 0, false
		}
		return uint(v), true
	default:
		RespondError(c, response.CodeInternal, key+" type invalid", nil)
		return 0, false
	}
}

// GetPartyID 当前登录参与方 ID
func GetPartyID(c *gin.Context) (uint, bool) {
	return GetContextUint(c, ContextPartyID)
}

// GetPartyRole 当前登录参与方角色
func GetPartyRole(c *gin.Context) string {
	value, ok := c.Get(ContextPartyRole)
	if !ok {
		return ""
	}
	role, _ := value.(string)
	return role
}

// ParamUint 解析路径中的正整数 ID
func ParamUint(c *gin.Context, name string) (uint, bool) {
	raw := strings.TrimSpace(c.Param(name))
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		RespondError(c, response.CodeBadRequest, name+" invalid", nil)
		return 0, false
	}
	return uint(id), true
}
