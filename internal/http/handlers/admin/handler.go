package admin

import (
	"errors"

	"github.com/rentflow/internal/authz"
	handlershared "github.com/rentflow/internal/http/handlers/shared"
	"github.com/rentflow/internal/http/response"
	"github.com/rentflow/internal/provider"

	"github.com/gin-gonic/gin"
)

// Handler 管理端接口（角色与权限维护）
type Handler struct {
	*provider.Container
}

// New 创建管理端处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}

// RolePolicyRequest 角色策略请求
type RolePolicyRequest struct {
	Object string `json:"object" binding:"required"`
	Action string `json:"action" binding:"required"`
}

// ListRoles 角色列表
func (h *Handler) ListRoles(c *gin.Context) {
	roles, err := h.AuthzService.ListRoles()
	if err != nil {
		handlershared.RespondError(c, response.CodeInternal, "list roles failed", err)
		return
	}
	response.Success(c, roles)
}

// GetRolePolicies 角色策略（含继承）
func (h *Handler) GetRolePolicies(c *gin.Context) {
	policies, err := h.AuthzService.GetRolePolicies(c.Param("role"))
	if err != nil {
		respondAuthzError(c, err)
		return
	}
	response.Success(c, policies)
}

// GrantRolePolicy 为角色授权
func (h *Handler) GrantRolePolicy(c *gin.Context) {
	h.changeRolePolicy(c, h.AuthzService.GrantRolePolicy, "authz_role_policy_granted")
}

// RevokeRolePolicy 撤销角色授权
func (h *Handler) RevokeRolePolicy(c *gin.Context) {
	h.changeRolePolicy(c, h.AuthzService.RevokeRolePolicy, "authz_role_policy_revoked")
}

func (h *Handler) changeRolePolicy(c *gin.Context, change func(role, object, action string) error, event string) {
	var req RolePolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handlershared.RespondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	role := c.Param("role")
	if err := change(role, req.Object, req.Action); err != nil {
		respondAuthzError(c, err)
		return
	}
	handlershared.RequestLog(c).Infow(event,
		"role", role,
		"object", authz.NormalizeObject(req.Object),
		"action", authz.NormalizeAction(req.Action),
	)
	response.Success(c, gin.H{"updated": true})
}

func respondAuthzError(c *gin.Context, err error) {
	if errors.Is(err, authz.ErrInvalidArgument) {
		handlershared.RespondError(c, response.CodeBadRequest, err.Error(), nil)
		return
	}
	handlershared.RespondError(c, response.CodeInternal, "authz operation failed", err)
}
