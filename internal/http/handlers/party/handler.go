package party

import "github.com/rentflow/internal/provider"

// Handler 房东/租客接口处理器入口
// 说明：路由层已完成 JWT 鉴权与 RBAC，处理器只关心当前参与方。
type Handler struct {
	*provider.Container
}

// New 创建参与方处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
