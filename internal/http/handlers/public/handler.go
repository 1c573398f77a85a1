package public

import "github.com/rentflow/internal/provider"

// Handler 公开接口处理器入口
// 说明：该处理器用于登录注册、处理方回调与健康检查，不要求登录态。
type Handler struct {
	*provider.Container
}

// New 创建公开接口处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
