package public

import (
	"github.com/rentflow/internal/http/response"

	"github.com/gin-gonic/gin"
)

// Health 存活检查
func (h *Handler) Health(c *gin.Context) {
	response.Success(c, gin.H{"status": "ok"})
}
