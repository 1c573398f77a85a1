package party

import (
	handlershared "github.com/rentflow/internal/http/handlers/shared"

	"github.com/gin-gonic/gin"
)

func getPartyID(c *gin.Context) (uint, bool) {
	return handlershared.GetPartyID(c)
}

func respondError(c *gin.Context, code int, msg string, err error) {
	handlershared.RespondError(c, code, msg, err)
}

func respondServiceError(c *gin.Context, err error) {
	handlershared.RespondServiceError(c, err)
}
