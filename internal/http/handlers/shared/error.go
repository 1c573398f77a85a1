package shared

import (
	"errors"

	"github.com/rentflow/internal/http/response"
	"github.com/rentflow/internal/logger"
	"github.com/rentflow/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLog 提供携带 request_id 的日志实例。
func RequestLog(c *gin.Context) *zap.SugaredLogger {
	if c == nil {
		return logger.S()
	}
	if c.Request != nil {
		return logger.FromContext(c.Request.Context())
	}
	if requestID, ok := c.Get("request_id"); ok {
		if id, ok := requestID.(string); ok && id != "" {
			return logger.SW("request_id", id)
		}
	}
	return logger.S()
}

// RespondError 返回错误响应，并在有原始错误时记录日志。
func RespondError(c *gin.Context, code int, msg string, err error) {
	appErr := response.WrapError(code, msg, err)
	if err != nil {
		RequestLog(c).Errorw("handler_error",
			"code", appErr.Code,
			"message", appErr.Message,
			"error", err,
		)
	}
	response.Error(c, appErr.Code, appErr.Message)
}

// notFoundErrors 需要以 404 返回的前置条件错误
var notFoundErrors = []error{
	service.ErrPartyNotFound,
	service.ErrFundingSourceNotFound,
	service.ErrPaymentNotFound,
	service.ErrProcessorConfigNotFound,
	service.ErrTransferNotFound,
}

// ServiceErrorCode 按业务错误分类映射响应码
func ServiceErrorCode(err error) int {
	for _, target := range notFoundErrors {
		if errors.Is(err, target) {
			return response.CodeNotFound
		}
	}
	if errors.Is(err, service.ErrInvalidCredentials) || errors.Is(err, service.ErrPartyDisabled) {
		return response.CodeUnauthorized
	}
	switch service.ErrorKind(err) {
	case service.ErrorKindValidation:
		return response.CodeBadRequest
	case service.ErrorKindPrecondition:
		return response.CodeConflict
	case service.ErrorKindProcessor:
		return response.CodeBadGateway
	default:
		return response.CodeInternal
	}
}

// RespondServiceError 返回业务错误
// 仅服务端错误记录 error 级别日志，消息只使用业务错误的通用文案
func RespondServiceError(c *gin.Context, err error) {
	code := ServiceErrorCode(err)
	kind := service.ErrorKind(err)
	if kind == service.ErrorKindUnknown || kind == service.ErrorKindPersistence {
		RespondError(c, code, "internal error", err)
		return
	}
	RequestLog(c).Infow("handler_rejected",
		"code", code,
		"kind", kind,
		"error", err,
	)
	response.Error(c, code, service.PublicMessage(err))
}
