package public

import (
	"errors"
	"io"
	"net/http"

	"github.com/rentflow/internal/http/response"
	"github.com/rentflow/internal/service"

	"github.com/gin-gonic/gin"
)

// maxWebhookBodyBytes 回调请求体上限
const maxWebhookBodyBytes = 1 << 20

type webhookHandleFunc func(c *gin.Context, headers map[string]string, body []byte) (*service.WebhookOutcome, error)

// BankTransferWebhook 银行转账处理方状态回调
func (h *Handler) BankTransferWebhook(c *gin.Context) {
	h.handleWebhook(c, "bank_transfer", func(c *gin.Context, headers map[string]string, body []byte) (*service.WebhookOutcome, error) {
		return h.TransferWebhookService.HandleBankTransferWebhook(c.Request.Context(), headers, body)
	})
}

// CardWebhook 卡支付处理方回调
func (h *Handler) CardWebhook(c *gin.Context) {
	h.handleWebhook(c, "card", func(c *gin.Context, headers map[string]string, body []byte) (*service.WebhookOutcome, error) {
		return h.TransferWebhookService.HandleCardWebhook(c.Request.Context(), headers, body)
	})
}

func (h *Handler) handleWebhook(c *gin.Context, processor string, handle webhookHandleFunc) {
	log := requestLog(c).With("processor", processor)
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		log.Warnw("webhook_body_read_failed", "error", err)
		response.ErrorWithHTTPStatus(c, http.StatusBadRequest, response.CodeBadRequest, "bad request")
		return
	}
	headers := make(map[string]string, len(c.Request.Header))
	for key, values := range c.Request.Header {
		if len(values) == 0 {
			continue
		}
		headers[key] = values[0]
	}
	log.Infow("webhook_received",
		"client_ip", c.ClientIP(),
		"body_size", len(body),
	)

	if h.Container == nil || h.TransferWebhookService == nil {
		log.Errorw("webhook_service_unavailable")
		response.ErrorWithHTTPStatus(c, http.StatusServiceUnavailable, response.CodeInternal, "webhook unavailable")
		return
	}
	outcome, err := handle(c, headers, body)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrWebhookSignatureInvalid):
			log.Warnw("webhook_rejected", "reason", "signature_invalid")
			response.ErrorWithHTTPStatus(c, http.StatusUnauthorized, response.CodeUnauthorized, service.PublicMessage(err))
		case errors.Is(err, service.ErrWebhookPayloadInvalid):
			log.Warnw("webhook_rejected", "reason", "payload_invalid")
			response.ErrorWithHTTPStatus(c, http.StatusBadRequest, response.CodeBadRequest, service.PublicMessage(err))
		default:
			// 非 2xx 让处理方按其策略重投
			log.Errorw("webhook_handle_failed", "error", err)
			response.ErrorWithHTTPStatus(c, http.StatusInternalServerError, response.CodeInternal, service.PublicMessage(err))
		}
		return
	}
	response.Success(c, outcome)
}
