package public

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rentflow/internal/payment/banktransfer"
	"github.com/rentflow/internal/provider"
	"github.com/rentflow/internal/service"

	"github.com/gin-gonic/gin"
)

const testWebhookSecret = "whsec-handler-test"

func newWebhookEngine(c *provider.Container) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := New(c)
	r := gin.New()
	r.POST("/api/v1/webhooks/bank-transfer", h.BankTransferWebhook)
	return r
}

func webhookContainer() *provider.Container {
	return &provider.Container{
		TransferWebhookService: service.NewTransferWebhookService(service.TransferWebhookServiceOptions{
			BankConfig: &banktransfer.Config{WebhookSecret: testWebhookSecret},
		}),
	}
}

func TestBankTransferWebhookRejectsBadSignature(t *testing.T) {
	r := newWebhookEngine(webhookContainer())

	body := `{"id":"evt-1","topic":"customer_transfer_completed","resource_id":"tr-1"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/bank-transfer", strings.NewReader(body))
	req.Header.Set("X-Request-Signature-SHA-256", "deadbeef")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status want 401 got %d body=%s", w.Code, w.Body.String())
	}
}

func TestBankTransferWebhookRejectsMalformedPayload(t *testing.T) {
	r := newWebhookEngine(webhookContainer())

	body := `{"topic":"customer_transfer_completed"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/bank-transfer", strings.NewReader(body))
	req.Header.Set("X-Request-Signature-SHA-256", banktransfer.ComputeSignature(testWebhookSecret, []byte(body)))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status want 400 got %d body=%s", w.Code, w.Body.String())
	}
}

func TestBankTransferWebhookUnavailable(t *testing.T) {
	r := newWebhookEngine(nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/bank-transfer", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status want 503 got %d", w.Code)
	}
}
