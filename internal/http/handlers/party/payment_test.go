package party

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	handlershared "github.com/rentflow/internal/http/handlers/shared"
	"github.com/rentflow/internal/http/response"
	"github.com/rentflow/internal/provider"

	"github.com/gin-gonic/gin"
)

func TestParseDueDate(t *testing.T) {
	if due, ok := parseDueDate(""); !ok || due != nil {
		t.Fatalf("empty due date should be accepted as nil")
	}
	due, ok := parseDueDate("2026-11-01")
	if !ok || due == nil || due.Day() != 1 || due.Month() != 11 {
		t.Fatalf("due date parse failed: %v %v", due, ok)
	}
	if _, ok := parseDueDate("11/01/2026"); ok {
		t.Fatalf("non ISO due date should be rejected")
	}
}

func newTenantEngine(partyID uint) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := New(&provider.Container{})
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if partyID > 0 {
			c.Set(handlershared.ContextPartyID, partyID)
		}
		c.Next()
	})
	r.POST("/api/v1/tenant/payments", h.InitiatePayment)
	r.GET("/api/v1/tenant/payments/:id", h.GetPayment)
	return r
}

func decodeCode(t *testing.T, w *httptest.ResponseRecorder) int {
	t.Helper()
	var resp response.Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response failed: %v", err)
	}
	return resp.StatusCode
}

func TestInitiatePaymentValidatesBeforeService(t *testing.T) {
	r := newTenantEngine(5)
	cases := []string{
		`{"amount":"1200.00"}`,
		`{"unit_id":1,"amount":"1200.00","due_date":"tomorrow"}`,
		`not json`,
	}
	for _, body := range cases {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/tenant/payments", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		if code := decodeCode(t, w); code != response.CodeBadRequest {
			t.Fatalf("body %s want 400 got %d", body, code)
		}
	}
}

func TestGetPaymentRequiresParty(t *testing.T) {
	r := newTenantEngine(0)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/tenant/payments/1", nil))
	if code := decodeCode(t, w); code != response.CodeUnauthorized {
		t.Fatalf("want 401 got %d", code)
	}
}

func TestGetPaymentRejectsBadID(t *testing.T) {
	r := newTenantEngine(5)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/tenant/payments/0", nil))
	if code := decodeCode(t, w); code != response.CodeBadRequest {
		t.Fatalf("want 400 got %d", code)
	}
}
