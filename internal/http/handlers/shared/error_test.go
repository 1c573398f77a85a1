package shared

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/rentflow/internal/http/response"
	"github.com/rentflow/internal/service"

	"github.com/gin-gonic/gin"
)

func TestServiceErrorCode(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{service.ErrRoutingNumberInvalid, response.CodeBadRequest},
		{service.ErrAmountBelowFee, response.CodeBadRequest},
		{service.ErrTenantFundingSourceMissing, response.CodeConflict},
		{service.ErrProcessorUnavailable, response.CodeConflict},
		{service.ErrPaymentNotFound, response.CodeNotFound},
		{service.ErrFundingSourceNotFound, response.CodeNotFound},
		{service.ErrInvalidCredentials, response.CodeUnauthorized},
		{service.ErrPaymentInitiationFailed, response.CodeBadGateway},
		{fmt.Errorf("%w: boom", service.ErrPersistenceFailed), response.CodeInternal},
		{errors.New("boom"), response.CodeInternal},
	}
	for _, tc := range cases {
		if got := ServiceErrorCode(tc.err); got != tc.want {
			t.Fatalf("ServiceErrorCode(%v) want %d got %d", tc.err, tc.want, got)
		}
	}
}

func TestRespondServiceErrorHidesWrappedDetail(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("POST", "/api/v1/funding-sources", nil)

	RespondServiceError(c, fmt.Errorf("%w: upstream 422 routing 021000021", service.ErrFundingSourceRejected))

	var resp response.Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response failed: %v", err)
	}
	if resp.StatusCode != response.CodeBadGateway {
		t.Fatalf("status_code want 502 got %d", resp.StatusCode)
	}
	if resp.Msg != service.ErrFundingSourceRejected.Error() {
		t.Fatalf("msg should be the generic sentinel text, got %q", resp.Msg)
	}
}

func TestParamUint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/api/v1/tenant/payments/abc", nil)
	c.Params = gin.Params{{Key: "id", Value: "abc"}}
	if _, ok := ParamUint(c, "id"); ok {
		t.Fatalf("non numeric id should be rejected")
	}

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Params = gin.Params{{Key: "id", Value: "42"}}
	id, ok := ParamUint(c, "id")
	if !ok || id != 42 {
		t.Fatalf("id want 42 got %d ok=%v", id, ok)
	}
}
