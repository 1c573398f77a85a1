package banktransfer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	cfg, err := ParseConfig(map[string]interface{}{
		"api_base_url":   server.URL + "/",
		"api_key":        " key ",
		"api_secret":     "secret",
		"webhook_secret": "whsec",
		"environment":    "production",
	})
	if err != nil {
		t.Fatalf("parse config failed: %v", err)
	}
	return NewClient(cfg)
}

func TestParseConfigDefaultsToSandbox(t *testing.T) {
	cfg, err := ParseConfig(map[string]interface{}{
		"api_base_url":   "https://api.example.com/",
		"api_key":        "k",
		"api_secret":     "s",
		"webhook_secret": "w",
	})
	if err != nil {
		t.Fatalf("parse config failed: %v", err)
	}
	if !cfg.IsSandbox() {
		t.Fatalf("environment should default to sandbox, got %s", cfg.Environment)
	}
	if cfg.APIBaseURL != "https://api.example.com" {
		t.Fatalf("unexpected base url: %s", cfg.APIBaseURL)
	}
	if err := ValidateConfig(cfg); err != nil {
		t.Fatalf("validate config failed: %v", err)
	}
	cfg.Environment = "staging"
	if err := ValidateConfig(cfg); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("unknown environment should be rejected, got %v", err)
	}
}

func TestCreateTransferSendsIdempotencyKey(t *testing.T) {
	var mu sync.Mutex
	seenKeys := make([]string, 0)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transfers" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "key" || pass != "secret" {
			t.Errorf("unexpected basic auth: %s %s", user, pass)
		}
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		amount, _ := body["amount"].(map[string]interface{})
		if amount["value"] != "1500.00" {
			t.Errorf("unexpected amount: %v", amount["value"])
		}
		mu.Lock()
		seenKeys = append(seenKeys, r.Header.Get("Idempotency-Key"))
		mu.Unlock()
		w.Header().Set("Location", "https://api.example.com/transfers/tr-123")
		w.WriteHeader(http.StatusCreated)
	})

	input := TransferInput{
		SourceRef:      "fs-tenant",
		DestinationRef: "fs-landlord",
		Amount:         "1500",
		CorrelationID:  "corr-1",
		IdempotencyKey: "corr-1",
	}
	for i := 0; i < 2; i++ {
		result, err := client.CreateTransfer(context.Background(), input)
		if err != nil {
			t.Fatalf("create transfer failed: %v", err)
		}
		if result.TransferRef != "tr-123" {
			t.Fatalf("unexpected transfer ref: %s", result.TransferRef)
		}
		if result.Status != "pending" {
			t.Fatalf("unexpected status: %s", result.Status)
		}
	}
	if len(seenKeys) != 2 || seenKeys[0] != "corr-1" || seenKeys[1] != "corr-1" {
		t.Fatalf("idempotency key should be stable, got %v", seenKeys)
	}
}

func TestCreateFundingSourceRejected(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"ValidationError","message":"Routing number invalid"}`))
	})
	_, err := client.CreateFundingSource(context.Background(), FundingSourceInput{
		CustomerRef:   "cus-1",
		RoutingNumber: "222222226",
		AccountNumber: "123456789",
		AccountType:   "checking",
		HolderName:    "Jane Tenant",
	})
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("expected rejected error, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != "ValidationError" {
		t.Fatalf("expected api error detail, got %v", err)
	}
}

func TestCreateCustomerServerErrorIsRequestFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err := client.CreateCustomer(context.Background(), CustomerInput{PartyID: 1, Email: "a@example.com"})
	if !errors.Is(err, ErrRequestFailed) {
		t.Fatalf("expected request failed, got %v", err)
	}
	if errors.Is(err, ErrRejected) {
		t.Fatalf("5xx should not be treated as rejection")
	}
}

func TestVerifyAndParseWebhook(t *testing.T) {
	cfg := &Config{WebhookSecret: "whsec"}
	body := []byte(`{"id":"evt-1","topic":"customer_bank_transfer_completed","resource_id":"tr-123","correlation_id":"corr-1","created":"2026-01-02T03:04:05Z"}`)
	headers := map[string]string{"x-request-signature-sha-256": ComputeSignature("whsec", body)}

	result, err := VerifyAndParseWebhook(cfg, headers, body)
	if err != nil {
		t.Fatalf("verify webhook failed: %v", err)
	}
	if result.Topic != "transfer_completed" {
		t.Fatalf("unexpected topic: %s", result.Topic)
	}
	if result.ResourceRef != "tr-123" || result.CorrelationID != "corr-1" {
		t.Fatalf("unexpected refs: %+v", result)
	}
	if result.CreatedAt == nil {
		t.Fatalf("created time should be parsed")
	}

	headers["x-request-signature-sha-256"] = "deadbeef"
	if _, err := VerifyAndParseWebhook(cfg, headers, body); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected signature error, got %v", err)
	}
}

func TestNormalizeAmountRejectsSubCent(t *testing.T) {
	if _, err := normalizeAmount("10.001"); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("sub-cent amount should be rejected, got %v", err)
	}
	if _, err := normalizeAmount("0"); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("zero amount should be rejected, got %v", err)
	}
	got, err := normalizeAmount("12.5")
	if err != nil || got != "12.50" {
		t.Fatalf("unexpected normalized amount: %s %v", got, err)
	}
}
