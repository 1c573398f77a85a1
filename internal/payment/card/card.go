package card

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrConfigInvalid    = errors.New("card config invalid")
	ErrRequestFailed    = errors.New("card request failed")
	ErrResponseInvalid  = errors.New("card response invalid")
	ErrSignatureInvalid = errors.New("card signature invalid")
)

const (
	defaultAPIBaseURL        = "https://api.stripe.com"
	defaultTimeout           = 12 * time.Second
	defaultWebhookToleranceS = 300
	defaultCurrency          = "USD"
)

// 回调状态
const (
	StatusPaid    = "paid"
	StatusFailed  = "failed"
	StatusPending = "pending"
)

// Config 卡支付处理方配置（Stripe Checkout 兼容接口）。
type Config struct {
	SecretKey               string `json:"secret_key"`
	WebhookSecret           string `json:"webhook_secret"`
	SuccessURL              string `json:"success_url"`
	CancelURL               string `json:"cancel_url"`
	APIBaseURL              string `json:"api_base_url"`
	WebhookToleranceSeconds int    `json:"webhook_tolerance_seconds"`
}

// CheckoutInput 创建支付会话输入。
type CheckoutInput struct {
	PaymentID      uint
	CorrelationID  string
	Amount         string
	Currency       string
	Description    string
	IdempotencyKey string
}

// CheckoutResult 创建支付会话返回。
type CheckoutResult struct {
	SessionID string
	URL       string
	Status    string
}

// WebhookResult 回调解析结果。
type WebhookResult struct {
	EventID       string
	EventType     string
	SessionID     string
	PaymentID     uint
	CorrelationID string
	Status        string
	Amount        string
	Raw           map[string]interface{}
}

// ParseConfig 解析配置。
func ParseConfig(raw map[string]interface{}) (*Config, error) {
	if raw == nil {
		return nil, fmt.Errorf("%w: empty config", ErrConfigInvalid)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal config failed", ErrConfigInvalid)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: unmarshal config failed", ErrConfigInvalid)
	}
	cfg.Normalize()
	return &cfg, nil
}

// Normalize 规整配置字段。
func (c *Config) Normalize() {
	c.SecretKey = strings.TrimSpace(c.SecretKey)
	c.WebhookSecret = strings.TrimSpace(c.WebhookSecret)
	c.SuccessURL = strings.TrimSpace(c.SuccessURL)
	c.CancelURL = strings.TrimSpace(c.CancelURL)
	c.APIBaseURL = strings.TrimRight(strings.TrimSpace(c.APIBaseURL), "/")
	if c.APIBaseURL == "" {
		c.APIBaseURL = defaultAPIBaseURL
	}
	if c.WebhookToleranceSeconds <= 0 {
		c.WebhookToleranceSeconds = defaultWebhookToleranceS
	}
}

// ValidateConfig 校验配置。
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: config is nil", ErrConfigInvalid)
	}
	if cfg.SecretKey == "" {
		return fmt.Errorf("%w: secret_key is required", ErrConfigInvalid)
	}
	if cfg.WebhookSecret == "" {
		return fmt.Errorf("%w: webhook_secret is required", ErrConfigInvalid)
	}
	for name, raw := range map[string]string{
		"api_base_url": cfg.APIBaseURL,
		"success_url":  cfg.SuccessURL,
		"cancel_url":   cfg.CancelURL,
	} {
		if raw == "" {
			return fmt.Errorf("%w: %s is required", ErrConfigInvalid, name)
		}
		if _, err := url.ParseRequestURI(raw); err != nil {
			return fmt.Errorf("%w: %s is invalid", ErrConfigInvalid, name)
		}
	}
	return nil
}

// Client 卡支付处理方客户端。
type Client struct {
	cfg        *Config
	httpClient *http.Client
}

// NewClient 创建客户端。
func NewClient(cfg *Config) *Client {
	return &Client{cfg: cfg, httpClient: &http.Client{Timeout: defaultTimeout}}
}

// Config 返回客户端配置。
func (c *Client) Config() *Config {
	return c.cfg
}

// CreateCheckout 创建支付会话。
func (c *Client) CreateCheckout(ctx context.Context, input CheckoutInput) (*CheckoutResult, error) {
	if err := ValidateConfig(c.cfg); err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	correlationID := strings.TrimSpace(input.CorrelationID)
	if correlationID == "" {
		return nil, fmt.Errorf("%w: correlation_id is required", ErrConfigInvalid)
	}
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = defaultCurrency
	}
	minorAmount, err := toMinorAmount(input.Amount)
	if err != nil {
		return nil, err
	}
	subject := strings.TrimSpace(input.Description)
	if subject == "" {
		subject = "Rent payment"
	}
	paymentID := strconv.FormatUint(uint64(input.PaymentID), 10)

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", c.cfg.SuccessURL)
	form.Set("cancel_url", c.cfg.CancelURL)
	form.Set("client_reference_id", correlationID)
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", strings.ToLower(currency))
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(minorAmount, 10))
	form.Set("line_items[0][price_data][product_data][name]", subject)
	form.Set("metadata[payment_id]", paymentID)
	form.Set("metadata[correlation_id]", correlationID)
	form.Add("payment_method_types[]", "card")

	idempotencyKey := strings.TrimSpace(input.IdempotencyKey)
	if idempotencyKey == "" {
		idempotencyKey = correlationID
	}
	respBody, statusCode, err := c.doFormRequest(ctx, "/v1/checkout/sessions", form, idempotencyKey)
	if err != nil {
		return nil, err
	}
	if statusCode < 200 || statusCode >= 300 {
		return nil, fmt.Errorf("%w: create checkout session status %d", ErrResponseInvalid, statusCode)
	}
	raw, err := decodeRawMap(respBody)
	if err != nil {
		return nil, err
	}
	result := &CheckoutResult{
		SessionID: readString(raw, "id"),
		URL:       readString(raw, "url"),
		Status:    readString(raw, "status"),
	}
	if result.SessionID == "" || result.URL == "" {
		return nil, fmt.Errorf("%w: missing session id or url", ErrResponseInvalid)
	}
	return result, nil
}

// VerifyAndParseWebhook 校验并解析回调。
func VerifyAndParseWebhook(cfg *Config, headers map[string]string, body []byte, now time.Time) (*WebhookResult, error) {
	if cfg == nil || strings.TrimSpace(cfg.WebhookSecret) == "" {
		return nil, fmt.Errorf("%w: webhook_secret is required", ErrConfigInvalid)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: body is empty", ErrResponseInvalid)
	}
	if now.IsZero() {
		now = time.Now()
	}
	signatureHeader := getHeaderValue(headers, "Stripe-Signature")
	if signatureHeader == "" {
		return nil, fmt.Errorf("%w: Stripe-Signature is required", ErrSignatureInvalid)
	}
	timestamp, signatures, err := parseSignatureHeader(signatureHeader)
	if err != nil {
		return nil, err
	}
	if cfg.WebhookToleranceSeconds > 0 {
		delta := math.Abs(float64(now.Unix() - timestamp))
		if delta > float64(cfg.WebhookToleranceSeconds) {
			return nil, fmt.Errorf("%w: timestamp outside tolerance", ErrSignatureInvalid)
		}
	}
	expected := ComputeSignature(cfg.WebhookSecret, timestamp, body)
	matched := false
	for _, sig := range signatures {
		if hmac.Equal([]byte(sig), []byte(expected)) {
			matched = true
			break
		}
	}
	if !matched {
		return nil, fmt.Errorf("%w: verify failed", ErrSignatureInvalid)
	}

	eventRaw, err := decodeRawMap(body)
	if err != nil {
		return nil, err
	}
	eventType := readString(eventRaw, "type")
	dataRaw := readMap(eventRaw, "data")
	objectRaw := readMap(dataRaw, "object")
	if eventType == "" || objectRaw == nil {
		return nil, fmt.Errorf("%w: missing event type or object", ErrResponseInvalid)
	}
	metadata := readMap(objectRaw, "metadata")
	result := &WebhookResult{
		EventID:       readString(eventRaw, "id"),
		EventType:     eventType,
		SessionID:     readString(objectRaw, "id"),
		CorrelationID: readString(metadata, "correlation_id"),
		Status:        mapEventTypeStatus(eventType),
		Raw:           eventRaw,
	}
	if result.CorrelationID == "" {
		result.CorrelationID = readString(objectRaw, "client_reference_id")
	}
	if rawID := readString(metadata, "payment_id"); rawID != "" {
		if id, err := strconv.ParseUint(rawID, 10, 64); err == nil {
			result.PaymentID = uint(id)
		}
	}
	if minor := readInt64(objectRaw, "amount_total"); minor > 0 {
		result.Amount = decimal.NewFromInt(minor).Shift(-2).StringFixed(2)
	}
	return result, nil
}

func mapEventTypeStatus(eventType string) string {
	switch strings.ToLower(strings.TrimSpace(eventType)) {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		return StatusPaid
	case "checkout.session.expired", "checkout.session.async_payment_failed":
		return StatusFailed
	default:
		return StatusPending
	}
}

func toMinorAmount(amount string) (int64, error) {
	parsed, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return 0, fmt.Errorf("%w: amount is invalid", ErrConfigInvalid)
	}
	if parsed.LessThanOrEqual(decimal.Zero) {
		return 0, fmt.Errorf("%w: amount must be greater than zero", ErrConfigInvalid)
	}
	minor := parsed.Shift(2)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, fmt.Errorf("%w: amount precision is invalid", ErrConfigInvalid)
	}
	return minor.IntPart(), nil
}

func (c *Client) doFormRequest(ctx context.Context, path string, form url.Values, idempotencyKey string) ([]byte, int, error) {
	endpoint := c.cfg.APIBaseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: build request failed", ErrRequestFailed)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.SecretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%w: read response failed", ErrResponseInvalid)
	}
	return body, resp.StatusCode, nil
}

// ComputeSignature 计算回调签名。
func ComputeSignature(secret string, timestamp int64, body []byte) string {
	payload := strconv.FormatInt(timestamp, 10) + "." + string(body)
	h := hmac.New(sha256.New, []byte(secret))
	_, _ = h.Write([]byte(payload))
	return hex.EncodeToString(h.Sum(nil))
}

func parseSignatureHeader(signatureHeader string) (int64, []string, error) {
	timestamp := int64(0)
	signatures := make([]string, 0)
	for _, part := range strings.Split(signatureHeader, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		value := strings.TrimSpace(kv[1])
		switch strings.TrimSpace(kv[0]) {
		case "t":
			parsed, err := strconv.ParseInt(value, 10, 64)
			if err != nil || parsed <= 0 {
				return 0, nil, fmt.Errorf("%w: invalid timestamp", ErrSignatureInvalid)
			}
			timestamp = parsed
		case "v1":
			if value != "" {
				signatures = append(signatures, strings.ToLower(value))
			}
		}
	}
	if timestamp <= 0 {
		return 0, nil, fmt.Errorf("%w: timestamp is missing", ErrSignatureInvalid)
	}
	if len(signatures) == 0 {
		return 0, nil, fmt.Errorf("%w: v1 signature is missing", ErrSignatureInvalid)
	}
	return timestamp, signatures, nil
}

func decodeRawMap(body []byte) (map[string]interface{}, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: decode response failed", ErrResponseInvalid)
	}
	return raw, nil
}

func getHeaderValue(headers map[string]string, key string) string {
	for h, value := range headers {
		if strings.EqualFold(strings.TrimSpace(h), key) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func readString(raw map[string]interface{}, key string) string {
	if raw == nil {
		return ""
	}
	value, ok := raw[key]
	if !ok || value == nil {
		return ""
	}
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case float64:
		return strconv.FormatInt(int64(typed), 10)
	default:
		return ""
	}
}

func readMap(raw map[string]interface{}, key string) map[string]interface{} {
	if raw == nil {
		return nil
	}
	mapped, _ := raw[key].(map[string]interface{})
	return mapped
}

func readInt64(raw map[string]interface{}, key string) int64 {
	if raw == nil {
		return 0
	}
	switch typed := raw[key].(type) {
	case float64:
		return int64(typed)
	case int64:
		return typed
	case int:
		return int64(typed)
	case string:
		parsed, _ := strconv.ParseInt(strings.TrimSpace(typed), 10, 64)
		return parsed
	default:
		return 0
	}
}
