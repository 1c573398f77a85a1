package banktransfer

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrConfigInvalid    = errors.New("bank transfer config invalid")
	ErrRequestFailed    = errors.New("bank transfer request failed")
	ErrResponseInvalid  = errors.New("bank transfer response invalid")
	ErrRejected         = errors.New("bank transfer request rejected")
	ErrSignatureInvalid = errors.New("bank transfer signature invalid")
)

const (
	EnvironmentSandbox    = "sandbox"
	EnvironmentProduction = "production"

	defaultTimeout   = 12 * time.Second
	defaultCurrency  = "USD"
	signatureHeader  = "X-Request-Signature-SHA-256"
	idempotencyHeader = "Idempotency-Key"
)

// Config 银行转账处理方配置。
type Config struct {
	APIBaseURL     string `json:"api_base_url"`
	APIKey         string `json:"api_key"`
	APISecret      string `json:"api_secret"`
	WebhookSecret  string `json:"webhook_secret"`
	Environment    string `json:"environment"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// APIError 处理方拒绝请求时返回的错误详情。
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bank transfer api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
}

// Unwrap 使 errors.Is(err, ErrRejected) 成立。
func (e *APIError) Unwrap() error {
	return ErrRejected
}

// CustomerInput 创建客户输入。
type CustomerInput struct {
	PartyID        uint
	Email          string
	DisplayName    string
	Business       bool
	IdempotencyKey string
}

// FundingSourceInput 绑定银行账户输入。
type FundingSourceInput struct {
	CustomerRef   string
	RoutingNumber string
	AccountNumber string
	AccountType   string
	HolderName    string
}

// FundingSourceResult 绑定银行账户返回。
type FundingSourceResult struct {
	FundingSourceRef string
	Status           string
	BankName         string
}

// TransferInput 发起转账输入。
type TransferInput struct {
	SourceRef      string
	DestinationRef string
	Amount         string
	Currency       string
	CorrelationID  string
	IdempotencyKey string
}

// TransferResult 发起转账返回。
type TransferResult struct {
	TransferRef string
	Status      string
	Raw         map[string]interface{}
}

// WebhookResult 回调解析结果。
type WebhookResult struct {
	EventID       string
	Topic         string
	ResourceRef   string
	CorrelationID string
	FailureReason string
	CreatedAt     *time.Time
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
	c.APIBaseURL = strings.TrimRight(strings.TrimSpace(c.APIBaseURL), "/")
	c.APIKey = strings.TrimSpace(c.APIKey)
	c.APISecret = strings.TrimSpace(c.APISecret)
	c.WebhookSecret = strings.TrimSpace(c.WebhookSecret)
	c.Environment = strings.ToLower(strings.TrimSpace(c.Environment))
	if c.Environment == "" {
		c.Environment = EnvironmentSandbox
	}
}

// IsSandbox 是否为沙箱环境（资金来源即时验证）。
func (c *Config) IsSandbox() bool {
	return c != nil && c.Environment == EnvironmentSandbox
}

// ValidateConfig 校验配置。
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: config is nil", ErrConfigInvalid)
	}
	if cfg.APIBaseURL == "" {
		return fmt.Errorf("%w: api_base_url is required", ErrConfigInvalid)
	}
	if _, err := url.ParseRequestURI(cfg.APIBaseURL); err != nil {
		return fmt.Errorf("%w: api_base_url is invalid", ErrConfigInvalid)
	}
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return fmt.Errorf("%w: api_key and api_secret are required", ErrConfigInvalid)
	}
	if cfg.WebhookSecret == "" {
		return fmt.Errorf("%w: webhook_secret is required", ErrConfigInvalid)
	}
	switch cfg.Environment {
	case EnvironmentSandbox, EnvironmentProduction:
	default:
		return fmt.Errorf("%w: environment must be sandbox or production", ErrConfigInvalid)
	}
	return nil
}

// Client 银行转账处理方客户端。
type Client struct {
	cfg        *Config
	httpClient *http.Client
}

// NewClient 创建客户端。
func NewClient(cfg *Config) *Client {
	timeout := defaultTimeout
	if cfg != nil && cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Config 返回客户端配置。
func (c *Client) Config() *Config {
	return c.cfg
}

// IsSandbox 是否为沙箱环境。
func (c *Client) IsSandbox() bool {
	return c.cfg.IsSandbox()
}

// CreateCustomer 创建处理方客户，返回客户引用。
func (c *Client) CreateCustomer(ctx context.Context, input CustomerInput) (string, error) {
	if err := ValidateConfig(c.cfg); err != nil {
		return "", err
	}
	email := strings.TrimSpace(input.Email)
	if email == "" {
		return "", fmt.Errorf("%w: email is required", ErrConfigInvalid)
	}
	customerType := "personal"
	if input.Business {
		customerType = "business"
	}
	payload := map[string]interface{}{
		"email":        email,
		"display_name": strings.TrimSpace(input.DisplayName),
		"type":         customerType,
		"external_id":  strconv.FormatUint(uint64(input.PartyID), 10),
	}
	raw, location, err := c.post(ctx, "/customers", payload, strings.TrimSpace(input.IdempotencyKey))
	if err != nil {
		return "", err
	}
	ref := resourceRef(raw, location)
	if ref == "" {
		return "", fmt.Errorf("%w: missing customer id", ErrResponseInvalid)
	}
	return ref, nil
}

// CreateFundingSource 为客户绑定银行账户。
func (c *Client) CreateFundingSource(ctx context.Context, input FundingSourceInput) (*FundingSourceResult, error) {
	if err := ValidateConfig(c.cfg); err != nil {
		return nil, err
	}
	customerRef := strings.TrimSpace(input.CustomerRef)
	if customerRef == "" {
		return nil, fmt.Errorf("%w: customer_ref is required", ErrConfigInvalid)
	}
	payload := map[string]interface{}{
		"routing_number":    strings.TrimSpace(input.RoutingNumber),
		"account_number":    strings.TrimSpace(input.AccountNumber),
		"bank_account_type": strings.TrimSpace(input.AccountType),
		"name":              strings.TrimSpace(input.HolderName),
	}
	path := fmt.Sprintf("/customers/%s/funding-sources", url.PathEscape(customerRef))
	raw, location, err := c.post(ctx, path, payload, "")
	if err != nil {
		return nil, err
	}
	result := &FundingSourceResult{
		FundingSourceRef: resourceRef(raw, location),
		Status:           readString(raw, "status"),
		BankName:         readString(raw, "bank_name"),
	}
	if result.FundingSourceRef == "" {
		return nil, fmt.Errorf("%w: missing funding source id", ErrResponseInvalid)
	}
	return result, nil
}

// InitiateMicroDeposits 发起小额打款验证。
func (c *Client) InitiateMicroDeposits(ctx context.Context, fundingSourceRef string) error {
	if err := ValidateConfig(c.cfg); err != nil {
		return err
	}
	fundingSourceRef = strings.TrimSpace(fundingSourceRef)
	if fundingSourceRef == "" {
		return fmt.Errorf("%w: funding_source_ref is required", ErrConfigInvalid)
	}
	path := fmt.Sprintf("/funding-sources/%s/micro-deposits", url.PathEscape(fundingSourceRef))
	_, _, err := c.post(ctx, path, map[string]interface{}{}, "")
	return err
}

// VerifyMicroDeposits 校验小额打款金额。
func (c *Client) VerifyMicroDeposits(ctx context.Context, fundingSourceRef string, amount1, amount2 string) error {
	if err := ValidateConfig(c.cfg); err != nil {
		return err
	}
	fundingSourceRef = strings.TrimSpace(fundingSourceRef)
	if fundingSourceRef == "" {
		return fmt.Errorf("%w: funding_source_ref is required", ErrConfigInvalid)
	}
	first, err := normalizeAmount(amount1)
	if err != nil {
		return err
	}
	second, err := normalizeAmount(amount2)
	if err != nil {
		return err
	}
	payload := map[string]interface{}{
		"amount1": map[string]interface{}{"value": first, "currency": defaultCurrency},
		"amount2": map[string]interface{}{"value": second, "currency": defaultCurrency},
	}
	path := fmt.Sprintf("/funding-sources/%s/micro-deposits/verify", url.PathEscape(fundingSourceRef))
	_, _, err = c.post(ctx, path, payload, "")
	return err
}

// CreateTransfer 发起转账，Idempotency-Key 保证处理方侧去重。
func (c *Client) CreateTransfer(ctx context.Context, input TransferInput) (*TransferResult, error) {
	if err := ValidateConfig(c.cfg); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.SourceRef) == "" || strings.TrimSpace(input.DestinationRef) == "" {
		return nil, fmt.Errorf("%w: source and destination are required", ErrConfigInvalid)
	}
	idempotencyKey := strings.TrimSpace(input.IdempotencyKey)
	if idempotencyKey == "" {
		return nil, fmt.Errorf("%w: idempotency key is required", ErrConfigInvalid)
	}
	amount, err := normalizeAmount(input.Amount)
	if err != nil {
		return nil, err
	}
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = defaultCurrency
	}
	payload := map[string]interface{}{
		"source":         strings.TrimSpace(input.SourceRef),
		"destination":    strings.TrimSpace(input.DestinationRef),
		"amount":         map[string]interface{}{"value": amount, "currency": currency},
		"correlation_id": strings.TrimSpace(input.CorrelationID),
	}
	raw, location, err := c.post(ctx, "/transfers", payload, idempotencyKey)
	if err != nil {
		return nil, err
	}
	result := &TransferResult{
		TransferRef: resourceRef(raw, location),
		Status:      strings.ToLower(readString(raw, "status")),
		Raw:         raw,
	}
	if result.TransferRef == "" {
		return nil, fmt.Errorf("%w: missing transfer id", ErrResponseInvalid)
	}
	if result.Status == "" {
		result.Status = "pending"
	}
	return result, nil
}

// VerifyAndParseWebhook 校验签名并解析回调。
func VerifyAndParseWebhook(cfg *Config, headers map[string]string, body []byte) (*WebhookResult, error) {
	if cfg == nil || strings.TrimSpace(cfg.WebhookSecret) == "" {
		return nil, fmt.Errorf("%w: webhook_secret is required", ErrConfigInvalid)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: body is empty", ErrResponseInvalid)
	}
	signature := strings.ToLower(getHeaderValue(headers, signatureHeader))
	if signature == "" {
		return nil, fmt.Errorf("%w: %s is required", ErrSignatureInvalid, signatureHeader)
	}
	expected := ComputeSignature(cfg.WebhookSecret, body)
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return nil, fmt.Errorf("%w: verify failed", ErrSignatureInvalid)
	}

	raw, err := decodeRawMap(body)
	if err != nil {
		return nil, err
	}
	result := &WebhookResult{
		EventID:       readString(raw, "id"),
		Topic:         normalizeTopic(readString(raw, "topic")),
		ResourceRef:   readString(raw, "resource_id"),
		CorrelationID: readString(raw, "correlation_id"),
		FailureReason: readString(raw, "failure_reason"),
		Raw:           raw,
	}
	if created := readString(raw, "created"); created != "" {
		if parsed, err := time.Parse(time.RFC3339, created); err == nil {
			result.CreatedAt = &parsed
		}
	}
	if result.EventID == "" || result.Topic == "" {
		return nil, fmt.Errorf("%w: missing event id or topic", ErrResponseInvalid)
	}
	return result, nil
}

// ComputeSignature 计算回调签名（hex 编码的 HMAC-SHA256）。
func ComputeSignature(secret string, body []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	_, _ = h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func normalizeTopic(topic string) string {
	switch strings.ToLower(strings.TrimSpace(topic)) {
	case "transfer_completed", "customer_transfer_completed", "customer_bank_transfer_completed":
		return "transfer_completed"
	case "transfer_failed", "customer_transfer_failed", "customer_bank_transfer_failed":
		return "transfer_failed"
	case "transfer_cancelled", "customer_transfer_cancelled", "customer_bank_transfer_cancelled":
		return "transfer_cancelled"
	case "funding_source_verified", "customer_funding_source_verified", "customer_microdeposits_completed":
		return "funding_source_verified"
	default:
		return strings.ToLower(strings.TrimSpace(topic))
	}
}

func normalizeAmount(amount string) (string, error) {
	parsed, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return "", fmt.Errorf("%w: amount is invalid", ErrConfigInvalid)
	}
	if parsed.LessThanOrEqual(decimal.Zero) {
		return "", fmt.Errorf("%w: amount must be greater than zero", ErrConfigInvalid)
	}
	if !parsed.Equal(parsed.Round(2)) {
		return "", fmt.Errorf("%w: amount precision is invalid", ErrConfigInvalid)
	}
	return parsed.StringFixed(2), nil
}

func (c *Client) post(ctx context.Context, path string, payload map[string]interface{}, idempotencyKey string) (map[string]interface{}, string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, "", fmt.Errorf("%w: encode request failed", ErrRequestFailed)
	}
	endpoint := c.cfg.APIBaseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, "", fmt.Errorf("%w: build request failed", ErrRequestFailed)
	}
	req.SetBasicAuth(c.cfg.APIKey, c.cfg.APISecret)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if idempotencyKey != "" {
		req.Header.Set(idempotencyHeader, idempotencyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("%w: read response failed", ErrResponseInvalid)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", parseAPIError(resp.StatusCode, respBody)
	}
	location := strings.TrimSpace(resp.Header.Get("Location"))
	if len(bytes.TrimSpace(respBody)) == 0 {
		return map[string]interface{}{}, location, nil
	}
	raw, err := decodeRawMap(respBody)
	if err != nil {
		return nil, "", err
	}
	return raw, location, nil
}

func parseAPIError(statusCode int, body []byte) error {
	apiErr := &APIError{StatusCode: statusCode}
	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err == nil {
		apiErr.Code = readString(raw, "code")
		apiErr.Message = readString(raw, "message")
	}
	if statusCode >= 500 {
		return fmt.Errorf("%w: %v", ErrRequestFailed, apiErr)
	}
	return apiErr
}

// resourceRef 优先取响应体 id，其次取 Location 最后一段。
func resourceRef(raw map[string]interface{}, location string) string {
	if id := readString(raw, "id"); id != "" {
		return id
	}
	location = strings.TrimRight(strings.TrimSpace(location), "/")
	if location == "" {
		return ""
	}
	idx := strings.LastIndex(location, "/")
	if idx < 0 {
		return location
	}
	return location[idx+1:]
}

func decodeRawMap(body []byte) (map[string]interface{}, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: decode response failed", ErrResponseInvalid)
	}
	return raw, nil
}

func getHeaderValue(headers map[string]string, key string) string {
	if len(headers) == 0 || strings.TrimSpace(key) == "" {
		return ""
	}
	for h, value := range headers {
		if strings.EqualFold(strings.TrimSpace(h), key) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func readString(raw map[string]interface{}, key string) string {
	if raw == nil || strings.TrimSpace(key) == "" {
		return ""
	}
	value, ok := raw[key]
	if !ok || value == nil {
		return ""
	}
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case json.Number:
		return strings.TrimSpace(typed.String())
	case float64:
		return strings.TrimSpace(strconv.FormatInt(int64(typed), 10))
	default:
		return ""
	}
}
