package party

import (
	"strings"
	"time"

	"github.com/rentflow/internal/constants"
	handlershared "github.com/rentflow/internal/http/handlers/shared"
	"github.com/rentflow/internal/http/response"
	"github.com/rentflow/internal/models"
	"github.com/rentflow/internal/repository"
	"github.com/rentflow/internal/service"

	"github.com/gin-gonic/gin"
)

const dueDateLayout = "2006-01-02"

// InitiatePaymentRequest 发起租金支付请求
type InitiatePaymentRequest struct {
	UnitID    uint         `json:"unit_id"`
	Amount    models.Money `json:"amount"`
	DueDate   string       `json:"due_date"`
	PaymentID uint         `json:"payment_id"`
}

// CardCheckoutRequest 卡支付会话请求
type CardCheckoutRequest struct {
	UnitID  uint         `json:"unit_id" binding:"required"`
	Amount  models.Money `json:"amount"`
	DueDate string       `json:"due_date"`
}

// ListPaymentsQuery 支付列表查询
type ListPaymentsQuery struct {
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
	UnitID   uint   `form:"unit_id"`
	Status   string `form:"status"`
}

func parseDueDate(raw string) (*time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, true
	}
	parsed, err := time.Parse(dueDateLayout, raw)
	if err != nil {
		return nil, false
	}
	return &parsed, true
}

// InitiatePayment 租客发起银行转账付租（payment_id 非 0 时重试）
func (h *Handler) InitiatePayment(c *gin.Context) {
	tenantID, ok := getPartyID(c)
	if !ok {
		return
	}
	var req InitiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	if req.UnitID == 0 && req.PaymentID == 0 {
		respondError(c, response.CodeBadRequest, "unit_id required", nil)
		return
	}
	dueDate, ok := parseDueDate(req.DueDate)
	if !ok {
		respondError(c, response.CodeBadRequest, "due_date invalid", nil)
		return
	}
	result, err := h.TransferService.InitiateTransfer(c.Request.Context(), service.InitiateTransferInput{
		TenantID:  tenantID,
		UnitID:    req.UnitID,
		Amount:    req.Amount,
		DueDate:   dueDate,
		PaymentID: req.PaymentID,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, result)
}

// CreateCardCheckout 租客发起卡支付
func (h *Handler) CreateCardCheckout(c *gin.Context) {
	tenantID, ok := getPartyID(c)
	if !ok {
		return
	}
	var req CardCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	dueDate, ok := parseDueDate(req.DueDate)
	if !ok {
		respondError(c, response.CodeBadRequest, "due_date invalid", nil)
		return
	}
	result, err := h.CardCheckoutService.CreateCardCheckout(c.Request.Context(), service.CardCheckoutInput{
		TenantID: tenantID,
		UnitID:   req.UnitID,
		Amount:   req.Amount,
		DueDate:  dueDate,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, result)
}

// GetPayment 支付详情
func (h *Handler) GetPayment(c *gin.Context) {
	tenantID, ok := getPartyID(c)
	if !ok {
		return
	}
	paymentID, ok := handlershared.ParamUint(c, "id")
	if !ok {
		return
	}
	payment, err := h.TransferService.GetPayment(c.Request.Context(), tenantID, paymentID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, payment)
}

// ListPayments 租客支付记录
func (h *Handler) ListPayments(c *gin.Context) {
	tenantID, ok := getPartyID(c)
	if !ok {
		return
	}
	var query ListPaymentsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	status := strings.ToLower(strings.TrimSpace(query.Status))
	switch status {
	case "", constants.RentPaymentStatusPending, constants.RentPaymentStatusProcessing,
		constants.RentPaymentStatusPaid, constants.RentPaymentStatusFailed, constants.RentPaymentStatusVoid:
	default:
		respondError(c, response.CodeBadRequest, "status invalid", nil)
		return
	}
	page, pageSize := handlershared.NormalizePagination(query.Page, query.PageSize)
	payments, total, err := h.TransferService.ListPayments(c.Request.Context(), repository.RentPaymentListFilter{
		Page:     page,
		PageSize: pageSize,
		TenantID: tenantID,
		UnitID:   query.UnitID,
		Status:   status,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	totalPage := (total + int64(pageSize) - 1) / int64(pageSize)
	response.SuccessWithPage(c, payments, response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: totalPage,
	})
}
