package party

import (
	"github.com/rentflow/internal/constants"
	handlershared "github.com/rentflow/internal/http/handlers/shared"
	"github.com/rentflow/internal/http/response"
	"github.com/rentflow/internal/service"

	"github.com/gin-gonic/gin"
)

// LinkBankAccountRequest 绑定银行账户请求
type LinkBankAccountRequest struct {
	RoutingNumber string `json:"routing_number" binding:"required"`
	AccountNumber string `json:"account_number" binding:"required"`
	AccountType   string `json:"account_type" binding:"required"`
	HolderName    string `json:"holder_name"`
}

// VerifyMicroDepositsRequest 小额打款验证请求
type VerifyMicroDepositsRequest struct {
	Amount1 string `json:"amount1" binding:"required"`
	Amount2 string `json:"amount2" binding:"required"`
}

// CreatePayerIdentity 在银行转账处理方创建客户身份
func (h *Handler) CreatePayerIdentity(c *gin.Context) {
	partyID, ok := getPartyID(c)
	if !ok {
		return
	}
	identity, err := h.FundingSourceService.CreatePayerIdentity(c.Request.Context(), partyID, constants.ProcessorKindBankTransfer)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, identity)
}

// LinkBankAccount 绑定银行账户
func (h *Handler) LinkBankAccount(c *gin.Context) {
	partyID, ok := getPartyID(c)
	if !ok {
		return
	}
	var req LinkBankAccountRequest
	// 请求体含完整账号，不记录绑定错误
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", nil)
		return
	}
	source, err := h.FundingSourceService.LinkBankAccount(c.Request.Context(), service.LinkBankAccountInput{
		PartyID:       partyID,
		RoutingNumber: req.RoutingNumber,
		AccountNumber: req.AccountNumber,
		AccountType:   req.AccountType,
		HolderName:    req.HolderName,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, source)
}

// ListFundingSources 资金来源列表
func (h *Handler) ListFundingSources(c *gin.Context) {
	partyID, ok := getPartyID(c)
	if !ok {
		return
	}
	sources, err := h.FundingSourceService.ListFundingSources(c.Request.Context(), partyID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, sources)
}

// VerifyMicroDeposits 提交小额打款金额完成验证
func (h *Handler) VerifyMicroDeposits(c *gin.Context) {
	partyID, ok := getPartyID(c)
	if !ok {
		return
	}
	sourceID, ok := handlershared.ParamUint(c, "id")
	if !ok {
		return
	}
	var req VerifyMicroDepositsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	source, err := h.FundingSourceService.VerifyMicroDeposits(c.Request.Context(), partyID, sourceID, req.Amount1, req.Amount2)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, source)
}

// RetryMicroDeposits 重新发起小额打款
func (h *Handler) RetryMicroDeposits(c *gin.Context) {
	partyID, ok := getPartyID(c)
	if !ok {
		return
	}
	sourceID, ok := handlershared.ParamUint(c, "id")
	if !ok {
		return
	}
	source, err := h.FundingSourceService.RetryMicroDeposits(c.Request.Context(), partyID, sourceID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, source)
}

// SetDefaultFundingSource 设置默认资金来源
func (h *Handler) SetDefaultFundingSource(c *gin.Context) {
	partyID, ok := getPartyID(c)
	if !ok {
		return
	}
	sourceID, ok := handlershared.ParamUint(c, "id")
	if !ok {
		return
	}
	source, err := h.FundingSourceService.SetDefault(c.Request.Context(), partyID, sourceID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, source)
}
