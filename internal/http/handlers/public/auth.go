package public

import (
	"strings"
	"time"

	"github.com/rentflow/internal/cache"
	"github.com/rentflow/internal/constants"
	handlershared "github.com/rentflow/internal/http/handlers/shared"
	"github.com/rentflow/internal/http/response"
	"github.com/rentflow/internal/service"

	"github.com/gin-gonic/gin"
)

// RegisterRequest 注册请求
type RegisterRequest struct {
	Email       string `json:"email" binding:"required"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role" binding:"required"`
}

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse 登录响应
type LoginResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	Party     interface{} `json:"party"`
}

// Register 注册房东或租客账号
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	role := strings.ToLower(strings.TrimSpace(req.Role))
	if role != constants.PartyRoleLandlord && role != constants.PartyRoleTenant {
		respondError(c, response.CodeBadRequest, "role invalid", nil)
		return
	}
	party, err := h.PartyAuthService.Register(service.RegisterPartyInput{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		Role:        role,
	})
	if err != nil {
		handlershared.RespondServiceError(c, err)
		return
	}
	requestLog(c).Infow("party_registered", "party_id", party.ID, "role", party.Role)
	response.Success(c, party)
}

// Login 邮箱密码登录
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	party, token, expiresAt, err := h.PartyAuthService.Login(strings.ToLower(strings.TrimSpace(req.Email)), req.Password)
	if err != nil {
		handlershared.RespondServiceError(c, err)
		return
	}
	_ = cache.SetPartyAuthState(c.Request.Context(), cache.BuildPartyAuthState(party))
	response.Success(c, LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		Party:     party,
	})
}

// Me 当前登录参与方
func (h *Handler) Me(c *gin.Context) {
	partyID, ok := getPartyID(c)
	if !ok {
		return
	}
	party, err := h.PartyAuthService.GetParty(partyID)
	if err != nil {
		handlershared.RespondServiceError(c, err)
		return
	}
	response.Success(c, party)
}
