package party

import (
	"github.com/rentflow/internal/http/response"
	"github.com/rentflow/internal/models"
	"github.com/rentflow/internal/service"

	"github.com/gin-gonic/gin"
)

// UpsertProcessorRequest 房东处理方配置请求
type UpsertProcessorRequest struct {
	ExternalRef string                 `json:"external_ref"`
	Activate    bool                   `json:"activate"`
	Verified    bool                   `json:"verified"`
	Config      map[string]interface{} `json:"config"`
}

// LandlordProcessorsResponse 房东处理方列表
type LandlordProcessorsResponse struct {
	Configs    []models.ProcessorConfig `json:"configs"`
	Resolution service.Resolution       `json:"resolution"`
}

// ResolveProcessors 租客查询可用支付方式
func (h *Handler) ResolveProcessors(c *gin.Context) {
	tenantID, ok := getPartyID(c)
	if !ok {
		return
	}
	resolution, err := h.ProcessorResolver.ResolveProcessors(c.Request.Context(), tenantID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, resolution)
}

// ListProcessors 房东查看已配置的处理方
func (h *Handler) ListProcessors(c *gin.Context) {
	landlordID, ok := getPartyID(c)
	if !ok {
		return
	}
	configs, err := h.ProcessorRegistry.ListByLandlord(landlordID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	resolution := service.ResolveFromConfigs(configs)
	resolution.LandlordID = landlordID
	response.Success(c, LandlordProcessorsResponse{
		Configs:    configs,
		Resolution: resolution,
	})
}

// UpsertProcessor 创建或更新处理方配置
func (h *Handler) UpsertProcessor(c *gin.Context) {
	landlordID, ok := getPartyID(c)
	if !ok {
		return
	}
	var req UpsertProcessorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	cfg, err := h.ProcessorRegistry.UpsertConfig(landlordID, c.Param("kind"), service.UpsertProcessorConfigInput{
		ExternalRef: req.ExternalRef,
		Activate:    req.Activate,
		Verified:    req.Verified,
		Config:      req.Config,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, cfg)
}

// SetPrimaryProcessor 设置显式主处理方
func (h *Handler) SetPrimaryProcessor(c *gin.Context) {
	h.changeProcessor(c, h.ProcessorRegistry.SetPrimary)
}

// ActivateProcessor 启用处理方
func (h *Handler) ActivateProcessor(c *gin.Context) {
	h.changeProcessor(c, h.ProcessorRegistry.Activate)
}

// DisableProcessor 禁用处理方
func (h *Handler) DisableProcessor(c *gin.Context) {
	h.changeProcessor(c, h.ProcessorRegistry.Disable)
}

func (h *Handler) changeProcessor(c *gin.Context, change func(landlordID uint, kind string) (*models.ProcessorConfig, error)) {
	landlordID, ok := getPartyID(c)
	if !ok {
		return
	}
	cfg, err := change(landlordID, c.Param("kind"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, cfg)
}
