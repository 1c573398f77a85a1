package service

import (
	"context"

	"github.com/rentflow/internal/constants"
	"github.com/rentflow/internal/metrics"
	"github.com/rentflow/internal/models"
	"github.com/rentflow/internal/repository"
)

// Resolution 租客可用处理方集合及默认项
type Resolution struct {
	LandlordID uint     `json:"landlord_id"`
	Available  []string `json:"available"`
	Default    string   `json:"default"`
}

// Has 判断处理方是否可用
func (r Resolution) Has(kind string) bool {
	for _, item := range r.Available {
		if item == kind {
			return true
		}
	}
	return false
}

// IsEmpty 无可用处理方
func (r Resolution) IsEmpty() bool {
	return len(r.Available) == 0
}

// resolutionOrder 可用集合的固定输出顺序
var resolutionOrder = []string{
	constants.ProcessorKindBankTransfer,
	constants.ProcessorKindCard,
}

// ResolveFromConfigs 根据房东的处理方配置计算可用集合与默认项
//
// 默认项顺序：可用的显式主处理方 > bank_transfer > card。
// 显式主处理方未启用时按未设置处理；多个主处理方时取 resolutionOrder 中靠前的。
func ResolveFromConfigs(configs []models.ProcessorConfig) Resolution {
	active := make(map[string]bool, len(configs))
	primaries := make(map[string]bool, len(configs))
	for _, cfg := range configs {
		if cfg.Status != constants.ProcessorStatusActive {
			continue
		}
		active[cfg.Kind] = true
		if cfg.PrimaryFlag() {
			primaries[cfg.Kind] = true
		}
	}
	result := Resolution{Available: []string{}}
	primary := ""
	for _, kind := range resolutionOrder {
		if active[kind] {
			result.Available = append(result.Available, kind)
		}
		if primary == "" && primaries[kind] {
			primary = kind
		}
	}
	switch {
	case primary != "":
		result.Default = primary
	case active[constants.ProcessorKindBankTransfer]:
		result.Default = constants.ProcessorKindBankTransfer
	case active[constants.ProcessorKindCard]:
		result.Default = constants.ProcessorKindCard
	}
	return result
}

// ProcessorResolver 处理方解析（只读）
type ProcessorResolver struct {
	propertyRepo repository.PropertyRepository
	configRepo   repository.ProcessorConfigRepository
}

// NewProcessorResolver 创建处理方解析器
func NewProcessorResolver(propertyRepo repository.PropertyRepository, configRepo repository.ProcessorConfigRepository) *ProcessorResolver {
	return &ProcessorResolver{
		propertyRepo: propertyRepo,
		configRepo:   configRepo,
	}
}

// ResolveProcessors 解析租客当前租约对应房东的可用处理方
func (r *ProcessorResolver) ResolveProcessors(ctx context.Context, tenantID uint) (Resolution, error) {
	log := requestLogger(ctx, "party_id", tenantID)
	lease, err := r.propertyRepo.GetActiveLeaseByTenant(tenantID)
	if err != nil {
		log.Errorw("processor_resolve_lease_fetch_failed", "error", err)
		return Resolution{}, ErrPersistenceFailed
	}
	if lease == nil || lease.Unit == nil || lease.Unit.Property == nil {
		log.Infow("processor_resolved",
			"landlord_id", 0,
			"reason", "no_active_lease",
			"available", []string{},
			"default", "",
		)
		metrics.Payments().ObserveResolution("")
		return Resolution{Available: []string{}}, nil
	}
	return r.resolve(ctx, tenantID, lease.Unit.Property.LandlordID)
}

// ResolveForLandlord 直接按房东解析
func (r *ProcessorResolver) ResolveForLandlord(ctx context.Context, landlordID uint) (Resolution, error) {
	return r.resolve(ctx, 0, landlordID)
}

func (r *ProcessorResolver) resolve(_ context.Context, partyID, landlordID uint) (Resolution, error) {
	log := serviceLogger("party_id", partyID, "landlord_id", landlordID)
	configs, err := r.configRepo.ListByLandlord(landlordID)
	if err != nil {
		log.Errorw("processor_resolve_config_fetch_failed", "error", err)
		return Resolution{}, ErrPersistenceFailed
	}
	result := ResolveFromConfigs(configs)
	result.LandlordID = landlordID

	inputs := make([]map[string]interface{}, 0, len(configs))
	for _, cfg := range configs {
		inputs = append(inputs, map[string]interface{}{
			"kind":       cfg.Kind,
			"status":     cfg.Status,
			"is_primary": cfg.IsPrimary,
		})
	}
	log.Infow("processor_resolved",
		"configs", inputs,
		"available", result.Available,
		"default", result.Default,
	)
	metrics.Payments().ObserveResolution(result.Default)
	return result, nil
}
