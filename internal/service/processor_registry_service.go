package service

import (
	"errors"
	"strings"

	"github.com/rentflow/internal/constants"
	"github.com/rentflow/internal/models"
	"github.com/rentflow/internal/repository"

	"gorm.io/gorm"
)

// ProcessorRegistryService 房东处理方配置管理
type ProcessorRegistryService struct {
	repo repository.ProcessorConfigRepository
}

// NewProcessorRegistryService 创建处理方配置服务
func NewProcessorRegistryService(repo repository.ProcessorConfigRepository) *ProcessorRegistryService {
	return &ProcessorRegistryService{repo: repo}
}

// UpsertProcessorConfigInput 创建或更新处理方配置
type UpsertProcessorConfigInput struct {
	ExternalRef string
	Activate    bool
	Verified    bool
	Config      map[string]interface{}
}

func normalizeProcessorKind(kind string) (string, error) {
	kind = strings.ToLower(strings.TrimSpace(kind))
	switch kind {
	case constants.ProcessorKindBankTransfer, constants.ProcessorKindCard:
		return kind, nil
	default:
		return "", ErrProcessorKindInvalid
	}
}

// UpsertConfig 创建或更新房东某类处理方的配置
func (s *ProcessorRegistryService) UpsertConfig(landlordID uint, kind string, input UpsertProcessorConfigInput) (*models.ProcessorConfig, error) {
	kind, err := normalizeProcessorKind(kind)
	if err != nil {
		return nil, err
	}
	if landlordID == 0 {
		return nil, ErrInvalidInput
	}
	log := serviceLogger("landlord_id", landlordID, "processor", kind)
	existing, err := s.repo.GetByLandlordKind(landlordID, kind)
	if err != nil {
		log.Errorw("processor_config_fetch_failed", "error", err)
		return nil, ErrPersistenceFailed
	}
	if existing == nil {
		status := constants.ProcessorStatusPending
		if input.Activate {
			status = constants.ProcessorStatusActive
		}
		cfg := &models.ProcessorConfig{
			LandlordID:  landlordID,
			Kind:        kind,
			ExternalRef: strings.TrimSpace(input.ExternalRef),
			Status:      status,
			Verified:    input.Verified,
			ConfigJSON:  models.JSON(input.Config),
		}
		if err := s.repo.Create(cfg); err != nil {
			if !repository.IsUniqueViolation(err) {
				log.Errorw("processor_config_create_failed", "error", err)
				return nil, ErrPersistenceFailed
			}
			return s.UpsertConfig(landlordID, kind, input)
		}
		log.Infow("processor_config_created", "status", cfg.Status)
		return cfg, nil
	}

	if ref := strings.TrimSpace(input.ExternalRef); ref != "" {
		existing.ExternalRef = ref
	}
	if input.Config != nil {
		existing.ConfigJSON = models.JSON(input.Config)
	}
	if input.Verified {
		existing.Verified = true
	}
	if input.Activate {
		existing.Status = constants.ProcessorStatusActive
	}
	if err := s.repo.Update(existing); err != nil {
		log.Errorw("processor_config_update_failed", "error", err)
		return nil, ErrPersistenceFailed
	}
	log.Infow("processor_config_updated", "status", existing.Status)
	return existing, nil
}

// Activate 启用处理方
func (s *ProcessorRegistryService) Activate(landlordID uint, kind string) (*models.ProcessorConfig, error) {
	return s.setStatus(landlordID, kind, constants.ProcessorStatusActive)
}

// Disable 禁用处理方（不删除）
func (s *ProcessorRegistryService) Disable(landlordID uint, kind string) (*models.ProcessorConfig, error) {
	return s.setStatus(landlordID, kind, constants.ProcessorStatusDisabled)
}

func (s *ProcessorRegistryService) setStatus(landlordID uint, kind, status string) (*models.ProcessorConfig, error) {
	kind, err := normalizeProcessorKind(kind)
	if err != nil {
		return nil, err
	}
	cfg, err := s.repo.GetByLandlordKind(landlordID, kind)
	if err != nil {
		return nil, ErrPersistenceFailed
	}
	if cfg == nil {
		return nil, ErrProcessorConfigNotFound
	}
	if cfg.Status == status {
		return cfg, nil
	}
	cfg.Status = status
	if err := s.repo.Update(cfg); err != nil {
		serviceLogger("landlord_id", landlordID, "processor", kind).Errorw("processor_config_status_update_failed",
			"status", status,
			"error", err,
		)
		return nil, ErrPersistenceFailed
	}
	serviceLogger("landlord_id", landlordID, "processor", kind).Infow("processor_config_status_changed", "status", status)
	return cfg, nil
}

// SetPrimary 设为主处理方，并清除其余类型的主标记
func (s *ProcessorRegistryService) SetPrimary(landlordID uint, kind string) (*models.ProcessorConfig, error) {
	kind, err := normalizeProcessorKind(kind)
	if err != nil {
		return nil, err
	}
	var updated *models.ProcessorConfig
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cfg, err := repo.GetByLandlordKind(landlordID, kind)
		if err != nil {
			return err
		}
		if cfg == nil {
			return ErrProcessorConfigNotFound
		}
		if err := repo.ClearPrimaryExcept(landlordID, kind); err != nil {
			return err
		}
		cfg.IsPrimary = models.BoolPtr(true)
		if err := repo.Update(cfg); err != nil {
			return err
		}
		updated = cfg
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrProcessorConfigNotFound) {
			return nil, err
		}
		serviceLogger("landlord_id", landlordID, "processor", kind).Errorw("processor_config_set_primary_failed", "error", err)
		return nil, ErrPersistenceFailed
	}
	return updated, nil
}

// ListByLandlord 房东全部处理方配置
func (s *ProcessorRegistryService) ListByLandlord(landlordID uint) ([]models.ProcessorConfig, error) {
	configs, err := s.repo.ListByLandlord(landlordID)
	if err != nil {
		return nil, ErrPersistenceFailed
	}
	return configs, nil
}

// EnsureBankTransferActive 房东拥有已验证银行账户后自动启用银行转账
func (s *ProcessorRegistryService) EnsureBankTransferActive(tx *gorm.DB, landlordID uint, externalRef string) error {
	repo := s.repo.WithTx(tx)
	cfg, err := repo.GetByLandlordKind(landlordID, constants.ProcessorKindBankTransfer)
	if err != nil {
		return err
	}
	if cfg == nil {
		return repo.Create(&models.ProcessorConfig{
			LandlordID:  landlordID,
			Kind:        constants.ProcessorKindBankTransfer,
			ExternalRef: externalRef,
			Status:      constants.ProcessorStatusActive,
			Verified:    true,
		})
	}
	if cfg.Status == constants.ProcessorStatusDisabled {
		// 房东主动禁用的不自动恢复
		return nil
	}
	if cfg.Status == constants.ProcessorStatusActive && cfg.Verified {
		return nil
	}
	cfg.Status = constants.ProcessorStatusActive
	cfg.Verified = true
	if strings.TrimSpace(cfg.ExternalRef) == "" {
		cfg.ExternalRef = externalRef
	}
	return repo.Update(cfg)
}
