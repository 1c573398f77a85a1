package repository

import (
	"errors"
	"strings"

	"github.com/rentflow/internal/models"

	"gorm.io/gorm"
)

// ProcessorConfigRepository 处理方配置数据访问接口
type ProcessorConfigRepository interface {
	Create(config *models.ProcessorConfig) error
	Update(config *models.ProcessorConfig) error
	GetByLandlordKind(landlordID uint, kind string) (*models.ProcessorConfig, error)
	ListByLandlord(landlordID uint) ([]models.ProcessorConfig, error)
	ClearPrimaryExcept(landlordID uint, kind string) error
	WithTx(tx *gorm.DB) *GormProcessorConfigRepository
}

// GormProcessorConfigRepository GORM 实现
type GormProcessorConfigRepository struct {
	db *gorm.DB
}

// NewProcessorConfigRepository 创建处理方配置仓库
func NewProcessorConfigRepository(db *gorm.DB) *GormProcessorConfigRepository {
	return &GormProcessorConfigRepository{db: db}
}

// WithTx 绑定事务
func (r *GormProcessorConfigRepository) WithTx(tx *gorm.DB) *GormProcessorConfigRepository {
	if tx == nil {
		return r
	}
	return &GormProcessorConfigRepository{db: tx}
}

// Create 创建配置
func (r *GormProcessorConfigRepository) Create(config *models.ProcessorConfig) error {
	return r.db.Create(config).Error
}

// Update 更新配置
func (r *GormProcessorConfigRepository) Update(config *models.ProcessorConfig) error {
	return r.db.Save(config).Error
}

// GetByLandlordKind 获取房东指定类型的配置
func (r *GormProcessorConfigRepository) GetByLandlordKind(landlordID uint, kind string) (*models.ProcessorConfig, error) {
	kind = strings.TrimSpace(kind)
	if landlordID == 0 || kind == "" {
		return nil, nil
	}
	var config models.ProcessorConfig
	if err := r.db.Where("landlord_id = ? AND kind = ?", landlordID, kind).First(&config).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &config, nil
}

// ListByLandlord 获取房东全部配置
func (r *GormProcessorConfigRepository) ListByLandlord(landlordID uint) ([]models.ProcessorConfig, error) {
	var configs []models.ProcessorConfig
	if landlordID == 0 {
		return configs, nil
	}
	if err := r.db.Where("landlord_id = ?", landlordID).Order("id asc").Find(&configs).Error; err != nil {
		return nil, err
	}
	return configs, nil
}

// ClearPrimaryExcept 清除房东其他类型的主处理方标记
func (r *GormProcessorConfigRepository) ClearPrimaryExcept(landlordID uint, kind string) error {
	return r.db.Model(&models.ProcessorConfig{}).
		Where("landlord_id = ? AND kind <> ?", landlordID, kind).
		Update("is_primary", false).Error
}
