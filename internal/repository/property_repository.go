package repository

import (
	"errors"

	"github.com/rentflow/internal/constants"
	"github.com/rentflow/internal/models"

	"gorm.io/gorm"
)

// PropertyRepository 房产/单元/租约数据访问接口
type PropertyRepository interface {
	CreateProperty(property *models.Property) error
	CreateUnit(unit *models.Unit) error
	CreateLease(lease *models.Lease) error
	GetUnitWithProperty(unitID uint) (*models.Unit, error)
	GetActiveLeaseByTenant(tenantID uint) (*models.Lease, error)
	GetActiveLeaseByTenantUnit(tenantID, unitID uint) (*models.Lease, error)
}

// GormPropertyRepository GORM 实现
type GormPropertyRepository struct {
	db *gorm.DB
}

// NewPropertyRepository 创建房产仓库
func NewPropertyRepository(db *gorm.DB) *GormPropertyRepository {
	return &GormPropertyRepository{db: db}
}

// CreateProperty 创建房产
func (r *GormPropertyRepository) CreateProperty(property *models.Property) error {
	return r.db.Create(property).Error
}

// CreateUnit 创建单元
func (r *GormPropertyRepository) CreateUnit(unit *models.Unit) error {
	return r.db.Create(unit).Error
}

// CreateLease 创建租约
func (r *GormPropertyRepository) CreateLease(lease *models.Lease) error {
	return r.db.Create(lease).Error
}

// GetUnitWithProperty 获取单元及其房产
func (r *GormPropertyRepository) GetUnitWithProperty(unitID uint) (*models.Unit, error) {
	if unitID == 0 {
		return nil, nil
	}
	var unit models.Unit
	if err := r.db.Preload("Property").First(&unit, unitID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &unit, nil
}

// GetActiveLeaseByTenant 获取租客当前有效租约（最新一条）
func (r *GormPropertyRepository) GetActiveLeaseByTenant(tenantID uint) (*models.Lease, error) {
	if tenantID == 0 {
		return nil, nil
	}
	var lease models.Lease
	result := r.db.Preload("Unit.Property").
		Where("tenant_id = ? AND status = ?", tenantID, constants.LeaseStatusActive).
		Order("id desc").Limit(1).Find(&lease)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &lease, nil
}

// GetActiveLeaseByTenantUnit 获取租客在指定单元的有效租约
func (r *GormPropertyRepository) GetActiveLeaseByTenantUnit(tenantID, unitID uint) (*models.Lease, error) {
	if tenantID == 0 || unitID == 0 {
		return nil, nil
	}
	var lease models.Lease
	result := r.db.Where("tenant_id = ? AND unit_id = ? AND status = ?", tenantID, unitID, constants.LeaseStatusActive).
		Order("id desc").Limit(1).Find(&lease)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &lease, nil
}
