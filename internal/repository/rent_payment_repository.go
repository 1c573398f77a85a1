package repository

import (
	"errors"
	"strings"

	"github.com/rentflow/internal/constants"
	"github.com/rentflow/internal/models"

	"gorm.io/gorm"
)

// RentPaymentRepository 租金支付数据访问接口
type RentPaymentRepository interface {
	Create(payment *models.RentPayment) error
	GetByID(id uint) (*models.RentPayment, error)
	GetByIDForUpdate(id uint) (*models.RentPayment, error)
	GetByIDWithTransfer(id uint) (*models.RentPayment, error)
	Transition(id uint, from []string, to string, extra map[string]interface{}) (bool, error)
	PinFundingSources(id, sourceID, destinationID uint) error
	List(filter RentPaymentListFilter) ([]models.RentPayment, int64, error)
	ListStalePending(filter StalePendingFilter) ([]models.RentPayment, error)
	Count() (int64, error)
	WithTx(tx *gorm.DB) *GormRentPaymentRepository
}

// GormRentPaymentRepository GORM 实现
type GormRentPaymentRepository struct {
	db *gorm.DB
}

// NewRentPaymentRepository 创建租金支付仓库
func NewRentPaymentRepository(db *gorm.DB) *GormRentPaymentRepository {
	return &GormRentPaymentRepository{db: db}
}

// WithTx 绑定事务
func (r *GormRentPaymentRepository) WithTx(tx *gorm.DB) *GormRentPaymentRepository {
	if tx == nil {
		return r
	}
	return &GormRentPaymentRepository{db: tx}
}

// Create 创建支付意图
func (r *GormRentPaymentRepository) Create(payment *models.RentPayment) error {
	return r.db.Create(payment).Error
}

// GetByID 根据 ID 获取支付意图
func (r *GormRentPaymentRepository) GetByID(id uint) (*models.RentPayment, error) {
	return r.getByID(r.db, id)
}

// GetByIDForUpdate 加锁读取支付意图
func (r *GormRentPaymentRepository) GetByIDForUpdate(id uint) (*models.RentPayment, error) {
	return r.getByID(lockForUpdate(r.db), id)
}

// GetByIDWithTransfer 获取支付意图及其转账
func (r *GormRentPaymentRepository) GetByIDWithTransfer(id uint) (*models.RentPayment, error) {
	return r.getByID(r.db.Preload("Transfer"), id)
}

func (r *GormRentPaymentRepository) getByID(query *gorm.DB, id uint) (*models.RentPayment, error) {
	if id == 0 {
		return nil, nil
	}
	var payment models.RentPayment
	if err := query.First(&payment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

// Transition 条件更新状态，仅当当前状态在 from 中时生效
func (r *GormRentPaymentRepository) Transition(id uint, from []string, to string, extra map[string]interface{}) (bool, error) {
	if id == 0 || len(from) == 0 || strings.TrimSpace(to) == "" {
		return false, nil
	}
	updates := map[string]interface{}{"status": to}
	for key, value := range extra {
		updates[key] = value
	}
	result := r.db.Model(&models.RentPayment{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// PinFundingSources 为未锁定的 pending 意图记录双方资金来源
func (r *GormRentPaymentRepository) PinFundingSources(id, sourceID, destinationID uint) error {
	if id == 0 || sourceID == 0 || destinationID == 0 {
		return nil
	}
	return r.db.Model(&models.RentPayment{}).
		Where("id = ? AND status = ? AND source_funding_source_id = 0", id, constants.RentPaymentStatusPending).
		Updates(map[string]interface{}{
			"source_funding_source_id":      sourceID,
			"destination_funding_source_id": destinationID,
		}).Error
}

// List 支付列表
func (r *GormRentPaymentRepository) List(filter RentPaymentListFilter) ([]models.RentPayment, int64, error) {
	query := r.db.Model(&models.RentPayment{})
	if filter.TenantID != 0 {
		query = query.Where("tenant_id = ?", filter.TenantID)
	}
	if filter.UnitID != 0 {
		query = query.Where("unit_id = ?", filter.UnitID)
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	var payments []models.RentPayment
	if err := query.Order("id desc").Find(&payments).Error; err != nil {
		return nil, 0, err
	}
	return payments, total, nil
}

// ListStalePending 获取超过宽限期仍为 pending 的支付意图
func (r *GormRentPaymentRepository) ListStalePending(filter StalePendingFilter) ([]models.RentPayment, error) {
	query := r.db.Model(&models.RentPayment{}).
		Where("status = ? AND created_at < ?", constants.RentPaymentStatusPending, filter.CreatedBefore)
	if method := strings.TrimSpace(filter.Method); method != "" {
		query = query.Where("method = ?", method)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	var payments []models.RentPayment
	if err := query.Order("id asc").Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

// Count 统计支付意图数量
func (r *GormRentPaymentRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.RentPayment{}).Count(&count).Error
	return count, err
}
