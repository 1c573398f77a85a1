package repository

import (
	"strings"

	"github.com/rentflow/internal/models"

	"gorm.io/gorm"
)

// TransferRepository 转账数据访问接口
type TransferRepository interface {
	Create(transfer *models.Transfer) error
	GetByCorrelationID(correlationID string) (*models.Transfer, error)
	GetByExternalRef(externalRef string) (*models.Transfer, error)
	GetByPaymentID(paymentID uint) (*models.Transfer, error)
	Transition(id uint, from []string, to string, extra map[string]interface{}) (bool, error)
	Count() (int64, error)
	WithTx(tx *gorm.DB) *GormTransferRepository
}

// GormTransferRepository GORM 实现
type GormTransferRepository struct {
	db *gorm.DB
}

// NewTransferRepository 创建转账仓库
func NewTransferRepository(db *gorm.DB) *GormTransferRepository {
	return &GormTransferRepository{db: db}
}

// WithTx 绑定事务
func (r *GormTransferRepository) WithTx(tx *gorm.DB) *GormTransferRepository {
	if tx == nil {
		return r
	}
	return &GormTransferRepository{db: tx}
}

// Create 创建转账记录
func (r *GormTransferRepository) Create(transfer *models.Transfer) error {
	return r.db.Create(transfer).Error
}

// GetByCorrelationID 根据幂等键获取转账
func (r *GormTransferRepository) GetByCorrelationID(correlationID string) (*models.Transfer, error) {
	correlationID = strings.TrimSpace(correlationID)
	if correlationID == "" {
		return nil, nil
	}
	return r.first(r.db.Where("correlation_id = ?", correlationID))
}

// GetByExternalRef 根据处理方引用获取转账
func (r *GormTransferRepository) GetByExternalRef(externalRef string) (*models.Transfer, error) {
	externalRef = strings.TrimSpace(externalRef)
	if externalRef == "" {
		return nil, nil
	}
	return r.first(r.db.Where("external_ref = ?", externalRef).Order("id desc"))
}

// GetByPaymentID 获取支付意图最新的转账
func (r *GormTransferRepository) GetByPaymentID(paymentID uint) (*models.Transfer, error) {
	if paymentID == 0 {
		return nil, nil
	}
	return r.first(r.db.Where("payment_id = ?", paymentID).Order("id desc"))
}

func (r *GormTransferRepository) first(query *gorm.DB) (*models.Transfer, error) {
	var transfer models.Transfer
	result := query.Limit(1).Find(&transfer)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &transfer, nil
}

// Transition 条件更新转账状态
func (r *GormTransferRepository) Transition(id uint, from []string, to string, extra map[string]interface{}) (bool, error) {
	if id == 0 || len(from) == 0 {
		return false, nil
	}
	updates := map[string]interface{}{"status": to}
	for key, value := range extra {
		updates[key] = value
	}
	result := r.db.Model(&models.Transfer{}).Where("id = ? AND status IN ?", id, from).Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Count 统计转账数量
func (r *GormTransferRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Transfer{}).Count(&count).Error
	return count, err
}

