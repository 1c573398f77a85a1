package repository

import (
	"strings"

	"github.com/rentflow/internal/models"

	"gorm.io/gorm"
)

// CardCheckoutRepository 卡支付会话数据访问接口
type CardCheckoutRepository interface {
	Create(checkout *models.CardCheckout) error
	Update(checkout *models.CardCheckout) error
	GetByCorrelationID(correlationID string) (*models.CardCheckout, error)
	GetBySessionRef(sessionRef string) (*models.CardCheckout, error)
	WithTx(tx *gorm.DB) *GormCardCheckoutRepository
}

// GormCardCheckoutRepository GORM 实现
type GormCardCheckoutRepository struct {
	db *gorm.DB
}

// NewCardCheckoutRepository 创建卡支付会话仓库
func NewCardCheckoutRepository(db *gorm.DB) *GormCardCheckoutRepository {
	return &GormCardCheckoutRepository{db: db}
}

// WithTx 绑定事务
func (r *GormCardCheckoutRepository) WithTx(tx *gorm.DB) *GormCardCheckoutRepository {
	if tx == nil {
		return r
	}
	return &GormCardCheckoutRepository{db: tx}
}

// Create 创建会话
func (r *GormCardCheckoutRepository) Create(checkout *models.CardCheckout) error {
	return r.db.Create(checkout).Error
}

// Update 更新会话
func (r *GormCardCheckoutRepository) Update(checkout *models.CardCheckout) error {
	return r.db.Save(checkout).Error
}

// GetByCorrelationID 根据幂等键获取会话
func (r *GormCardCheckoutRepository) GetByCorrelationID(correlationID string) (*models.CardCheckout, error) {
	correlationID = strings.TrimSpace(correlationID)
	if correlationID == "" {
		return nil, nil
	}
	return r.first(r.db.Where("correlation_id = ?", correlationID))
}

// GetBySessionRef 根据处理方会话引用获取会话
func (r *GormCardCheckoutRepository) GetBySessionRef(sessionRef string) (*models.CardCheckout, error) {
	sessionRef = strings.TrimSpace(sessionRef)
	if sessionRef == "" {
		return nil, nil
	}
	return r.first(r.db.Where("session_ref = ?", sessionRef).Order("id desc"))
}

func (r *GormCardCheckoutRepository) first(query *gorm.DB) (*models.CardCheckout, error) {
	var checkout models.CardCheckout
	result := query.Limit(1).Find(&checkout)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &checkout, nil
}
