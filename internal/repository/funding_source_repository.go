package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/rentflow/internal/constants"
	"github.com/rentflow/internal/models"

	"gorm.io/gorm"
)

// FundingSourceRepository 付款身份与资金来源数据访问接口
type FundingSourceRepository interface {
	CreateIdentity(identity *models.PayerIdentity) error
	GetIdentity(partyID uint, processor string) (*models.PayerIdentity, error)
	Create(source *models.FundingSource) error
	GetByID(id uint) (*models.FundingSource, error)
	GetByExternalRef(externalRef string) (*models.FundingSource, error)
	ListByParty(partyID uint) ([]models.FundingSource, error)
	CountActive(partyID uint, processor string) (int64, error)
	GetVerifiedForParty(partyID uint, processor string) (*models.FundingSource, error)
	SetDefault(partyID uint, processor string, id uint) error
	MarkVerified(id uint, at time.Time) (bool, error)
	WithTx(tx *gorm.DB) *GormFundingSourceRepository
}

// GormFundingSourceRepository GORM 实现
type GormFundingSourceRepository struct {
	db *gorm.DB
}

// NewFundingSourceRepository 创建资金来源仓库
func NewFundingSourceRepository(db *gorm.DB) *GormFundingSourceRepository {
	return &GormFundingSourceRepository{db: db}
}

// WithTx 绑定事务
func (r *GormFundingSourceRepository) WithTx(tx *gorm.DB) *GormFundingSourceRepository {
	if tx == nil {
		return r
	}
	return &GormFundingSourceRepository{db: tx}
}

// CreateIdentity 创建付款身份
func (r *GormFundingSourceRepository) CreateIdentity(identity *models.PayerIdentity) error {
	return r.db.Create(identity).Error
}

// GetIdentity 获取参与方在处理方的身份
func (r *GormFundingSourceRepository) GetIdentity(partyID uint, processor string) (*models.PayerIdentity, error) {
	if partyID == 0 || strings.TrimSpace(processor) == "" {
		return nil, nil
	}
	var identity models.PayerIdentity
	if err := r.db.Where("party_id = ? AND processor = ?", partyID, processor).First(&identity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &identity, nil
}

// Create 创建资金来源
func (r *GormFundingSourceRepository) Create(source *models.FundingSource) error {
	return r.db.Create(source).Error
}

// GetByID 根据 ID 获取资金来源
func (r *GormFundingSourceRepository) GetByID(id uint) (*models.FundingSource, error) {
	var source models.FundingSource
	if err := r.db.First(&source, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &source, nil
}

// GetByExternalRef 根据处理方引用获取资金来源
func (r *GormFundingSourceRepository) GetByExternalRef(externalRef string) (*models.FundingSource, error) {
	externalRef = strings.TrimSpace(externalRef)
	if externalRef == "" {
		return nil, nil
	}
	var source models.FundingSource
	if err := r.db.Where("external_ref = ?", externalRef).First(&source).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &source, nil
}

// ListByParty 获取参与方的有效资金来源
func (r *GormFundingSourceRepository) ListByParty(partyID uint) ([]models.FundingSource, error) {
	var sources []models.FundingSource
	if err := r.db.Where("party_id = ? AND status = ?", partyID, constants.FundingSourceStatusActive).
		Order("is_default desc, id desc").Find(&sources).Error; err != nil {
		return nil, err
	}
	return sources, nil
}

// CountActive 统计参与方在处理方的有效资金来源数量
func (r *GormFundingSourceRepository) CountActive(partyID uint, processor string) (int64, error) {
	var count int64
	err := r.db.Model(&models.FundingSource{}).
		Where("party_id = ? AND processor = ? AND status = ?", partyID, processor, constants.FundingSourceStatusActive).
		Count(&count).Error
	return count, err
}

// GetVerifiedForParty 获取已验证的有效资金来源，优先默认
func (r *GormFundingSourceRepository) GetVerifiedForParty(partyID uint, processor string) (*models.FundingSource, error) {
	if partyID == 0 {
		return nil, nil
	}
	var source models.FundingSource
	result := r.db.Where("party_id = ? AND processor = ? AND status = ? AND verified = ?",
		partyID, processor, constants.FundingSourceStatusActive, true,
	).Order("is_default desc, id desc").Limit(1).Find(&source)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &source, nil
}

// SetDefault 设置默认资金来源（同一处理方仅一个默认）
func (r *GormFundingSourceRepository) SetDefault(partyID uint, processor string, id uint) error {
	if err := r.db.Model(&models.FundingSource{}).
		Where("party_id = ? AND processor = ? AND id <> ?", partyID, processor, id).
		Update("is_default", false).Error; err != nil {
		return err
	}
	return r.db.Model(&models.FundingSource{}).
		Where("id = ? AND party_id = ?", id, partyID).
		Update("is_default", true).Error
}

// MarkVerified 标记资金来源为已验证，返回是否发生变更
func (r *GormFundingSourceRepository) MarkVerified(id uint, at time.Time) (bool, error) {
	result := r.db.Model(&models.FundingSource{}).
		Where("id = ? AND verified = ?", id, false).
		Updates(map[string]interface{}{
			"verified":    true,
			"verified_at": at,
			"updated_at":  at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
