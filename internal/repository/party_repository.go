package repository

import (
	"errors"
	"strings"

	"github.com/rentflow/internal/models"

	"gorm.io/gorm"
)

// PartyRepository 参与方数据访问接口
type PartyRepository interface {
	Create(party *models.Party) error
	Update(party *models.Party) error
	GetByID(id uint) (*models.Party, error)
	GetByEmail(email string) (*models.Party, error)
}

// GormPartyRepository GORM 实现
type GormPartyRepository struct {
	db *gorm.DB
}

// NewPartyRepository 创建参与方仓库
func NewPartyRepository(db *gorm.DB) *GormPartyRepository {
	return &GormPartyRepository{db: db}
}

// Create 创建参与方
func (r *GormPartyRepository) Create(party *models.Party) error {
	return r.db.Create(party).Error
}

// Update 更新参与方
func (r *GormPartyRepository) Update(party *models.Party) error {
	return r.db.Save(party).Error
}

// GetByID 根据 ID 获取参与方
func (r *GormPartyRepository) GetByID(id uint) (*models.Party, error) {
	var party models.Party
	if err := r.db.First(&party, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &party, nil
}

// GetByEmail 根据邮箱获取参与方
func (r *GormPartyRepository) GetByEmail(email string) (*models.Party, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, nil
	}
	var party models.Party
	if err := r.db.Where("email = ?", email).First(&party).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &party, nil
}
