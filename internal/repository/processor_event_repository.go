package repository

import (
	"github.com/rentflow/internal/models"

	"gorm.io/gorm"
)

// ProcessorEventRepository 回调事件去重数据访问接口
type ProcessorEventRepository interface {
	Record(event *models.ProcessorEvent) (bool, error)
	WithTx(tx *gorm.DB) *GormProcessorEventRepository
}

// GormProcessorEventRepository GORM 实现
type GormProcessorEventRepository struct {
	db *gorm.DB
}

// NewProcessorEventRepository 创建回调事件仓库
func NewProcessorEventRepository(db *gorm.DB) *GormProcessorEventRepository {
	return &GormProcessorEventRepository{db: db}
}

// WithTx 绑定事务
func (r *GormProcessorEventRepository) WithTx(tx *gorm.DB) *GormProcessorEventRepository {
	if tx == nil {
		return r
	}
	return &GormProcessorEventRepository{db: tx}
}

// Record 记录事件，已存在时返回 false
func (r *GormProcessorEventRepository) Record(event *models.ProcessorEvent) (bool, error) {
	if err := r.db.Create(event).Error; err != nil {
		if IsUniqueViolation(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
