package models

import (
	"time"
)

// ProcessorConfig 房东的支付处理方配置（只禁用，不删除）
type ProcessorConfig struct {
	ID          uint      `gorm:"primarykey" json:"id"`                                                  // 主键
	LandlordID  uint      `gorm:"not null;uniqueIndex:idx_processor_configs_landlord_kind" json:"landlord_id"` // 房东ID
	Kind        string    `gorm:"not null;uniqueIndex:idx_processor_configs_landlord_kind" json:"kind"`        // 处理方类型（bank_transfer/card）
	ExternalRef string    `gorm:"index" json:"external_ref"`                                             // 处理方侧账户引用
	IsPrimary   *bool     `json:"is_primary"`                                                            // 显式主处理方（nil 表示未设置）
	Status      string    `gorm:"index;not null" json:"status"`                                          // 状态（pending/active/disabled）
	Verified    bool      `gorm:"not null;default:false" json:"verified"`                                // 是否已验证
	ConfigJSON  JSON      `gorm:"type:json" json:"config_json"`                                          // 公开配置
	CreatedAt   time.Time `gorm:"index" json:"created_at"`                                               // 创建时间
	UpdatedAt   time.Time `gorm:"index" json:"updated_at"`                                               // 更新时间
}

// TableName 指定表名
func (ProcessorConfig) TableName() string {
	return "processor_configs"
}

// PrimaryFlag 返回显式主处理方标记
func (c ProcessorConfig) PrimaryFlag() bool {
	return c.IsPrimary != nil && *c.IsPrimary
}
