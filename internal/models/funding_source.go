package models

import (
	"time"
)

// PayerIdentity 参与方在处理方侧的客户身份
type PayerIdentity struct {
	ID                  uint      `gorm:"primarykey" json:"id"`                                                   // 主键
	PartyID             uint      `gorm:"not null;uniqueIndex:idx_payer_identities_party_processor" json:"party_id"`  // 参与方ID
	Processor           string    `gorm:"not null;uniqueIndex:idx_payer_identities_party_processor" json:"processor"` // 处理方类型
	ExternalCustomerRef string    `gorm:"not null" json:"external_customer_ref"`                                  // 处理方客户引用
	CreatedAt           time.Time `gorm:"index" json:"created_at"`                                                // 创建时间
	UpdatedAt           time.Time `gorm:"index" json:"updated_at"`                                                // 更新时间
}

// TableName 指定表名
func (PayerIdentity) TableName() string {
	return "payer_identities"
}

// FundingSource 资金来源（银行账户）
type FundingSource struct {
	ID          uint       `gorm:"primarykey" json:"id"`                       // 主键
	PartyID     uint       `gorm:"index;not null" json:"party_id"`             // 参与方ID
	Processor   string     `gorm:"index;not null" json:"processor"`            // 处理方类型
	ExternalRef string     `gorm:"uniqueIndex;not null" json:"external_ref"`   // 处理方资金来源引用
	Name        string     `gorm:"not null" json:"name"`                       // 显示名称
	AccountType string     `gorm:"not null" json:"account_type"`               // 账户类型（checking/savings）
	Last4       string     `gorm:"type:varchar(4);not null" json:"last4"`      // 账号后四位
	Verified    bool       `gorm:"not null;default:false" json:"verified"`     // 是否已验证
	IsDefault   bool       `gorm:"not null;default:false" json:"is_default"`   // 是否默认
	Status      string     `gorm:"index;not null" json:"status"`               // 状态（active/removed）
	VerifiedAt  *time.Time `json:"verified_at"`                                // 验证时间
	CreatedAt   time.Time  `gorm:"index" json:"created_at"`                    // 创建时间
	UpdatedAt   time.Time  `gorm:"index" json:"updated_at"`                    // 更新时间
}

// TableName 指定表名
func (FundingSource) TableName() string {
	return "funding_sources"
}
