package models

import (
	"time"

	"gorm.io/gorm"
)

// Property 房产
type Property struct {
	ID         uint           `gorm:"primarykey" json:"id"`              // 主键
	LandlordID uint           `gorm:"index;not null" json:"landlord_id"` // 房东ID
	Name       string         `gorm:"not null" json:"name"`              // 名称
	Address    string         `gorm:"type:text" json:"address"`          // 地址
	CreatedAt  time.Time      `gorm:"index" json:"created_at"`           // 创建时间
	UpdatedAt  time.Time      `gorm:"index" json:"updated_at"`           // 更新时间
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`                    // 软删除时间
}

// TableName 指定表名
func (Property) TableName() string {
	return "properties"
}

// Unit 房源单元
type Unit struct {
	ID         uint           `gorm:"primarykey" json:"id"`              // 主键
	PropertyID uint           `gorm:"index;not null" json:"property_id"` // 房产ID
	Label      string         `gorm:"not null" json:"label"`             // 单元编号
	CreatedAt  time.Time      `gorm:"index" json:"created_at"`           // 创建时间
	UpdatedAt  time.Time      `gorm:"index" json:"updated_at"`           // 更新时间
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`                    // 软删除时间

	Property *Property `gorm:"foreignKey:PropertyID" json:"property,omitempty"`
}

// TableName 指定表名
func (Unit) TableName() string {
	return "units"
}

// Lease 租约
type Lease struct {
	ID         uint           `gorm:"primarykey" json:"id"`                        // 主键
	UnitID     uint           `gorm:"index;not null" json:"unit_id"`               // 单元ID
	TenantID   uint           `gorm:"index;not null" json:"tenant_id"`             // 租客ID
	RentAmount Money          `gorm:"type:decimal(20,2);not null" json:"rent_amount"` // 月租金
	Status     string         `gorm:"index;not null" json:"status"`                // 租约状态
	StartsAt   time.Time      `json:"starts_at"`                                   // 开始时间
	EndsAt     *time.Time     `json:"ends_at"`                                     // 结束时间
	CreatedAt  time.Time      `gorm:"index" json:"created_at"`                     // 创建时间
	UpdatedAt  time.Time      `gorm:"index" json:"updated_at"`                     // 更新时间
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`                              // 软删除时间

	Unit *Unit `gorm:"foreignKey:UnitID" json:"unit,omitempty"`
}

// TableName 指定表名
func (Lease) TableName() string {
	return "leases"
}
