package models

import (
	"time"
)

// RentPayment 租金支付意图
type RentPayment struct {
	ID                         uint       `gorm:"primarykey" json:"id"`                                    // 主键
	TenantID                   uint       `gorm:"index;not null" json:"tenant_id"`                         // 租客ID
	UnitID                     uint       `gorm:"index;not null" json:"unit_id"`                           // 单元ID
	Amount                     Money      `gorm:"type:decimal(20,2);not null" json:"amount"`               // 支付金额
	DueDate                    *time.Time `gorm:"index" json:"due_date"`                                   // 到期日
	Status                     string     `gorm:"index;not null" json:"status"`                            // 状态
	Method                     string     `gorm:"not null" json:"method"`                                  // 支付方式（bank_transfer/card）
	SourceFundingSourceID      uint       `gorm:"not null;default:0" json:"source_funding_source_id"`      // 首次发起时锁定的付款资金来源
	DestinationFundingSourceID uint       `gorm:"not null;default:0" json:"destination_funding_source_id"` // 首次发起时锁定的收款资金来源
	FailureReason              string     `gorm:"type:text" json:"failure_reason"`                         // 失败原因
	PaidAt                     *time.Time `gorm:"index" json:"paid_at"`                                    // 到账时间
	CreatedAt                  time.Time  `gorm:"index" json:"created_at"`                                 // 创建时间
	UpdatedAt                  time.Time  `gorm:"index" json:"updated_at"`                                 // 更新时间

	Transfer *Transfer `gorm:"foreignKey:PaymentID" json:"transfer,omitempty"`
}

// TableName 指定表名
func (RentPayment) TableName() string {
	return "rent_payments"
}

// Transfer 一次资金划转尝试
type Transfer struct {
	ID                         uint       `gorm:"primarykey" json:"id"`                                          // 主键
	PaymentID                  uint       `gorm:"index;not null" json:"payment_id"`                              // 支付意图ID
	SourceFundingSourceID      uint       `gorm:"not null" json:"source_funding_source_id"`                      // 付款资金来源
	DestinationFundingSourceID uint       `gorm:"not null" json:"destination_funding_source_id"`                 // 收款资金来源
	Amount                     Money      `gorm:"type:decimal(20,2);not null" json:"amount"`                     // 划转金额
	Fee                        Money      `gorm:"type:decimal(20,2);not null;default:0" json:"fee"`              // 网络手续费
	NetAmount                  Money      `gorm:"type:decimal(20,2);not null" json:"net_amount"`                 // 净额
	ExternalRef                string     `gorm:"index" json:"external_ref"`                                     // 处理方转账引用
	CorrelationID              string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"correlation_id"`   // 幂等键
	Status                     string     `gorm:"index;not null" json:"status"`                                  // 状态
	FailureReason              string     `gorm:"type:text" json:"failure_reason"`                               // 失败原因
	CallbackAt                 *time.Time `gorm:"index" json:"callback_at"`                                      // 回调时间
	CreatedAt                  time.Time  `gorm:"index" json:"created_at"`                                       // 创建时间
	UpdatedAt                  time.Time  `gorm:"index" json:"updated_at"`                                       // 更新时间
}

// TableName 指定表名
func (Transfer) TableName() string {
	return "transfers"
}

// CardCheckout 卡支付会话
type CardCheckout struct {
	ID            uint      `gorm:"primarykey" json:"id"`                                        // 主键
	PaymentID     uint      `gorm:"index;not null" json:"payment_id"`                            // 支付意图ID
	SessionRef    string    `gorm:"index" json:"session_ref"`                                    // 处理方会话引用
	RedirectURL   string    `gorm:"type:text" json:"redirect_url"`                               // 跳转链接
	CorrelationID string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"correlation_id"` // 幂等键
	Status        string    `gorm:"index;not null" json:"status"`                                // 状态
	CreatedAt     time.Time `gorm:"index" json:"created_at"`                                     // 创建时间
	UpdatedAt     time.Time `gorm:"index" json:"updated_at"`                                     // 更新时间
}

// TableName 指定表名
func (CardCheckout) TableName() string {
	return "card_checkouts"
}

// ProcessorEvent 已处理的处理方回调事件（去重）
type ProcessorEvent struct {
	ID          uint      `gorm:"primarykey" json:"id"`                                                     // 主键
	Processor   string    `gorm:"not null;uniqueIndex:idx_processor_events_processor_event" json:"processor"` // 处理方类型
	EventID     string    `gorm:"not null;uniqueIndex:idx_processor_events_processor_event" json:"event_id"`  // 事件ID
	Topic       string    `gorm:"not null" json:"topic"`                                                    // 事件类型
	ResourceRef string    `gorm:"index" json:"resource_ref"`                                                // 资源引用
	Payload     JSON      `gorm:"type:json" json:"payload"`                                                 // 原始载荷
	CreatedAt   time.Time `gorm:"index" json:"created_at"`                                                  // 接收时间
}

// TableName 指定表名
func (ProcessorEvent) TableName() string {
	return "processor_events"
}
