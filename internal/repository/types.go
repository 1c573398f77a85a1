package repository

import "time"

// RentPaymentListFilter 租金支付列表过滤条件
type RentPaymentListFilter struct {
	Page     int
	PageSize int
	TenantID uint
	UnitID   uint
	Status   string
}

// StalePendingFilter 待补偿的 pending 支付过滤条件
type StalePendingFilter struct {
	Method        string
	CreatedBefore time.Time
	Limit         int
}
